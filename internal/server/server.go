// Package server exposes the gateway's HTTP surface: authenticated
// ingestion and code validation for satellites, domain lifecycle management,
// addon and config sync endpoints, and the admin diagnostics view.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/affcd/gateway/internal/addons"
	"github.com/affcd/gateway/internal/clock"
	commissiondomain "github.com/affcd/gateway/internal/commission/domain"
	"github.com/affcd/gateway/internal/config"
	"github.com/affcd/gateway/internal/configsync"
	"github.com/affcd/gateway/internal/cors"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"github.com/affcd/gateway/internal/domainauth"
	"github.com/affcd/gateway/internal/metrics"
	"github.com/affcd/gateway/internal/ratelimit"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	usagedomain "github.com/affcd/gateway/internal/usageevent/domain"
	vanitydomain "github.com/affcd/gateway/internal/vanitycode/domain"
	"github.com/affcd/gateway/internal/webhook"
)

const (
	HeaderSignature = "X-AFFCD-Signature"
	HeaderTimestamp = "X-AFFCD-Timestamp"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware(log, m))
	r.Use(cors.Middleware(cors.ParseAllowlist(cfg.CORSAllowlist)))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	return NewEngine(cfg, log, m)
}

// RequestLogMiddleware counts and logs every request with its final status.
// It sits outside the error mapper so the logged status matches what the
// caller saw.
func RequestLogMiddleware(log *zap.Logger, m *metrics.Metrics) gin.HandlerFunc {
	log = log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	db         *gorm.DB
	clock      clock.Clock
	metrics    *metrics.Metrics
	limiter    ratelimit.Limiter
	credential credentialdomain.Service
	verifier   domainauth.Verifier
	codes      vanitydomain.Service
	usage      usagedomain.Service
	commission commissiondomain.Service
	security   securitydomain.Service
	addons     addons.Service
	configsync configsync.Service
	webhooks   webhook.Dispatcher
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	DB         *gorm.DB
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Limiter    ratelimit.Limiter
	Credential credentialdomain.Service
	Verifier   domainauth.Verifier
	Codes      vanitydomain.Service
	Usage      usagedomain.Service
	Commission commissiondomain.Service
	Security   securitydomain.Service
	Addons     addons.Service
	ConfigSync configsync.Service
	Webhooks   webhook.Dispatcher
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		db:         p.DB,
		clock:      p.Clock,
		metrics:    p.Metrics,
		limiter:    p.Limiter,
		credential: p.Credential,
		verifier:   p.Verifier,
		codes:      p.Codes,
		usage:      p.Usage,
		commission: p.Commission,
		security:   p.Security,
		addons:     p.Addons,
		configsync: p.ConfigSync,
		webhooks:   p.Webhooks,
	}

	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/health", s.Health)

	// Domain registration is public but strictly limited; management of an
	// existing domain is an operator concern behind the admin token.
	v1.POST("/domains", s.RateLimit(actionRegistration), s.RegisterDomain)

	adminDomains := v1.Group("/domains", s.AdminOnly())
	{
		adminDomains.GET("", s.ListDomains)
		adminDomains.GET("/:id", s.GetDomain)
		adminDomains.PUT("/:id", s.UpdateDomain)
		adminDomains.DELETE("/:id", s.DeleteDomain)
		adminDomains.POST("/:id/verify", s.VerifyDomain)
		adminDomains.POST("/:id/rotate-key", s.RotateDomainKey)
	}

	adminRules := v1.Group("/commission-rules", s.AdminOnly())
	{
		adminRules.GET("", s.ListCommissionRules)
		adminRules.POST("", s.CreateCommissionRule)
		adminRules.GET("/:id", s.GetCommissionRule)
		adminRules.DELETE("/:id", s.DeleteCommissionRule)
	}

	v1.GET("/diagnostics", s.AdminOnly(), s.Diagnostics)

	// Satellite surface: API key first, then the request signature, then
	// the endpoint class's rate limit.
	authed := v1.Group("", s.APIKeyRequired())
	{
		authed.GET("/config", s.RateLimit(actionDefault), s.GetConfig)

		signed := authed.Group("", s.SignatureRequired())
		{
			signed.POST("/config", s.RateLimit(actionDefault), s.ReplaceConfig)
			signed.PUT("/config", s.RateLimit(actionDefault), s.PatchConfig)

			signed.POST("/track", s.RateLimit(actionTracking), s.Track)
			signed.POST("/convert", s.RateLimit(actionTracking), s.Convert)
			signed.POST("/batch", s.RateLimit(actionTracking), s.Batch)

			signed.POST("/validate-code", s.RateLimit(actionDefault), s.ValidateCode)
			signed.POST("/calculate-commission", s.RateLimit(actionDefault), s.CalculateCommission)

			signed.POST("/webhook/referral-update", s.RateLimit(actionDefault), s.ReferralUpdate)

			signed.POST("/codes", s.RateLimit(actionDefault), s.CreateCode)
			signed.GET("/codes", s.RateLimit(actionDefault), s.ListCodes)
			signed.GET("/codes/stats", s.RateLimit(actionDefault), s.CodeStats)

			signed.POST("/addons/register", s.RateLimit(actionDefault), s.RegisterAddon)
			signed.POST("/addons/unregister", s.RateLimit(actionDefault), s.UnregisterAddon)
		}

		authed.GET("/addons/status", s.RateLimit(actionDefault), s.AddonStatus)
		authed.GET("/addons/list", s.RateLimit(actionDefault), s.ListAddons)
		authed.GET("/events", s.RateLimit(actionDefault), s.ListEvents)
	}
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server failed", zap.Error(err))
				}
			}()
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
