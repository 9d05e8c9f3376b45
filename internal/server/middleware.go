package server

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"github.com/affcd/gateway/internal/ratelimit"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/affcd/gateway/internal/signature"
)

const (
	contextDomainKey = "authorized_domain"

	// Rate-limit endpoint classes per route group.
	actionRegistration = "registration"
	actionTracking     = "tracking"
	actionDefault      = "default"
)

// domainFromContext returns the authenticated domain record set by
// APIKeyRequired.
func domainFromContext(c *gin.Context) *credentialdomain.AuthorizedDomain {
	value, ok := c.Get(contextDomainKey)
	if !ok {
		return nil
	}
	record, _ := value.(*credentialdomain.AuthorizedDomain)
	return record
}

// APIKeyRequired authenticates the request against the credential store. The
// key comes from Authorization: Bearer or X-API-Key. Rejections are logged
// to the security log with the caller's address; responses stay generic.
func (s *Server) APIKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := bearerToken(c.GetHeader("Authorization"))
		if rawKey == "" {
			rawKey = strings.TrimSpace(c.GetHeader("X-API-Key"))
		}
		if rawKey == "" {
			s.logSecurity(c, securitydomain.EventAuthFailed, securitydomain.SeverityLow, "", map[string]any{
				"reason": "missing_api_key",
				"path":   c.Request.URL.Path,
			})
			AbortWithError(c, ErrUnauthorized)
			return
		}

		record, err := s.credential.FindByAPIKey(c.Request.Context(), rawKey)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if record == nil {
			s.logSecurity(c, securitydomain.EventAuthFailed, securitydomain.SeverityMedium, "", map[string]any{
				"reason": "unknown_api_key",
				"path":   c.Request.URL.Path,
			})
			AbortWithError(c, ErrUnauthorized)
			return
		}

		authorized := record.Authorized()
		if !authorized && record.Provisioning(s.clock.Now(), s.cfg.Security.ProvisioningWindow) {
			authorized = c.Request.Method == http.MethodGet && endpointName(c.Request.URL.Path) == "config"
		}
		if !authorized {
			s.logSecurity(c, securitydomain.EventAuthFailed, securitydomain.SeverityMedium, record.Domain, map[string]any{
				"reason": "domain_not_active",
				"status": string(record.Status),
			})
			AbortWithError(c, ErrForbidden)
			return
		}

		if !record.EndpointAllowed(endpointName(c.Request.URL.Path)) {
			s.logSecurity(c, securitydomain.EventEndpointDenied, securitydomain.SeverityMedium, record.Domain, map[string]any{
				"endpoint": endpointName(c.Request.URL.Path),
			})
			AbortWithError(c, ErrForbidden)
			return
		}

		s.credential.TouchLastUsed(c.Request.Context(), record.ID.String())

		c.Set(contextDomainKey, record)
		c.Next()
	}
}

// SignatureRequired verifies the HMAC request signature and its replay
// window. It must run after APIKeyRequired so the shared secret can be
// resolved from the authenticated record.
func (s *Server) SignatureRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		record := domainFromContext(c)
		if record == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ts, err := signature.CheckTimestamp(c.GetHeader(HeaderTimestamp), s.clock.Now(), s.cfg.Security.SignatureSkew)
		if err != nil {
			s.logSecurity(c, securitydomain.EventSignatureInvalid, securitydomain.SeverityMedium, record.Domain, map[string]any{
				"reason": err.Error(),
			})
			AbortWithError(c, err)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		secret, err := s.credential.SigningSecret(record)
		if err != nil {
			s.log.Error("signing secret unavailable",
				zap.String("domain", record.Domain),
				zap.Error(err),
			)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		err = signature.Verify(c.Request.Method, c.Request.URL.Path, record.Domain, ts, body, secret, c.GetHeader(HeaderSignature))
		if err != nil {
			s.logSecurity(c, securitydomain.EventSignatureInvalid, securitydomain.SeverityHigh, record.Domain, map[string]any{
				"path": c.Request.URL.Path,
			})
			AbortWithError(c, err)
			return
		}

		c.Next()
	}
}

// RateLimit enforces the endpoint class's hourly window and, when
// configured, the per-minute window. Denials never increment the counter.
func (s *Server) RateLimit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		record := domainFromContext(c)

		prefix := ""
		if record != nil {
			prefix = record.APIKeyPrefix
		}
		identifier := ratelimit.Identifier(prefix, c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr)

		hourly, perMinute := s.limitsFor(action, record)

		if perMinute > 0 {
			result, err := s.limiter.Allow(c.Request.Context(), identifier, action+":minute", perMinute, time.Minute)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			if !result.Allowed {
				s.denyRateLimit(c, record, identifier, action, result)
				return
			}
		}

		result, err := s.limiter.Allow(c.Request.Context(), identifier, action, hourly, time.Hour)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !result.Allowed {
			s.denyRateLimit(c, record, identifier, action, result)
			return
		}

		s.metrics.RateLimitAllowed.WithLabelValues(action).Inc()
		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		c.Next()
	}
}

func (s *Server) denyRateLimit(c *gin.Context, record *credentialdomain.AuthorizedDomain, identifier, action string, result ratelimit.Result) {
	s.metrics.RateLimitDenied.WithLabelValues(action).Inc()

	domainName := ""
	if record != nil {
		domainName = record.Domain
	}
	s.logSecurity(c, securitydomain.EventRateLimitExceeded, securitydomain.SeverityLow, domainName, map[string]any{
		"identifier": identifier,
		"action":     action,
		"limit":      result.Limit,
	})
	AbortWithError(c, &rateLimitError{ResetAt: result.ResetAt})
}

// limitsFor picks the endpoint class limits, letting a per-domain override
// win over the gateway default for the tracking class.
func (s *Server) limitsFor(action string, record *credentialdomain.AuthorizedDomain) (hourly, perMinute int) {
	switch action {
	case actionRegistration:
		return s.cfg.RateLimit.RegistrationPerHour, 0
	case actionTracking:
		hourly = s.cfg.RateLimit.TrackingPerHour
		if record != nil && record.RateLimitPerHour > 0 {
			hourly = record.RateLimitPerHour
		}
		if record != nil && record.RateLimitPerMinute > 0 {
			perMinute = record.RateLimitPerMinute
		}
		return hourly, perMinute
	default:
		hourly = s.cfg.RateLimit.DefaultPerHour
		perMinute = s.cfg.RateLimit.DefaultPerMinute
		if record != nil && record.RateLimitPerHour > 0 {
			hourly = record.RateLimitPerHour
		}
		if record != nil && record.RateLimitPerMinute > 0 {
			perMinute = record.RateLimitPerMinute
		}
		return hourly, perMinute
	}
}

// AdminOnly gates operator endpoints behind the static admin token. An
// unset token disables the surface entirely.
func (s *Server) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.AdminToken == "" {
			AbortWithError(c, ErrNotImplemented)
			return
		}
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.GetHeader("X-Admin-Token"))
		}
		if token != s.cfg.AdminToken {
			s.logSecurity(c, securitydomain.EventAuthFailed, securitydomain.SeverityHigh, "", map[string]any{
				"reason": "bad_admin_token",
				"path":   c.Request.URL.Path,
			})
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func (s *Server) logSecurity(c *gin.Context, eventType string, severity securitydomain.Severity, domainName string, details map[string]any) {
	err := s.security.Record(c.Request.Context(), securitydomain.RecordRequest{
		EventType: eventType,
		Severity:  severity,
		Domain:    domainName,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Details:   details,
	})
	if err != nil {
		s.log.Warn("security log write failed", zap.Error(err))
	}
}

func bearerToken(header string) string {
	parts := strings.Fields(strings.TrimSpace(header))
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// endpointName maps a request path to the per-domain permission name, e.g.
// /v1/validate-code -> validate-code.
func endpointName(path string) string {
	trimmed := strings.TrimPrefix(path, "/v1/")
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		return trimmed[:idx]
	}
	return trimmed
}
