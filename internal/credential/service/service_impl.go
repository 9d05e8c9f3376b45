package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"
	"time"

	"github.com/affcd/gateway/internal/cache"
	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"github.com/affcd/gateway/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const cacheKeyByHash = "domain:hash:"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  credentialdomain.Repository
	Cache cache.Cache
	Cfg   config.Config
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    credentialdomain.Repository
	cache   cache.Cache
	ttl     time.Duration
	grace   time.Duration
	sealKey []byte
}

func New(p Params) credentialdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("credential.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		cache:   p.Cache,
		ttl:     p.Cfg.Cache.DomainTTL,
		grace:   p.Cfg.Security.RotationGrace,
		sealKey: credentialdomain.DeriveSealKey(p.Cfg.Security.SealKey),
	}
}

func (s *Service) Create(ctx context.Context, req credentialdomain.CreateRequest) (*credentialdomain.SecretResponse, error) {
	host := credentialdomain.NormalizeDomain(req.DomainURL)
	if host == "" || !strings.Contains(host, ".") {
		return nil, credentialdomain.ErrInvalidDomain
	}

	existing, err := s.repo.FindByDomain(ctx, s.db, host)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, credentialdomain.ErrDomainExists
	}

	plainKey, keyHash, keyPrefix, err := credentialdomain.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	plainSecret, secretHash, err := credentialdomain.GenerateAPISecret()
	if err != nil {
		return nil, err
	}
	sealedSecret, err := credentialdomain.SealSecret(s.sealKey, plainSecret)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	record := &credentialdomain.AuthorizedDomain{
		ID:                 s.genID.Generate(),
		Domain:             host,
		APIKeyPrefix:       keyPrefix,
		APIKeyHash:         keyHash,
		APISecretHash:      secretHash,
		APISecretEnc:       sealedSecret,
		Status:             credentialdomain.StatusPending,
		VerificationStatus: credentialdomain.VerificationUnverified,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
		MaxDailyRequests:   req.MaxDailyRequests,
		SecurityLevel:      defaultSecurityLevel(req.SecurityLevel),
		AllowedEndpoints:   req.AllowedEndpoints,
		WebhookEvents:      req.WebhookEvents,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if url := strings.TrimSpace(req.WebhookURL); url != "" {
		record.WebhookURL = &url
	}
	if secret := strings.TrimSpace(req.WebhookSecret); secret != "" {
		record.WebhookSecret = &secret
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, credentialdomain.ErrDomainExists
		}
		return nil, err
	}

	s.log.Info("authorized domain created",
		zap.String("domain", host),
		zap.String("domain_id", record.ID.String()),
	)

	return &credentialdomain.SecretResponse{
		DomainID:  record.ID.String(),
		Domain:    host,
		APIKey:    plainKey,
		APISecret: plainSecret,
		CreatedAt: now,
	}, nil
}

func (s *Service) RotateKey(ctx context.Context, domainID string) (*credentialdomain.SecretResponse, error) {
	record, err := s.mustFind(ctx, domainID)
	if err != nil {
		return nil, err
	}

	plainKey, keyHash, keyPrefix, err := credentialdomain.GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	oldHash := record.APIKeyHash
	now := time.Now().UTC()
	record.APIKeyHash = keyHash
	record.APIKeyPrefix = keyPrefix
	record.PrevAPIKeyHash = nil
	record.PrevKeyExpiresAt = nil
	if s.grace > 0 {
		expires := now.Add(s.grace)
		record.PrevAPIKeyHash = &oldHash
		record.PrevKeyExpiresAt = &expires
	}
	record.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, cacheKeyByHash+oldHash)
	s.cache.Invalidate(ctx, cacheKeyByHash+keyHash)

	s.log.Info("api key rotated", zap.String("domain_id", record.ID.String()))

	return &credentialdomain.SecretResponse{
		DomainID:  record.ID.String(),
		Domain:    record.Domain,
		APIKey:    plainKey,
		CreatedAt: now,
	}, nil
}

// FindByAPIKey resolves the domain record owning a raw API key. Reads go
// through the cache-aside port; the TTL is short enough that status changes
// propagate within minutes and writes invalidate synchronously anyway.
func (s *Service) FindByAPIKey(ctx context.Context, rawKey string) (*credentialdomain.AuthorizedDomain, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, nil
	}
	hash := credentialdomain.HashAPIKey(rawKey)

	if cached, ok := s.cache.Get(ctx, cacheKeyByHash+hash); ok {
		var record credentialdomain.AuthorizedDomain
		if err := json.Unmarshal(cached, &record); err == nil {
			return &record, nil
		}
	}

	record, err := s.repo.FindByKeyHash(ctx, s.db, hash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// A rotated-out key keeps working inside its grace window so
		// satellites can roll credentials without downtime. Grace hits
		// skip the cache; the window ends on the clock, not the TTL.
		record, err = s.repo.FindByPrevKeyHash(ctx, s.db, hash)
		if err != nil {
			return nil, err
		}
		if record == nil || !record.PrevKeyValid(time.Now().UTC()) {
			return nil, nil
		}
		return record, nil
	}
	if subtle.ConstantTimeCompare([]byte(record.APIKeyHash), []byte(hash)) != 1 {
		return nil, nil
	}

	if encoded, err := json.Marshal(record); err == nil {
		s.cache.Set(ctx, cacheKeyByHash+hash, encoded, s.ttl)
	}
	return record, nil
}

func (s *Service) UpdateStatus(ctx context.Context, domainID string, status credentialdomain.DomainStatus, reason string) error {
	if !credentialdomain.ValidStatus(status) {
		return credentialdomain.ErrInvalidStatus
	}
	record, err := s.mustFind(ctx, domainID)
	if err != nil {
		return err
	}

	record.Status = status
	record.UpdatedAt = time.Now().UTC()
	if status == credentialdomain.StatusSuspended && reason != "" {
		record.SuspensionReason = &reason
	}
	if status == credentialdomain.StatusActive {
		record.SuspensionReason = nil
	}

	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cacheKeyByHash+record.APIKeyHash)

	s.log.Info("domain status updated",
		zap.String("domain_id", record.ID.String()),
		zap.String("status", string(status)),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Service) Get(ctx context.Context, domainID string) (*credentialdomain.AuthorizedDomain, error) {
	return s.mustFind(ctx, domainID)
}

func (s *Service) GetByDomain(ctx context.Context, domain string) (*credentialdomain.AuthorizedDomain, error) {
	host := credentialdomain.NormalizeDomain(domain)
	if host == "" {
		return nil, credentialdomain.ErrInvalidDomain
	}
	record, err := s.repo.FindByDomain(ctx, s.db, host)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, credentialdomain.ErrNotFound
	}
	return record, nil
}

func (s *Service) List(ctx context.Context) ([]credentialdomain.AuthorizedDomain, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Update(ctx context.Context, req credentialdomain.UpdateRequest) (*credentialdomain.AuthorizedDomain, error) {
	record, err := s.mustFind(ctx, req.DomainID)
	if err != nil {
		return nil, err
	}

	if req.RateLimitPerMinute != nil {
		record.RateLimitPerMinute = *req.RateLimitPerMinute
	}
	if req.RateLimitPerHour != nil {
		record.RateLimitPerHour = *req.RateLimitPerHour
	}
	if req.MaxDailyRequests != nil {
		record.MaxDailyRequests = *req.MaxDailyRequests
	}
	if req.SecurityLevel != nil {
		record.SecurityLevel = defaultSecurityLevel(*req.SecurityLevel)
	}
	if req.AllowedEndpoints != nil {
		record.AllowedEndpoints = *req.AllowedEndpoints
	}
	if req.WebhookURL != nil {
		url := strings.TrimSpace(*req.WebhookURL)
		if url == "" {
			record.WebhookURL = nil
		} else {
			record.WebhookURL = &url
		}
	}
	if req.WebhookSecret != nil {
		secret := strings.TrimSpace(*req.WebhookSecret)
		if secret == "" {
			record.WebhookSecret = nil
		} else {
			record.WebhookSecret = &secret
		}
	}
	if req.WebhookEvents != nil {
		record.WebhookEvents = *req.WebhookEvents
	}
	record.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheKeyByHash+record.APIKeyHash)
	return record, nil
}

func (s *Service) Delete(ctx context.Context, domainID string) error {
	record, err := s.mustFind(ctx, domainID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, record.ID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cacheKeyByHash+record.APIKeyHash)
	return nil
}

// TouchLastUsed is best effort; authentication must not wait on it.
func (s *Service) TouchLastUsed(ctx context.Context, domainID string) {
	id, err := snowflake.ParseString(domainID)
	if err != nil {
		return
	}
	if err := s.repo.TouchLastUsed(ctx, s.db, id); err != nil {
		s.log.Warn("touch last_used_at failed", zap.Error(err))
	}
}

func (s *Service) UpdateMetadata(ctx context.Context, domainID string, metadata map[string]any) error {
	record, err := s.mustFind(ctx, domainID)
	if err != nil {
		return err
	}
	record.Metadata = datatypes.JSONMap(metadata)
	record.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cacheKeyByHash+record.APIKeyHash)
	return nil
}

func (s *Service) MarkVerified(ctx context.Context, domainID string) error {
	record, err := s.mustFind(ctx, domainID)
	if err != nil {
		return err
	}
	// Suspension is an operator decision. A passing check must not lift it
	// or erase the failure history; the domain has to be reactivated first.
	if record.Status == credentialdomain.StatusSuspended {
		return credentialdomain.ErrDomainSuspended
	}

	now := time.Now().UTC()
	record.VerificationStatus = credentialdomain.VerificationVerified
	record.VerificationFailures = 0
	record.VerifiedAt = &now
	if record.Status == credentialdomain.StatusPending {
		record.Status = credentialdomain.StatusActive
	}
	record.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cacheKeyByHash+record.APIKeyHash)

	s.log.Info("domain verified",
		zap.String("domain_id", record.ID.String()),
		zap.String("domain", record.Domain),
	)
	return nil
}

func (s *Service) MarkVerificationFailed(ctx context.Context, domainID string, maxFailures int) (int, bool, error) {
	record, err := s.mustFind(ctx, domainID)
	if err != nil {
		return 0, false, err
	}

	record.VerificationFailures++
	record.VerificationStatus = credentialdomain.VerificationFailed
	record.UpdatedAt = time.Now().UTC()

	suspended := false
	if maxFailures > 0 && record.VerificationFailures >= maxFailures && record.Status != credentialdomain.StatusSuspended {
		reason := "verification failed repeatedly"
		record.Status = credentialdomain.StatusSuspended
		record.SuspensionReason = &reason
		suspended = true
	}

	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return 0, false, err
	}
	s.cache.Invalidate(ctx, cacheKeyByHash+record.APIKeyHash)

	s.log.Warn("domain verification failed",
		zap.String("domain_id", record.ID.String()),
		zap.String("domain", record.Domain),
		zap.Int("failures", record.VerificationFailures),
		zap.Bool("suspended", suspended),
	)
	return record.VerificationFailures, suspended, nil
}

func (s *Service) SigningSecret(record *credentialdomain.AuthorizedDomain) (string, error) {
	if record == nil || record.APISecretEnc == "" {
		return "", credentialdomain.ErrSealedSecret
	}
	return credentialdomain.OpenSecret(s.sealKey, record.APISecretEnc)
}

func (s *Service) mustFind(ctx context.Context, domainID string) (*credentialdomain.AuthorizedDomain, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(domainID))
	if err != nil {
		return nil, credentialdomain.ErrInvalidDomainID
	}
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, credentialdomain.ErrNotFound
	}
	return record, nil
}

func defaultSecurityLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "relaxed", "standard", "strict":
		return level
	default:
		return "standard"
	}
}
