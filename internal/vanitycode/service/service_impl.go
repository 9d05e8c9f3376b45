package service

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/affcd/gateway/internal/cache"
	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"github.com/affcd/gateway/internal/vanitycode/domain"
	"github.com/affcd/gateway/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const cacheKeyByCode = "code:"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Cache cache.Cache
	Cfg   config.Config
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	cache cache.Cache
	ttl   time.Duration
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("vanitycode.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cache: p.Cache,
		ttl:   p.Cfg.Cache.CodeTTL,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.VanityCode, error) {
	code := domain.NormalizeCode(req.Code)
	if !domain.ValidCodeFormat(code) {
		return nil, domain.ErrInvalidCode
	}

	host := credentialdomain.NormalizeDomain(req.Domain)
	if host == "" {
		return nil, domain.ErrInvalidDomain
	}

	target := strings.TrimSpace(req.TargetURL)
	if !validTargetURL(target) {
		return nil, domain.ErrInvalidTargetURL
	}

	existing, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrCodeExists
	}

	now := s.clock.Now()
	record := &domain.VanityCode{
		ID:        s.genID.Generate(),
		Code:      code,
		Domain:    host,
		TargetURL: target,
		Status:    domain.CodeActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		record.Description = &desc
	}
	if affiliate := strings.TrimSpace(req.AffiliateID); affiliate != "" {
		record.AffiliateID = &affiliate
	}
	if alias := domain.NormalizeCode(req.AffiliateCode); alias != "" {
		record.AffiliateCode = &alias
	}
	if req.ExpiresAt != nil {
		expires := req.ExpiresAt.UTC()
		record.ExpiresAt = &expires
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeExists
		}
		return nil, err
	}

	s.log.Info("vanity code created",
		zap.String("code", code),
		zap.String("domain", host),
	)
	return record, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.VanityCode, error) {
	record, err := s.mustFind(ctx, req.CodeID)
	if err != nil {
		return nil, err
	}

	if req.TargetURL != nil {
		target := strings.TrimSpace(*req.TargetURL)
		if !validTargetURL(target) {
			return nil, domain.ErrInvalidTargetURL
		}
		record.TargetURL = target
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if desc == "" {
			record.Description = nil
		} else {
			record.Description = &desc
		}
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.CodeActive, domain.CodeInactive, domain.CodeSuspended:
			record.Status = *req.Status
		default:
			return nil, domain.ErrInvalidStatus
		}
	}
	if req.ClearExpiry {
		record.ExpiresAt = nil
	} else if req.ExpiresAt != nil {
		expires := req.ExpiresAt.UTC()
		record.ExpiresAt = &expires
	}
	record.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, record); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cacheKeyByCode+record.Code)
	return record, nil
}

func (s *Service) Delete(ctx context.Context, codeID string) error {
	record, err := s.mustFind(ctx, codeID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, record.ID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cacheKeyByCode+record.Code)
	return nil
}

func (s *Service) Get(ctx context.Context, codeID string) (*domain.VanityCode, error) {
	return s.mustFind(ctx, codeID)
}

func (s *Service) ListByDomain(ctx context.Context, domainName string) ([]domain.VanityCode, error) {
	host := credentialdomain.NormalizeDomain(domainName)
	if host == "" {
		return nil, domain.ErrInvalidDomain
	}
	return s.repo.ListByDomain(ctx, s.db, host)
}

// Validate checks a code in a fixed order: existence, active status, expiry,
// then domain ownership. The first failing check decides the reason. A valid
// lookup counts as one usage.
func (s *Service) Validate(ctx context.Context, rawCode, requestDomain string) (domain.ValidationResult, error) {
	code := domain.NormalizeCode(rawCode)
	result := domain.ValidationResult{Code: code}

	if !domain.ValidCodeFormat(code) {
		result.Reason = domain.ReasonInvalidCode
		return result, nil
	}

	record, err := s.findCached(ctx, code)
	if err != nil {
		return result, err
	}
	if record == nil {
		result.Reason = domain.ReasonInvalidCode
		return result, nil
	}
	switch record.Status {
	case domain.CodeActive:
	case domain.CodeExpired:
		result.Reason = domain.ReasonExpiredCode
		return result, nil
	default:
		result.Reason = domain.ReasonInactiveCode
		return result, nil
	}
	if record.Expired(s.clock.Now()) {
		result.Reason = domain.ReasonExpiredCode
		return result, nil
	}
	if record.Domain != credentialdomain.NormalizeDomain(requestDomain) {
		result.Reason = domain.ReasonUnauthorisedDomain
		return result, nil
	}

	if err := s.repo.IncrementUsage(ctx, s.db, record.ID); err != nil {
		s.log.Warn("usage increment failed", zap.String("code", code), zap.Error(err))
	}

	result.Valid = true
	result.TargetURL = record.TargetURL
	if record.AffiliateID != nil {
		result.AffiliateID = *record.AffiliateID
	}
	if record.AffiliateCode != nil {
		result.AffiliateCode = *record.AffiliateCode
	}
	return result, nil
}

func (s *Service) RecordConversion(ctx context.Context, rawCode, requestDomain string, amountCents int64) error {
	code := domain.NormalizeCode(rawCode)
	record, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}
	if record.Domain != credentialdomain.NormalizeDomain(requestDomain) {
		return domain.ErrInvalidDomain
	}
	return s.repo.IncrementConversion(ctx, s.db, record.ID, amountCents)
}

func (s *Service) ExpireCodes(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpireBefore(ctx, s.db, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("vanity codes expired", zap.Int64("count", expired))
	}
	return expired, nil
}

func (s *Service) Stats(ctx context.Context, domainName string) (domain.DomainStats, error) {
	host := credentialdomain.NormalizeDomain(domainName)
	if host == "" {
		return domain.DomainStats{}, domain.ErrInvalidDomain
	}
	return s.repo.StatsByDomain(ctx, s.db, host)
}

// findCached resolves a code through the cache-aside port. Cached entries may
// carry a stale usage count; validation only reads status, expiry, and the
// owning domain, all of which invalidate on write.
func (s *Service) findCached(ctx context.Context, code string) (*domain.VanityCode, error) {
	if cached, ok := s.cache.Get(ctx, cacheKeyByCode+code); ok {
		var record domain.VanityCode
		if err := json.Unmarshal(cached, &record); err == nil {
			return &record, nil
		}
	}

	record, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	if encoded, err := json.Marshal(record); err == nil {
		s.cache.Set(ctx, cacheKeyByCode+code, encoded, s.ttl)
	}
	return record, nil
}

func (s *Service) mustFind(ctx context.Context, codeID string) (*domain.VanityCode, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(codeID))
	if err != nil {
		return nil, domain.ErrInvalidCodeID
	}
	record, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func validTargetURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
