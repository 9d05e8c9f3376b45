// Package configsync assembles the per-domain configuration satellites pull
// from the gateway, merging gateway defaults with the domain's stored
// overlay.
package configsync

import (
	"context"
	"errors"
	"strings"

	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const metadataKey = "config"

// DomainConfig is the effective configuration for one satellite.
type DomainConfig struct {
	Domain             string         `json:"domain"`
	Status             string         `json:"status"`
	VerificationStatus string         `json:"verification_status"`
	SecurityLevel      string         `json:"security_level"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute"`
	RateLimitPerHour   int            `json:"rate_limit_per_hour"`
	MaxDailyRequests   int            `json:"max_daily_requests"`
	AllowedEndpoints   []string       `json:"allowed_endpoints"`
	WebhookEvents      []string       `json:"webhook_events"`
	SignatureSkewSecs  int            `json:"signature_skew_secs"`
	Overlay            map[string]any `json:"overlay,omitempty"`
}

type Service interface {
	// Effective builds the configuration for an already-authenticated
	// domain record.
	Effective(record *credentialdomain.AuthorizedDomain) DomainConfig

	// SetOverlay replaces the domain's free-form config overlay.
	SetOverlay(ctx context.Context, domainID string, overlay map[string]any) error

	// MergeOverlay applies a partial update on top of the stored overlay.
	MergeOverlay(ctx context.Context, domainID string, patch map[string]any) error
}

var ErrInvalidOverlay = errors.New("invalid_overlay")

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Credential credentialdomain.Service
}

type service struct {
	log        *zap.Logger
	cfg        config.Config
	credential credentialdomain.Service
}

func New(p Params) Service {
	return &service{
		log:        p.Log.Named("configsync.service"),
		cfg:        p.Cfg,
		credential: p.Credential,
	}
}

func (s *service) Effective(record *credentialdomain.AuthorizedDomain) DomainConfig {
	cfg := DomainConfig{
		Domain:             record.Domain,
		Status:             string(record.Status),
		VerificationStatus: string(record.VerificationStatus),
		SecurityLevel:      record.SecurityLevel,
		RateLimitPerMinute: record.RateLimitPerMinute,
		RateLimitPerHour:   record.RateLimitPerHour,
		MaxDailyRequests:   record.MaxDailyRequests,
		AllowedEndpoints:   record.AllowedEndpoints,
		WebhookEvents:      record.WebhookEvents,
		SignatureSkewSecs:  int(s.cfg.Security.SignatureSkew.Seconds()),
	}

	// Unset per-domain limits fall back to the gateway defaults.
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = s.cfg.RateLimit.DefaultPerMinute
	}
	if cfg.RateLimitPerHour <= 0 {
		cfg.RateLimitPerHour = s.cfg.RateLimit.DefaultPerHour
	}

	if record.Metadata != nil {
		if overlay, ok := record.Metadata[metadataKey].(map[string]any); ok && len(overlay) > 0 {
			cfg.Overlay = overlay
		}
	}
	return cfg
}

func (s *service) SetOverlay(ctx context.Context, domainID string, overlay map[string]any) error {
	if overlay == nil {
		return ErrInvalidOverlay
	}
	for key := range overlay {
		if strings.TrimSpace(key) == "" {
			return ErrInvalidOverlay
		}
	}

	record, err := s.credential.Get(ctx, domainID)
	if err != nil {
		return err
	}

	metadata := map[string]any{}
	for k, v := range record.Metadata {
		metadata[k] = v
	}
	metadata[metadataKey] = overlay

	if err := s.credential.UpdateMetadata(ctx, domainID, metadata); err != nil {
		return err
	}
	s.log.Info("config overlay replaced", zap.String("domain_id", domainID))
	return nil
}

func (s *service) MergeOverlay(ctx context.Context, domainID string, patch map[string]any) error {
	if len(patch) == 0 {
		return ErrInvalidOverlay
	}

	record, err := s.credential.Get(ctx, domainID)
	if err != nil {
		return err
	}

	merged := map[string]any{}
	if record.Metadata != nil {
		if existing, ok := record.Metadata[metadataKey].(map[string]any); ok {
			for k, v := range existing {
				merged[k] = v
			}
		}
	}
	for key, value := range patch {
		if strings.TrimSpace(key) == "" {
			return ErrInvalidOverlay
		}
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}

	return s.SetOverlay(ctx, domainID, merged)
}

var Module = fx.Module("configsync.service",
	fx.Provide(New),
)
