package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*SecretResponse, error)
	RotateKey(ctx context.Context, domainID string) (*SecretResponse, error)
	FindByAPIKey(ctx context.Context, rawKey string) (*AuthorizedDomain, error)
	UpdateStatus(ctx context.Context, domainID string, status DomainStatus, reason string) error
	Get(ctx context.Context, domainID string) (*AuthorizedDomain, error)
	GetByDomain(ctx context.Context, domain string) (*AuthorizedDomain, error)
	List(ctx context.Context) ([]AuthorizedDomain, error)
	Update(ctx context.Context, req UpdateRequest) (*AuthorizedDomain, error)
	Delete(ctx context.Context, domainID string) error
	TouchLastUsed(ctx context.Context, domainID string)
	UpdateMetadata(ctx context.Context, domainID string, metadata map[string]any) error

	// MarkVerified records a successful ownership check: verification
	// status becomes verified, the failure counter resets, and a pending
	// domain is promoted to active.
	MarkVerified(ctx context.Context, domainID string) error

	// MarkVerificationFailed bumps the consecutive failure counter and
	// suspends the domain once it reaches maxFailures.
	MarkVerificationFailed(ctx context.Context, domainID string, maxFailures int) (failures int, suspended bool, err error)

	// SigningSecret recovers the record's shared secret for request MAC
	// verification. It never leaves the process.
	SigningSecret(record *AuthorizedDomain) (string, error)
}

type CreateRequest struct {
	DomainURL          string         `json:"domain_url"`
	RateLimitPerMinute int            `json:"rate_limit_per_minute"`
	RateLimitPerHour   int            `json:"rate_limit_per_hour"`
	MaxDailyRequests   int            `json:"max_daily_requests"`
	SecurityLevel      string         `json:"security_level"`
	AllowedEndpoints   []string       `json:"allowed_endpoints"`
	WebhookURL         string         `json:"webhook_url"`
	WebhookSecret      string         `json:"webhook_secret"`
	WebhookEvents      []string       `json:"webhook_events"`
	Metadata           map[string]any `json:"metadata"`
}

type UpdateRequest struct {
	DomainID           string    `json:"-"`
	RateLimitPerMinute *int      `json:"rate_limit_per_minute"`
	RateLimitPerHour   *int      `json:"rate_limit_per_hour"`
	MaxDailyRequests   *int      `json:"max_daily_requests"`
	SecurityLevel      *string   `json:"security_level"`
	AllowedEndpoints   *[]string `json:"allowed_endpoints"`
	WebhookURL         *string   `json:"webhook_url"`
	WebhookSecret      *string   `json:"webhook_secret"`
	WebhookEvents      *[]string `json:"webhook_events"`
}

// SecretResponse carries the only copy of the plaintext credentials the
// caller will ever see.
type SecretResponse struct {
	DomainID  string    `json:"domain_id"`
	Domain    string    `json:"domain"`
	APIKey    string    `json:"api_key"`
	APISecret string    `json:"api_secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidDomain   = errors.New("invalid_domain")
	ErrDomainExists    = errors.New("domain_exists")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidDomainID = errors.New("invalid_domain_id")
	ErrDomainSuspended = errors.New("domain_suspended")
	ErrNotFound        = errors.New("not_found")
)

// ValidStatus reports whether s is one of the persistable domain statuses.
func ValidStatus(s DomainStatus) bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusSuspended:
		return true
	default:
		return false
	}
}
