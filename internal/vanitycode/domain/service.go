package domain

import (
	"context"
	"errors"
	"time"
)

type CreateRequest struct {
	Code          string         `json:"code"`
	Domain        string         `json:"domain"`
	AffiliateID   string         `json:"affiliate_id"`
	AffiliateCode string         `json:"affiliate_code"`
	TargetURL     string         `json:"target_url"`
	Description   string         `json:"description"`
	ExpiresAt     *time.Time     `json:"expires_at"`
	Metadata      map[string]any `json:"metadata"`
}

type UpdateRequest struct {
	CodeID      string      `json:"-"`
	TargetURL   *string     `json:"target_url"`
	Description *string     `json:"description"`
	Status      *CodeStatus `json:"status"`
	ExpiresAt   *time.Time  `json:"expires_at"`
	ClearExpiry bool        `json:"clear_expiry"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*VanityCode, error)
	Update(ctx context.Context, req UpdateRequest) (*VanityCode, error)
	Delete(ctx context.Context, codeID string) error
	Get(ctx context.Context, codeID string) (*VanityCode, error)
	ListByDomain(ctx context.Context, domain string) ([]VanityCode, error)

	// Validate runs the check chain for a code presented by a requesting
	// domain and, on success, counts the usage.
	Validate(ctx context.Context, code, requestDomain string) (ValidationResult, error)

	// RecordConversion attributes a conversion and its revenue to a code.
	// The code must belong to the requesting domain.
	RecordConversion(ctx context.Context, code, requestDomain string, amountCents int64) error

	// ExpireCodes deactivates every active code whose expiry has passed.
	ExpireCodes(ctx context.Context) (int64, error)

	Stats(ctx context.Context, domain string) (DomainStats, error)
}

var (
	ErrInvalidCode      = errors.New("invalid_code")
	ErrCodeExists       = errors.New("code_exists")
	ErrInvalidTargetURL = errors.New("invalid_target_url")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidCodeID    = errors.New("invalid_code_id")
	ErrInvalidDomain    = errors.New("invalid_domain")
	ErrNotFound         = errors.New("code_not_found")
)
