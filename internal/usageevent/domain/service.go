package domain

import (
	"context"
	"errors"
)

// TrackRequest covers track and validation events; conversion adds money.
type TrackRequest struct {
	DomainFrom string         `json:"domain_from"`
	DomainTo   string         `json:"domain_to"`
	Code       string         `json:"code"`
	EventType  EventType      `json:"event_type"`
	IPAddress  string         `json:"-"`
	UserAgent  string         `json:"-"`
	Metadata   map[string]any `json:"metadata"`

	IdempotencyKey string `json:"idempotency_key"`
}

type ConvertRequest struct {
	TrackRequest
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	AffiliateID string `json:"affiliate_id"`
}

// BatchItem is one entry of a heterogeneous batch. Type selects the shape.
type BatchItem struct {
	Type           EventType      `json:"type"`
	Code           string         `json:"code"`
	AmountCents    int64          `json:"amount_cents"`
	Currency       string         `json:"currency"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotency_key"`
}

// BatchResult reports the outcome for the item at the same index. One bad
// item never aborts the others.
type BatchResult struct {
	Index   int    `json:"index"`
	Success bool   `json:"success"`
	EventID string `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Service interface {
	Track(ctx context.Context, req TrackRequest) (*UsageEvent, error)
	Convert(ctx context.Context, req ConvertRequest) (*UsageEvent, error)
	Batch(ctx context.Context, domainFrom, domainTo, ip, userAgent string, items []BatchItem) []BatchResult
	ListByDomain(ctx context.Context, domain string, limit int) ([]UsageEvent, error)
}

var (
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrMissingCode      = errors.New("missing_code")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrMissingCurrency  = errors.New("missing_currency")
	ErrInvalidDomain    = errors.New("invalid_domain")
)
