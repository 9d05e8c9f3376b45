package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventValidation EventType = "validation"
	EventConversion EventType = "conversion"
	EventTrack      EventType = "track"
)

func ValidEventType(t EventType) bool {
	switch t {
	case EventValidation, EventConversion, EventTrack:
		return true
	}
	return false
}

type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailed  EventStatus = "failed"
	StatusPending EventStatus = "pending"
	StatusTimeout EventStatus = "timeout"
)

// UsageEvent is an append-only ingestion record. Monetary fields are minor
// units (cents) so persisted values never suffer binary float truncation.
// Rows are never mutated after insert.
type UsageEvent struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	DomainFrom string       `json:"domain_from" gorm:"index"`
	DomainTo   string       `json:"domain_to"`
	Code       string       `json:"code" gorm:"index"`
	EventType  EventType    `json:"event_type" gorm:"index"`
	Status     EventStatus  `json:"status"`

	IPAddress *string `json:"ip_address,omitempty"`
	UserAgent *string `json:"user_agent,omitempty"`

	ConversionValueCents int64  `json:"conversion_value_cents"`
	Currency             string `json:"currency"`
	CommissionRateBps    int64  `json:"commission_rate_bps"`
	CommissionCents      int64  `json:"commission_cents"`

	IdempotencyKey *string           `json:"idempotency_key,omitempty" gorm:"uniqueIndex:ux_usage_events_idem"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at" gorm:"index"`
}

func (UsageEvent) TableName() string {
	return "usage_events"
}
