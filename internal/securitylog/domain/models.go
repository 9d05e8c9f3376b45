package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Well-known event types. Callers may record others; these are the ones the
// gateway emits itself.
const (
	EventDomainRegistered    = "domain_registered"
	EventDomainSuspended     = "domain_suspended"
	EventDomainDeleted       = "domain_deleted"
	EventKeyRotated          = "key_rotated"
	EventVerificationFailed  = "verification_failed"
	EventSignatureInvalid    = "signature_invalid"
	EventAuthFailed          = "auth_failed"
	EventRateLimitExceeded   = "rate_limit_exceeded"
	EventEndpointDenied      = "endpoint_denied"
	EventWebhookDeliveryDead = "webhook_delivery_dead"
)

// SecurityLogEntry is an append-only record of a security-relevant event.
// Entries are never updated or deleted through the service.
type SecurityLogEntry struct {
	ID        snowflake.ID      `json:"id" gorm:"primaryKey"`
	EventType string            `json:"event_type" gorm:"index"`
	Severity  Severity          `json:"severity" gorm:"index"`
	Domain    *string           `json:"domain,omitempty" gorm:"index"`
	IPAddress *string           `json:"ip_address,omitempty"`
	UserAgent *string           `json:"user_agent,omitempty"`
	Details   datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at" gorm:"index"`
}

func (SecurityLogEntry) TableName() string {
	return "security_log_entries"
}

type LogCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	EventType string
	Severity  Severity
	Domain    string
	StartAt   *time.Time
	EndAt     *time.Time
	Cursor    *LogCursor
	Limit     int
}
