// Package domain contains the authorized domain records that every other
// gateway component treats as the source of truth for satellite identity.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type DomainStatus string

const (
	StatusPending   DomainStatus = "pending"
	StatusActive    DomainStatus = "active"
	StatusInactive  DomainStatus = "inactive"
	StatusSuspended DomainStatus = "suspended"
)

type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationFailed     VerificationStatus = "failed"
)

// AuthorizedDomain is a satellite site allowed to call the gateway.
// Domain is stored as a bare normalized host; APIKeyHash is the SHA-256 of
// the opaque key so lookups never touch the plaintext, and APISecretHash is
// an Argon2id PHC string that cannot be reversed to the shared secret.
// APISecretEnc is the same secret sealed under the gateway key so the
// signature validator can recompute request MACs; it is never exposed.
type AuthorizedDomain struct {
	ID                   snowflake.ID       `gorm:"primaryKey"`
	Domain               string             `gorm:"type:text;not null;uniqueIndex:ux_authorized_domains_domain"`
	APIKeyPrefix         string             `gorm:"column:api_key_prefix;type:text;not null;index"`
	APIKeyHash           string             `gorm:"column:api_key_hash;type:text;not null;uniqueIndex:ux_authorized_domains_key_hash"`
	PrevAPIKeyHash       *string            `gorm:"column:prev_api_key_hash;type:text;index"`
	APISecretHash        string             `gorm:"column:api_secret_hash;type:text;not null"`
	APISecretEnc         string             `gorm:"column:api_secret_enc;type:text;not null;default:''"`
	Status               DomainStatus       `gorm:"type:text;not null;default:'pending'"`
	VerificationStatus   VerificationStatus `gorm:"type:text;not null;default:'unverified'"`
	VerificationFailures int                `gorm:"not null;default:0"`
	SuspensionReason     *string            `gorm:"type:text"`
	RateLimitPerMinute   int                `gorm:"not null;default:0"`
	RateLimitPerHour     int                `gorm:"not null;default:0"`
	MaxDailyRequests     int                `gorm:"not null;default:0"`
	SecurityLevel        string             `gorm:"type:text;not null;default:'standard'"`
	AllowedEndpoints     pq.StringArray     `gorm:"type:text[]"`
	WebhookURL           *string            `gorm:"type:text"`
	WebhookSecret        *string            `gorm:"type:text"`
	WebhookEvents        pq.StringArray     `gorm:"type:text[]"`
	Metadata             datatypes.JSONMap  `gorm:"type:jsonb"`
	LastUsedAt           *time.Time         `gorm:"column:last_used_at"`
	PrevKeyExpiresAt     *time.Time         `gorm:"column:prev_key_expires_at"`
	VerifiedAt           *time.Time         `gorm:"column:verified_at"`
	CreatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt            time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuthorizedDomain) TableName() string { return "authorized_domains" }

// Authorized reports whether the domain may call authenticated endpoints.
func (d *AuthorizedDomain) Authorized() bool {
	return d.Status == StatusActive && d.VerificationStatus == VerificationVerified
}

// Provisioning reports whether a freshly registered domain is still inside
// the post-registration window. During that window the satellite may only
// fetch its configuration read-only; everything else waits for verification.
func (d *AuthorizedDomain) Provisioning(now time.Time, window time.Duration) bool {
	return d.Status == StatusPending && now.Sub(d.CreatedAt) <= window
}

// EndpointAllowed checks the per-domain permission set. An empty set means
// every endpoint is allowed.
func (d *AuthorizedDomain) EndpointAllowed(name string) bool {
	if len(d.AllowedEndpoints) == 0 {
		return true
	}
	for _, allowed := range d.AllowedEndpoints {
		if allowed == name {
			return true
		}
	}
	return false
}

// PrevKeyValid reports whether the pre-rotation key is still inside its
// grace window.
func (d *AuthorizedDomain) PrevKeyValid(now time.Time) bool {
	return d.PrevAPIKeyHash != nil && d.PrevKeyExpiresAt != nil && now.Before(*d.PrevKeyExpiresAt)
}

// WantsEvent reports whether the domain subscribed to a webhook event.
func (d *AuthorizedDomain) WantsEvent(event string) bool {
	if d.WebhookURL == nil || *d.WebhookURL == "" {
		return false
	}
	for _, e := range d.WebhookEvents {
		if e == event || e == "*" {
			return true
		}
	}
	return false
}
