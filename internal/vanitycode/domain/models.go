package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CodeStatus string

const (
	CodeActive    CodeStatus = "active"
	CodeInactive  CodeStatus = "inactive"
	CodeSuspended CodeStatus = "suspended"
	CodeExpired   CodeStatus = "expired"
)

// ValidationReason explains why a code failed validation. Checks run in a
// fixed order, so a code that is both expired and foreign reports expiry.
type ValidationReason string

const (
	ReasonInvalidCode        ValidationReason = "invalid_code"
	ReasonInactiveCode       ValidationReason = "inactive_code"
	ReasonExpiredCode        ValidationReason = "expired_code"
	ReasonUnauthorisedDomain ValidationReason = "unauthorised_domain"
)

// VanityCode maps a short vanity alias to the underlying affiliate code and
// target URL, owned by exactly one authorized domain.
type VanityCode struct {
	ID              snowflake.ID      `json:"id" gorm:"primaryKey"`
	Code            string            `json:"code" gorm:"uniqueIndex"`
	Domain          string            `json:"domain" gorm:"index"`
	AffiliateID     *string           `json:"affiliate_id,omitempty" gorm:"index"`
	AffiliateCode   *string           `json:"affiliate_code,omitempty" gorm:"column:affiliate_code;index"`
	TargetURL       string            `json:"target_url"`
	Description     *string           `json:"description,omitempty"`
	Status          CodeStatus        `json:"status" gorm:"index"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	UsageCount      int64             `json:"usage_count"`
	ConversionCount int64             `json:"conversion_count"`
	RevenueCents    int64             `json:"revenue_cents" gorm:"column:revenue_cents"`
	Metadata        datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (VanityCode) TableName() string {
	return "vanity_codes"
}

func (c *VanityCode) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

var codePattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{2,63}$`)

// NormalizeCode uppercases and trims a raw code. Codes are case-insensitive
// on the wire but stored in canonical uppercase form.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func ValidCodeFormat(code string) bool {
	return codePattern.MatchString(code)
}

type ValidationResult struct {
	Valid         bool             `json:"valid"`
	Reason        ValidationReason `json:"reason,omitempty"`
	Code          string           `json:"code"`
	AffiliateID   string           `json:"affiliate_id,omitempty"`
	AffiliateCode string           `json:"affiliate_code,omitempty"`
	TargetURL     string           `json:"target_url,omitempty"`
}

type DomainStats struct {
	Domain           string  `json:"domain"`
	TotalCodes       int64   `json:"total_codes"`
	ActiveCodes      int64   `json:"active_codes"`
	TotalUsage       int64   `json:"total_usage"`
	TotalConversions int64   `json:"total_conversions"`
	RevenueCents     int64   `json:"revenue_cents"`
	ConversionRate   float64 `json:"conversion_rate"`
}
