// Package ratelimit counts requests in fixed windows keyed by
// identifier × action × window start. Redis backs the counters when
// configured; otherwise an atomic database upsert does.
package ratelimit

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Action classes carry different limits per endpoint class.
const (
	ActionRegistration = "registration"
	ActionTracking     = "tracking"
	ActionValidation   = "validation"
	ActionDefault      = "default"
)

// RateLimitWindow is one counting bucket. request_count never exceeds the
// configured limit once is_blocked is set; denials do not increment.
type RateLimitWindow struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Identifier   string       `gorm:"type:text;not null;uniqueIndex:ux_rate_limit_windows_bucket,priority:1"`
	ActionType   string       `gorm:"column:action_type;type:text;not null;uniqueIndex:ux_rate_limit_windows_bucket,priority:2"`
	WindowStart  time.Time    `gorm:"column:window_start;not null;uniqueIndex:ux_rate_limit_windows_bucket,priority:3"`
	WindowEnd    time.Time    `gorm:"column:window_end;not null"`
	RequestCount int          `gorm:"column:request_count;not null;default:0"`
	IsBlocked    bool         `gorm:"column:is_blocked;not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RateLimitWindow) TableName() string { return "rate_limit_windows" }

// Result is the limiter verdict for one request.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}
