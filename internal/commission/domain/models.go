package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type CalculationMethod string

const (
	MethodPercentage  CalculationMethod = "percentage"
	MethodTiered      CalculationMethod = "tiered"
	MethodFlat        CalculationMethod = "flat"
	MethodProgressive CalculationMethod = "progressive"
)

func ValidMethod(m CalculationMethod) bool {
	switch m {
	case MethodPercentage, MethodTiered, MethodFlat, MethodProgressive:
		return true
	}
	return false
}

// RuleScope orders rule precedence: a group rule beats an affiliate rule,
// which beats the global default.
type RuleScope string

const (
	ScopeGlobal    RuleScope = "global"
	ScopeAffiliate RuleScope = "affiliate"
	ScopeGroup     RuleScope = "group"
)

// BonusPolicy configures the performance bonus multiplier. Sub-bonuses are
// additive on top of 1.0 and the total is capped at MaxMultiplier.
type BonusPolicy struct {
	VolumeTiers []VolumeBonus `json:"volume_tiers,omitempty"`

	ConversionRateThreshold float64 `json:"conversion_rate_threshold,omitempty"`
	ConversionBonus         float64 `json:"conversion_bonus,omitempty"`

	ConsistencyThreshold float64 `json:"consistency_threshold,omitempty"`
	ConsistencyBonus     float64 `json:"consistency_bonus,omitempty"`

	MaxMultiplier float64 `json:"max_multiplier,omitempty"`
}

type VolumeBonus struct {
	MinVolumeCents int64   `json:"min_volume_cents"`
	Bonus          float64 `json:"bonus"`
}

// TimePolicy configures the time-based adjustment multiplier. Matching
// adjustments compose multiplicatively and the product is clamped to
// [MinMultiplier, MaxMultiplier].
type TimePolicy struct {
	Seasonal []MonthAdjustment   `json:"seasonal,omitempty"`
	Hours    []HourWindow        `json:"hours,omitempty"`
	Weekdays []WeekdayAdjustment `json:"weekdays,omitempty"`
	NewBoost *NewAffiliateBoost  `json:"new_boost,omitempty"`

	MinMultiplier float64 `json:"min_multiplier,omitempty"`
	MaxMultiplier float64 `json:"max_multiplier,omitempty"`
}

type MonthAdjustment struct {
	Month      int     `json:"month"`
	Multiplier float64 `json:"multiplier"`
}

// HourWindow matches hours in [StartHour, EndHour). A window wrapping
// midnight is expressed as StartHour > EndHour.
type HourWindow struct {
	StartHour  int     `json:"start_hour"`
	EndHour    int     `json:"end_hour"`
	Multiplier float64 `json:"multiplier"`
}

type WeekdayAdjustment struct {
	Weekday    int     `json:"weekday"`
	Multiplier float64 `json:"multiplier"`
}

type NewAffiliateBoost struct {
	WindowDays int     `json:"window_days"`
	Multiplier float64 `json:"multiplier"`
}

// CommissionRule holds the commission policy for one scope. Monetary fields
// are minor units (cents); rates are basis points.
type CommissionRule struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey"`
	Scope       RuleScope         `json:"scope" gorm:"index"`
	AffiliateID *string           `json:"affiliate_id,omitempty" gorm:"index"`
	GroupID     *string           `json:"group_id,omitempty" gorm:"index"`
	Method      CalculationMethod `json:"method"`

	RateBps            int64  `json:"rate_bps"`
	FlatAmountCents    int64  `json:"flat_amount_cents"`
	MinSaleCents       int64  `json:"min_sale_cents"`
	MaxCommissionCents *int64 `json:"max_commission_cents,omitempty"`

	// Progressive method: the rate starts at RateBps and gains
	// ProgressiveIncBps for every ProgressiveStepCents of sale amount,
	// capped at ProgressiveMaxBps.
	ProgressiveStepCents int64 `json:"progressive_step_cents,omitempty"`
	ProgressiveIncBps    int64 `json:"progressive_inc_bps,omitempty"`
	ProgressiveMaxBps    int64 `json:"progressive_max_bps,omitempty"`

	Bonus *BonusPolicy `json:"bonus,omitempty" gorm:"serializer:json"`
	Time  *TimePolicy  `json:"time,omitempty" gorm:"serializer:json"`

	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (CommissionRule) TableName() string {
	return "commission_rules"
}

// CommissionTier is one marginal band of a tiered rule. A nil MaxAmountCents
// leaves the band open-ended.
type CommissionTier struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	RuleID         snowflake.ID `json:"rule_id" gorm:"index"`
	MinAmountCents int64        `json:"min_amount_cents"`
	MaxAmountCents *int64       `json:"max_amount_cents,omitempty"`
	RateBps        int64        `json:"rate_bps"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (CommissionTier) TableName() string {
	return "commission_tiers"
}

// Breakdown records every step of a calculation so the result can be
// reproduced from the log line alone.
type Breakdown struct {
	Method           CalculationMethod  `json:"method"`
	RuleID           string             `json:"rule_id"`
	Scope            RuleScope          `json:"scope"`
	AmountCents      int64              `json:"amount_cents"`
	BaseCents        int64              `json:"base_cents"`
	TierLines        []TierLine         `json:"tier_lines,omitempty"`
	CapApplied       bool               `json:"cap_applied"`
	BonusMultiplier  float64            `json:"bonus_multiplier"`
	BonusComponents  map[string]float64 `json:"bonus_components,omitempty"`
	TimeMultiplier   float64            `json:"time_multiplier"`
	TimeComponents   map[string]float64 `json:"time_components,omitempty"`
	FinalCents       int64              `json:"final_cents"`
	EffectiveRateBps int64              `json:"effective_rate_bps"`
}

type TierLine struct {
	MinAmountCents  int64  `json:"min_amount_cents"`
	MaxAmountCents  *int64 `json:"max_amount_cents,omitempty"`
	RateBps         int64  `json:"rate_bps"`
	PortionCents    int64  `json:"portion_cents"`
	CommissionCents int64  `json:"commission_cents"`
}

type Calculation struct {
	CommissionCents  int64     `json:"commission_cents"`
	Currency         string    `json:"currency"`
	EffectiveRateBps int64     `json:"effective_rate_bps"`
	Breakdown        Breakdown `json:"breakdown"`
}
