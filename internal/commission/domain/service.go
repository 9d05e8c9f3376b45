package domain

import (
	"context"
	"errors"
	"time"
)

type CalculateRequest struct {
	AmountCents    int64                `json:"amount_cents"`
	Currency       string               `json:"currency"`
	AffiliateCode  string               `json:"affiliate_code"`
	AffiliateID    string               `json:"affiliate_id"`
	GroupID        string               `json:"group_id"`
	At             *time.Time           `json:"at"`
	Performance    *PerformanceSnapshot `json:"performance"`
	AffiliateSince *time.Time           `json:"affiliate_since"`
}

type CreateRuleRequest struct {
	Scope       RuleScope         `json:"scope"`
	AffiliateID string            `json:"affiliate_id"`
	GroupID     string            `json:"group_id"`
	Method      CalculationMethod `json:"method"`

	RateBps            int64  `json:"rate_bps"`
	FlatAmountCents    int64  `json:"flat_amount_cents"`
	MinSaleCents       int64  `json:"min_sale_cents"`
	MaxCommissionCents *int64 `json:"max_commission_cents"`

	ProgressiveStepCents int64 `json:"progressive_step_cents"`
	ProgressiveIncBps    int64 `json:"progressive_inc_bps"`
	ProgressiveMaxBps    int64 `json:"progressive_max_bps"`

	Tiers []TierInput  `json:"tiers"`
	Bonus *BonusPolicy `json:"bonus"`
	Time  *TimePolicy  `json:"time"`
}

type TierInput struct {
	MinAmountCents int64  `json:"min_amount_cents"`
	MaxAmountCents *int64 `json:"max_amount_cents"`
	RateBps        int64  `json:"rate_bps"`
}

type Service interface {
	// Calculate resolves the effective rule for the affiliate and runs the
	// full pipeline: base, cap, bonus multiplier, time adjustment.
	Calculate(ctx context.Context, req CalculateRequest) (*Calculation, error)

	CreateRule(ctx context.Context, req CreateRuleRequest) (*CommissionRule, error)
	DeleteRule(ctx context.Context, ruleID string) error
	GetRule(ctx context.Context, ruleID string) (*CommissionRule, []CommissionTier, error)
	ListRules(ctx context.Context) ([]CommissionRule, error)
}

var (
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrMissingCode   = errors.New("missing_affiliate_code")
	ErrBelowMinimum  = errors.New("below_minimum_sale")
	ErrNoRule        = errors.New("no_commission_rule")
	ErrInvalidMethod = errors.New("invalid_method")
	ErrInvalidScope  = errors.New("invalid_scope")
	ErrInvalidTiers  = errors.New("invalid_tiers")
	ErrInvalidRuleID = errors.New("invalid_rule_id")
	ErrNotFound      = errors.New("rule_not_found")
)
