package service

import (
	"context"
	"sort"
	"strings"

	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/commission/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("commission.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Calculate(ctx context.Context, req domain.CalculateRequest) (*domain.Calculation, error) {
	if req.AmountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.AffiliateCode) == "" {
		return nil, domain.ErrMissingCode
	}

	rule, err := s.resolveRule(ctx, req)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNoRule
	}

	// Below-minimum sales are rejected before any math runs.
	if rule.MinSaleCents > 0 && req.AmountCents < rule.MinSaleCents {
		return nil, domain.ErrBelowMinimum
	}

	var tiers []domain.CommissionTier
	if rule.Method == domain.MethodTiered {
		tiers, err = s.repo.TiersForRule(ctx, s.db, rule.ID)
		if err != nil {
			return nil, err
		}
	}

	base, tierLines := domain.ComputeBase(rule, tiers, req.AmountCents)

	capped := false
	if rule.MaxCommissionCents != nil && base > *rule.MaxCommissionCents {
		base = *rule.MaxCommissionCents
		capped = true
	}

	at := s.clock.Now()
	if req.At != nil {
		at = req.At.UTC()
	}

	bonusMult, bonusParts := domain.BonusMultiplier(rule.Bonus, req.Performance)
	timeMult, timeParts := domain.TimeMultiplier(rule.Time, at, req.AffiliateSince)

	final := domain.ApplyMultipliers(base, bonusMult, timeMult)
	effective := domain.EffectiveRateBps(final, req.AmountCents)

	breakdown := domain.Breakdown{
		Method:           rule.Method,
		RuleID:           rule.ID.String(),
		Scope:            rule.Scope,
		AmountCents:      req.AmountCents,
		BaseCents:        base,
		TierLines:        tierLines,
		CapApplied:       capped,
		BonusMultiplier:  bonusMult,
		BonusComponents:  bonusParts,
		TimeMultiplier:   timeMult,
		TimeComponents:   timeParts,
		FinalCents:       final,
		EffectiveRateBps: effective,
	}

	s.log.Info("commission calculated",
		zap.String("affiliate_code", req.AffiliateCode),
		zap.String("rule_id", breakdown.RuleID),
		zap.String("method", string(rule.Method)),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int64("base_cents", base),
		zap.Bool("cap_applied", capped),
		zap.Float64("bonus_multiplier", bonusMult),
		zap.Float64("time_multiplier", timeMult),
		zap.Int64("final_cents", final),
		zap.Int64("effective_rate_bps", effective),
	)

	return &domain.Calculation{
		CommissionCents:  final,
		Currency:         strings.ToUpper(strings.TrimSpace(req.Currency)),
		EffectiveRateBps: effective,
		Breakdown:        breakdown,
	}, nil
}

// resolveRule picks the most specific rule: group beats affiliate beats the
// global default.
func (s *Service) resolveRule(ctx context.Context, req domain.CalculateRequest) (*domain.CommissionRule, error) {
	if groupID := strings.TrimSpace(req.GroupID); groupID != "" {
		rule, err := s.repo.FindGroupRule(ctx, s.db, groupID)
		if err != nil {
			return nil, err
		}
		if rule != nil {
			return rule, nil
		}
	}
	if affiliateID := strings.TrimSpace(req.AffiliateID); affiliateID != "" {
		rule, err := s.repo.FindAffiliateRule(ctx, s.db, affiliateID)
		if err != nil {
			return nil, err
		}
		if rule != nil {
			return rule, nil
		}
	}
	return s.repo.FindGlobalRule(ctx, s.db)
}

func (s *Service) CreateRule(ctx context.Context, req domain.CreateRuleRequest) (*domain.CommissionRule, error) {
	if !domain.ValidMethod(req.Method) {
		return nil, domain.ErrInvalidMethod
	}

	switch req.Scope {
	case domain.ScopeGlobal:
	case domain.ScopeAffiliate:
		if strings.TrimSpace(req.AffiliateID) == "" {
			return nil, domain.ErrInvalidScope
		}
	case domain.ScopeGroup:
		if strings.TrimSpace(req.GroupID) == "" {
			return nil, domain.ErrInvalidScope
		}
	default:
		return nil, domain.ErrInvalidScope
	}

	if req.Method == domain.MethodTiered {
		if err := validateTiers(req.Tiers); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	rule := &domain.CommissionRule{
		ID:                   s.genID.Generate(),
		Scope:                req.Scope,
		Method:               req.Method,
		RateBps:              req.RateBps,
		FlatAmountCents:      req.FlatAmountCents,
		MinSaleCents:         req.MinSaleCents,
		MaxCommissionCents:   req.MaxCommissionCents,
		ProgressiveStepCents: req.ProgressiveStepCents,
		ProgressiveIncBps:    req.ProgressiveIncBps,
		ProgressiveMaxBps:    req.ProgressiveMaxBps,
		Bonus:                req.Bonus,
		Time:                 req.Time,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if affiliate := strings.TrimSpace(req.AffiliateID); affiliate != "" {
		rule.AffiliateID = &affiliate
	}
	if group := strings.TrimSpace(req.GroupID); group != "" {
		rule.GroupID = &group
	}

	tiers := make([]domain.CommissionTier, 0, len(req.Tiers))
	for _, input := range req.Tiers {
		tiers = append(tiers, domain.CommissionTier{
			ID:             s.genID.Generate(),
			RuleID:         rule.ID,
			MinAmountCents: input.MinAmountCents,
			MaxAmountCents: input.MaxAmountCents,
			RateBps:        input.RateBps,
			CreatedAt:      now,
		})
	}

	if err := s.repo.InsertRule(ctx, s.db, rule, tiers); err != nil {
		return nil, err
	}

	s.log.Info("commission rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("scope", string(rule.Scope)),
		zap.String("method", string(rule.Method)),
	)
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, ruleID string) error {
	rule, err := s.mustFind(ctx, ruleID)
	if err != nil {
		return err
	}
	return s.repo.DeleteRule(ctx, s.db, rule.ID)
}

func (s *Service) GetRule(ctx context.Context, ruleID string) (*domain.CommissionRule, []domain.CommissionTier, error) {
	rule, err := s.mustFind(ctx, ruleID)
	if err != nil {
		return nil, nil, err
	}
	tiers, err := s.repo.TiersForRule(ctx, s.db, rule.ID)
	if err != nil {
		return nil, nil, err
	}
	return rule, tiers, nil
}

func (s *Service) ListRules(ctx context.Context) ([]domain.CommissionRule, error) {
	return s.repo.ListRules(ctx, s.db)
}

func (s *Service) mustFind(ctx context.Context, ruleID string) (*domain.CommissionRule, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(ruleID))
	if err != nil {
		return nil, domain.ErrInvalidRuleID
	}
	rule, err := s.repo.FindRuleByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNotFound
	}
	return rule, nil
}

// validateTiers requires at least one band, no negative bounds, and no
// overlapping ranges.
func validateTiers(tiers []domain.TierInput) error {
	if len(tiers) == 0 {
		return domain.ErrInvalidTiers
	}
	sorted := make([]domain.TierInput, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinAmountCents < sorted[j].MinAmountCents
	})

	var prevMax *int64
	for i, tier := range sorted {
		if tier.MinAmountCents < 0 || tier.RateBps < 0 {
			return domain.ErrInvalidTiers
		}
		if tier.MaxAmountCents != nil && *tier.MaxAmountCents <= tier.MinAmountCents {
			return domain.ErrInvalidTiers
		}
		if i > 0 {
			if prevMax == nil || tier.MinAmountCents < *prevMax {
				return domain.ErrInvalidTiers
			}
		}
		prevMax = tier.MaxAmountCents
	}
	return nil
}
