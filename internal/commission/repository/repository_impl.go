package repository

import (
	"context"

	"github.com/affcd/gateway/internal/commission/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRule(ctx context.Context, db *gorm.DB, rule *domain.CommissionRule, tiers []domain.CommissionTier) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rule).Error; err != nil {
			return err
		}
		if len(tiers) > 0 {
			if err := tx.Create(&tiers).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repo) DeleteRule(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&domain.CommissionTier{}, "rule_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.CommissionRule{}, "id = ?", id).Error
	})
}

func (r *repo) FindRuleByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CommissionRule, error) {
	var rule domain.CommissionRule
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&rule).Error; err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) FindGlobalRule(ctx context.Context, db *gorm.DB) (*domain.CommissionRule, error) {
	return r.findOne(ctx, db, "scope = ?", domain.ScopeGlobal)
}

func (r *repo) FindAffiliateRule(ctx context.Context, db *gorm.DB, affiliateID string) (*domain.CommissionRule, error) {
	return r.findOne(ctx, db, "scope = ? AND affiliate_id = ?", domain.ScopeAffiliate, affiliateID)
}

func (r *repo) FindGroupRule(ctx context.Context, db *gorm.DB, groupID string) (*domain.CommissionRule, error) {
	return r.findOne(ctx, db, "scope = ? AND group_id = ?", domain.ScopeGroup, groupID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.CommissionRule, error) {
	var rule domain.CommissionRule
	err := db.WithContext(ctx).
		Where(query, args...).
		Order("updated_at desc").
		Limit(1).
		Find(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) ListRules(ctx context.Context, db *gorm.DB) ([]domain.CommissionRule, error) {
	var rules []domain.CommissionRule
	err := db.WithContext(ctx).Order("created_at desc").Find(&rules).Error
	return rules, err
}

func (r *repo) TiersForRule(ctx context.Context, db *gorm.DB, ruleID snowflake.ID) ([]domain.CommissionTier, error) {
	var tiers []domain.CommissionTier
	err := db.WithContext(ctx).
		Where("rule_id = ?", ruleID).
		Order("min_amount_cents asc").
		Find(&tiers).Error
	return tiers, err
}
