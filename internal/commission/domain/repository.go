package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertRule(ctx context.Context, db *gorm.DB, rule *CommissionRule, tiers []CommissionTier) error
	DeleteRule(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindRuleByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CommissionRule, error)
	FindGlobalRule(ctx context.Context, db *gorm.DB) (*CommissionRule, error)
	FindAffiliateRule(ctx context.Context, db *gorm.DB, affiliateID string) (*CommissionRule, error)
	FindGroupRule(ctx context.Context, db *gorm.DB, groupID string) (*CommissionRule, error)
	ListRules(ctx context.Context, db *gorm.DB) ([]CommissionRule, error)
	TiersForRule(ctx context.Context, db *gorm.DB, ruleID snowflake.ID) ([]CommissionTier, error)
}
