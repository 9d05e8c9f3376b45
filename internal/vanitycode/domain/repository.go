package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, code *VanityCode) error
	Update(ctx context.Context, db *gorm.DB, code *VanityCode) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*VanityCode, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*VanityCode, error)
	ListByDomain(ctx context.Context, db *gorm.DB, domain string) ([]VanityCode, error)
	IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	IncrementConversion(ctx context.Context, db *gorm.DB, id snowflake.ID, amountCents int64) error
	ExpireBefore(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
	StatsByDomain(ctx context.Context, db *gorm.DB, domain string) (DomainStats, error)
}
