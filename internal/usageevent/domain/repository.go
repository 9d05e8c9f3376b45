package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *UsageEvent) error
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*UsageEvent, error)
	ListByDomain(ctx context.Context, db *gorm.DB, domain string, limit int) ([]UsageEvent, error)
}
