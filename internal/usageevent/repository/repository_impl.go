package repository

import (
	"context"

	"github.com/affcd/gateway/internal/usageevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.UsageEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, key string) (*domain.UsageEvent, error) {
	var event domain.UsageEvent
	err := db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Limit(1).
		Find(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) ListByDomain(ctx context.Context, db *gorm.DB, domainName string, limit int) ([]domain.UsageEvent, error) {
	var events []domain.UsageEvent
	stmt := db.WithContext(ctx).
		Where("domain_from = ?", domainName).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Find(&events).Error
	return events, err
}
