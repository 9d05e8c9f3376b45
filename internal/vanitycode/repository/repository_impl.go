package repository

import (
	"context"
	"time"

	"github.com/affcd/gateway/internal/vanitycode/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, code *domain.VanityCode) error {
	return db.WithContext(ctx).Create(code).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, code *domain.VanityCode) error {
	return db.WithContext(ctx).Save(code).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Delete(&domain.VanityCode{}, "id = ?", id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.VanityCode, error) {
	var record domain.VanityCode
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&record).Error; err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.VanityCode, error) {
	var record domain.VanityCode
	if err := db.WithContext(ctx).Where("code = ?", code).Limit(1).Find(&record).Error; err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListByDomain(ctx context.Context, db *gorm.DB, domainName string) ([]domain.VanityCode, error) {
	var records []domain.VanityCode
	err := db.WithContext(ctx).
		Where("domain = ?", domainName).
		Order("created_at desc").
		Find(&records).Error
	return records, err
}

func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).
		Model(&domain.VanityCode{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"updated_at":  time.Now().UTC(),
		}).Error
}

func (r *repo) IncrementConversion(ctx context.Context, db *gorm.DB, id snowflake.ID, amountCents int64) error {
	return db.WithContext(ctx).
		Model(&domain.VanityCode{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"conversion_count": gorm.Expr("conversion_count + 1"),
			"revenue_cents":    gorm.Expr("revenue_cents + ?", amountCents),
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *repo) ExpireBefore(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.VanityCode{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", domain.CodeActive, now).
		Updates(map[string]any{
			"status":     domain.CodeExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func (r *repo) StatsByDomain(ctx context.Context, db *gorm.DB, domainName string) (domain.DomainStats, error) {
	stats := domain.DomainStats{Domain: domainName}

	type row struct {
		TotalCodes       int64
		ActiveCodes      int64
		TotalUsage       int64
		TotalConversions int64
		RevenueCents     int64
	}
	var agg row
	err := db.WithContext(ctx).
		Model(&domain.VanityCode{}).
		Select(
			"COUNT(*) AS total_codes, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS active_codes, "+
				"COALESCE(SUM(usage_count), 0) AS total_usage, "+
				"COALESCE(SUM(conversion_count), 0) AS total_conversions, "+
				"COALESCE(SUM(revenue_cents), 0) AS revenue_cents",
			domain.CodeActive,
		).
		Where("domain = ?", domainName).
		Scan(&agg).Error
	if err != nil {
		return stats, err
	}

	stats.TotalCodes = agg.TotalCodes
	stats.ActiveCodes = agg.ActiveCodes
	stats.TotalUsage = agg.TotalUsage
	stats.TotalConversions = agg.TotalConversions
	stats.RevenueCents = agg.RevenueCents
	if agg.TotalUsage > 0 {
		stats.ConversionRate = float64(agg.TotalConversions) / float64(agg.TotalUsage)
	}
	return stats, nil
}
