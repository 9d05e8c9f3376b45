package ratelimit

import (
	"context"
	"time"

	"github.com/affcd/gateway/pkg/db"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type storeLimiter struct {
	db    *gorm.DB
	genID *snowflake.Node
}

// NewStoreLimiter returns a limiter backed by rate_limit_windows rows. The
// increment is a conditional UPDATE guarded by request_count < limit, so
// concurrent requests cannot push a bucket past its limit.
func NewStoreLimiter(conn *gorm.DB, genID *snowflake.Node) Limiter {
	return &storeLimiter{db: conn, genID: genID}
}

func (l *storeLimiter) Allow(ctx context.Context, identifier, action string, limit int, window time.Duration) (Result, error) {
	now := time.Now()
	start := windowStart(now, window)
	end := start.Add(window)

	result := Result{Limit: limit, ResetAt: end}

	for attempt := 0; attempt < 2; attempt++ {
		res := l.db.WithContext(ctx).
			Model(&RateLimitWindow{}).
			Where("identifier = ? AND action_type = ? AND window_start = ? AND request_count < ?",
				identifier, action, start, limit).
			Updates(map[string]any{
				"request_count": gorm.Expr("request_count + 1"),
				"updated_at":    now.UTC(),
			})
		if res.Error != nil {
			return Result{}, res.Error
		}
		if res.RowsAffected > 0 {
			count, err := l.currentCount(ctx, identifier, action, start)
			if err != nil {
				return Result{}, err
			}
			result.Allowed = true
			result.Remaining = max(limit-count, 0)
			return result, nil
		}

		// Either the bucket does not exist yet or it is full.
		count, err := l.currentCount(ctx, identifier, action, start)
		if err != nil {
			return Result{}, err
		}
		if count >= limit {
			if err := l.markBlocked(ctx, identifier, action, start); err != nil {
				return Result{}, err
			}
			result.Allowed = false
			result.Remaining = 0
			return result, nil
		}

		insertErr := l.db.WithContext(ctx).Create(&RateLimitWindow{
			ID:           l.genID.Generate(),
			Identifier:   identifier,
			ActionType:   action,
			WindowStart:  start,
			WindowEnd:    end,
			RequestCount: 1,
			CreatedAt:    now.UTC(),
			UpdatedAt:    now.UTC(),
		}).Error
		if insertErr == nil {
			result.Allowed = true
			result.Remaining = max(limit-1, 0)
			return result, nil
		}
		if !db.IsDuplicateKeyErr(insertErr) {
			return Result{}, insertErr
		}
		// Lost the insert race; retry the conditional update once.
	}

	result.Allowed = false
	result.Remaining = 0
	return result, nil
}

func (l *storeLimiter) currentCount(ctx context.Context, identifier, action string, start time.Time) (int, error) {
	var bucket RateLimitWindow
	err := l.db.WithContext(ctx).
		Where("identifier = ? AND action_type = ? AND window_start = ?", identifier, action, start).
		Limit(1).
		Find(&bucket).Error
	if err != nil {
		return 0, err
	}
	return bucket.RequestCount, nil
}

func (l *storeLimiter) markBlocked(ctx context.Context, identifier, action string, start time.Time) error {
	return l.db.WithContext(ctx).
		Model(&RateLimitWindow{}).
		Where("identifier = ? AND action_type = ? AND window_start = ? AND is_blocked = ?",
			identifier, action, start, false).
		Update("is_blocked", true).Error
}

// DeleteExpiredWindows removes buckets whose window ended before the cutoff.
// The scheduler calls this hourly; running it twice is harmless.
func DeleteExpiredWindows(ctx context.Context, conn *gorm.DB, before time.Time) (int64, error) {
	res := conn.WithContext(ctx).
		Where("window_end < ?", before).
		Delete(&RateLimitWindow{})
	return res.RowsAffected, res.Error
}
