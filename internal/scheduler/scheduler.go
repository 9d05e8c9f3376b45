// Package scheduler drives the periodic sweeps: daily domain re-verification,
// daily vanity code expiry, and hourly rate-limit window cleanup. Every job
// is idempotent, so overlapping runs across instances only repeat work.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/domainauth"
	"github.com/affcd/gateway/internal/metrics"
	"github.com/affcd/gateway/internal/ratelimit"
	vanitydomain "github.com/affcd/gateway/internal/vanitycode/domain"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler requires db, logger, clock, and services")

type job struct {
	name  string
	every time.Duration
	run   func(ctx context.Context) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Metrics  *metrics.Metrics
	Verifier domainauth.Verifier
	Codes    vanitydomain.Service
	Redis    *redis.Client `optional:"true"`
	Config   Config        `optional:"true"`
}

type Scheduler struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     Config
	clock   clock.Clock
	metrics *metrics.Metrics
	redis   *redis.Client

	jobs    []job
	lastRun map[string]time.Time
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Metrics == nil || p.Verifier == nil || p.Codes == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()

	s := &Scheduler{
		db:      p.DB,
		log:     p.Log.Named("scheduler"),
		cfg:     cfg,
		clock:   p.Clock,
		metrics: p.Metrics,
		redis:   p.Redis,
		lastRun: map[string]time.Time{},
	}
	s.jobs = []job{
		{"verify_domains", cfg.VerifyInterval, func(ctx context.Context) error {
			_, err := p.Verifier.VerifyActive(ctx)
			return err
		}},
		{"expire_codes", cfg.ExpireInterval, func(ctx context.Context) error {
			_, err := p.Codes.ExpireCodes(ctx)
			return err
		}},
		{"cleanup_windows", cfg.CleanupInterval, func(ctx context.Context) error {
			deleted, err := ratelimit.DeleteExpiredWindows(ctx, s.db, s.clock.Now())
			if err == nil && deleted > 0 {
				s.log.Info("rate limit windows cleaned", zap.Int64("deleted", deleted))
			}
			return err
		}},
	}
	return s, nil
}

// RunOnce runs every enabled job that is due. Errors are joined so one
// failing job never shadows another.
func (s *Scheduler) RunOnce(parent context.Context) error {
	now := s.clock.Now()
	var err error

	for _, j := range s.jobs {
		if !s.isJobEnabled(j.name) {
			continue
		}
		if last, ok := s.lastRun[j.name]; ok && now.Sub(last) < j.every {
			continue
		}
		s.lastRun[j.name] = now
		err = errors.Join(err, s.runJob(parent, j))
	}
	return err
}

func (s *Scheduler) runJob(parent context.Context, j job) error {
	if !s.acquireGuard(parent, j) {
		return nil
	}

	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	s.metrics.SchedulerJobRuns.WithLabelValues(j.name).Inc()
	start := s.clock.Now()

	err := j.run(ctx)
	if err == nil {
		s.log.Info("job finished",
			zap.String("job", j.name),
			zap.Duration("elapsed", s.clock.Now().Sub(start)),
		)
		return nil
	}

	s.metrics.SchedulerJobFails.WithLabelValues(j.name).Inc()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out", zap.String("job", j.name), zap.Error(err))
		return nil
	}
	s.log.Warn("job failed", zap.String("job", j.name), zap.Error(err))
	return fmt.Errorf("%s: %w", j.name, err)
}

// acquireGuard takes a best-effort distributed lock so concurrent instances
// do not all run the same sweep at once. Without redis every instance runs;
// the jobs tolerate that.
func (s *Scheduler) acquireGuard(ctx context.Context, j job) bool {
	if s.redis == nil {
		return true
	}
	key := "affcd:sched:" + j.name
	ok, err := s.redis.SetNX(ctx, key, "1", j.every/2).Result()
	if err != nil {
		s.log.Warn("scheduler guard unavailable", zap.String("job", j.name), zap.Error(err))
		return true
	}
	return ok
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// If EnabledJobs is empty, all jobs are enabled.
func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
