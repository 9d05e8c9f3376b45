package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testMetrics() *metrics.Metrics {
	return &metrics.Metrics{
		SchedulerJobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_scheduler_job_runs_total",
		}, []string{"job"}),
		SchedulerJobFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "test_scheduler_job_failures_total",
		}, []string{"job"}),
	}
}

func newTestScheduler(fake *clock.FakeClock) *Scheduler {
	return &Scheduler{
		log:     zap.NewNop(),
		cfg:     Config{}.withDefaults(),
		clock:   fake,
		metrics: testMetrics(),
		lastRun: map[string]time.Time{},
	}
}

func TestRunOnceHonoursCadence(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s := newTestScheduler(fake)

	var daily, hourly int
	s.jobs = []job{
		{"verify_domains", 24 * time.Hour, func(context.Context) error {
			daily++
			return nil
		}},
		{"cleanup_windows", time.Hour, func(context.Context) error {
			hourly++
			return nil
		}},
	}

	ctx := context.Background()
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, 1, daily)
	assert.Equal(t, 1, hourly)

	// Nothing is due again immediately.
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, 1, daily)
	assert.Equal(t, 1, hourly)

	fake.Advance(time.Hour)
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, 1, daily)
	assert.Equal(t, 2, hourly)

	fake.Advance(23 * time.Hour)
	require.NoError(t, s.RunOnce(ctx))
	assert.Equal(t, 2, daily)
	assert.Equal(t, 3, hourly)
}

func TestRunOnceJoinsFailures(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s := newTestScheduler(fake)

	boom := errors.New("probe unreachable")
	var ran bool
	s.jobs = []job{
		{"verify_domains", 24 * time.Hour, func(context.Context) error {
			return boom
		}},
		{"expire_codes", 24 * time.Hour, func(context.Context) error {
			ran = true
			return nil
		}},
	}

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "failing job must not stop the rest of the run")
}

func TestEnabledJobsFilter(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s := newTestScheduler(fake)
	s.cfg.EnabledJobs = []string{"expire_codes"}

	var verified, expired int
	s.jobs = []job{
		{"verify_domains", 24 * time.Hour, func(context.Context) error {
			verified++
			return nil
		}},
		{"expire_codes", 24 * time.Hour, func(context.Context) error {
			expired++
			return nil
		}},
	}

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, verified)
	assert.Equal(t, 1, expired)
}

func TestTimeoutIsNotFatal(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	s := newTestScheduler(fake)

	s.jobs = []job{
		{"verify_domains", 24 * time.Hour, func(ctx context.Context) error {
			return context.DeadlineExceeded
		}},
	}

	require.NoError(t, s.RunOnce(context.Background()))
}
