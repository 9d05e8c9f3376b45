package service

import (
	"context"
	"testing"
	"time"

	"github.com/affcd/gateway/internal/clock"
	commissiondomain "github.com/affcd/gateway/internal/commission/domain"
	"github.com/affcd/gateway/internal/metrics"
	"github.com/affcd/gateway/internal/usageevent/domain"
	"github.com/affcd/gateway/internal/usageevent/repository"
	vanitydomain "github.com/affcd/gateway/internal/vanitycode/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubCommission struct {
	calc *commissiondomain.Calculation
	err  error
}

func (s *stubCommission) Calculate(context.Context, commissiondomain.CalculateRequest) (*commissiondomain.Calculation, error) {
	return s.calc, s.err
}

func (s *stubCommission) CreateRule(context.Context, commissiondomain.CreateRuleRequest) (*commissiondomain.CommissionRule, error) {
	return nil, nil
}

func (s *stubCommission) DeleteRule(context.Context, string) error { return nil }

func (s *stubCommission) GetRule(context.Context, string) (*commissiondomain.CommissionRule, []commissiondomain.CommissionTier, error) {
	return nil, nil, nil
}

func (s *stubCommission) ListRules(context.Context) ([]commissiondomain.CommissionRule, error) {
	return nil, nil
}

type stubCodes struct {
	conversions int
	lastAmount  int64
}

func (s *stubCodes) Create(context.Context, vanitydomain.CreateRequest) (*vanitydomain.VanityCode, error) {
	return nil, nil
}

func (s *stubCodes) Update(context.Context, vanitydomain.UpdateRequest) (*vanitydomain.VanityCode, error) {
	return nil, nil
}

func (s *stubCodes) Delete(context.Context, string) error { return nil }

func (s *stubCodes) Get(context.Context, string) (*vanitydomain.VanityCode, error) {
	return nil, nil
}

func (s *stubCodes) ListByDomain(context.Context, string) ([]vanitydomain.VanityCode, error) {
	return nil, nil
}

func (s *stubCodes) Validate(context.Context, string, string) (vanitydomain.ValidationResult, error) {
	return vanitydomain.ValidationResult{}, nil
}

func (s *stubCodes) RecordConversion(_ context.Context, _, _ string, amountCents int64) error {
	s.conversions++
	s.lastAmount = amountCents
	return nil
}

func (s *stubCodes) ExpireCodes(context.Context) (int64, error) { return 0, nil }

func (s *stubCodes) Stats(context.Context, string) (vanitydomain.DomainStats, error) {
	return vanitydomain.DomainStats{}, nil
}

func newTestService(t *testing.T, commission commissiondomain.Service) (*Service, *stubCodes) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.UsageEvent{}))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)

	codes := &stubCodes{}
	svc := &Service{
		db:    conn,
		log:   zap.NewNop(),
		genID: node,
		clock: clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		repo:  repository.Provide(),
		metrics: &metrics.Metrics{
			EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "test_events_ingested_total",
			}, []string{"event_type"}),
		},
		commission: commission,
		codes:      codes,
	}
	return svc, codes
}

func TestTrackPersistsEvent(t *testing.T) {
	svc, _ := newTestService(t, &stubCommission{err: commissiondomain.ErrNoRule})
	ctx := context.Background()

	event, err := svc.Track(ctx, domain.TrackRequest{
		DomainFrom: "https://shop.example.com",
		DomainTo:   "master.example.net",
		Code:       "summer20",
		IPAddress:  "203.0.113.9",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.EventTrack, event.EventType)
	assert.Equal(t, "shop.example.com", event.DomainFrom)
	assert.Equal(t, "SUMMER20", event.Code)
	assert.Equal(t, domain.StatusSuccess, event.Status)

	events, err := svc.ListByDomain(ctx, "shop.example.com", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestConvertComputesCommission(t *testing.T) {
	svc, codes := newTestService(t, &stubCommission{
		calc: &commissiondomain.Calculation{CommissionCents: 1500, EffectiveRateBps: 750},
	})

	event, err := svc.Convert(context.Background(), domain.ConvertRequest{
		TrackRequest: domain.TrackRequest{
			DomainFrom: "shop.example.com",
			Code:       "SUMMER20",
		},
		AmountCents: 20000,
		Currency:    "usd",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 20000, event.ConversionValueCents)
	assert.Equal(t, "USD", event.Currency)
	assert.EqualValues(t, 1500, event.CommissionCents)
	assert.EqualValues(t, 750, event.CommissionRateBps)
	assert.Equal(t, 1, codes.conversions)
	assert.EqualValues(t, 20000, codes.lastAmount)
}

func TestTrackIdempotencyKeyReplays(t *testing.T) {
	svc, _ := newTestService(t, &stubCommission{err: commissiondomain.ErrNoRule})
	ctx := context.Background()

	req := domain.TrackRequest{
		DomainFrom:     "shop.example.com",
		Code:           "SUMMER20",
		IdempotencyKey: "client-retry-1",
	}

	first, err := svc.Track(ctx, req)
	require.NoError(t, err)

	second, err := svc.Track(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	events, err := svc.ListByDomain(ctx, "shop.example.com", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestConvertIdempotencyKeyReplays(t *testing.T) {
	svc, codes := newTestService(t, &stubCommission{
		calc: &commissiondomain.Calculation{CommissionCents: 500, EffectiveRateBps: 250},
	})
	ctx := context.Background()

	req := domain.ConvertRequest{
		TrackRequest: domain.TrackRequest{
			DomainFrom:     "shop.example.com",
			Code:           "SUMMER20",
			IdempotencyKey: "order-991",
		},
		AmountCents: 20000,
		Currency:    "USD",
	}

	first, err := svc.Convert(ctx, req)
	require.NoError(t, err)

	// The replay returns the stored event and never double-counts the
	// conversion against the code.
	second, err := svc.Convert(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.EqualValues(t, 500, second.CommissionCents)
	assert.Equal(t, 1, codes.conversions)

	events, err := svc.ListByDomain(ctx, "shop.example.com", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestConvertWithoutRuleStillIngests(t *testing.T) {
	svc, _ := newTestService(t, &stubCommission{err: commissiondomain.ErrNoRule})

	event, err := svc.Convert(context.Background(), domain.ConvertRequest{
		TrackRequest: domain.TrackRequest{
			DomainFrom: "shop.example.com",
			Code:       "SUMMER20",
		},
		AmountCents: 5000,
		Currency:    "EUR",
	})
	require.NoError(t, err)
	assert.Zero(t, event.CommissionCents)
	assert.Zero(t, event.CommissionRateBps)
}

func TestBatchPartialFailure(t *testing.T) {
	svc, _ := newTestService(t, &stubCommission{err: commissiondomain.ErrNoRule})
	ctx := context.Background()

	items := []domain.BatchItem{
		{Type: domain.EventTrack, Code: "FIRST1"},
		{Type: domain.EventConversion, Code: "BROKEN1"}, // no amount
		{Type: domain.EventTrack, Code: "THIRD1"},
	}

	results := svc.Batch(ctx, "shop.example.com", "master.example.net", "203.0.113.9", "ua", items)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.NotEmpty(t, results[0].EventID)

	assert.False(t, results[1].Success)
	assert.Equal(t, domain.ErrInvalidAmount.Error(), results[1].Error)

	// The malformed middle item never aborts the rest.
	assert.True(t, results[2].Success)
	assert.Equal(t, 2, results[2].Index)

	events, err := svc.ListByDomain(ctx, "shop.example.com", 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestBatchRejectsUnknownType(t *testing.T) {
	svc, _ := newTestService(t, &stubCommission{err: commissiondomain.ErrNoRule})

	results := svc.Batch(context.Background(), "shop.example.com", "", "", "", []domain.BatchItem{
		{Type: "bogus", Code: "X12"},
	})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, domain.ErrInvalidEventType.Error(), results[0].Error)
}
