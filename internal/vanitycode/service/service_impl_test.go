package service

import (
	"context"
	"testing"
	"time"

	"github.com/affcd/gateway/internal/cache"
	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/vanitycode/domain"
	"github.com/affcd/gateway/internal/vanitycode/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.VanityCode{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := &Service{
		db:    conn,
		log:   zap.NewNop(),
		genID: node,
		clock: fake,
		repo:  repository.Provide(),
		cache: cache.NewMemoryCache(),
		ttl:   2 * time.Minute,
	}
	return svc, fake
}

func TestCreateAndValidate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		Code:      "summer20",
		Domain:    "https://shop.example.com/",
		TargetURL: "https://shop.example.com/deals",
	})
	require.NoError(t, err)
	assert.Equal(t, "SUMMER20", created.Code)
	assert.Equal(t, "shop.example.com", created.Domain)
	assert.Equal(t, domain.CodeActive, created.Status)

	res, err := svc.Validate(ctx, "Summer20", "shop.example.com")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "https://shop.example.com/deals", res.TargetURL)

	// Usage counted once per valid lookup.
	record, err := svc.Get(ctx, created.ID.String())
	require.NoError(t, err)
	assert.EqualValues(t, 1, record.UsageCount)
}

func TestValidateReturnsAffiliateCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		Code:          "gosummer",
		Domain:        "shop.example.com",
		AffiliateID:   "aff-17",
		AffiliateCode: "partner-17",
		TargetURL:     "https://shop.example.com/deals",
	})
	require.NoError(t, err)
	require.NotNil(t, created.AffiliateCode)
	assert.Equal(t, "PARTNER-17", *created.AffiliateCode)

	res, err := svc.Validate(ctx, "GOSUMMER", "shop.example.com")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "aff-17", res.AffiliateID)
	assert.Equal(t, "PARTNER-17", res.AffiliateCode)
}

func TestValidateSuspendedCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		Code:      "PAUSED1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/p",
	})
	require.NoError(t, err)

	suspended := domain.CodeSuspended
	_, err = svc.Update(ctx, domain.UpdateRequest{
		CodeID: created.ID.String(),
		Status: &suspended,
	})
	require.NoError(t, err)

	res, err := svc.Validate(ctx, "PAUSED1", "shop.example.com")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonInactiveCode, res.Reason)
}

func TestValidateUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.Validate(context.Background(), "NOPE123", "shop.example.com")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonInvalidCode, res.Reason)
}

func TestValidateForeignDomain(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{
		Code:      "PARTNER1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/p",
	})
	require.NoError(t, err)

	res, err := svc.Validate(ctx, "PARTNER1", "other.example.org")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonUnauthorisedDomain, res.Reason)
}

func TestValidateExpiredCode(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	expires := fake.Now().Add(time.Hour)
	_, err := svc.Create(ctx, domain.CreateRequest{
		Code:      "FLASH1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/flash",
		ExpiresAt: &expires,
	})
	require.NoError(t, err)

	res, err := svc.Validate(ctx, "FLASH1", "shop.example.com")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	fake.Advance(2 * time.Hour)

	// Expiry beats domain ownership: the expired reason is reported even
	// though the code still belongs to the caller.
	res, err = svc.Validate(ctx, "FLASH1", "shop.example.com")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonExpiredCode, res.Reason)
}

func TestValidateInactiveCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		Code:      "PAUSED1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/x",
	})
	require.NoError(t, err)

	inactive := domain.CodeInactive
	_, err = svc.Update(ctx, domain.UpdateRequest{CodeID: created.ID.String(), Status: &inactive})
	require.NoError(t, err)

	res, err := svc.Validate(ctx, "PAUSED1", "shop.example.com")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.ReasonInactiveCode, res.Reason)
}

func TestDuplicateCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := domain.CreateRequest{
		Code:      "TWICE1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/x",
	}
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrCodeExists)
}

func TestExpireCodesSweep(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	expires := fake.Now().Add(time.Minute)
	_, err := svc.Create(ctx, domain.CreateRequest{
		Code:      "SWEEP1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/x",
		ExpiresAt: &expires,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{
		Code:      "KEEP1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/y",
	})
	require.NoError(t, err)

	fake.Advance(time.Hour)

	expired, err := svc.ExpireCodes(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)

	codes, err := svc.ListByDomain(ctx, "shop.example.com")
	require.NoError(t, err)
	statuses := map[string]domain.CodeStatus{}
	for _, code := range codes {
		statuses[code.Code] = code.Status
	}
	assert.Equal(t, domain.CodeExpired, statuses["SWEEP1"])
	assert.Equal(t, domain.CodeActive, statuses["KEEP1"])
}

func TestConversionStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{
		Code:      "STATS1",
		Domain:    "shop.example.com",
		TargetURL: "https://shop.example.com/x",
	})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		res, err := svc.Validate(ctx, "STATS1", "shop.example.com")
		require.NoError(t, err)
		require.True(t, res.Valid)
	}
	require.NoError(t, svc.RecordConversion(ctx, "STATS1", "shop.example.com", 4999))

	stats, err := svc.Stats(ctx, "shop.example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalCodes)
	assert.EqualValues(t, 4, stats.TotalUsage)
	assert.EqualValues(t, 1, stats.TotalConversions)
	assert.EqualValues(t, 4999, stats.RevenueCents)
	assert.InDelta(t, 0.25, stats.ConversionRate, 1e-9)
}
