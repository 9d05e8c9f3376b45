package addons

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/affcd/gateway/internal/cache"
	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	credentialrepository "github.com/affcd/gateway/internal/credential/repository"
	credentialservice "github.com/affcd/gateway/internal/credential/service"
)

func newTestService(t *testing.T) (Service, string) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&credentialdomain.AuthorizedDomain{}))

	node, err := snowflake.NewNode(6)
	require.NoError(t, err)

	credential := credentialservice.New(credentialservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  credentialrepository.Provide(),
		Cache: cache.NewMemoryCache(),
		Cfg: config.Config{
			Security: config.SecurityConfig{SealKey: "test-seal"},
			Cache:    config.CacheConfig{DomainTTL: time.Minute},
		},
	})

	secret, err := credential.Create(context.Background(), credentialdomain.CreateRequest{
		DomainURL: "shop.example.com",
	})
	require.NoError(t, err)

	svc := New(Params{
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Credential: credential,
	})
	return svc, secret.DomainID
}

func TestRegisterAndStatus(t *testing.T) {
	svc, domainID := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Register(ctx, domainID, "Analytics", "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "analytics", entry.Name)
	assert.Equal(t, "active", entry.Status)

	got, err := svc.Status(ctx, domainID, "analytics")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", got.Version)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), got.RegisteredAt)
}

func TestRegisterReplacesVersion(t *testing.T) {
	svc, domainID := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domainID, "analytics", "1.0.0")
	require.NoError(t, err)
	_, err = svc.Register(ctx, domainID, "analytics", "2.0.0")
	require.NoError(t, err)

	entries, err := svc.List(ctx, domainID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2.0.0", entries[0].Version)
}

func TestUnregisterRemovesEntry(t *testing.T) {
	svc, domainID := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, domainID, "analytics", "1.0.0")
	require.NoError(t, err)
	require.NoError(t, svc.Unregister(ctx, domainID, "analytics"))

	_, err = svc.Status(ctx, domainID, "analytics")
	assert.ErrorIs(t, err, ErrNotRegistered)

	assert.ErrorIs(t, svc.Unregister(ctx, domainID, "analytics"), ErrNotRegistered)
}

func TestRegisterRejectsBadNames(t *testing.T) {
	svc, domainID := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"", "a", "-leading", "has space", "UPPER CASE!"} {
		_, err := svc.Register(ctx, domainID, name, "1.0.0")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}
