package configsync

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
	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	credentialrepository "github.com/affcd/gateway/internal/credential/repository"
	credentialservice "github.com/affcd/gateway/internal/credential/service"
)

func newTestService(t *testing.T) (Service, credentialdomain.Service, string) {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&credentialdomain.AuthorizedDomain{}))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	cfg := config.Config{
		Security: config.SecurityConfig{
			SignatureSkew: 300 * time.Second,
			SealKey:       "test-seal",
		},
		RateLimit: config.RateLimitConfig{
			DefaultPerHour:   1000,
			DefaultPerMinute: 60,
		},
		Cache: config.CacheConfig{DomainTTL: time.Minute},
	}

	credential := credentialservice.New(credentialservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  credentialrepository.Provide(),
		Cache: cache.NewMemoryCache(),
		Cfg:   cfg,
	})

	secret, err := credential.Create(context.Background(), credentialdomain.CreateRequest{
		DomainURL: "shop.example.com",
	})
	require.NoError(t, err)

	svc := New(Params{
		Log:        zap.NewNop(),
		Cfg:        cfg,
		Credential: credential,
	})
	return svc, credential, secret.DomainID
}

func TestEffectiveFallsBackToGatewayDefaults(t *testing.T) {
	svc, credential, domainID := newTestService(t)

	record, err := credential.Get(context.Background(), domainID)
	require.NoError(t, err)

	cfg := svc.Effective(record)
	assert.Equal(t, "shop.example.com", cfg.Domain)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, 1000, cfg.RateLimitPerHour)
	assert.Equal(t, 300, cfg.SignatureSkewSecs)
	assert.Nil(t, cfg.Overlay)
}

func TestSetOverlayReplacesWholeBlob(t *testing.T) {
	svc, credential, domainID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetOverlay(ctx, domainID, map[string]any{"theme": "dark", "banner": true}))
	require.NoError(t, svc.SetOverlay(ctx, domainID, map[string]any{"theme": "light"}))

	record, err := credential.Get(ctx, domainID)
	require.NoError(t, err)

	cfg := svc.Effective(record)
	assert.Equal(t, map[string]any{"theme": "light"}, cfg.Overlay)
}

func TestMergeOverlayPatchesAndDeletes(t *testing.T) {
	svc, credential, domainID := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.SetOverlay(ctx, domainID, map[string]any{"theme": "dark", "banner": true}))
	require.NoError(t, svc.MergeOverlay(ctx, domainID, map[string]any{
		"theme":  "light",
		"banner": nil,
		"locale": "en",
	}))

	record, err := credential.Get(ctx, domainID)
	require.NoError(t, err)

	cfg := svc.Effective(record)
	assert.Equal(t, "light", cfg.Overlay["theme"])
	assert.Equal(t, "en", cfg.Overlay["locale"])
	assert.NotContains(t, cfg.Overlay, "banner")
}

func TestOverlayValidation(t *testing.T) {
	svc, _, domainID := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.SetOverlay(ctx, domainID, nil), ErrInvalidOverlay)
	assert.ErrorIs(t, svc.SetOverlay(ctx, domainID, map[string]any{" ": "x"}), ErrInvalidOverlay)
	assert.ErrorIs(t, svc.MergeOverlay(ctx, domainID, map[string]any{}), ErrInvalidOverlay)
}
