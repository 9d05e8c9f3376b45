package domainauth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/affcd/gateway/internal/cache"
	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	credentialrepo "github.com/affcd/gateway/internal/credential/repository"
	credentialservice "github.com/affcd/gateway/internal/credential/service"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/affcd/gateway/internal/webhook"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func staticStatus(code int) *http.Client {
	return &http.Client{
		Transport: rtFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: code,
				Body:       io.NopCloser(strings.NewReader("")),
			}, nil
		}),
	}
}

type recordingSecurity struct {
	mu      sync.Mutex
	entries []securitydomain.RecordRequest
}

func (r *recordingSecurity) Record(_ context.Context, req securitydomain.RecordRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, req)
	return nil
}

func (r *recordingSecurity) List(context.Context, securitydomain.ListRequest) (securitydomain.ListResponse, error) {
	return securitydomain.ListResponse{}, nil
}

func (r *recordingSecurity) byType(eventType string) []securitydomain.RecordRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []securitydomain.RecordRequest
	for _, entry := range r.entries {
		if entry.EventType == eventType {
			out = append(out, entry)
		}
	}
	return out
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []webhook.Event
}

func (r *recordingDispatcher) Dispatch(_ *credentialdomain.AuthorizedDomain, event webhook.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type fixture struct {
	verifier   *verifier
	credential credentialdomain.Service
	security   *recordingSecurity
	webhooks   *recordingDispatcher
	domainID   string
}

func newFixture(t *testing.T, client *http.Client) *fixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&credentialdomain.AuthorizedDomain{}))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Cache.DomainTTL = time.Minute
	cfg.Verification.Path = "/.well-known/affcd-verification"
	cfg.Verification.MaxFailures = 5

	credSvc := credentialservice.New(credentialservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  credentialrepo.Provide(),
		Cache: cache.NewMemoryCache(),
		Cfg:   cfg,
	})

	created, err := credSvc.Create(context.Background(), credentialdomain.CreateRequest{
		DomainURL: "https://shop.example.com",
	})
	require.NoError(t, err)

	security := &recordingSecurity{}
	webhooks := &recordingDispatcher{}

	v := &verifier{
		log:        zap.NewNop(),
		client:     client,
		path:       cfg.Verification.Path,
		maxFails:   cfg.Verification.MaxFailures,
		clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		credential: credSvc,
		security:   security,
		webhooks:   webhooks,
	}

	return &fixture{
		verifier:   v,
		credential: credSvc,
		security:   security,
		webhooks:   webhooks,
		domainID:   created.DomainID,
	}
}

func TestVerifySuccessPromotesPendingDomain(t *testing.T) {
	f := newFixture(t, staticStatus(http.StatusOK))
	ctx := context.Background()

	result, err := f.verifier.Verify(ctx, f.domainID)
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, http.StatusOK, result.StatusCode)

	record, err := f.credential.Get(ctx, f.domainID)
	require.NoError(t, err)
	assert.Equal(t, credentialdomain.StatusActive, record.Status)
	assert.Equal(t, credentialdomain.VerificationVerified, record.VerificationStatus)
	assert.Zero(t, record.VerificationFailures)

	require.Len(t, f.webhooks.events, 1)
	assert.Equal(t, webhook.EventDomainVerified, f.webhooks.events[0].Type)
}

func TestRepeatedFailuresSuspendDomain(t *testing.T) {
	f := newFixture(t, staticStatus(http.StatusNotFound))
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		result, err := f.verifier.Verify(ctx, f.domainID)
		require.NoError(t, err)
		assert.False(t, result.Verified)
		assert.Equal(t, i, result.Failures)
		assert.False(t, result.Suspended, "failure %d must not suspend yet", i)
	}

	result, err := f.verifier.Verify(ctx, f.domainID)
	require.NoError(t, err)
	assert.True(t, result.Suspended)
	assert.Equal(t, 5, result.Failures)

	record, err := f.credential.Get(ctx, f.domainID)
	require.NoError(t, err)
	assert.Equal(t, credentialdomain.StatusSuspended, record.Status)
	require.NotNil(t, record.SuspensionReason)

	assert.Len(t, f.security.byType(securitydomain.EventVerificationFailed), 5)

	critical := f.security.byType(securitydomain.EventDomainSuspended)
	require.Len(t, critical, 1)
	assert.Equal(t, securitydomain.SeverityCritical, critical[0].Severity)
}

func TestSuspendedDomainStaysSuspendedOnSuccess(t *testing.T) {
	f := newFixture(t, staticStatus(http.StatusNotFound))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.verifier.Verify(ctx, f.domainID)
		require.NoError(t, err)
	}

	// The path coming back up does not lift the suspension or erase the
	// failure history; only an operator reactivation does.
	f.verifier.client = staticStatus(http.StatusOK)
	result, err := f.verifier.Verify(ctx, f.domainID)
	require.NoError(t, err)
	assert.False(t, result.Verified)
	assert.True(t, result.Suspended)
	assert.Equal(t, 5, result.Failures)

	record, err := f.credential.Get(ctx, f.domainID)
	require.NoError(t, err)
	assert.Equal(t, credentialdomain.StatusSuspended, record.Status)
	assert.Equal(t, 5, record.VerificationFailures)
}

func TestSuccessResetsFailureCounter(t *testing.T) {
	failing := newFixture(t, staticStatus(http.StatusServiceUnavailable))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := failing.verifier.Verify(ctx, failing.domainID)
		require.NoError(t, err)
	}

	failing.verifier.client = staticStatus(http.StatusOK)
	result, err := failing.verifier.Verify(ctx, failing.domainID)
	require.NoError(t, err)
	assert.True(t, result.Verified)

	record, err := failing.credential.Get(ctx, failing.domainID)
	require.NoError(t, err)
	assert.Zero(t, record.VerificationFailures)
	assert.Equal(t, credentialdomain.VerificationVerified, record.VerificationStatus)
}
