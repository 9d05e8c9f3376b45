package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/affcd/gateway/internal/metrics"
	secdomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSecurity struct {
	mu      sync.Mutex
	entries []secdomain.RecordRequest
}

func (r *recordingSecurity) Record(_ context.Context, req secdomain.RecordRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, req)
	return nil
}

func (r *recordingSecurity) List(context.Context, secdomain.ListRequest) (secdomain.ListResponse, error) {
	return secdomain.ListResponse{}, nil
}

func newTestDispatcher(maxRetries int, security secdomain.Service) *dispatcher {
	return &dispatcher{
		log:        zap.NewNop(),
		client:     &http.Client{Timeout: 2 * time.Second},
		maxRetries: maxRetries,
		backoff:    func(int) time.Duration { return time.Millisecond },
		metrics: &metrics.Metrics{
			WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "test_webhook_deliveries_total",
			}, []string{"result"}),
		},
		security: security,
	}
}

func TestDeliverSignsPayload(t *testing.T) {
	var (
		gotSignature string
		gotEvent     string
		gotBody      []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(HeaderSignature)
		gotEvent = r.Header.Get(HeaderEvent)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := newTestDispatcher(0, &recordingSecurity{})
	event := Event{
		Type:       EventDomainVerified,
		DeliveryID: "dlv-1",
		Domain:     "shop.example.com",
		OccurredAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	d.deliver(server.URL, "hook-secret", "shop.example.com", event)

	assert.Equal(t, EventDomainVerified, gotEvent)
	require.NotEmpty(t, gotBody)
	assert.Equal(t, SignPayload("hook-secret", gotBody), gotSignature)
}

func TestDeliverRetriesThenSucceeds(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	security := &recordingSecurity{}
	d := newTestDispatcher(2, security)
	d.deliver(server.URL, "", "shop.example.com", Event{Type: EventConversion, DeliveryID: "dlv-2"})

	assert.Equal(t, 2, attempts)
	assert.Empty(t, security.entries)
}

func TestDeliverExhaustedRecordsSecurityEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	security := &recordingSecurity{}
	d := newTestDispatcher(1, security)
	d.deliver(server.URL, "", "shop.example.com", Event{Type: EventConversion, DeliveryID: "dlv-3"})

	require.Len(t, security.entries, 1)
	assert.Equal(t, secdomain.EventWebhookDeliveryDead, security.entries[0].EventType)
	assert.Equal(t, secdomain.SeverityMedium, security.entries[0].Severity)
}
