// Package webhook delivers signed event notifications to satellite sites.
// Delivery is fire-and-forget: the triggering request never waits for the
// remote endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"github.com/affcd/gateway/internal/metrics"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	HeaderSignature = "X-AFFCD-Webhook-Signature"
	HeaderEvent     = "X-AFFCD-Webhook-Event"
	HeaderDelivery  = "X-AFFCD-Webhook-Delivery"
)

// Well-known event types satellites can subscribe to.
const (
	EventDomainVerified  = "domain.verified"
	EventDomainSuspended = "domain.suspended"
	EventKeyRotated      = "domain.key_rotated"
	EventCodeExpired     = "code.expired"
	EventConversion      = "event.conversion"
)

type Event struct {
	Type       string         `json:"type"`
	DeliveryID string         `json:"delivery_id"`
	Domain     string         `json:"domain"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Dispatcher interface {
	// Dispatch queues an event for a domain. It returns immediately; the
	// delivery happens on its own goroutine with its own timeout budget.
	Dispatch(record *credentialdomain.AuthorizedDomain, event Event)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Cfg      config.Config
	Metrics  *metrics.Metrics
	Security securitydomain.Service
}

type dispatcher struct {
	log        *zap.Logger
	client     *http.Client
	maxRetries int
	backoff    func(attempt int) time.Duration
	metrics    *metrics.Metrics
	security   securitydomain.Service
}

func New(p Params) Dispatcher {
	return &dispatcher{
		log:        p.Log.Named("webhook.dispatcher"),
		client:     &http.Client{Timeout: p.Cfg.Webhook.Timeout},
		maxRetries: p.Cfg.Webhook.MaxRetries,
		backoff:    defaultBackoff,
		metrics:    p.Metrics,
		security:   p.Security,
	}
}

func (d *dispatcher) Dispatch(record *credentialdomain.AuthorizedDomain, event Event) {
	if record == nil || !record.WantsEvent(event.Type) {
		return
	}
	if event.DeliveryID == "" {
		event.DeliveryID = uuid.NewString()
	}
	url := *record.WebhookURL

	secret := ""
	if record.WebhookSecret != nil {
		secret = *record.WebhookSecret
	}

	go d.deliver(url, secret, record.Domain, event)
}

func (d *dispatcher) deliver(url, secret, domainName string, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		d.log.Error("webhook payload encode failed", zap.Error(err))
		return
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.backoff(attempt))
		}
		lastErr = d.send(url, secret, event, body)
		if lastErr == nil {
			d.metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
			return
		}
	}

	d.metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
	d.log.Warn("webhook delivery exhausted retries",
		zap.String("url", url),
		zap.String("event_type", event.Type),
		zap.Int("attempts", d.maxRetries+1),
		zap.Error(lastErr),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = d.security.Record(ctx, securitydomain.RecordRequest{
		EventType: securitydomain.EventWebhookDeliveryDead,
		Severity:  securitydomain.SeverityMedium,
		Domain:    domainName,
		Details: map[string]any{
			"event_type":  event.Type,
			"delivery_id": event.DeliveryID,
			"error":       lastErr.Error(),
		},
	})
}

func (d *dispatcher) send(url, secret string, event Event, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.Type)
	req.Header.Set(HeaderDelivery, event.DeliveryID)
	if secret != "" {
		req.Header.Set(HeaderSignature, SignPayload(secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// SignPayload computes the hex HMAC-SHA256 a receiver verifies against the
// signature header.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}

var Module = fx.Module("webhook.dispatcher",
	fx.Provide(New),
)
