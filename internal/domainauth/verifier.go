// Package domainauth runs the outbound ownership checks that keep the
// authorized domain list honest. A domain that stops answering its
// verification path is suspended after repeated failures.
package domainauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/config"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	securitydomain "github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/affcd/gateway/internal/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type VerificationResult struct {
	DomainID   string    `json:"domain_id"`
	Domain     string    `json:"domain"`
	Verified   bool      `json:"verified"`
	StatusCode int       `json:"status_code,omitempty"`
	Failures   int       `json:"failures"`
	Suspended  bool      `json:"suspended"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checked_at"`
}

type SweepSummary struct {
	Checked   int `json:"checked"`
	Verified  int `json:"verified"`
	Failed    int `json:"failed"`
	Suspended int `json:"suspended"`
}

type Verifier interface {
	// Verify performs one ownership check against the domain's well-known
	// verification path.
	Verify(ctx context.Context, domainID string) (*VerificationResult, error)

	// VerifyActive re-checks every active domain, pacing requests so the
	// sweep does not burst outbound traffic. Safe to run concurrently;
	// duplicate checks only repeat idempotent status writes.
	VerifyActive(ctx context.Context) (SweepSummary, error)
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	Credential credentialdomain.Service
	Security   securitydomain.Service
	Webhooks   webhook.Dispatcher
}

type verifier struct {
	log        *zap.Logger
	client     *http.Client
	path       string
	pace       time.Duration
	maxFails   int
	clock      clock.Clock
	credential credentialdomain.Service
	security   securitydomain.Service
	webhooks   webhook.Dispatcher
}

func New(p Params) Verifier {
	return &verifier{
		log:        p.Log.Named("domainauth.verifier"),
		client:     &http.Client{Timeout: p.Cfg.Verification.Timeout},
		path:       p.Cfg.Verification.Path,
		pace:       p.Cfg.Verification.PaceDelay,
		maxFails:   p.Cfg.Verification.MaxFailures,
		clock:      p.Clock,
		credential: p.Credential,
		security:   p.Security,
		webhooks:   p.Webhooks,
	}
}

func (v *verifier) Verify(ctx context.Context, domainID string) (*VerificationResult, error) {
	record, err := v.credential.Get(ctx, domainID)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		DomainID:  record.ID.String(),
		Domain:    record.Domain,
		CheckedAt: v.clock.Now(),
	}

	// A suspended domain keeps its failure count until an operator
	// reactivates it; checking again would only flap the counter.
	if record.Status == credentialdomain.StatusSuspended {
		result.Suspended = true
		result.Failures = record.VerificationFailures
		result.Error = credentialdomain.ErrDomainSuspended.Error()
		return result, nil
	}

	statusCode, checkErr := v.probe(ctx, record.Domain)
	result.StatusCode = statusCode

	if checkErr == nil && statusCode == http.StatusOK {
		if err := v.credential.MarkVerified(ctx, domainID); err != nil {
			return nil, err
		}
		result.Verified = true
		v.webhooks.Dispatch(record, webhook.Event{
			Type:       webhook.EventDomainVerified,
			DeliveryID: fmt.Sprintf("verify-%s-%d", record.ID, result.CheckedAt.Unix()),
			Domain:     record.Domain,
			OccurredAt: result.CheckedAt,
		})
		return result, nil
	}

	if checkErr != nil {
		result.Error = checkErr.Error()
	} else {
		result.Error = fmt.Sprintf("unexpected status %d", statusCode)
	}

	failures, suspended, err := v.credential.MarkVerificationFailed(ctx, domainID, v.maxFails)
	if err != nil {
		return nil, err
	}
	result.Failures = failures
	result.Suspended = suspended

	_ = v.security.Record(ctx, securitydomain.RecordRequest{
		EventType: securitydomain.EventVerificationFailed,
		Severity:  securitydomain.SeverityMedium,
		Domain:    record.Domain,
		Details: map[string]any{
			"failures":    failures,
			"status_code": statusCode,
			"error":       result.Error,
		},
	})

	if suspended {
		_ = v.security.Record(ctx, securitydomain.RecordRequest{
			EventType: securitydomain.EventDomainSuspended,
			Severity:  securitydomain.SeverityCritical,
			Domain:    record.Domain,
			Details: map[string]any{
				"failures": failures,
				"reason":   "verification failed repeatedly",
			},
		})
		v.webhooks.Dispatch(record, webhook.Event{
			Type:       webhook.EventDomainSuspended,
			DeliveryID: fmt.Sprintf("suspend-%s-%d", record.ID, result.CheckedAt.Unix()),
			Domain:     record.Domain,
			Payload:    map[string]any{"failures": failures},
			OccurredAt: result.CheckedAt,
		})
	}

	return result, nil
}

func (v *verifier) VerifyActive(ctx context.Context) (SweepSummary, error) {
	records, err := v.credential.List(ctx)
	if err != nil {
		return SweepSummary{}, err
	}

	var summary SweepSummary
	for _, record := range records {
		if record.Status != credentialdomain.StatusActive {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Checked++
		result, err := v.Verify(ctx, record.ID.String())
		if err != nil {
			v.log.Warn("sweep verification errored",
				zap.String("domain", record.Domain),
				zap.Error(err),
			)
			continue
		}
		switch {
		case result.Verified:
			summary.Verified++
		case result.Suspended:
			summary.Suspended++
			summary.Failed++
		default:
			summary.Failed++
		}

		if v.pace > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(v.pace):
			}
		}
	}

	v.log.Info("verification sweep finished",
		zap.Int("checked", summary.Checked),
		zap.Int("verified", summary.Verified),
		zap.Int("failed", summary.Failed),
		zap.Int("suspended", summary.Suspended),
	)
	return summary, nil
}

// probe issues the well-known GET. Plain HTTP is tried after HTTPS so local
// and staging satellites without certificates can still verify.
func (v *verifier) probe(ctx context.Context, host string) (int, error) {
	status, err := v.get(ctx, "https://"+host+v.path)
	if err == nil {
		return status, nil
	}
	return v.get(ctx, "http://"+host+v.path)
}

func (v *verifier) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

var Module = fx.Module("domainauth.verifier",
	fx.Provide(New),
)
