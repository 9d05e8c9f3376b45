package service

import (
	"context"
	"errors"
	"strings"

	"github.com/affcd/gateway/internal/clock"
	commissiondomain "github.com/affcd/gateway/internal/commission/domain"
	credentialdomain "github.com/affcd/gateway/internal/credential/domain"
	"github.com/affcd/gateway/internal/metrics"
	"github.com/affcd/gateway/internal/usageevent/domain"
	vanitydomain "github.com/affcd/gateway/internal/vanitycode/domain"
	"github.com/affcd/gateway/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Metrics    *metrics.Metrics
	Commission commissiondomain.Service
	Codes      vanitydomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	metrics    *metrics.Metrics
	commission commissiondomain.Service
	codes      vanitydomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("usageevent.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		metrics:    p.Metrics,
		commission: p.Commission,
		codes:      p.Codes,
	}
}

func (s *Service) Track(ctx context.Context, req domain.TrackRequest) (*domain.UsageEvent, error) {
	eventType := req.EventType
	if eventType == "" {
		eventType = domain.EventTrack
	}
	if !domain.ValidEventType(eventType) {
		return nil, domain.ErrInvalidEventType
	}
	if strings.TrimSpace(req.Code) == "" {
		return nil, domain.ErrMissingCode
	}
	if strings.TrimSpace(req.DomainFrom) == "" {
		return nil, domain.ErrInvalidDomain
	}

	event := s.newEvent(req, eventType)
	stored, replayed, err := s.insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if replayed {
		return stored, nil
	}

	s.metrics.EventsIngested.WithLabelValues(string(eventType)).Inc()
	return stored, nil
}

// Convert persists a conversion event. The commission is computed from the
// current rule set when one applies; a sale with no matching rule or one
// below the minimum still ingests, just without commission fields.
func (s *Service) Convert(ctx context.Context, req domain.ConvertRequest) (*domain.UsageEvent, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, domain.ErrMissingCode
	}
	if strings.TrimSpace(req.DomainFrom) == "" {
		return nil, domain.ErrInvalidDomain
	}
	if req.AmountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return nil, domain.ErrMissingCurrency
	}

	event := s.newEvent(req.TrackRequest, domain.EventConversion)
	event.ConversionValueCents = req.AmountCents
	event.Currency = currency

	calc, err := s.commission.Calculate(ctx, commissiondomain.CalculateRequest{
		AmountCents:   req.AmountCents,
		Currency:      currency,
		AffiliateCode: req.Code,
		AffiliateID:   req.AffiliateID,
	})
	switch {
	case err == nil:
		event.CommissionCents = calc.CommissionCents
		event.CommissionRateBps = calc.EffectiveRateBps
	case errors.Is(err, commissiondomain.ErrNoRule),
		errors.Is(err, commissiondomain.ErrBelowMinimum):
		// Ingest without commission.
	default:
		return nil, err
	}

	stored, replayed, err := s.insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if replayed {
		// A retried conversion must not count twice against the code.
		return stored, nil
	}

	// Conversion stats on the code are best effort; a conversion against an
	// unknown code still ingests.
	if err := s.codes.RecordConversion(ctx, req.Code, req.DomainFrom, req.AmountCents); err != nil {
		if !errors.Is(err, vanitydomain.ErrNotFound) && !errors.Is(err, vanitydomain.ErrInvalidDomain) {
			s.log.Warn("conversion stats update failed",
				zap.String("code", event.Code),
				zap.Error(err),
			)
		}
	}

	s.metrics.EventsIngested.WithLabelValues(string(domain.EventConversion)).Inc()
	return event, nil
}

// Batch ingests a heterogeneous list with partial-failure semantics: results
// come back in input order and a malformed item never stops its neighbours.
func (s *Service) Batch(ctx context.Context, domainFrom, domainTo, ip, userAgent string, items []domain.BatchItem) []domain.BatchResult {
	results := make([]domain.BatchResult, 0, len(items))

	for i, item := range items {
		result := domain.BatchResult{Index: i}

		base := domain.TrackRequest{
			DomainFrom:     domainFrom,
			DomainTo:       domainTo,
			Code:           item.Code,
			IPAddress:      ip,
			UserAgent:      userAgent,
			Metadata:       item.Metadata,
			IdempotencyKey: item.IdempotencyKey,
		}

		var (
			event *domain.UsageEvent
			err   error
		)
		switch item.Type {
		case domain.EventConversion:
			event, err = s.Convert(ctx, domain.ConvertRequest{
				TrackRequest: base,
				AmountCents:  item.AmountCents,
				Currency:     item.Currency,
			})
		case domain.EventTrack, domain.EventValidation, "":
			base.EventType = item.Type
			event, err = s.Track(ctx, base)
		default:
			err = domain.ErrInvalidEventType
		}

		if err != nil {
			result.Error = err.Error()
		} else {
			result.Success = true
			result.EventID = event.ID.String()
		}
		results = append(results, result)
	}
	return results
}

func (s *Service) ListByDomain(ctx context.Context, domainName string, limit int) ([]domain.UsageEvent, error) {
	host := credentialdomain.NormalizeDomain(domainName)
	if host == "" {
		return nil, domain.ErrInvalidDomain
	}
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	return s.repo.ListByDomain(ctx, s.db, host, limit)
}

// insert persists an event, honoring the idempotency key: a retry carrying a
// key that already landed returns the stored row instead of a duplicate.
func (s *Service) insert(ctx context.Context, event *domain.UsageEvent) (*domain.UsageEvent, bool, error) {
	err := s.repo.Insert(ctx, s.db, event)
	if err == nil {
		return event, false, nil
	}
	if event.IdempotencyKey == nil || !db.IsDuplicateKeyErr(err) {
		return nil, false, err
	}

	existing, findErr := s.repo.FindByIdempotencyKey(ctx, s.db, *event.IdempotencyKey)
	if findErr != nil {
		return nil, false, findErr
	}
	if existing == nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (s *Service) newEvent(req domain.TrackRequest, eventType domain.EventType) *domain.UsageEvent {
	event := &domain.UsageEvent{
		ID:         s.genID.Generate(),
		DomainFrom: credentialdomain.NormalizeDomain(req.DomainFrom),
		DomainTo:   credentialdomain.NormalizeDomain(req.DomainTo),
		Code:       vanitydomain.NormalizeCode(req.Code),
		EventType:  eventType,
		Status:     domain.StatusSuccess,
		CreatedAt:  s.clock.Now(),
	}
	if ip := strings.TrimSpace(req.IPAddress); ip != "" {
		event.IPAddress = &ip
	}
	if ua := strings.TrimSpace(req.UserAgent); ua != "" {
		event.UserAgent = &ua
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		event.IdempotencyKey = &key
	}
	if req.Metadata != nil {
		event.Metadata = datatypes.JSONMap(req.Metadata)
	}
	return event
}
