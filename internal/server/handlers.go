package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	commissiondomain "github.com/affcd/gateway/internal/commission/domain"
	usagedomain "github.com/affcd/gateway/internal/usageevent/domain"
	vanitydomain "github.com/affcd/gateway/internal/vanitycode/domain"
	"github.com/affcd/gateway/internal/webhook"
)

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"ok":      true,
		"time":    s.clock.Now().Format(time.RFC3339),
		"version": s.cfg.AppVersion,
	})
}

type trackRequest struct {
	Code           string         `json:"code"`
	DomainTo       string         `json:"domain_to"`
	Metadata       map[string]any `json:"metadata"`
	IdempotencyKey string         `json:"idempotency_key"`
}

func (s *Server) Track(c *gin.Context) {
	record := domainFromContext(c)

	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	event, err := s.usage.Track(c.Request.Context(), usagedomain.TrackRequest{
		DomainFrom:     record.Domain,
		DomainTo:       req.DomainTo,
		Code:           req.Code,
		EventType:      usagedomain.EventTrack,
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		Metadata:       req.Metadata,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"event_id": event.ID.String(),
	})
}

type convertRequest struct {
	trackRequest
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	AffiliateID string `json:"affiliate_id"`
}

func (s *Server) Convert(c *gin.Context) {
	record := domainFromContext(c)

	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	event, err := s.usage.Convert(c.Request.Context(), usagedomain.ConvertRequest{
		TrackRequest: usagedomain.TrackRequest{
			DomainFrom:     record.Domain,
			DomainTo:       req.DomainTo,
			Code:           req.Code,
			EventType:      usagedomain.EventConversion,
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
			Metadata:       req.Metadata,
			IdempotencyKey: req.IdempotencyKey,
		},
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		AffiliateID: req.AffiliateID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.webhooks.Dispatch(record, webhook.Event{
		Type:       webhook.EventConversion,
		DeliveryID: event.ID.String(),
		Domain:     record.Domain,
		Payload: map[string]any{
			"event_id":         event.ID.String(),
			"code":             event.Code,
			"amount_cents":     event.ConversionValueCents,
			"currency":         event.Currency,
			"commission_cents": event.CommissionCents,
		},
		OccurredAt: s.clock.Now(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"event_id":            event.ID.String(),
		"commission_cents":    event.CommissionCents,
		"commission_rate_bps": event.CommissionRateBps,
	})
}

type batchRequest struct {
	DomainTo string                  `json:"domain_to"`
	Events   []usagedomain.BatchItem `json:"events"`
}

func (s *Server) Batch(c *gin.Context) {
	record := domainFromContext(c)

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Events) == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	results := s.usage.Batch(c.Request.Context(), record.Domain, req.DomainTo, c.ClientIP(), c.Request.UserAgent(), req.Events)

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"results":   results,
	})
}

type validateCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) ValidateCode(c *gin.Context) {
	record := domainFromContext(c)

	var req validateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.codes.Validate(c.Request.Context(), req.Code, record.Domain)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.Valid {
		// A successful lookup is itself an ingestion event. Losing one must
		// not fail the validation response.
		_, trackErr := s.usage.Track(c.Request.Context(), usagedomain.TrackRequest{
			DomainFrom: record.Domain,
			Code:       result.Code,
			EventType:  usagedomain.EventValidation,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
		})
		if trackErr != nil {
			s.log.Warn("validation event not recorded",
				zap.String("code", result.Code),
				zap.Error(trackErr),
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

type calculateRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	AffiliateCode string `json:"affiliate_code"`
	AffiliateID   string `json:"affiliate_id"`
	GroupID       string `json:"group_id"`
}

func (s *Server) CalculateCommission(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	calc, err := s.commission.Calculate(c.Request.Context(), commissiondomain.CalculateRequest{
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		AffiliateCode: req.AffiliateCode,
		AffiliateID:   req.AffiliateID,
		GroupID:       req.GroupID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"calculation": calc,
	})
}

// referralUpdate is the inbound webhook: a satellite pushes a change to one
// of its own codes. The code must belong to the authenticated domain.
type referralUpdate struct {
	Code      string     `json:"code"`
	TargetURL *string    `json:"target_url"`
	Status    *string    `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (s *Server) ReferralUpdate(c *gin.Context) {
	record := domainFromContext(c)

	var req referralUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	code, err := s.ownedCode(c, req.Code)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	update := vanitydomain.UpdateRequest{
		CodeID:    code.ID.String(),
		TargetURL: req.TargetURL,
		ExpiresAt: req.ExpiresAt,
	}
	if req.Status != nil {
		status := vanitydomain.CodeStatus(*req.Status)
		update.Status = &status
	}

	updated, err := s.codes.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("referral update applied",
		zap.String("domain", record.Domain),
		zap.String("code", updated.Code),
	)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"code":    updated,
	})
}

func (s *Server) CreateCode(c *gin.Context) {
	record := domainFromContext(c)

	var req vanitydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	// A satellite can only mint codes under its own domain.
	req.Domain = record.Domain

	code, err := s.codes.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"code":    code,
	})
}

func (s *Server) ListCodes(c *gin.Context) {
	record := domainFromContext(c)

	codes, err := s.codes.ListByDomain(c.Request.Context(), record.Domain)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"codes":   codes,
	})
}

func (s *Server) CodeStats(c *gin.Context) {
	record := domainFromContext(c)

	stats, err := s.codes.Stats(c.Request.Context(), record.Domain)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   stats,
	})
}

func (s *Server) ListEvents(c *gin.Context) {
	record := domainFromContext(c)

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	events, err := s.usage.ListByDomain(c.Request.Context(), record.Domain, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  events,
	})
}

// ownedCode resolves a code string to a record owned by the caller. The
// error for a foreign code is the same as for a missing one.
func (s *Server) ownedCode(c *gin.Context, raw string) (*vanitydomain.VanityCode, error) {
	record := domainFromContext(c)
	normalized := vanitydomain.NormalizeCode(raw)
	if normalized == "" {
		return nil, vanitydomain.ErrInvalidCode
	}

	codes, err := s.codes.ListByDomain(c.Request.Context(), record.Domain)
	if err != nil {
		return nil, err
	}
	for i := range codes {
		if codes[i].Code == normalized {
			return &codes[i], nil
		}
	}
	return nil, vanitydomain.ErrNotFound
}
