package service

import (
	"context"
	"strings"
	"time"

	"github.com/affcd/gateway/internal/clock"
	"github.com/affcd/gateway/internal/securitylog/domain"
	"github.com/affcd/gateway/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Alerter domain.Alerter `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	alerter domain.Alerter
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("securitylog.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		alerter: p.Alerter,
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) error {
	eventType := strings.TrimSpace(req.EventType)
	if eventType == "" {
		return domain.ErrInvalidEventType
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.SeverityLow
	}
	if !domain.ValidSeverity(severity) {
		return domain.ErrInvalidSeverity
	}

	details := map[string]any{}
	for key, value := range req.Details {
		if key == "" {
			continue
		}
		details[key] = value
	}

	entry := domain.SecurityLogEntry{
		ID:        s.genID.Generate(),
		EventType: eventType,
		Severity:  severity,
		Details:   datatypes.JSONMap(details),
		CreatedAt: s.clock.Now(),
	}
	if host := strings.TrimSpace(req.Domain); host != "" {
		entry.Domain = &host
	}
	if ip := strings.TrimSpace(req.IPAddress); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := strings.TrimSpace(req.UserAgent); ua != "" {
		entry.UserAgent = &ua
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write security log", zap.String("event_type", eventType), zap.Error(err))
		return err
	}

	if severity == domain.SeverityCritical && s.alerter != nil {
		s.alerter.Notify(ctx, entry)
	}
	return nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return domain.ListResponse{}, domain.ErrInvalidTimeRange
	}
	if req.Severity != "" && !domain.ValidSeverity(req.Severity) {
		return domain.ListResponse{}, domain.ErrInvalidSeverity
	}

	var cursor *domain.LogCursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.LogCursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		EventType: req.EventType,
		Severity:  req.Severity,
		Domain:    req.Domain,
		StartAt:   req.StartAt,
		EndAt:     req.EndAt,
		Cursor:    cursor,
		Limit:     pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *domain.SecurityLogEntry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	entries := make([]domain.SecurityLogEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entries = append(entries, *item)
	}

	resp := domain.ListResponse{Entries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
