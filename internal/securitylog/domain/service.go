package domain

import (
	"context"
	"errors"
	"time"

	"github.com/affcd/gateway/pkg/db/pagination"
)

type RecordRequest struct {
	EventType string
	Severity  Severity
	Domain    string
	IPAddress string
	UserAgent string
	Details   map[string]any
}

type ListRequest struct {
	pagination.Pagination
	EventType string
	Severity  Severity
	Domain    string
	StartAt   *time.Time
	EndAt     *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Entries []SecurityLogEntry `json:"entries"`
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) error
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}

// Alerter is invoked for every critical entry after it is persisted. The
// record itself never fails because an alert could not be delivered.
type Alerter interface {
	Notify(ctx context.Context, entry SecurityLogEntry)
}

var (
	ErrInvalidEventType = errors.New("invalid_event_type")
	ErrInvalidSeverity  = errors.New("invalid_severity")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
