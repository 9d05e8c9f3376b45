package alert

import (
	"context"

	"github.com/affcd/gateway/internal/securitylog/domain"
	"go.uber.org/zap"
)

// logAlerter surfaces critical entries on the error log stream, where the
// log shipper picks them up for paging.
type logAlerter struct {
	log *zap.Logger
}

func NewLogAlerter(log *zap.Logger) domain.Alerter {
	return &logAlerter{log: log.Named("securitylog.alert")}
}

func (a *logAlerter) Notify(_ context.Context, entry domain.SecurityLogEntry) {
	fields := []zap.Field{
		zap.String("event_type", entry.EventType),
		zap.String("entry_id", entry.ID.String()),
	}
	if entry.Domain != nil {
		fields = append(fields, zap.String("domain", *entry.Domain))
	}
	if entry.IPAddress != nil {
		fields = append(fields, zap.String("ip_address", *entry.IPAddress))
	}
	a.log.Error("critical security event", fields...)
}
