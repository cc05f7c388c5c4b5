package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/events"
)

// AuditService records session lifecycle events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSessionLogin, a.handle)
	a.dispatcher.Subscribe(events.EventSessionLogout, a.handle)
	a.dispatcher.Subscribe(events.EventSessionSignout, a.handle)
	a.dispatcher.Subscribe(events.EventSessionReissue, a.handle)
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type),
		zap.String("event_id", event.ID),
		zap.String("subject", event.Subject),
		zap.Time("at", event.Timestamp),
		zap.Any("payload", event.Payload))
	return nil
}
