package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/table-reservation/internal/events"
)

const forwardTimeout = 5 * time.Second

// AuditService records reservation events in the structured log and hands
// them to any configured forwarders, such as the RabbitMQ publisher.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	forwarders []events.EventHandler
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, forwarders ...events.EventHandler) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger,
		forwarders: forwarders,
	}
}

// RegisterHandlers subscribes to every reservation event.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllEventTypes {
		a.dispatcher.Subscribe(eventType, a.handle)
	}
}

func (a *AuditService) handle(ctx context.Context, event events.Event) error {
	a.logger.Info("audit",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("reservation_id", event.ReservationID),
		zap.String("actor_id", event.Actor.SubjectID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.Any("payload", event.Payload))

	if len(a.forwarders) == 0 {
		return nil
	}
	// The request may already be finishing; forwarding gets its own budget.
	fwdCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), forwardTimeout)
	defer cancel()

	var errs []error
	for _, forward := range a.forwarders {
		if err := forward(fwdCtx, event); err != nil {
			a.logger.Warn("forward event failed",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
