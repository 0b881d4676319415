package inbound

import (
	"context"
	"fmt"

	"github.com/wolfman30/whatsapp-clinic-bot/internal/router"
	"github.com/wolfman30/whatsapp-clinic-bot/pkg/logging"
)

// Publisher enqueues inbound events for the worker.
type Publisher struct {
	queue  Queue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue Queue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("inbound: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue publishes evt, assigning an ID when it has none. The patient key
// is the ordering group.
func (p *Publisher) Enqueue(ctx context.Context, evt router.InboundEvent) error {
	evt, body, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	if err := p.queue.Send(ctx, body, evt.LockKey()); err != nil {
		return fmt.Errorf("inbound: enqueue event: %w", err)
	}
	p.logger.Debug("inbound event enqueued", "event_id", evt.ID, "type", evt.Type, "doctor_id", evt.DoctorID)
	return nil
}
