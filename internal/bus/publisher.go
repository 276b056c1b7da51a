package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go/jetstream"

	"paystreak/internal/metrics"
	"paystreak/internal/model"
)

// PublishError reports a failed publish after a live connection existed.
// The recorded payment is not rolled back; delivery is at-least-once and
// reconciliation is the caller's concern.
type PublishError struct {
	BillID string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("bus: publish event for bill %s: %v", e.BillID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Publisher turns recorded payments into durable, ordered events on the log.
type Publisher struct {
	conn *Connector

	mu    sync.Mutex
	ready bool
}

func NewPublisher(conn *Connector) *Publisher {
	return &Publisher{conn: conn}
}

// Publish emits one event keyed by user. Publishes are synchronous, so at
// most one write per connection is unacknowledged, and the message id pins
// the bill so producer retries inside the duplicate window are collapsed by
// the log.
func (p *Publisher) Publish(ctx context.Context, event model.PaymentEvent) (*model.DeliveryReceipt, error) {
	js, err := p.conn.JetStream(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.ensureStream(ctx, js); err != nil {
		return nil, err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("bus: encode event: %w", err)
	}
	ack, err := js.Publish(ctx, Subject(event.UserID), data, jetstream.WithMsgID(event.BillID))
	if err != nil {
		return nil, &PublishError{BillID: event.BillID, Err: err}
	}

	metrics.EventsPublished.Inc()
	slog.Info("bus: payment event published",
		"user_id", event.UserID,
		"bill_id", event.BillID,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
		"duplicate", ack.Duplicate,
	)
	return &model.DeliveryReceipt{
		Stream:    ack.Stream,
		Sequence:  ack.Sequence,
		Duplicate: ack.Duplicate,
	}, nil
}

func (p *Publisher) ensureStream(ctx context.Context, js jetstream.JetStream) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready {
		return nil
	}
	if _, err := EnsureStream(ctx, js); err != nil {
		return err
	}
	p.ready = true
	return nil
}
