// Package worker runs the payment-event subscriber: a long-lived consumer
// that feeds the reward pipeline one event at a time.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"paystreak/internal/bus"
	"paystreak/internal/metrics"
	"paystreak/internal/model"
	"paystreak/internal/service"
)

// Subscriber consumes payment events within a named durable group. Only one
// instance of the group owns an unacknowledged message at a time, which is
// what keeps per-user window updates ordered.
type Subscriber struct {
	conn  *bus.Connector
	svc   service.RewardService
	group string
}

func NewSubscriber(conn *bus.Connector, svc service.RewardService, group string) *Subscriber {
	return &Subscriber{conn: conn, svc: svc, group: group}
}

// Start connects (with the shared backoff policy), attaches the durable
// consumer reading only new messages, and processes the stream strictly
// sequentially: one event fully handled and acknowledged before the next is
// pulled. Blocks until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	js, err := s.conn.JetStream(ctx)
	if err != nil {
		return fmt.Errorf("worker: connect: %w", err)
	}
	stream, err := bus.EnsureStream(ctx, js)
	if err != nil {
		return err
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       s.group,
		FilterSubject: bus.SubjectWildcard,
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxAckPending: 1,
	})
	if err != nil {
		return fmt.Errorf("worker: create consumer %s: %w", s.group, err)
	}

	it, err := cons.Messages(jetstream.PullMaxMessages(1))
	if err != nil {
		return fmt.Errorf("worker: attach consumer: %w", err)
	}
	go func() {
		<-ctx.Done()
		// Lets the in-flight message finish, then unblocks Next.
		it.Stop()
	}()

	slog.Info("worker: consuming payment events", "group", s.group, "stream", bus.StreamName)

	for {
		msg, err := it.Next()
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				slog.Info("worker: subscriber stopped", "group", s.group)
				return nil
			}
			return fmt.Errorf("worker: next message: %w", err)
		}
		s.handle(ctx, msg.Subject(), msg.Data())
		// Ack after handling: a crash before this point redelivers the event,
		// which the window update and issuance are built to tolerate.
		if err := msg.Ack(); err != nil {
			slog.Warn("worker: ack failed", "subject", msg.Subject(), "error", err)
		}
	}
}

// Stop implements infrastructure.Server; shutdown is driven by ctx in Start.
func (s *Subscriber) Stop(ctx context.Context) error { return nil }

// handle applies one delivered event. Failures are logged and the message is
// dropped: one bad event must never stop the stream, and there is no
// dead-letter queue, an accepted gap of this pipeline.
func (s *Subscriber) handle(ctx context.Context, subject string, data []byte) {
	started := time.Now()

	var event model.PaymentEvent
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("worker: dropping malformed event", "subject", subject, "error", err)
		metrics.EventsDropped.Inc()
		return
	}
	if err := event.Validate(); err != nil {
		slog.Error("worker: dropping invalid event",
			"subject", subject, "bill_id", event.BillID, "error", err)
		metrics.EventsDropped.Inc()
		return
	}

	// The loop context is cancelled to stop pulling; the in-flight event must
	// still run to completion, or it would be acked below without its cache
	// updates ever landing.
	if err := s.svc.HandlePaymentEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Error("worker: dropping event after handler failure",
			"user_id", event.UserID, "bill_id", event.BillID, "error", err)
		metrics.EventsDropped.Inc()
		return
	}

	metrics.EventsConsumed.Inc()
	metrics.EventHandlingDuration.Observe(time.Since(started).Seconds())
	slog.Info("worker: payment event processed",
		"user_id", event.UserID,
		"bill_id", event.BillID,
		"paid_on_time", event.IsPaidOnTime,
	)
}
