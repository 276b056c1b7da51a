// Package bus owns the connection to the payment event log (NATS JetStream):
// lifecycle, stream layout and publishing. The connector is created by the
// process bootstrap and injected into the publisher and subscriber so no
// component reaches for ambient connection state.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sethvargo/go-retry"
)

const (
	// StreamName is the event log holding every payment event.
	StreamName = "PAYMENTS"
	// SubjectWildcard matches all payment events across users.
	SubjectWildcard = "payments.created.>"

	subjectPrefix = "payments.created."

	// Dials: first attempt plus connectRetries retries, backing off from
	// connectBaseDelay and doubling up to connectMaxDelay.
	connectRetries   = 9
	connectBaseDelay = time.Second
	connectMaxDelay  = 10 * time.Second

	// Window within which the log drops republished events with the same
	// message id.
	duplicateWindow = 2 * time.Minute
)

// ErrConnectionExhausted is returned once every connection attempt has failed.
// Fatal to the component that needed the connection, not to the process.
var ErrConnectionExhausted = errors.New("bus: connection attempts exhausted")

// Subject routes an event to the per-user ordered sub-stream.
func Subject(userID string) string {
	return subjectPrefix + userID
}

// Connector lazily dials the event log on first use and caches the
// connection. Safe for concurrent use.
type Connector struct {
	url  string
	name string

	mu sync.Mutex
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConnector(url, name string) *Connector {
	return &Connector{url: url, name: name}
}

// JetStream returns the cached JetStream context, dialing if needed. Each dial
// backs off exponentially and honors ctx, so a shutdown signal cancels the
// wait instead of blocking on a sleeping retry loop.
func (c *Connector) JetStream(ctx context.Context) (jetstream.JetStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.js != nil {
		return c.js, nil
	}

	backoff := retry.WithMaxRetries(connectRetries,
		retry.WithCappedDuration(connectMaxDelay, retry.NewExponential(connectBaseDelay)))

	var nc *nats.Conn
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		nc, err = nats.Connect(c.url, nats.Name(c.name))
		if err != nil {
			slog.Warn("bus: connect failed, backing off",
				"url", c.url, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown cancelled the backoff wait, not an exhausted budget.
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionExhausted, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream context: %w", err)
	}

	slog.Info("bus: connected", "url", c.url, "name", c.name)
	c.nc, c.js = nc, js
	return js, nil
}

// Close drains the connection, letting in-flight publishes and deliveries
// finish before releasing it.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		if err := c.nc.Drain(); err != nil {
			slog.Warn("bus: drain failed", "error", err)
		}
		c.nc, c.js = nil, nil
	}
}

// EnsureStream creates or updates the payment event stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectWildcard},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		Duplicates: duplicateWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("bus: ensure stream %s: %w", StreamName, err)
	}
	return stream, nil
}
