package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paystreak/internal/model"
)

// captureService records what the subscriber hands to the pipeline and the
// liveness of the context it is called with.
type captureService struct {
	events  []model.PaymentEvent
	ctxErrs []error
}

func (c *captureService) HandlePaymentEvent(ctx context.Context, event model.PaymentEvent) error {
	c.events = append(c.events, event)
	c.ctxErrs = append(c.ctxErrs, ctx.Err())
	return ctx.Err()
}

func (c *captureService) RecordPayment(ctx context.Context, req model.PayBillRequest) (*model.RecordResult, error) {
	return nil, nil
}

func (c *captureService) CheckEligibility(ctx context.Context, userID string) (*model.EligibilityResult, error) {
	return nil, nil
}

func (c *captureService) GetUserRewards(ctx context.Context, userID string) ([]model.Reward, error) {
	return nil, nil
}

func (c *captureService) GenerateReward(ctx context.Context, userID string) (*model.Reward, error) {
	return nil, nil
}

func (c *captureService) ListBills(ctx context.Context, userID string, limit, skip int) (*model.BillPage, error) {
	return nil, nil
}

func (c *captureService) RecentBills(ctx context.Context, userID string) (*model.RecentBillsResult, error) {
	return nil, nil
}

func payload(t *testing.T, event model.PaymentEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func validEvent() model.PaymentEvent {
	return model.PaymentEvent{
		UserID:       "U1",
		BillID:       "b1",
		Amount:       120,
		DueDate:      time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		PaymentDate:  time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		BillType:     "electricity",
		IsPaidOnTime: true,
		Timestamp:    time.Now().UTC(),
	}
}

func TestHandle_DeliversEvent(t *testing.T) {
	svc := &captureService{}
	s := NewSubscriber(nil, svc, "reward-service-group")

	s.handle(context.Background(), "payments.created.U1", payload(t, validEvent()))

	require.Len(t, svc.events, 1)
	assert.Equal(t, "b1", svc.events[0].BillID)
	assert.True(t, svc.events[0].IsPaidOnTime)
}

func TestHandle_InFlightEventCompletesDuringShutdown(t *testing.T) {
	svc := &captureService{}
	s := NewSubscriber(nil, svc, "reward-service-group")

	// The consume-loop context is already cancelled, as it is when a shutdown
	// signal lands while a message is being processed.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.handle(ctx, "payments.created.U1", payload(t, validEvent()))

	require.Len(t, svc.events, 1, "shutdown must not drop the in-flight event")
	require.Len(t, svc.ctxErrs, 1)
	assert.NoError(t, svc.ctxErrs[0], "the handler must run under a live context so its cache writes land before the ack")
}

func TestHandle_DropsBadPayloads(t *testing.T) {
	svc := &captureService{}
	s := NewSubscriber(nil, svc, "reward-service-group")
	ctx := context.Background()

	s.handle(ctx, "payments.created.U1", []byte("{not json"))

	invalid := validEvent()
	invalid.Amount = -5
	s.handle(ctx, "payments.created.U1", payload(t, invalid))

	assert.Empty(t, svc.events, "malformed and invalid events are dropped before the pipeline")
}
