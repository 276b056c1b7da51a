package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paystreak/internal/cache"
	"paystreak/internal/engine"
	"paystreak/internal/model"
	"paystreak/internal/reward"
)

type mockLedger struct {
	inserted []model.Bill
	err      error
}

func (m *mockLedger) InsertPayment(ctx context.Context, bill model.Bill) (model.Bill, error) {
	if m.err != nil {
		return model.Bill{}, m.err
	}
	bill.ID = int64(len(m.inserted) + 1)
	bill.CreatedAt = time.Now()
	m.inserted = append(m.inserted, bill)
	return bill, nil
}

func (m *mockLedger) ListPayments(ctx context.Context, userID string, limit, skip int) ([]model.Bill, int, error) {
	return m.inserted, len(m.inserted), nil
}

func (m *mockLedger) RecentPayments(ctx context.Context, userID string, n int) ([]model.Bill, error) {
	if len(m.inserted) > n {
		return m.inserted[len(m.inserted)-n:], nil
	}
	return m.inserted, nil
}

type mockPublisher struct {
	events []model.PaymentEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, event model.PaymentEvent) (*model.DeliveryReceipt, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.events = append(m.events, event)
	return &model.DeliveryReceipt{Stream: "PAYMENTS", Sequence: uint64(len(m.events))}, nil
}

type testDeps struct {
	ledger *mockLedger
	pub    *mockPublisher
	cache  *cache.WindowCache
	redis  *miniredis.Miniredis
}

func newTestService(t *testing.T) (*Service, testDeps) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	wc := cache.New(rdb)
	ledger := &mockLedger{}
	pub := &mockPublisher{}
	svc := New(ledger, pub, wc, reward.NewIssuer(wc, reward.DefaultCatalog()))
	return svc, testDeps{ledger: ledger, pub: pub, cache: wc, redis: srv}
}

func event(userID, billID string, onTime bool) model.PaymentEvent {
	due := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	paid := due.Add(-24 * time.Hour)
	if !onTime {
		paid = due.Add(24 * time.Hour)
	}
	return model.PaymentEvent{
		UserID:       userID,
		BillID:       billID,
		Amount:       120,
		DueDate:      due,
		PaymentDate:  paid,
		BillType:     "electricity",
		IsPaidOnTime: onTime,
		Timestamp:    time.Now().UTC(),
	}
}

func consume(t *testing.T, svc *Service, events ...model.PaymentEvent) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, svc.HandlePaymentEvent(context.Background(), e))
	}
}

func TestThreeOnTimePaymentsGrantExactlyOneReward(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	consume(t, svc,
		event("U1", "b1", true),
		event("U1", "b2", true),
		event("U1", "b3", true),
	)

	res, err := svc.CheckEligibility(ctx, "U1")
	require.NoError(t, err)
	// A reward was just issued, so the cooldown is now active, and exactly
	// one reward exists.
	assert.Equal(t, string(engine.ReasonCooldownActive), res.Reason)

	rewards, err := deps.cache.ListRewards(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, "U1", rewards[0].UserID)
	assert.Equal(t, model.RewardStatusActive, rewards[0].Status)
}

func TestTwoPaymentsAreInsufficientHistory(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	consume(t, svc,
		event("U2", "b1", true),
		event("U2", "b2", true),
	)

	res, err := svc.CheckEligibility(ctx, "U2")
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, string(engine.ReasonInsufficientHistory), res.Reason)
	assert.Equal(t, 1, res.NeedMore)
	assert.Equal(t, "Need 1 more bills", res.Message)

	rewards, err := deps.cache.ListRewards(ctx, "U2")
	require.NoError(t, err)
	assert.Empty(t, rewards)
}

func TestLatePaymentBlocksReward(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	consume(t, svc,
		event("U3", "b1", true),
		event("U3", "b2", false),
		event("U3", "b3", true),
	)

	res, err := svc.CheckEligibility(ctx, "U3")
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, string(engine.ReasonLatePaymentPresent), res.Reason)

	rewards, err := deps.cache.ListRewards(ctx, "U3")
	require.NoError(t, err)
	assert.Empty(t, rewards)
}

func TestCooldownBlocksSecondRewardWithinSevenDays(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	consume(t, svc,
		event("U1", "b1", true),
		event("U1", "b2", true),
		event("U1", "b3", true),
	)
	// Three more on-time payments inside the cooldown window.
	consume(t, svc,
		event("U1", "b4", true),
		event("U1", "b5", true),
		event("U1", "b6", true),
	)

	res, err := svc.CheckEligibility(ctx, "U1")
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, string(engine.ReasonCooldownActive), res.Reason)
	assert.Greater(t, res.CooldownRemainingSeconds, int64(0))

	rewards, err := deps.cache.ListRewards(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestRedeliveredEventIsIdempotent(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	e3 := event("U1", "b3", true)
	consume(t, svc,
		event("U1", "b1", true),
		event("U1", "b2", true),
		e3,
		e3, // crash-before-commit redelivery
	)

	window, err := deps.cache.GetWindow(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, window, 3)
	assert.Equal(t, "b3", window[0].BillID)
	assert.Equal(t, "b2", window[1].BillID)

	rewards, err := deps.cache.ListRewards(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestRewardIssuanceSurvivesLostCooldownWrite(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	e3 := event("U1", "b3", true)
	consume(t, svc, event("U1", "b1", true), event("U1", "b2", true), e3)

	// Simulate a crash between the reward write and the cooldown write.
	deps.redis.Del("user:U1:last_reward")
	require.NoError(t, svc.HandlePaymentEvent(ctx, e3))

	rewards, err := deps.cache.ListRewards(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, rewards, 1, "reprocessing the streak must not grant a second reward")

	cooldown, err := deps.cache.GetCooldown(ctx, "U1")
	require.NoError(t, err)
	require.NotNil(t, cooldown, "reprocessing must restore the lost cooldown marker")

	// With the cooldown back, the next shifted streak stays blocked.
	consume(t, svc, event("U1", "b4", true))
	rewards, err = deps.cache.ListRewards(ctx, "U1")
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestRecordPaymentPublishesEvent(t *testing.T) {
	svc, deps := newTestService(t)

	res, err := svc.RecordPayment(context.Background(), model.PayBillRequest{
		UserID:      "U1",
		BillID:      "b1",
		Amount:      99.95,
		DueDate:     time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		PaymentDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, res.EventPublished)
	assert.True(t, res.Bill.IsPaidOnTime)
	assert.Equal(t, model.DefaultBillType, res.Bill.BillType)

	require.Len(t, deps.ledger.inserted, 1)
	require.Len(t, deps.pub.events, 1)
	assert.Equal(t, "b1", deps.pub.events[0].BillID)
	assert.True(t, deps.pub.events[0].IsPaidOnTime)
}

func TestRecordPaymentSurvivesPublishFailure(t *testing.T) {
	svc, deps := newTestService(t)
	deps.pub.err = errors.New("broker unavailable")

	res, err := svc.RecordPayment(context.Background(), model.PayBillRequest{
		UserID:      "U1",
		BillID:      "b1",
		Amount:      50,
		DueDate:     time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		PaymentDate: time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err, "the recorded payment stands even when publishing fails")
	assert.False(t, res.EventPublished)
	assert.False(t, res.Bill.IsPaidOnTime)
	assert.Len(t, deps.ledger.inserted, 1)
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, deps := newTestService(t)

	_, err := svc.RecordPayment(context.Background(), model.PayBillRequest{UserID: "U1"})
	assert.ErrorIs(t, err, model.ErrInvalidRequest)
	assert.Empty(t, deps.ledger.inserted)
}

func TestGenerateRewardNeedsFullWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GenerateReward(ctx, "U9")
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	consume(t, svc,
		event("U9", "b1", true),
		event("U9", "b2", false),
		event("U9", "b3", true),
	)
	// Full window suffices for the manual trigger even with a late payment.
	r, err := svc.GenerateReward(ctx, "U9")
	require.NoError(t, err)
	assert.Equal(t, "U9", r.UserID)

	rewards, err := svc.GetUserRewards(ctx, "U9")
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestRecentBills(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := deps.ledger.InsertPayment(ctx, model.Bill{
			UserID: "U1", BillID: fmt.Sprintf("b%d", i), Amount: 10, IsPaidOnTime: true,
		})
		require.NoError(t, err)
	}

	res, err := svc.RecentBills(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.True(t, res.AllPaidOnTime)
	assert.True(t, res.EligibleForReward)
}
