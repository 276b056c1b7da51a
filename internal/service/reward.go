package service

import (
	"context"

	"paystreak/internal/model"
)

// RewardService defines the business operations of the reward pipeline.
// The HTTP transport and the event subscriber depend on this interface, not
// on the concrete implementation.
type RewardService interface {
	// RecordPayment stores the payment durably, then publishes the event
	// best-effort: a publish failure is reported in the result, never by
	// rolling the record back.
	RecordPayment(ctx context.Context, req model.PayBillRequest) (*model.RecordResult, error)

	// HandlePaymentEvent applies one consumed event: window update,
	// eligibility evaluation and, when approved, reward issuance. Safe to
	// apply twice for the same event.
	HandlePaymentEvent(ctx context.Context, event model.PaymentEvent) error

	CheckEligibility(ctx context.Context, userID string) (*model.EligibilityResult, error)
	GetUserRewards(ctx context.Context, userID string) ([]model.Reward, error)

	// GenerateReward is the manual/test trigger for issuing a reward from the
	// user's current window.
	GenerateReward(ctx context.Context, userID string) (*model.Reward, error)

	ListBills(ctx context.Context, userID string, limit, skip int) (*model.BillPage, error)
	RecentBills(ctx context.Context, userID string) (*model.RecentBillsResult, error)
}

// PaymentLedger is the durable payment store consumed by the service. The
// core does not define its storage format beyond these operations.
type PaymentLedger interface {
	InsertPayment(ctx context.Context, bill model.Bill) (model.Bill, error)
	ListPayments(ctx context.Context, userID string, limit, skip int) ([]model.Bill, int, error)
	RecentPayments(ctx context.Context, userID string, n int) ([]model.Bill, error)
}

// EventPublisher publishes a recorded payment to the event log.
type EventPublisher interface {
	Publish(ctx context.Context, event model.PaymentEvent) (*model.DeliveryReceipt, error)
}
