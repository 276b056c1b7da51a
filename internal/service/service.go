// Package service ties the ledger, window cache, eligibility engine and
// reward issuer into the operations exposed to the transports and the
// subscriber.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"paystreak/internal/cache"
	"paystreak/internal/engine"
	"paystreak/internal/metrics"
	"paystreak/internal/model"
	"paystreak/internal/reward"
)

// ErrInsufficientHistory is returned by the manual trigger when fewer than
// three payments are cached for the user.
var ErrInsufficientHistory = errors.New("service: need 3 cached bills to generate a reward")

type Service struct {
	ledger    PaymentLedger
	publisher EventPublisher
	cache     *cache.WindowCache
	issuer    *reward.Issuer

	now func() time.Time
}

var _ RewardService = (*Service)(nil)

func New(ledger PaymentLedger, publisher EventPublisher, wc *cache.WindowCache, issuer *reward.Issuer) *Service {
	return &Service{
		ledger:    ledger,
		publisher: publisher,
		cache:     wc,
		issuer:    issuer,
		now:       time.Now,
	}
}

func (s *Service) RecordPayment(ctx context.Context, req model.PayBillRequest) (*model.RecordResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	billType := req.BillType
	if billType == "" {
		billType = model.DefaultBillType
	}

	bill := model.Bill{
		UserID:       req.UserID,
		BillID:       req.BillID,
		Amount:       req.Amount,
		DueDate:      req.DueDate,
		PaymentDate:  req.PaymentDate,
		BillType:     billType,
		IsPaidOnTime: !req.PaymentDate.After(req.DueDate),
	}
	bill, err := s.ledger.InsertPayment(ctx, bill)
	if err != nil {
		return nil, err
	}

	event := model.PaymentEvent{
		UserID:       bill.UserID,
		BillID:       bill.BillID,
		Amount:       bill.Amount,
		DueDate:      bill.DueDate,
		PaymentDate:  bill.PaymentDate,
		BillType:     bill.BillType,
		IsPaidOnTime: bill.IsPaidOnTime,
		Timestamp:    s.now().UTC(),
	}
	published := true
	if _, err := s.publisher.Publish(ctx, event); err != nil {
		// The record stands; event delivery is at-least-once and any gap is
		// reconciled out of band.
		slog.Error("service: payment recorded but event publish failed",
			"user_id", bill.UserID, "bill_id", bill.BillID, "error", err)
		published = false
	}

	return &model.RecordResult{Bill: bill, EventPublished: published}, nil
}

func (s *Service) HandlePaymentEvent(ctx context.Context, event model.PaymentEvent) error {
	window, err := s.cache.PushWindow(ctx, event.UserID, event.Summary())
	if err != nil {
		return fmt.Errorf("service: update window: %w", err)
	}

	cooldown, err := s.cache.GetCooldown(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("service: read cooldown: %w", err)
	}

	decision := engine.Evaluate(window, cooldown, s.now())
	if !decision.Eligible {
		slog.Debug("service: user not eligible",
			"user_id", event.UserID, "reason", decision.Reason, "window_len", len(window))
		return nil
	}

	granted, rewardID, rewardType, err := s.issueStreak(ctx, event.UserID, window)
	if err != nil {
		return err
	}
	if granted {
		metrics.RewardsIssued.Inc()
		slog.Info("service: reward issued",
			"user_id", event.UserID, "reward_id", rewardID, "reward_type", rewardType)
	} else {
		slog.Info("service: streak already rewarded",
			"user_id", event.UserID, "reward_id", rewardID)
	}
	return nil
}

func (s *Service) issueStreak(ctx context.Context, userID string, window []model.BillSummary) (bool, string, string, error) {
	r, granted, err := s.issuer.Issue(ctx, userID, window[:engine.WindowSize])
	if err != nil {
		return false, "", "", fmt.Errorf("service: issue reward: %w", err)
	}
	return granted, r.ID, r.Type, nil
}

func (s *Service) CheckEligibility(ctx context.Context, userID string) (*model.EligibilityResult, error) {
	window, err := s.cache.GetWindow(ctx, userID)
	if err != nil {
		return nil, err
	}
	cooldown, err := s.cache.GetCooldown(ctx, userID)
	if err != nil {
		return nil, err
	}

	decision := engine.Evaluate(window, cooldown, s.now())
	return &model.EligibilityResult{
		UserID:                   userID,
		Eligible:                 decision.Eligible,
		Reason:                   string(decision.Reason),
		Message:                  decision.Message(),
		NeedMore:                 decision.NeedMore,
		CooldownRemainingSeconds: int64(decision.CooldownRemaining.Seconds()),
		Bills:                    window,
	}, nil
}

func (s *Service) GetUserRewards(ctx context.Context, userID string) ([]model.Reward, error) {
	return s.cache.ListRewards(ctx, userID)
}

func (s *Service) GenerateReward(ctx context.Context, userID string) (*model.Reward, error) {
	window, err := s.cache.GetWindow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(window) < engine.WindowSize {
		return nil, ErrInsufficientHistory
	}
	r, err := s.issuer.IssueManual(ctx, userID)
	if err != nil {
		return nil, err
	}
	slog.Info("service: reward generated manually", "user_id", userID, "reward_id", r.ID)
	return r, nil
}

func (s *Service) ListBills(ctx context.Context, userID string, limit, skip int) (*model.BillPage, error) {
	if limit <= 0 {
		limit = 10
	}
	if skip < 0 {
		skip = 0
	}
	bills, total, err := s.ledger.ListPayments(ctx, userID, limit, skip)
	if err != nil {
		return nil, err
	}
	return &model.BillPage{
		Bills: bills,
		Pagination: model.Pagination{
			Total:   total,
			Limit:   limit,
			Skip:    skip,
			HasMore: total > skip+limit,
		},
	}, nil
}

func (s *Service) RecentBills(ctx context.Context, userID string) (*model.RecentBillsResult, error) {
	bills, err := s.ledger.RecentPayments(ctx, userID, engine.WindowSize)
	if err != nil {
		return nil, err
	}
	allOnTime := len(bills) == engine.WindowSize
	for _, b := range bills {
		if !b.IsPaidOnTime {
			allOnTime = false
			break
		}
	}
	return &model.RecentBillsResult{
		UserID:            userID,
		RecentBills:       bills,
		Count:             len(bills),
		AllPaidOnTime:     allOnTime,
		EligibleForReward: allOnTime,
	}, nil
}
