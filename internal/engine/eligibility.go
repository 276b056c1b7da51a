// Package engine holds the reward-eligibility decision logic. Everything here
// is deterministic and side-effect-free; callers supply the window, the
// cooldown marker and the clock.
package engine

import (
	"fmt"
	"time"

	"paystreak/internal/model"
)

const (
	// WindowSize is how many recent payments a streak is judged on.
	WindowSize = 3
	// CooldownPeriod is how long after a reward the next one is blocked.
	CooldownPeriod = 7 * 24 * time.Hour
)

type Reason string

const (
	ReasonEligible            Reason = "eligible"
	ReasonInsufficientHistory Reason = "insufficient_history"
	ReasonLatePaymentPresent  Reason = "late_payment_present"
	ReasonCooldownActive      Reason = "cooldown_active"
)

// Decision is the outcome of one eligibility evaluation. NeedMore is set only
// for insufficient history, CooldownRemaining only for an active cooldown.
type Decision struct {
	Eligible          bool
	Reason            Reason
	NeedMore          int
	CooldownRemaining time.Duration
}

// Message renders the decision for API responses.
func (d Decision) Message() string {
	switch d.Reason {
	case ReasonEligible:
		return "Eligible for reward"
	case ReasonInsufficientHistory:
		return fmt.Sprintf("Need %d more bills", d.NeedMore)
	case ReasonLatePaymentPresent:
		return "Not all bills paid on time"
	case ReasonCooldownActive:
		return "Reward already granted within the last 7 days"
	}
	return string(d.Reason)
}

// Evaluate decides whether a user earns a reward right now. Eligible iff the
// window holds WindowSize entries, all paid on time, and any cooldown started
// strictly more than CooldownPeriod ago.
func Evaluate(window []model.BillSummary, cooldown *time.Time, now time.Time) Decision {
	if len(window) < WindowSize {
		return Decision{
			Reason:   ReasonInsufficientHistory,
			NeedMore: WindowSize - len(window),
		}
	}
	for _, bill := range window[:WindowSize] {
		if !bill.IsPaidOnTime {
			return Decision{Reason: ReasonLatePaymentPresent}
		}
	}
	if cooldown != nil {
		if since := now.Sub(*cooldown); since <= CooldownPeriod {
			return Decision{
				Reason:            ReasonCooldownActive,
				CooldownRemaining: CooldownPeriod - since,
			}
		}
	}
	return Decision{Eligible: true, Reason: ReasonEligible}
}
