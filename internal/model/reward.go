package model

import "time"

const RewardStatusActive = "active"

// Reward is an issued loyalty reward. Immutable once created; lives in the
// cache's reward namespace with a retrieval TTL, not a business-validity one.
type Reward struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// EligibilityResult is the read-side answer exposed to the HTTP layer.
type EligibilityResult struct {
	UserID                   string        `json:"userId"`
	Eligible                 bool          `json:"eligible"`
	Reason                   string        `json:"reason"`
	Message                  string        `json:"message"`
	NeedMore                 int           `json:"needMore,omitempty"`
	CooldownRemainingSeconds int64         `json:"cooldownRemainingSeconds,omitempty"`
	Bills                    []BillSummary `json:"bills,omitempty"`
}
