package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRequest marks payloads that fail validation before any I/O happens.
var ErrInvalidRequest = errors.New("invalid request")

const DefaultBillType = "credit-card"

// PayBillRequest is the inbound payload for recording a bill payment.
type PayBillRequest struct {
	UserID      string    `json:"userId"`
	BillID      string    `json:"billId"`
	Amount      float64   `json:"amount"`
	DueDate     time.Time `json:"dueDate"`
	PaymentDate time.Time `json:"paymentDate"`
	BillType    string    `json:"billType"`
}

func (r PayBillRequest) Validate() error {
	if r.UserID == "" || r.BillID == "" {
		return fmt.Errorf("%w: userId and billId are required", ErrInvalidRequest)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidRequest)
	}
	if r.DueDate.IsZero() || r.PaymentDate.IsZero() {
		return fmt.Errorf("%w: dueDate and paymentDate are required", ErrInvalidRequest)
	}
	return nil
}

// Bill is a durably recorded payment, the system of record for auditing.
type Bill struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"userId"`
	BillID       string    `json:"billId"`
	Amount       float64   `json:"amount"`
	DueDate      time.Time `json:"dueDate"`
	PaymentDate  time.Time `json:"paymentDate"`
	BillType     string    `json:"billType"`
	IsPaidOnTime bool      `json:"isPaidOnTime"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PaymentEvent is the wire contract between publisher and subscriber.
// Produced once per recorded payment and immutable afterwards.
type PaymentEvent struct {
	UserID       string    `json:"userId"`
	BillID       string    `json:"billId"`
	Amount       float64   `json:"amount"`
	DueDate      time.Time `json:"dueDate"`
	PaymentDate  time.Time `json:"paymentDate"`
	BillType     string    `json:"billType"`
	IsPaidOnTime bool      `json:"isPaidOnTime"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e PaymentEvent) Validate() error {
	if e.UserID == "" || e.BillID == "" {
		return fmt.Errorf("%w: event is missing userId or billId", ErrInvalidRequest)
	}
	if e.Amount <= 0 {
		return fmt.Errorf("%w: event amount must be a positive number", ErrInvalidRequest)
	}
	return nil
}

// Summary trims an event down to the fields the window cache keeps per user.
func (e PaymentEvent) Summary() BillSummary {
	return BillSummary{
		BillID:       e.BillID,
		Amount:       e.Amount,
		DueDate:      e.DueDate,
		PaymentDate:  e.PaymentDate,
		BillType:     e.BillType,
		IsPaidOnTime: e.IsPaidOnTime,
	}
}

// BillSummary is one entry of a user's sliding window, newest first.
type BillSummary struct {
	BillID       string    `json:"billId"`
	Amount       float64   `json:"amount"`
	DueDate      time.Time `json:"dueDate"`
	PaymentDate  time.Time `json:"paymentDate"`
	BillType     string    `json:"billType"`
	IsPaidOnTime bool      `json:"isPaidOnTime"`
}

// DeliveryReceipt reports where the event log stored a published event.
type DeliveryReceipt struct {
	Stream    string `json:"stream"`
	Sequence  uint64 `json:"sequence"`
	Duplicate bool   `json:"duplicate"`
}

// RecordResult is returned to the recording caller. EventPublished is
// best-effort: a false value means the payment is stored but the event
// never reached the log.
type RecordResult struct {
	Bill           Bill `json:"bill"`
	EventPublished bool `json:"eventPublished"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Skip    int  `json:"skip"`
	HasMore bool `json:"hasMore"`
}

type BillPage struct {
	Bills      []Bill     `json:"bills"`
	Pagination Pagination `json:"pagination"`
}

type RecentBillsResult struct {
	UserID            string `json:"userId"`
	RecentBills       []Bill `json:"recentBills"`
	Count             int    `json:"count"`
	AllPaidOnTime     bool   `json:"allPaidOnTime"`
	EligibleForReward bool   `json:"eligibleForReward"`
}
