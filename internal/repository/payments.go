package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paystreak/internal/model"
)

// ErrBillAlreadyPaid is returned when a (user, bill) pair was recorded before.
var ErrBillAlreadyPaid = errors.New("bill already paid")

// PaymentsRepo is the durable payment ledger on PostgreSQL.
type PaymentsRepo struct {
	db *pgxpool.Pool
}

func NewPaymentsRepo(db *pgxpool.Pool) *PaymentsRepo {
	return &PaymentsRepo{db: db}
}

// InsertPayment records a payment exactly once per (user, bill). The unique
// constraint makes replayed HTTP submissions surface as ErrBillAlreadyPaid
// instead of a second row.
func (r *PaymentsRepo) InsertPayment(ctx context.Context, bill model.Bill) (model.Bill, error) {
	query := `
		INSERT INTO payments (user_id, bill_id, amount, due_date, payment_date, bill_type, paid_on_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, bill_id) DO NOTHING
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		bill.UserID,
		bill.BillID,
		bill.Amount,
		bill.DueDate,
		bill.PaymentDate,
		bill.BillType,
		bill.IsPaidOnTime,
	).Scan(&bill.ID, &bill.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Bill{}, ErrBillAlreadyPaid
	}
	if err != nil {
		return model.Bill{}, fmt.Errorf("repository: insert payment: %w", err)
	}
	return bill, nil
}

// ListPayments returns a page of the user's payments, most recent first,
// together with the total count for pagination.
func (r *PaymentsRepo) ListPayments(ctx context.Context, userID string, limit, skip int) ([]model.Bill, int, error) {
	query := `
		SELECT id, user_id, bill_id, amount, due_date, payment_date, bill_type, paid_on_time, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY payment_date DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: list payments: %w", err)
	}
	bills, err := scanBills(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: count payments: %w", err)
	}
	return bills, total, nil
}

// RecentPayments returns the user's n most recent payments, most recent first.
func (r *PaymentsRepo) RecentPayments(ctx context.Context, userID string, n int) ([]model.Bill, error) {
	query := `
		SELECT id, user_id, bill_id, amount, due_date, payment_date, bill_type, paid_on_time, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY payment_date DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("repository: recent payments: %w", err)
	}
	return scanBills(rows)
}

func scanBills(rows pgx.Rows) ([]model.Bill, error) {
	defer rows.Close()

	bills := make([]model.Bill, 0)
	for rows.Next() {
		var b model.Bill
		err := rows.Scan(&b.ID, &b.UserID, &b.BillID, &b.Amount,
			&b.DueDate, &b.PaymentDate, &b.BillType, &b.IsPaidOnTime, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: scan payment: %w", err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: read payments: %w", err)
	}
	return bills, nil
}
