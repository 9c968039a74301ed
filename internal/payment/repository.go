package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("payment intent not found")
	ErrNotPaid        = errors.New("payment intent is not paid")
	ErrAlreadyClaimed = errors.New("payment intent already claimed")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	Create(ctx context.Context, in *Intent) error
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (Intent, error)
	MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID, gatewaySignature string) error
	Claim(ctx context.Context, gatewayOrderID string) error
	ListNewestFirst(ctx context.Context) ([]Intent, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, in *Intent) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO payment_intents (gateway_order_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, in.GatewayOrderID, in.Amount, in.Currency, in.Status, in.CreatedAt)
	if err := row.Scan(&in.ID); err != nil {
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (Intent, error) {
	var in Intent
	row := r.pool.QueryRow(ctx, `
		SELECT id, gateway_order_id, COALESCE(gateway_payment_id, ''), COALESCE(gateway_signature, ''),
		       amount, currency, status, created_at
		FROM payment_intents WHERE gateway_order_id=$1
	`, gatewayOrderID)
	err := row.Scan(&in.ID, &in.GatewayOrderID, &in.GatewayPaymentID, &in.GatewaySignature,
		&in.Amount, &in.Currency, &in.Status, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Intent{}, ErrNotFound
		}
		return Intent{}, fmt.Errorf("select payment intent: %w", err)
	}
	return in, nil
}

// MarkPaid records the verified capture. Repeating the call with the same
// fields is a no-op update, so re-verification stays idempotent. A
// Claimed intent is left untouched.
func (r *PostgresRepository) MarkPaid(ctx context.Context, gatewayOrderID, gatewayPaymentID, gatewaySignature string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_intents
		SET gateway_payment_id=$2, gateway_signature=$3, status=$4
		WHERE gateway_order_id=$1 AND status IN ($5, $4)
	`, gatewayOrderID, gatewayPaymentID, gatewaySignature, StatusPaid, StatusCreated)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, gatewayOrderID)
	}
	return nil
}

// Claim performs the one-time Paid -> Claimed transition atomically, so a
// single intent can never fund two sets of order commits.
func (r *PostgresRepository) Claim(ctx context.Context, gatewayOrderID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_intents
		SET status=$2
		WHERE gateway_order_id=$1 AND status=$3
	`, gatewayOrderID, StatusClaimed, StatusPaid)
	if err != nil {
		return fmt.Errorf("claim intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, gatewayOrderID)
	}
	return nil
}

func (r *PostgresRepository) ListNewestFirst(ctx context.Context) ([]Intent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, gateway_order_id, COALESCE(gateway_payment_id, ''), COALESCE(gateway_signature, ''),
		       amount, currency, status, created_at
		FROM payment_intents ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("select payment intents: %w", err)
	}
	defer rows.Close()

	var intents []Intent
	for rows.Next() {
		var in Intent
		if err := rows.Scan(&in.ID, &in.GatewayOrderID, &in.GatewayPaymentID, &in.GatewaySignature,
			&in.Amount, &in.Currency, &in.Status, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment intent: %w", err)
		}
		intents = append(intents, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return intents, nil
}

// classifyMiss explains a zero-row update: either the intent does not
// exist or it is in the wrong status for the attempted transition.
func (r *PostgresRepository) classifyMiss(ctx context.Context, gatewayOrderID string) error {
	in, err := r.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}
	if in.Status == StatusClaimed {
		return ErrAlreadyClaimed
	}
	return ErrNotPaid
}
