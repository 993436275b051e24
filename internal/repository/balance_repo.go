package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
)

// ErrBalanceNotFound is returned by Get when the user has no balance record yet.
var ErrBalanceNotFound = errors.New("balance_not_found")

// TransactionMarker records external payment transaction ids inside the same
// atomic unit as the balance mutation it guards.
type TransactionMarker interface {
	// MarkApplied records the transaction id for the user. It returns false
	// when the id was recorded before (duplicate delivery); in that case the
	// caller must not change the balance.
	MarkApplied(ctx context.Context, userID, transactionID string, packageIndex int) (bool, error)
}

// MutateFunc edits a balance in place while the record is exclusively held.
// Returning an error aborts the whole unit and no mutation becomes visible.
type MutateFunc func(b *model.UserBalance, txns TransactionMarker) error

// BalanceRepository is the durable store for user balances. All mutations for
// one user serialize; operations on different users do not block each other.
type BalanceRepository interface {
	// Get returns the user's balance without locking or mutating anything.
	Get(ctx context.Context, userID string) (*model.UserBalance, error)
	// Mutate loads the user's balance, creating it from init if absent, runs
	// fn under per-user exclusion and persists the result atomically.
	Mutate(ctx context.Context, userID string, init model.UserBalance, fn MutateFunc) (*model.UserBalance, error)
	// ListResetDue returns balances whose last reset is at or before cutoff.
	ListResetDue(ctx context.Context, cutoff time.Time, limit int) ([]model.UserBalance, error)
	// ListBalances pages through balances ordered by user id, for reporting.
	ListBalances(ctx context.Context, limit, offset int) ([]model.UserBalance, error)
}

type balanceRepo struct {
	pool *pgxpool.Pool
}

// NewBalanceRepo creates a Postgres-backed BalanceRepository.
func NewBalanceRepo(pool *pgxpool.Pool) BalanceRepository {
	return &balanceRepo{pool: pool}
}

const balanceColumns = `user_id, trial_remaining, paid_remaining, trial_capacity, paid_total, last_reset_at, created_at, updated_at`

func scanBalance(row pgx.Row) (*model.UserBalance, error) {
	var b model.UserBalance
	err := row.Scan(
		&b.UserID,
		&b.TrialRemaining,
		&b.PaidRemaining,
		&b.TrialCapacity,
		&b.PaidTotal,
		&b.LastResetAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *balanceRepo) Get(ctx context.Context, userID string) (*model.UserBalance, error) {
	q := `SELECT ` + balanceColumns + ` FROM user_balances WHERE user_id = $1`
	b, err := scanBalance(r.pool.QueryRow(ctx, q, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBalanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch balance for user %s: %w", userID, err)
	}
	return b, nil
}

// Mutate runs the whole load-modify-persist sequence in one transaction with
// the user's row locked, so concurrent calls for the same user serialize at
// the database and a lost update cannot happen.
func (r *balanceRepo) Mutate(ctx context.Context, userID string, init model.UserBalance, fn MutateFunc) (*model.UserBalance, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("starting balance transaction for user %s: %w", userID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	// Lazily create the record; if another request created it first the
	// insert is a no-op and the select below locks the existing row.
	const insertQ = `
        INSERT INTO user_balances (user_id, trial_remaining, paid_remaining, trial_capacity, paid_total, last_reset_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING
    `
	if _, err := tx.Exec(ctx, insertQ, userID, init.TrialRemaining, init.PaidRemaining, init.TrialCapacity, init.PaidTotal, init.LastResetAt); err != nil {
		return nil, fmt.Errorf("creating balance for user %s: %w", userID, err)
	}

	selectQ := `SELECT ` + balanceColumns + ` FROM user_balances WHERE user_id = $1 FOR UPDATE`
	b, err := scanBalance(tx.QueryRow(ctx, selectQ, userID))
	if err != nil {
		return nil, fmt.Errorf("locking balance for user %s: %w", userID, err)
	}

	if err := fn(b, &pgTransactionMarker{tx: tx}); err != nil {
		return nil, err
	}

	const updateQ = `
        UPDATE user_balances
        SET trial_remaining = $2,
            paid_remaining = $3,
            trial_capacity = $4,
            paid_total = $5,
            last_reset_at = $6,
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := tx.Exec(ctx, updateQ, userID, b.TrialRemaining, b.PaidRemaining, b.TrialCapacity, b.PaidTotal, b.LastResetAt); err != nil {
		return nil, fmt.Errorf("persisting balance for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing balance for user %s: %w", userID, err)
	}
	return b, nil
}

func (r *balanceRepo) ListResetDue(ctx context.Context, cutoff time.Time, limit int) ([]model.UserBalance, error) {
	q := `SELECT ` + balanceColumns + ` FROM user_balances WHERE last_reset_at <= $1 ORDER BY last_reset_at LIMIT $2`
	rows, err := r.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reset-due balances: %w", err)
	}
	defer rows.Close()
	return collectBalances(rows)
}

func (r *balanceRepo) ListBalances(ctx context.Context, limit, offset int) ([]model.UserBalance, error) {
	q := `SELECT ` + balanceColumns + ` FROM user_balances ORDER BY user_id LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, q, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing balances: %w", err)
	}
	defer rows.Close()
	return collectBalances(rows)
}

func collectBalances(rows pgx.Rows) ([]model.UserBalance, error) {
	var out []model.UserBalance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning balance row: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading balance rows: %w", err)
	}
	return out, nil
}

// pgTransactionMarker writes idempotency records in the balance transaction.
// The (user_id, transaction_id) primary key turns duplicate credits into a
// conflict rather than application logic.
type pgTransactionMarker struct {
	tx pgx.Tx
}

func (m *pgTransactionMarker) MarkApplied(ctx context.Context, userID, transactionID string, packageIndex int) (bool, error) {
	const q = `
        INSERT INTO applied_transactions (user_id, transaction_id, package_index, applied_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (user_id, transaction_id) DO NOTHING
    `
	tag, err := m.tx.Exec(ctx, q, userID, transactionID, packageIndex)
	if err != nil {
		return false, fmt.Errorf("recording transaction %s for user %s: %w", transactionID, userID, err)
	}
	return tag.RowsAffected() == 1, nil
}
