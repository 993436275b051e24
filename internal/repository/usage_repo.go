package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository is the legacy rolling-count read path. It is reporting-only:
// the ledger's correctness never depends on these counts.
type UsageRepository interface {
	// RecordMessage appends a chat message event for the user.
	RecordMessage(ctx context.Context, userID string, usedTrial bool) error
	// CountMessagesInTimeRange counts chat messages in the given period.
	CountMessagesInTimeRange(ctx context.Context, userID string, start, end time.Time) (int, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) RecordMessage(ctx context.Context, userID string, usedTrial bool) error {
	const q = `INSERT INTO message_events (user_id, event_type, used_trial) VALUES ($1, 'chat_message', $2)`
	if _, err := r.pool.Exec(ctx, q, userID, usedTrial); err != nil {
		return fmt.Errorf("recording message event for user %s: %w", userID, err)
	}
	return nil
}

func (r *usageRepo) CountMessagesInTimeRange(ctx context.Context, userID string, start, end time.Time) (int, error) {
	var count int
	const q = `
        SELECT COUNT(*)
        FROM message_events
        WHERE user_id = $1
          AND event_type = 'chat_message'
          AND created_at >= $2
          AND created_at < $3
    `
	if err := r.pool.QueryRow(ctx, q, userID, start, end).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting message events for user %s: %w", userID, err)
	}
	return count, nil
}
