package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
)

type DLQRepository interface {
	Create(ctx context.Context, message *model.DeadLetterMessage) error
	ListPending(ctx context.Context, limit int) ([]model.DeadLetterMessage, error)
}

type dlqRepository struct {
	pool *pgxpool.Pool
}

func NewDLQRepository(pool *pgxpool.Pool) DLQRepository {
	return &dlqRepository{pool: pool}
}

func (r *dlqRepository) Create(ctx context.Context, message *model.DeadLetterMessage) error {
	const q = `
        INSERT INTO dead_letter_messages (queue, message_id, payload, reason, status)
        VALUES ($1, $2, $3, $4, $5)
    `
	_, err := r.pool.Exec(
		ctx,
		q,
		message.Queue,
		message.MessageID,
		message.Payload,
		message.Reason,
		message.Status,
	)
	if err != nil {
		return fmt.Errorf("creating dead letter message: %w", err)
	}
	return nil
}

func (r *dlqRepository) ListPending(ctx context.Context, limit int) ([]model.DeadLetterMessage, error) {
	const q = `
        SELECT id, queue, message_id, payload, reason, status, created_at, updated_at
        FROM dead_letter_messages
        WHERE status = 'pending'
        ORDER BY created_at
        LIMIT $1
    `
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dead letter messages: %w", err)
	}
	defer rows.Close()

	var out []model.DeadLetterMessage
	for rows.Next() {
		var m model.DeadLetterMessage
		if err := rows.Scan(&m.ID, &m.Queue, &m.MessageID, &m.Payload, &m.Reason, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning dead letter message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading dead letter messages: %w", err)
	}
	return out, nil
}
