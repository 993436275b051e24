package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
	"github.com/mmalakhov777/tauhid2-sub002/internal/pgmq"
)

// ConfirmationQueue hands payment confirmations from the webhook to the
// worker. The webhook acknowledges Telegram as soon as the confirmation is
// durably enqueued; the worker retries reconciliation out of band.
type ConfirmationQueue interface {
	Enqueue(ctx context.Context, confirmation model.PaymentConfirmation) error
}

type pgmqConfirmationQueue struct {
	client *pgmq.Client
	queue  string
}

// NewConfirmationQueue creates a pgmq-backed ConfirmationQueue.
func NewConfirmationQueue(client *pgmq.Client, queue string) ConfirmationQueue {
	return &pgmqConfirmationQueue{client: client, queue: queue}
}

func (q *pgmqConfirmationQueue) Enqueue(ctx context.Context, c model.PaymentConfirmation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling payment confirmation %s: %w", c.TransactionID, err)
	}
	if err := q.client.Send(ctx, q.queue, payload); err != nil {
		return fmt.Errorf("enqueuing payment confirmation %s: %w", c.TransactionID, err)
	}
	return nil
}
