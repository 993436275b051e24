package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
	"github.com/mmalakhov777/tauhid2-sub002/internal/pubsub"
)

// PaymentReconciler turns confirmed external payments into ledger credits.
// It is safe to call any number of times with the same transaction id; the
// ledger's idempotency record guarantees at most one credit.
type PaymentReconciler interface {
	OnPaymentConfirmed(ctx context.Context, confirmation model.PaymentConfirmation) error
}

type paymentReconciler struct {
	ledger      BalanceLedger
	catalog     *PackageCatalog
	publisher   pubsub.Publisher
	eventsTopic string
	logger      zerolog.Logger
}

// NewPaymentReconciler creates a PaymentReconciler with a scoped logger.
// publisher may be nil; credited events are then not published.
func NewPaymentReconciler(ledger BalanceLedger, catalog *PackageCatalog, publisher pubsub.Publisher, eventsTopic string, logger zerolog.Logger) PaymentReconciler {
	return &paymentReconciler{
		ledger:      ledger,
		catalog:     catalog,
		publisher:   publisher,
		eventsTopic: eventsTopic,
		logger:      logger.With().Str("service", "PaymentReconciler").Logger(),
	}
}

// creditedEvent is published for the bot collaborator so it can notify the
// payer once their credits have landed.
type creditedEvent struct {
	UserID        string `json:"user_id"`
	TransactionID string `json:"transaction_id"`
	PackageIndex  int    `json:"package_index"`
	Credited      int    `json:"credited"`
	PaidRemaining int    `json:"paid_remaining"`
}

func (r *paymentReconciler) OnPaymentConfirmed(ctx context.Context, c model.PaymentConfirmation) error {
	outcome, err := r.ledger.Credit(ctx, c.UserID, c.TransactionID, c.PackageIndex)
	if err != nil {
		// InvalidPackage aborts before any mutation; nothing was credited.
		r.logger.Error().Err(err).
			Str("user_id", c.UserID).
			Str("transaction_id", c.TransactionID).
			Int("package_index", c.PackageIndex).
			Msg("Failed to credit payment")
		return fmt.Errorf("reconciling payment %s: %w", c.TransactionID, err)
	}

	if !outcome.Applied {
		r.logger.Info().
			Str("user_id", c.UserID).
			Str("transaction_id", c.TransactionID).
			Int("paid_remaining", outcome.PaidRemaining).
			Msg("Duplicate payment delivery ignored")
		return nil
	}

	r.logger.Info().
		Str("user_id", c.UserID).
		Str("transaction_id", c.TransactionID).
		Int("package_index", c.PackageIndex).
		Int("paid_remaining", outcome.PaidRemaining).
		Msg("Payment credited")

	if r.publisher != nil {
		r.publishCredited(ctx, c, outcome.PaidRemaining)
	}
	return nil
}

// publishCredited is best-effort: the credit is already committed, so a
// publish failure is logged and never propagated back into the queue retry.
func (r *paymentReconciler) publishCredited(ctx context.Context, c model.PaymentConfirmation, paidRemaining int) {
	pkg, err := r.catalog.Get(c.PackageIndex)
	if err != nil {
		return
	}
	payload, err := json.Marshal(creditedEvent{
		UserID:        c.UserID,
		TransactionID: c.TransactionID,
		PackageIndex:  c.PackageIndex,
		Credited:      pkg.TotalCredits(),
		PaidRemaining: paidRemaining,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal credited event")
		return
	}
	if _, err := r.publisher.Publish(ctx, r.eventsTopic, payload); err != nil {
		r.logger.Error().Err(err).
			Str("transaction_id", c.TransactionID).
			Str("topic", r.eventsTopic).
			Msg("Failed to publish credited event")
	}
}
