package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
	"github.com/mmalakhov777/tauhid2-sub002/internal/pgmq"
	"github.com/mmalakhov777/tauhid2-sub002/internal/repository"
	"github.com/mmalakhov777/tauhid2-sub002/internal/service"
)

// Run starts the payment crediting worker. It drains the payment confirmation
// queue and hands each confirmation to the reconciler. A message leaves the
// queue in exactly one of two ways: credited (or recognized as a duplicate),
// or dead-lettered. It is never dropped.
func Run(
	ctx context.Context,
	logger zerolog.Logger,
	cfg *config.Config,
	client *pgmq.Client,
	reconciler service.PaymentReconciler,
	dlqRepo repository.DLQRepository,
) error {
	queue := cfg.PaymentQueueName
	logger.Info().Str("queue", queue).Msg("Starting payment worker")

	// Surface any backlog of parked payments on startup so it does not sit
	// unnoticed between deploys.
	if pending, err := dlqRepo.ListPending(ctx, 100); err != nil {
		logger.Error().Err(err).Msg("Failed to check dead-letter backlog")
	} else if len(pending) > 0 {
		logger.Warn().Int("pending", len(pending)).Msg("Dead-lettered payments awaiting investigation")
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Shutting down payment worker")
			return nil
		default:
		}

		msgs, err := client.ReadWithPoll(ctx, queue, cfg.PaymentPollTimeoutSec, cfg.PaymentPollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("Shutting down payment worker")
				return nil
			}
			logger.Error().Err(err).Msg("Error reading payment queue")
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		for _, msg := range msgs {
			handleMessage(ctx, logger, cfg, client, reconciler, dlqRepo, msg)
		}
	}
}

func handleMessage(
	ctx context.Context,
	logger zerolog.Logger,
	cfg *config.Config,
	client *pgmq.Client,
	reconciler service.PaymentReconciler,
	dlqRepo repository.DLQRepository,
	msg *pgmq.Message,
) {
	logger.Info().Int64("msg_id", msg.ID).Msg("Received payment confirmation")

	var confirmation model.PaymentConfirmation
	if err := json.Unmarshal(msg.Data, &confirmation); err != nil {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to unmarshal payment confirmation; dead-lettering")
		deadLetter(ctx, logger, cfg, client, dlqRepo, msg, "unmarshal: "+err.Error())
		return
	}

	backoff := time.Duration(cfg.PaymentBackoffInitialSec) * time.Second
	var lastErr error
	for attempt := 1; attempt <= cfg.PaymentMaxRetries; attempt++ {
		lastErr = reconciler.OnPaymentConfirmed(ctx, confirmation)
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, service.ErrInvalidPackage) {
			// The payload names a package the catalog does not have. Retrying
			// cannot fix that; park it for manual review.
			logger.Error().Err(lastErr).
				Str("transaction_id", confirmation.TransactionID).
				Int("package_index", confirmation.PackageIndex).
				Msg("Payment references unknown package; dead-lettering")
			deadLetter(ctx, logger, cfg, client, dlqRepo, msg, lastErr.Error())
			return
		}
		logger.Error().Err(lastErr).
			Str("transaction_id", confirmation.TransactionID).
			Int("attempt", attempt).
			Msg("Payment crediting failed, retrying")
		select {
		case <-ctx.Done():
			// Leave the message in the queue; the visibility timeout will
			// surface it again on the next run.
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > time.Duration(cfg.PaymentBackoffMaxSec)*time.Second {
			backoff = time.Duration(cfg.PaymentBackoffMaxSec) * time.Second
		}
	}
	if lastErr != nil {
		logger.Error().Err(lastErr).
			Str("transaction_id", confirmation.TransactionID).
			Msg("Payment crediting retries exhausted; dead-lettering")
		deadLetter(ctx, logger, cfg, client, dlqRepo, msg, lastErr.Error())
		return
	}

	if err := client.Delete(ctx, cfg.PaymentQueueName, []int64{msg.ID}); err != nil {
		// The credit landed; redelivery is harmless because the transaction
		// id is already recorded as applied.
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to delete processed payment message")
	}
}

// deadLetter records the failed message in dead_letter_messages and forwards
// it to the dead-letter queue, then deletes it from the main queue. If either
// write fails the message stays in the main queue for another attempt.
func deadLetter(
	ctx context.Context,
	logger zerolog.Logger,
	cfg *config.Config,
	client *pgmq.Client,
	dlqRepo repository.DLQRepository,
	msg *pgmq.Message,
	reason string,
) {
	record := &model.DeadLetterMessage{
		Queue:     cfg.PaymentQueueName,
		MessageID: strconv.FormatInt(msg.ID, 10),
		Payload:   string(msg.Data),
		Reason:    reason,
		Status:    "pending",
	}
	if err := dlqRepo.Create(ctx, record); err != nil {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to record dead letter message")
		return
	}
	if err := client.Send(ctx, cfg.PaymentDeadLetterQueueName, msg.Data); err != nil {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to forward message to dead-letter queue")
		return
	}
	if err := client.Delete(ctx, cfg.PaymentQueueName, []int64{msg.ID}); err != nil {
		logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to delete dead-lettered message")
	}
}
