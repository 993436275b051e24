package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
	"github.com/mmalakhov777/tauhid2-sub002/internal/repository"
)

// ErrStorage marks transient storage failures. The whole operation is safe to
// retry: no partial mutation is ever observable, so callers either see the
// committed result or the pre-call state.
var ErrStorage = errors.New("storage_error")

// internal sentinels used to abort a Mutate without persisting anything.
var (
	errConsumeDenied    = errors.New("consume denied")
	errDuplicateTxn     = errors.New("duplicate transaction")
	errResetNoLongerDue = errors.New("reset no longer due")
)

// BalanceLedger is the usage-metering and entitlement ledger. All balance
// mutations go through it; concurrent calls for one user serialize, calls for
// different users do not block each other.
type BalanceLedger interface {
	// TryConsume spends one message credit: trial first, then paid. Running
	// out of credits is a normal denial outcome, not an error. A due trial
	// reset and the consumption are applied as a single atomic unit.
	TryConsume(ctx context.Context, userID string, classification Classification) (model.ConsumeOutcome, error)
	// Credit grants the credits of the given catalog package, at most once per
	// transaction id. A duplicate delivery returns Applied=false untouched.
	Credit(ctx context.Context, userID, transactionID string, packageIndex int) (model.CreditOutcome, error)
	// Peek returns a read-only snapshot. It never mutates and never resets.
	Peek(ctx context.Context, userID string) (*model.UserBalance, error)
	// ApplyDueResets refills trial allowances whose window has elapsed, using
	// each record's stored capacity. Returns how many balances were reset.
	ApplyDueResets(ctx context.Context, batchSize int) (int, error)
}

type balanceLedger struct {
	repo      repository.BalanceRepository
	usageRepo repository.UsageRepository
	resolver  EntitlementResolver
	catalog   *PackageCatalog
	clock     Clock
	logger    zerolog.Logger
}

// NewBalanceLedger creates the ledger with a scoped logger. usageRepo may be
// nil; message events are then not recorded.
func NewBalanceLedger(
	repo repository.BalanceRepository,
	usageRepo repository.UsageRepository,
	resolver EntitlementResolver,
	catalog *PackageCatalog,
	clock Clock,
	logger zerolog.Logger,
) BalanceLedger {
	return &balanceLedger{
		repo:      repo,
		usageRepo: usageRepo,
		resolver:  resolver,
		catalog:   catalog,
		clock:     clock,
		logger:    logger.With().Str("service", "BalanceLedger").Logger(),
	}
}

func (l *balanceLedger) TryConsume(ctx context.Context, userID string, classification Classification) (model.ConsumeOutcome, error) {
	ent, err := l.resolver.Resolve(classification)
	if err != nil {
		return model.ConsumeOutcome{}, err
	}
	now := l.clock.Now()

	init := model.UserBalance{
		TrialRemaining: ent.TrialCapacity,
		TrialCapacity:  ent.TrialCapacity,
		LastResetAt:    now,
	}

	var outcome model.ConsumeOutcome
	_, err = l.repo.Mutate(ctx, userID, init, func(b *model.UserBalance, _ repository.TransactionMarker) error {
		// The refill and the consumption below commit together or not at all.
		if IsTrialResetDue(b.LastResetAt, now) {
			b.TrialRemaining = ent.TrialCapacity
			b.TrialCapacity = ent.TrialCapacity
			b.LastResetAt = now
		}
		switch {
		case b.TrialRemaining > 0:
			b.TrialRemaining--
			outcome = model.ConsumeOutcome{Allowed: true, UsedTrial: true}
		case b.PaidRemaining > 0:
			b.PaidRemaining--
			outcome = model.ConsumeOutcome{Allowed: true}
		default:
			outcome = model.ConsumeOutcome{Denial: denialKind(b)}
		}
		outcome.TrialRemaining = b.TrialRemaining
		outcome.PaidRemaining = b.PaidRemaining
		if !outcome.Allowed {
			// Abort so the denied call leaves no trace in storage.
			return errConsumeDenied
		}
		return nil
	})
	if err != nil && !errors.Is(err, errConsumeDenied) {
		return model.ConsumeOutcome{}, fmt.Errorf("consuming credit for user %s: %w: %w", userID, ErrStorage, err)
	}

	if outcome.Allowed && l.usageRepo != nil {
		// Reporting-only; a failure here must not undo the consumption.
		if err := l.usageRepo.RecordMessage(ctx, userID, outcome.UsedTrial); err != nil {
			l.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record message event")
		}
	}
	return outcome, nil
}

func (l *balanceLedger) Credit(ctx context.Context, userID, transactionID string, packageIndex int) (model.CreditOutcome, error) {
	pkg, err := l.catalog.Get(packageIndex)
	if err != nil {
		return model.CreditOutcome{}, err
	}
	amount := pkg.TotalCredits()
	now := l.clock.Now()

	// A balance created by a purchase before the first message gets the guest
	// trial; the next TryConsume refreshes capacity from the live
	// classification at the reset boundary.
	guest, err := l.resolver.Resolve(ClassificationGuest)
	if err != nil {
		return model.CreditOutcome{}, err
	}
	init := model.UserBalance{
		TrialRemaining: guest.TrialCapacity,
		TrialCapacity:  guest.TrialCapacity,
		LastResetAt:    now,
	}

	var outcome model.CreditOutcome
	_, err = l.repo.Mutate(ctx, userID, init, func(b *model.UserBalance, txns repository.TransactionMarker) error {
		applied, err := txns.MarkApplied(ctx, userID, transactionID, packageIndex)
		if err != nil {
			return err
		}
		if !applied {
			outcome = model.CreditOutcome{Applied: false, PaidRemaining: b.PaidRemaining}
			return errDuplicateTxn
		}
		b.PaidRemaining += amount
		b.PaidTotal += amount
		outcome = model.CreditOutcome{Applied: true, PaidRemaining: b.PaidRemaining}
		return nil
	})
	if err != nil && !errors.Is(err, errDuplicateTxn) {
		return model.CreditOutcome{}, fmt.Errorf("crediting user %s for transaction %s: %w: %w", userID, transactionID, ErrStorage, err)
	}
	return outcome, nil
}

func (l *balanceLedger) Peek(ctx context.Context, userID string) (*model.UserBalance, error) {
	b, err := l.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrBalanceNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("peeking balance for user %s: %w: %w", userID, ErrStorage, err)
	}
	return b, nil
}

func (l *balanceLedger) ApplyDueResets(ctx context.Context, batchSize int) (int, error) {
	now := l.clock.Now()
	cutoff := now.Add(-TrialResetInterval)
	due, err := l.repo.ListResetDue(ctx, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing reset-due balances: %w: %w", ErrStorage, err)
	}

	applied := 0
	for _, stale := range due {
		_, err := l.repo.Mutate(ctx, stale.UserID, stale, func(b *model.UserBalance, _ repository.TransactionMarker) error {
			// A TryConsume may have reset this user between the scan and now.
			if !IsTrialResetDue(b.LastResetAt, now) {
				return errResetNoLongerDue
			}
			b.TrialRemaining = b.TrialCapacity
			b.LastResetAt = now
			return nil
		})
		if errors.Is(err, errResetNoLongerDue) {
			continue
		}
		if err != nil {
			l.logger.Error().Err(err).Str("user_id", stale.UserID).Msg("Failed to apply trial reset")
			continue
		}
		applied++
	}
	return applied, nil
}

// denialKind distinguishes a never-paid user running out of trial messages
// from a paying user whose purchased credits ran out.
func denialKind(b *model.UserBalance) model.DenialKind {
	if b.PaidTotal == 0 {
		return model.DenialTrialExhausted
	}
	return model.DenialNoCreditsRemaining
}
