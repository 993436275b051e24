package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
)

func TestMutateCreatesFromInit(t *testing.T) {
	repo := NewMemoryBalanceRepo()
	ctx := context.Background()

	init := model.UserBalance{TrialRemaining: 2, TrialCapacity: 2, LastResetAt: time.Now()}
	b, err := repo.Mutate(ctx, "u1", init, func(b *model.UserBalance, _ TransactionMarker) error {
		b.TrialRemaining--
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if b.UserID != "u1" || b.TrialRemaining != 1 {
		t.Errorf("balance = %+v, want u1 with 1 trial remaining", b)
	}
	if b.CreatedAt.IsZero() || b.UpdatedAt.IsZero() {
		t.Error("timestamps not set on create")
	}
}

func TestMutateAbortDiscardsEverything(t *testing.T) {
	repo := NewMemoryBalanceRepo()
	ctx := context.Background()
	abort := errors.New("abort")

	init := model.UserBalance{TrialRemaining: 2, TrialCapacity: 2}
	_, err := repo.Mutate(ctx, "u1", init, func(b *model.UserBalance, txns TransactionMarker) error {
		b.PaidRemaining = 100
		if _, err := txns.MarkApplied(ctx, "u1", "txn-1", 0); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("Mutate error = %v, want the abort error", err)
	}

	// Neither the balance nor the idempotency mark survived.
	if _, err := repo.Get(ctx, "u1"); !errors.Is(err, ErrBalanceNotFound) {
		t.Errorf("aborted mutate persisted a balance: %v", err)
	}
	_, err = repo.Mutate(ctx, "u1", init, func(b *model.UserBalance, txns TransactionMarker) error {
		applied, err := txns.MarkApplied(ctx, "u1", "txn-1", 0)
		if err != nil {
			return err
		}
		if !applied {
			t.Error("transaction mark from an aborted mutate survived")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
}

func TestMarkAppliedOncePerTransaction(t *testing.T) {
	repo := NewMemoryBalanceRepo()
	ctx := context.Background()

	mark := func(txn string) bool {
		var applied bool
		_, err := repo.Mutate(ctx, "u1", model.UserBalance{}, func(b *model.UserBalance, txns TransactionMarker) error {
			var err error
			applied, err = txns.MarkApplied(ctx, "u1", txn, 0)
			return err
		})
		if err != nil {
			t.Fatalf("Mutate: %v", err)
		}
		return applied
	}

	if !mark("txn-1") {
		t.Error("first MarkApplied = false, want true")
	}
	if mark("txn-1") {
		t.Error("second MarkApplied = true, want false")
	}
	if !mark("txn-2") {
		t.Error("MarkApplied for a new transaction = false, want true")
	}
}

func TestMarkAppliedDuplicateWithinOneMutate(t *testing.T) {
	repo := NewMemoryBalanceRepo()
	ctx := context.Background()

	_, err := repo.Mutate(ctx, "u1", model.UserBalance{}, func(b *model.UserBalance, txns TransactionMarker) error {
		first, err := txns.MarkApplied(ctx, "u1", "txn-1", 0)
		if err != nil {
			return err
		}
		second, err := txns.MarkApplied(ctx, "u1", "txn-1", 0)
		if err != nil {
			return err
		}
		if !first || second {
			t.Errorf("MarkApplied twice in one mutate = %v, %v; want true, false", first, second)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
}

func TestMutateSerializesPerUser(t *testing.T) {
	repo := NewMemoryBalanceRepo()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate(ctx, "u1", model.UserBalance{}, func(b *model.UserBalance, _ TransactionMarker) error {
				b.PaidRemaining++
				return nil
			})
			if err != nil {
				t.Errorf("Mutate: %v", err)
			}
		}()
	}
	wg.Wait()

	b, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.PaidRemaining != workers {
		t.Errorf("paid remaining = %d, want %d (no lost updates)", b.PaidRemaining, workers)
	}
}

func TestListResetDue(t *testing.T) {
	repo := NewMemoryBalanceRepo()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	seed := func(userID string, lastReset time.Time) {
		init := model.UserBalance{TrialRemaining: 2, TrialCapacity: 2, LastResetAt: lastReset}
		if _, err := repo.Mutate(ctx, userID, init, func(b *model.UserBalance, _ TransactionMarker) error {
			return nil
		}); err != nil {
			t.Fatalf("seed %s: %v", userID, err)
		}
	}
	seed("stale", base.Add(-25*time.Hour))
	seed("boundary", base.Add(-24*time.Hour))
	seed("fresh", base.Add(-time.Hour))

	due, err := repo.ListResetDue(ctx, base.Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListResetDue: %v", err)
	}
	got := map[string]bool{}
	for _, b := range due {
		got[b.UserID] = true
	}
	if !got["stale"] || !got["boundary"] || got["fresh"] {
		t.Errorf("due = %v, want stale and boundary only", got)
	}
}

func TestListBalancesPaginates(t *testing.T) {
	repo := NewMemoryBalanceRepo()
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		if _, err := repo.Mutate(ctx, id, model.UserBalance{}, func(b *model.UserBalance, _ TransactionMarker) error {
			return nil
		}); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}

	page, err := repo.ListBalances(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListBalances: %v", err)
	}
	if len(page) != 2 || page[0].UserID != "a" || page[1].UserID != "b" {
		t.Errorf("first page = %v, want [a b]", page)
	}

	page, err = repo.ListBalances(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListBalances offset: %v", err)
	}
	if len(page) != 1 || page[0].UserID != "c" {
		t.Errorf("second page = %v, want [c]", page)
	}
}
