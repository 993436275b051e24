package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
)

// MemoryBalanceRepository is an in-process BalanceRepository. Per-user mutexes
// give the same serialization guarantee the Postgres implementation gets from
// row locks; mutations are staged on a copy and become visible only when the
// mutate func succeeds.
type MemoryBalanceRepository struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	balances map[string]model.UserBalance
	applied  map[string]map[string]int // userID -> transactionID -> packageIndex
}

// NewMemoryBalanceRepo creates an empty in-memory BalanceRepository.
func NewMemoryBalanceRepo() *MemoryBalanceRepository {
	return &MemoryBalanceRepository{
		locks:    make(map[string]*sync.Mutex),
		balances: make(map[string]model.UserBalance),
		applied:  make(map[string]map[string]int),
	}
}

func (r *MemoryBalanceRepository) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

func (r *MemoryBalanceRepository) Get(ctx context.Context, userID string) (*model.UserBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.balances[userID]
	if !ok {
		return nil, ErrBalanceNotFound
	}
	return &b, nil
}

func (r *MemoryBalanceRepository) Mutate(ctx context.Context, userID string, init model.UserBalance, fn MutateFunc) (*model.UserBalance, error) {
	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	b, ok := r.balances[userID]
	r.mu.Unlock()
	if !ok {
		b = init
		b.UserID = userID
		now := time.Now()
		b.CreatedAt = now
		b.UpdatedAt = now
	}

	marker := &memoryTransactionMarker{repo: r}
	if err := fn(&b, marker); err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now()

	r.mu.Lock()
	r.balances[userID] = b
	for _, m := range marker.staged {
		txns, ok := r.applied[m.userID]
		if !ok {
			txns = make(map[string]int)
			r.applied[m.userID] = txns
		}
		txns[m.transactionID] = m.packageIndex
	}
	r.mu.Unlock()
	return &b, nil
}

func (r *MemoryBalanceRepository) ListResetDue(ctx context.Context, cutoff time.Time, limit int) ([]model.UserBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.UserBalance
	for _, b := range r.balances {
		if !b.LastResetAt.After(cutoff) {
			out = append(out, b)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryBalanceRepository) ListBalances(ctx context.Context, limit, offset int) ([]model.UserBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.balances))
	for id := range r.balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []model.UserBalance
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, r.balances[ids[i]])
	}
	return out, nil
}

type stagedMark struct {
	userID        string
	transactionID string
	packageIndex  int
}

// memoryTransactionMarker stages idempotency records; they are committed
// together with the balance when the mutate func returns nil.
type memoryTransactionMarker struct {
	repo   *MemoryBalanceRepository
	staged []stagedMark
}

func (m *memoryTransactionMarker) MarkApplied(ctx context.Context, userID, transactionID string, packageIndex int) (bool, error) {
	m.repo.mu.Lock()
	_, dup := m.repo.applied[userID][transactionID]
	m.repo.mu.Unlock()
	if dup {
		return false, nil
	}
	for _, s := range m.staged {
		if s.userID == userID && s.transactionID == transactionID {
			return false, nil
		}
	}
	m.staged = append(m.staged, stagedMark{userID: userID, transactionID: transactionID, packageIndex: packageIndex})
	return true, nil
}
