package model

import "time"

// UserBalance is the per-user credit record. It is owned by the ledger and
// mutated only through BalanceRepository.Mutate.
type UserBalance struct {
	UserID         string    `db:"user_id" json:"user_id"`
	TrialRemaining int       `db:"trial_remaining" json:"trial_remaining"`
	PaidRemaining  int       `db:"paid_remaining" json:"paid_remaining"`
	TrialCapacity  int       `db:"trial_capacity" json:"trial_capacity"`
	PaidTotal      int       `db:"paid_total" json:"paid_total"`
	LastResetAt    time.Time `db:"last_reset_at" json:"last_reset_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DenialKind distinguishes why a consume request was denied.
type DenialKind string

const (
	// DenialTrialExhausted means the user has used up the free daily allowance
	// and has never purchased credits.
	DenialTrialExhausted DenialKind = "trial_exhausted"
	// DenialNoCreditsRemaining means the user has purchased before but both
	// pools are empty now.
	DenialNoCreditsRemaining DenialKind = "no_credits_remaining"
)

// ConsumeOutcome is the result of a single TryConsume call. A denial is a
// normal outcome, not an error.
type ConsumeOutcome struct {
	Allowed        bool       `json:"allowed"`
	UsedTrial      bool       `json:"used_trial"`
	TrialRemaining int        `json:"trial_remaining"`
	PaidRemaining  int        `json:"paid_remaining"`
	Denial         DenialKind `json:"denial,omitempty"`
}

// CreditOutcome is the result of a Credit call. Applied is false when the
// transaction id was already credited before.
type CreditOutcome struct {
	Applied       bool `json:"applied"`
	PaidRemaining int  `json:"paid_remaining"`
}
