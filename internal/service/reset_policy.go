package service

import "time"

// TrialResetInterval is how long a trial window lasts before the free
// allowance refills.
const TrialResetInterval = 24 * time.Hour

// IsTrialResetDue reports whether a full interval has elapsed since the last
// refill. Pure and deterministic; exactly 24h counts as due.
func IsTrialResetDue(lastResetAt, now time.Time) bool {
	return now.Sub(lastResetAt) >= TrialResetInterval
}
