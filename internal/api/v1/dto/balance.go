package dto

import "time"

// ConsumeResponseDTO is the result of the request gate. A denial is reported
// with allowed=false and a denial kind, never as an HTTP error.
type ConsumeResponseDTO struct {
	Allowed        bool   `json:"allowed"`
	UsedTrial      bool   `json:"used_trial"`
	TrialRemaining int    `json:"trial_remaining"`
	PaidRemaining  int    `json:"paid_remaining"`
	Denial         string `json:"denial,omitempty"`
}

// BalanceResponseDTO is a read-only view of a user's balance.
type BalanceResponseDTO struct {
	TrialRemaining int        `json:"trial_remaining"`
	PaidRemaining  int        `json:"paid_remaining"`
	TrialCapacity  int        `json:"trial_capacity"`
	LastResetAt    *time.Time `json:"last_reset_at,omitempty"`
}

// UsageResponseDTO is the legacy rolling-window usage view.
type UsageResponseDTO struct {
	MessagesLast24h   int `json:"messages_last_24h"`
	MaxMessagesPerDay int `json:"max_messages_per_day"`
}

// PackageResponseDTO describes one purchasable credit package.
type PackageResponseDTO struct {
	Index         int    `json:"index"`
	Messages      int    `json:"messages"`
	BonusMessages int    `json:"bonus_messages"`
	TotalCredits  int    `json:"total_credits"`
	PriceStars    int    `json:"price_stars"`
	IsPopular     bool   `json:"is_popular"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
}
