package model

// CreditPackage describes a purchasable bundle of message credits. Packages
// are process-wide configuration and never change at runtime.
type CreditPackage struct {
	Messages      int    `json:"messages"`
	BonusMessages int    `json:"bonus_messages"`
	PriceStars    int    `json:"price_stars"`
	IsPopular     bool   `json:"is_popular"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
}

// TotalCredits is the number of paid messages one purchase of this package grants.
func (p CreditPackage) TotalCredits() int {
	return p.Messages + p.BonusMessages
}
