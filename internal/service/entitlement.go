package service

import (
	"errors"
	"fmt"

	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
)

// ErrUnknownClassification is returned for a classification outside the closed
// set. The resolver never silently defaults.
var ErrUnknownClassification = errors.New("unknown_classification")

// Classification is the coarse user category supplied by the auth collaborator.
type Classification string

const (
	ClassificationGuest   Classification = "guest"
	ClassificationRegular Classification = "regular"
)

// Entitlement is the set of limits a classification grants.
type Entitlement struct {
	TrialCapacity     int
	MaxMessagesPerDay int // legacy rolling-count limit, reporting-only
	Features          []string
}

// EntitlementResolver maps a classification to its limits.
type EntitlementResolver interface {
	Resolve(classification Classification) (Entitlement, error)
}

type entitlementResolver struct {
	table map[Classification]Entitlement
}

// NewEntitlementResolver builds the static lookup table from config. Guest and
// regular users differ only in numeric limits.
func NewEntitlementResolver(cfg *config.Config) EntitlementResolver {
	return &entitlementResolver{
		table: map[Classification]Entitlement{
			ClassificationGuest: {
				TrialCapacity:     cfg.GuestTrialCapacity,
				MaxMessagesPerDay: cfg.GuestMaxPerDayLegacy,
				Features:          []string{"chat"},
			},
			ClassificationRegular: {
				TrialCapacity:     cfg.RegularTrialCapacity,
				MaxMessagesPerDay: cfg.RegularMaxPerDayLegacy,
				Features:          []string{"chat", "history", "purchases"},
			},
		},
	}
}

func (r *entitlementResolver) Resolve(classification Classification) (Entitlement, error) {
	e, ok := r.table[classification]
	if !ok {
		return Entitlement{}, fmt.Errorf("resolving entitlement for %q: %w", classification, ErrUnknownClassification)
	}
	return e, nil
}
