package service

import (
	"errors"
	"testing"

	"github.com/mmalakhov777/tauhid2-sub002/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		GuestTrialCapacity:     2,
		RegularTrialCapacity:   10,
		GuestMaxPerDayLegacy:   2,
		RegularMaxPerDayLegacy: 10,
	}
}

func TestResolveKnownClassifications(t *testing.T) {
	resolver := NewEntitlementResolver(testConfig())

	guest, err := resolver.Resolve(ClassificationGuest)
	if err != nil {
		t.Fatalf("Resolve(guest): %v", err)
	}
	if guest.TrialCapacity != 2 || guest.MaxMessagesPerDay != 2 {
		t.Errorf("guest entitlement = %+v, want capacity 2 and max 2", guest)
	}

	regular, err := resolver.Resolve(ClassificationRegular)
	if err != nil {
		t.Fatalf("Resolve(regular): %v", err)
	}
	if regular.TrialCapacity != 10 || regular.MaxMessagesPerDay != 10 {
		t.Errorf("regular entitlement = %+v, want capacity 10 and max 10", regular)
	}
}

func TestResolveUnknownClassification(t *testing.T) {
	resolver := NewEntitlementResolver(testConfig())

	_, err := resolver.Resolve(Classification("premium"))
	if !errors.Is(err, ErrUnknownClassification) {
		t.Errorf("Resolve(premium) error = %v, want ErrUnknownClassification", err)
	}
}
