package service

import (
	"errors"
	"fmt"

	"github.com/mmalakhov777/tauhid2-sub002/internal/model"
)

// ErrInvalidPackage is returned when a payment references a package index that
// does not exist in the catalog. Money was received but nothing can be
// granted, so the caller must surface it to operators rather than drop it.
var ErrInvalidPackage = errors.New("invalid_package")

// PackageCatalog is the immutable ordered list of purchasable credit packages.
// Index lookup is O(1); price lookup is a linear scan, the catalog stays small.
type PackageCatalog struct {
	packages []model.CreditPackage
}

// NewPackageCatalog copies the given packages into a catalog.
func NewPackageCatalog(packages []model.CreditPackage) *PackageCatalog {
	c := &PackageCatalog{packages: make([]model.CreditPackage, len(packages))}
	copy(c.packages, packages)
	return c
}

// DefaultPackageCatalog is the catalog shipped with the chatbot.
func DefaultPackageCatalog() *PackageCatalog {
	return NewPackageCatalog([]model.CreditPackage{
		{Messages: 20, BonusMessages: 0, PriceStars: 100, Title: "Starter"},
		{Messages: 50, BonusMessages: 10, PriceStars: 225, IsPopular: true, Title: "Popular"},
		{Messages: 100, BonusMessages: 30, PriceStars: 400, Title: "Best value"},
	})
}

// Get returns the package at the given index.
func (c *PackageCatalog) Get(index int) (model.CreditPackage, error) {
	if index < 0 || index >= len(c.packages) {
		return model.CreditPackage{}, fmt.Errorf("package index %d out of range [0,%d): %w", index, len(c.packages), ErrInvalidPackage)
	}
	return c.packages[index], nil
}

// FindByPrice returns the first package priced at the given number of stars.
func (c *PackageCatalog) FindByPrice(priceStars int) (model.CreditPackage, int, bool) {
	for i, p := range c.packages {
		if p.PriceStars == priceStars {
			return p, i, true
		}
	}
	return model.CreditPackage{}, -1, false
}

// List returns a copy of all packages in catalog order.
func (c *PackageCatalog) List() []model.CreditPackage {
	out := make([]model.CreditPackage, len(c.packages))
	copy(out, c.packages)
	return out
}

// Len returns the number of packages.
func (c *PackageCatalog) Len() int { return len(c.packages) }
