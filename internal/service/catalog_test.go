package service

import (
	"errors"
	"testing"
)

func TestCatalogGet(t *testing.T) {
	catalog := DefaultPackageCatalog()

	pkg, err := catalog.Get(1)
	if err != nil {
		t.Fatalf("Get(1): %v", err)
	}
	if pkg.Messages != 50 || pkg.BonusMessages != 10 || pkg.TotalCredits() != 60 {
		t.Errorf("Get(1) = %+v, want 50+10 credits", pkg)
	}

	for _, index := range []int{-1, catalog.Len()} {
		if _, err := catalog.Get(index); !errors.Is(err, ErrInvalidPackage) {
			t.Errorf("Get(%d) error = %v, want ErrInvalidPackage", index, err)
		}
	}
}

func TestCatalogFindByPrice(t *testing.T) {
	catalog := DefaultPackageCatalog()

	pkg, index, ok := catalog.FindByPrice(225)
	if !ok || index != 1 || pkg.Title != "Popular" {
		t.Errorf("FindByPrice(225) = %+v index %d ok %v, want Popular at 1", pkg, index, ok)
	}

	if _, _, ok := catalog.FindByPrice(999); ok {
		t.Error("FindByPrice(999) found a package, want none")
	}
}

func TestCatalogListIsACopy(t *testing.T) {
	catalog := DefaultPackageCatalog()

	list := catalog.List()
	list[0].Messages = 9999

	pkg, err := catalog.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if pkg.Messages == 9999 {
		t.Error("mutating List() result changed the catalog")
	}
}
