package service

import (
	"errors"
	"testing"
)

func TestDiscountPercent(t *testing.T) {
	cases := []struct {
		price, original float64
		want            int
	}{
		{80, 100, 20},
		{99.9, 149.9, 33},
		{100, 0, 0},
		{120, 100, 0},
		{0, 100, 100},
	}
	for _, tc := range cases {
		if got := discountPercent(tc.price, tc.original); got != tc.want {
			t.Fatalf("discountPercent(%v, %v) = %d, want %d", tc.price, tc.original, got, tc.want)
		}
	}
}

func TestResolvePriceUpdateKeepsExistingValues(t *testing.T) {
	newPrice := 75.0
	result, err := resolvePriceUpdate(100, 100, priceUpdateInput{Price: &newPrice})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Price != 75 || result.OriginalPrice != 100 || result.Discount != 25 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestResolvePriceUpdateClearsDiscountWithoutOriginal(t *testing.T) {
	zero := 0.0
	result, err := resolvePriceUpdate(80, 100, priceUpdateInput{OriginalPrice: &zero})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Discount != 0 {
		t.Fatalf("expected discount 0, got %d", result.Discount)
	}
}

func TestResolvePriceUpdateRejectsNegativePrice(t *testing.T) {
	negative := -1.0
	_, err := resolvePriceUpdate(80, 100, priceUpdateInput{Price: &negative})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
