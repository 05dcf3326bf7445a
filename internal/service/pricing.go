package service

import (
	"github.com/shopspring/decimal"
)

type priceUpdateInput struct {
	Price         *float64
	OriginalPrice *float64
}

type priceUpdateResult struct {
	Price         float64
	OriginalPrice float64
	Discount      int
}

// discountPercent derives the discount shown next to a price. It is never
// stored from client input.
func discountPercent(price, originalPrice float64) int {
	if originalPrice <= 0 {
		return 0
	}
	orig := decimal.NewFromFloat(originalPrice)
	off := orig.Sub(decimal.NewFromFloat(price)).Div(orig).Mul(decimal.NewFromInt(100)).Round(0)
	pct := int(off.IntPart())
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func validatePriceFields(price, originalPrice float64) error {
	if price < 0 {
		return fail(ErrValidation, "price must not be negative")
	}
	if originalPrice < 0 {
		return fail(ErrValidation, "originalPrice must not be negative")
	}
	return nil
}

// resolvePriceUpdate merges a partial price change into the stored values
// and derives the new discount.
func resolvePriceUpdate(existingPrice, existingOriginal float64, input priceUpdateInput) (priceUpdateResult, error) {
	result := priceUpdateResult{
		Price:         existingPrice,
		OriginalPrice: existingOriginal,
	}
	if input.Price != nil {
		result.Price = *input.Price
	}
	if input.OriginalPrice != nil {
		result.OriginalPrice = *input.OriginalPrice
	}

	if err := validatePriceFields(result.Price, result.OriginalPrice); err != nil {
		return priceUpdateResult{}, err
	}

	result.Discount = discountPercent(result.Price, result.OriginalPrice)
	return result, nil
}
