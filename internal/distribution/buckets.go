package distribution

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tokenscope/internal/model"
)

// Percent bands in units of 1e-4 percent, matching the integer percent scale
// used by percentScaled. Half-open intervals; the last band catches overflow.
var percentBandBounds = []struct {
	limit int64
	label string
}{
	{100, "<0.01%"},
	{500, "<0.05%"},
	{1000, "<0.10%"},
	{5000, "<0.50%"},
	{10000, "<1.00%"},
}

const percentOverflowLabel = "≥1.00%"

func percentBands(scaledPercents []int64) []model.BandCount {
	bands := make([]model.BandCount, 0, len(percentBandBounds)+1)
	counts := make([]int, len(percentBandBounds)+1)

	for _, scaled := range scaledPercents {
		placed := false
		for i, bound := range percentBandBounds {
			if scaled < bound.limit {
				counts[i]++
				placed = true
				break
			}
		}
		if !placed {
			counts[len(percentBandBounds)]++
		}
	}

	for i, bound := range percentBandBounds {
		bands = append(bands, model.BandCount{Label: bound.label, Count: counts[i]})
	}
	bands = append(bands, model.BandCount{Label: percentOverflowLabel, Count: counts[len(percentBandBounds)]})
	return bands
}

// valueBandBounds derives five ascending USD thresholds from the market-cap
// scale, giving a 6-way split that adapts from micro-caps to majors.
func valueBandBounds(marketCapUSD decimal.Decimal) []decimal.Decimal {
	// Largest power of ten not exceeding the market cap, floored at $1.
	power := decimal.NewFromInt(1)
	ten := decimal.NewFromInt(10)
	for power.Mul(ten).Cmp(marketCapUSD) <= 0 {
		power = power.Mul(ten)
	}

	base := power.Div(decimal.NewFromInt(100_000))
	if base.Cmp(decimal.NewFromInt(1)) < 0 {
		base = decimal.NewFromInt(1)
	}

	multipliers := []int64{1, 5, 25, 100, 500}
	bounds := make([]decimal.Decimal, 0, len(multipliers))
	for _, m := range multipliers {
		bounds = append(bounds, base.Mul(decimal.NewFromInt(m)))
	}
	return bounds
}

func valueBands(values []decimal.Decimal, marketCapUSD decimal.Decimal) []model.BandCount {
	bounds := valueBandBounds(marketCapUSD)
	counts := make([]int, len(bounds)+1)

	for _, value := range values {
		placed := false
		for i, bound := range bounds {
			if value.Cmp(bound) < 0 {
				counts[i]++
				placed = true
				break
			}
		}
		if !placed {
			counts[len(bounds)]++
		}
	}

	bands := make([]model.BandCount, 0, len(bounds)+1)
	for i, bound := range bounds {
		bands = append(bands, model.BandCount{Label: fmt.Sprintf("<$%s", bound.String()), Count: counts[i]})
	}
	last := bounds[len(bounds)-1]
	bands = append(bands, model.BandCount{Label: fmt.Sprintf("≥$%s", last.String()), Count: counts[len(bounds)]})
	return bands
}
