package distribution

import (
	"math/big"
	"sort"
)

// Gini computes the concentration index over the share distribution of the
// given balances via the discrete Lorenz-curve area (trapezoid rule over
// cumulative sums). Defined as 0 for fewer than two holders; clamped to [0,1].
func Gini(balances []*big.Int) float64 {
	n := len(balances)
	if n <= 1 {
		return 0
	}

	sorted := make([]*big.Int, n)
	copy(sorted, balances)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) < 0
	})

	total := big.NewInt(0)
	for _, balance := range sorted {
		total.Add(total, balance)
	}
	if total.Sign() <= 0 {
		return 0
	}

	// acc accumulates cum(i-1) + cum(i); the normalized area under the
	// Lorenz curve is acc / (2 * n * total).
	acc := big.NewInt(0)
	cum := big.NewInt(0)
	for _, balance := range sorted {
		acc.Add(acc, cum)
		cum.Add(cum, balance)
		acc.Add(acc, cum)
	}

	ratio := new(big.Rat).SetFrac(acc, new(big.Int).Mul(big.NewInt(int64(n)), total))
	area, _ := ratio.Float64()
	g := 1 - area

	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}
