// Package distribution derives holder analytics from a balance ledger:
// top-N holders, the Gini concentration index, and percent/value histograms.
package distribution

import (
	"math"
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"tokenscope/internal/ledger"
	"tokenscope/internal/model"
)

// Input carries everything Analyze needs. TotalSupply may be nil, in which
// case it is inferred from the ledger sum plus the burned counter.
type Input struct {
	Ledger      ledger.Ledger
	TotalSupply *big.Int
	Burned      *big.Int
	Excluded    map[string]struct{}
	PriceUSD    decimal.Decimal
	Decimals    uint8
	TopN        int
}

// Result holds the derived analytics; identity fields of the summary
// document are filled in by the caller.
type Result struct {
	HolderCount  int
	TopHolders   []model.HolderRow
	TopCombined  float64
	Gini         float64
	PercentBands []model.BandCount
	ValueBands   []model.BandCount
	TotalSupply  *big.Int
	BurnPercent  float64
}

// Analyze computes the distribution view over the included holders. Percent
// arithmetic is done on raw integers (floor(balance*1e6/supply)/1e4) so
// results do not drift with float rounding.
func Analyze(in Input) Result {
	burned := in.Burned
	if burned == nil {
		burned = big.NewInt(0)
	}

	totalSupply := in.TotalSupply
	if totalSupply == nil || totalSupply.Sign() <= 0 {
		totalSupply = new(big.Int).Add(in.Ledger.Sum(), burned)
	}

	// The considered supply excludes balances held by excluded addresses
	// (liquidity pools, the token contract itself during bonding phases).
	consideredSupply := new(big.Int).Set(totalSupply)
	holders := make([]model.HolderRow, 0, len(in.Ledger))
	for address, balance := range in.Ledger {
		if _, excluded := in.Excluded[address]; excluded {
			consideredSupply.Sub(consideredSupply, balance)
			continue
		}
		holders = append(holders, model.HolderRow{
			Address:    address,
			BalanceRaw: balance,
			Balance:    balance.String(),
		})
	}

	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].BalanceRaw.Cmp(holders[j].BalanceRaw) > 0
	})

	scaledPercents := make([]int64, len(holders))
	balances := make([]*big.Int, len(holders))
	for i := range holders {
		scaled := percentScaled(holders[i].BalanceRaw, consideredSupply)
		scaledPercents[i] = scaled
		holders[i].PercentOfSupply = float64(scaled) / 1e4
		balances[i] = holders[i].BalanceRaw
	}

	topN := in.TopN
	if topN <= 0 {
		topN = 10
	}
	if topN > len(holders) {
		topN = len(holders)
	}

	topCombined := 0.0
	for i := 0; i < topN; i++ {
		topCombined += holders[i].PercentOfSupply
	}
	topCombined = math.Round(topCombined*1e4) / 1e4

	result := Result{
		HolderCount:  len(holders),
		TopHolders:   holders[:topN],
		TopCombined:  topCombined,
		Gini:         Gini(balances),
		PercentBands: percentBands(scaledPercents),
		TotalSupply:  totalSupply,
		BurnPercent:  float64(percentScaled(burned, totalSupply)) / 1e4,
	}

	if in.PriceUSD.IsPositive() {
		scale := decimal.New(1, int32(in.Decimals))
		values := make([]decimal.Decimal, len(holders))
		for i, holder := range holders {
			values[i] = decimal.NewFromBigInt(holder.BalanceRaw, 0).Div(scale).Mul(in.PriceUSD)
		}
		marketCap := decimal.NewFromBigInt(totalSupply, 0).Div(scale).Mul(in.PriceUSD)
		result.ValueBands = valueBands(values, marketCap)
	}

	return result
}

// percentScaled returns floor(balance * 1e6 / supply), i.e. the percent of
// supply in units of 1e-4 percent.
func percentScaled(balance, supply *big.Int) int64 {
	if supply == nil || supply.Sign() <= 0 || balance == nil || balance.Sign() <= 0 {
		return 0
	}
	scaled := new(big.Int).Mul(balance, big.NewInt(1_000_000))
	scaled.Quo(scaled, supply)
	if !scaled.IsInt64() {
		return 0
	}
	return scaled.Int64()
}
