package distribution

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"tokenscope/internal/ledger"
)

func TestAnalyzeExcludedPoolScenario(t *testing.T) {
	// Supply 1,000,000: pool A holds 600,000 (excluded), B and C hold
	// 200,000 each. After exclusion the considered supply is 400,000 and
	// the top-10 combined percent is 100%.
	balances := ledger.Ledger{
		"0xpool": big.NewInt(600_000),
		"0xb":    big.NewInt(200_000),
		"0xc":    big.NewInt(200_000),
	}

	result := Analyze(Input{
		Ledger:      balances,
		TotalSupply: big.NewInt(1_000_000),
		Excluded:    map[string]struct{}{"0xpool": {}},
	})

	if result.HolderCount != 2 {
		t.Fatalf("holder count = %d", result.HolderCount)
	}
	if result.TopCombined != 100.0 {
		t.Fatalf("top combined = %v", result.TopCombined)
	}
	if result.Gini != 0 {
		t.Fatalf("gini over equal holders = %v", result.Gini)
	}
	for _, row := range result.TopHolders {
		if row.PercentOfSupply != 50.0 {
			t.Fatalf("holder percent = %v", row.PercentOfSupply)
		}
	}
}

func TestAnalyzeInfersSupplyFromLedger(t *testing.T) {
	balances := ledger.Ledger{
		"0xa": big.NewInt(700),
		"0xb": big.NewInt(200),
	}

	result := Analyze(Input{Ledger: balances, Burned: big.NewInt(100)})

	if result.TotalSupply.Int64() != 1000 {
		t.Fatalf("inferred supply = %s", result.TotalSupply)
	}
	if result.BurnPercent != 10.0 {
		t.Fatalf("burn percent = %v", result.BurnPercent)
	}
}

func TestGiniBounds(t *testing.T) {
	cases := [][]*big.Int{
		{},
		{big.NewInt(100)},
		{big.NewInt(1), big.NewInt(1), big.NewInt(1)},
		{big.NewInt(1), big.NewInt(10), big.NewInt(100), big.NewInt(1000)},
	}
	for i, balances := range cases {
		g := Gini(balances)
		if g < 0 || g > 1 {
			t.Fatalf("case %d: gini %v out of bounds", i, g)
		}
	}
}

func TestGiniEqualDistributionIsZero(t *testing.T) {
	balances := make([]*big.Int, 50)
	for i := range balances {
		balances[i] = big.NewInt(12345)
	}
	if g := Gini(balances); g != 0 {
		t.Fatalf("equal distribution gini = %v", g)
	}
}

func TestGiniSingleDominantHolder(t *testing.T) {
	// One whale and a thousand dust holders: the index approaches 1.
	balances := []*big.Int{new(big.Int).SetUint64(1_000_000_000_000)}
	for i := 0; i < 1000; i++ {
		balances = append(balances, big.NewInt(1))
	}
	g := Gini(balances)
	if g < 0.99 || g > 1 {
		t.Fatalf("dominant holder gini = %v", g)
	}
}

func TestGiniZeroOrOneHolders(t *testing.T) {
	if g := Gini(nil); g != 0 {
		t.Fatalf("empty set gini = %v", g)
	}
	if g := Gini([]*big.Int{big.NewInt(999)}); g != 0 {
		t.Fatalf("single holder gini = %v", g)
	}
}

func TestPercentBandsHalfOpen(t *testing.T) {
	// Scaled units are 1e-4 percent: 99 → 0.0099%, 100 → 0.01%.
	bands := percentBands([]int64{99, 100, 9_999, 10_000, 50_000})

	want := map[string]int{
		"<0.01%": 1,
		"<0.05%": 1,
		"<1.00%": 1,
		"≥1.00%": 2,
	}
	for _, band := range bands {
		if count, ok := want[band.Label]; ok && band.Count != count {
			t.Fatalf("band %s = %d, want %d", band.Label, band.Count, count)
		}
	}
}

func TestValueBandsScaleWithMarketCap(t *testing.T) {
	values := []decimal.Decimal{
		decimal.NewFromInt(5),
		decimal.NewFromInt(5_000),
		decimal.NewFromInt(500_000),
	}
	bands := valueBands(values, decimal.NewFromInt(10_000_000))

	if len(bands) != 6 {
		t.Fatalf("expected 6 bands, got %d", len(bands))
	}
	total := 0
	for _, band := range bands {
		total += band.Count
	}
	if total != len(values) {
		t.Fatalf("each holder must land in exactly one band, counted %d", total)
	}
	// $10M market cap puts the overflow band at ≥$50000.
	last := bands[len(bands)-1]
	if last.Label != "≥$50000" {
		t.Fatalf("overflow band label = %s", last.Label)
	}
	if last.Count != 1 {
		t.Fatalf("overflow band count = %d", last.Count)
	}
}

func TestPercentScaledIntegerFloor(t *testing.T) {
	supply := new(big.Int)
	supply.SetString("1000000000000000000000000", 10) // 1e24

	third := new(big.Int)
	third.SetString("333333333333333333333333", 10)

	if got := percentScaled(third, supply); got != 333_333 {
		t.Fatalf("scaled = %d", got)
	}

	// A balance far below one unit of 1e-4 percent floors to zero.
	if got := percentScaled(big.NewInt(1), supply); got != 0 {
		t.Fatalf("dust scaled = %d", got)
	}
}

func TestValueBandBoundsAscending(t *testing.T) {
	for _, mc := range []int64{0, 50, 5_000, 5_000_000, 5_000_000_000} {
		bounds := valueBandBounds(decimal.NewFromInt(mc))
		if len(bounds) != 5 {
			t.Fatalf("mc %d: %d bounds", mc, len(bounds))
		}
		for i := 1; i < len(bounds); i++ {
			if bounds[i].Cmp(bounds[i-1]) <= 0 {
				t.Fatalf("mc %d: bounds not ascending: %v", mc, fmt.Sprint(bounds))
			}
		}
	}
}
