package pnl

import "math/big"

// Position is the running average-cost state for one token. Quantities are
// raw token units; monetary fields are wei of the base asset. RemainingQty
// and CostBasis never go negative: shortfalls from estimate noise clamp to
// zero.
type Position struct {
	Token    string
	Symbol   string
	Decimals uint8

	RemainingQty *big.Int
	CostBasis    *big.Int
	Realized     *big.Int
	GrossBought  *big.Int
	GrossSold    *big.Int
	AirdropQty   *big.Int

	QuoteFailed bool
}

func newPosition(token, symbol string, decimals uint8) *Position {
	return &Position{
		Token:        token,
		Symbol:       symbol,
		Decimals:     decimals,
		RemainingQty: big.NewInt(0),
		CostBasis:    big.NewInt(0),
		Realized:     big.NewInt(0),
		GrossBought:  big.NewInt(0),
		GrossSold:    big.NewInt(0),
		AirdropQty:   big.NewInt(0),
	}
}

// Buy blends qty at cost into the average-cost lot.
func (p *Position) Buy(qty, cost *big.Int) {
	p.RemainingQty.Add(p.RemainingQty, qty)
	p.CostBasis.Add(p.CostBasis, cost)
	p.GrossBought.Add(p.GrossBought, cost)
}

// Airdrop adds a zero-cost lot.
func (p *Position) Airdrop(qty *big.Int) {
	p.RemainingQty.Add(p.RemainingQty, qty)
	p.AirdropQty.Add(p.AirdropQty, qty)
}

// Sell realizes proceeds against the blended unit cost. The sold quantity is
// clamped to the remaining position; cost of sold is computed with integer
// arithmetic (basis * qty / remaining) to avoid float drift.
func (p *Position) Sell(qty, proceeds *big.Int) {
	sold := clampQty(qty, p.RemainingQty)

	costOfSold := big.NewInt(0)
	if p.RemainingQty.Sign() > 0 && sold.Sign() > 0 {
		costOfSold.Mul(p.CostBasis, sold)
		costOfSold.Quo(costOfSold, p.RemainingQty)
	}

	p.Realized.Add(p.Realized, new(big.Int).Sub(proceeds, costOfSold))
	p.GrossSold.Add(p.GrossSold, proceeds)

	p.RemainingQty.Sub(p.RemainingQty, sold)
	p.CostBasis.Sub(p.CostBasis, costOfSold)
	clampZero(p.RemainingQty)
	clampZero(p.CostBasis)
}

// Dispose removes qty with zero proceeds, reducing the cost basis
// proportionally without touching realized PnL.
func (p *Position) Dispose(qty *big.Int) {
	removed := clampQty(qty, p.RemainingQty)
	if removed.Sign() == 0 {
		return
	}

	costRemoved := big.NewInt(0)
	if p.RemainingQty.Sign() > 0 {
		costRemoved.Mul(p.CostBasis, removed)
		costRemoved.Quo(costRemoved, p.RemainingQty)
	}

	p.RemainingQty.Sub(p.RemainingQty, removed)
	p.CostBasis.Sub(p.CostBasis, costRemoved)
	clampZero(p.RemainingQty)
	clampZero(p.CostBasis)
}

func clampQty(qty, limit *big.Int) *big.Int {
	if qty.Cmp(limit) > 0 {
		return new(big.Int).Set(limit)
	}
	return new(big.Int).Set(qty)
}

func clampZero(value *big.Int) {
	if value.Sign() < 0 {
		value.SetInt64(0)
	}
}
