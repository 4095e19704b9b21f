// Package pnl reconstructs a wallet's per-token profit and loss from its
// transfer history using average-cost accounting. Token movements are
// classified as buys, sells, airdrops, or zero-proceeds disposals by an
// ordered cascade of settlement heuristics.
package pnl

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenscope/internal/model"
	"tokenscope/internal/price"
)

// PriceSource is the spot-price collaborator.
type PriceSource interface {
	Spot(ctx context.Context, token string) (price.Quote, error)
}

// Config holds the accountant's tuning knobs. The near-block span and dust
// thresholds are deliberately configuration, not literals.
type Config struct {
	WrappedNative string
	Routers       map[string]struct{}
	NearBlockSpan uint64
	DustQty       decimal.Decimal
	DustUSD       decimal.Decimal
	TopN          int
}

func (c Config) withDefaults() Config {
	c.WrappedNative = strings.ToLower(c.WrappedNative)
	if c.Routers == nil {
		c.Routers = make(map[string]struct{})
	}
	if c.NearBlockSpan == 0 {
		c.NearBlockSpan = 2
	}
	if c.DustQty.IsZero() {
		c.DustQty = decimal.NewFromInt(5)
	}
	if c.DustUSD.IsZero() {
		c.DustUSD = decimal.NewFromInt(1)
	}
	if c.TopN == 0 {
		c.TopN = 5
	}
	return c
}

// Accountant computes wallet PnL summaries.
type Accountant struct {
	cfg    Config
	prices PriceSource
	logger *zap.Logger
}

// New builds an Accountant.
func New(cfg Config, prices PriceSource, logger *zap.Logger) (*Accountant, error) {
	if prices == nil {
		return nil, fmt.Errorf("price source is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accountant{cfg: cfg.withDefaults(), prices: prices, logger: logger}, nil
}

// Process replays the wallet's transfers in chronological order and returns
// the PnL summary. A failed price lookup degrades the affected token to a
// zero quote; it never aborts the whole computation.
func (a *Accountant) Process(ctx context.Context, wallet string, transfers []model.AccountTransfer) (*model.WalletSummary, error) {
	wallet = strings.ToLower(wallet)

	legsByHash, blockFlows, order := buildLegs(wallet, transfers, a.cfg.WrappedNative)

	quotes := newQuoteCache(a.prices, a.logger)
	cctx := &classifyContext{
		blockFlows: blockFlows,
		usedBlocks: make(map[uint64]struct{}),
		routers:    a.cfg.Routers,
		nearSpan:   a.cfg.NearBlockSpan,
		spotWei: func(token string, qty *big.Int, decimals uint8) (*big.Int, bool) {
			quote, ok := quotes.get(ctx, token)
			if !ok || !quote.PriceNative.IsPositive() {
				return nil, false
			}
			wei := scaledQty(qty, decimals).Mul(quote.PriceNative).Mul(weiScale)
			return wei.BigInt(), true
		},
	}

	positions := make(map[string]*Position)
	baseInflow := big.NewInt(0)
	baseOutflow := big.NewInt(0)

	for _, hash := range order {
		legs := legsByHash[hash]
		for _, move := range tokenMoves(legs) {
			pos, ok := positions[move.Token]
			if !ok {
				pos = newPosition(move.Token, move.Flow.Symbol, move.Flow.Decimals)
				positions[move.Token] = pos
			}

			resolution := classify(cctx, move)
			switch resolution.Kind {
			case LegBuy:
				pos.Buy(move.Qty, resolution.Base)
				baseOutflow.Add(baseOutflow, resolution.Base)
			case LegSell:
				pos.Sell(move.Qty, resolution.Base)
				baseInflow.Add(baseInflow, resolution.Base)
			case LegAirdrop:
				pos.Airdrop(move.Qty)
			case LegDisposal:
				pos.Dispose(move.Qty)
			}
		}
	}

	return a.summarize(ctx, wallet, positions, transfers, quotes, baseInflow, baseOutflow), nil
}

func (a *Accountant) summarize(ctx context.Context, wallet string, positions map[string]*Position, transfers []model.AccountTransfer, quotes *quoteCache, baseInflow, baseOutflow *big.Int) *model.WalletSummary {
	summary := &model.WalletSummary{
		WalletAddress: wallet,
		BaseInflow:    weiToBase(baseInflow).String(),
		BaseOutflow:   weiToBase(baseOutflow).String(),
		Tokens:        make([]model.TokenBreakdown, 0, len(positions)),
		OpenPositions: make([]model.OpenPosition, 0),
		TopGains:      make([]model.ClosedPosition, 0),
		TopLosses:     make([]model.ClosedPosition, 0),
		Airdrops:      make([]model.AirdropEntry, 0),
		NFTAirdrops:   nftAirdrops(wallet, transfers),
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	tokens := make([]string, 0, len(positions))
	for token := range positions {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	totalRealized := big.NewInt(0)
	totalUnrealized := big.NewInt(0)
	var closed []*Position

	for _, token := range tokens {
		pos := positions[token]
		totalRealized.Add(totalRealized, pos.Realized)

		quote, ok := quotes.get(ctx, token)
		if !ok {
			pos.QuoteFailed = true
			quote = price.Quote{}
		}

		qty := scaledQty(pos.RemainingQty, pos.Decimals)
		valueUSD := qty.Mul(quote.PriceUSD)

		// A failed or zero quote leaves unrealized at 0 with QuoteFailed
		// set; holdings are not marked down to a zero price.
		unrealized := big.NewInt(0)
		if pos.RemainingQty.Sign() > 0 && quote.PriceNative.IsPositive() {
			spotValue := qty.Mul(quote.PriceNative).Mul(weiScale).BigInt()
			unrealized.Sub(spotValue, pos.CostBasis)
			totalUnrealized.Add(totalUnrealized, unrealized)
		}

		summary.Tokens = append(summary.Tokens, model.TokenBreakdown{
			TokenAddress:  pos.Token,
			TokenSymbol:   pos.Symbol,
			TokenDecimals: pos.Decimals,
			RemainingQty:  qty.String(),
			CostBasis:     weiToBase(pos.CostBasis).String(),
			RealizedPnL:   weiToBase(pos.Realized).String(),
			UnrealizedPnL: weiToBase(unrealized).String(),
			GrossBought:   weiToBase(pos.GrossBought).String(),
			GrossSold:     weiToBase(pos.GrossSold).String(),
			AirdropQty:    scaledQty(pos.AirdropQty, pos.Decimals).String(),
			ValueUSD:      valueUSD.String(),
			QuoteFailed:   pos.QuoteFailed,
		})

		if pos.AirdropQty.Sign() > 0 {
			summary.Airdrops = append(summary.Airdrops, model.AirdropEntry{
				TokenAddress: pos.Token,
				TokenSymbol:  pos.Symbol,
				Quantity:     scaledQty(pos.AirdropQty, pos.Decimals).String(),
			})
		}

		// Positions at or below the dust quantity count as closed; the
		// rest are open when their value clears the dust threshold (or
		// when no quote is available to judge them by).
		if qty.Cmp(a.cfg.DustQty) <= 0 {
			closed = append(closed, pos)
			continue
		}
		if pos.QuoteFailed || !quote.PriceUSD.IsPositive() || valueUSD.Cmp(a.cfg.DustUSD) > 0 {
			summary.OpenPositions = append(summary.OpenPositions, model.OpenPosition{
				TokenAddress: pos.Token,
				TokenSymbol:  pos.Symbol,
				Quantity:     qty.String(),
				CostBasis:    weiToBase(pos.CostBasis).String(),
				ValueUSD:     valueUSD.String(),
				Unrealized:   weiToBase(unrealized).String(),
			})
		}
	}

	summary.RealizedPnL = weiToBase(totalRealized).String()
	summary.UnrealizedPnL = weiToBase(totalUnrealized).String()
	summary.TopGains, summary.TopLosses = rankClosed(closed, a.cfg.TopN)
	return summary
}

func rankClosed(closed []*Position, topN int) ([]model.ClosedPosition, []model.ClosedPosition) {
	gains := make([]model.ClosedPosition, 0)
	losses := make([]model.ClosedPosition, 0)

	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].Realized.Cmp(closed[j].Realized) > 0
	})
	for _, pos := range closed {
		if pos.Realized.Sign() <= 0 {
			break
		}
		gains = append(gains, closedRow(pos))
		if len(gains) == topN {
			break
		}
	}

	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].Realized.Cmp(closed[j].Realized) < 0
	})
	for _, pos := range closed {
		if pos.Realized.Sign() >= 0 {
			break
		}
		losses = append(losses, closedRow(pos))
		if len(losses) == topN {
			break
		}
	}

	return gains, losses
}

func closedRow(pos *Position) model.ClosedPosition {
	return model.ClosedPosition{
		TokenAddress: pos.Token,
		TokenSymbol:  pos.Symbol,
		RealizedPnL:  weiToBase(pos.Realized).String(),
		GrossBought:  weiToBase(pos.GrossBought).String(),
		GrossSold:    weiToBase(pos.GrossSold).String(),
	}
}

func nftAirdrops(wallet string, transfers []model.AccountTransfer) []model.NFTAirdrop {
	type bucket struct {
		name  string
		count int
	}
	counts := make(map[string]*bucket)
	for _, transfer := range transfers {
		if transfer.Kind != model.TransferNFT || transfer.To != wallet {
			continue
		}
		b, ok := counts[transfer.ContractAddress]
		if !ok {
			b = &bucket{name: transfer.TokenSymbol}
			counts[transfer.ContractAddress] = b
		}
		b.count++
	}

	collections := make([]string, 0, len(counts))
	for collection := range counts {
		collections = append(collections, collection)
	}
	sort.Strings(collections)

	out := make([]model.NFTAirdrop, 0, len(collections))
	for _, collection := range collections {
		out = append(out, model.NFTAirdrop{
			Collection: collection,
			Name:       counts[collection].name,
			Count:      counts[collection].count,
		})
	}
	return out
}

// quoteCache memoizes spot lookups per token for the duration of one
// computation. Failures are remembered too, so a flapping oracle is asked
// once per token at most.
type quoteCache struct {
	prices PriceSource
	logger *zap.Logger
	quotes map[string]price.Quote
	failed map[string]struct{}
}

func newQuoteCache(prices PriceSource, logger *zap.Logger) *quoteCache {
	return &quoteCache{
		prices: prices,
		logger: logger,
		quotes: make(map[string]price.Quote),
		failed: make(map[string]struct{}),
	}
}

func (c *quoteCache) get(ctx context.Context, token string) (price.Quote, bool) {
	if quote, ok := c.quotes[token]; ok {
		return quote, true
	}
	if _, ok := c.failed[token]; ok {
		return price.Quote{}, false
	}

	quote, err := c.prices.Spot(ctx, token)
	if err != nil {
		c.logger.Warn("spot price lookup failed", zap.String("token", token), zap.Error(err))
		c.failed[token] = struct{}{}
		return price.Quote{}, false
	}
	c.quotes[token] = quote
	return quote, true
}

var weiScale = decimal.New(1, 18)

func weiToBase(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}

func scaledQty(qty *big.Int, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(qty, -int32(decimals))
}
