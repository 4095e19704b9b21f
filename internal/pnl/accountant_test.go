package pnl

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"tokenscope/internal/model"
	"tokenscope/internal/price"
)

const (
	testWallet = "0xwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwww"
	testToken  = "0xtttttttttttttttttttttttttttttttttttttttt"
	testPool   = "0xpppppppppppppppppppppppppppppppppppppppp"
)

type fakePrices struct {
	quotes map[string]price.Quote
	err    error
}

func (f *fakePrices) Spot(_ context.Context, token string) (price.Quote, error) {
	if f.err != nil {
		return price.Quote{}, f.err
	}
	return f.quotes[token], nil
}

func newTestAccountant(t *testing.T, prices PriceSource) *Accountant {
	t.Helper()
	if prices == nil {
		prices = &fakePrices{}
	}
	a, err := New(Config{}, prices, nil)
	if err != nil {
		t.Fatalf("new accountant: %v", err)
	}
	return a
}

func nativeOut(hash string, block, ts uint64, amount *big.Int) model.AccountTransfer {
	return model.AccountTransfer{
		Kind: model.TransferNative, TxHash: hash, BlockNumber: block, Timestamp: ts,
		From: testWallet, To: testPool, ValueRaw: amount,
	}
}

func nativeIn(hash string, block, ts uint64, amount *big.Int) model.AccountTransfer {
	return model.AccountTransfer{
		Kind: model.TransferNative, TxHash: hash, BlockNumber: block, Timestamp: ts,
		From: testPool, To: testWallet, ValueRaw: amount,
	}
}

func tokenIn(hash string, block, ts uint64, qty int64) model.AccountTransfer {
	return model.AccountTransfer{
		Kind: model.TransferERC20, TxHash: hash, BlockNumber: block, Timestamp: ts,
		From: testPool, To: testWallet, ValueRaw: big.NewInt(qty),
		ContractAddress: testToken, TokenSymbol: "TST",
	}
}

func tokenOut(hash string, block, ts uint64, qty int64) model.AccountTransfer {
	return model.AccountTransfer{
		Kind: model.TransferERC20, TxHash: hash, BlockNumber: block, Timestamp: ts,
		From: testWallet, To: testPool, ValueRaw: big.NewInt(qty),
		ContractAddress: testToken, TokenSymbol: "TST",
	}
}

func TestProcessBuyThenSellScenario(t *testing.T) {
	transfers := []model.AccountTransfer{
		// H1: pay 1.0 native, receive 1,000,000 TST
		nativeOut("0xh1", 100, 1000, wei(1.0)),
		tokenIn("0xh1", 100, 1000, 1_000_000),
		// H2: sell 500,000 TST for 0.8 native
		tokenOut("0xh2", 200, 2000, 500_000),
		nativeIn("0xh2", 200, 2000, wei(0.8)),
	}

	a := newTestAccountant(t, nil)
	summary, err := a.Process(context.Background(), testWallet, transfers)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if summary.RealizedPnL != "0.3" {
		t.Fatalf("realized = %s", summary.RealizedPnL)
	}
	if summary.BaseOutflow != "1" {
		t.Fatalf("base outflow = %s", summary.BaseOutflow)
	}
	if summary.BaseInflow != "0.8" {
		t.Fatalf("base inflow = %s", summary.BaseInflow)
	}

	if len(summary.Tokens) != 1 {
		t.Fatalf("token count = %d", len(summary.Tokens))
	}
	breakdown := summary.Tokens[0]
	if breakdown.RemainingQty != "500000" {
		t.Fatalf("remaining qty = %s", breakdown.RemainingQty)
	}
	if breakdown.CostBasis != "0.5" {
		t.Fatalf("cost basis = %s", breakdown.CostBasis)
	}
	if breakdown.RealizedPnL != "0.3" {
		t.Fatalf("token realized = %s", breakdown.RealizedPnL)
	}
}

func TestProcessWrappedNativeNetting(t *testing.T) {
	wrapped := "0xcccccccccccccccccccccccccccccccccccccccc"
	transfers := []model.AccountTransfer{
		// One wrap-then-swap transaction: 2.0 native out, 2.0 wrapped in,
		// 2.0 wrapped out to the pool, tokens in. Net base is -2.0 and
		// the wrapped flows must not register as a token position.
		nativeOut("0xh1", 100, 1000, wei(2.0)),
		{Kind: model.TransferERC20, TxHash: "0xh1", BlockNumber: 100, Timestamp: 1000,
			From: wrapped, To: testWallet, ValueRaw: wei(2.0), ContractAddress: wrapped, TokenSymbol: "WETH", TokenDecimals: 18},
		{Kind: model.TransferERC20, TxHash: "0xh1", BlockNumber: 100, Timestamp: 1000,
			From: testWallet, To: testPool, ValueRaw: wei(2.0), ContractAddress: wrapped, TokenSymbol: "WETH", TokenDecimals: 18},
		tokenIn("0xh1", 100, 1000, 42_000),
	}

	a, err := New(Config{WrappedNative: wrapped}, &fakePrices{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	summary, err := a.Process(context.Background(), testWallet, transfers)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(summary.Tokens) != 1 || summary.Tokens[0].TokenAddress != testToken {
		t.Fatalf("wrapped native leaked into token view: %+v", summary.Tokens)
	}
	if summary.Tokens[0].GrossBought != "2" {
		t.Fatalf("gross bought = %s", summary.Tokens[0].GrossBought)
	}
}

func TestProcessAirdropAndNFTs(t *testing.T) {
	transfers := []model.AccountTransfer{
		tokenIn("0xh1", 100, 1000, 9_000), // no cost leg anywhere
		{Kind: model.TransferNFT, TxHash: "0xh2", BlockNumber: 150, Timestamp: 1500,
			From: testPool, To: testWallet, ContractAddress: "0xnft1", TokenSymbol: "APES", TokenID: "1"},
		{Kind: model.TransferNFT, TxHash: "0xh3", BlockNumber: 160, Timestamp: 1600,
			From: testPool, To: testWallet, ContractAddress: "0xnft1", TokenSymbol: "APES", TokenID: "2"},
	}

	a := newTestAccountant(t, nil)
	summary, err := a.Process(context.Background(), testWallet, transfers)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(summary.Airdrops) != 1 || summary.Airdrops[0].Quantity != "9000" {
		t.Fatalf("airdrops = %+v", summary.Airdrops)
	}
	if len(summary.NFTAirdrops) != 1 {
		t.Fatalf("nft airdrops = %+v", summary.NFTAirdrops)
	}
	if summary.NFTAirdrops[0].Count != 2 || summary.NFTAirdrops[0].Name != "APES" {
		t.Fatalf("nft collection = %+v", summary.NFTAirdrops[0])
	}
	if summary.RealizedPnL != "0" {
		t.Fatalf("airdrop affected realized pnl: %s", summary.RealizedPnL)
	}
}

func TestProcessUnrealizedFromSpot(t *testing.T) {
	prices := &fakePrices{quotes: map[string]price.Quote{
		testToken: {
			PriceNative: decimal.RequireFromString("0.000002"),
			PriceUSD:    decimal.RequireFromString("0.004"),
		},
	}}

	transfers := []model.AccountTransfer{
		nativeOut("0xh1", 100, 1000, wei(1.0)),
		tokenIn("0xh1", 100, 1000, 1_000_000),
	}

	a := newTestAccountant(t, prices)
	summary, err := a.Process(context.Background(), testWallet, transfers)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	// 1,000,000 units at 0.000002 = 2.0 marked value minus 1.0 basis.
	if summary.UnrealizedPnL != "1" {
		t.Fatalf("unrealized = %s", summary.UnrealizedPnL)
	}
	if len(summary.OpenPositions) != 1 {
		t.Fatalf("open positions = %+v", summary.OpenPositions)
	}
	if summary.OpenPositions[0].ValueUSD != "4000" {
		t.Fatalf("value usd = %s", summary.OpenPositions[0].ValueUSD)
	}
}

func TestProcessPriceFailureDegradesToken(t *testing.T) {
	prices := &fakePrices{err: fmt.Errorf("oracle down")}

	transfers := []model.AccountTransfer{
		nativeOut("0xh1", 100, 1000, wei(1.0)),
		tokenIn("0xh1", 100, 1000, 1_000_000),
	}

	a := newTestAccountant(t, prices)
	summary, err := a.Process(context.Background(), testWallet, transfers)
	if err != nil {
		t.Fatalf("price failure must not abort: %v", err)
	}

	if len(summary.Tokens) != 1 || !summary.Tokens[0].QuoteFailed {
		t.Fatalf("token not degraded: %+v", summary.Tokens)
	}
	if summary.UnrealizedPnL != "0" {
		t.Fatalf("unrealized = %s", summary.UnrealizedPnL)
	}
	// The position is still reported open; without a quote there is no
	// basis to call it dust.
	if len(summary.OpenPositions) != 1 {
		t.Fatalf("open positions = %+v", summary.OpenPositions)
	}
}

func TestProcessClosedPositionRanking(t *testing.T) {
	otherToken := "0xuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuuu"
	transfers := []model.AccountTransfer{
		// Token 1: buy 1.0, sell all for 1.6 -> +0.6 gain, closed.
		nativeOut("0xh1", 100, 1000, wei(1.0)),
		tokenIn("0xh1", 100, 1000, 1000),
		tokenOut("0xh2", 110, 1100, 1000),
		nativeIn("0xh2", 110, 1100, wei(1.6)),
		// Token 2: buy 2.0, sell all for 0.5 -> -1.5 loss, closed.
		nativeOut("0xh3", 120, 1200, wei(2.0)),
		{Kind: model.TransferERC20, TxHash: "0xh3", BlockNumber: 120, Timestamp: 1200,
			From: testPool, To: testWallet, ValueRaw: big.NewInt(800), ContractAddress: otherToken, TokenSymbol: "OTH"},
		{Kind: model.TransferERC20, TxHash: "0xh4", BlockNumber: 130, Timestamp: 1300,
			From: testWallet, To: testPool, ValueRaw: big.NewInt(800), ContractAddress: otherToken, TokenSymbol: "OTH"},
		nativeIn("0xh4", 130, 1300, wei(0.5)),
	}

	a := newTestAccountant(t, nil)
	summary, err := a.Process(context.Background(), testWallet, transfers)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(summary.TopGains) != 1 || summary.TopGains[0].RealizedPnL != "0.6" {
		t.Fatalf("top gains = %+v", summary.TopGains)
	}
	if len(summary.TopLosses) != 1 || summary.TopLosses[0].RealizedPnL != "-1.5" {
		t.Fatalf("top losses = %+v", summary.TopLosses)
	}
	if summary.RealizedPnL != "-0.9" {
		t.Fatalf("total realized = %s", summary.RealizedPnL)
	}
}
