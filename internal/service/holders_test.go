package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"tokenscope/internal/cache"
	"tokenscope/internal/model"
	"tokenscope/internal/price"
	"tokenscope/internal/storage"
	"tokenscope/internal/token"
)

const (
	holderToken = "0xtttttttttttttttttttttttttttttttttttttttt"
	holderA     = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	holderB     = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

type fakeCrawl struct {
	events         []model.TransferEvent
	eventsPartial  bool
	eventsErr      error
	logCalls       int
	transfers      []model.AccountTransfer
	historyPartial bool
	historyErr     error
	historyCalls   int
}

func (f *fakeCrawl) FetchTransferLogs(_ context.Context, _ string, _, _ uint64) ([]model.TransferEvent, bool, error) {
	f.logCalls++
	return f.events, f.eventsPartial, f.eventsErr
}

func (f *fakeCrawl) FetchAccountHistory(_ context.Context, _ string, _ int64) ([]model.AccountTransfer, bool, error) {
	f.historyCalls++
	return f.transfers, f.historyPartial, f.historyErr
}

type fakeInfo struct {
	supply      *big.Int
	supplyErr   error
	creation    uint64
	found       bool
	creationErr error
}

func (f *fakeInfo) TokenSupply(context.Context, string) (*big.Int, error) {
	return f.supply, f.supplyErr
}

func (f *fakeInfo) ContractCreation(context.Context, string) (uint64, bool, error) {
	return f.creation, f.found, f.creationErr
}

type fakeHead struct{ latest uint64 }

func (f *fakeHead) LatestBlockNumber(context.Context) (uint64, error) { return f.latest, nil }

type fakeMeta struct {
	meta      token.Meta
	metaErr   error
	supply    *big.Int
	supplyErr error
}

func (f *fakeMeta) Meta(context.Context, string) (token.Meta, error) { return f.meta, f.metaErr }

func (f *fakeMeta) TotalSupply(context.Context, string) (*big.Int, error) {
	return f.supply, f.supplyErr
}

type fakeQuotes struct {
	quote price.Quote
	err   error
}

func (f *fakeQuotes) Spot(context.Context, string) (price.Quote, error) { return f.quote, f.err }

type recordingSink struct {
	distributions []*model.DistributionSummary
	wallets       []*model.WalletSummary
}

func (r *recordingSink) SaveDistribution(_ context.Context, s *model.DistributionSummary) error {
	r.distributions = append(r.distributions, s)
	return nil
}

func (r *recordingSink) SaveWalletSummary(_ context.Context, s *model.WalletSummary) error {
	r.wallets = append(r.wallets, s)
	return nil
}

func transferEvent(block, logIndex uint64, from, to string, value int64) model.TransferEvent {
	return model.TransferEvent{
		TxHash:      fmt.Sprintf("0x%x", block*1000+logIndex),
		BlockNumber: block,
		LogIndex:    logIndex,
		From:        from,
		To:          to,
		ValueRaw:    big.NewInt(value),
	}
}

func holderFixture() (*fakeCrawl, *fakeInfo, *fakeHead, *fakeMeta, *fakeQuotes) {
	crawl := &fakeCrawl{
		events: []model.TransferEvent{
			transferEvent(10, 0, zeroAddress, holderA, 1000),
			transferEvent(20, 0, holderA, holderB, 400),
		},
	}
	info := &fakeInfo{supply: big.NewInt(1000), creation: 10, found: true}
	head := &fakeHead{latest: 500}
	meta := &fakeMeta{meta: token.Meta{Address: holderToken, Symbol: "TST", Decimals: 0}}
	quotes := &fakeQuotes{}
	return crawl, info, head, meta, quotes
}

func newHolderAnalyzer(t *testing.T, crawl *fakeCrawl, info *fakeInfo, head *fakeHead, meta *fakeMeta, quotes *fakeQuotes, sink *recordingSink) (*HolderAnalyzer, *cache.Memory) {
	t.Helper()
	store := cache.NewMemory()
	var s storage.Sink
	if sink != nil {
		s = sink
	}
	analyzer, err := NewHolderAnalyzer(crawl, info, head, meta, quotes, store, s, Config{}, nil)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	return analyzer, store
}

func TestHolderSummaryComputesAndCaches(t *testing.T) {
	crawl, info, head, meta, quotes := holderFixture()
	analyzer, _ := newHolderAnalyzer(t, crawl, info, head, meta, quotes, nil)
	ctx := context.Background()

	summary, err := analyzer.Summary(ctx, holderToken)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.HolderCount != 2 {
		t.Fatalf("holder count = %d", summary.HolderCount)
	}
	if summary.TokenSymbol != "TST" || summary.TotalSupplyRaw != "1000" {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.FromBlock != 10 || summary.ToBlock != 500 {
		t.Fatalf("window = [%d, %d]", summary.FromBlock, summary.ToBlock)
	}
	if summary.TopCombined != 100 {
		t.Fatalf("top combined = %v", summary.TopCombined)
	}

	again, err := analyzer.Summary(ctx, holderToken)
	if err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if crawl.logCalls != 1 {
		t.Fatalf("crawl ran %d times, cache not used", crawl.logCalls)
	}
	if again.HolderCount != summary.HolderCount {
		t.Fatalf("cached summary differs: %+v", again)
	}
}

func TestHolderPartialResultNotCached(t *testing.T) {
	crawl, info, head, meta, quotes := holderFixture()
	crawl.eventsPartial = true
	analyzer, _ := newHolderAnalyzer(t, crawl, info, head, meta, quotes, nil)
	ctx := context.Background()

	summary, err := analyzer.Summary(ctx, holderToken)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.Partial {
		t.Fatal("partial flag lost")
	}

	if _, err := analyzer.Summary(ctx, holderToken); err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if crawl.logCalls != 2 {
		t.Fatalf("partial result was served from cache (crawls=%d)", crawl.logCalls)
	}
}

func TestHolderLockContention(t *testing.T) {
	crawl, info, head, meta, quotes := holderFixture()
	analyzer, store := newHolderAnalyzer(t, crawl, info, head, meta, quotes, nil)
	ctx := context.Background()

	if ok, _ := store.AcquireLock(ctx, distributionKey(holderToken), time.Minute); !ok {
		t.Fatal("setup lock failed")
	}

	if _, err := analyzer.Summary(ctx, holderToken); !errors.Is(err, cache.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if crawl.logCalls != 0 {
		t.Fatal("crawl ran while lock was held elsewhere")
	}
}

func TestHolderSupplyFallsBackToChain(t *testing.T) {
	crawl, info, head, meta, quotes := holderFixture()
	info.supplyErr = errors.New("explorer down")
	meta.supply = big.NewInt(1000)
	analyzer, _ := newHolderAnalyzer(t, crawl, info, head, meta, quotes, nil)

	summary, err := analyzer.Summary(context.Background(), holderToken)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalSupplyRaw != "1000" {
		t.Fatalf("total supply = %s", summary.TotalSupplyRaw)
	}
}

func TestHolderSupplyInferredFromLedger(t *testing.T) {
	crawl, info, head, meta, quotes := holderFixture()
	info.supplyErr = errors.New("explorer down")
	meta.supplyErr = errors.New("rpc down")
	analyzer, _ := newHolderAnalyzer(t, crawl, info, head, meta, quotes, nil)

	summary, err := analyzer.Summary(context.Background(), holderToken)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	// Ledger holds 1000 across the two holders, nothing burned.
	if summary.TotalSupplyRaw != "1000" {
		t.Fatalf("inferred supply = %s", summary.TotalSupplyRaw)
	}
}

func TestHolderSummaryPersistedToSink(t *testing.T) {
	crawl, info, head, meta, quotes := holderFixture()
	sink := &recordingSink{}
	analyzer, _ := newHolderAnalyzer(t, crawl, info, head, meta, quotes, sink)

	if _, err := analyzer.Summary(context.Background(), holderToken); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(sink.distributions) != 1 {
		t.Fatalf("sink writes = %d", len(sink.distributions))
	}
}

func TestHolderCrawlFailureReleasesLock(t *testing.T) {
	crawl, info, head, meta, quotes := holderFixture()
	crawl.eventsErr = errors.New("explorer down")
	analyzer, store := newHolderAnalyzer(t, crawl, info, head, meta, quotes, nil)
	ctx := context.Background()

	if _, err := analyzer.Summary(ctx, holderToken); err == nil {
		t.Fatal("crawl failure swallowed")
	}

	// The lock must not stay held after a failed compute.
	if ok, _ := store.AcquireLock(ctx, distributionKey(holderToken), time.Minute); !ok {
		t.Fatal("lock leaked after failure")
	}
}
