package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"tokenscope/internal/cache"
	"tokenscope/internal/model"
)

const testWalletAddr = "0xwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwwww"

type fakeAccountant struct {
	summary *model.WalletSummary
	err     error
	calls   int
}

func (f *fakeAccountant) Process(_ context.Context, wallet string, _ []model.AccountTransfer) (*model.WalletSummary, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.summary
	out.WalletAddress = wallet
	return &out, nil
}

func newWalletAnalyzer(t *testing.T, crawl *fakeCrawl, acct *fakeAccountant, sink *recordingSink) (*WalletAnalyzer, *cache.Memory) {
	t.Helper()
	store := cache.NewMemory()
	analyzer, err := NewWalletAnalyzer(crawl, acct, store, nil, Config{}, nil)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	if sink != nil {
		analyzer.sink = sink
	}
	analyzer.now = func() time.Time { return time.Unix(100*86_400, 0) }
	return analyzer, store
}

func TestWalletSummaryComputesAndCaches(t *testing.T) {
	crawl := &fakeCrawl{transfers: []model.AccountTransfer{{TxHash: "0xh1"}}}
	acct := &fakeAccountant{summary: &model.WalletSummary{RealizedPnL: "0.3"}}
	analyzer, _ := newWalletAnalyzer(t, crawl, acct, nil)
	ctx := context.Background()

	summary, err := analyzer.Summary(ctx, testWalletAddr)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.RealizedPnL != "0.3" {
		t.Fatalf("realized = %s", summary.RealizedPnL)
	}
	if summary.WalletAddress != testWalletAddr {
		t.Fatalf("wallet = %s", summary.WalletAddress)
	}
	// Window start is 90 days before the pinned clock.
	if summary.FromTimestamp != uint64(10*86_400) {
		t.Fatalf("from ts = %d", summary.FromTimestamp)
	}

	if _, err := analyzer.Summary(ctx, testWalletAddr); err != nil {
		t.Fatalf("cached summary: %v", err)
	}
	if crawl.historyCalls != 1 || acct.calls != 1 {
		t.Fatalf("recomputed despite cache: crawls=%d process=%d", crawl.historyCalls, acct.calls)
	}
}

func TestWalletPartialResultNotCached(t *testing.T) {
	crawl := &fakeCrawl{historyPartial: true}
	acct := &fakeAccountant{summary: &model.WalletSummary{}}
	analyzer, _ := newWalletAnalyzer(t, crawl, acct, nil)
	ctx := context.Background()

	summary, err := analyzer.Summary(ctx, testWalletAddr)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.Partial {
		t.Fatal("partial flag lost")
	}

	if _, err := analyzer.Summary(ctx, testWalletAddr); err != nil {
		t.Fatalf("second summary: %v", err)
	}
	if crawl.historyCalls != 2 {
		t.Fatalf("partial result was served from cache (crawls=%d)", crawl.historyCalls)
	}
}

func TestWalletLockContention(t *testing.T) {
	crawl := &fakeCrawl{}
	acct := &fakeAccountant{summary: &model.WalletSummary{}}
	analyzer, store := newWalletAnalyzer(t, crawl, acct, nil)
	ctx := context.Background()

	fromTS := analyzer.now().Add(-analyzer.cfg.HistoryWindow).Unix()
	if ok, _ := store.AcquireLock(ctx, walletKey(testWalletAddr, fromTS), time.Minute); !ok {
		t.Fatal("setup lock failed")
	}

	if _, err := analyzer.Summary(ctx, testWalletAddr); !errors.Is(err, cache.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if crawl.historyCalls != 0 {
		t.Fatal("crawl ran while lock was held elsewhere")
	}
}

func TestWalletAccountantFailurePropagates(t *testing.T) {
	crawl := &fakeCrawl{}
	acct := &fakeAccountant{err: errors.New("bad history")}
	analyzer, _ := newWalletAnalyzer(t, crawl, acct, nil)

	if _, err := analyzer.Summary(context.Background(), testWalletAddr); err == nil {
		t.Fatal("accountant failure swallowed")
	}
}

func TestWalletSummaryPersistedToSink(t *testing.T) {
	crawl := &fakeCrawl{}
	acct := &fakeAccountant{summary: &model.WalletSummary{}}
	sink := &recordingSink{}
	analyzer, _ := newWalletAnalyzer(t, crawl, acct, sink)

	if _, err := analyzer.Summary(context.Background(), testWalletAddr); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(sink.wallets) != 1 {
		t.Fatalf("sink writes = %d", len(sink.wallets))
	}
}
