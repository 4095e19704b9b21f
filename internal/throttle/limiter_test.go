package throttle

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiterSpacing(t *testing.T) {
	limiter, err := NewLimiter(100) // 10ms interval
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := limiter.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	// First grant is immediate, the remaining three are spaced 10ms apart.
	if elapsed < 30*time.Millisecond {
		t.Fatalf("grants too fast: %v", elapsed)
	}
}

func TestLimiterFIFO(t *testing.T) {
	limiter, err := NewLimiter(200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("seed acquire: %v", err)
	}

	const callers = 8
	order := make([]int, 0, callers)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := limiter.Acquire(ctx); err != nil {
				t.Errorf("acquire %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
		}(i)
		// Give each goroutine time to join the queue before the next.
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	for i, id := range order {
		if id != i {
			t.Fatalf("grant order %v is not FIFO", order)
		}
	}
}

func TestLimiterCancelDoesNotStallChain(t *testing.T) {
	limiter, err := NewLimiter(20) // 50ms interval
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("seed acquire: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Acquire(cancelled); err == nil {
		t.Fatalf("expected context error")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := limiter.Acquire(context.Background()); err != nil {
			t.Errorf("follow-up acquire: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("chain stalled after cancelled acquire")
	}
}

func TestNewLimiterInvalid(t *testing.T) {
	if _, err := NewLimiter(0); err == nil {
		t.Fatalf("expected error for zero rps")
	}
}
