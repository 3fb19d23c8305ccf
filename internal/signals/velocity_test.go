package signals

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestMemoryVelocityCounter(t *testing.T) {
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	counter := NewMemoryVelocityCounter(time.Minute)
	counter.now = func() time.Time { return clock }

	t.Run("observe counts inclusively", func(t *testing.T) {
		for want := int64(1); want <= 3; want++ {
			got, err := counter.Observe(ctx, "user-001")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("expected count %d, got %d", want, got)
			}
		}
	})

	t.Run("count does not record", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			got, err := counter.Count(ctx, "user-001")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != 3 {
				t.Errorf("expected count 3, got %d", got)
			}
		}
	})

	t.Run("users are independent", func(t *testing.T) {
		got, _ := counter.Count(ctx, "user-002")
		if got != 0 {
			t.Errorf("expected 0 for unseen user, got %d", got)
		}
	})

	t.Run("window slides", func(t *testing.T) {
		clock = base.Add(30 * time.Second)
		if got, _ := counter.Observe(ctx, "user-001"); got != 4 {
			t.Errorf("expected 4 in window, got %d", got)
		}

		// The first three observations at t=0 fall out of the window;
		// the one at t=30s survives.
		clock = base.Add(61 * time.Second)
		if got, _ := counter.Count(ctx, "user-001"); got != 1 {
			t.Errorf("expected 1 after window slide, got %d", got)
		}

		clock = base.Add(2 * time.Minute)
		if got, _ := counter.Count(ctx, "user-001"); got != 0 {
			t.Errorf("expected empty window, got %d", got)
		}
	})
}

func TestMemoryVelocityCounterDefaults(t *testing.T) {
	counter := NewMemoryVelocityCounter(0)
	if counter.window != time.Minute {
		t.Errorf("non-positive window must default to a minute, got %v", counter.window)
	}
}

func TestMemoryVelocityCounterConcurrent(t *testing.T) {
	ctx := context.Background()
	counter := NewMemoryVelocityCounter(time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := counter.Observe(ctx, "user-001"); err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := counter.Count(ctx, "user-001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1000 {
		t.Errorf("expected 1000 observations, got %d", got)
	}
}

func TestNewVelocityCounter(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		counter, err := NewVelocityCounter(domain.VelocityConfig{Backend: "memory", WindowSecs: 60})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := counter.(*MemoryVelocityCounter); !ok {
			t.Errorf("expected memory counter, got %T", counter)
		}
	})

	t.Run("empty backend defaults to memory", func(t *testing.T) {
		counter, err := NewVelocityCounter(domain.VelocityConfig{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := counter.(*MemoryVelocityCounter); !ok {
			t.Errorf("expected memory counter, got %T", counter)
		}
	})

	t.Run("unsupported backend", func(t *testing.T) {
		if _, err := NewVelocityCounter(domain.VelocityConfig{Backend: "dynamodb"}); err == nil {
			t.Error("expected an error for an unsupported backend")
		}
	})
}
