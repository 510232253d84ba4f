package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestCache() *Cache {
	return New(NewMetrics(prometheus.NewRegistry()))
}

func TestGetCachesFreshValue(t *testing.T) {
	c := newTestCache()
	calls := int32(0)
	refiller := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "value", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), "k", CategoryPositions, time.Minute, refiller)
		if err != nil {
			t.Fatal(err)
		}
		if v != "value" {
			t.Fatalf("got %v", v)
		}
	}
	if calls != 1 {
		t.Fatalf("expected refiller called once, got %d", calls)
	}
}

func TestGetRefillsAfterExpiry(t *testing.T) {
	c := newTestCache()
	calls := int32(0)
	refiller := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		return n, nil
	}

	v1, _ := c.Get(context.Background(), "k", CategoryPWM, time.Millisecond, refiller)
	time.Sleep(5 * time.Millisecond)
	v2, _ := c.Get(context.Background(), "k", CategoryPWM, time.Millisecond, refiller)
	if v1 == v2 {
		t.Fatal("expected a refill after TTL expiry")
	}
}

// TestGetCoalescesConcurrentRefills covers spec §8 property 4: concurrent
// Get calls for the same key invoke refiller exactly once.
func TestGetCoalescesConcurrentRefills(t *testing.T) {
	c := newTestCache()
	var calls int32
	start := make(chan struct{})
	refiller := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return "v", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _ := c.Get(context.Background(), "shared-key", CategorySensors, time.Minute, refiller)
			results[i] = v
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	close(start)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected exactly one refiller invocation, got %d", calls)
	}
	for i, v := range results {
		if v != "v" {
			t.Fatalf("caller %d got %v, want shared value", i, v)
		}
	}
}

func TestRefillerErrorNotCached(t *testing.T) {
	c := newTestCache()
	failing := func(ctx context.Context) (any, error) { return nil, fmt.Errorf("boom") }
	if _, err := c.Get(context.Background(), "k", CategoryFans, time.Minute, failing); err == nil {
		t.Fatal("expected refiller error to propagate")
	}
	if c.Len() != 0 {
		t.Fatal("expected nothing stored after a failed refill")
	}
}

func TestInvalidateCategoryRemovesOnlyThatCategory(t *testing.T) {
	c := newTestCache()
	c.Set("pos", CategoryPositions, 1, time.Minute)
	c.Set("pwm", CategoryPWM, 2, time.Minute)

	c.InvalidateCategory(CategoryPositions)
	if c.Len() != 1 {
		t.Fatalf("expected only the positions entry removed, len=%d", c.Len())
	}
}

// TestInvalidateAllCategories covers spec §8 property 6's cache half.
func TestInvalidateAllCategories(t *testing.T) {
	c := newTestCache()
	for _, cat := range AllCategories {
		c.Set(string(cat), cat, "v", time.Minute)
	}
	c.InvalidateAllCategories()
	if c.Len() != 0 {
		t.Fatalf("expected every category cleared, len=%d", c.Len())
	}
}
