package gcpinternal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testScopes(n int) []Scope {
	scopes := make([]Scope, n)
	for i := range scopes {
		scopes[i] = Scope{ProjectID: "proj", Location: fmt.Sprintf("zone-%d", i)}
	}
	return scopes
}

func TestMapScopesPreservesOrder(t *testing.T) {
	scopes := testScopes(20)
	results := MapScopes(context.Background(), 4, scopes, func(ctx context.Context, scope Scope) (string, error) {
		return scope.Location, nil
	})

	if len(results) != len(scopes) {
		t.Fatalf("got %d results, want %d", len(results), len(scopes))
	}
	for i, r := range results {
		if r.Scope != scopes[i] {
			t.Errorf("result %d scope = %v, want %v", i, r.Scope, scopes[i])
		}
		if r.Value != scopes[i].Location {
			t.Errorf("result %d value = %q, want %q", i, r.Value, scopes[i].Location)
		}
	}
}

func TestMapScopesPartialFailure(t *testing.T) {
	boom := errors.New("boom")
	scopes := testScopes(6)
	results := MapScopes(context.Background(), 3, scopes, func(ctx context.Context, scope Scope) (int, error) {
		if scope.Location == "zone-2" || scope.Location == "zone-4" {
			return 0, boom
		}
		return 1, nil
	})

	var failed, succeeded int
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else {
			succeeded++
		}
	}
	if failed != 2 || succeeded != 4 {
		t.Errorf("failed = %d, succeeded = %d, want 2 and 4", failed, succeeded)
	}
}

func TestMapScopesBoundsConcurrency(t *testing.T) {
	const workers = 3
	var running, peak int64
	results := MapScopes(context.Background(), workers, testScopes(30), func(ctx context.Context, scope Scope) (struct{}, error) {
		now := atomic.AddInt64(&running, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if now <= old || atomic.CompareAndSwapInt64(&peak, old, now) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt64(&running, -1)
		return struct{}{}, nil
	})

	if len(results) != 30 {
		t.Fatalf("got %d results, want 30", len(results))
	}
	if p := atomic.LoadInt64(&peak); p > workers {
		t.Errorf("peak concurrency = %d, want <= %d", p, workers)
	}
}

func TestMapScopesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var started int64
	var once sync.Once
	results := MapScopes(ctx, 1, testScopes(50), func(ctx context.Context, scope Scope) (int, error) {
		atomic.AddInt64(&started, 1)
		once.Do(cancel)
		return 1, nil
	})

	var skipped int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			skipped++
		}
	}
	if skipped == 0 {
		t.Error("expected some scopes skipped after cancellation")
	}
	if atomic.LoadInt64(&started) == 50 {
		t.Error("expected cancellation to prevent some scopes from running")
	}
}

func TestCollectScopeResults(t *testing.T) {
	results := []ScopeResult[[]string]{
		{Scope: Scope{Location: "a"}, Value: []string{"x", "y"}},
		{Scope: Scope{Location: "b"}, Err: errors.New("denied")},
		{Scope: Scope{Location: "c"}, Value: []string{"z"}},
	}

	var failedScopes []string
	merged := CollectScopeResults(results, func(scope Scope, err error) {
		failedScopes = append(failedScopes, scope.Location)
	})

	if len(merged) != 3 {
		t.Errorf("merged %d items, want 3", len(merged))
	}
	if len(failedScopes) != 1 || failedScopes[0] != "b" {
		t.Errorf("failed scopes = %v, want [b]", failedScopes)
	}
}
