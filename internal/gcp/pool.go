package gcpinternal

import (
	"context"
	"sync"
)

// ScopeResult carries the outcome of one unit of fan-out work.
type ScopeResult[T any] struct {
	Scope Scope
	Value T
	Err   error
}

// Scope identifies one (project, location) cell of the scan matrix.
// Location is empty for global resource kinds, a region or a zone otherwise.
type Scope struct {
	ProjectID string
	Location  string
}

// MapScopes runs fn once per scope with at most workers goroutines in
// flight. Each worker writes only its own result slot; no shared state is
// mutated, so results come back in input order regardless of completion
// order. An error from one scope never affects the others.
//
// A cancelled context stops unstarted scopes from being scheduled. Their
// slots report ctx.Err() so the caller can tell skipped from failed.
func MapScopes[T any](ctx context.Context, workers int, scopes []Scope, fn func(ctx context.Context, scope Scope) (T, error)) []ScopeResult[T] {
	if workers < 1 {
		workers = 1
	}

	results := make([]ScopeResult[T], len(scopes))
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, scope := range scopes {
		results[i].Scope = scope
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, scope Scope) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}

			value, err := fn(ctx, scope)
			results[i].Value = value
			results[i].Err = err
		}(i, scope)
	}

	wg.Wait()
	return results
}

// CollectScopeResults merges per-scope slices, dropping failed scopes and
// reporting them to onError. Used by walkers whose unit result is a slice
// of records.
func CollectScopeResults[T any](results []ScopeResult[[]T], onError func(scope Scope, err error)) []T {
	var merged []T
	for _, r := range results {
		if r.Err != nil {
			if onError != nil {
				onError(r.Scope, r.Err)
			}
			continue
		}
		merged = append(merged, r.Value...)
	}
	return merged
}
