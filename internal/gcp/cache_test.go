package gcpinternal

import (
	"testing"
	"time"
)

func TestCacheKeyForStable(t *testing.T) {
	a := CacheKeyFor("compute.ListInstances", "proj", "us-central1-a")
	b := CacheKeyFor("compute.ListInstances", "proj", "us-central1-a")
	if a != b {
		t.Errorf("same inputs produced different keys: %q vs %q", a, b)
	}
}

func TestCacheKeyForDistinguishesArgBoundaries(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide.
	a := CacheKeyFor("fn", "ab", "c")
	b := CacheKeyFor("fn", "a", "bc")
	if a == b {
		t.Error("different argument splits produced the same key")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	type record struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	key := CacheKeyFor("test.RoundTrip", "proj")
	if err := WriteCache(key, record{Name: "vm-1", Count: 3}); err != nil {
		t.Fatalf("WriteCache failed: %v", err)
	}

	var got record
	if !ReadCache(key, time.Hour, &got) {
		t.Fatal("ReadCache missed a value just written")
	}
	if got.Name != "vm-1" || got.Count != 3 {
		t.Errorf("got %+v, want {vm-1 3}", got)
	}
}

func TestCacheMissWhenStale(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	key := CacheKeyFor("test.Stale")
	if err := WriteCache(key, "value"); err != nil {
		t.Fatalf("WriteCache failed: %v", err)
	}

	var got string
	if ReadCache(key, -time.Second, &got) {
		t.Error("ReadCache returned a hit for an expired entry")
	}
}

func TestCacheMissWhenAbsent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var got string
	if ReadCache(CacheKeyFor("test.Absent"), time.Hour, &got) {
		t.Error("ReadCache returned a hit for a missing entry")
	}
}

func TestClearCache(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	for i := 0; i < 3; i++ {
		if err := WriteCache(CacheKeyFor("test.Clear", string(rune('a'+i))), i); err != nil {
			t.Fatalf("WriteCache failed: %v", err)
		}
	}

	removed, err := ClearCache()
	if err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed %d entries, want 3", removed)
	}

	var got int
	if ReadCache(CacheKeyFor("test.Clear", "a"), time.Hour, &got) {
		t.Error("entry survived ClearCache")
	}
}
