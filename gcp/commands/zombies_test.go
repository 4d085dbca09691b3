package commands

import (
	"context"
	"errors"
	"math"
	"testing"

	storageservice "github.com/charles-forsyth/skywalker/gcp/services/storageService"
	"github.com/charles-forsyth/skywalker/internal"
)

func TestDiskMonthlyCost(t *testing.T) {
	tests := []struct {
		name     string
		sizeGB   int64
		diskType string
		want     float64
	}{
		{"standard", 100, "pd-standard", 4.00},
		{"ssd", 100, "pd-ssd", 17.00},
		{"balanced", 100, "pd-balanced", 10.00},
		{"extreme ssd", 10, "pd-extreme-ssd", 1.70},
		{"full url", 500, "https://www.googleapis.com/compute/v1/projects/p/zones/us-central1-a/diskTypes/pd-ssd", 85.00},
		{"unknown type falls back to standard", 50, "hyperdisk-foo", 2.00},
		{"zero size", 0, "pd-ssd", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiskMonthlyCost(tt.sizeGB, tt.diskType)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DiskMonthlyCost(%d, %q) = %v, want %v", tt.sizeGB, tt.diskType, got, tt.want)
			}
		})
	}
}

func TestBucketZombie(t *testing.T) {
	const gb = int64(1) << 30

	t.Run("idle large bucket is a zombie", func(t *testing.T) {
		z, ok := BucketZombie("proj", "cold-archive", 100*gb, 0)
		if !ok {
			t.Fatal("expected zombie")
		}
		if z.ResourceType != "Bucket" || z.ProjectID != "proj" || z.Name != "cold-archive" {
			t.Errorf("identity = %+v", z)
		}
		if z.Details != "Size: 100 GB" {
			t.Errorf("details = %q", z.Details)
		}
		if math.Abs(z.MonthlyCostEst-2.00) > 1e-9 {
			t.Errorf("cost = %v, want 2.00", z.MonthlyCostEst)
		}
	})

	t.Run("active bucket is not", func(t *testing.T) {
		if _, ok := BucketZombie("proj", "busy", 100*gb, 5_000_000); ok {
			t.Error("bucket with real egress should not be flagged")
		}
	})

	t.Run("egress just under threshold still counts", func(t *testing.T) {
		if _, ok := BucketZombie("proj", "quiet", 10*gb, 999_999); !ok {
			t.Error("sub-threshold egress should be flagged")
		}
	})

	t.Run("egress at threshold does not", func(t *testing.T) {
		if _, ok := BucketZombie("proj", "borderline", 10*gb, 1_000_000); ok {
			t.Error("egress at threshold should not be flagged")
		}
	})

	t.Run("tiny bucket is skipped", func(t *testing.T) {
		if _, ok := BucketZombie("proj", "scratch", gb/2, 0); ok {
			t.Error("sub-gigabyte bucket should be skipped")
		}
	})
}

func TestHuntBucketsSurvivesFailedSizeLookup(t *testing.T) {
	const gb = int64(1) << 30

	module := &ZombiesModule{
		Hunters: ZombieHunters{
			Buckets: func(ctx context.Context, projectID string) ([]storageservice.BucketInfo, error) {
				return []storageservice.BucketInfo{
					{Name: "cold-archive", SizeBytes: 50 * gb},
					{Name: "hot-data", SizeBytes: 10 * gb},
				}, nil
			},
			BucketActivity: func(ctx context.Context, projectID string) (map[string]float64, error) {
				return map[string]float64{"hot-data": 5_000_000}, nil
			},
			BucketSizes: func(ctx context.Context, projectID string) (map[string]int64, error) {
				return nil, errors.New("monitoring unavailable")
			},
		},
	}

	module.huntBuckets(context.Background(), "proj-a", internal.NewLogger())

	// The size lookup failed, so the listing sizes carry the hunt.
	if len(module.Zombies) != 1 {
		t.Fatalf("got %d zombies, want 1", len(module.Zombies))
	}
	z := module.Zombies[0]
	if z.Name != "cold-archive" {
		t.Errorf("zombie = %q, want cold-archive", z.Name)
	}
	if z.Details != "Size: 50 GB" {
		t.Errorf("details = %q", z.Details)
	}
	if module.CommandCounter.Error == 0 {
		t.Error("failed size lookup should be counted as an error")
	}
}

func TestSortZombiesByCost(t *testing.T) {
	zombies := []ZombieResource{
		{Name: "cheap", MonthlyCostEst: 1.50},
		{Name: "first-tie", MonthlyCostEst: 7.30},
		{Name: "expensive", MonthlyCostEst: 42.00},
		{Name: "second-tie", MonthlyCostEst: 7.30},
	}

	SortZombiesByCost(zombies)

	wantOrder := []string{"expensive", "first-tie", "second-tie", "cheap"}
	for i, want := range wantOrder {
		if zombies[i].Name != want {
			t.Errorf("position %d = %q, want %q", i, zombies[i].Name, want)
		}
	}
}
