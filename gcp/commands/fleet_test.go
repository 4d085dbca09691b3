package commands

import (
	"testing"

	assetservice "github.com/charles-forsyth/skywalker/gcp/services/assetService"
	monitoringservice "github.com/charles-forsyth/skywalker/gcp/services/monitoringService"
)

func fptr(v float64) *float64 { return &v }

func TestEnrichSamples(t *testing.T) {
	samples := []monitoringservice.FleetSample{
		{ProjectID: "proj", InstanceID: "100"},
		{ProjectID: "proj", InstanceID: "200"},
	}
	assets := map[string]assetservice.InstanceIdentity{
		"100": {Name: "web-1", MachineType: "e2-medium", Zone: "us-central1-a", Project: "proj"},
	}

	EnrichSamples(samples, assets)

	if samples[0].Name != "web-1" || samples[0].MachineType != "e2-medium" {
		t.Errorf("matched sample = %+v", samples[0])
	}
	if samples[1].Name != "unknown" || samples[1].MachineType != "unknown" {
		t.Errorf("unmatched sample should fall back to unknown, got %+v", samples[1])
	}
}

func TestSortSamplesByCPU(t *testing.T) {
	samples := []monitoringservice.FleetSample{
		{Name: "idle", CPUPercent: fptr(2.0)},
		{Name: "no-agent-a", CPUPercent: nil},
		{Name: "hot", CPUPercent: fptr(95.0)},
		{Name: "no-agent-b", CPUPercent: nil},
		{Name: "warm", CPUPercent: fptr(40.0)},
	}

	SortSamplesByCPU(samples)

	wantOrder := []string{"hot", "warm", "idle", "no-agent-a", "no-agent-b"}
	for i, want := range wantOrder {
		if samples[i].Name != want {
			t.Errorf("position %d = %q, want %q", i, samples[i].Name, want)
		}
	}
}

func TestOpsAgentCandidates(t *testing.T) {
	samples := []monitoringservice.FleetSample{
		{Name: "needs-agent", CPUPercent: fptr(25.0)},
		{Name: "has-agent", CPUPercent: fptr(25.0), MemoryPercent: fptr(40.0)},
		{Name: "powered-off", CPUPercent: fptr(0.05)},
		{Name: "no-cpu-series"},
		{Name: "unknown", CPUPercent: fptr(25.0)},
		{Name: "", CPUPercent: fptr(25.0)},
		{Name: "gke-cluster-pool-abc", CPUPercent: fptr(25.0)},
		{Name: "also-needs-agent", CPUPercent: fptr(0.2)},
	}

	candidates := OpsAgentCandidates(samples)

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2: %+v", len(candidates), candidates)
	}
	if candidates[0].Name != "needs-agent" || candidates[1].Name != "also-needs-agent" {
		t.Errorf("candidates = %q, %q", candidates[0].Name, candidates[1].Name)
	}
}
