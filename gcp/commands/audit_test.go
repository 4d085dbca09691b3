package commands

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charles-forsyth/skywalker/gcp/reports"
	computeservice "github.com/charles-forsyth/skywalker/gcp/services/computeService"
	iamservice "github.com/charles-forsyth/skywalker/gcp/services/iamService"
	monitoringservice "github.com/charles-forsyth/skywalker/gcp/services/monitoringService"
	sqlservice "github.com/charles-forsyth/skywalker/gcp/services/sqlService"
	vertexservice "github.com/charles-forsyth/skywalker/gcp/services/vertexService"
	"github.com/charles-forsyth/skywalker/globals"
	"github.com/charles-forsyth/skywalker/internal"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
)

func newTestAuditModule(services []string, walkers AuditWalkers) *AuditModule {
	return &AuditModule{
		BaseGCPModule: gcpinternal.BaseGCPModule{
			ProjectIDs: []string{"proj-a"},
			Goroutines: 2,
			Workers:    4,
		},
		Services: services,
		Regions:  []string{"us-central1"},
		Walkers:  walkers,
		Reports:  make(map[string]*reports.ProjectAuditReport),
	}
}

func computeWalkers(instances func(ctx context.Context, projectID, zone string) ([]computeservice.InstanceInfo, error)) AuditWalkers {
	return AuditWalkers{
		ComputeInstances: instances,
		ComputeImages: func(ctx context.Context, projectID string) ([]computeservice.ImageInfo, error) {
			return nil, nil
		},
		ComputeMachineImages: func(ctx context.Context, projectID string) ([]computeservice.MachineImageInfo, error) {
			return nil, nil
		},
		ComputeSnapshots: func(ctx context.Context, projectID string) ([]computeservice.SnapshotInfo, error) {
			return nil, nil
		},
	}
}

func TestProcessProjectCollectsAcrossZones(t *testing.T) {
	walkers := computeWalkers(func(ctx context.Context, projectID, zone string) ([]computeservice.InstanceInfo, error) {
		switch zone {
		case "us-central1-a":
			return []computeservice.InstanceInfo{{Name: "vm-1", ID: "100", Zone: zone}}, nil
		case "us-central1-c":
			return []computeservice.InstanceInfo{{Name: "vm-2", ID: "200", Zone: zone}}, nil
		}
		return nil, nil
	})
	module := newTestAuditModule([]string{"compute"}, walkers)

	module.processProject(context.Background(), "proj-a", internal.NewLogger())

	report := module.Reports["proj-a"]
	if report == nil {
		t.Fatal("no report for proj-a")
	}
	svc := report.Service(reports.KindCompute)
	if svc == nil || svc.Compute == nil {
		t.Fatal("no compute report")
	}
	// Zone order is fixed, so vm-1 (zone a) precedes vm-2 (zone c).
	var names []string
	for _, inst := range svc.Compute.Instances {
		names = append(names, inst.Name)
	}
	if !reflect.DeepEqual(names, []string{"vm-1", "vm-2"}) {
		t.Errorf("instances = %v", names)
	}
}

func TestProcessProjectToleratesFailedZone(t *testing.T) {
	walkers := computeWalkers(func(ctx context.Context, projectID, zone string) ([]computeservice.InstanceInfo, error) {
		if zone == "us-central1-b" {
			return nil, errors.New("zone unreachable")
		}
		return []computeservice.InstanceInfo{{Name: "vm-" + zone, Zone: zone}}, nil
	})
	module := newTestAuditModule([]string{"compute"}, walkers)

	module.processProject(context.Background(), "proj-a", internal.NewLogger())

	svc := module.Reports["proj-a"].Service(reports.KindCompute)
	if svc == nil {
		t.Fatal("compute family should survive one failed zone")
	}
	// Four zones per region, one failed.
	if got := len(svc.Compute.Instances); got != 3 {
		t.Errorf("got %d instances, want 3", got)
	}
	if module.CommandCounter.Error == 0 {
		t.Error("failed zone should be counted as an error")
	}
}

func TestProcessProjectToleratesFailedFamily(t *testing.T) {
	walkers := computeWalkers(func(ctx context.Context, projectID, zone string) ([]computeservice.InstanceInfo, error) {
		if zone != "us-central1-a" {
			return nil, nil
		}
		return []computeservice.InstanceInfo{{Name: "vm-1", ID: "100"}}, nil
	})
	walkers.SQLInstances = func(ctx context.Context, projectID string) ([]sqlservice.SQLInstanceInfo, error) {
		return nil, errors.New("permission denied")
	}
	module := newTestAuditModule([]string{"compute", "sql"}, walkers)

	module.processProject(context.Background(), "proj-a", internal.NewLogger())

	report := module.Reports["proj-a"]
	if report.Service(reports.KindSQL) != nil {
		t.Error("failed sql family should be absent from the report")
	}
	if report.Service(reports.KindCompute) == nil {
		t.Error("compute family should still be present")
	}
}

func TestAuditVertexSuppressesDisabledAPI(t *testing.T) {
	var calls atomic.Int32
	walkers := AuditWalkers{
		Vertex: func(ctx context.Context, projectID, region string) (vertexservice.VertexReport, error) {
			calls.Add(1)
			if region == "us-central1" {
				return vertexservice.VertexReport{
					Models: []vertexservice.ModelInfo{{Name: "classifier"}},
				}, nil
			}
			return vertexservice.VertexReport{}, fmt.Errorf("list models: %w", gcpinternal.ErrAPINotEnabled)
		},
	}
	module := newTestAuditModule([]string{"vertex"}, walkers)
	module.Regions = []string{"us-central1", "europe-west1"}

	module.processProject(context.Background(), "proj-a", internal.NewLogger())

	if calls.Load() != 2 {
		t.Fatalf("vertex walker called %d times, want 2", calls.Load())
	}
	svc := module.Reports["proj-a"].Service(reports.KindVertex)
	if svc == nil {
		t.Fatal("no vertex report")
	}
	if len(svc.Vertex.Models) != 1 || svc.Vertex.Models[0].Name != "classifier" {
		t.Errorf("models = %+v", svc.Vertex.Models)
	}
	if module.CommandCounter.Error != 0 {
		t.Error("a disabled API should not count as an error")
	}
}

func TestAuditIAMEnrichesOnlyElevatedRoles(t *testing.T) {
	walkers := AuditWalkers{
		IAM: func(ctx context.Context, projectID string) (iamservice.IAMReport, error) {
			return iamservice.IAMReport{
				PolicyBindings: []iamservice.PolicyBindingInfo{
					{Role: "roles/owner", Members: []string{"user:alice@example.edu"}},
					{Role: "roles/viewer", Members: []string{"user:bob@example.edu"}},
				},
			}, nil
		},
	}
	module := newTestAuditModule([]string{globals.GCP_IAM_SERVICE_NAME}, walkers)
	module.Users = gcpinternal.StaticUserResolver(map[string]string{
		"alice@example.edu": "Alice Lan",
		"bob@example.edu":   "Bob Ruiz",
	})

	module.processProject(context.Background(), "proj-a", internal.NewLogger())

	svc := module.Reports["proj-a"].Service(reports.KindIAM)
	if svc == nil || svc.IAM == nil {
		t.Fatal("no iam report")
	}
	bindings := svc.IAM.PolicyBindings
	if len(bindings) != 2 {
		t.Fatalf("got %d bindings, want 2", len(bindings))
	}
	if got := bindings[0].MemberNames; !reflect.DeepEqual(got, []string{"Alice Lan"}) {
		t.Errorf("owner binding MemberNames = %v", got)
	}
	// Non-elevated roles are left unresolved even when the user is known.
	if bindings[1].MemberNames != nil {
		t.Errorf("viewer binding MemberNames = %v, want nil", bindings[1].MemberNames)
	}
}

func TestMergeFleetMetrics(t *testing.T) {
	module := newTestAuditModule([]string{"compute"}, AuditWalkers{})
	module.WithMetrics = true
	module.ScopingProject = "metrics-scope"
	module.FleetMetrics = func(ctx context.Context, scopingProjectID string) ([]monitoringservice.FleetSample, []monitoringservice.MetricError) {
		if scopingProjectID != "metrics-scope" {
			t.Errorf("scoping project = %q", scopingProjectID)
		}
		return []monitoringservice.FleetSample{
			{ProjectID: "proj-a", InstanceID: "100", CPUPercent: fptr(85.5), MemoryPercent: fptr(60.0)},
			{ProjectID: "proj-b", InstanceID: "100", CPUPercent: fptr(5.0)},
		}, nil
	}
	module.Reports["proj-a"] = &reports.ProjectAuditReport{
		ProjectID: "proj-a",
		ScanTime:  time.Now(),
		Services: []reports.KindReport{{
			Kind: reports.KindCompute,
			Compute: &reports.ComputeReport{
				Instances: []computeservice.InstanceInfo{
					{Name: "vm-1", ID: "100"},
					{Name: "vm-2", ID: "999"},
				},
			},
		}},
	}

	module.mergeFleetMetrics(context.Background(), internal.NewLogger())

	instances := module.Reports["proj-a"].Service(reports.KindCompute).Compute.Instances
	if instances[0].CPUPercent == nil || *instances[0].CPUPercent != 85.5 {
		t.Errorf("vm-1 cpu = %v, want 85.5", instances[0].CPUPercent)
	}
	if instances[0].MemoryPercent == nil || *instances[0].MemoryPercent != 60.0 {
		t.Errorf("vm-1 memory = %v, want 60.0", instances[0].MemoryPercent)
	}
	// Same instance ID in another project must not leak across.
	if instances[1].CPUPercent != nil {
		t.Errorf("vm-2 cpu = %v, want nil", instances[1].CPUPercent)
	}
}

func TestResolveServices(t *testing.T) {
	tests := []struct {
		name string
		flag string
		want []string
	}{
		{"empty means all", "", globals.AllServiceNames},
		{"all expands", "all", globals.AllServiceNames},
		{"subset", "compute,storage", []string{"compute", "storage"}},
		{"unknown names dropped", "compute,unicorns", []string{"compute"}},
		{"only unknown falls back to all", "unicorns", globals.AllServiceNames},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveServices(tt.flag); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resolveServices(%q) = %v, want %v", tt.flag, got, tt.want)
			}
		})
	}
}
