package reports

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	computeservice "github.com/charles-forsyth/skywalker/gcp/services/computeService"
	storageservice "github.com/charles-forsyth/skywalker/gcp/services/storageService"
	vertexservice "github.com/charles-forsyth/skywalker/gcp/services/vertexService"
)

func TestKindReportValidate(t *testing.T) {
	tests := []struct {
		name    string
		report  KindReport
		wantErr bool
	}{
		{
			name:   "tag matches payload",
			report: KindReport{Kind: KindStorage, Storage: &StorageReport{}},
		},
		{
			name:    "no payload",
			report:  KindReport{Kind: KindCompute},
			wantErr: true,
		},
		{
			name: "two payloads",
			report: KindReport{
				Kind:    KindCompute,
				Compute: &ComputeReport{},
				Storage: &StorageReport{},
			},
			wantErr: true,
		},
		{
			name:    "tag names the wrong payload",
			report:  KindReport{Kind: KindCompute, Storage: &StorageReport{}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.report.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResourceCount(t *testing.T) {
	report := KindReport{
		Kind: KindCompute,
		Compute: &ComputeReport{
			Instances: []computeservice.InstanceInfo{{Name: "a"}, {Name: "b"}},
			Images:    []computeservice.ImageInfo{{Name: "img"}},
			Snapshots: []computeservice.SnapshotInfo{{Name: "snap"}},
		},
	}
	if got := report.ResourceCount(); got != 4 {
		t.Errorf("ResourceCount() = %d, want 4", got)
	}

	empty := KindReport{Kind: KindSQL, SQL: &SQLReport{}}
	if got := empty.ResourceCount(); got != 0 {
		t.Errorf("empty ResourceCount() = %d, want 0", got)
	}
}

func TestProjectAuditReportService(t *testing.T) {
	report := ProjectAuditReport{
		ProjectID: "proj",
		Services: []KindReport{
			{Kind: KindCompute, Compute: &ComputeReport{}},
			{Kind: KindStorage, Storage: &StorageReport{Buckets: []storageservice.BucketInfo{{Name: "b"}}}},
		},
	}

	if svc := report.Service(KindStorage); svc == nil || len(svc.Storage.Buckets) != 1 {
		t.Errorf("Service(storage) = %+v", report.Service(KindStorage))
	}
	if svc := report.Service(KindGKE); svc != nil {
		t.Errorf("Service(gke) = %+v, want nil", svc)
	}
	if got := report.TotalResources(); got != 1 {
		t.Errorf("TotalResources() = %d, want 1", got)
	}
}

func TestTableFilesOrderAndSkipping(t *testing.T) {
	report := ProjectAuditReport{
		ProjectID: "proj",
		ScanTime:  time.Now(),
		Services: []KindReport{
			// Deliberately out of display order.
			{Kind: KindVertex, Vertex: &vertexservice.VertexReport{
				Models: []vertexservice.ModelInfo{{Name: "classifier"}},
			}},
			{Kind: KindStorage, Storage: &StorageReport{
				Buckets: []storageservice.BucketInfo{{Name: "data", Location: "US", SizeBytes: 2 << 30}},
			}},
			{Kind: KindSQL, SQL: &SQLReport{}},
			{Kind: KindCompute, Compute: &ComputeReport{
				Instances: []computeservice.InstanceInfo{{Name: "vm-1", Status: "RUNNING"}},
			}},
		},
	}

	tables := TableFiles(report)

	// Empty sql drops out, the rest render in display order.
	var names []string
	for _, table := range tables {
		names = append(names, table.Name)
	}
	for i, want := range []string{"compute", "storage", "vertex"} {
		if i >= len(names) || !strings.HasPrefix(names[i], want) {
			t.Fatalf("table order = %v", names)
		}
	}

	for _, table := range tables {
		if len(table.Header) == 0 {
			t.Errorf("table %s has no header", table.Name)
		}
		for _, row := range table.Body {
			if len(row) != len(table.Header) {
				t.Errorf("table %s row width %d != header width %d", table.Name, len(row), len(table.Header))
			}
		}
	}
}

func TestKindReportJSONCarriesOnlyItsPayload(t *testing.T) {
	report := KindReport{Kind: KindStorage, Storage: &StorageReport{
		Buckets: []storageservice.BucketInfo{{Name: "data"}},
	}}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["kind"] != "storage" {
		t.Errorf("kind = %v", decoded["kind"])
	}
	if _, ok := decoded["storage"]; !ok {
		t.Error("storage payload missing")
	}
	for _, absent := range []string{"compute", "gke", "vertex", "sql", "filestore", "iam", "run", "network"} {
		if _, ok := decoded[absent]; ok {
			t.Errorf("empty payload %q serialized", absent)
		}
	}
}

func TestProjectAuditReportJSONKeysServicesByKind(t *testing.T) {
	report := ProjectAuditReport{
		ProjectID: "proj-json",
		ScanTime:  time.Now(),
		Services: []KindReport{
			{Kind: KindCompute, Compute: &ComputeReport{
				Instances: []computeservice.InstanceInfo{{Name: "vm-1"}},
			}},
			{Kind: KindStorage, Storage: &StorageReport{
				Buckets: []storageservice.BucketInfo{{Name: "data"}},
			}},
		},
	}

	raw, err := json.Marshal(report)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["project_id"] != "proj-json" {
		t.Errorf("project_id = %v", decoded["project_id"])
	}

	// Services must serialize as a kind-keyed map, not an array of
	// tagged objects.
	services, ok := decoded["services"].(map[string]any)
	if !ok {
		t.Fatalf("services serialized as %T, want object", decoded["services"])
	}
	if len(services) != 2 {
		t.Errorf("services has %d keys, want 2", len(services))
	}
	compute, ok := services["compute"].(map[string]any)
	if !ok {
		t.Fatalf("services.compute = %T, want object", services["compute"])
	}
	if _, ok := compute["kind"]; ok {
		t.Error("family payload carries a kind tag")
	}
	if _, ok := compute["instances"]; !ok {
		t.Error("compute payload missing instances")
	}
	if _, ok := services["storage"].(map[string]any); !ok {
		t.Errorf("services.storage = %T, want object", services["storage"])
	}
}

func TestProjectAuditReportJSONRejectsMistaggedService(t *testing.T) {
	report := ProjectAuditReport{
		ProjectID: "proj-bad",
		Services:  []KindReport{{Kind: KindCompute, Storage: &StorageReport{}}},
	}
	if _, err := json.Marshal(report); err == nil {
		t.Error("mistagged service entry serialized without error")
	}
}

func TestRenderAuditHTML(t *testing.T) {
	report := ProjectAuditReport{
		ProjectID: "render-proj",
		ScanTime:  time.Now(),
		Services: []KindReport{
			{Kind: KindCompute, Compute: &ComputeReport{
				Instances: []computeservice.InstanceInfo{{Name: "vm-render", Status: "RUNNING", Zone: "us-central1-a"}},
			}},
		},
	}

	html, err := RenderAuditHTML([]ProjectAuditReport{report})
	if err != nil {
		t.Fatalf("RenderAuditHTML: %v", err)
	}
	for _, want := range []string{"render-proj", "vm-render", "<html"} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q", want)
		}
	}
}
