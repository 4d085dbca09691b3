package gcpinternal

import (
	"reflect"
	"testing"
)

func TestExpandZones(t *testing.T) {
	tests := []struct {
		name    string
		regions []string
		want    []string
	}{
		{
			name:    "single region",
			regions: []string{"us-central1"},
			want:    []string{"us-central1-a", "us-central1-b", "us-central1-c", "us-central1-f"},
		},
		{
			name:    "two regions keep order",
			regions: []string{"us-west1", "us-east1"},
			want: []string{
				"us-west1-a", "us-west1-b", "us-west1-c", "us-west1-f",
				"us-east1-a", "us-east1-b", "us-east1-c", "us-east1-f",
			},
		},
		{
			name:    "empty",
			regions: nil,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandZones(tt.regions)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExpandZones(%v) = %v, want %v", tt.regions, got, tt.want)
			}
		})
	}
}

func TestExpandZonesDeterministic(t *testing.T) {
	regions := []string{"us-central1", "us-west2", "europe-west4"}
	first := ExpandZones(regions)
	for i := 0; i < 10; i++ {
		if got := ExpandZones(regions); !reflect.DeepEqual(got, first) {
			t.Fatalf("ExpandZones not deterministic: run %d got %v, want %v", i, got, first)
		}
	}
}

func TestZonalScopes(t *testing.T) {
	scopes := ZonalScopes("proj-a", []string{"us-central1"})
	if len(scopes) != 4 {
		t.Fatalf("expected 4 zonal scopes, got %d", len(scopes))
	}
	for _, s := range scopes {
		if s.ProjectID != "proj-a" {
			t.Errorf("scope project = %q, want proj-a", s.ProjectID)
		}
	}
	if scopes[0].Location != "us-central1-a" {
		t.Errorf("first zone = %q, want us-central1-a", scopes[0].Location)
	}
}

func TestRegionalScopes(t *testing.T) {
	scopes := RegionalScopes("proj-b", []string{"us-west1", "us-east4"})
	want := []Scope{
		{ProjectID: "proj-b", Location: "us-west1"},
		{ProjectID: "proj-b", Location: "us-east4"},
	}
	if !reflect.DeepEqual(scopes, want) {
		t.Errorf("RegionalScopes = %v, want %v", scopes, want)
	}
}

func TestRegionFromZone(t *testing.T) {
	tests := []struct {
		zone string
		want string
	}{
		{"us-central1-a", "us-central1"},
		{"europe-west4-b", "europe-west4"},
		{"us-central1", "us-central1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RegionFromZone(tt.zone); got != tt.want {
			t.Errorf("RegionFromZone(%q) = %q, want %q", tt.zone, got, tt.want)
		}
	}
}

func TestSortScopes(t *testing.T) {
	scopes := []Scope{
		{ProjectID: "b", Location: "us-west1"},
		{ProjectID: "a", Location: "us-west1"},
		{ProjectID: "a", Location: "us-east1"},
	}
	SortScopes(scopes)
	want := []Scope{
		{ProjectID: "a", Location: "us-east1"},
		{ProjectID: "a", Location: "us-west1"},
		{ProjectID: "b", Location: "us-west1"},
	}
	if !reflect.DeepEqual(scopes, want) {
		t.Errorf("SortScopes = %v, want %v", scopes, want)
	}
}

func TestResolveRegionsExplicitList(t *testing.T) {
	got := ResolveRegions("us-west1,us-east1 us-west1")
	want := []string{"us-west1", "us-east1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ResolveRegions = %v, want %v", got, want)
	}
}

func TestResolveRegionsDefault(t *testing.T) {
	got := ResolveRegions("")
	if len(got) == 0 {
		t.Fatal("default regions should not be empty")
	}
	if got[0] != "us-central1" {
		t.Errorf("first default region = %q, want us-central1", got[0])
	}
}
