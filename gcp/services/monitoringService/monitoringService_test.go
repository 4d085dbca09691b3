package monitoringservice

import (
	"testing"

	monitoringpb "cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	metricpb "google.golang.org/genproto/googleapis/api/metric"
	monitoredrespb "google.golang.org/genproto/googleapis/api/monitoredres"
)

func TestMergeFleetObservationNormalization(t *testing.T) {
	tests := []struct {
		metric string
		value  float64
		want   float64
	}{
		{"cpu_percent", 0.42, 42.0},
		{"gpu_memory_utilization", 0.75, 75.0},
		{"memory_percent", 61.5, 61.5},
		{"gpu_utilization", 88.0, 88.0},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			fleet := map[fleetKey]*FleetSample{}
			mergeFleetObservation(fleet, tt.metric, fleetObservation{
				ProjectID:  "proj",
				InstanceID: "123",
				Zone:       "us-central1-a",
				Value:      tt.value,
			})

			sample := fleet[fleetKey{"proj", "123"}]
			if sample == nil {
				t.Fatal("sample not created")
			}
			slot := sample.metricSlot(tt.metric)
			if *slot == nil {
				t.Fatalf("metric %s not set", tt.metric)
			}
			if **slot != tt.want {
				t.Errorf("metric %s = %v, want %v", tt.metric, **slot, tt.want)
			}
		})
	}
}

func TestMergeFleetObservationTakesMax(t *testing.T) {
	// Two GPU series for the same instance, one per card.
	fleet := map[fleetKey]*FleetSample{}
	obs := fleetObservation{ProjectID: "proj", InstanceID: "9", Zone: "us-west1-b"}

	obs.Value = 30
	mergeFleetObservation(fleet, "gpu_utilization", obs)
	obs.Value = 80
	mergeFleetObservation(fleet, "gpu_utilization", obs)
	obs.Value = 55
	mergeFleetObservation(fleet, "gpu_utilization", obs)

	sample := fleet[fleetKey{"proj", "9"}]
	if sample.GPUUtilization == nil || *sample.GPUUtilization != 80 {
		t.Errorf("GPU utilization = %v, want 80 (busiest card)", sample.GPUUtilization)
	}
}

func TestMergeFleetObservationAbsentMetricsStayNil(t *testing.T) {
	fleet := map[fleetKey]*FleetSample{}
	mergeFleetObservation(fleet, "cpu_percent", fleetObservation{
		ProjectID: "proj", InstanceID: "42", Value: 0.5,
	})

	sample := fleet[fleetKey{"proj", "42"}]
	if sample.CPUPercent == nil {
		t.Fatal("cpu should be set")
	}
	if sample.MemoryPercent != nil {
		t.Error("memory should stay nil when its series never reported")
	}
	if sample.GPUUtilization != nil || sample.GPUMemoryUtilization != nil {
		t.Error("gpu metrics should stay nil when their series never reported")
	}
}

func TestMergeFleetObservationKeysByProjectAndInstance(t *testing.T) {
	fleet := map[fleetKey]*FleetSample{}
	mergeFleetObservation(fleet, "cpu_percent", fleetObservation{
		ProjectID: "proj-a", InstanceID: "1", Value: 0.1,
	})
	mergeFleetObservation(fleet, "cpu_percent", fleetObservation{
		ProjectID: "proj-b", InstanceID: "1", Value: 0.9,
	})

	if len(fleet) != 2 {
		t.Fatalf("expected 2 samples for same instance ID in different projects, got %d", len(fleet))
	}
}

func TestObservationFromSeries(t *testing.T) {
	ts := &monitoringpb.TimeSeries{
		Resource: &monitoredrespb.MonitoredResource{
			Type: "gce_instance",
			Labels: map[string]string{
				"project_id":  "proj",
				"instance_id": "777",
				"zone":        "us-east1-c",
			},
		},
		Points: []*monitoringpb.Point{
			{Value: &monitoringpb.TypedValue{Value: &monitoringpb.TypedValue_DoubleValue{DoubleValue: 0.25}}},
			{Value: &monitoringpb.TypedValue{Value: &monitoringpb.TypedValue_DoubleValue{DoubleValue: 0.99}}},
		},
	}

	obs, ok := observationFromSeries(ts)
	if !ok {
		t.Fatal("expected observation")
	}
	if obs.ProjectID != "proj" || obs.InstanceID != "777" || obs.Zone != "us-east1-c" {
		t.Errorf("identity = %+v", obs)
	}
	// Newest point comes first.
	if obs.Value != 0.25 {
		t.Errorf("value = %v, want latest point 0.25", obs.Value)
	}
}

func TestObservationFromSeriesSkipsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		ts   *monitoringpb.TimeSeries
	}{
		{
			name: "no identity labels",
			ts: &monitoringpb.TimeSeries{
				Resource: &monitoredrespb.MonitoredResource{Labels: map[string]string{}},
				Points: []*monitoringpb.Point{
					{Value: &monitoringpb.TypedValue{Value: &monitoringpb.TypedValue_DoubleValue{DoubleValue: 1}}},
				},
			},
		},
		{
			name: "no points",
			ts: &monitoringpb.TimeSeries{
				Resource: &monitoredrespb.MonitoredResource{Labels: map[string]string{
					"project_id": "proj", "instance_id": "1",
				}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := observationFromSeries(tt.ts); ok {
				t.Error("expected series to be skipped")
			}
		})
	}
}

func TestGroupKeyForSeries(t *testing.T) {
	tests := []struct {
		name    string
		ts      *monitoringpb.TimeSeries
		groupBy []string
		want    string
	}{
		{
			name: "resource label",
			ts: &monitoringpb.TimeSeries{
				Resource: &monitoredrespb.MonitoredResource{
					Labels: map[string]string{"bucket_name": "my-data"},
				},
			},
			groupBy: []string{"resource.label.bucket_name"},
			want:    "my-data",
		},
		{
			name: "metric label fallback",
			ts: &monitoringpb.TimeSeries{
				Resource: &monitoredrespb.MonitoredResource{Labels: map[string]string{}},
				Metric:   &metricpb.Metric{Labels: map[string]string{"database_id": "proj:db"}},
			},
			groupBy: []string{"resource.label.database_id"},
			want:    "proj:db",
		},
		{
			name:    "unknown when nothing matches",
			ts:      &monitoringpb.TimeSeries{},
			groupBy: []string{"resource.label.instance_id"},
			want:    "unknown",
		},
		{
			name: "no grouping",
			ts:   &monitoringpb.TimeSeries{},
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := groupKeyForSeries(tt.ts, tt.groupBy); got != tt.want {
				t.Errorf("groupKeyForSeries = %q, want %q", got, tt.want)
			}
		})
	}
}
