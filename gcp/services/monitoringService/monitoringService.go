package monitoringservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	monitoringpb "cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// MonitoringService reads the Cloud Monitoring time series backing fleet
// utilization, inactivity detection, and bucket sizing. Results are
// never cached; metrics are only useful fresh.
type MonitoringService struct {
	clients *sdk.ClientSet
}

func New(clients *sdk.ClientSet) *MonitoringService {
	return &MonitoringService{clients: clients}
}

// FleetSample is the merged utilization snapshot for one instance,
// keyed by (project, numeric instance ID). Metric pointers are nil when
// the corresponding series never reported, which is how agent-less
// instances are recognized. Name and MachineType are filled in later
// from asset inventory.
type FleetSample struct {
	ProjectID            string   `json:"project_id"`
	InstanceID           string   `json:"instance_id"`
	Zone                 string   `json:"zone"`
	Name                 string   `json:"name,omitempty"`
	MachineType          string   `json:"machine_type,omitempty"`
	CPUPercent           *float64 `json:"cpu_percent,omitempty"`
	MemoryPercent        *float64 `json:"memory_percent,omitempty"`
	GPUUtilization       *float64 `json:"gpu_utilization,omitempty"`
	GPUMemoryUtilization *float64 `json:"gpu_memory_utilization,omitempty"`
}

// fleetMetricQueries maps a metric label to its time series filter. The
// slice fixes iteration order so partial failures log deterministically.
var fleetMetricQueries = []struct {
	Label  string
	Filter string
}{
	{"cpu_percent", `metric.type = "compute.googleapis.com/instance/cpu/utilization" AND resource.type = "gce_instance"`},
	{"memory_percent", `metric.type = "agent.googleapis.com/memory/percent_used" AND resource.type = "gce_instance"`},
	{"gpu_utilization", `metric.type = "agent.googleapis.com/gpu/utilization" AND resource.type = "gce_instance"`},
	{"gpu_memory_utilization", `metric.type = "agent.googleapis.com/gpu/memory/utilization" AND resource.type = "gce_instance"`},
}

// fleetWindow is how far back each fleet metric query looks.
const fleetWindow = 10 * time.Minute

type fleetKey struct {
	ProjectID  string
	InstanceID string
}

type fleetObservation struct {
	ProjectID  string
	InstanceID string
	Zone       string
	Value      float64
}

// MetricError records a fleet metric whose query failed. The other
// metrics still merge; the caller decides how loudly to complain.
type MetricError struct {
	Metric string
	Err    error
}

// FetchFleetMetrics queries the four utilization metrics across every
// project monitored by the scoping project and merges them per
// instance. A failing metric is reported in the second return value and
// simply leaves its column nil.
func (s *MonitoringService) FetchFleetMetrics(ctx context.Context, scopingProjectID string) ([]FleetSample, []MetricError) {
	client, err := s.clients.Metric(ctx)
	if err != nil {
		return nil, []MetricError{{Metric: "all", Err: fmt.Errorf("failed to get monitoring client: %w", err)}}
	}

	name := "projects/" + scopingProjectID
	now := time.Now()
	interval := &monitoringpb.TimeInterval{
		StartTime: timestamppb.New(now.Add(-fleetWindow)),
		EndTime:   timestamppb.New(now),
	}

	fleet := map[fleetKey]*FleetSample{}
	var order []fleetKey
	var metricErrs []MetricError

	for _, q := range fleetMetricQueries {
		req := &monitoringpb.ListTimeSeriesRequest{
			Name:     name,
			Filter:   q.Filter,
			Interval: interval,
			View:     monitoringpb.ListTimeSeriesRequest_FULL,
		}
		it := client.ListTimeSeries(ctx, req)
		for {
			ts, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				metricErrs = append(metricErrs, MetricError{Metric: q.Label, Err: err})
				break
			}
			obs, ok := observationFromSeries(ts)
			if !ok {
				continue
			}
			key := fleetKey{ProjectID: obs.ProjectID, InstanceID: obs.InstanceID}
			if _, seen := fleet[key]; !seen {
				order = append(order, key)
			}
			mergeFleetObservation(fleet, q.Label, obs)
		}
	}

	samples := make([]FleetSample, 0, len(order))
	for _, key := range order {
		samples = append(samples, *fleet[key])
	}
	return samples, metricErrs
}

// observationFromSeries extracts the latest point of a series together
// with its instance identity. Series without identity labels or without
// points are skipped.
func observationFromSeries(ts *monitoringpb.TimeSeries) (fleetObservation, bool) {
	labels := ts.GetResource().GetLabels()
	projectID := labels["project_id"]
	instanceID := labels["instance_id"]
	if projectID == "" || instanceID == "" {
		return fleetObservation{}, false
	}
	points := ts.GetPoints()
	if len(points) == 0 {
		return fleetObservation{}, false
	}
	// Points arrive newest first.
	return fleetObservation{
		ProjectID:  projectID,
		InstanceID: instanceID,
		Zone:       labels["zone"],
		Value:      points[0].GetValue().GetDoubleValue(),
	}, true
}

// mergeFleetObservation folds one series observation into the fleet map.
// cpu_percent and gpu_memory_utilization arrive as 0..1 ratios and are
// rescaled to 0..100. An instance can emit several series for one GPU
// metric (one per card); the merged value is the busiest one.
func mergeFleetObservation(fleet map[fleetKey]*FleetSample, metric string, obs fleetObservation) {
	key := fleetKey{ProjectID: obs.ProjectID, InstanceID: obs.InstanceID}
	sample, ok := fleet[key]
	if !ok {
		sample = &FleetSample{
			ProjectID:  obs.ProjectID,
			InstanceID: obs.InstanceID,
			Zone:       obs.Zone,
		}
		fleet[key] = sample
	}

	val := obs.Value
	if metric == "cpu_percent" || metric == "gpu_memory_utilization" {
		val *= 100
	}

	slot := sample.metricSlot(metric)
	if slot == nil {
		return
	}
	if *slot == nil || val > **slot {
		v := val
		*slot = &v
	}
}

func (s *FleetSample) metricSlot(metric string) **float64 {
	switch metric {
	case "cpu_percent":
		return &s.CPUPercent
	case "memory_percent":
		return &s.MemoryPercent
	case "gpu_utilization":
		return &s.GPUUtilization
	case "gpu_memory_utilization":
		return &s.GPUMemoryUtilization
	}
	return nil
}

// FetchInactiveResources sums a metric per resource over a long window
// to detect inactivity. The result maps the first group-by label's value
// to the summed total; a resource absent from the map never reported.
func (s *MonitoringService) FetchInactiveResources(ctx context.Context, projectID, metricType, resourceType string, days int, groupBy []string) (map[string]float64, error) {
	client, err := s.clients.Metric(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitoring client: %w", err)
	}

	now := time.Now()
	window := time.Duration(days) * 24 * time.Hour
	req := &monitoringpb.ListTimeSeriesRequest{
		Name:   "projects/" + projectID,
		Filter: fmt.Sprintf(`metric.type = "%s" AND resource.type = "%s"`, metricType, resourceType),
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(now.Add(-window)),
			EndTime:   timestamppb.New(now),
		},
		View: monitoringpb.ListTimeSeriesRequest_FULL,
		Aggregation: &monitoringpb.Aggregation{
			// One bucket spanning the whole window keeps the sum in a
			// single point.
			AlignmentPeriod:    durationpb.New(window),
			PerSeriesAligner:   monitoringpb.Aggregation_ALIGN_SUM,
			CrossSeriesReducer: monitoringpb.Aggregation_REDUCE_SUM,
			GroupByFields:      groupBy,
		},
	}

	results := map[string]float64{}
	it := client.ListTimeSeries(ctx, req)
	for {
		ts, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		points := ts.GetPoints()
		if len(points) == 0 {
			continue
		}
		val := points[0].GetValue().GetDoubleValue()
		if val == 0 {
			val = float64(points[0].GetValue().GetInt64Value())
		}
		results[groupKeyForSeries(ts, groupBy)] = val
	}
	return results, nil
}

// groupKeyForSeries resolves the identity of an aggregated series from
// the last dot-segment of the first group-by field, checked against the
// resource labels first and the metric labels second.
func groupKeyForSeries(ts *monitoringpb.TimeSeries, groupBy []string) string {
	if len(groupBy) == 0 {
		return "unknown"
	}
	parts := strings.Split(groupBy[0], ".")
	labelKey := parts[len(parts)-1]
	if v := ts.GetResource().GetLabels()[labelKey]; v != "" {
		return v
	}
	if v := ts.GetMetric().GetLabels()[labelKey]; v != "" {
		return v
	}
	return "unknown"
}

// FetchBucketSizes reads each bucket's stored byte gauge, averaged over
// the last day. The gauge is written roughly once a day so a shorter
// window can miss buckets entirely.
func (s *MonitoringService) FetchBucketSizes(ctx context.Context, projectID string) (map[string]int64, error) {
	client, err := s.clients.Metric(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitoring client: %w", err)
	}

	now := time.Now()
	window := 24 * time.Hour
	req := &monitoringpb.ListTimeSeriesRequest{
		Name:   "projects/" + projectID,
		Filter: `metric.type = "storage.googleapis.com/storage/total_bytes" AND resource.type = "gcs_bucket"`,
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(now.Add(-window)),
			EndTime:   timestamppb.New(now),
		},
		View: monitoringpb.ListTimeSeriesRequest_FULL,
		Aggregation: &monitoringpb.Aggregation{
			AlignmentPeriod:    durationpb.New(window),
			PerSeriesAligner:   monitoringpb.Aggregation_ALIGN_MEAN,
			CrossSeriesReducer: monitoringpb.Aggregation_REDUCE_MEAN,
			GroupByFields:      []string{"resource.label.bucket_name"},
		},
	}

	results := map[string]int64{}
	it := client.ListTimeSeries(ctx, req)
	for {
		ts, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		points := ts.GetPoints()
		if len(points) == 0 {
			continue
		}
		name := ts.GetResource().GetLabels()["bucket_name"]
		if name == "" {
			name = ts.GetMetric().GetLabels()["bucket_name"]
		}
		if name == "" {
			continue
		}
		results[name] = int64(points[0].GetValue().GetDoubleValue())
	}
	return results, nil
}
