package computeservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	compute "google.golang.org/api/compute/v1"
)

// ComputeService walks Compute Engine inventory: instances per zone, plus
// project-global images, machine images, snapshots, and disks.
type ComputeService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *ComputeService {
	return &ComputeService{clients: clients, useCache: useCache}
}

// DiskInfo is one disk attached to an instance.
type DiskInfo struct {
	Name   string `json:"name"`
	SizeGB int64  `json:"size_gb"`
	Type   string `json:"type"`
	Boot   bool   `json:"boot"`
}

// GPUInfo is one accelerator attached to an instance.
type GPUInfo struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Type  string `json:"type"`
}

// InstanceInfo is one Compute Engine instance. The utilization fields stay
// nil unless a metrics merge supplies live samples; nil means "no data",
// which is distinct from a measured zero.
type InstanceInfo struct {
	Name              string            `json:"name"`
	ID                string            `json:"id"`
	Status            string            `json:"status"`
	MachineType       string            `json:"machine_type"`
	Zone              string            `json:"zone"`
	CreationTimestamp string            `json:"creation_timestamp"`
	Labels            map[string]string `json:"labels,omitempty"`
	Disks             []DiskInfo        `json:"disks,omitempty"`
	GPUs              []GPUInfo         `json:"gpus,omitempty"`
	InternalIP        string            `json:"internal_ip,omitempty"`
	ExternalIP        string            `json:"external_ip,omitempty"`

	CPUPercent           *float64 `json:"cpu_percent,omitempty"`
	MemoryPercent        *float64 `json:"memory_percent,omitempty"`
	GPUUtilization       *float64 `json:"gpu_utilization,omitempty"`
	GPUMemoryUtilization *float64 `json:"gpu_memory_utilization,omitempty"`
}

// ImageInfo is one custom disk image.
type ImageInfo struct {
	Name              string `json:"name"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creation_timestamp"`
	DiskSizeGB        int64  `json:"disk_size_gb"`
	Status            string `json:"status"`
	ArchiveSizeBytes  int64  `json:"archive_size_bytes"`
}

// MachineImageInfo is one machine image (full VM backup).
type MachineImageInfo struct {
	Name              string `json:"name"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creation_timestamp"`
	Status            string `json:"status"`
	TotalStorageBytes int64  `json:"total_storage_bytes"`
}

// SnapshotInfo is one disk snapshot.
type SnapshotInfo struct {
	Name              string `json:"name"`
	ID                string `json:"id"`
	CreationTimestamp string `json:"creation_timestamp"`
	DiskSizeGB        int64  `json:"disk_size_gb"`
	Status            string `json:"status"`
	StorageBytes      int64  `json:"storage_bytes"`
}

// OrphanDiskInfo is a persistent disk with no attached users.
type OrphanDiskInfo struct {
	Name   string `json:"name"`
	Zone   string `json:"zone"`
	SizeGB int64  `json:"size_gb"`
	Type   string `json:"type"`
}

// urlTail returns the last path segment of a GCP resource URL.
func urlTail(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ListInstances lists all instances in one zone with deep details.
func (s *ComputeService) ListInstances(ctx context.Context, projectID, zone string) ([]InstanceInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("compute.ListInstances", projectID, zone)
	if s.useCache {
		var cached []InstanceInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]InstanceInfo, error) {
		results := []InstanceInfo{}
		err := svc.Instances.List(projectID, zone).Context(ctx).Pages(ctx, func(page *compute.InstanceList) error {
			for _, instance := range page.Items {
				results = append(results, buildInstanceInfo(instance, zone))
			}
			return nil
		})
		return results, err
	})
	if err != nil {
		return nil, err
	}

	if s.useCache {
		gcpinternal.WriteCache(cacheKey, results)
	}
	return results, nil
}

func buildInstanceInfo(instance *compute.Instance, zone string) InstanceInfo {
	info := InstanceInfo{
		Name:              instance.Name,
		ID:                fmt.Sprintf("%d", instance.Id),
		Status:            instance.Status,
		MachineType:       urlTail(instance.MachineType),
		Zone:              zone,
		CreationTimestamp: instance.CreationTimestamp,
		Labels:            instance.Labels,
	}
	if info.MachineType == "" {
		info.MachineType = "unknown"
	}

	for _, acc := range instance.GuestAccelerators {
		accType := urlTail(acc.AcceleratorType)
		info.GPUs = append(info.GPUs, GPUInfo{
			Name:  accType,
			Count: acc.AcceleratorCount,
			Type:  accType,
		})
	}

	for _, d := range instance.Disks {
		name := d.DeviceName
		if name == "" {
			name = "unknown"
		}
		info.Disks = append(info.Disks, DiskInfo{
			Name:   name,
			SizeGB: d.DiskSizeGb,
			Type:   d.Type,
			Boot:   d.Boot,
		})
	}

	// The first interface is the primary one
	if len(instance.NetworkInterfaces) > 0 {
		nic := instance.NetworkInterfaces[0]
		info.InternalIP = nic.NetworkIP
		if len(nic.AccessConfigs) > 0 {
			info.ExternalIP = nic.AccessConfigs[0].NatIP
		}
	}

	return info
}

// ListImages lists all custom images in a project.
func (s *ComputeService) ListImages(ctx context.Context, projectID string) ([]ImageInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("compute.ListImages", projectID)
	if s.useCache {
		var cached []ImageInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]ImageInfo, error) {
		results := []ImageInfo{}
		err := svc.Images.List(projectID).Context(ctx).Pages(ctx, func(page *compute.ImageList) error {
			for _, img := range page.Items {
				results = append(results, ImageInfo{
					Name:              img.Name,
					ID:                fmt.Sprintf("%d", img.Id),
					CreationTimestamp: img.CreationTimestamp,
					DiskSizeGB:        img.DiskSizeGb,
					Status:            img.Status,
					ArchiveSizeBytes:  img.ArchiveSizeBytes,
				})
			}
			return nil
		})
		return results, err
	})
	if err != nil {
		return nil, err
	}

	if s.useCache {
		gcpinternal.WriteCache(cacheKey, results)
	}
	return results, nil
}

// ListMachineImages lists all machine images (VM backups) in a project.
func (s *ComputeService) ListMachineImages(ctx context.Context, projectID string) ([]MachineImageInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("compute.ListMachineImages", projectID)
	if s.useCache {
		var cached []MachineImageInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]MachineImageInfo, error) {
		results := []MachineImageInfo{}
		err := svc.MachineImages.List(projectID).Context(ctx).Pages(ctx, func(page *compute.MachineImageList) error {
			for _, img := range page.Items {
				results = append(results, MachineImageInfo{
					Name:              img.Name,
					ID:                fmt.Sprintf("%d", img.Id),
					CreationTimestamp: img.CreationTimestamp,
					Status:            img.Status,
					TotalStorageBytes: img.TotalStorageBytes,
				})
			}
			return nil
		})
		return results, err
	})
	if err != nil {
		return nil, err
	}

	if s.useCache {
		gcpinternal.WriteCache(cacheKey, results)
	}
	return results, nil
}

// ListSnapshots lists all disk snapshots in a project.
func (s *ComputeService) ListSnapshots(ctx context.Context, projectID string) ([]SnapshotInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("compute.ListSnapshots", projectID)
	if s.useCache {
		var cached []SnapshotInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]SnapshotInfo, error) {
		results := []SnapshotInfo{}
		err := svc.Snapshots.List(projectID).Context(ctx).Pages(ctx, func(page *compute.SnapshotList) error {
			for _, snap := range page.Items {
				results = append(results, SnapshotInfo{
					Name:              snap.Name,
					ID:                fmt.Sprintf("%d", snap.Id),
					CreationTimestamp: snap.CreationTimestamp,
					DiskSizeGB:        snap.DiskSizeGb,
					Status:            snap.Status,
					StorageBytes:      snap.StorageBytes,
				})
			}
			return nil
		})
		return results, err
	})
	if err != nil {
		return nil, err
	}

	if s.useCache {
		gcpinternal.WriteCache(cacheKey, results)
	}
	return results, nil
}

// ListOrphanDisks returns disks with no attached users across every zone of
// the project, via the aggregated list. Never cached: orphan status is the
// point-in-time fact the zombie hunt exists to check.
func (s *ComputeService) ListOrphanDisks(ctx context.Context, projectID string) ([]OrphanDiskInfo, error) {
	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]OrphanDiskInfo, error) {
		results := []OrphanDiskInfo{}
		err := svc.Disks.AggregatedList(projectID).Context(ctx).Pages(ctx, func(page *compute.DiskAggregatedList) error {
			for zoneKey, scoped := range page.Items {
				for _, disk := range scoped.Disks {
					if len(disk.Users) > 0 {
						continue
					}
					results = append(results, OrphanDiskInfo{
						Name:   disk.Name,
						Zone:   urlTail(zoneKey),
						SizeGB: disk.SizeGb,
						Type:   urlTail(disk.Type),
					})
				}
			}
			return nil
		})
		return results, err
	})
}

// AgeDays returns whole days since an RFC 3339 creation timestamp, or -1 if
// the timestamp does not parse.
func AgeDays(creationTimestamp string) int {
	t, err := time.Parse(time.RFC3339, creationTimestamp)
	if err != nil {
		return -1
	}
	return int(time.Since(t).Hours() / 24)
}
