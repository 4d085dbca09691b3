package gkeservice

import (
	"context"
	"fmt"

	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
)

// GKEService walks GKE clusters per location.
type GKEService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *GKEService {
	return &GKEService{clients: clients, useCache: useCache}
}

// NodePoolInfo is one node pool inside a cluster.
type NodePoolInfo struct {
	Name        string `json:"name"`
	MachineType string `json:"machine_type"`
	DiskSizeGB  int64  `json:"disk_size_gb"`
	NodeCount   int64  `json:"node_count"`
	Version     string `json:"version"`
	Status      string `json:"status"`
}

// ClusterInfo is one GKE cluster. Status strings come straight from the
// REST API ("RUNNING", "DEGRADED", ...), decoded exactly once at the wire.
type ClusterInfo struct {
	Name       string         `json:"name"`
	Location   string         `json:"location"`
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	Endpoint   string         `json:"endpoint"`
	Network    string         `json:"network"`
	Subnetwork string         `json:"subnetwork"`
	NodePools  []NodePoolInfo `json:"node_pools,omitempty"`
}

// ListClusters lists all clusters in one location (region or zone).
func (s *GKEService) ListClusters(ctx context.Context, projectID, location string) ([]ClusterInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("gke.ListClusters", projectID, location)
	if s.useCache {
		var cached []ClusterInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.Container(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container client: %w", err)
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", projectID, location)

	results, err := gcpinternal.RetryValue(ctx, "container", func(ctx context.Context) ([]ClusterInfo, error) {
		resp, err := svc.Projects.Locations.Clusters.List(parent).Context(ctx).Do()
		if err != nil {
			return nil, err
		}

		results := []ClusterInfo{}
		for _, cluster := range resp.Clusters {
			info := ClusterInfo{
				Name:       cluster.Name,
				Location:   cluster.Location,
				Status:     cluster.Status,
				Version:    cluster.CurrentMasterVersion,
				Endpoint:   cluster.Endpoint,
				Network:    cluster.Network,
				Subnetwork: cluster.Subnetwork,
			}

			for _, np := range cluster.NodePools {
				pool := NodePoolInfo{
					Name:      np.Name,
					NodeCount: np.InitialNodeCount,
					Version:   np.Version,
					Status:    np.Status,
				}
				if np.Config != nil {
					pool.MachineType = np.Config.MachineType
					pool.DiskSizeGB = np.Config.DiskSizeGb
				}
				info.NodePools = append(info.NodePools, pool)
			}

			results = append(results, info)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}

	if s.useCache {
		gcpinternal.WriteCache(cacheKey, results)
	}
	return results, nil
}
