package filestoreservice

import (
	"context"
	"fmt"

	"github.com/charles-forsyth/skywalker/gcp/shared"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	file "google.golang.org/api/file/v1"
)

// FilestoreService walks Filestore instances per location.
type FilestoreService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *FilestoreService {
	return &FilestoreService{clients: clients, useCache: useCache}
}

// FilestoreInstanceInfo is one Filestore instance. Tier and State are the
// REST API's string enums, taken as-is.
type FilestoreInstanceInfo struct {
	Name        string   `json:"name"`
	Tier        string   `json:"tier"`
	State       string   `json:"state"`
	CapacityGB  int64    `json:"capacity_gb"`
	IPAddresses []string `json:"ip_addresses,omitempty"`
	CreateTime  string   `json:"create_time"`
	Location    string   `json:"location"`
}

// ListInstances lists all Filestore instances in one location.
func (s *FilestoreService) ListInstances(ctx context.Context, projectID, location string) ([]FilestoreInstanceInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("filestore.ListInstances", projectID, location)
	if s.useCache {
		var cached []FilestoreInstanceInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.Filestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get filestore client: %w", err)
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", projectID, location)

	results, err := gcpinternal.RetryValue(ctx, "file", func(ctx context.Context) ([]FilestoreInstanceInfo, error) {
		results := []FilestoreInstanceInfo{}
		err := svc.Projects.Locations.Instances.List(parent).Context(ctx).Pages(ctx, func(page *file.ListInstancesResponse) error {
			for _, instance := range page.Instances {
				info := FilestoreInstanceInfo{
					Name:       shared.ExtractResourceName(instance.Name),
					Tier:       instance.Tier,
					State:      instance.State,
					CreateTime: instance.CreateTime,
					Location:   location,
				}

				if len(instance.FileShares) > 0 {
					info.CapacityGB = instance.FileShares[0].CapacityGb
				}
				for _, network := range instance.Networks {
					if len(network.IpAddresses) > 0 {
						info.IPAddresses = append(info.IPAddresses, network.IpAddresses[0])
					}
				}

				results = append(results, info)
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
