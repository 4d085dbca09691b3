package sqlservice

import (
	"context"
	"fmt"

	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	sqladmin "google.golang.org/api/sqladmin/v1beta4"
)

// SQLService walks Cloud SQL instances via the SQL Admin API.
type SQLService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *SQLService {
	return &SQLService{clients: clients, useCache: useCache}
}

// SQLInstanceInfo is one Cloud SQL instance.
type SQLInstanceInfo struct {
	Name            string `json:"name"`
	Region          string `json:"region"`
	DatabaseVersion string `json:"database_version"`
	Tier            string `json:"tier"`
	Status          string `json:"status"`
	PublicIP        string `json:"public_ip,omitempty"`
	PrivateIP       string `json:"private_ip,omitempty"`
	StorageLimitGB  int64  `json:"storage_limit_gb"`
}

// ListInstances lists all Cloud SQL instances in the project. The API is
// project-global; region comes back as an attribute per instance.
func (s *SQLService) ListInstances(ctx context.Context, projectID string) ([]SQLInstanceInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("sql.ListInstances", projectID)
	if s.useCache {
		var cached []SQLInstanceInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.SQLAdmin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sqladmin client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "sqladmin", func(ctx context.Context) ([]SQLInstanceInfo, error) {
		results := []SQLInstanceInfo{}
		err := svc.Instances.List(projectID).Context(ctx).Pages(ctx, func(page *sqladmin.InstancesListResponse) error {
			for _, instance := range page.Items {
				info := SQLInstanceInfo{
					Name:            instance.Name,
					Region:          instance.Region,
					DatabaseVersion: instance.DatabaseVersion,
					Status:          instance.State,
				}

				for _, ip := range instance.IpAddresses {
					switch ip.Type {
					case "PRIMARY":
						info.PublicIP = ip.IpAddress
					case "PRIVATE":
						info.PrivateIP = ip.IpAddress
					}
				}

				if instance.Settings != nil {
					info.Tier = instance.Settings.Tier
					info.StorageLimitGB = instance.Settings.DataDiskSizeGb
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
