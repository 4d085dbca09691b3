package runservice

import (
	"context"
	"fmt"

	"github.com/charles-forsyth/skywalker/gcp/shared"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	run "google.golang.org/api/run/v2"
)

// RunService walks Cloud Run services per region.
type RunService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *RunService {
	return &RunService{clients: clients, useCache: useCache}
}

// RunServiceInfo is one Cloud Run service.
type RunServiceInfo struct {
	Name           string `json:"name"`
	Region         string `json:"region"`
	URL            string `json:"url"`
	Image          string `json:"image"`
	CreateTime     string `json:"create_time"`
	LastModifier   string `json:"last_modifier"`
	IngressTraffic string `json:"ingress_traffic"`
	Generation     int64  `json:"generation"`
}

// ListServices lists Cloud Run services in one region.
func (s *RunService) ListServices(ctx context.Context, projectID, region string) ([]RunServiceInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("run.ListServices", projectID, region)
	if s.useCache {
		var cached []RunServiceInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	svc, err := s.clients.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get run client: %w", err)
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", projectID, region)

	results, err := gcpinternal.RetryValue(ctx, "run", func(ctx context.Context) ([]RunServiceInfo, error) {
		results := []RunServiceInfo{}
		err := svc.Projects.Locations.Services.List(parent).Context(ctx).Pages(ctx, func(page *run.GoogleCloudRunV2ListServicesResponse) error {
			for _, service := range page.Services {
				image := "unknown"
				if service.Template != nil && len(service.Template.Containers) > 0 {
					image = service.Template.Containers[0].Image
				}

				results = append(results, RunServiceInfo{
					Name:           shared.ExtractResourceName(service.Name),
					Region:         region,
					URL:            service.Uri,
					Image:          image,
					CreateTime:     service.CreateTime,
					LastModifier:   service.LastModifier,
					IngressTraffic: service.Ingress,
					Generation:     service.Generation,
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
