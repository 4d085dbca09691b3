package organizationsservice

import (
	"context"
	"fmt"
	"sort"

	resourcemanagerpb "cloud.google.com/go/resourcemanager/apiv3/resourcemanagerpb"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"google.golang.org/api/iterator"
)

// OrganizationsService discovers the projects visible to the caller.
type OrganizationsService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *OrganizationsService {
	return &OrganizationsService{clients: clients, useCache: useCache}
}

// ProjectInfo is one discovered project.
type ProjectInfo struct {
	ProjectID   string `json:"project_id"`
	DisplayName string `json:"display_name"`
}

// ListAllProjects returns every ACTIVE project the caller can see,
// sorted by project ID. No parent is passed so the search spans
// everything the credentials reach.
func (s *OrganizationsService) ListAllProjects(ctx context.Context) ([]ProjectInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("org.ListAllProjects")
	if s.useCache {
		var cached []ProjectInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	client, err := s.clients.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get projects client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "cloudresourcemanager", func(ctx context.Context) ([]ProjectInfo, error) {
		out := []ProjectInfo{}
		req := &resourcemanagerpb.SearchProjectsRequest{Query: "state:ACTIVE"}
		it := client.SearchProjects(ctx, req)
		for {
			project, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			out = append(out, ProjectInfo{
				ProjectID:   project.GetProjectId(),
				DisplayName: project.GetDisplayName(),
			})
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ProjectID < results[j].ProjectID
	})

	if s.useCache {
		gcpinternal.WriteCache(cacheKey, results)
	}
	return results, nil
}
