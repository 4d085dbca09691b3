package vertexservice

import (
	"context"
	"fmt"
	"time"

	aiplatformpb "cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/charles-forsyth/skywalker/gcp/shared"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"google.golang.org/api/iterator"
	notebooks "google.golang.org/api/notebooks/v1"
)

// VertexService walks the Vertex AI surface of a single region: Workbench
// notebook instances, uploaded models, and prediction endpoints.
type VertexService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *VertexService {
	return &VertexService{clients: clients, useCache: useCache}
}

// NotebookInfo is one Workbench notebook instance.
type NotebookInfo struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Creator    string `json:"creator"`
	UpdateTime string `json:"update_time"`
	Location   string `json:"location"`
}

// ModelInfo is one model uploaded to the Vertex model registry.
type ModelInfo struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	VersionID   string    `json:"version_id"`
	CreateTime  time.Time `json:"create_time"`
	Location    string    `json:"location"`
}

// EndpointInfo is one prediction endpoint. DeployedModels counts the
// entries in the endpoint's traffic split.
type EndpointInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	DeployedModels int    `json:"deployed_models"`
	Location       string `json:"location"`
}

// VertexReport bundles the three Vertex listings for one region. The
// notebook listing and the model/endpoint pair fail independently.
type VertexReport struct {
	Notebooks []NotebookInfo `json:"notebooks"`
	Models    []ModelInfo    `json:"models"`
	Endpoints []EndpointInfo `json:"endpoints"`
}

// GetVertexReport scans Vertex AI resources in one region. Vertex is
// frequently not enabled; a failed listing degrades to an empty slice
// and the first error is returned for the caller to classify.
func (s *VertexService) GetVertexReport(ctx context.Context, projectID string, location string) (VertexReport, error) {
	cacheKey := gcpinternal.CacheKeyFor("vertex.GetVertexReport", projectID, location)
	if s.useCache {
		var cached VertexReport
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	report := VertexReport{
		Notebooks: []NotebookInfo{},
		Models:    []ModelInfo{},
		Endpoints: []EndpointInfo{},
	}

	var firstErr error

	nbs, err := s.listNotebooks(ctx, projectID, location)
	if err != nil {
		firstErr = fmt.Errorf("notebooks: %w", err)
	} else {
		report.Notebooks = nbs
	}

	models, err := s.listModels(ctx, projectID, location)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("models: %w", err)
		}
	} else {
		report.Models = models
	}

	endpoints, err := s.listEndpoints(ctx, projectID, location)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("endpoints: %w", err)
		}
	} else {
		report.Endpoints = endpoints
	}

	if s.useCache && firstErr == nil {
		gcpinternal.WriteCache(cacheKey, report)
	}
	return report, firstErr
}

func (s *VertexService) listNotebooks(ctx context.Context, projectID, location string) ([]NotebookInfo, error) {
	svc, err := s.clients.Notebooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get notebooks client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "notebooks", func(ctx context.Context) ([]NotebookInfo, error) {
		results := []NotebookInfo{}
		parent := fmt.Sprintf("projects/%s/locations/%s", projectID, location)
		err := svc.Projects.Locations.Instances.List(parent).Context(ctx).Pages(ctx, func(page *notebooks.ListInstancesResponse) error {
			for _, nb := range page.Instances {
				results = append(results, NotebookInfo{
					Name:       shared.ExtractResourceName(nb.Name),
					State:      nb.State,
					Creator:    nb.Creator,
					UpdateTime: nb.UpdateTime,
					Location:   location,
				})
			}
			return nil
		})
		return results, err
	})
}

func (s *VertexService) listModels(ctx context.Context, projectID, location string) ([]ModelInfo, error) {
	client, err := s.clients.VertexModels(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get vertex model client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "aiplatform", func(ctx context.Context) ([]ModelInfo, error) {
		results := []ModelInfo{}
		req := &aiplatformpb.ListModelsRequest{
			Parent: fmt.Sprintf("projects/%s/locations/%s", projectID, location),
		}
		it := client.ListModels(ctx, req)
		for {
			model, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			info := ModelInfo{
				Name:        shared.ExtractResourceName(model.Name),
				DisplayName: model.DisplayName,
				VersionID:   model.VersionId,
				Location:    location,
			}
			if model.CreateTime != nil {
				info.CreateTime = model.CreateTime.AsTime()
			}
			results = append(results, info)
		}
		return results, nil
	})
}

func (s *VertexService) listEndpoints(ctx context.Context, projectID, location string) ([]EndpointInfo, error) {
	client, err := s.clients.VertexEndpoints(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to get vertex endpoint client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "aiplatform", func(ctx context.Context) ([]EndpointInfo, error) {
		results := []EndpointInfo{}
		req := &aiplatformpb.ListEndpointsRequest{
			Parent: fmt.Sprintf("projects/%s/locations/%s", projectID, location),
		}
		it := client.ListEndpoints(ctx, req)
		for {
			ep, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			results = append(results, EndpointInfo{
				Name:           shared.ExtractResourceName(ep.Name),
				DisplayName:    ep.DisplayName,
				DeployedModels: len(ep.TrafficSplit),
				Location:       location,
			})
		}
		return results, nil
	})
}
