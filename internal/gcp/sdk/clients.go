package sdk

import (
	"context"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	asset "cloud.google.com/go/asset/apiv1"
	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	resourcemanager "cloud.google.com/go/resourcemanager/apiv3"
	"cloud.google.com/go/storage"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	compute "google.golang.org/api/compute/v1"
	container "google.golang.org/api/container/v1"
	file "google.golang.org/api/file/v1"
	iam "google.golang.org/api/iam/v1"
	notebooks "google.golang.org/api/notebooks/v1"
	"google.golang.org/api/option"
	run "google.golang.org/api/run/v2"
	sqladmin "google.golang.org/api/sqladmin/v1beta4"
)

// ClientSet is the single container every walker draws its API clients
// from. Clients are constructed lazily on first use and shared for the
// life of the scan; all of them authenticate through the one session.
type ClientSet struct {
	session *gcpinternal.SafeSession
}

// NewClientSet builds a ClientSet around an authenticated session.
func NewClientSet(session *gcpinternal.SafeSession) *ClientSet {
	return &ClientSet{session: session}
}

func (c *ClientSet) options() []option.ClientOption {
	if c.session == nil {
		return nil
	}
	return []option.ClientOption{c.session.GetClientOption()}
}

// Compute returns the shared Compute Engine REST client.
func (c *ClientSet) Compute(ctx context.Context) (*compute.Service, error) {
	return cachedClient(CacheKey("client", "compute"), func() (*compute.Service, error) {
		return compute.NewService(ctx, c.options()...)
	})
}

// SQLAdmin returns the shared Cloud SQL Admin client.
func (c *ClientSet) SQLAdmin(ctx context.Context) (*sqladmin.Service, error) {
	return cachedClient(CacheKey("client", "sqladmin"), func() (*sqladmin.Service, error) {
		return sqladmin.NewService(ctx, c.options()...)
	})
}

// Container returns the shared GKE client.
func (c *ClientSet) Container(ctx context.Context) (*container.Service, error) {
	return cachedClient(CacheKey("client", "container"), func() (*container.Service, error) {
		return container.NewService(ctx, c.options()...)
	})
}

// Run returns the shared Cloud Run v2 client.
func (c *ClientSet) Run(ctx context.Context) (*run.Service, error) {
	return cachedClient(CacheKey("client", "run"), func() (*run.Service, error) {
		return run.NewService(ctx, c.options()...)
	})
}

// Filestore returns the shared Filestore client.
func (c *ClientSet) Filestore(ctx context.Context) (*file.Service, error) {
	return cachedClient(CacheKey("client", "file"), func() (*file.Service, error) {
		return file.NewService(ctx, c.options()...)
	})
}

// IAM returns the shared IAM client.
func (c *ClientSet) IAM(ctx context.Context) (*iam.Service, error) {
	return cachedClient(CacheKey("client", "iam"), func() (*iam.Service, error) {
		return iam.NewService(ctx, c.options()...)
	})
}

// CloudResourceManager returns the shared Resource Manager v1 client, used
// for project IAM policies.
func (c *ClientSet) CloudResourceManager(ctx context.Context) (*cloudresourcemanager.Service, error) {
	return cachedClient(CacheKey("client", "cloudresourcemanager"), func() (*cloudresourcemanager.Service, error) {
		return cloudresourcemanager.NewService(ctx, c.options()...)
	})
}

// Notebooks returns the shared Vertex Workbench notebooks client.
func (c *ClientSet) Notebooks(ctx context.Context) (*notebooks.Service, error) {
	return cachedClient(CacheKey("client", "notebooks"), func() (*notebooks.Service, error) {
		return notebooks.NewService(ctx, c.options()...)
	})
}

// Storage returns the shared Cloud Storage client.
func (c *ClientSet) Storage(ctx context.Context) (*storage.Client, error) {
	return cachedClient(CacheKey("client", "storage"), func() (*storage.Client, error) {
		return storage.NewClient(ctx, c.options()...)
	})
}

// Metric returns the shared Cloud Monitoring metric client.
func (c *ClientSet) Metric(ctx context.Context) (*monitoring.MetricClient, error) {
	return cachedClient(CacheKey("client", "monitoring"), func() (*monitoring.MetricClient, error) {
		return monitoring.NewMetricClient(ctx, c.options()...)
	})
}

// Asset returns the shared Cloud Asset Inventory client.
func (c *ClientSet) Asset(ctx context.Context) (*asset.Client, error) {
	return cachedClient(CacheKey("client", "asset"), func() (*asset.Client, error) {
		return asset.NewClient(ctx, c.options()...)
	})
}

// Projects returns the shared Resource Manager v3 projects client, used for
// project discovery.
func (c *ClientSet) Projects(ctx context.Context) (*resourcemanager.ProjectsClient, error) {
	return cachedClient(CacheKey("client", "projects"), func() (*resourcemanager.ProjectsClient, error) {
		return resourcemanager.NewProjectsClient(ctx, c.options()...)
	})
}

// VertexModels returns a Vertex AI model client bound to a region. Vertex
// endpoints are regional, so there is one cached client per region.
func (c *ClientSet) VertexModels(ctx context.Context, region string) (*aiplatform.ModelClient, error) {
	return cachedClient(CacheKey("client", "aiplatform-models", region), func() (*aiplatform.ModelClient, error) {
		opts := append(c.options(), option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)))
		return aiplatform.NewModelClient(ctx, opts...)
	})
}

// VertexEndpoints returns a Vertex AI endpoint client bound to a region.
func (c *ClientSet) VertexEndpoints(ctx context.Context, region string) (*aiplatform.EndpointClient, error) {
	return cachedClient(CacheKey("client", "aiplatform-endpoints", region), func() (*aiplatform.EndpointClient, error) {
		opts := append(c.options(), option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)))
		return aiplatform.NewEndpointClient(ctx, opts...)
	})
}
