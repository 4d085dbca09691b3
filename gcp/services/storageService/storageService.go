package storageservice

import (
	"context"
	"fmt"
	"time"

	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"google.golang.org/api/iterator"
)

// StorageService walks Cloud Storage bucket inventory.
type StorageService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *StorageService {
	return &StorageService{clients: clients, useCache: useCache}
}

// BucketInfo is one bucket with audit-relevant metadata. SizeBytes comes
// from a monitoring gauge, not the listing, and is zero when unknown.
type BucketInfo struct {
	Name                     string    `json:"name"`
	Location                 string    `json:"location"`
	StorageClass             string    `json:"storage_class"`
	CreationTimestamp        time.Time `json:"creation_timestamp"`
	PublicAccessPrevention   string    `json:"public_access_prevention"`
	VersioningEnabled        bool      `json:"versioning_enabled"`
	UniformBucketLevelAccess bool      `json:"uniform_bucket_level_access"`
	SizeBytes                int64     `json:"size_bytes,omitempty"`
}

// ListBuckets lists all buckets in a project.
func (s *StorageService) ListBuckets(ctx context.Context, projectID string) ([]BucketInfo, error) {
	cacheKey := gcpinternal.CacheKeyFor("storage.ListBuckets", projectID)
	if s.useCache {
		var cached []BucketInfo
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	client, err := s.clients.Storage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "storage", func(ctx context.Context) ([]BucketInfo, error) {
		results := []BucketInfo{}
		it := client.Buckets(ctx, projectID)
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}

			pap := attrs.PublicAccessPrevention.String()
			if pap == "" {
				pap = "unspecified"
			}

			results = append(results, BucketInfo{
				Name:                     attrs.Name,
				Location:                 attrs.Location,
				StorageClass:             attrs.StorageClass,
				CreationTimestamp:        attrs.Created,
				PublicAccessPrevention:   pap,
				VersioningEnabled:        attrs.VersioningEnabled,
				UniformBucketLevelAccess: attrs.UniformBucketLevelAccess.Enabled,
			})
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
