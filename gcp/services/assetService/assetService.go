package assetservice

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	assetpb "cloud.google.com/go/asset/apiv1/assetpb"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/fieldmaskpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// AssetService resolves instance identity via Cloud Asset Inventory.
// Monitoring series only carry numeric instance IDs; asset search is
// the bridge back to names and machine types.
type AssetService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *AssetService {
	return &AssetService{clients: clients, useCache: useCache}
}

// InstanceIdentity is what asset search knows about one instance.
type InstanceIdentity struct {
	Name        string `json:"name"`
	MachineType string `json:"machine_type"`
	Zone        string `json:"zone"`
	Project     string `json:"project"`
}

// SearchAllInstances searches for compute instances in the given scope
// and returns a map keyed by numeric instance ID. A bare scope string is
// treated as a project ID; folders/ and organizations/ prefixes pass
// through.
func (s *AssetService) SearchAllInstances(ctx context.Context, scope string) (map[string]InstanceIdentity, error) {
	if !strings.HasPrefix(scope, "projects/") &&
		!strings.HasPrefix(scope, "folders/") &&
		!strings.HasPrefix(scope, "organizations/") {
		scope = "projects/" + scope
	}

	cacheKey := gcpinternal.CacheKeyFor("asset.SearchAllInstances", scope)
	if s.useCache {
		var cached map[string]InstanceIdentity
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	client, err := s.clients.Asset(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset client: %w", err)
	}

	results, err := gcpinternal.RetryValue(ctx, "cloudasset", func(ctx context.Context) (map[string]InstanceIdentity, error) {
		req := &assetpb.SearchAllResourcesRequest{
			Scope:      scope,
			AssetTypes: []string{"compute.googleapis.com/Instance"},
			ReadMask:   readMask("name", "displayName", "additionalAttributes", "location", "project"),
		}
		out := map[string]InstanceIdentity{}
		it := client.SearchAllResources(ctx, req)
		for {
			resource, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, err
			}
			attrs := resource.GetAdditionalAttributes()
			id := attributeString(attrs, "id")
			if id == "" {
				continue
			}
			machineType := attributeString(attrs, "machineType")
			if machineType == "" {
				machineType = "unknown"
			}
			out[id] = InstanceIdentity{
				Name:        resource.GetDisplayName(),
				MachineType: machineType,
				Zone:        resource.GetLocation(),
				Project:     resource.GetProject(),
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	if s.useCache {
		gcpinternal.WriteCache(cacheKey, results)
	}
	return results, nil
}

func readMask(paths ...string) *fieldmaskpb.FieldMask {
	return &fieldmaskpb.FieldMask{Paths: paths}
}

// attributeString reads a struct attribute that the API emits sometimes
// as a string and sometimes as a number.
func attributeString(attrs *structpb.Struct, key string) string {
	if attrs == nil {
		return ""
	}
	field, ok := attrs.GetFields()[key]
	if !ok {
		return ""
	}
	switch v := field.GetKind().(type) {
	case *structpb.Value_StringValue:
		return v.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatInt(int64(v.NumberValue), 10)
	}
	return ""
}
