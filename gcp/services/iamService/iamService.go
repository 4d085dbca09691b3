package iamservice

import (
	"context"
	"fmt"

	"github.com/charles-forsyth/skywalker/gcp/shared"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	cloudresourcemanager "google.golang.org/api/cloudresourcemanager/v1"
	iam "google.golang.org/api/iam/v1"
)

// IAMService walks service accounts, their user-managed keys, and the
// project-level IAM policy.
type IAMService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *IAMService {
	return &IAMService{clients: clients, useCache: useCache}
}

// KeyInfo is one user-managed service account key.
type KeyInfo struct {
	Name        string `json:"name"`
	KeyType     string `json:"key_type"`
	ValidAfter  string `json:"valid_after"`
	ValidBefore string `json:"valid_before"`
}

// ServiceAccountInfo is one service account with its user-managed keys.
type ServiceAccountInfo struct {
	Email       string    `json:"email"`
	UniqueID    string    `json:"unique_id"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	Disabled    bool      `json:"disabled"`
	Keys        []KeyInfo `json:"keys,omitempty"`
}

// PolicyBindingInfo is one role binding from the project IAM policy.
// MemberNames carries resolved display names aligned with Members; an
// unknown member keeps an empty string in its slot.
type PolicyBindingInfo struct {
	Role        string   `json:"role"`
	Members     []string `json:"members"`
	MemberNames []string `json:"member_names,omitempty"`
}

// IAMReport bundles both halves of the project's IAM surface. Either half
// may be empty when its API call failed; the halves fail independently.
type IAMReport struct {
	ServiceAccounts []ServiceAccountInfo `json:"service_accounts"`
	PolicyBindings  []PolicyBindingInfo  `json:"policy_bindings"`
}

// GetIAMReport fetches service account inventory and project policy
// bindings. A failure in one half degrades to an empty list for that half
// and an error for the caller to log; the other half still populates.
func (s *IAMService) GetIAMReport(ctx context.Context, projectID string) (IAMReport, error) {
	cacheKey := gcpinternal.CacheKeyFor("iam.GetIAMReport", projectID)
	if s.useCache {
		var cached IAMReport
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	report := IAMReport{
		ServiceAccounts: []ServiceAccountInfo{},
		PolicyBindings:  []PolicyBindingInfo{},
	}

	var firstErr error

	accounts, err := s.listServiceAccounts(ctx, projectID)
	if err != nil {
		firstErr = fmt.Errorf("service accounts: %w", err)
	} else {
		report.ServiceAccounts = accounts
	}

	bindings, err := s.getPolicyBindings(ctx, projectID)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("project policy: %w", err)
		}
	} else {
		report.PolicyBindings = bindings
	}

	if s.useCache && firstErr == nil {
		gcpinternal.WriteCache(cacheKey, report)
	}
	return report, firstErr
}

func (s *IAMService) listServiceAccounts(ctx context.Context, projectID string) ([]ServiceAccountInfo, error) {
	svc, err := s.clients.IAM(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get iam client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "iam", func(ctx context.Context) ([]ServiceAccountInfo, error) {
		results := []ServiceAccountInfo{}
		name := "projects/" + projectID
		err := svc.Projects.ServiceAccounts.List(name).Context(ctx).Pages(ctx, func(page *iam.ListServiceAccountsResponse) error {
			for _, sa := range page.Accounts {
				info := ServiceAccountInfo{
					Email:       sa.Email,
					UniqueID:    sa.UniqueId,
					DisplayName: sa.DisplayName,
					Description: sa.Description,
					Disabled:    sa.Disabled,
				}
				// Key listing is per account and may be individually
				// denied; a miss only loses the key column.
				info.Keys = s.listUserManagedKeys(ctx, svc, projectID, sa.Email)
				results = append(results, info)
			}
			return nil
		})
		return results, err
	})
}

func (s *IAMService) listUserManagedKeys(ctx context.Context, svc *iam.Service, projectID, email string) []KeyInfo {
	name := fmt.Sprintf("projects/%s/serviceAccounts/%s", projectID, email)
	resp, err := svc.Projects.ServiceAccounts.Keys.List(name).KeyTypes("USER_MANAGED").Context(ctx).Do()
	if err != nil {
		return nil
	}

	var keys []KeyInfo
	for _, k := range resp.Keys {
		keys = append(keys, KeyInfo{
			Name:        shared.ExtractResourceName(k.Name),
			KeyType:     k.KeyType,
			ValidAfter:  k.ValidAfterTime,
			ValidBefore: k.ValidBeforeTime,
		})
	}
	return keys
}

func (s *IAMService) getPolicyBindings(ctx context.Context, projectID string) ([]PolicyBindingInfo, error) {
	svc, err := s.clients.CloudResourceManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get cloudresourcemanager client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "cloudresourcemanager", func(ctx context.Context) ([]PolicyBindingInfo, error) {
		policy, err := svc.Projects.GetIamPolicy(projectID, &cloudresourcemanager.GetIamPolicyRequest{}).Context(ctx).Do()
		if err != nil {
			return nil, err
		}

		results := []PolicyBindingInfo{}
		for _, binding := range policy.Bindings {
			results = append(results, PolicyBindingInfo{
				Role:    binding.Role,
				Members: binding.Members,
			})
		}
		return results, nil
	})
}
