package networkservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/charles-forsyth/skywalker/gcp/shared"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	compute "google.golang.org/api/compute/v1"
)

// NetworkService walks the project-global networking surface: firewall
// rules, VPC networks with their subnets, and reserved addresses.
type NetworkService struct {
	clients  *sdk.ClientSet
	useCache bool
}

func New(clients *sdk.ClientSet, useCache bool) *NetworkService {
	return &NetworkService{clients: clients, useCache: useCache}
}

// FirewallRuleInfo is one firewall rule flattened to display form. Ports
// are rendered per protocol as "proto:p1,p2" (bare "proto" when the rule
// matches all ports for that protocol). Exposed is set for enabled
// ingress allow rules with a public source range.
type FirewallRuleInfo struct {
	Name         string   `json:"name"`
	Network      string   `json:"network"`
	Direction    string   `json:"direction"`
	Action       string   `json:"action"`
	Ports        []string `json:"ports"`
	SourceRanges []string `json:"source_ranges,omitempty"`
	TargetTags   []string `json:"target_tags,omitempty"`
	Disabled     bool     `json:"disabled"`
	Exposed      bool     `json:"exposed"`
}

// SubnetInfo is one subnetwork attached to its parent VPC.
type SubnetInfo struct {
	Name      string `json:"name"`
	Region    string `json:"region"`
	IPRange   string `json:"ip_range"`
	Purpose   string `json:"purpose,omitempty"`
	PrivateGA bool   `json:"private_google_access"`
}

// VPCInfo is one VPC network with the subnets that reference it.
type VPCInfo struct {
	Name                  string       `json:"name"`
	AutoCreateSubnetworks bool         `json:"auto_create_subnetworks"`
	RoutingMode           string       `json:"routing_mode,omitempty"`
	Subnets               []SubnetInfo `json:"subnets"`
}

// AddressInfo is one reserved address. User is the short name of the
// first attached resource, empty when the address is unattached.
type AddressInfo struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	AddressType string `json:"address_type"`
	Region      string `json:"region"`
	Status      string `json:"status"`
	User        string `json:"user,omitempty"`
}

// NetworkReport bundles the three global network listings. Each listing
// fails independently; a failed listing stays empty.
type NetworkReport struct {
	Firewalls []FirewallRuleInfo `json:"firewalls"`
	VPCs      []VPCInfo          `json:"vpcs"`
	Addresses []AddressInfo      `json:"addresses"`
}

// GetNetworkReport fetches firewalls, VPCs with subnets, and addresses
// for the project. The first failure is returned but the other listings
// still populate.
func (s *NetworkService) GetNetworkReport(ctx context.Context, projectID string) (NetworkReport, error) {
	cacheKey := gcpinternal.CacheKeyFor("network.GetNetworkReport", projectID)
	if s.useCache {
		var cached NetworkReport
		if gcpinternal.ReadCache(cacheKey, gcpinternal.DefaultCacheExpiration, &cached) {
			return cached, nil
		}
	}

	report := NetworkReport{
		Firewalls: []FirewallRuleInfo{},
		VPCs:      []VPCInfo{},
		Addresses: []AddressInfo{},
	}

	var firstErr error

	firewalls, err := s.listFirewalls(ctx, projectID)
	if err != nil {
		firstErr = fmt.Errorf("firewalls: %w", err)
	} else {
		report.Firewalls = firewalls
	}

	vpcs, err := s.listVPCs(ctx, projectID)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("networks: %w", err)
		}
	} else {
		report.VPCs = vpcs
	}

	addresses, err := s.ListAddresses(ctx, projectID)
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("addresses: %w", err)
		}
	} else {
		report.Addresses = addresses
	}

	if s.useCache && firstErr == nil {
		gcpinternal.WriteCache(cacheKey, report)
	}
	return report, firstErr
}

func (s *NetworkService) listFirewalls(ctx context.Context, projectID string) ([]FirewallRuleInfo, error) {
	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]FirewallRuleInfo, error) {
		results := []FirewallRuleInfo{}
		err := svc.Firewalls.List(projectID).Context(ctx).Pages(ctx, func(page *compute.FirewallList) error {
			for _, fw := range page.Items {
				results = append(results, buildFirewallInfo(fw))
			}
			return nil
		})
		return results, err
	})
}

func buildFirewallInfo(fw *compute.Firewall) FirewallRuleInfo {
	info := FirewallRuleInfo{
		Name:         fw.Name,
		Network:      shared.ExtractResourceName(fw.Network),
		Direction:    fw.Direction,
		SourceRanges: fw.SourceRanges,
		TargetTags:   fw.TargetTags,
		Disabled:     fw.Disabled,
		Ports:        []string{},
	}
	if len(fw.Allowed) > 0 {
		info.Action = "ALLOW"
		for _, rule := range fw.Allowed {
			info.Ports = append(info.Ports, formatPortRule(rule.IPProtocol, rule.Ports))
		}
	} else {
		info.Action = "DENY"
		for _, rule := range fw.Denied {
			info.Ports = append(info.Ports, formatPortRule(rule.IPProtocol, rule.Ports))
		}
	}
	info.Exposed = info.Action == "ALLOW" && info.Direction == "INGRESS" &&
		!info.Disabled && shared.HasPublicCIDR(info.SourceRanges)
	return info
}

func formatPortRule(protocol string, ports []string) string {
	if len(ports) == 0 {
		return protocol
	}
	return protocol + ":" + strings.Join(ports, ",")
}

func (s *NetworkService) listVPCs(ctx context.Context, projectID string) ([]VPCInfo, error) {
	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	vpcs, err := gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]VPCInfo, error) {
		results := []VPCInfo{}
		err := svc.Networks.List(projectID).Context(ctx).Pages(ctx, func(page *compute.NetworkList) error {
			for _, net := range page.Items {
				results = append(results, VPCInfo{
					Name:                  net.Name,
					AutoCreateSubnetworks: net.AutoCreateSubnetworks,
					RoutingMode:           routingMode(net),
					Subnets:               []SubnetInfo{},
				})
			}
			return nil
		})
		return results, err
	})
	if err != nil {
		return nil, err
	}

	// Subnets come from a single aggregated list and attach to their
	// parent VPC by network name. A subnet failure loses only the
	// subnet column.
	subnetsByNetwork, err := s.listSubnetsByNetwork(ctx, svc, projectID)
	if err == nil {
		for i := range vpcs {
			if subnets, ok := subnetsByNetwork[vpcs[i].Name]; ok {
				vpcs[i].Subnets = subnets
			}
		}
	}
	return vpcs, nil
}

func routingMode(net *compute.Network) string {
	if net.RoutingConfig == nil {
		return ""
	}
	return net.RoutingConfig.RoutingMode
}

func (s *NetworkService) listSubnetsByNetwork(ctx context.Context, svc *compute.Service, projectID string) (map[string][]SubnetInfo, error) {
	return gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) (map[string][]SubnetInfo, error) {
		results := map[string][]SubnetInfo{}
		err := svc.Subnetworks.AggregatedList(projectID).Context(ctx).Pages(ctx, func(page *compute.SubnetworkAggregatedList) error {
			for _, scoped := range page.Items {
				for _, subnet := range scoped.Subnetworks {
					network := shared.ExtractResourceName(subnet.Network)
					results[network] = append(results[network], SubnetInfo{
						Name:      subnet.Name,
						Region:    shared.ExtractResourceName(subnet.Region),
						IPRange:   subnet.IpCidrRange,
						Purpose:   subnet.Purpose,
						PrivateGA: subnet.PrivateIpGoogleAccess,
					})
				}
			}
			return nil
		})
		return results, err
	})
}

// ListAddresses fetches every reserved address across all regions via
// the aggregated list.
func (s *NetworkService) ListAddresses(ctx context.Context, projectID string) ([]AddressInfo, error) {
	svc, err := s.clients.Compute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	return gcpinternal.RetryValue(ctx, "compute", func(ctx context.Context) ([]AddressInfo, error) {
		results := []AddressInfo{}
		err := svc.Addresses.AggregatedList(projectID).Context(ctx).Pages(ctx, func(page *compute.AddressAggregatedList) error {
			for _, scoped := range page.Items {
				for _, addr := range scoped.Addresses {
					info := AddressInfo{
						Name:        addr.Name,
						Address:     addr.Address,
						AddressType: addr.AddressType,
						Region:      shared.ExtractResourceName(addr.Region),
						Status:      addr.Status,
					}
					if len(addr.Users) > 0 {
						info.User = shared.ExtractResourceName(addr.Users[0])
					}
					results = append(results, info)
				}
			}
			return nil
		})
		return results, err
	})
}
