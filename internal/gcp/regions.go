package gcpinternal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charles-forsyth/skywalker/globals"
)

// GCPCloudIPRangesURL is the public Google endpoint that lists all GCP
// regions. Requires no authentication; used only for --regions all.
const GCPCloudIPRangesURL = "https://www.gstatic.com/ipranges/cloud.json"

type cloudIPRangesResponse struct {
	SyncToken    string        `json:"syncToken"`
	CreationTime string        `json:"creationTime"`
	Prefixes     []cloudPrefix `json:"prefixes"`
}

type cloudPrefix struct {
	IPv4Prefix string `json:"ipv4Prefix,omitempty"`
	IPv6Prefix string `json:"ipv6Prefix,omitempty"`
	Service    string `json:"service"`
	Scope      string `json:"scope"`
}

var (
	cachedRegions     []string
	regionsCacheTime  time.Time
	regionsCacheMutex sync.RWMutex
	regionsCacheTTL   = 24 * time.Hour
)

// ZonesForRegion returns the probed zones for a region, in suffix order.
// Zones that do not exist in a given region surface as NotFound during the
// scan and are skipped there.
func ZonesForRegion(region string) []string {
	zones := make([]string, len(globals.ZoneSuffixes))
	for i, suffix := range globals.ZoneSuffixes {
		zones[i] = region + "-" + suffix
	}
	return zones
}

// ExpandZones expands a region list into the full zone list, preserving
// region order. The expansion is pure: same input, same output, no API
// calls.
func ExpandZones(regions []string) []string {
	zones := make([]string, 0, len(regions)*len(globals.ZoneSuffixes))
	for _, region := range regions {
		zones = append(zones, ZonesForRegion(region)...)
	}
	return zones
}

// ZonalScopes builds one Scope per (project, zone) cell for a single project.
func ZonalScopes(projectID string, regions []string) []Scope {
	zones := ExpandZones(regions)
	scopes := make([]Scope, len(zones))
	for i, zone := range zones {
		scopes[i] = Scope{ProjectID: projectID, Location: zone}
	}
	return scopes
}

// RegionalScopes builds one Scope per (project, region) cell.
func RegionalScopes(projectID string, regions []string) []Scope {
	scopes := make([]Scope, len(regions))
	for i, region := range regions {
		scopes[i] = Scope{ProjectID: projectID, Location: region}
	}
	return scopes
}

// SortScopes orders scopes by (project, location) for stable display.
func SortScopes(scopes []Scope) {
	sort.SliceStable(scopes, func(i, j int) bool {
		if scopes[i].ProjectID != scopes[j].ProjectID {
			return scopes[i].ProjectID < scopes[j].ProjectID
		}
		return scopes[i].Location < scopes[j].Location
	})
}

// RegionFromZone strips the zone suffix: "us-central1-a" -> "us-central1".
func RegionFromZone(zone string) string {
	idx := strings.LastIndex(zone, "-")
	if idx <= 0 {
		return zone
	}
	return zone[:idx]
}

// GetGCPRegions returns all GCP regions from the public cloud.json endpoint.
// Results are cached for 24 hours.
func GetGCPRegions() ([]string, error) {
	regionsCacheMutex.RLock()
	if len(cachedRegions) > 0 && time.Since(regionsCacheTime) < regionsCacheTTL {
		regions := make([]string, len(cachedRegions))
		copy(regions, cachedRegions)
		regionsCacheMutex.RUnlock()
		return regions, nil
	}
	regionsCacheMutex.RUnlock()

	regions, err := fetchGCPRegionsFromPublicEndpoint()
	if err != nil {
		return nil, err
	}

	regionsCacheMutex.Lock()
	cachedRegions = regions
	regionsCacheTime = time.Now()
	regionsCacheMutex.Unlock()

	return regions, nil
}

func fetchGCPRegionsFromPublicEndpoint() ([]string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(GCPCloudIPRangesURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch GCP regions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch GCP regions: HTTP %d", resp.StatusCode)
	}

	var data cloudIPRangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse GCP regions response: %w", err)
	}

	regionSet := make(map[string]bool)
	for _, prefix := range data.Prefixes {
		scope := prefix.Scope
		if scope == "" || scope == "global" {
			continue
		}
		if strings.Contains(scope, "-") && containsDigit(scope) {
			regionSet[scope] = true
		}
	}

	regions := make([]string, 0, len(regionSet))
	for region := range regionSet {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	return regions, nil
}

func containsDigit(s string) bool {
	for _, c := range s {
		if c >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

// ResolveRegions turns the --regions flag value into the region list for a
// scan. Empty means the standard footprint; "all" means every region GCP
// publishes, falling back to the standard list if discovery fails.
func ResolveRegions(flagValue string) []string {
	if flagValue == "" {
		return globals.StandardRegions
	}
	if flagValue == "all" {
		regions, err := GetGCPRegions()
		if err != nil || len(regions) == 0 {
			return globals.StandardRegions
		}
		return regions
	}
	return ParseMultiValueFlag(flagValue)
}
