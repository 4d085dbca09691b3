package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	computeservice "github.com/charles-forsyth/skywalker/gcp/services/computeService"
	monitoringservice "github.com/charles-forsyth/skywalker/gcp/services/monitoringService"
	networkservice "github.com/charles-forsyth/skywalker/gcp/services/networkService"
	storageservice "github.com/charles-forsyth/skywalker/gcp/services/storageService"
	"github.com/charles-forsyth/skywalker/globals"
	"github.com/charles-forsyth/skywalker/internal"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"github.com/spf13/cobra"
)

var GCPZombiesCommand = &cobra.Command{
	Use:     globals.GCP_ZOMBIES_MODULE_NAME,
	Aliases: []string{"waste", "orphans"},
	Short:   "Hunt orphaned and idle resources that still cost money",
	Long: `Hunt orphaned and idle resources that still cost money.

Three hunters run per project: unattached persistent disks, reserved
external IPs with no user, and buckets larger than a gigabyte with
essentially zero egress over thirty days. Each finding carries a rough
monthly cost estimate and the list is sorted by cost.`,
	Run: runGCPZombiesCommand,
}

// Rough monthly cost constants, USD.
const (
	diskCostStandardPerGB = 0.04
	diskCostSSDPerGB      = 0.17
	diskCostBalancedPerGB = 0.10
	staticIPCostMonthly   = 7.30
	bucketCostPerGB       = 0.02
)

// A bucket with fewer sent bytes than this over thirty days counts as
// inactive.
const bucketIdleEgressBytes = 1_000_000

// ZombieResource is one finding with its cost estimate.
type ZombieResource struct {
	ResourceType   string  `json:"resource_type"`
	ProjectID      string  `json:"project_id"`
	Name           string  `json:"name"`
	Details        string  `json:"details"`
	MonthlyCostEst float64 `json:"monthly_cost_est"`
	Reason         string  `json:"reason"`
}

// ZombieHunters holds the lookups the hunt needs; tests swap in fakes.
type ZombieHunters struct {
	OrphanDisks    func(ctx context.Context, projectID string) ([]computeservice.OrphanDiskInfo, error)
	Addresses      func(ctx context.Context, projectID string) ([]networkservice.AddressInfo, error)
	Buckets        func(ctx context.Context, projectID string) ([]storageservice.BucketInfo, error)
	BucketSizes    func(ctx context.Context, projectID string) (map[string]int64, error)
	BucketActivity func(ctx context.Context, projectID string) (map[string]float64, error)
}

// ------------------------------
// Module Struct
// ------------------------------
type ZombiesModule struct {
	gcpinternal.BaseGCPModule

	Hunters ZombieHunters

	mu      sync.Mutex
	Zombies []ZombieResource
}

// ------------------------------
// Command Entry Point
// ------------------------------
func runGCPZombiesCommand(cmd *cobra.Command, args []string) {
	cmdCtx, err := gcpinternal.InitializeCommandContext(cmd, globals.GCP_ZOMBIES_MODULE_NAME)
	if err != nil {
		return // Error already logged
	}

	session, err := gcpinternal.NewSafeSession(cmdCtx.Ctx)
	if err != nil {
		cmdCtx.Logger.FatalM(fmt.Sprintf("Failed to initialize credentials: %v", err), globals.GCP_ZOMBIES_MODULE_NAME)
	}
	clients := sdk.NewClientSet(session)

	computeSvc := computeservice.New(clients, false)
	networkSvc := networkservice.New(clients, false)
	storageSvc := storageservice.New(clients, false)
	monitoringSvc := monitoringservice.New(clients)

	module := &ZombiesModule{
		BaseGCPModule: gcpinternal.NewBaseGCPModule(cmdCtx),
		Hunters: ZombieHunters{
			OrphanDisks: computeSvc.ListOrphanDisks,
			Addresses:   networkSvc.ListAddresses,
			Buckets:     storageSvc.ListBuckets,
			BucketSizes: monitoringSvc.FetchBucketSizes,
			BucketActivity: func(ctx context.Context, projectID string) (map[string]float64, error) {
				return monitoringSvc.FetchInactiveResources(ctx, projectID,
					"storage.googleapis.com/network/sent_bytes_count", "gcs_bucket",
					30, []string{"resource.label.bucket_name"})
			},
		},
	}

	module.Execute(cmdCtx.Ctx, cmdCtx.Logger)
}

// ------------------------------
// Module Execution
// ------------------------------
func (m *ZombiesModule) Execute(ctx context.Context, logger internal.Logger) {
	logger.InfoM(fmt.Sprintf("Hunting zombies across %d project(s)", len(m.ProjectIDs)), globals.GCP_ZOMBIES_MODULE_NAME)

	hunts := []func(ctx context.Context, projectID string, logger internal.Logger){
		m.huntDisks, m.huntIPs, m.huntBuckets,
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, globals.DefaultScopeWorkers)
	for _, projectID := range m.ProjectIDs {
		for _, hunt := range hunts {
			if ctx.Err() != nil {
				break
			}
			wg.Add(1)
			go func(projectID string, hunt func(context.Context, string, internal.Logger)) {
				defer wg.Done()
				semaphore <- struct{}{}
				defer func() { <-semaphore }()
				if ctx.Err() != nil {
					return
				}
				hunt(ctx, projectID, logger)
			}(projectID, hunt)
		}
	}
	wg.Wait()

	SortZombiesByCost(m.Zombies)
	m.writeOutput(logger)
}

func (m *ZombiesModule) addZombie(z ZombieResource) {
	m.mu.Lock()
	m.Zombies = append(m.Zombies, z)
	m.mu.Unlock()
}

func (m *ZombiesModule) huntError(logger internal.Logger, what, projectID string, err error) {
	m.CommandCounter.AddError(1)
	gcpinternal.HandleGCPError(err, logger, globals.GCP_ZOMBIES_MODULE_NAME,
		fmt.Sprintf("Could not hunt %s in project %s", what, projectID))
}

// huntDisks finds persistent disks no instance is using.
func (m *ZombiesModule) huntDisks(ctx context.Context, projectID string, logger internal.Logger) {
	disks, err := m.Hunters.OrphanDisks(ctx, projectID)
	if err != nil {
		m.huntError(logger, "disks", projectID, err)
		return
	}
	for _, disk := range disks {
		m.addZombie(ZombieResource{
			ResourceType:   "Disk",
			ProjectID:      projectID,
			Name:           disk.Name,
			Details:        fmt.Sprintf("%dGB (%s)", disk.SizeGB, disk.Type),
			MonthlyCostEst: DiskMonthlyCost(disk.SizeGB, disk.Type),
			Reason:         "Orphaned (no VM attached)",
		})
	}
}

// huntIPs finds reserved external addresses with no user.
func (m *ZombiesModule) huntIPs(ctx context.Context, projectID string, logger internal.Logger) {
	addresses, err := m.Hunters.Addresses(ctx, projectID)
	if err != nil {
		m.huntError(logger, "addresses", projectID, err)
		return
	}
	for _, addr := range addresses {
		if addr.Status != "RESERVED" || addr.User != "" {
			continue
		}
		if addr.AddressType == "INTERNAL" {
			continue
		}
		m.addZombie(ZombieResource{
			ResourceType:   "Static IP",
			ProjectID:      projectID,
			Name:           addr.Name,
			Details:        addr.Address,
			MonthlyCostEst: staticIPCostMonthly,
			Reason:         "Reserved but not in use",
		})
	}
}

// huntBuckets finds buckets over a gigabyte with near-zero egress for
// thirty days.
func (m *ZombiesModule) huntBuckets(ctx context.Context, projectID string, logger internal.Logger) {
	buckets, err := m.Hunters.Buckets(ctx, projectID)
	if err != nil {
		m.huntError(logger, "buckets", projectID, err)
		return
	}
	if len(buckets) == 0 {
		return
	}

	activity, err := m.Hunters.BucketActivity(ctx, projectID)
	if err != nil {
		m.huntError(logger, "bucket activity", projectID, err)
		return
	}
	// A failed size lookup degrades to the sizes carried on the listing;
	// the idleness check still runs.
	sizes, err := m.Hunters.BucketSizes(ctx, projectID)
	if err != nil {
		m.huntError(logger, "bucket sizes", projectID, err)
		sizes = nil
	}

	for _, bucket := range buckets {
		size, ok := sizes[bucket.Name]
		if !ok {
			size = bucket.SizeBytes
		}
		if zombie, ok := BucketZombie(projectID, bucket.Name, size, activity[bucket.Name]); ok {
			m.addZombie(zombie)
		}
	}
}

// DiskMonthlyCost estimates a disk's monthly cost from its type.
func DiskMonthlyCost(sizeGB int64, diskType string) float64 {
	cost := float64(sizeGB) * diskCostStandardPerGB
	if strings.Contains(diskType, "ssd") {
		cost = float64(sizeGB) * diskCostSSDPerGB
	} else if strings.Contains(diskType, "balanced") {
		cost = float64(sizeGB) * diskCostBalancedPerGB
	}
	return cost
}

// BucketZombie classifies one bucket. Buckets under a gigabyte are
// ignored; they cost next to nothing either way.
func BucketZombie(projectID, name string, sizeBytes int64, sentBytes float64) (ZombieResource, bool) {
	if sentBytes >= bucketIdleEgressBytes {
		return ZombieResource{}, false
	}
	sizeGB := float64(sizeBytes) / (1 << 30)
	if sizeGB < 1 {
		return ZombieResource{}, false
	}
	return ZombieResource{
		ResourceType:   "Bucket",
		ProjectID:      projectID,
		Name:           name,
		Details:        fmt.Sprintf("Size: %d GB", int64(sizeGB)),
		MonthlyCostEst: sizeGB * bucketCostPerGB,
		Reason:         "Inactive (zero egress 30d)",
	}, true
}

// SortZombiesByCost orders findings by estimated cost descending. The
// sort is stable so equal-cost findings keep discovery order.
func SortZombiesByCost(zombies []ZombieResource) {
	sort.SliceStable(zombies, func(i, j int) bool {
		return zombies[i].MonthlyCostEst > zombies[j].MonthlyCostEst
	})
}

// ------------------------------
// Output Generation
// ------------------------------
func (m *ZombiesModule) writeOutput(logger internal.Logger) {
	if len(m.Zombies) == 0 {
		logger.SuccessM("No zombies found! Fleet is clean.", globals.GCP_ZOMBIES_MODULE_NAME)
		return
	}

	if m.JSONOutput {
		if err := internal.PrintJSON(m.Zombies); err != nil {
			logger.ErrorM(fmt.Sprintf("Error writing JSON output: %v", err), globals.GCP_ZOMBIES_MODULE_NAME)
		}
		return
	}

	totalWaste := 0.0
	var body [][]string
	for _, z := range m.Zombies {
		totalWaste += z.MonthlyCostEst
		body = append(body, []string{
			z.ResourceType, z.ProjectID, z.Name, z.Details,
			fmt.Sprintf("$%.2f", z.MonthlyCostEst), z.Reason,
		})
	}

	logger.InfoM(fmt.Sprintf("Found %d zombie(s), estimated waste $%.2f/mo", len(m.Zombies), totalWaste), globals.GCP_ZOMBIES_MODULE_NAME)

	tableClient := internal.TableClient{Wrap: m.WrapTable, RowLimit: m.RowLimit}
	tableClient.PrintTablesToScreen([]internal.TableFile{{
		Name:   globals.GCP_ZOMBIES_MODULE_NAME,
		Header: []string{"Type", "Project", "Name", "Details", "Est. Cost/Mo", "Reason"},
		Body:   body,
	}})
}
