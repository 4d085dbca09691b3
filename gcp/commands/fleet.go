package commands

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/charles-forsyth/skywalker/gcp/reports"
	assetservice "github.com/charles-forsyth/skywalker/gcp/services/assetService"
	monitoringservice "github.com/charles-forsyth/skywalker/gcp/services/monitoringService"
	"github.com/charles-forsyth/skywalker/globals"
	"github.com/charles-forsyth/skywalker/internal"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var GCPFleetCommand = &cobra.Command{
	Use:     globals.GCP_FLEET_MODULE_NAME,
	Aliases: []string{"monitor", "top"},
	Short:   "Monitor live fleet utilization across all monitored projects",
	Long: `Monitor live fleet utilization across all monitored projects.

Reads the last ten minutes of CPU, memory, and GPU series from the
scoping project's metrics scope, resolves instance names through Cloud
Asset Inventory, and ranks instances by CPU. Instances without the Ops
Agent show memory as N/A.`,
	Run: runGCPFleetCommand,
}

// ------------------------------
// Module Struct
// ------------------------------
type FleetModule struct {
	gcpinternal.BaseGCPModule

	ScopingProject string
	OrgID          string

	FleetMetrics func(ctx context.Context, scopingProjectID string) ([]monitoringservice.FleetSample, []monitoringservice.MetricError)
	SearchAssets func(ctx context.Context, scope string) (map[string]assetservice.InstanceIdentity, error)

	CSVPath  string
	HTMLPath string
}

// ------------------------------
// Command Entry Point
// ------------------------------
func runGCPFleetCommand(cmd *cobra.Command, args []string) {
	// Fleet mode does not need a resolved project list; it scopes by the
	// metrics scoping project. Read flags directly.
	logger := internal.NewLogger()
	ctx := cmd.Context()

	session, err := gcpinternal.NewSafeSession(ctx)
	if err != nil {
		logger.FatalM(fmt.Sprintf("Failed to initialize credentials: %v", err), globals.GCP_FLEET_MODULE_NAME)
	}
	clients := sdk.NewClientSet(session)

	rootFlags := cmd.Root().PersistentFlags()
	scopingProject, _ := rootFlags.GetString("scoping-project")
	orgID, _ := rootFlags.GetString("org-id")
	jsonOutput, _ := rootFlags.GetBool("json")
	wrap, _ := rootFlags.GetBool("wrap")
	rowLimit, _ := rootFlags.GetInt("limit")
	noCache, _ := rootFlags.GetBool("no-cache")
	csvPath, _ := rootFlags.GetString("csv")
	htmlPath, _ := rootFlags.GetString("html")

	monitoringSvc := monitoringservice.New(clients)
	assetSvc := assetservice.New(clients, !noCache)

	module := &FleetModule{
		BaseGCPModule: gcpinternal.BaseGCPModule{
			JSONOutput: jsonOutput,
			WrapTable:  wrap,
			RowLimit:   rowLimit,
			NoCache:    noCache,
		},
		ScopingProject: scopingProject,
		OrgID:          orgID,
		FleetMetrics:   monitoringSvc.FetchFleetMetrics,
		SearchAssets:   assetSvc.SearchAllInstances,
		CSVPath:        csvPath,
		HTMLPath:       htmlPath,
	}

	module.Execute(ctx, logger)
}

// ------------------------------
// Module Execution
// ------------------------------
func (m *FleetModule) Execute(ctx context.Context, logger internal.Logger) {
	scoping := m.ScopingProject
	if scoping == "" {
		scoping = globals.DefaultScopingProject
	}
	logger.InfoM(fmt.Sprintf("Entering fleet performance mode via scope: %s", scoping), globals.GCP_FLEET_MODULE_NAME)

	samples, metricErrs := m.FleetMetrics(ctx, scoping)
	for _, me := range metricErrs {
		logger.WarnM(fmt.Sprintf("Metric %s unavailable: %v", me.Metric, me.Err), globals.GCP_FLEET_MODULE_NAME)
	}
	if len(samples) == 0 {
		logger.WarnM("No metrics found in scope", globals.GCP_FLEET_MODULE_NAME)
		return
	}

	assets := resolveFleetAssets(ctx, logger, globals.GCP_FLEET_MODULE_NAME, samples, m.OrgID, m.SearchAssets)
	EnrichSamples(samples, assets)

	SortSamplesByCPU(samples)

	m.writeOutput(logger, samples, scoping)
}

// resolveFleetAssets builds the instance ID index. An org-wide search is
// one API call; when it fails (or no org is given) every project seen in
// the metrics is searched individually with bounded fan-out.
func resolveFleetAssets(
	ctx context.Context,
	logger internal.Logger,
	moduleName string,
	samples []monitoringservice.FleetSample,
	orgID string,
	search func(ctx context.Context, scope string) (map[string]assetservice.InstanceIdentity, error),
) map[string]assetservice.InstanceIdentity {
	projects := map[string]bool{}
	for _, sample := range samples {
		if sample.ProjectID != "" {
			projects[sample.ProjectID] = true
		}
	}
	logger.InfoM(fmt.Sprintf("Fetching inventory for %d active project(s)", len(projects)), moduleName)

	if orgID != "" {
		assets, err := search(ctx, "organizations/"+orgID)
		if err == nil && len(assets) > 0 {
			return assets
		}
		logger.WarnM("Org-level asset search failed, falling back to project iteration", moduleName)
	}

	assets := map[string]assetservice.InstanceIdentity{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, globals.AssetSearchWorkers)

	for projectID := range projects {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(projectID string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			// Individual project failures only lose that project's names.
			projectAssets, err := search(ctx, "projects/"+projectID)
			if err != nil {
				return
			}
			mu.Lock()
			for id, identity := range projectAssets {
				assets[id] = identity
			}
			mu.Unlock()
		}(projectID)
	}
	wg.Wait()
	return assets
}

// EnrichSamples fills instance names and machine types from the asset
// index. Instances the index does not know stay "unknown"; that marker
// drives downstream filtering.
func EnrichSamples(samples []monitoringservice.FleetSample, assets map[string]assetservice.InstanceIdentity) {
	for i := range samples {
		if identity, ok := assets[samples[i].InstanceID]; ok {
			samples[i].Name = identity.Name
			samples[i].MachineType = identity.MachineType
		} else {
			samples[i].Name = "unknown"
			samples[i].MachineType = "unknown"
		}
	}
}

// SortSamplesByCPU orders samples by CPU descending with nil CPU last.
// The sort is stable so equal values keep their merge order.
func SortSamplesByCPU(samples []monitoringservice.FleetSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		a, b := samples[i].CPUPercent, samples[j].CPUPercent
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})
}

// ------------------------------
// Output Generation
// ------------------------------
func (m *FleetModule) writeOutput(logger internal.Logger, samples []monitoringservice.FleetSample, scoping string) {
	if m.JSONOutput {
		if err := internal.PrintJSON(samples); err != nil {
			logger.ErrorM(fmt.Sprintf("Error writing JSON output: %v", err), globals.GCP_FLEET_MODULE_NAME)
		}
	} else {
		tableClient := internal.TableClient{Wrap: m.WrapTable, RowLimit: m.RowLimit}
		tableClient.PrintTablesToScreen([]internal.TableFile{fleetTable(samples)})
		fmt.Printf("\nTotal instances monitored: %d\n", len(samples))
	}

	if m.CSVPath != "" {
		if err := internal.WriteCSVFile(m.CSVPath, fleetTable(samples)); err != nil {
			logger.ErrorM(fmt.Sprintf("Error writing CSV: %v", err), globals.GCP_FLEET_MODULE_NAME)
		} else {
			logger.SuccessM(fmt.Sprintf("Data saved to %s", m.CSVPath), globals.GCP_FLEET_MODULE_NAME)
		}
	}

	if m.HTMLPath != "" {
		html, err := reports.RenderFleetHTML(samples, scoping)
		if err != nil {
			logger.ErrorM(fmt.Sprintf("Error rendering report: %v", err), globals.GCP_FLEET_MODULE_NAME)
			return
		}
		if err := reports.WriteHTMLFile(m.HTMLPath, html); err != nil {
			logger.ErrorM(fmt.Sprintf("Error writing HTML report: %v", err), globals.GCP_FLEET_MODULE_NAME)
		} else {
			logger.SuccessM(fmt.Sprintf("Report saved to %s", m.HTMLPath), globals.GCP_FLEET_MODULE_NAME)
		}
	}
}

func fleetTable(samples []monitoringservice.FleetSample) internal.TableFile {
	var body [][]string
	for _, sample := range samples {
		body = append(body, []string{
			sample.ProjectID,
			sample.Name,
			sample.MachineType,
			sample.Zone,
			formatCPU(sample.CPUPercent),
			formatPct(sample.MemoryPercent),
			formatGPU(sample.GPUUtilization),
			formatPct(sample.GPUMemoryUtilization),
		})
	}
	return internal.TableFile{
		Name:   globals.GCP_FLEET_MODULE_NAME,
		Header: []string{"Project", "Name", "Type", "Zone", "CPU %", "Mem %", "GPU %", "GPU Mem %"},
		Body:   body,
	}
}

func formatPct(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func formatCPU(v *float64) string {
	if v == nil {
		return "N/A"
	}
	if *v > 90 {
		return color.New(color.FgRed).Sprintf("%.1f%%", *v)
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func formatGPU(v *float64) string {
	if v == nil {
		return "-"
	}
	if *v > 0 {
		return color.New(color.FgMagenta).Sprintf("%.1f%%", *v)
	}
	return fmt.Sprintf("%.1f%%", *v)
}
