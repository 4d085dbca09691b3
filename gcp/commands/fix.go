package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	assetservice "github.com/charles-forsyth/skywalker/gcp/services/assetService"
	monitoringservice "github.com/charles-forsyth/skywalker/gcp/services/monitoringService"
	"github.com/charles-forsyth/skywalker/globals"
	"github.com/charles-forsyth/skywalker/internal"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"github.com/spf13/cobra"
)

var GCPFixCommand = &cobra.Command{
	Use:       globals.GCP_FIX_MODULE_NAME + " [type]",
	Short:     "Apply a known remediation across the fleet",
	ValidArgs: []string{"ops-agent"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Long: `Apply a known remediation across the fleet.

Currently supports ops-agent: finds running instances whose CPU series
reports but whose memory series is absent (the signature of a missing
Ops Agent), lists them, and after confirmation installs the agent over
IAP-tunnelled SSH. GKE nodes are skipped.`,
	Run: runGCPFixCommand,
}

const opsAgentInstallScript = "curl -sSO https://dl.google.com/cloudagents/" +
	"add-google-cloud-ops-agent-repo.sh && " +
	"sudo bash add-google-cloud-ops-agent-repo.sh --also-install"

// installWorkers bounds parallel SSH sessions during the install step.
const installWorkers = 10

// ------------------------------
// Module Struct
// ------------------------------
type FixModule struct {
	gcpinternal.BaseGCPModule

	ScopingProject string
	OrgID          string

	FleetMetrics func(ctx context.Context, scopingProjectID string) ([]monitoringservice.FleetSample, []monitoringservice.MetricError)
	SearchAssets func(ctx context.Context, scope string) (map[string]assetservice.InstanceIdentity, error)
	Installer    func(ctx context.Context, sample monitoringservice.FleetSample) string
	Confirm      func(prompt string) bool
}

// ------------------------------
// Command Entry Point
// ------------------------------
func runGCPFixCommand(cmd *cobra.Command, args []string) {
	logger := internal.NewLogger()
	ctx := cmd.Context()

	if args[0] != "ops-agent" {
		logger.ErrorM(fmt.Sprintf("Unknown fix type: %s", args[0]), globals.GCP_FIX_MODULE_NAME)
		return
	}

	session, err := gcpinternal.NewSafeSession(ctx)
	if err != nil {
		logger.FatalM(fmt.Sprintf("Failed to initialize credentials: %v", err), globals.GCP_FIX_MODULE_NAME)
	}
	clients := sdk.NewClientSet(session)

	rootFlags := cmd.Root().PersistentFlags()
	scopingProject, _ := rootFlags.GetString("scoping-project")
	orgID, _ := rootFlags.GetString("org-id")
	noCache, _ := rootFlags.GetBool("no-cache")

	monitoringSvc := monitoringservice.New(clients)
	assetSvc := assetservice.New(clients, !noCache)

	module := &FixModule{
		ScopingProject: scopingProject,
		OrgID:          orgID,
		FleetMetrics:   monitoringSvc.FetchFleetMetrics,
		SearchAssets:   assetSvc.SearchAllInstances,
		Installer:      installOpsAgent,
		Confirm:        askForConfirmation,
	}

	module.Execute(ctx, logger)
}

// ------------------------------
// Module Execution
// ------------------------------
func (m *FixModule) Execute(ctx context.Context, logger internal.Logger) {
	scoping := m.ScopingProject
	if scoping == "" {
		scoping = globals.DefaultScopingProject
	}
	logger.InfoM("Scanning fleet for missing agents...", globals.GCP_FIX_MODULE_NAME)

	samples, metricErrs := m.FleetMetrics(ctx, scoping)
	for _, me := range metricErrs {
		logger.WarnM(fmt.Sprintf("Metric %s unavailable: %v", me.Metric, me.Err), globals.GCP_FIX_MODULE_NAME)
	}
	if len(samples) == 0 {
		logger.WarnM("No metrics found in scope", globals.GCP_FIX_MODULE_NAME)
		return
	}

	assets := resolveFleetAssets(ctx, logger, globals.GCP_FIX_MODULE_NAME, samples, m.OrgID, m.SearchAssets)
	EnrichSamples(samples, assets)

	candidates := OpsAgentCandidates(samples)
	if len(candidates) == 0 {
		logger.SuccessM("No candidates found! All eligible VMs have the Ops Agent.", globals.GCP_FIX_MODULE_NAME)
		return
	}

	var body [][]string
	for _, c := range candidates {
		body = append(body, []string{c.ProjectID, c.Name, c.Zone, formatPct(c.CPUPercent)})
	}
	tableClient := internal.TableClient{Wrap: m.WrapTable}
	tableClient.PrintTablesToScreen([]internal.TableFile{{
		Name:   "ops-agent-candidates",
		Header: []string{"Project", "Name", "Zone", "CPU %"},
		Body:   body,
	}})

	if !m.Confirm(fmt.Sprintf("Install Ops Agent on these %d instance(s)?", len(candidates))) {
		logger.WarnM("Aborted.", globals.GCP_FIX_MODULE_NAME)
		return
	}

	logger.InfoM("Launching installers (this may take a minute)...", globals.GCP_FIX_MODULE_NAME)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, installWorkers)
	outcomes := make(chan string, len(candidates))
	for _, candidate := range candidates {
		wg.Add(1)
		go func(candidate monitoringservice.FleetSample) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			outcomes <- m.Installer(ctx, candidate)
		}(candidate)
	}
	wg.Wait()
	close(outcomes)

	for outcome := range outcomes {
		logger.InfoM(outcome, globals.GCP_FIX_MODULE_NAME)
	}
}

// OpsAgentCandidates filters for instances that are running (CPU series
// active) but missing the memory series, which only the agent reports.
// Unresolved names and GKE nodes are excluded; GKE nodes run Container-
// Optimized OS where the install script does not apply.
func OpsAgentCandidates(samples []monitoringservice.FleetSample) []monitoringservice.FleetSample {
	var candidates []monitoringservice.FleetSample
	for _, sample := range samples {
		if sample.CPUPercent == nil || *sample.CPUPercent <= 0.1 {
			continue
		}
		if sample.MemoryPercent != nil {
			continue
		}
		if sample.Name == "" || sample.Name == "unknown" {
			continue
		}
		if strings.HasPrefix(sample.Name, "gke-") {
			continue
		}
		candidates = append(candidates, sample)
	}
	return candidates
}

// installOpsAgent shells out to gcloud so the install rides the caller's
// SSH and IAP configuration.
func installOpsAgent(ctx context.Context, sample monitoringservice.FleetSample) string {
	if sample.Name == "" || sample.Zone == "" || sample.ProjectID == "" {
		return fmt.Sprintf("SKIPPED: %s (missing details)", sample.Name)
	}

	cmd := exec.CommandContext(ctx, "gcloud", "compute", "ssh", sample.Name,
		"--zone", sample.Zone,
		"--project", sample.ProjectID,
		"--command", opsAgentInstallScript,
		"--quiet",
		"--tunnel-through-iap",
	)
	output, err := cmd.CombinedOutput()
	if err == nil {
		return fmt.Sprintf("SUCCESS: %s", sample.Name)
	}

	reason := "unknown error"
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 0 && lines[len(lines)-1] != "" {
		reason = lines[len(lines)-1]
	}
	return fmt.Sprintf("FAILED: %s - %s", sample.Name, reason)
}

func askForConfirmation(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
