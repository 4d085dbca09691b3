package commands

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charles-forsyth/skywalker/gcp/reports"
	computeservice "github.com/charles-forsyth/skywalker/gcp/services/computeService"
	filestoreservice "github.com/charles-forsyth/skywalker/gcp/services/filestoreService"
	gkeservice "github.com/charles-forsyth/skywalker/gcp/services/gkeService"
	iamservice "github.com/charles-forsyth/skywalker/gcp/services/iamService"
	monitoringservice "github.com/charles-forsyth/skywalker/gcp/services/monitoringService"
	networkservice "github.com/charles-forsyth/skywalker/gcp/services/networkService"
	runservice "github.com/charles-forsyth/skywalker/gcp/services/runService"
	sqlservice "github.com/charles-forsyth/skywalker/gcp/services/sqlService"
	storageservice "github.com/charles-forsyth/skywalker/gcp/services/storageService"
	vertexservice "github.com/charles-forsyth/skywalker/gcp/services/vertexService"
	"github.com/charles-forsyth/skywalker/gcp/shared"
	"github.com/charles-forsyth/skywalker/globals"
	"github.com/charles-forsyth/skywalker/internal"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"github.com/spf13/cobra"
)

var GCPAuditCommand = &cobra.Command{
	Use:     globals.GCP_AUDIT_MODULE_NAME,
	Aliases: []string{"scan", "inventory"},
	Short:   "Audit resource inventory across projects, regions, and services",
	Long: `Audit resource inventory across projects, regions, and services.

Walks the selected resource families in every (project, location) cell of
the scan matrix with bounded concurrency. A failing cell is reported and
skipped; all other cells still contribute to the report.

Families: compute, storage, gke, vertex, sql, filestore, iam, run, network.`,
	Run: runGCPAuditCommand,
}

// AuditWalkers holds the per-family listing functions. Commands use the
// real services; tests swap in fakes.
type AuditWalkers struct {
	ComputeInstances     func(ctx context.Context, projectID, zone string) ([]computeservice.InstanceInfo, error)
	ComputeImages        func(ctx context.Context, projectID string) ([]computeservice.ImageInfo, error)
	ComputeMachineImages func(ctx context.Context, projectID string) ([]computeservice.MachineImageInfo, error)
	ComputeSnapshots     func(ctx context.Context, projectID string) ([]computeservice.SnapshotInfo, error)
	Buckets              func(ctx context.Context, projectID string) ([]storageservice.BucketInfo, error)
	BucketSizes          func(ctx context.Context, projectID string) (map[string]int64, error)
	GKEClusters          func(ctx context.Context, projectID, location string) ([]gkeservice.ClusterInfo, error)
	Vertex               func(ctx context.Context, projectID, region string) (vertexservice.VertexReport, error)
	SQLInstances         func(ctx context.Context, projectID string) ([]sqlservice.SQLInstanceInfo, error)
	Filestore            func(ctx context.Context, projectID, zone string) ([]filestoreservice.FilestoreInstanceInfo, error)
	IAM                  func(ctx context.Context, projectID string) (iamservice.IAMReport, error)
	RunServices          func(ctx context.Context, projectID, region string) ([]runservice.RunServiceInfo, error)
	Network              func(ctx context.Context, projectID string) (networkservice.NetworkReport, error)
}

func defaultAuditWalkers(clients *sdk.ClientSet, useCache bool) AuditWalkers {
	computeSvc := computeservice.New(clients, useCache)
	storageSvc := storageservice.New(clients, useCache)
	gkeSvc := gkeservice.New(clients, useCache)
	vertexSvc := vertexservice.New(clients, useCache)
	sqlSvc := sqlservice.New(clients, useCache)
	filestoreSvc := filestoreservice.New(clients, useCache)
	iamSvc := iamservice.New(clients, useCache)
	runSvc := runservice.New(clients, useCache)
	networkSvc := networkservice.New(clients, useCache)
	monitoringSvc := monitoringservice.New(clients)

	return AuditWalkers{
		ComputeInstances:     computeSvc.ListInstances,
		ComputeImages:        computeSvc.ListImages,
		ComputeMachineImages: computeSvc.ListMachineImages,
		ComputeSnapshots:     computeSvc.ListSnapshots,
		Buckets:              storageSvc.ListBuckets,
		BucketSizes:          monitoringSvc.FetchBucketSizes,
		GKEClusters:          gkeSvc.ListClusters,
		Vertex:               vertexSvc.GetVertexReport,
		SQLInstances:         sqlSvc.ListInstances,
		Filestore:            filestoreSvc.ListInstances,
		IAM:                  iamSvc.GetIAMReport,
		RunServices:          runSvc.ListServices,
		Network:              networkSvc.GetNetworkReport,
	}
}

// ------------------------------
// Module Struct with embedded BaseGCPModule
// ------------------------------
type AuditModule struct {
	gcpinternal.BaseGCPModule

	Services []string
	Regions  []string
	Walkers  AuditWalkers
	Users    *gcpinternal.UserResolver

	// Metrics merge, optional
	WithMetrics    bool
	ScopingProject string
	FleetMetrics   func(ctx context.Context, scopingProjectID string) ([]monitoringservice.FleetSample, []monitoringservice.MetricError)

	HTMLPath string
	PDFPath  string

	mu      sync.Mutex
	Reports map[string]*reports.ProjectAuditReport // projectID -> report
}

// ------------------------------
// Command Entry Point
// ------------------------------
func runGCPAuditCommand(cmd *cobra.Command, args []string) {
	cmdCtx, err := gcpinternal.InitializeCommandContext(cmd, globals.GCP_AUDIT_MODULE_NAME)
	if err != nil {
		return // Error already logged
	}

	session, err := gcpinternal.NewSafeSession(cmdCtx.Ctx)
	if err != nil {
		cmdCtx.Logger.FatalM(fmt.Sprintf("Failed to initialize credentials: %v", err), globals.GCP_AUDIT_MODULE_NAME)
	}
	clients := sdk.NewClientSet(session)

	rootFlags := cmd.Root().PersistentFlags()
	servicesFlag, _ := rootFlags.GetString("services")
	regionsFlag, _ := rootFlags.GetString("regions")
	withMetrics, _ := rootFlags.GetBool("metrics")
	scopingProject, _ := rootFlags.GetString("scoping-project")
	htmlPath, _ := rootFlags.GetString("html")
	pdfPath, _ := rootFlags.GetString("pdf")

	monitoringSvc := monitoringservice.New(clients)

	module := &AuditModule{
		BaseGCPModule:  gcpinternal.NewBaseGCPModule(cmdCtx),
		Services:       resolveServices(servicesFlag),
		Regions:        gcpinternal.ResolveRegions(regionsFlag),
		Walkers:        defaultAuditWalkers(clients, !cmdCtx.NoCache),
		Users:          gcpinternal.NewUserResolver(),
		WithMetrics:    withMetrics,
		ScopingProject: scopingProject,
		FleetMetrics:   monitoringSvc.FetchFleetMetrics,
		HTMLPath:       htmlPath,
		PDFPath:        pdfPath,
		Reports:        make(map[string]*reports.ProjectAuditReport),
	}

	module.Execute(cmdCtx.Ctx, cmdCtx.Logger)
}

// resolveServices expands "all" (or empty) to every known family and
// drops unknown names.
func resolveServices(flagValue string) []string {
	requested := gcpinternal.ParseMultiValueFlag(flagValue)
	if len(requested) == 0 {
		return globals.AllServiceNames
	}
	known := make(map[string]bool, len(globals.AllServiceNames))
	for _, name := range globals.AllServiceNames {
		known[name] = true
	}
	var services []string
	for _, name := range requested {
		if name == "all" {
			return globals.AllServiceNames
		}
		if known[name] {
			services = append(services, name)
		}
	}
	if len(services) == 0 {
		return globals.AllServiceNames
	}
	return services
}

// ------------------------------
// Module Execution
// ------------------------------
func (m *AuditModule) Execute(ctx context.Context, logger internal.Logger) {
	m.RunProjectEnumeration(ctx, logger, m.ProjectIDs, globals.GCP_AUDIT_MODULE_NAME, m.processProject)

	if m.WithMetrics {
		m.mergeFleetMetrics(ctx, logger)
	}

	ordered := m.orderedReports()

	total := 0
	for _, r := range ordered {
		total += r.TotalResources()
	}
	logger.SuccessM(fmt.Sprintf("Found %s across %s",
		shared.FormatCount(total, "resource", "resources"),
		shared.FormatCount(len(ordered), "project", "projects")), globals.GCP_AUDIT_MODULE_NAME)

	m.writeOutput(logger, ordered)
}

func (m *AuditModule) orderedReports() []reports.ProjectAuditReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := make([]reports.ProjectAuditReport, 0, len(m.Reports))
	for _, report := range m.Reports {
		ordered = append(ordered, *report)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].ProjectID < ordered[j].ProjectID
	})
	return ordered
}

// ------------------------------
// Project Processor (called concurrently for each project)
// ------------------------------
func (m *AuditModule) processProject(ctx context.Context, projectID string, logger internal.Logger) {
	if globals.GCP_VERBOSITY >= globals.GCP_VERBOSE_ERRORS {
		logger.InfoM(fmt.Sprintf("Auditing project: %s", projectID), globals.GCP_AUDIT_MODULE_NAME)
	}

	report := &reports.ProjectAuditReport{
		ProjectID: projectID,
		ScanTime:  time.Now(),
	}

	for _, service := range m.Services {
		if ctx.Err() != nil {
			break
		}
		kindReport, ok := m.auditService(ctx, projectID, service, logger)
		if ok {
			report.Services = append(report.Services, kindReport)
		}
	}

	m.mu.Lock()
	m.Reports[projectID] = report
	m.mu.Unlock()
}

// auditService walks one resource family in one project. The bool is
// false when the whole family failed (API disabled, no access); partial
// failures inside a family still return true.
func (m *AuditModule) auditService(ctx context.Context, projectID, service string, logger internal.Logger) (reports.KindReport, bool) {
	switch service {
	case globals.GCP_COMPUTE_SERVICE_NAME:
		return m.auditCompute(ctx, projectID, logger)
	case globals.GCP_STORAGE_SERVICE_NAME:
		return m.auditStorage(ctx, projectID, logger)
	case globals.GCP_GKE_SERVICE_NAME:
		return m.auditGKE(ctx, projectID, logger)
	case globals.GCP_VERTEX_SERVICE_NAME:
		return m.auditVertex(ctx, projectID, logger)
	case globals.GCP_SQL_SERVICE_NAME:
		return m.auditSQL(ctx, projectID, logger)
	case globals.GCP_FILESTORE_SERVICE_NAME:
		return m.auditFilestore(ctx, projectID, logger)
	case globals.GCP_IAM_SERVICE_NAME:
		return m.auditIAM(ctx, projectID, logger)
	case globals.GCP_RUN_SERVICE_NAME:
		return m.auditRun(ctx, projectID, logger)
	case globals.GCP_NETWORK_SERVICE_NAME:
		return m.auditNetwork(ctx, projectID, logger)
	}
	return reports.KindReport{}, false
}

// scopeError reports one failed cell of the scan matrix without
// aborting the family.
func (m *AuditModule) scopeError(logger internal.Logger, service string, scope gcpinternal.Scope, err error) {
	m.CommandCounter.AddError(1)
	desc := fmt.Sprintf("Could not list %s in %s", service, scope.ProjectID)
	if scope.Location != "" {
		desc += "/" + scope.Location
	}
	gcpinternal.HandleGCPError(err, logger, globals.GCP_AUDIT_MODULE_NAME, desc)
}

func (m *AuditModule) auditCompute(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	compute := &reports.ComputeReport{
		Instances:     []computeservice.InstanceInfo{},
		Images:        []computeservice.ImageInfo{},
		MachineImages: []computeservice.MachineImageInfo{},
		Snapshots:     []computeservice.SnapshotInfo{},
	}

	scopes := gcpinternal.ZonalScopes(projectID, m.Regions)
	results := gcpinternal.MapScopes(ctx, m.Workers, scopes, func(ctx context.Context, scope gcpinternal.Scope) ([]computeservice.InstanceInfo, error) {
		return m.Walkers.ComputeInstances(ctx, scope.ProjectID, scope.Location)
	})
	compute.Instances = gcpinternal.CollectScopeResults(results, func(scope gcpinternal.Scope, err error) {
		m.scopeError(logger, "instances", scope, err)
	})
	if compute.Instances == nil {
		compute.Instances = []computeservice.InstanceInfo{}
	}

	if images, err := m.Walkers.ComputeImages(ctx, projectID); err != nil {
		m.scopeError(logger, "images", gcpinternal.Scope{ProjectID: projectID}, err)
	} else {
		compute.Images = images
	}
	if machineImages, err := m.Walkers.ComputeMachineImages(ctx, projectID); err != nil {
		m.scopeError(logger, "machine images", gcpinternal.Scope{ProjectID: projectID}, err)
	} else {
		compute.MachineImages = machineImages
	}
	if snapshots, err := m.Walkers.ComputeSnapshots(ctx, projectID); err != nil {
		m.scopeError(logger, "snapshots", gcpinternal.Scope{ProjectID: projectID}, err)
	} else {
		compute.Snapshots = snapshots
	}

	return reports.KindReport{Kind: reports.KindCompute, Compute: compute}, true
}

func (m *AuditModule) auditStorage(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	buckets, err := m.Walkers.Buckets(ctx, projectID)
	if err != nil {
		m.scopeError(logger, "buckets", gcpinternal.Scope{ProjectID: projectID}, err)
		return reports.KindReport{}, false
	}

	// Size comes from the monitoring gauge; buckets still list without it.
	if sizes, err := m.Walkers.BucketSizes(ctx, projectID); err == nil {
		for i := range buckets {
			if size, ok := sizes[buckets[i].Name]; ok {
				buckets[i].SizeBytes = size
			}
		}
	}

	return reports.KindReport{Kind: reports.KindStorage, Storage: &reports.StorageReport{Buckets: buckets}}, true
}

func (m *AuditModule) auditGKE(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	scopes := gcpinternal.RegionalScopes(projectID, m.Regions)
	results := gcpinternal.MapScopes(ctx, m.Workers, scopes, func(ctx context.Context, scope gcpinternal.Scope) ([]gkeservice.ClusterInfo, error) {
		return m.Walkers.GKEClusters(ctx, scope.ProjectID, scope.Location)
	})
	clusters := gcpinternal.CollectScopeResults(results, func(scope gcpinternal.Scope, err error) {
		m.scopeError(logger, "gke clusters", scope, err)
	})
	if clusters == nil {
		clusters = []gkeservice.ClusterInfo{}
	}
	return reports.KindReport{Kind: reports.KindGKE, GKE: &reports.GKEReport{Clusters: clusters}}, true
}

func (m *AuditModule) auditVertex(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	merged := &vertexservice.VertexReport{
		Notebooks: []vertexservice.NotebookInfo{},
		Models:    []vertexservice.ModelInfo{},
		Endpoints: []vertexservice.EndpointInfo{},
	}

	scopes := gcpinternal.RegionalScopes(projectID, m.Regions)
	results := gcpinternal.MapScopes(ctx, m.Workers, scopes, func(ctx context.Context, scope gcpinternal.Scope) (vertexservice.VertexReport, error) {
		return m.Walkers.Vertex(ctx, scope.ProjectID, scope.Location)
	})
	for _, r := range results {
		if r.Err != nil {
			// Vertex is commonly disabled; only surface real errors.
			if !gcpinternal.IsAPINotEnabled(r.Err) {
				m.scopeError(logger, "vertex resources", r.Scope, r.Err)
			}
			continue
		}
		merged.Notebooks = append(merged.Notebooks, r.Value.Notebooks...)
		merged.Models = append(merged.Models, r.Value.Models...)
		merged.Endpoints = append(merged.Endpoints, r.Value.Endpoints...)
	}

	return reports.KindReport{Kind: reports.KindVertex, Vertex: merged}, true
}

func (m *AuditModule) auditSQL(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	instances, err := m.Walkers.SQLInstances(ctx, projectID)
	if err != nil {
		m.scopeError(logger, "sql instances", gcpinternal.Scope{ProjectID: projectID}, err)
		return reports.KindReport{}, false
	}
	return reports.KindReport{Kind: reports.KindSQL, SQL: &reports.SQLReport{Instances: instances}}, true
}

func (m *AuditModule) auditFilestore(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	scopes := gcpinternal.ZonalScopes(projectID, m.Regions)
	results := gcpinternal.MapScopes(ctx, m.Workers, scopes, func(ctx context.Context, scope gcpinternal.Scope) ([]filestoreservice.FilestoreInstanceInfo, error) {
		return m.Walkers.Filestore(ctx, scope.ProjectID, scope.Location)
	})
	instances := gcpinternal.CollectScopeResults(results, func(scope gcpinternal.Scope, err error) {
		m.scopeError(logger, "filestore instances", scope, err)
	})
	if instances == nil {
		instances = []filestoreservice.FilestoreInstanceInfo{}
	}
	return reports.KindReport{Kind: reports.KindFilestore, Filestore: &reports.FilestoreReport{Instances: instances}}, true
}

func (m *AuditModule) auditIAM(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	report, err := m.Walkers.IAM(ctx, projectID)
	if err != nil {
		m.scopeError(logger, "iam", gcpinternal.Scope{ProjectID: projectID}, err)
		if len(report.ServiceAccounts) == 0 && len(report.PolicyBindings) == 0 {
			return reports.KindReport{}, false
		}
	}

	// Resolve member display names from the local user directory.
	// Only elevated-role bindings are resolved.
	if m.Users != nil && m.Users.Size() > 0 {
		for i := range report.PolicyBindings {
			binding := &report.PolicyBindings[i]
			if !shared.IsElevatedRole(binding.Role) {
				continue
			}
			binding.MemberNames = make([]string, len(binding.Members))
			for j, member := range binding.Members {
				binding.MemberNames[j] = m.Users.DisplayName(shared.ExtractPrincipalEmail(member))
			}
		}
	}

	return reports.KindReport{Kind: reports.KindIAM, IAM: &report}, true
}

func (m *AuditModule) auditRun(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	scopes := gcpinternal.RegionalScopes(projectID, m.Regions)
	results := gcpinternal.MapScopes(ctx, m.Workers, scopes, func(ctx context.Context, scope gcpinternal.Scope) ([]runservice.RunServiceInfo, error) {
		return m.Walkers.RunServices(ctx, scope.ProjectID, scope.Location)
	})
	services := gcpinternal.CollectScopeResults(results, func(scope gcpinternal.Scope, err error) {
		m.scopeError(logger, "run services", scope, err)
	})
	if services == nil {
		services = []runservice.RunServiceInfo{}
	}
	return reports.KindReport{Kind: reports.KindRun, Run: &reports.RunReport{Services: services}}, true
}

func (m *AuditModule) auditNetwork(ctx context.Context, projectID string, logger internal.Logger) (reports.KindReport, bool) {
	report, err := m.Walkers.Network(ctx, projectID)
	if err != nil {
		m.scopeError(logger, "network", gcpinternal.Scope{ProjectID: projectID}, err)
		if len(report.Firewalls) == 0 && len(report.VPCs) == 0 && len(report.Addresses) == 0 {
			return reports.KindReport{}, false
		}
	}
	return reports.KindReport{Kind: reports.KindNetwork, Network: &report}, true
}

// ------------------------------
// Metrics Merge
// ------------------------------

// mergeFleetMetrics pulls the utilization snapshot from the scoping
// project and folds it into the compute instances collected per project.
// The join key is (project ID, numeric instance ID).
func (m *AuditModule) mergeFleetMetrics(ctx context.Context, logger internal.Logger) {
	scoping := m.ScopingProject
	if scoping == "" {
		scoping = globals.DefaultScopingProject
	}
	logger.InfoM(fmt.Sprintf("Fetching fleet metrics via scope: %s", scoping), globals.GCP_AUDIT_MODULE_NAME)

	samples, metricErrs := m.FleetMetrics(ctx, scoping)
	for _, me := range metricErrs {
		logger.WarnM(fmt.Sprintf("Metric %s unavailable: %v", me.Metric, me.Err), globals.GCP_AUDIT_MODULE_NAME)
	}
	if len(samples) == 0 {
		logger.WarnM("No metrics found in scope", globals.GCP_AUDIT_MODULE_NAME)
		return
	}

	type key struct{ project, id string }
	index := make(map[key]monitoringservice.FleetSample, len(samples))
	for _, sample := range samples {
		index[key{sample.ProjectID, sample.InstanceID}] = sample
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for projectID, report := range m.Reports {
		svc := report.Service(reports.KindCompute)
		if svc == nil || svc.Compute == nil {
			continue
		}
		for i := range svc.Compute.Instances {
			inst := &svc.Compute.Instances[i]
			if sample, ok := index[key{projectID, inst.ID}]; ok {
				inst.CPUPercent = sample.CPUPercent
				inst.MemoryPercent = sample.MemoryPercent
				inst.GPUUtilization = sample.GPUUtilization
				inst.GPUMemoryUtilization = sample.GPUMemoryUtilization
			}
		}
	}
}

// ------------------------------
// Output Generation
// ------------------------------
func (m *AuditModule) writeOutput(logger internal.Logger, ordered []reports.ProjectAuditReport) {
	if m.JSONOutput {
		if err := internal.PrintJSON(ordered); err != nil {
			logger.ErrorM(fmt.Sprintf("Error writing JSON output: %v", err), globals.GCP_AUDIT_MODULE_NAME)
		}
	} else {
		tableClient := internal.TableClient{Wrap: m.WrapTable, RowLimit: m.RowLimit}
		for _, report := range ordered {
			tables := reports.TableFiles(report)
			if len(tables) == 0 {
				logger.InfoM(fmt.Sprintf("No resources found in project %s", report.ProjectID), globals.GCP_AUDIT_MODULE_NAME)
				continue
			}
			tableClient.PrintTablesToScreen(tables)
		}
	}

	if m.HTMLPath == "" && m.PDFPath == "" {
		return
	}

	html, err := reports.RenderAuditHTML(ordered)
	if err != nil {
		logger.ErrorM(fmt.Sprintf("Error rendering report: %v", err), globals.GCP_AUDIT_MODULE_NAME)
		return
	}
	if m.HTMLPath != "" {
		if err := reports.WriteHTMLFile(m.HTMLPath, html); err != nil {
			logger.ErrorM(fmt.Sprintf("Error writing HTML report: %v", err), globals.GCP_AUDIT_MODULE_NAME)
		} else {
			logger.SuccessM(fmt.Sprintf("Report saved to %s", m.HTMLPath), globals.GCP_AUDIT_MODULE_NAME)
		}
	}
	if m.PDFPath != "" {
		if err := reports.WritePDFFile(m.PDFPath, html); err != nil {
			logger.ErrorM(fmt.Sprintf("Error writing PDF report: %v", err), globals.GCP_AUDIT_MODULE_NAME)
		} else {
			logger.SuccessM(fmt.Sprintf("Report saved to %s", m.PDFPath), globals.GCP_AUDIT_MODULE_NAME)
		}
	}
}
