package cli

import (
	"context"
	"fmt"

	"github.com/charles-forsyth/skywalker/gcp/commands"
	organizationsservice "github.com/charles-forsyth/skywalker/gcp/services/organizationsService"
	"github.com/charles-forsyth/skywalker/globals"
	"github.com/charles-forsyth/skywalker/internal"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"github.com/spf13/cobra"
)

var (
	// Project scoping options
	projectID          string
	projectIDsFilePath string
	allProjects        bool

	projectIDs   []string
	projectNames map[string]string

	rootLogger = internal.NewLogger()

	// RootCommand is the skywalker entry point.
	RootCommand = &cobra.Command{
		Use:   "skywalker",
		Short: "GCP fleet audit and reporting tool",
		Long: `Skywalker audits GCP research fleets: resource inventory across
projects and regions, live utilization dashboards, zombie resource
hunting, and fleet-wide remediation.`,
		PersistentPreRun: runRootPersistentPreRun,
	}
)

func runRootPersistentPreRun(cmd *cobra.Command, args []string) {
	verbosity, _ := cmd.Root().PersistentFlags().GetInt("verbosity")
	globals.GCP_VERBOSITY = verbosity

	// Cache maintenance is local only and must work without credentials.
	if cmd.Name() == globals.GCP_CACHE_MODULE_NAME ||
		(cmd.Parent() != nil && cmd.Parent().Name() == globals.GCP_CACHE_MODULE_NAME) {
		return
	}

	projectNames = make(map[string]string)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	session, err := gcpinternal.NewSafeSession(ctx)
	if err != nil {
		rootLogger.FatalM(fmt.Sprintf(
			"Could not load default credentials: %v\n\nTry: gcloud auth application-default login", err),
			cmd.Name())
	}
	clients := sdk.NewClientSet(session)

	noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache")
	orgsSvc := organizationsservice.New(clients, !noCache)

	switch {
	case allProjects:
		rootLogger.InfoM("Discovering all accessible projects...", cmd.Name())
		projects, err := orgsSvc.ListAllProjects(ctx)
		if err != nil {
			rootLogger.FatalM(fmt.Sprintf("Failed to discover projects: %v. Try -p or -l instead.", err), cmd.Name())
		}
		for _, project := range projects {
			projectIDs = append(projectIDs, project.ProjectID)
			projectNames[project.ProjectID] = project.DisplayName
		}
		if len(projectIDs) == 0 {
			rootLogger.FatalM("No accessible projects found. Check your permissions.", cmd.Name())
		}
		rootLogger.InfoM(fmt.Sprintf("Discovered %d project(s)", len(projectIDs)), cmd.Name())
	case projectID != "":
		projectIDs = []string{projectID}
		resolveProjectNames(ctx, orgsSvc, projectIDs)
	case projectIDsFilePath != "":
		projectIDs = internal.LoadFileLinesIntoArray(projectIDsFilePath)
		resolveProjectNames(ctx, orgsSvc, projectIDs)
	default:
		// fleet, fix, and cache run without a project list; audit and
		// zombies will refuse later.
	}

	ctx = context.WithValue(ctx, gcpinternal.ContextKeyProjectIDs, projectIDs)
	ctx = context.WithValue(ctx, gcpinternal.ContextKeyProjectNames, projectNames)
	ctx = context.WithValue(ctx, gcpinternal.ContextKeyAccount, session.GetEmail())
	cmd.SetContext(ctx)
}

// resolveProjectNames fills display names for explicitly given project
// IDs. Failure is non-fatal; IDs work as names.
func resolveProjectNames(ctx context.Context, orgsSvc *organizationsservice.OrganizationsService, ids []string) {
	for _, id := range ids {
		projectNames[id] = id
	}

	projects, err := orgsSvc.ListAllProjects(ctx)
	if err != nil {
		rootLogger.InfoM("Could not resolve project names, using project IDs only", "skywalker")
		return
	}
	lookup := make(map[string]string, len(projects))
	for _, project := range projects {
		lookup[project.ProjectID] = project.DisplayName
	}
	for _, id := range ids {
		if name, ok := lookup[id]; ok && name != "" {
			projectNames[id] = name
		}
	}
}

func init() {
	flags := RootCommand.PersistentFlags()

	flags.StringVarP(&projectID, "project", "p", "", "GCP project ID")
	flags.StringVarP(&projectIDsFilePath, "project-list", "l", "", "Path to a file with one project ID per line")
	flags.BoolVarP(&allProjects, "all-projects", "a", false, "Discover and scan all accessible ACTIVE projects")

	flags.String("services", "all", "Comma-separated resource families to audit (compute,storage,gke,vertex,sql,filestore,iam,run,network)")
	flags.String("regions", "", "Comma-separated regions to scan, or 'all' (default: the standard fleet regions)")
	flags.String("org-id", "", "Organization ID for org-wide asset search (e.g. 123456789)")
	flags.String("scoping-project", globals.DefaultScopingProject, "Metrics scoping project for fleet mode")

	flags.Bool("json", false, "Output results as JSON on stdout")
	flags.Bool("metrics", false, "Merge live utilization metrics into the audit")
	flags.String("csv", "", "Write fleet data to a CSV file")
	flags.String("html", "", "Write an HTML report to this path")
	flags.String("pdf", "", "Write a PDF report to this path (needs wkhtmltopdf)")

	flags.Int("concurrency", globals.DefaultProjectConcurrency, "Projects scanned in parallel")
	flags.Int("workers", globals.DefaultScopeWorkers, "Location scopes scanned in parallel per project")
	flags.Int("limit", 20, "Rows shown per terminal table, 0 for unlimited")
	flags.BoolP("wrap", "w", false, "Wrap table output to terminal width (complicates grepping)")
	flags.IntP("verbosity", "v", 2, "Log verbosity (9 adds per-project progress messages)")
	flags.Bool("no-cache", false, "Bypass the on-disk response cache")

	RootCommand.AddCommand(
		commands.GCPAuditCommand,
		commands.GCPFleetCommand,
		commands.GCPZombiesCommand,
		commands.GCPFixCommand,
		commands.GCPCacheCommand,
	)
}
