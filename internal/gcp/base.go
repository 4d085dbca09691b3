package gcpinternal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charles-forsyth/skywalker/internal"
	"github.com/spf13/cobra"
)

// ------------------------------
// CommandContext holds all common initialization data for commands
// ------------------------------
type CommandContext struct {
	Ctx    context.Context
	Logger internal.Logger

	// Project information
	ProjectIDs   []string
	ProjectNames map[string]string // ProjectID -> DisplayName mapping
	Account      string            // Authenticated account email

	// Configuration flags
	Verbosity  int
	WrapTable  bool
	RowLimit   int
	JSONOutput bool
	NoCache    bool
	Goroutines int
	Workers    int
}

// ------------------------------
// BaseGCPModule - Embeddable struct with common fields for all modules
// ------------------------------
// Modules embed this struct instead of declaring these fields individually.
type BaseGCPModule struct {
	ProjectIDs   []string
	ProjectNames map[string]string
	Account      string

	Verbosity  int
	WrapTable  bool
	RowLimit   int
	JSONOutput bool
	NoCache    bool
	Goroutines int // project-level concurrency
	Workers    int // scope-level concurrency within a project

	CommandCounter internal.CommandCounter
}

// GetProjectName returns the display name for a project ID, falling back to
// the ID if not found
func (b *BaseGCPModule) GetProjectName(projectID string) string {
	if b.ProjectNames != nil {
		if name, ok := b.ProjectNames[projectID]; ok && name != "" {
			return name
		}
	}
	return projectID
}

// NewBaseGCPModule creates a BaseGCPModule from a CommandContext
func NewBaseGCPModule(cmdCtx *CommandContext) BaseGCPModule {
	return BaseGCPModule{
		ProjectIDs:   cmdCtx.ProjectIDs,
		ProjectNames: cmdCtx.ProjectNames,
		Account:      cmdCtx.Account,
		Verbosity:    cmdCtx.Verbosity,
		WrapTable:    cmdCtx.WrapTable,
		RowLimit:     cmdCtx.RowLimit,
		JSONOutput:   cmdCtx.JSONOutput,
		NoCache:      cmdCtx.NoCache,
		Goroutines:   cmdCtx.Goroutines,
		Workers:      cmdCtx.Workers,
	}
}

// ProjectProcessor is the per-project callback run by RunProjectEnumeration
type ProjectProcessor func(ctx context.Context, projectID string, logger internal.Logger)

// RunProjectEnumeration fans processor out over projectIDs with bounded
// concurrency. It owns the WaitGroup, semaphore, spinner, and counter
// bookkeeping so modules only supply the per-project work.
//
// A cancelled context stops new projects from being scheduled; projects
// already executing run to completion so their results stay usable.
func (b *BaseGCPModule) RunProjectEnumeration(
	ctx context.Context,
	logger internal.Logger,
	projectIDs []string,
	moduleName string,
	processor ProjectProcessor,
) {
	logger.InfoM(fmt.Sprintf("Scanning %d project(s)", len(projectIDs)), moduleName)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, b.Goroutines)

	spinnerDone := make(chan bool)
	go internal.SpinUntil(moduleName, &b.CommandCounter, spinnerDone, "projects")

	for _, projectID := range projectIDs {
		if ctx.Err() != nil {
			break
		}

		b.CommandCounter.AddTotal(1)
		b.CommandCounter.AddPending(1)
		wg.Add(1)

		go func(project string) {
			defer func() {
				b.CommandCounter.AddRunning(-1)
				b.CommandCounter.AddDone(1)
				wg.Done()
			}()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			b.CommandCounter.AddPending(-1)
			b.CommandCounter.AddRunning(1)

			if ctx.Err() != nil {
				return
			}
			processor(ctx, project, logger)
		}(projectID)
	}

	wg.Wait()

	spinnerDone <- true
	<-spinnerDone
}

// ParseMultiValueFlag parses a flag value that can contain comma-separated
// and/or space-separated values, deduplicating while preserving order.
func ParseMultiValueFlag(flagValue string) []string {
	if flagValue == "" {
		return nil
	}

	normalized := strings.ReplaceAll(flagValue, ",", " ")
	fields := strings.Fields(normalized)

	seen := make(map[string]bool)
	result := []string{}
	for _, field := range fields {
		if !seen[field] {
			seen[field] = true
			result = append(result, field)
		}
	}
	return result
}

// InitializeCommandContext extracts shared flags and the project list
// resolved by the root command, so each subcommand skips the boilerplate.
func InitializeCommandContext(cmd *cobra.Command, moduleName string) (*CommandContext, error) {
	ctx := cmd.Context()
	logger := internal.NewLogger()

	rootFlags := cmd.Root().PersistentFlags()
	verbosity, _ := rootFlags.GetInt("verbosity")
	wrap, _ := rootFlags.GetBool("wrap")
	jsonOutput, _ := rootFlags.GetBool("json")
	noCache, _ := rootFlags.GetBool("no-cache")
	rowLimit, _ := rootFlags.GetInt("limit")
	goroutines, _ := rootFlags.GetInt("concurrency")
	workers, _ := rootFlags.GetInt("workers")

	var projectIDs []string
	if value, ok := ctx.Value(ContextKeyProjectIDs).([]string); ok && len(value) > 0 {
		projectIDs = value
	} else {
		logger.ErrorM("No project IDs resolved, use -p PROJECT_ID or -a", moduleName)
		return nil, fmt.Errorf("no project IDs provided")
	}

	projectNames, ok := ctx.Value(ContextKeyProjectNames).(map[string]string)
	if !ok {
		projectNames = make(map[string]string)
		for _, id := range projectIDs {
			projectNames[id] = id
		}
	}

	account, _ := ctx.Value(ContextKeyAccount).(string)

	return &CommandContext{
		Ctx:          ctx,
		Logger:       logger,
		ProjectIDs:   projectIDs,
		ProjectNames: projectNames,
		Account:      account,
		Verbosity:    verbosity,
		WrapTable:    wrap,
		RowLimit:     rowLimit,
		JSONOutput:   jsonOutput,
		NoCache:      noCache,
		Goroutines:   goroutines,
		Workers:      workers,
	}, nil
}

// contextKey avoids collisions with other packages' context values
type contextKey string

const (
	ContextKeyProjectIDs   contextKey = "projectIDs"
	ContextKeyProjectNames contextKey = "projectNames"
	ContextKeyAccount      contextKey = "account"
)
