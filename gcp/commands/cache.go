package commands

import (
	"fmt"

	"github.com/charles-forsyth/skywalker/gcp/shared"
	"github.com/charles-forsyth/skywalker/globals"
	"github.com/charles-forsyth/skywalker/internal"
	gcpinternal "github.com/charles-forsyth/skywalker/internal/gcp"
	"github.com/charles-forsyth/skywalker/internal/gcp/sdk"
	"github.com/spf13/cobra"
)

var GCPCacheCommand = &cobra.Command{
	Use:   globals.GCP_CACHE_MODULE_NAME,
	Short: "Manage the on-disk response cache",
}

var gcpCacheClearCommand = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached API responses",
	Run: func(cmd *cobra.Command, args []string) {
		logger := internal.NewLogger()
		removed, err := gcpinternal.ClearCache()
		if err != nil {
			logger.ErrorM(fmt.Sprintf("Failed to clear cache: %v", err), globals.GCP_CACHE_MODULE_NAME)
			return
		}
		sdk.ClearClientCache()
		logger.SuccessM(fmt.Sprintf("Removed %s", shared.FormatCount(removed, "cached entry", "cached entries")), globals.GCP_CACHE_MODULE_NAME)
	},
}

func init() {
	GCPCacheCommand.AddCommand(gcpCacheClearCommand)
}
