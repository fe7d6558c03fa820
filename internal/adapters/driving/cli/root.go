// Package cli provides the kbase command line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/domain"
	"github.com/custodia-labs/kbase/internal/core/ports/driving"
	"github.com/custodia-labs/kbase/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services holds the driving ports the commands call.
// Any field may be nil; commands that need it then fail with a clear error.
type Services struct {
	Content         driving.ContentService
	Coordinator     driving.ProcessingCoordinator
	Search          driving.SearchService
	Dashboard       driving.DashboardService
	Pipeline        driving.Pipeline
	Settings        driving.SettingsService
	Scheduler       driving.Scheduler
	SchedulerConfig domain.SchedulerConfig
}

var (
	contentService   driving.ContentService
	coordinator      driving.ProcessingCoordinator
	searchService    driving.SearchService
	dashboardService driving.DashboardService
	pipeline         driving.Pipeline
	settingsService  driving.SettingsService
	scheduler        driving.Scheduler
	schedulerConfig  domain.SchedulerConfig
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kbase",
	Short: "Personal knowledge base with semantic search",
	Long: `kbase stores files and text notes, embeds them in the background,
and answers natural language queries by cosine similarity.

Add content with 'kbase content', run 'kbase serve' for the HTTP API,
or 'kbase tui' for the interactive dashboard.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServices installs the services used by every command.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	contentService = s.Content
	coordinator = s.Coordinator
	searchService = s.Search
	dashboardService = s.Dashboard
	pipeline = s.Pipeline
	settingsService = s.Settings
	scheduler = s.Scheduler
	schedulerConfig = s.SchedulerConfig
}

// SetVersion sets the version reported by 'kbase version'.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// commandContext returns the command's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
