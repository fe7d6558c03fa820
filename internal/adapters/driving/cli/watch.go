package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/adapters/driving/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Register files dropped into a directory",
	Long: `Scans a directory tree and registers every file as a pending item,
then keeps watching it. A rewritten file whose item already finished
processing is reset to pending so it is embedded again.

Hidden files and directories are ignored. Files are not copied.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var watchNoSched bool

func init() {
	watchCmd.Flags().BoolVar(&watchNoSched, "no-scheduler", false, "only register files, do not process them")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if contentService == nil {
		return errNoContentService
	}

	ctx := commandContext(cmd)
	if !watchNoSched {
		stop := startScheduler(ctx)
		defer stop()
	}

	w := watch.New(args[0], contentService)
	defer w.Close()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", w.Root())
	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watching %s: %w", args[0], err)
	}
	return nil
}
