package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Drive items through processing",
	Long: `Move items through pending, processing, completed and failed.

'process run' embeds pending items with the configured provider. The other
subcommands let an external worker report its own results.`,
}

var processBeginCmd = &cobra.Command{
	Use:   "begin [ref]",
	Short: "Claim a pending item",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessBegin,
}

var processCompleteCmd = &cobra.Command{
	Use:   "complete [ref]",
	Short: "Store chunks and mark an item completed",
	Long: `Reads a JSON array of chunks from --chunks or stdin:

  [{"chunk_text": "...", "vector": [0.1, 0.2, ...]}, ...]

If any chunk is rejected the item is marked failed and nothing is stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcessComplete,
}

var processFailCmd = &cobra.Command{
	Use:   "fail [ref]",
	Short: "Mark an item failed",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessFail,
}

var processStatusCmd = &cobra.Command{
	Use:   "status [ref] [status]",
	Short: "Apply one state machine transition",
	Args:  cobra.ExactArgs(2),
	RunE:  runProcessStatus,
}

var processRunCmd = &cobra.Command{
	Use:   "run [ref]",
	Short: "Embed one item, or every pending item",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProcessRun,
}

var (
	chunksFile string
	failReason string
)

func init() {
	processCompleteCmd.Flags().StringVarP(&chunksFile, "chunks", "c", "", "JSON file of chunks (default stdin)")
	processFailCmd.Flags().StringVarP(&failReason, "reason", "r", "", "failure reason")

	processCmd.AddCommand(processBeginCmd)
	processCmd.AddCommand(processCompleteCmd)
	processCmd.AddCommand(processFailCmd)
	processCmd.AddCommand(processStatusCmd)
	processCmd.AddCommand(processRunCmd)
	rootCmd.AddCommand(processCmd)
}

var errNoCoordinator = errors.New("processing coordinator not configured")

func runProcessBegin(cmd *cobra.Command, args []string) error {
	if coordinator == nil {
		return errNoCoordinator
	}
	ref, err := domain.ParseContentRef(args[0])
	if err != nil {
		return err
	}

	item, err := coordinator.BeginProcessing(commandContext(cmd), ref)
	if err != nil {
		return fmt.Errorf("failed to begin %s: %w", ref, err)
	}
	cmd.Printf("%s is %s\n", ref, item.Status)
	return nil
}

func runProcessComplete(cmd *cobra.Command, args []string) error {
	if coordinator == nil {
		return errNoCoordinator
	}
	ref, err := domain.ParseContentRef(args[0])
	if err != nil {
		return err
	}

	var data []byte
	if chunksFile != "" {
		data, err = os.ReadFile(chunksFile)
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading chunks: %w", err)
	}
	var chunks []domain.ChunkInput
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("parsing chunks: %w", err)
	}

	item, err := coordinator.CompleteProcessing(commandContext(cmd), ref, chunks)
	if err != nil {
		return fmt.Errorf("failed to complete %s: %w", ref, err)
	}
	cmd.Printf("%s is %s with %d chunks\n", ref, item.Status, len(chunks))
	return nil
}

func runProcessFail(cmd *cobra.Command, args []string) error {
	if coordinator == nil {
		return errNoCoordinator
	}
	ref, err := domain.ParseContentRef(args[0])
	if err != nil {
		return err
	}

	item, err := coordinator.FailProcessing(commandContext(cmd), ref, failReason)
	if err != nil {
		return fmt.Errorf("failed to mark %s failed: %w", ref, err)
	}
	cmd.Printf("%s is %s\n", ref, item.Status)
	return nil
}

func runProcessStatus(cmd *cobra.Command, args []string) error {
	if coordinator == nil {
		return errNoCoordinator
	}
	ref, err := domain.ParseContentRef(args[0])
	if err != nil {
		return err
	}

	item, err := coordinator.Transition(commandContext(cmd), ref, domain.ProcessingStatus(args[1]))
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", ref, err)
	}
	cmd.Printf("%s is %s\n", ref, item.Status)
	return nil
}

func runProcessRun(cmd *cobra.Command, args []string) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not configured: %w", domain.ErrEmbeddingUnavailable)
	}
	ctx := commandContext(cmd)

	if len(args) == 1 {
		ref, err := domain.ParseContentRef(args[0])
		if err != nil {
			return err
		}
		outcome, err := pipeline.Process(ctx, ref)
		if err != nil {
			return fmt.Errorf("processing %s: %w", ref, err)
		}
		cmd.Printf("%s %s with %d chunks\n", outcome.Ref, outcome.Status, outcome.Chunks)
		return nil
	}

	report, err := pipeline.ProcessPending(ctx)
	if err != nil {
		return fmt.Errorf("processing queue: %w", err)
	}
	cmd.Printf("Completed: %d\n", report.Completed)
	cmd.Printf("Failed:    %d\n", report.Failed)
	cmd.Printf("Skipped:   %d\n", report.Skipped)
	cmd.Printf("Chunks:    %d\n", report.Chunks)
	for _, e := range report.Errors {
		cmd.Printf("  ! %v\n", e)
	}
	return nil
}
