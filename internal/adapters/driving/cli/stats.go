package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard figures",
	RunE:  runStatsDashboard,
}

var statsDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show corpus totals and daily uploads",
	RunE:  runStatsDashboard,
}

var statsQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List pending and processing items, oldest first",
	RunE:  runStatsQueue,
}

var statsSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Store the usage rollup for a UTC day",
	RunE:  runStatsSnapshot,
}

var statsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored daily rollups",
	RunE:  runStatsHistory,
}

var (
	statsJSON    bool
	snapshotDate string
	historyDays  int
)

func init() {
	statsCmd.PersistentFlags().BoolVar(&statsJSON, "json", false, "output as JSON")
	statsSnapshotCmd.Flags().StringVar(&snapshotDate, "date", "", "day to roll up, YYYY-MM-DD (default today)")
	statsHistoryCmd.Flags().IntVarP(&historyDays, "days", "d", 0, "trailing days (default from settings)")

	statsCmd.AddCommand(statsDashboardCmd)
	statsCmd.AddCommand(statsQueueCmd)
	statsCmd.AddCommand(statsSnapshotCmd)
	statsCmd.AddCommand(statsHistoryCmd)
	rootCmd.AddCommand(statsCmd)
}

var errNoDashboardService = errors.New("dashboard service not configured")

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runStatsDashboard(cmd *cobra.Command, _ []string) error {
	if dashboardService == nil {
		return errNoDashboardService
	}

	stats, err := dashboardService.Stats(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to compute stats: %w", err)
	}
	if statsJSON {
		return printJSON(cmd, stats)
	}

	cmd.Println("Dashboard")
	cmd.Println("=========")
	cmd.Printf("  Files:            %d\n", stats.TotalFiles)
	cmd.Printf("  Text entries:     %d\n", stats.TotalTextEntries)
	cmd.Printf("  Embeddings:       %d\n", stats.TotalEmbeddings)
	cmd.Printf("  Storage:          %.2f MB\n", stats.TotalStorageMB)
	cmd.Printf("  Queue:            %d\n", stats.ProcessingQueueSize)
	cmd.Printf("  Recent uploads:   %d\n", stats.RecentUploads)
	cmd.Println()
	cmd.Println("Daily uploads (UTC):")
	for _, d := range stats.DailyUsage {
		cmd.Printf("  %s  %4d  %.2f MB\n", d.Date, d.Uploads, d.StorageMB)
	}
	return nil
}

func runStatsQueue(cmd *cobra.Command, _ []string) error {
	if dashboardService == nil {
		return errNoDashboardService
	}

	queue, err := dashboardService.ProcessingQueue(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to load queue: %w", err)
	}
	if statsJSON {
		return printJSON(cmd, queue)
	}

	if len(queue) == 0 {
		cmd.Println("Queue is empty.")
		return nil
	}
	for _, q := range queue {
		cmd.Printf("  %-14s %-10s %s  %s\n",
			q.Ref(), q.Status, q.CreatedAt.Local().Format("2006-01-02 15:04"), q.Name)
	}
	cmd.Printf("\nTotal: %d queued\n", len(queue))
	return nil
}

func runStatsSnapshot(cmd *cobra.Command, _ []string) error {
	if dashboardService == nil {
		return errNoDashboardService
	}

	day := time.Now().UTC()
	if snapshotDate != "" {
		parsed, err := time.Parse(time.DateOnly, snapshotDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", snapshotDate)
		}
		day = parsed
	}

	stat, err := dashboardService.Snapshot(commandContext(cmd), day)
	if err != nil {
		return fmt.Errorf("failed to snapshot usage: %w", err)
	}
	if statsJSON {
		return printJSON(cmd, stat)
	}
	cmd.Printf("Snapshot %s: %d files, %d texts, %d embeddings, %.2f MB processed, %.2f MB stored\n",
		stat.Date, stat.FilesUploaded, stat.TextEntries, stat.EmbeddingsCreated,
		stat.DataProcessedMB, stat.StorageUsedMB)
	return nil
}

func runStatsHistory(cmd *cobra.Command, _ []string) error {
	if dashboardService == nil {
		return errNoDashboardService
	}

	history, err := dashboardService.History(commandContext(cmd), historyDays)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if statsJSON {
		return printJSON(cmd, history)
	}

	if len(history) == 0 {
		cmd.Println("No snapshots stored. Run 'kbase stats snapshot' or 'kbase serve'.")
		return nil
	}
	cmd.Println("Date        Files  Texts  Embeddings  Stored MB")
	for _, h := range history {
		cmd.Printf("%s  %5d  %5d  %10d  %9.2f\n",
			h.Date, h.FilesUploaded, h.TextEntries, h.EmbeddingsCreated, h.StorageUsedMB)
	}
	return nil
}
