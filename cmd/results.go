package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/store"
)

var (
	resultsDataDir string
	keepLast       int
	olderThanDays  int
	forceClean     bool
	showTrace      bool
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Manage stored fill results",
	Long: `Manage stored fill results including listing, inspecting and cleaning
old results. Stored results keep the correspondence field so a fill can be
resynthesised with another voting offset.`,
}

var listResultsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored results",
	Long:  `Display all results with metadata including job ID, timestamp, size, cost, and disk usage.`,
	RunE:  runListResults,
}

var showResultCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Print a stored record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowResult,
}

var cleanResultsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean old results",
	Long: `Delete old results based on retention policy.
You can keep only the newest N results or delete results older than N days.`,
	RunE: runCleanResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)

	resultsCmd.AddCommand(listResultsCmd)
	resultsCmd.AddCommand(showResultCmd)
	resultsCmd.AddCommand(cleanResultsCmd)

	resultsCmd.PersistentFlags().StringVar(&resultsDataDir, "data-dir", "./data", "Base directory for result storage")

	showResultCmd.Flags().BoolVar(&showTrace, "trace", false, "Print the cost trace instead of the record")

	cleanResultsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N results (0 = keep all)")
	cleanResultsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete results older than N days (0 = no age limit)")
	cleanResultsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListResults(cmd *cobra.Command, args []string) error {
	resultStore, err := store.NewFSStore(resultsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	infos, err := resultStore.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Timestamp.After(infos[j].Timestamp)
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tTIMESTAMP\tSIZE\tFILLED\tMEAN COST\tDISK")
	fmt.Fprintln(w, "------\t---------\t----\t------\t---------\t----")

	for _, info := range infos {
		jobDir := filepath.Join(resultsDataDir, "jobs", info.JobID)
		size, err := getDirSize(jobDir)
		sizeStr := "unknown"
		if err == nil {
			sizeStr = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%.1f\t%s\n",
			shortID(info.JobID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Width, info.Height,
			info.Fillable,
			info.MeanCost,
			sizeStr,
		)
	}

	w.Flush()

	fmt.Fprintf(out, "\nTotal results: %d\n", len(infos))
	return nil
}

func runShowResult(cmd *cobra.Command, args []string) error {
	jobID := args[0]
	var v any
	if showTrace {
		entries, err := store.ReadTrace(resultsDataDir, jobID)
		if err != nil {
			return err
		}
		v = entries
	} else {
		resultStore, err := store.NewFSStore(resultsDataDir)
		if err != nil {
			return fmt.Errorf("failed to create result store: %w", err)
		}
		record, err := resultStore.LoadRecord(jobID)
		if err != nil {
			return err
		}
		v = record
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCleanResults(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	resultStore, err := store.NewFSStore(resultsDataDir)
	if err != nil {
		return fmt.Errorf("failed to create result store: %w", err)
	}

	infos, err := resultStore.ListRecords()
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No results to clean.")
		return nil
	}

	toDelete := selectResultsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No results match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d result(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, %s)\n",
			shortID(info.JobID),
			filepath.Base(info.ImagePath),
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean && !confirm(cmd.InOrStdin(), out, "\nProceed with deletion? [y/N]: ") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		err := resultStore.DeleteRecord(info.JobID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Error("Failed to delete result", "job_id", info.JobID, "error", err)
			failed++
		} else {
			slog.Info("Deleted result", "job_id", info.JobID)
			deleted++
		}
	}

	fmt.Fprintf(out, "\nDeleted %d result(s), %d failed.\n", deleted, failed)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	var response string
	fmt.Fscanln(in, &response)
	return response == "y" || response == "Y"
}

// selectResultsForDeletion returns the results older than olderThanDays
// plus everything beyond the keepLast newest, each at most once, oldest
// first. Zero disables a criterion.
func selectResultsForDeletion(infos []store.RecordInfo, keepLast, olderThanDays int, now time.Time) []store.RecordInfo {
	sorted := make([]store.RecordInfo, len(infos))
	copy(sorted, infos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	excess := 0
	if keepLast > 0 && len(sorted) > keepLast {
		excess = len(sorted) - keepLast
	}
	cutoff := now.AddDate(0, 0, -olderThanDays)

	var toDelete []store.RecordInfo
	for i, info := range sorted {
		if i < excess || (olderThanDays > 0 && info.Timestamp.Before(cutoff)) {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
