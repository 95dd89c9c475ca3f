package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/report"
)

var (
	historyNotify bool
	pruneDays     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List exported reports",
	Long: `List the reports saved under data_dir/reports, newest first.

Example:
  redadsync history
  redadsync history show 1
  redadsync history sync 1
  redadsync history prune --days 30`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <n|file>",
	Short: "Print an exported report",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historySyncCmd = &cobra.Command{
	Use:   "sync <n|file>",
	Short: "Append an exported report to its account table",
	Long: `Sync a saved report without querying the ad platform again. The report
is chosen by its number in the history listing or by file path.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistorySync,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete exported reports older than a number of days",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historySyncCmd.Flags().BoolVar(&historyNotify, "notify", false, "Send the sync result to Telegram")
	historyPruneCmd.Flags().IntVar(&pruneDays, "days", 90, "Keep reports saved within this many days")
	historyCmd.AddCommand(historyShowCmd, historySyncCmd, historyPruneCmd)
	RootCmd.AddCommand(historyCmd)
}

// HistoryInfo is one row of the history listing.
type HistoryInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Start     string `json:"start"`
	End       string `json:"end"`
	QueriedAt string `json:"queried_at"`
	Path      string `json:"path"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	entries, err := report.History(rt.exporter.Dir())
	if err != nil {
		return err
	}

	infos := make([]HistoryInfo, 0, len(entries))
	for i, e := range entries {
		infos = append(infos, HistoryInfo{
			Index:     i + 1,
			Name:      e.Name,
			Start:     e.Start,
			End:       e.End,
			QueriedAt: e.QueriedAt,
			Path:      e.Path,
		})
	}

	if globalFlags.JSON {
		return outputJSON(cmd, infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No exported reports in", rt.exporter.Dir())
		return nil
	}

	w := newTable(cmd)
	fmt.Fprintln(w, "#\tACCOUNT\tSTART\tEND\tQUERIED")
	for _, info := range infos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", info.Index, info.Name, info.Start, info.End, info.QueriedAt)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	rec, err := loadHistoryRecord(rt, args[0])
	if err != nil {
		return err
	}
	return printRecord(cmd, rec)
}

func runHistorySync(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	if err := rt.requireSync(); err != nil {
		return err
	}

	rec, err := loadHistoryRecord(rt, args[0])
	if err != nil {
		return err
	}

	ctx, _ := logging.EnsureCorrelationID(cmd.Context())
	return syncRecord(ctx, cmd, rt, rec, historyNotify)
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}

	result, err := report.Prune(rt.exporter.Dir(), time.Duration(pruneDays)*24*time.Hour, time.Now())
	if err != nil {
		return err
	}
	for _, e := range result.Removed {
		rt.logger.Debug("report pruned", "path", e.Path)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d report(s), kept %d.\n", len(result.Removed), result.Kept)
	return nil
}

// loadHistoryRecord accepts a 1-based listing number, a path, or a file
// name inside the reports directory.
func loadHistoryRecord(rt *appRuntime, ref string) (models.ReportRecord, error) {
	path, err := resolveHistoryRef(rt.exporter.Dir(), ref)
	if err != nil {
		return models.ReportRecord{}, err
	}
	return report.Load(path)
}

func resolveHistoryRef(dir, ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		entries, err := report.History(dir)
		if err != nil {
			return "", err
		}
		if n < 1 || n > len(entries) {
			return "", fmt.Errorf("no report #%d (history has %d)", n, len(entries))
		}
		return entries[n-1].Path, nil
	}

	if _, err := os.Stat(ref); err == nil {
		return ref, nil
	}
	candidate := filepath.Join(dir, ref)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("report file not found: %s", ref)
}
