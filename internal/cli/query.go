package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/report"
	"github.com/redadsync/redadsync/internal/tablesync"
)

var queryFlags struct {
	preset   string
	start    string
	end      string
	sync     bool
	notify   bool
	noExport bool
}

var queryCmd = &cobra.Command{
	Use:   "query [account]",
	Short: "Fetch, export and optionally sync a report",
	Long: `Fetch the offline account report for a date range, print it and save
it under data_dir/reports.

Ranges: yesterday (default), 7d, 14d, or a custom --start/--end given as
YYYYMMDD or YYYY-MM-DD. Presets end yesterday.

Example:
  redadsync query
  redadsync query "My Shop" --range 7d --sync
  redadsync query 1234567890 --start 20240101 --end 20240107 --notify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryFlags.preset, "range", report.PresetYesterday, "Preset range: yesterday, 7d or 14d")
	queryCmd.Flags().StringVar(&queryFlags.start, "start", "", "Custom range start (YYYYMMDD or YYYY-MM-DD)")
	queryCmd.Flags().StringVar(&queryFlags.end, "end", "", "Custom range end (YYYYMMDD or YYYY-MM-DD)")
	queryCmd.Flags().BoolVar(&queryFlags.sync, "sync", false, "Append the report to the account table")
	queryCmd.Flags().BoolVar(&queryFlags.notify, "notify", false, "Send the report to Telegram")
	queryCmd.Flags().BoolVar(&queryFlags.noExport, "no-export", false, "Do not save the report file")
	RootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	if queryFlags.sync {
		if err := rt.requireSync(); err != nil {
			return err
		}
	}

	b, err := rt.findAccount(optionalArg(args))
	if err != nil {
		return err
	}

	r, err := queryRange(time.Now().In(rt.loc), rt.loc)
	if err != nil {
		return err
	}

	ctx, _ := logging.EnsureCorrelationID(cmd.Context())
	rec, err := rt.fetcher.Fetch(ctx, models.Advertiser{ID: b.AdvertiserID, Name: b.DisplayName()}, r)
	if stderrors.Is(err, report.ErrNoData) {
		fmt.Fprintf(cmd.OutOrStdout(), "No data for %s in %s\n", b.DisplayName(), r)
		return nil
	}
	if err != nil {
		return err
	}

	if err := printRecord(cmd, *rec); err != nil {
		return err
	}

	if !queryFlags.noExport {
		path, err := rt.exporter.Export(*rec)
		if err != nil {
			return err
		}
		if !globalFlags.JSON {
			fmt.Fprintf(cmd.OutOrStdout(), "\nSaved to %s\n", path)
		}
	}

	if queryFlags.notify {
		notifyReport(ctx, rt, *rec)
	}

	if queryFlags.sync {
		return syncRecord(ctx, cmd, rt, *rec, queryFlags.notify)
	}
	return nil
}

func queryRange(now time.Time, loc *time.Location) (report.DateRange, error) {
	if queryFlags.start != "" || queryFlags.end != "" {
		if queryFlags.start == "" || queryFlags.end == "" {
			return report.DateRange{}, fmt.Errorf("--start and --end must be given together")
		}
		return report.ParseRange(queryFlags.start, queryFlags.end, loc)
	}
	return report.PresetRange(queryFlags.preset, now)
}

// printRecord writes the report as text, or as the export document with --json.
func printRecord(cmd *cobra.Command, rec models.ReportRecord) error {
	out := cmd.OutOrStdout()
	if globalFlags.JSON {
		doc, err := report.Document(rec)
		if err != nil {
			return err
		}
		_, err = out.Write(doc)
		return err
	}

	fmt.Fprintf(out, "%s (%s)\n", rec.AccountName, rec.AccountID)
	fmt.Fprintf(out, "Period: %s ~ %s\n\n", rec.PeriodStart, rec.PeriodEnd)
	w := newTable(cmd)
	for _, m := range models.MetricFields {
		fmt.Fprintf(w, "%s\t%s\n", m.Column, formatMetric(rec.Metric(m.Column)))
	}
	return w.Flush()
}

func formatMetric(v any) string {
	switch t := v.(type) {
	case nil:
		return "0"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%.2f", t)
	default:
		return fmt.Sprint(t)
	}
}

// syncRecord runs the Coordinator and prints the outcome. A failed outcome
// is returned as an error so the exit code reflects it.
func syncRecord(ctx context.Context, cmd *cobra.Command, rt *appRuntime, rec models.ReportRecord, notify bool) error {
	out := rt.coordinator.Sync(ctx, rec)

	if globalFlags.JSON {
		if err := outputJSON(cmd, outcomeInfo(out)); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Sync: %s - %s\n", out.Status, out.Reason)
	}

	if notify {
		if err := rt.notifier.NotifyOutcome(ctx, rec, out); err != nil {
			rt.logger.WarnWithContext(ctx, "sync notification failed", "error", err)
		}
	}

	if out.Status == tablesync.StatusFailed {
		if out.Err != nil {
			return out.Err
		}
		return fmt.Errorf("%s", out.Reason)
	}
	return nil
}

func notifyReport(ctx context.Context, rt *appRuntime, rec models.ReportRecord) {
	if !rt.notifier.Enabled() {
		rt.logger.WarnWithContext(ctx, "telegram is disabled, report not sent")
		return
	}
	if err := rt.notifier.NotifyReport(ctx, rec); err != nil {
		rt.logger.WarnWithContext(ctx, "report notification failed", "error", err)
	}
}

// OutcomeInfo is the JSON form of a sync outcome.
type OutcomeInfo struct {
	Status   tablesync.Status `json:"status"`
	Reason   string           `json:"reason"`
	TableID  string           `json:"table_id,omitempty"`
	RecordID string           `json:"record_id,omitempty"`
}

func outcomeInfo(out tablesync.Outcome) OutcomeInfo {
	return OutcomeInfo{
		Status:   out.Status,
		Reason:   out.Reason,
		TableID:  out.TableID,
		RecordID: out.RecordID,
	}
}
