package notify

import (
	"fmt"
	"html"
	"strings"

	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/tablesync"
)

// formatReport renders a report the way it is shared with clients: a
// title, the period, then one metric per line.
func formatReport(rec models.ReportRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "⭐ <b>%s</b> ⭐聚光数据\n", html.EscapeString(rec.AccountName))
	fmt.Fprintf(&sb, "🎉数据周期: %s 至 %s\n\n", html.EscapeString(rec.PeriodStart), html.EscapeString(rec.PeriodEnd))
	for _, m := range models.MetricFields {
		fmt.Fprintf(&sb, "%s: %s\n", html.EscapeString(m.Column), html.EscapeString(formatValue(rec.Metric(m.Column))))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatValue(v any) string {
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

func outcomeEmoji(status tablesync.Status) string {
	switch status {
	case tablesync.StatusSynced:
		return "✅"
	case tablesync.StatusSkippedDuplicate:
		return "ℹ️"
	default:
		return "❌"
	}
}

// formatOutcome renders the result of a table sync.
func formatOutcome(rec models.ReportRecord, out tablesync.Outcome) string {
	return fmt.Sprintf("%s <b>%s</b> %s ~ %s\n%s",
		outcomeEmoji(out.Status),
		html.EscapeString(rec.AccountName),
		html.EscapeString(rec.PeriodStart),
		html.EscapeString(rec.PeriodEnd),
		html.EscapeString(out.Reason),
	)
}
