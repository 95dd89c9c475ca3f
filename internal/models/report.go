package models

import "fmt"

// Column names shared by the remote table schema and the export files.
const (
	FieldAccountID   = "账户ID"
	FieldAccountName = "账户名称"
	FieldStartDate   = "开始日期"
	FieldEndDate     = "结束日期"
)

// MetricField maps an ad platform report field to its table column.
type MetricField struct {
	APIField string
	Column   string
}

// MetricFields is the fixed, ordered metric set of an account report.
var MetricFields = []MetricField{
	{APIField: "fee", Column: "消费"},
	{APIField: "impression", Column: "展现量"},
	{APIField: "click", Column: "点击量"},
	{APIField: "ctr", Column: "点击率"},
	{APIField: "acp", Column: "平均点击成本"},
	{APIField: "cpm", Column: "平均千次展现费用"},
	{APIField: "interaction", Column: "互动量"},
	{APIField: "message_consult", Column: "私信进线数"},
	{APIField: "message_consult_cpl", Column: "私信进线成本"},
	{APIField: "msg_leads_num", Column: "私信留资数"},
	{APIField: "msg_leads_cost", Column: "私信留资成本"},
	{APIField: "initiative_message", Column: "私信开口数"},
	{APIField: "message", Column: "私信开口条数"},
	{APIField: "initiative_message_cpl", Column: "私信开口成本"},
	{APIField: "message_fst_reply_time_avg", Column: "平均响应时长(分)"},
}

// MetricColumns returns the column names of MetricFields in order.
func MetricColumns() []string {
	cols := make([]string, len(MetricFields))
	for i, f := range MetricFields {
		cols[i] = f.Column
	}
	return cols
}

// ReportRecord is one account's metrics for a reporting period.
// Period bounds are kept as supplied; Metrics is keyed by column name.
type ReportRecord struct {
	AccountID   string
	AccountName string
	PeriodStart string
	PeriodEnd   string
	Metrics     map[string]any
}

// Validate checks if the record can be synced.
func (r *ReportRecord) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("account ID is required")
	}
	if r.AccountName == "" {
		return fmt.Errorf("account name is required")
	}
	if r.PeriodStart == "" || r.PeriodEnd == "" {
		return fmt.Errorf("period start and end are required")
	}
	return nil
}

// DedupKey identifies the row a record produces in its table.
func (r *ReportRecord) DedupKey() string {
	return r.AccountID + "|" + r.PeriodStart + "|" + r.PeriodEnd
}

// Metric returns the value for a column, or nil when absent.
func (r *ReportRecord) Metric(column string) any {
	if r.Metrics == nil {
		return nil
	}
	return r.Metrics[column]
}

// RecordFromFields rebuilds a record from a flat export document: the
// metadata columns fill the header and every other key becomes a metric.
func RecordFromFields(fields map[string]any) ReportRecord {
	rec := ReportRecord{Metrics: make(map[string]any, len(fields))}
	for k, v := range fields {
		switch k {
		case FieldAccountID:
			rec.AccountID = stringify(v)
		case FieldAccountName:
			rec.AccountName = stringify(v)
		case FieldStartDate:
			rec.PeriodStart = stringify(v)
		case FieldEndDate:
			rec.PeriodEnd = stringify(v)
		default:
			rec.Metrics[k] = v
		}
	}
	return rec
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
