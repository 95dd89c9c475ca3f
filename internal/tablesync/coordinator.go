package tablesync

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redadsync/redadsync/internal/bitable"
	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/models"
)

// Status is the result kind of a sync.
type Status string

const (
	StatusSynced           Status = "synced"
	StatusSkippedDuplicate Status = "skipped_duplicate"
	StatusFailed           Status = "failed"
)

// Outcome is the tagged result of Coordinator.Sync. Reason is always a
// readable sentence; Err holds the typed cause of a failure.
type Outcome struct {
	Status   Status
	Reason   string
	TableID  string
	RecordID string
	Err      error
}

// OK reports whether the record is present remotely after the sync.
func (o Outcome) OK() bool {
	return o.Status == StatusSynced || o.Status == StatusSkippedDuplicate
}

// CredentialChecker yields a valid access token for an account.
type CredentialChecker interface {
	GetValidCredential(ctx context.Context, accountID string) (string, error)
}

// staleTableMarkers are remote error fragments meaning the stored table
// no longer matches the remote one.
var staleTableMarkers = []string{
	"TableIdNotFound",
	"FieldConvFail",
	"ConvFail",
	"Range Not Found",
	"FieldIdNotFound",
}

// maxSelfHealRetries bounds how often a stale table is re-resolved per sync.
const maxSelfHealRetries = 1

// Coordinator writes report records into their account tables, at most
// one row per (account, period).
type Coordinator struct {
	resolver *Resolver
	tables   TableService
	creds    CredentialChecker
	opts     Options
	logger   *logging.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(resolver *Resolver, tables TableService, creds CredentialChecker, opts Options) *Coordinator {
	opts = opts.withDefaults()
	return &Coordinator{
		resolver: resolver,
		tables:   tables,
		creds:    creds,
		opts:     opts,
		logger:   opts.Logger.With("component", "sync"),
	}
}

// Sync writes rec into its account table unless a row for the same period
// already exists. When the write is rejected because the table is stale the
// binding is cleared and the whole sync runs once more without the
// duplicate check.
func (c *Coordinator) Sync(ctx context.Context, rec models.ReportRecord) Outcome {
	ctx, _ = logging.EnsureCorrelationID(ctx)

	var out Outcome
	if err := rec.Validate(); err != nil {
		out = failed(fmt.Sprintf("invalid record: %v", err), err)
	} else {
		out = c.sync(ctx, rec, 0)
	}

	c.opts.Metrics.RecordSyncOutcome(string(out.Status))
	switch out.Status {
	case StatusFailed:
		c.logger.ErrorWithContext(ctx, "sync failed", "account_id", rec.AccountID, "reason", out.Reason)
	default:
		c.logger.InfoWithContext(ctx, "sync finished", "account_id", rec.AccountID, "status", string(out.Status), "table_id", out.TableID)
	}
	return out
}

func (c *Coordinator) sync(ctx context.Context, rec models.ReportRecord, attempt int) Outcome {
	ref, err := c.resolver.ResolveTable(ctx, rec.AccountID, rec.AccountName)
	if err != nil {
		return failed(fmt.Sprintf("no table: %v", err), err)
	}

	if _, err := c.creds.GetValidCredential(ctx, rec.AccountID); err != nil {
		return failed(err.Error(), err)
	}

	start, err := NormalizeDate(rec.PeriodStart, c.opts.Location)
	if err != nil {
		return failed(fmt.Sprintf("start date: %v", err), err)
	}
	end, err := NormalizeDate(rec.PeriodEnd, c.opts.Location)
	if err != nil {
		return failed(fmt.Sprintf("end date: %v", err), err)
	}
	if start > end {
		err := fmt.Errorf("period %s~%s ends before it starts", rec.PeriodStart, rec.PeriodEnd)
		return failed("start date after end date", err)
	}

	if attempt == 0 && c.isDuplicate(ctx, ref, rec.AccountName, start, end) {
		return Outcome{
			Status:  StatusSkippedDuplicate,
			Reason:  fmt.Sprintf("%s %s~%s already synced", rec.AccountName, rec.PeriodStart, rec.PeriodEnd),
			TableID: ref.TableID,
		}
	}

	recordID, err := c.tables.InsertRecord(ctx, ref.AppToken, ref.TableID, rowFields(rec, start, end))
	if err == nil {
		return Outcome{
			Status:   StatusSynced,
			Reason:   fmt.Sprintf("%s %s~%s synced", rec.AccountName, rec.PeriodStart, rec.PeriodEnd),
			TableID:  ref.TableID,
			RecordID: recordID,
		}
	}

	if isStaleTable(err) && attempt < maxSelfHealRetries {
		c.logger.WarnWithContext(ctx, "table rejected write, resolving again",
			"account_id", rec.AccountID, "table_id", ref.TableID, "error", err)
		if cerr := c.resolver.Invalidate(rec.AccountID); cerr != nil {
			return failed(fmt.Sprintf("clear table binding: %v", cerr), cerr)
		}
		c.opts.Metrics.RecordSelfHealRetry()
		return c.sync(ctx, rec, attempt+1)
	}

	werr := &errors.ErrRemoteWrite{TableID: ref.TableID, Message: remoteMessage(err), Err: err}
	return failed(werr.Error(), werr)
}

// isDuplicate reports whether the table already holds a row for the
// account name and exact period. A failed query counts as no duplicate so
// that a stale table is detected by the write.
func (c *Coordinator) isDuplicate(ctx context.Context, ref TableRef, accountName string, start, end int64) bool {
	rows, err := c.tables.QueryRecords(ctx, ref.AppToken, ref.TableID, bitable.EqualsFilter(models.FieldAccountName, accountName))
	if err != nil {
		c.logger.WarnWithContext(ctx, "duplicate check failed", "table_id", ref.TableID, "error", err)
		return false
	}
	for _, row := range rows {
		rs, ok1 := millis(row.Fields[models.FieldStartDate])
		re, ok2 := millis(row.Fields[models.FieldEndDate])
		if ok1 && ok2 && rs == start && re == end {
			return true
		}
	}
	return false
}

func rowFields(rec models.ReportRecord, start, end int64) map[string]any {
	fields := map[string]any{
		models.FieldAccountName: rec.AccountName,
		models.FieldStartDate:   start,
		models.FieldEndDate:     end,
	}
	for _, m := range models.MetricFields {
		fields[m.Column] = CleanNumber(rec.Metric(m.Column))
	}
	return fields
}

func millis(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case int:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func isStaleTable(err error) bool {
	msg := err.Error()
	for _, marker := range staleTableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func remoteMessage(err error) string {
	var apiErr *bitable.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Msg
	}
	return ""
}

func failed(reason string, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}
