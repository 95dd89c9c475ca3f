package tablesync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redadsync/redadsync/internal/bitable"
	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/metrics"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/store"
)

// TableService is the part of the Bitable API the sync needs.
type TableService interface {
	ListTables(ctx context.Context, appToken string) ([]bitable.Table, error)
	CreateTable(ctx context.Context, appToken, name string, fields []bitable.Field) (string, error)
	QueryRecords(ctx context.Context, appToken, tableID, filter string) ([]bitable.Record, error)
	InsertRecord(ctx context.Context, appToken, tableID string, fields map[string]any) (string, error)
}

var _ TableService = (*bitable.Client)(nil)

// Where a TableRef came from.
const (
	SourceBinding = "binding"
	SourceExact   = "exact"
	SourcePrefix  = "prefix"
	SourceCreated = "created"
)

// TableRef identifies the table that receives an account's rows.
type TableRef struct {
	AppToken string
	TableID  string
	Source   string
}

// Options configures a Resolver or Coordinator.
type Options struct {
	// DefaultAppToken is the Bitable app used when a binding has none.
	DefaultAppToken string
	// NameLimit is the maximum table name length. Default: 90
	NameLimit int
	// Location is used to read calendar dates. Default: time.Local
	Location *time.Location
	Logger   *logging.Logger
	Metrics  *metrics.Metrics
}

func (o Options) withDefaults() Options {
	if o.NameLimit <= 0 {
		o.NameLimit = DefaultNameLimit
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// Resolver finds or provisions the table for an account. The local binding
// is a cache; the table listing is the source of truth.
type Resolver struct {
	tables   TableService
	bindings store.BindingStore
	opts     Options
	logger   *logging.Logger
}

// NewResolver creates a Resolver.
func NewResolver(tables TableService, bindings store.BindingStore, opts Options) *Resolver {
	opts = opts.withDefaults()
	return &Resolver{
		tables:   tables,
		bindings: bindings,
		opts:     opts,
		logger:   opts.Logger.With("component", "resolver"),
	}
}

// Schema returns the columns of a newly created account table.
func Schema() []bitable.Field {
	fields := []bitable.Field{
		{Name: models.FieldAccountName, Type: bitable.FieldText},
		{Name: models.FieldStartDate, Type: bitable.FieldDate},
		{Name: models.FieldEndDate, Type: bitable.FieldDate},
	}
	for _, m := range models.MetricFields {
		fields = append(fields, bitable.Field{Name: m.Column, Type: bitable.FieldNumber})
	}
	return fields
}

// ResolveTable returns the table for the account, cheapest source first:
// the stored binding, an exact name match in the app, the first table
// sharing the name prefix, and finally a newly created table. A table
// found remotely is stored in the binding before returning. Any failure is
// logged and returned as *errors.ErrTableResolution.
func (r *Resolver) ResolveTable(ctx context.Context, accountID, accountName string) (TableRef, error) {
	ref, err := r.resolve(ctx, accountID, accountName)
	if err != nil {
		r.logger.ErrorWithContext(ctx, "table resolution failed", "account_id", accountID, "error", err)
		r.opts.Metrics.RecordTableResolution("failed")
		return TableRef{}, &errors.ErrTableResolution{AccountID: accountID, Err: err}
	}
	r.opts.Metrics.RecordTableResolution(ref.Source)
	return ref, nil
}

func (r *Resolver) resolve(ctx context.Context, accountID, accountName string) (TableRef, error) {
	binding, ok, err := r.bindings.GetBinding(accountID)
	if err != nil {
		return TableRef{}, err
	}
	if !ok {
		binding = &models.TableBinding{AccountID: accountID}
	}

	if binding.Resolved() {
		if appToken := binding.AppTokenOr(r.opts.DefaultAppToken); appToken != "" {
			return TableRef{AppToken: appToken, TableID: binding.TableID, Source: SourceBinding}, nil
		}
	}

	// Discovery and creation always happen in the default app, so the
	// stored binding inherits it.
	if r.opts.DefaultAppToken == "" {
		return TableRef{}, fmt.Errorf("no bitable app configured (set feishu.default_app_token)")
	}
	ref, err := r.discover(ctx, r.opts.DefaultAppToken, accountID, accountName)
	if err != nil {
		return TableRef{}, err
	}

	binding.NameRemark = accountName
	binding.AppToken = ""
	binding.TableID = ref.TableID
	if err := r.bindings.SaveBinding(*binding); err != nil {
		// The table is usable; the next run finds it again by name.
		r.logger.WarnWithContext(ctx, "failed to store table binding", "account_id", accountID, "error", err)
	}
	return ref, nil
}

func (r *Resolver) discover(ctx context.Context, appToken, accountID, accountName string) (TableRef, error) {
	target := TableName(accountName, accountID, r.opts.NameLimit)
	full := SanitizeName(accountName) + "_" + accountID
	prefix := NamePrefix(accountName)

	tables, err := r.tables.ListTables(ctx, appToken)
	if err != nil {
		return TableRef{}, fmt.Errorf("list tables: %w", err)
	}

	for _, t := range tables {
		if t.Name == target || t.Name == full {
			r.logger.InfoWithContext(ctx, "found table by name", "account_id", accountID, "table", t.Name, "table_id", t.ID)
			return TableRef{AppToken: appToken, TableID: t.ID, Source: SourceExact}, nil
		}
	}

	if prefix != "_" {
		for _, t := range tables {
			if strings.HasPrefix(t.Name, prefix) {
				r.logger.InfoWithContext(ctx, "found table by prefix", "account_id", accountID, "table", t.Name, "table_id", t.ID)
				return TableRef{AppToken: appToken, TableID: t.ID, Source: SourcePrefix}, nil
			}
		}
	}

	id, err := r.tables.CreateTable(ctx, appToken, target, Schema())
	if err != nil {
		return TableRef{}, fmt.Errorf("create table %q: %w", target, err)
	}
	r.logger.InfoWithContext(ctx, "created table", "account_id", accountID, "table", target, "table_id", id)
	return TableRef{AppToken: appToken, TableID: id, Source: SourceCreated}, nil
}

// Invalidate clears the stored table id so the next resolution searches again.
func (r *Resolver) Invalidate(accountID string) error {
	return r.bindings.ClearTableID(accountID)
}
