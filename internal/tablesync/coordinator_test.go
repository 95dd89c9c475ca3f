package tablesync

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redadsync/redadsync/internal/bitable"
	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/metrics"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/store"
)

type coordinatorFixture struct {
	tables   *fakeTables
	bindings *store.MemoryStore
	creds    *fakeCreds
	metrics  *metrics.Metrics
	coord    *Coordinator
}

func newCoordinatorFixture(existing ...bitable.Table) *coordinatorFixture {
	f := &coordinatorFixture{
		tables:   newFakeTables(existing...),
		bindings: store.NewMemoryStore(),
		creds:    &fakeCreds{},
		metrics:  metrics.NewMetrics("test"),
	}
	opts := Options{DefaultAppToken: testApp, Location: time.UTC, Metrics: f.metrics}
	resolver := NewResolver(f.tables, f.bindings, opts)
	f.coord = NewCoordinator(resolver, f.tables, f.creds, opts)
	return f
}

func counter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func sampleRecord() models.ReportRecord {
	return models.ReportRecord{
		AccountID:   testID,
		AccountName: testName,
		PeriodStart: "2024-01-01",
		PeriodEnd:   "20240107",
		Metrics: map[string]any{
			"消费":   "1,234.5",
			"点击率":  "12.5%",
			"展现量":  float64(9000),
			"私信进线数": "N/A",
		},
	}
}

func TestSync_ThenDuplicate(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()

	first := f.coord.Sync(ctx, sampleRecord())
	require.Equal(t, StatusSynced, first.Status, first.Reason)
	assert.True(t, first.OK())
	assert.NotEmpty(t, first.TableID)
	assert.Equal(t, 1, f.tables.rowCount(first.TableID))

	second := f.coord.Sync(ctx, sampleRecord())
	assert.Equal(t, StatusSkippedDuplicate, second.Status)
	assert.True(t, second.OK())
	assert.NoError(t, second.Err)
	assert.Equal(t, 1, f.tables.rowCount(first.TableID), "duplicate must not add a row")
	assert.Equal(t, 1, f.tables.createCalls)

	// Same range written in another date format is still the same row.
	rec := sampleRecord()
	rec.PeriodStart = "20240101"
	rec.PeriodEnd = "2024-01-07"
	assert.Equal(t, StatusSkippedDuplicate, f.coord.Sync(ctx, rec).Status)

	assert.Equal(t, float64(1), counter(t, f.metrics.SyncOutcomes.WithLabelValues(string(StatusSynced))))
	assert.Equal(t, float64(2), counter(t, f.metrics.SyncOutcomes.WithLabelValues(string(StatusSkippedDuplicate))))
}

func TestSync_DifferentPeriodIsNotDuplicate(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()

	first := f.coord.Sync(ctx, sampleRecord())
	require.Equal(t, StatusSynced, first.Status)

	rec := sampleRecord()
	rec.PeriodEnd = "2024-01-08"
	assert.Equal(t, StatusSynced, f.coord.Sync(ctx, rec).Status)
	assert.Equal(t, 2, f.tables.rowCount(first.TableID))
}

func TestSync_RowFields(t *testing.T) {
	f := newCoordinatorFixture()
	out := f.coord.Sync(context.Background(), sampleRecord())
	require.Equal(t, StatusSynced, out.Status)

	row := f.tables.rows[out.TableID][0].Fields
	assert.Equal(t, testName, row[models.FieldAccountName])
	assert.Equal(t, float64(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()), row[models.FieldStartDate])
	assert.Equal(t, float64(time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC).UnixMilli()), row[models.FieldEndDate])
	assert.InDelta(t, 1234.5, row["消费"], 1e-9)
	assert.InDelta(t, 0.125, row["点击率"], 1e-9)
	assert.InDelta(t, 9000.0, row["展现量"], 1e-9)
	assert.InDelta(t, 0.0, row["私信进线数"], 1e-9)
	// Metrics absent from the record are written as zero.
	assert.InDelta(t, 0.0, row["私信开口成本"], 1e-9)
	assert.Len(t, row, 3+len(models.MetricFields))
}

func TestSync_SelfHealsStaleTableOnce(t *testing.T) {
	f := newCoordinatorFixture()
	require.NoError(t, f.bindings.SaveBinding(models.TableBinding{AccountID: testID, TableID: "tblDeleted"}))
	f.tables.insertErrs = []error{&bitable.APIError{Code: 1254041, Msg: "TableIdNotFound"}}

	out := f.coord.Sync(context.Background(), sampleRecord())
	require.Equal(t, StatusSynced, out.Status, out.Reason)
	assert.NotEqual(t, "tblDeleted", out.TableID)
	assert.Equal(t, 2, f.tables.insertCalls)
	assert.Equal(t, 1, f.tables.queryCalls, "duplicate check runs on the first attempt only")

	b, ok, err := f.bindings.GetBinding(testID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, out.TableID, b.TableID)
	assert.Equal(t, float64(1), counter(t, f.metrics.SelfHealRetries))
}

func TestSync_SecondStaleFailureIsTerminal(t *testing.T) {
	f := newCoordinatorFixture()
	stale := &bitable.APIError{Code: 1254041, Msg: "TableIdNotFound"}
	f.tables.insertErrs = []error{stale, stale, stale}

	out := f.coord.Sync(context.Background(), sampleRecord())
	assert.Equal(t, StatusFailed, out.Status)
	assert.False(t, out.OK())
	assert.Equal(t, 2, f.tables.insertCalls, "exactly one retry")

	var writeErr *errors.ErrRemoteWrite
	require.True(t, stderrors.As(out.Err, &writeErr))
	assert.Equal(t, "TableIdNotFound", writeErr.Message)
	assert.Contains(t, out.Reason, "TableIdNotFound")
}

func TestSync_OtherWriteErrorsAreNotRetried(t *testing.T) {
	f := newCoordinatorFixture()
	f.tables.insertErrs = []error{&bitable.APIError{Code: 1254290, Msg: "TooManyRequest"}}

	out := f.coord.Sync(context.Background(), sampleRecord())
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 1, f.tables.insertCalls)
	assert.Contains(t, out.Reason, "TooManyRequest")
}

func TestSync_FieldConversionTriggersSelfHeal(t *testing.T) {
	f := newCoordinatorFixture()
	f.tables.insertErrs = []error{&bitable.APIError{Code: 1254060, Msg: "TextFieldConvFail"}}

	out := f.coord.Sync(context.Background(), sampleRecord())
	assert.Equal(t, StatusSynced, out.Status)
	assert.Equal(t, 2, f.tables.insertCalls)
}

func TestSync_DedupQueryFailureStillWrites(t *testing.T) {
	f := newCoordinatorFixture()
	f.tables.queryErr = &bitable.APIError{Code: 1254000, Msg: "WrongRequestBody"}

	out := f.coord.Sync(context.Background(), sampleRecord())
	assert.Equal(t, StatusSynced, out.Status)
}

func TestSync_Failures(t *testing.T) {
	t.Run("no table", func(t *testing.T) {
		f := newCoordinatorFixture()
		f.tables.listErr = stderrors.New("connection refused")

		out := f.coord.Sync(context.Background(), sampleRecord())
		assert.Equal(t, StatusFailed, out.Status)
		assert.Contains(t, out.Reason, "no table")
		var resErr *errors.ErrTableResolution
		assert.True(t, stderrors.As(out.Err, &resErr))
		assert.Zero(t, f.tables.insertCalls)
	})

	t.Run("reauthorization required", func(t *testing.T) {
		f := newCoordinatorFixture()
		f.creds.err = &errors.ErrReauthorizationRequired{AccountID: testID}

		out := f.coord.Sync(context.Background(), sampleRecord())
		assert.Equal(t, StatusFailed, out.Status)
		var reauth *errors.ErrReauthorizationRequired
		assert.True(t, stderrors.As(out.Err, &reauth))
		assert.NotEmpty(t, out.Reason)
		assert.Zero(t, f.tables.insertCalls)
	})

	t.Run("bad date", func(t *testing.T) {
		f := newCoordinatorFixture()
		rec := sampleRecord()
		rec.PeriodStart = "last week"

		out := f.coord.Sync(context.Background(), rec)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Contains(t, out.Reason, "start date")
	})

	t.Run("reversed period", func(t *testing.T) {
		f := newCoordinatorFixture()
		rec := sampleRecord()
		rec.PeriodStart = "2024-02-01"
		rec.PeriodEnd = "2024-01-01"

		out := f.coord.Sync(context.Background(), rec)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Contains(t, out.Reason, "start date after end date")
		assert.Error(t, out.Err)
		assert.Zero(t, f.tables.insertCalls)
		assert.Zero(t, f.tables.queryCalls)
	})

	t.Run("invalid record", func(t *testing.T) {
		f := newCoordinatorFixture()
		rec := sampleRecord()
		rec.AccountID = ""

		out := f.coord.Sync(context.Background(), rec)
		assert.Equal(t, StatusFailed, out.Status)
		assert.Contains(t, out.Reason, "invalid record")
		assert.Zero(t, f.tables.listCalls)
	})
}
