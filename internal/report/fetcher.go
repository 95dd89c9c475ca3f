package report

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/redadsync/redadsync/internal/httpclient"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/metrics"
	"github.com/redadsync/redadsync/internal/models"
)

const offlineAccountReportPath = "/api/open/jg/data/report/offline/account"

// ErrNoData means the account had no spend in the range, or the offline
// data has not been produced yet.
var ErrNoData = stderrors.New("no report data for this range")

// CredentialSource yields a valid access token for an advertiser.
type CredentialSource interface {
	GetValidCredential(ctx context.Context, accountID string) (string, error)
}

// Fetcher pulls the offline account report.
type Fetcher struct {
	client  *httpclient.Client
	baseURL string
	creds   CredentialSource
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewFetcher creates a Fetcher. logger and m may be nil.
func NewFetcher(client *httpclient.Client, baseURL string, creds CredentialSource, logger *logging.Logger, m *metrics.Metrics) *Fetcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Fetcher{
		client:  client,
		baseURL: baseURL,
		creds:   creds,
		logger:  logger.With("component", "report"),
		metrics: m,
	}
}

// Fetch returns the summary report of one advertiser for r. Metrics are
// keyed by column name; fields missing from the response are 0.
func (f *Fetcher) Fetch(ctx context.Context, adv models.Advertiser, r DateRange) (*models.ReportRecord, error) {
	rec, err := f.fetch(ctx, adv, r)
	switch {
	case err == nil:
		f.metrics.RecordReportFetch("success")
	case stderrors.Is(err, ErrNoData):
		f.metrics.RecordReportFetch("empty")
	default:
		f.metrics.RecordReportFetch("error")
	}
	return rec, err
}

func (f *Fetcher) fetch(ctx context.Context, adv models.Advertiser, r DateRange) (*models.ReportRecord, error) {
	token, err := f.creds.GetValidCredential(ctx, adv.ID)
	if err != nil {
		return nil, err
	}

	payload, err := reportPayload(adv.ID, r)
	if err != nil {
		return nil, err
	}

	f.logger.InfoWithContext(ctx, "fetching report", "account_id", adv.ID, "start", r.StartString(), "end", r.EndString())
	resp, err := f.client.DoJSON(ctx, http.MethodPost, f.baseURL+offlineAccountReportPath,
		map[string]string{"Access-Token": token}, payload)
	if err != nil {
		return nil, fmt.Errorf("report request: %w", err)
	}
	root, err := httpclient.DecodeEnvelope(resp)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	row := root.Get("data.data_list.0")
	if !row.Exists() {
		return nil, ErrNoData
	}

	rec := &models.ReportRecord{
		AccountID:   adv.ID,
		AccountName: adv.Name,
		PeriodStart: r.StartString(),
		PeriodEnd:   r.EndString(),
		Metrics:     make(map[string]any, len(models.MetricFields)),
	}
	for _, m := range models.MetricFields {
		rec.Metrics[m.Column] = metricValue(row.Get(m.APIField))
	}
	return rec, nil
}

func reportPayload(advertiserID string, r DateRange) ([]byte, error) {
	body := []byte(`{}`)
	steps := []struct {
		path  string
		value any
	}{
		{"advertiser_id", advertiserID},
		{"start_date", r.StartString()},
		{"end_date", r.EndString()},
		{"time_unit", "SUMMARY"},
		{"sort_column", "fee"},
		{"sort", "desc"},
		{"page_num", 1},
		{"page_size", 1},
	}
	var err error
	for _, s := range steps {
		if body, err = sjson.SetBytes(body, s.path, s.value); err != nil {
			return nil, fmt.Errorf("build report payload: %w", err)
		}
	}
	return body, nil
}

// metricValue keeps what the API sent: numbers as float64, strings such
// as "12.5%" as is.
func metricValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	case gjson.Null:
		return float64(0)
	}
	return v.Value()
}
