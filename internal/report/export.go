package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/store"
)

const exportTimeLayout = "20060102_1504"

// Exporter writes reports as JSON documents into a directory.
type Exporter struct {
	dir string
	now func() time.Time
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// Export writes rec and returns the file path. The document holds the
// account metadata followed by the metrics in report order, so it can be
// synced again later without the file name.
func (e *Exporter) Export(rec models.ReportRecord) (string, error) {
	doc, err := Document(rec)
	if err != nil {
		return "", err
	}
	path := filepath.Join(e.dir, ExportFilename(rec, e.now()))
	if err := store.WriteFileAtomic(path, doc, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Document renders rec as an indented JSON object with stable key order.
func Document(rec models.ReportRecord) ([]byte, error) {
	doc := []byte(`{}`)
	set := func(key string, value any) error {
		var err error
		doc, err = sjson.SetBytes(doc, escapeKey(key), value)
		return err
	}

	meta := []struct {
		key   string
		value string
	}{
		{models.FieldAccountID, rec.AccountID},
		{models.FieldAccountName, rec.AccountName},
		{models.FieldStartDate, rec.PeriodStart},
		{models.FieldEndDate, rec.PeriodEnd},
	}
	for _, m := range meta {
		if err := set(m.key, m.value); err != nil {
			return nil, fmt.Errorf("render %s: %w", m.key, err)
		}
	}

	seen := make(map[string]bool, len(models.MetricFields))
	for _, m := range models.MetricFields {
		seen[m.Column] = true
		value := rec.Metric(m.Column)
		if value == nil {
			value = 0
		}
		if err := set(m.Column, value); err != nil {
			return nil, fmt.Errorf("render %s: %w", m.Column, err)
		}
	}
	for k, v := range rec.Metrics {
		if seen[k] {
			continue
		}
		if err := set(k, v); err != nil {
			return nil, fmt.Errorf("render %s: %w", k, err)
		}
	}

	return pretty.PrettyOptions(doc, &pretty.Options{Indent: "    ", Width: 80}), nil
}

// ExportFilename is "{name}_{start}_{end}_{YYYYmmdd_HHMM}.json" with every
// character of the name that is not a letter or digit replaced by "_".
func ExportFilename(rec models.ReportRecord, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s.json",
		safeName(rec.AccountName),
		strings.ReplaceAll(rec.PeriodStart, "-", ""),
		strings.ReplaceAll(rec.PeriodEnd, "-", ""),
		at.Format(exportTimeLayout))
}

func safeName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
}

// escapeKey quotes characters that sjson treats as path syntax.
func escapeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '!', '\\', ':':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
