package report

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/models"
)

// Entry is an exported report file.
type Entry struct {
	Path      string
	Name      string
	Start     string
	End       string
	QueriedAt string
	ModTime   time.Time
}

// ParseFilename reads the account name, range and query time back out of
// an export file name. Names with fewer than five "_" separated parts are
// not exports.
func ParseFilename(name string) (Entry, bool) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 5 {
		return Entry{}, false
	}
	n := len(parts)
	return Entry{
		Path:      name,
		Name:      strings.Join(parts[:n-4], "_"),
		Start:     parts[n-4],
		End:       parts[n-3],
		QueriedAt: parts[n-2] + " " + parts[n-1],
	}, true
}

// History lists exports, newest first. A missing directory is empty.
func History(dir string) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(matches))
	for _, path := range matches {
		entry, ok := ParseFilename(path)
		if !ok {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entry.Path = path
		entry.ModTime = info.ModTime()
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

// Load reads an export back into a record. Metadata stored in the document
// wins; the file name is only used for old exports without it. The account
// id has no fallback because file names never carried it.
func Load(path string) (models.ReportRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ReportRecord{}, &errors.ErrFileRead{Path: path, Err: err}
	}

	fields, ok := gjson.ParseBytes(data).Value().(map[string]any)
	if !gjson.ValidBytes(data) || !ok {
		return models.ReportRecord{}, &errors.ErrFileRead{Path: path, Err: stderrors.New("not a JSON object")}
	}

	rec := models.RecordFromFields(fields)
	if rec.AccountID == "" {
		return models.ReportRecord{}, fmt.Errorf("%s has no %s; query the report again", filepath.Base(path), models.FieldAccountID)
	}

	if rec.AccountName == "" || rec.PeriodStart == "" {
		entry, ok := ParseFilename(path)
		if !ok {
			return models.ReportRecord{}, fmt.Errorf("%s has no metadata and an unrecognized name", filepath.Base(path))
		}
		rec.AccountName = entry.Name
		rec.PeriodStart = entry.Start
		rec.PeriodEnd = entry.End
	}
	return rec, nil
}
