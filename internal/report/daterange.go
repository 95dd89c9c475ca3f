package report

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Range presets accepted by the query command.
const (
	PresetYesterday = "yesterday"
	PresetLast7     = "7d"
	PresetLast14    = "14d"
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// StartString formats the first day as YYYY-MM-DD.
func (r DateRange) StartString() string { return r.Start.Format(dateLayout) }

// EndString formats the last day as YYYY-MM-DD.
func (r DateRange) EndString() string { return r.End.Format(dateLayout) }

func (r DateRange) String() string {
	return r.StartString() + " ~ " + r.EndString()
}

// PresetRange returns the range for a preset relative to now. Presets
// always end yesterday because offline data for today is not final.
func PresetRange(preset string, now time.Time) (DateRange, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterday := today.AddDate(0, 0, -1)

	switch strings.ToLower(strings.TrimSpace(preset)) {
	case "", PresetYesterday:
		return DateRange{Start: yesterday, End: yesterday}, nil
	case PresetLast7:
		return DateRange{Start: yesterday.AddDate(0, 0, -6), End: yesterday}, nil
	case PresetLast14:
		return DateRange{Start: yesterday.AddDate(0, 0, -13), End: yesterday}, nil
	}
	return DateRange{}, fmt.Errorf("unknown range %q (want %s, %s or %s)", preset, PresetYesterday, PresetLast7, PresetLast14)
}

// ParseRange parses a custom range given as YYYYMMDD or YYYY-MM-DD.
func ParseRange(start, end string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.Local
	}
	s, err := parseDay(start, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("start: %w", err)
	}
	e, err := parseDay(end, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("end: %w", err)
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("end %s is before start %s", e.Format(dateLayout), s.Format(dateLayout))
	}
	return DateRange{Start: s, End: e}, nil
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := dateLayout
	if len(s) == 8 && !strings.Contains(s, "-") {
		layout = "20060102"
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use 20240101 or 2024-01-01)", s)
	}
	return t, nil
}
