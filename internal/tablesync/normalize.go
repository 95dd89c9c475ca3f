package tablesync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// NormalizeDate converts a date into the millisecond timestamp Bitable stores
// in date columns. Calendar dates are read in loc. Numeric input is taken as
// a timestamp: 10 digits are seconds, 13 or more are milliseconds. An
// 8-digit number is a YYYYMMDD date.
func NormalizeDate(value any, loc *time.Location) (int64, error) {
	if loc == nil {
		loc = time.Local
	}

	var s string
	switch v := value.(type) {
	case string:
		s = strings.TrimSpace(v)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatInt(int64(v), 10)
	case time.Time:
		return v.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("unsupported date value %v (%T)", value, value)
	}
	if s == "" {
		return 0, fmt.Errorf("empty date")
	}

	if isDigits(s) {
		switch {
		case len(s) == 8:
			// fall through to layout parsing
		case len(s) == 10:
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return 0, err
			}
			return n * 1000, nil
		case len(s) >= 13:
			return strconv.ParseInt(s, 10, 64)
		default:
			return 0, fmt.Errorf("unrecognized numeric date %q", s)
		}
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date %q", s)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var placeholderValues = map[string]bool{
	"":     true,
	"-":    true,
	"--":   true,
	"n/a":  true,
	"na":   true,
	"nan":  true,
	"null": true,
	"none": true,
}

// CleanNumber coerces a metric value into a float. It never fails:
// nil, placeholders and anything unparseable become 0. "12.5%" becomes
// 0.125 and thousands separators are ignored.
func CleanNumber(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case decimal.Decimal:
		f, _ := v.Float64()
		return f
	case string:
		return cleanString(v)
	default:
		return cleanString(fmt.Sprint(v))
	}
}

func cleanString(raw string) float64 {
	s := strings.TrimSpace(raw)
	if placeholderValues[strings.ToLower(s)] {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	percent := strings.HasSuffix(s, "%")
	if percent {
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	if percent {
		d = d.Div(decimal.NewFromInt(100))
	}
	f, _ := d.Float64()
	return f
}
