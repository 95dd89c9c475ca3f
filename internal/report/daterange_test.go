package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetRange(t *testing.T) {
	now := time.Date(2024, 3, 1, 11, 30, 0, 0, time.UTC)

	tests := []struct {
		preset string
		start  string
		end    string
	}{
		{"yesterday", "2024-02-29", "2024-02-29"},
		{"", "2024-02-29", "2024-02-29"},
		{"7d", "2024-02-23", "2024-02-29"},
		{"14D", "2024-02-16", "2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			r, err := PresetRange(tt.preset, now)
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.StartString())
			assert.Equal(t, tt.end, r.EndString())
		})
	}

	_, err := PresetRange("30d", now)
	assert.Error(t, err)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("20240101", "2024-01-07", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01 ~ 2024-01-07", r.String())

	_, err = ParseRange("2024-01-07", "2024-01-01", time.UTC)
	assert.ErrorContains(t, err, "before start")

	_, err = ParseRange("01/01/2024", "2024-01-07", time.UTC)
	assert.ErrorContains(t, err, "start")
}
