package tablesync

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"南椿序写真馆", "南椿序写真馆"},
		{"Studio (Beijing) #2", "StudioBeijing2"},
		{"a-b_c.d", "abcd"},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "南椿序写真馆_1767494969", TableName("南椿序写真馆", "1767494969", 90))
	assert.Equal(t, "南椿序写真馆_1767494969", TableName("南椿序·写真馆!", "1767494969", 0))
}

func TestTableName_TruncatesNameOnly(t *testing.T) {
	long := strings.Repeat("长", 120)
	id := "1767494969"

	got := TableName(long, id, 90)
	assert.True(t, strings.HasSuffix(got, "_"+id))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 90)
	assert.Equal(t, strings.Repeat("长", 50)+"_"+id, got)
}

func TestTableName_ShortLimitKeepsID(t *testing.T) {
	id := "1767494969"
	got := TableName(strings.Repeat("x", 40), id, 20)
	assert.Equal(t, strings.Repeat("x", 9)+"_"+id, got)

	got = TableName("name", id, 5)
	assert.Equal(t, "_"+id, got)
}

func TestNamePrefix(t *testing.T) {
	assert.Equal(t, "Studio_", NamePrefix("Studio!"))
}
