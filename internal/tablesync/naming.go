package tablesync

import (
	"strings"
	"unicode"
)

// DefaultNameLimit is the longest table name Bitable accepts.
const DefaultNameLimit = 90

// maxNameRunes caps the account-name part of a truncated table name.
const maxNameRunes = 50

// SanitizeName keeps only letters and digits of an account name.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TableName returns the table name for an account: "{sanitized}_{id}".
// When that exceeds limit runes only the name part is shortened, so the
// id suffix is always kept verbatim.
func TableName(accountName, accountID string, limit int) string {
	if limit <= 0 {
		limit = DefaultNameLimit
	}
	clean := []rune(SanitizeName(accountName))
	full := string(clean) + "_" + accountID
	if len([]rune(full)) <= limit {
		return full
	}

	keep := limit - 1 - len([]rune(accountID))
	if keep > maxNameRunes {
		keep = maxNameRunes
	}
	if keep < 0 {
		keep = 0
	}
	return string(clean[:keep]) + "_" + accountID
}

// NamePrefix is the prefix shared by every table name of an account name,
// including ones created under older naming rules.
func NamePrefix(accountName string) string {
	return SanitizeName(accountName) + "_"
}
