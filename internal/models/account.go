package models

import "fmt"

// TableBinding maps an advertiser account to its remote table.
// An empty TableID means the binding is unresolved.
type TableBinding struct {
	AccountID  string `json:"-"`
	NameRemark string `json:"name_remark"`
	AppToken   string `json:"app_token,omitempty"`
	TableID    string `json:"table_id"`
}

// Validate checks if the binding is valid.
func (b *TableBinding) Validate() error {
	if b.AccountID == "" {
		return fmt.Errorf("account ID is required")
	}
	return nil
}

// Resolved reports whether the binding points at a table.
func (b *TableBinding) Resolved() bool {
	return b.TableID != ""
}

// AppTokenOr returns the binding's app token, or fallback when none is set.
func (b *TableBinding) AppTokenOr(fallback string) string {
	if b.AppToken != "" {
		return b.AppToken
	}
	return fallback
}
