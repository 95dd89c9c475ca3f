package bitable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/redadsync/redadsync/internal/httpclient"
)

// APIError is a failure reported by the Bitable API. Msg carries the remote
// message verbatim, e.g. "TableIdNotFound".
type APIError = httpclient.APIError

// FieldType is a Bitable column type.
type FieldType int

const (
	FieldText   FieldType = 1
	FieldNumber FieldType = 2
	FieldDate   FieldType = 5
)

// DefaultViewName is the name given to the first view of created tables.
const DefaultViewName = "默认视图"

const pageSize = 100

// invalidTokenCodes mean the tenant token was rejected and must be refetched.
var invalidTokenCodes = map[int64]bool{
	99991661: true,
	99991663: true,
	99991668: true,
}

// Table is a table inside a Bitable app.
type Table struct {
	ID   string
	Name string
}

// Field describes a column for table creation.
type Field struct {
	Name string    `json:"field_name"`
	Type FieldType `json:"type"`
}

// Record is a row with its decoded field values. Numbers decode as float64.
type Record struct {
	ID     string
	Fields map[string]any
}

// Client talks to the Bitable open API of one Feishu tenant.
type Client struct {
	http    *httpclient.Client
	baseURL string
	tokens  TokenProvider
}

// NewClient creates a Client.
func NewClient(httpc *httpclient.Client, baseURL string, tokens TokenProvider) *Client {
	return &Client{
		http:    httpc,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
	}
}

// ListTables returns every table in the app, following pagination, in the
// order the API lists them.
func (c *Client) ListTables(ctx context.Context, appToken string) ([]Table, error) {
	var tables []Table
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(pageSize))
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		root, err := c.call(ctx, http.MethodGet, c.tablesURL(appToken)+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		root.Get("data.items").ForEach(func(_, v gjson.Result) bool {
			tables = append(tables, Table{
				ID:   v.Get("table_id").String(),
				Name: v.Get("name").String(),
			})
			return true
		})

		pageToken = root.Get("data.page_token").String()
		if !root.Get("data.has_more").Bool() || pageToken == "" {
			return tables, nil
		}
	}
}

// CreateTable creates a table with the given columns and returns its id.
func (c *Client) CreateTable(ctx context.Context, appToken, name string, fields []Field) (string, error) {
	payload := map[string]any{
		"table": map[string]any{
			"name":              name,
			"default_view_name": DefaultViewName,
			"fields":            fields,
		},
	}
	root, err := c.call(ctx, http.MethodPost, c.tablesURL(appToken), payload)
	if err != nil {
		return "", err
	}
	id := root.Get("data.table_id").String()
	if id == "" {
		return "", fmt.Errorf("create table %q: response has no table_id", name)
	}
	return id, nil
}

// QueryRecords returns all records matching filter, a Bitable filter formula.
func (c *Client) QueryRecords(ctx context.Context, appToken, tableID, filter string) ([]Record, error) {
	var records []Record
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("page_size", fmt.Sprint(pageSize))
		if filter != "" {
			q.Set("filter", filter)
		}
		if pageToken != "" {
			q.Set("page_token", pageToken)
		}
		root, err := c.call(ctx, http.MethodGet, c.recordsURL(appToken, tableID)+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		root.Get("data.items").ForEach(func(_, v gjson.Result) bool {
			fields, _ := v.Get("fields").Value().(map[string]any)
			records = append(records, Record{
				ID:     v.Get("record_id").String(),
				Fields: fields,
			})
			return true
		})

		pageToken = root.Get("data.page_token").String()
		if !root.Get("data.has_more").Bool() || pageToken == "" {
			return records, nil
		}
	}
}

// InsertRecord appends one row and returns its record id.
func (c *Client) InsertRecord(ctx context.Context, appToken, tableID string, fields map[string]any) (string, error) {
	root, err := c.call(ctx, http.MethodPost, c.recordsURL(appToken, tableID), map[string]any{"fields": fields})
	if err != nil {
		return "", err
	}
	return root.Get("data.record.record_id").String(), nil
}

// EqualsFilter builds a filter formula matching rows whose field equals value.
func EqualsFilter(field, value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return fmt.Sprintf(`CurrentValue.[%s] = "%s"`, field, escaped)
}

func (c *Client) tablesURL(appToken string) string {
	return fmt.Sprintf("%s/open-apis/bitable/v1/apps/%s/tables", c.baseURL, url.PathEscape(appToken))
}

func (c *Client) recordsURL(appToken, tableID string) string {
	return fmt.Sprintf("%s/%s/records", c.tablesURL(appToken), url.PathEscape(tableID))
}

func (c *Client) call(ctx context.Context, method, endpoint string, payload any) (gjson.Result, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return gjson.Result{}, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshal payload: %w", err)
		}
	}

	resp, err := c.http.DoJSON(ctx, method, endpoint, map[string]string{"Authorization": "Bearer " + token}, body)
	if err != nil {
		return gjson.Result{}, err
	}
	root, err := httpclient.DecodeEnvelope(resp)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && invalidTokenCodes[apiErr.Code] {
			if inv, ok := c.tokens.(interface{ Invalidate() }); ok {
				inv.Invalidate()
			}
		}
		return gjson.Result{}, err
	}
	return root, nil
}
