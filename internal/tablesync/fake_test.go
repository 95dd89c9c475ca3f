package tablesync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redadsync/redadsync/internal/bitable"
)

// fakeTables is an in-memory Bitable app.
type fakeTables struct {
	mu       sync.Mutex
	tables   []bitable.Table
	rows     map[string][]bitable.Record
	schemas  map[string][]bitable.Field
	nextID   int
	listErr  error
	queryErr error
	// insertErrs are returned by successive InsertRecord calls.
	insertErrs []error

	listCalls   int
	createCalls int
	insertCalls int
	queryCalls  int
	apps        []string
}

func newFakeTables(existing ...bitable.Table) *fakeTables {
	return &fakeTables{
		tables:  existing,
		rows:    make(map[string][]bitable.Record),
		schemas: make(map[string][]bitable.Field),
	}
}

func (f *fakeTables) ListTables(ctx context.Context, appToken string) ([]bitable.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.apps = append(f.apps, appToken)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]bitable.Table(nil), f.tables...), nil
}

func (f *fakeTables) CreateTable(ctx context.Context, appToken, name string, fields []bitable.Field) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.nextID++
	id := fmt.Sprintf("tblNew%d", f.nextID)
	f.tables = append(f.tables, bitable.Table{ID: id, Name: name})
	f.schemas[id] = fields
	return id, nil
}

func (f *fakeTables) QueryRecords(ctx context.Context, appToken, tableID, filter string) ([]bitable.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []bitable.Record
	for _, r := range f.rows[tableID] {
		name, _ := r.Fields["账户名称"].(string)
		if filter == "" || strings.Contains(filter, `"`+name+`"`) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeTables) InsertRecord(ctx context.Context, appToken, tableID string, fields map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if len(f.insertErrs) > 0 {
		err := f.insertErrs[0]
		f.insertErrs = f.insertErrs[1:]
		if err != nil {
			return "", err
		}
	}
	stored := make(map[string]any, len(fields))
	for k, v := range fields {
		// The API returns numbers as JSON floats.
		if n, ok := v.(int64); ok {
			stored[k] = float64(n)
			continue
		}
		stored[k] = v
	}
	id := fmt.Sprintf("rec%d", len(f.rows[tableID])+1)
	f.rows[tableID] = append(f.rows[tableID], bitable.Record{ID: id, Fields: stored})
	return id, nil
}

func (f *fakeTables) rowCount(tableID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows[tableID])
}

type fakeCreds struct {
	err   error
	calls int
}

func (f *fakeCreds) GetValidCredential(ctx context.Context, accountID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "access-" + accountID, nil
}
