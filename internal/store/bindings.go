package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/models"
)

// FileBindingStore keeps table bindings in one JSON document keyed by
// account id. Documents that nest the mapping under "account_mapping" are
// read as well, and writes to them replace only that key.
type FileBindingStore struct {
	mu   sync.Mutex
	path string
}

// NewFileBindingStore creates a store backed by path.
func NewFileBindingStore(path string) *FileBindingStore {
	return &FileBindingStore{path: path}
}

// Path returns the backing document.
func (s *FileBindingStore) Path() string {
	return s.path
}

// GetBinding retrieves a binding by account id
func (s *FileBindingStore) GetBinding(accountID string) (*models.TableBinding, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, false, err
	}
	b, ok := all[accountID]
	if !ok {
		return nil, false, nil
	}
	return &b, true, nil
}

// SaveBinding inserts or replaces a binding
func (s *FileBindingStore) SaveBinding(binding models.TableBinding) error {
	if err := binding.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[binding.AccountID] = binding
	return s.write(all)
}

// ListBindings returns all bindings ordered by account id.
func (s *FileBindingStore) ListBindings() ([]models.TableBinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	result := make([]models.TableBinding, 0, len(all))
	for _, b := range all {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccountID < result[j].AccountID
	})
	return result, nil
}

// ClearTableID marks the binding unresolved. A missing binding is a no-op.
func (s *FileBindingStore) ClearTableID(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	b, ok := all[accountID]
	if !ok || b.TableID == "" {
		return nil
	}
	b.TableID = ""
	all[accountID] = b
	return s.write(all)
}

func (s *FileBindingStore) load() (map[string]models.TableBinding, error) {
	data, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	bindings, err := decodeBindings(data)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: s.path, Err: err}
	}
	return bindings, nil
}

func (s *FileBindingStore) write(all map[string]models.TableBinding) error {
	mapping, err := json.Marshal(all)
	if err != nil {
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}

	current, err := readDocument(s.path)
	if err != nil {
		return err
	}
	doc, perm := mapping, os.FileMode(0o644)
	if gjson.GetBytes(current, "account_mapping").IsObject() {
		// The nested document also holds the Feishu app credentials.
		doc, err = sjson.SetRawBytes(current, "account_mapping", mapping)
		if err != nil {
			return &errors.ErrFileWrite{Path: s.path, Err: err}
		}
		perm = 0o600
	}
	return WriteFileAtomic(s.path, pretty.Pretty(doc), perm)
}

func decodeBindings(data []byte) (map[string]models.TableBinding, error) {
	out := make(map[string]models.TableBinding)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("bindings document is not valid JSON")
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("bindings document must be an object")
	}
	if nested := root.Get("account_mapping"); nested.IsObject() {
		root = nested
	}

	root.ForEach(func(k, v gjson.Result) bool {
		if !v.IsObject() {
			return true
		}
		out[k.String()] = models.TableBinding{
			AccountID:  k.String(),
			NameRemark: v.Get("name_remark").String(),
			AppToken:   v.Get("app_token").String(),
			TableID:    v.Get("table_id").String(),
		}
		return true
	})
	return out, nil
}
