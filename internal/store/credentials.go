package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/models"
)

// FileCredentialStore keeps all bundles in one JSON document, an object keyed
// by advertiser id. A legacy document holding a plain list of bundles is
// accepted on read and rewritten in the keyed form on the next mutation.
type FileCredentialStore struct {
	mu   sync.Mutex
	path string
}

// NewFileCredentialStore creates a store backed by path. The file is created lazily.
func NewFileCredentialStore(path string) *FileCredentialStore {
	return &FileCredentialStore{path: path}
}

// Path returns the backing document.
func (s *FileCredentialStore) Path() string {
	return s.path
}

// GetBundle retrieves a bundle by advertiser id
func (s *FileCredentialStore) GetBundle(advertiserID string) (*models.TokenBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, false, err
	}
	b, ok := all[advertiserID]
	if !ok {
		return nil, false, nil
	}
	return &b, true, nil
}

// SaveBundle inserts or replaces the bundle with the same advertiser id.
func (s *FileCredentialStore) SaveBundle(bundle models.TokenBundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	all[bundle.AdvertiserID] = bundle
	return s.write(all)
}

// ListBundles returns all bundles ordered by advertiser id.
func (s *FileCredentialStore) ListBundles() ([]models.TokenBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	result := make([]models.TokenBundle, 0, len(all))
	for _, b := range all {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AdvertiserID < result[j].AdvertiserID
	})
	return result, nil
}

// DeleteBundle removes a bundle
func (s *FileCredentialStore) DeleteBundle(advertiserID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := all[advertiserID]; !ok {
		return false, nil
	}
	delete(all, advertiserID)
	return true, s.write(all)
}

func (s *FileCredentialStore) load() (map[string]models.TokenBundle, error) {
	data, err := readDocument(s.path)
	if err != nil {
		return nil, err
	}
	bundles, err := decodeBundles(data)
	if err != nil {
		return nil, &errors.ErrFileRead{Path: s.path, Err: err}
	}
	return bundles, nil
}

func (s *FileCredentialStore) write(all map[string]models.TokenBundle) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return &errors.ErrFileWrite{Path: s.path, Err: err}
	}
	return WriteFileAtomic(s.path, append(data, '\n'), 0o600)
}

func decodeBundles(data []byte) (map[string]models.TokenBundle, error) {
	out := make(map[string]models.TokenBundle)
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("credentials document is not valid JSON")
	}

	add := func(key string, v gjson.Result) {
		// advertiser_id may be a number in files written by older tools.
		b := models.TokenBundle{
			AdvertiserID:     v.Get("advertiser_id").String(),
			AdvertiserName:   v.Get("advertiser_name").String(),
			AccessToken:      v.Get("access_token").String(),
			RefreshToken:     v.Get("refresh_token").String(),
			AccessExpiresAt:  v.Get("access_expires_at").Int(),
			RefreshExpiresAt: v.Get("refresh_expires_at").Int(),
		}
		if b.AdvertiserID == "" {
			b.AdvertiserID = key
		}
		if b.AdvertiserID != "" {
			out[b.AdvertiserID] = b
		}
	}

	root := gjson.ParseBytes(data)
	switch {
	case root.IsArray():
		root.ForEach(func(_, v gjson.Result) bool {
			add("", v)
			return true
		})
	case root.IsObject():
		root.ForEach(func(k, v gjson.Result) bool {
			add(k.String(), v)
			return true
		})
	default:
		return nil, fmt.Errorf("credentials document must be an object or a list")
	}
	return out, nil
}
