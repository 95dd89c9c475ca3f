package store

import (
	"sort"
	"sync"

	"github.com/redadsync/redadsync/internal/models"
)

// MemoryStore is an in-process CredentialStore and BindingStore.
// It is thread-safe and used where nothing has to survive the process,
// such as dry runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	bundles  map[string]models.TokenBundle
	bindings map[string]models.TableBinding

	// writeErr, when set, fails every mutation without changing state.
	writeErr error
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bundles:  make(map[string]models.TokenBundle),
		bindings: make(map[string]models.TableBinding),
	}
}

// FailWrites makes subsequent mutations return err. Pass nil to recover.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// Bundle operations

// GetBundle retrieves a bundle by advertiser id
func (s *MemoryStore) GetBundle(advertiserID string) (*models.TokenBundle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bundles[advertiserID]
	if !ok {
		return nil, false, nil
	}
	return &b, true, nil
}

// SaveBundle stores or replaces a bundle
func (s *MemoryStore) SaveBundle(bundle models.TokenBundle) error {
	if err := bundle.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	s.bundles[bundle.AdvertiserID] = bundle
	return nil
}

// ListBundles returns all bundles ordered by advertiser id
func (s *MemoryStore) ListBundles() ([]models.TokenBundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.TokenBundle, 0, len(s.bundles))
	for _, b := range s.bundles {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AdvertiserID < result[j].AdvertiserID
	})
	return result, nil
}

// DeleteBundle removes a bundle
func (s *MemoryStore) DeleteBundle(advertiserID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return false, s.writeErr
	}
	if _, ok := s.bundles[advertiserID]; !ok {
		return false, nil
	}
	delete(s.bundles, advertiserID)
	return true, nil
}

// Binding operations

// GetBinding retrieves a binding by account id
func (s *MemoryStore) GetBinding(accountID string) (*models.TableBinding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[accountID]
	if !ok {
		return nil, false, nil
	}
	return &b, true, nil
}

// SaveBinding stores or replaces a binding
func (s *MemoryStore) SaveBinding(binding models.TableBinding) error {
	if err := binding.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	s.bindings[binding.AccountID] = binding
	return nil
}

// ListBindings returns all bindings ordered by account id
func (s *MemoryStore) ListBindings() ([]models.TableBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.TableBinding, 0, len(s.bindings))
	for _, b := range s.bindings {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccountID < result[j].AccountID
	})
	return result, nil
}

// ClearTableID marks a binding unresolved
func (s *MemoryStore) ClearTableID(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	b, ok := s.bindings[accountID]
	if !ok {
		return nil
	}
	b.TableID = ""
	s.bindings[accountID] = b
	return nil
}

var (
	_ CredentialStore = (*MemoryStore)(nil)
	_ BindingStore    = (*MemoryStore)(nil)
	_ CredentialStore = (*FileCredentialStore)(nil)
	_ BindingStore    = (*FileBindingStore)(nil)
)
