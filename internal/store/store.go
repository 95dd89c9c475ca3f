package store

import "github.com/redadsync/redadsync/internal/models"

// CredentialStore persists token bundles keyed by advertiser id.
// Every mutation is all-or-nothing: on error the previous state is kept.
type CredentialStore interface {
	GetBundle(advertiserID string) (*models.TokenBundle, bool, error)
	SaveBundle(bundle models.TokenBundle) error
	ListBundles() ([]models.TokenBundle, error)
	DeleteBundle(advertiserID string) (bool, error)
}

// BindingStore persists account to table bindings keyed by account id.
type BindingStore interface {
	GetBinding(accountID string) (*models.TableBinding, bool, error)
	SaveBinding(binding models.TableBinding) error
	ListBindings() ([]models.TableBinding, error)
	// ClearTableID marks a binding unresolved and keeps its other fields.
	ClearTableID(accountID string) error
}
