package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps credentials in OS-native secure storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// Each credential kind is a separate keyring entry under a scope-qualified
// account name.
type KeyringStore struct {
	service string
	user    string
	scope   string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the given service and user
// identifiers and scope.
func NewKeyringStore(service, user, scope string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
		scope:   scope,
	}, nil
}

// account builds the keyring account name for a credential kind.
func (k *KeyringStore) account(kind Kind) string {
	return k.user + "/" + storageKey(kind, k.scope)
}

// Get returns the credential from the system keyring, or ErrNotFound.
func (k *KeyringStore) Get(ctx context.Context, kind Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := keyring.Get(k.service, k.account(kind))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set persists the credential to the system keyring, overwriting any existing value.
func (k *KeyringStore) Set(ctx context.Context, kind Kind, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, k.account(kind), value)
}

// Clear removes both credentials for this store's scope from the keyring.
// Missing entries are not an error.
func (k *KeyringStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, kind := range []Kind{KindAccess, KindRefresh} {
		if err := keyring.Delete(k.service, k.account(kind)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Scope returns the storage partition this store operates on.
func (k *KeyringStore) Scope() string {
	return k.scope
}
