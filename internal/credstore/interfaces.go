package credstore

import (
	"context"
	"errors"
)

// Kind selects which credential a Store operation targets.
type Kind string

const (
	// KindAccess is the short-lived bearer credential attached to requests.
	KindAccess Kind = "access_token"
	// KindRefresh is the long-lived credential used only to mint new access tokens.
	KindRefresh Kind = "refresh_token"
)

var (
	// ErrNotFound is returned by Get when no value is stored for the kind.
	ErrNotFound = errors.New("credential not found")
	// ErrReadOnly is returned by Set and Clear on read-only backends.
	ErrReadOnly = errors.New("credential storage is read-only")
)

// Store reads and writes session credentials for one scope.
//
// A Store performs no validation of token shape or expiry; it is a keyed
// mapping over its backend. Writes are visible to subsequent reads from the
// same store.
type Store interface {
	// Get returns the stored credential of the given kind.
	// Returns ErrNotFound if nothing is stored.
	Get(ctx context.Context, kind Kind) (string, error)

	// Set persists the credential. Returns ErrReadOnly on read-only backends.
	Set(ctx context.Context, kind Kind, value string) error

	// Clear removes all credentials for this store's scope.
	// Clearing an already-empty store is not an error.
	Clear(ctx context.Context) error

	// Scope returns the storage partition this store operates on.
	// Empty means the shared, unqualified partition.
	Scope() string
}

// storageKey qualifies a credential kind with the scope, mirroring the
// access_token_<scope> key layout the platform's web client uses.
func storageKey(kind Kind, scope string) string {
	if scope == "" {
		return string(kind)
	}
	return string(kind) + "_" + scope
}
