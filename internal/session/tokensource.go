package session

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
)

// ErrNoSession reports that no access token is stored. Callers treat it as
// "anonymous": the request goes out unauthenticated.
var ErrNoSession = errors.New("no active session")

// TokenSource exposes the credential store's current access token as an
// oauth2.TokenSource. It performs no refresh of its own; a stale token is
// acceptable here because the request it is attached to will trigger its own
// refresh cycle on 401.
type TokenSource struct {
	store credstore.Store
}

// Compile-time check to ensure TokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*TokenSource)(nil)

// NewTokenSource creates a TokenSource reading from the given store.
func NewTokenSource(store credstore.Store) (*TokenSource, error) {
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	return &TokenSource{store: store}, nil
}

// Token returns the currently stored access token.
// Returns ErrNoSession when the store holds none.
func (t *TokenSource) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	token, err := t.store.Get(context.Background(), credstore.KindAccess)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}

	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
