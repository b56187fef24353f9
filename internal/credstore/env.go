package credstore

import (
	"context"
	"fmt"
	"os"
)

// EnvStore provides read-only access to a static access token stored in an
// environment variable. It holds no refresh token, so sessions backed by an
// EnvStore cannot recover from authentication failure by refreshing.
type EnvStore struct {
	envKey string
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty or not set in the environment.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	if _, exists := os.LookupEnv(envKey); !exists {
		return nil, fmt.Errorf("environment variable %s not set", envKey)
	}

	return &EnvStore{
		envKey: envKey,
	}, nil
}

// Get returns the access token from the environment variable. The refresh
// kind always reports ErrNotFound.
func (e *EnvStore) Get(ctx context.Context, kind Kind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if kind != KindAccess {
		return "", ErrNotFound
	}

	token := os.Getenv(e.envKey)
	if token == "" {
		return "", fmt.Errorf("environment variable %s is empty", e.envKey)
	}
	return token, nil
}

// Set is not supported for environment variables (they are read-only).
func (e *EnvStore) Set(ctx context.Context, kind Kind, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ErrReadOnly
}

// Clear is not supported for environment variables (they are read-only).
func (e *EnvStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ErrReadOnly
}

// Scope returns the empty scope: environment variables are shared process-wide.
func (e *EnvStore) Scope() string {
	return ""
}
