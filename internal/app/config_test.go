package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/O-G-W-A-L/doit-cli/internal/credstore"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultConfigAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultConfigAuthStorage, cfg.Auth.Storage)
	assert.Equal(t, SessionScopeShared, cfg.Auth.Scope)
	assert.NotEmpty(t, cfg.Auth.File)
}

func TestValidateRejectsIsolatedEnvStorage(t *testing.T) {
	cfg := &Config{
		Auth: AuthConfig{
			Storage: CredentialStorageTypeEnv,
			EnvKey:  "DOIT_TOKEN",
			Scope:   SessionScopeIsolated,
		},
	}
	require.NoError(t, cfg.ApplyDefaults())
	assert.ErrorContains(t, cfg.Validate(), "read-only")
}

func TestValidateRejectsMissingStorageSettings(t *testing.T) {
	tests := []struct {
		name string
		auth AuthConfig
	}{
		{"env without key", AuthConfig{Storage: CredentialStorageTypeEnv, Scope: SessionScopeShared}},
		{"bad storage type", AuthConfig{Storage: "vault", Scope: SessionScopeShared}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Auth: tt.auth}
			cfg.API.BaseURL = DefaultConfigAPIBaseURL
			cfg.LogFormat = DefaultConfigLogFormat
			cfg.LogExport = DefaultConfigLogExport
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewCredentialStoreFactory(t *testing.T) {
	auth := AuthConfig{
		Storage: CredentialStorageTypeFile,
		File:    filepath.Join(t.TempDir(), "credentials.json"),
	}

	store, err := auth.NewCredentialStore("tab-1")
	require.NoError(t, err)
	assert.Equal(t, "tab-1", store.Scope())
	assert.IsType(t, &credstore.FileStore{}, store)

	auth.Storage = CredentialStorageTypeMemory
	store, err = auth.NewCredentialStore("")
	require.NoError(t, err)
	assert.IsType(t, &credstore.MemoryStore{}, store)
}
