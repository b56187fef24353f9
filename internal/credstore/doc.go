// Package credstore provides persistent storage abstractions for session
// credentials (access and refresh tokens).
//
// Every store is constructed for a single scope. A scope partitions storage
// keys so that two clients of the same backend can hold independent sessions
// (the browser-tab model: two tabs, two logged-in users, no interference).
// The empty scope selects the shared, unqualified partition.
//
// Supported backends with different tradeoffs:
//   - Memory: process-local storage, gone on exit
//   - File: local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: read-only environment variable access (static access token only)
//
// Token refresh requires writable storage (memory, file or keyring).
package credstore
