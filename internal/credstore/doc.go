// Package credstore reads the account password from one of several sources.
//
// Supported backends:
//   - Static: a value taken verbatim from configuration
//   - Env: an environment variable (requires external secret management)
//   - File: a local file that must be owner-only (0600)
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Prompt: an interactive terminal, read without echo
//
// All backends are read-only. Nothing in this package persists a secret.
package credstore
