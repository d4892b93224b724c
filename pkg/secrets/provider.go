// Package secrets reads JSON secrets from a secrets manager and caches them in memory.
package secrets

import "context"

// Provider defines a generic secrets manager interface.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its JSON object as a string map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}
