package config

import "context"

// SecretProvider resolves secret references named by *_SECRET_REF
// variables. Implementations return a map of reference to plaintext value
// and omit references they do not know.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
