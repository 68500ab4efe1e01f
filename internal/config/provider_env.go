package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// EnvVarProvider treats each reference as the name of another environment
// variable. It lets a deployment point STRIPE_SECRET_KEY_SECRET_REF at a
// variable injected by the platform under a different name.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks each key up with os.LookupEnv.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

// FileSecretProvider reads each reference as a file name under Dir, the
// layout used by mounted container secrets. Trailing newlines are trimmed.
type FileSecretProvider struct {
	Dir string
}

// NewFileSecretProvider creates a provider rooted at dir.
func NewFileSecretProvider(dir string) *FileSecretProvider {
	return &FileSecretProvider{Dir: dir}
}

// GetParametersBatch reads one file per key. Missing files are omitted;
// any other read failure aborts the batch.
func (p *FileSecretProvider) GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.Contains(key, "..") {
			return nil, fmt.Errorf("secret reference %q escapes the secrets directory", key)
		}
		data, err := os.ReadFile(filepath.Join(p.Dir, key))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read secret %q: %w", key, err)
		}
		result[key] = strings.TrimRight(string(data), "\r\n")
	}
	return result, nil
}

// ProviderFromEnv picks the provider for the current process: files under
// SECRETS_DIR when set, otherwise environment indirection.
func ProviderFromEnv() SecretProvider {
	if dir := os.Getenv("SECRETS_DIR"); dir != "" {
		return NewFileSecretProvider(dir)
	}
	return NewEnvVarProvider()
}
