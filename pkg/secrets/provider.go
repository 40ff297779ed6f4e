package secrets

import "context"

// Provider fetches a named secret as a key-value map.
// Concrete implementations (AWS, static env, etc.) can satisfy this.
type Provider interface {
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}

// StaticProvider serves secrets from an in-memory map. It backs local
// development and tests where no secrets manager is reachable.
type StaticProvider map[string]map[string]string

// GetSecret returns the secret stored under name.
func (p StaticProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	if v, ok := p[name]; ok {
		return v, nil
	}
	return nil, ErrSecretNotFound
}
