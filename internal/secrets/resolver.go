package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/bank"
	pkgsecrets "github.com/Checker-Finance/bank-gateway/pkg/secrets"
)

// BackendResolver resolves the resource backend's base URL and API key from a
// secrets provider, caching the result so rotation is picked up once the TTL lapses.
//
// Secret format: {"base_url": "https://...", "api_key": "..."}
type BackendResolver struct {
	logger     *zap.Logger
	secretName string
	provider   pkgsecrets.Provider
	cache      *pkgsecrets.Cache[bank.BackendConfig]
}

// NewBackendResolver constructs a resolver for the named secret.
func NewBackendResolver(
	logger *zap.Logger,
	secretName string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[bank.BackendConfig],
) *BackendResolver {
	return &BackendResolver{
		logger:     logger,
		secretName: secretName,
		provider:   provider,
		cache:      cache,
	}
}

// Resolve returns the backend config, from cache when available.
func (r *BackendResolver) Resolve(ctx context.Context) (bank.BackendConfig, error) {
	return r.cache.GetOrLoad(r.secretName, func() (bank.BackendConfig, error) {
		secretMap, err := r.provider.GetSecret(ctx, r.secretName)
		if err != nil {
			r.logger.Warn("secrets.backend_fetch_failed",
				zap.String("key", r.secretName),
				zap.Error(err))
			return bank.BackendConfig{}, fmt.Errorf("resolve backend config: %w", err)
		}

		cfg, err := parseBackendConfig(secretMap)
		if err != nil {
			return bank.BackendConfig{}, fmt.Errorf("parse secret %q: %w", r.secretName, err)
		}

		r.logger.Info("secrets.backend_config_resolved",
			zap.String("key", r.secretName),
			zap.String("base_url", cfg.BaseURL))
		return cfg, nil
	})
}

func parseBackendConfig(m map[string]string) (bank.BackendConfig, error) {
	baseURL := strings.TrimSpace(m["base_url"])
	if baseURL == "" {
		return bank.BackendConfig{}, fmt.Errorf("base_url is required")
	}
	return bank.BackendConfig{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  m["api_key"],
	}, nil
}
