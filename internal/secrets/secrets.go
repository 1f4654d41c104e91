// Package secrets resolves API keys and tokens from the environment or Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/vault/api"
)

// ErrNotFound is returned when a provider has no value for a key.
var ErrNotFound = errors.New("secret not found")

// Provider looks up a secret by key.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct{}

// Get returns the value of the environment variable key.
func (EnvProvider) Get(_ context.Context, key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("env %s: %w", key, ErrNotFound)
	}
	return v, nil
}

// VaultProvider reads secrets from one KV v2 document.
type VaultProvider struct {
	client *api.Client
	path   string
}

// NewVaultProvider creates a provider reading "{mount}/data/{path}".
// token may be empty, in which case the client uses VAULT_TOKEN.
func NewVaultProvider(address, token, mount, path string) (*VaultProvider, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}
	return &VaultProvider{client: client, path: fmt.Sprintf("%s/data/%s", mount, path)}, nil
}

// Get reads key from the configured document.
func (v *VaultProvider) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.client.Logical().ReadWithContext(ctx, v.path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s from vault: %w", v.path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault %s: %w", v.path, ErrNotFound)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("vault %s: invalid secret format", v.path)
	}
	s, ok := data[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("vault %s key %s: %w", v.path, key, ErrNotFound)
	}
	return s, nil
}

// Chain tries each provider in order and returns the first hit.
type Chain []Provider

// Get returns the first value found. Errors other than ErrNotFound stop the search.
func (c Chain) Get(ctx context.Context, key string) (string, error) {
	for _, p := range c {
		v, err := p.Get(ctx, key)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", key, ErrNotFound)
}

type cached struct {
	value   string
	expires time.Time
}

// Cache memoizes a provider for ttl. It is created by main and passed to the
// components that need secrets.
type Cache struct {
	inner Provider
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]cached
}

// NewCache wraps inner with a TTL cache.
func NewCache(inner Provider, ttl time.Duration) *Cache {
	return &Cache{
		inner:   inner,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cached),
	}
}

// Get returns a cached value or fetches and stores it. Misses are not cached.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e.value, nil
	}

	v, err := c.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.entries[key] = cached{value: v, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return v, nil
}

// Purge drops every cached value.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cached)
	c.mu.Unlock()
}

// Lookup returns the secret or "" when it is not configured. Other errors are
// returned.
func Lookup(ctx context.Context, p Provider, key string) (string, error) {
	v, err := p.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
