//go:build js && wasm

package credentials

import (
	"context"
	"fmt"

	"github.com/syumai/workers/cloudflare/kv"
)

// DefaultKVBinding is the KV namespace binding configured in wrangler.toml
const DefaultKVBinding = "pbi_refresh_kv"

// CloudflareKVStore retrieves secrets from a Cloudflare KV namespace, one
// KV key per secret name.
type CloudflareKVStore struct {
	kvStore *kv.Namespace
}

// NewCloudflareKVStore creates a new Cloudflare KV-based secret store
func NewCloudflareKVStore(binding string) (*CloudflareKVStore, error) {
	if binding == "" {
		binding = DefaultKVBinding
	}
	// In Cloudflare Workers, KV namespaces are accessed via bindings
	kvStore, err := kv.NewNamespace(binding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KV namespace: %w", err)
	}
	return &CloudflareKVStore{kvStore: kvStore}, nil
}

func (c *CloudflareKVStore) GetSecret(_ context.Context, name string) (string, error) {
	v, err := c.kvStore.GetString(name, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get %s from KV: %w", name, err)
	}
	if v == "" {
		return "", notFound(name)
	}
	return v, nil
}

func (c *CloudflareKVStore) SetSecret(_ context.Context, name, value string) error {
	if err := c.kvStore.PutString(name, value, nil); err != nil {
		return fmt.Errorf("failed to store %s in KV: %w", name, err)
	}
	return nil
}
