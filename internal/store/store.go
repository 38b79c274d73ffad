// Package store provides the small key-value surface shared by the link
// registry, the crawl cache, workspace checkpoints and the file-backed
// knowledge base. Keys are flat document names like "link_index.json".
package store

import (
	"context"

	"github.com/mohammad-safakhou/footprint/config"
)

// KV is the persistence contract. Values are whole documents; Put replaces
// the previous value atomically.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// New selects a backend from configuration: Redis when configured, otherwise
// one directory per user on disk.
func New(ctx context.Context, cfg config.StorageConfig, userDir, userID string) (KV, error) {
	if cfg.Redis.Enabled() {
		return NewRedisKV(ctx, cfg.Redis, "footprint:"+userID)
	}
	return NewFileKV(userDir)
}
