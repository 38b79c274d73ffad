// Package registry maps URLs to stable opaque link identifiers. The identifier
// is the unit of deduplication for crawl caching: resolving the same URL twice
// always yields the same id, for the lifetime of the user's data.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/footprint/internal/store"
)

const indexKey = "link_index.json"

// Registry is the persistent url <-> id mapping. The persisted shape is
// {id: url}, one JSON document, replaced atomically on every allocation.
type Registry struct {
	mu    sync.Mutex
	kv    store.KV
	index map[string]string // id -> url
	byURL map[string]string // url -> id
}

// New loads the existing index, or initialises an empty one on first use.
func New(ctx context.Context, kv store.KV) (*Registry, error) {
	r := &Registry{
		kv:    kv,
		index: make(map[string]string),
		byURL: make(map[string]string),
	}
	b, ok, err := kv.Get(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("load link index: %w", err)
	}
	if ok {
		if err := json.Unmarshal(b, &r.index); err != nil {
			return nil, fmt.Errorf("decode link index: %w", err)
		}
		for id, url := range r.index {
			r.byURL[url] = id
		}
	} else if err := r.persist(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns the existing id for url, or allocates a new one and persists
// the updated mapping before returning. A persistence failure rolls the
// allocation back so durable state is never ahead of what the caller saw.
func (r *Registry) Resolve(ctx context.Context, url string) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("empty url")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byURL[url]; ok {
		return id, nil
	}
	id := newID()
	r.index[id] = url
	r.byURL[url] = id
	if err := r.persist(ctx); err != nil {
		delete(r.index, id)
		delete(r.byURL, url)
		return "", err
	}
	return id, nil
}

// Contains reports whether url already has an identifier.
func (r *Registry) Contains(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byURL[url]
	return ok
}

// URLFor returns the url mapped to id.
func (r *Registry) URLFor(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	url, ok := r.index[id]
	return url, ok
}

// Len returns the number of registered URLs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// Entry is one id/url pair from the index.
type Entry struct {
	ID  string
	URL string
}

// Entries returns the whole index sorted by URL, for deterministic retrieval
// scans.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.index))
	for id, url := range r.index {
		out = append(out, Entry{ID: id, URL: url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func (r *Registry) persist(ctx context.Context) error {
	b, err := json.MarshalIndent(r.index, "", "  ")
	if err != nil {
		return fmt.Errorf("encode link index: %w", err)
	}
	if err := r.kv.Put(ctx, indexKey, b); err != nil {
		return fmt.Errorf("write link index: %w", err)
	}
	return nil
}

// newID produces the 32-char hex form of a v4 UUID.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
