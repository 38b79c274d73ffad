// Package workspace holds the session's merged view of every link observed so
// far. All mutation goes through Merge so the one-record-per-URL invariant
// stays in one place.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/footprint/internal/store"
)

const checkpointKey = "workspace.json"

// Snapshot is the read-only view handed to the dashboard.
type Snapshot struct {
	Links    []LinkRecord `json:"links"`
	Messages []string     `json:"messages"`
}

// Stats summarises workspace progress for the status printout.
type Stats struct {
	Total     int
	Confirmed int
	Added     int
}

// Store is the workspace state. It lives in memory and checkpoints to the KV
// store after every merge so a restart resumes where the session left off.
type Store struct {
	mu    sync.RWMutex
	links map[string]*LinkRecord
	kv    store.KV
}

// NewStore loads the last checkpoint when one exists. kv may be nil for a
// purely in-memory workspace (tests).
func NewStore(ctx context.Context, kv store.KV) (*Store, error) {
	s := &Store{links: make(map[string]*LinkRecord), kv: kv}
	if kv == nil {
		return s, nil
	}
	b, ok, err := kv.Get(ctx, checkpointKey)
	if err != nil {
		return nil, fmt.Errorf("load workspace checkpoint: %w", err)
	}
	if ok {
		var snap Snapshot
		if err := json.Unmarshal(b, &snap); err != nil {
			return nil, fmt.Errorf("decode workspace checkpoint: %w", err)
		}
		for _, rec := range snap.Links {
			rec := rec.clone()
			s.links[rec.URL] = &rec
		}
	}
	return s, nil
}

// Merge folds a batch of incoming records into the workspace. Records without
// a URL are skipped. A new URL is inserted with add_to_db defaulted to false;
// a known URL has only the incoming record's present fields overwritten.
// Returns the number of records applied.
func (s *Store) Merge(ctx context.Context, records []LinkRecord) (int, error) {
	s.mu.Lock()
	applied := 0
	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		if existing, ok := s.links[rec.URL]; ok {
			existing.apply(rec)
		} else {
			ins := rec.clone()
			if ins.AddToDB == nil {
				v := DBStateFalse
				ins.AddToDB = &v
			}
			s.links[rec.URL] = &ins
		}
		applied++
	}
	s.mu.Unlock()

	if applied > 0 {
		if err := s.checkpoint(ctx); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

func (s *Store) checkpoint(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	b, err := json.MarshalIndent(Snapshot{Links: s.Links()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workspace checkpoint: %w", err)
	}
	if err := s.kv.Put(ctx, checkpointKey, b); err != nil {
		return fmt.Errorf("write workspace checkpoint: %w", err)
	}
	return nil
}

// Links returns deep copies of all records, sorted by URL for deterministic
// output.
func (s *Store) Links() []LinkRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LinkRecord, 0, len(s.links))
	for _, rec := range s.links {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

// Get returns a copy of the record for url, if present.
func (s *Store) Get(url string) (LinkRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.links[url]
	if !ok {
		return LinkRecord{}, false
	}
	return rec.clone(), true
}

// Len returns the number of distinct URLs in the workspace.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

// Stats counts confirmed and committed records.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Total: len(s.links)}
	for _, rec := range s.links {
		if rec.Confirmed() {
			st.Confirmed++
		}
		if rec.Added() {
			st.Added++
		}
	}
	return st
}

// AllAdded reports whether every record reached the knowledge base. An empty
// workspace reports false so the loop keeps prompting for input.
func (s *Store) AllAdded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.links) == 0 {
		return false
	}
	for _, rec := range s.links {
		if !rec.Added() {
			return false
		}
	}
	return true
}
