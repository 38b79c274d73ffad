package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/footprint/internal/store"
	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

const fileKey = "knowledge_base.json"

// Store is the append-only knowledge base of confirmed, added links.
type Store interface {
	Append(ctx context.Context, entries []workspace.LinkRecord) error
	List(ctx context.Context) ([]workspace.LinkRecord, error)
}

// FileStore keeps the knowledge base as one JSON array in the user's
// key-value store.
type FileStore struct {
	kv store.KV
}

func NewFileStore(kv store.KV) *FileStore { return &FileStore{kv: kv} }

func (s *FileStore) Append(ctx context.Context, entries []workspace.LinkRecord) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := s.List(ctx)
	if err != nil {
		return err
	}
	existing = append(existing, entries...)
	blob, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge base: %w", err)
	}
	if err := s.kv.Put(ctx, fileKey, blob); err != nil {
		return fmt.Errorf("failed to write knowledge base: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]workspace.LinkRecord, error) {
	blob, ok, err := s.kv.Get(ctx, fileKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var entries []workspace.LinkRecord
	if err := json.Unmarshal(blob, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}
	return entries, nil
}

// PostgresStore keeps the knowledge base in a knowledge_entries table, one
// row per appended record with the full record as JSONB payload.
type PostgresStore struct {
	db     *sql.DB
	userID string
}

func NewPostgresStore(db *sql.DB, userID string) *PostgresStore {
	return &PostgresStore{db: db, userID: userID}
}

func (s *PostgresStore) Append(ctx context.Context, entries []workspace.LinkRecord) error {
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal knowledge entry: %w", err)
		}
		confidence := 0
		if e.Confidence != nil {
			confidence = *e.Confidence
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO knowledge_entries (id, user_id, url, platform, confidence, is_confirmed, payload)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), s.userID, e.URL, e.Platform, confidence, e.Confirmed(), payload)
		if err != nil {
			return fmt.Errorf("failed to insert knowledge entry: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]workspace.LinkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM knowledge_entries WHERE user_id = $1 ORDER BY created_at`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge entries: %w", err)
	}
	defer rows.Close()

	var entries []workspace.LinkRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
		}
		var rec workspace.LinkRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse knowledge entry: %w", err)
		}
		entries = append(entries, rec)
	}
	return entries, rows.Err()
}
