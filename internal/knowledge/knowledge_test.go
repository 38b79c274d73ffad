package knowledge

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/mohammad-safakhou/footprint/internal/store"
	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

func boolPtr(v bool) *bool { return &v }

func TestFileStoreAppendAndReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv, err := store.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	s := NewFileStore(kv)

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty knowledge base, got %d", len(entries))
	}

	if err := s.Append(ctx, []workspace.LinkRecord{
		{URL: "https://x.com/jane", Platform: "X", IsConfirmed: boolPtr(true)},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, []workspace.LinkRecord{
		{URL: "https://jane.dev", Platform: "PersonalSite"},
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Appends accumulate; a fresh store over the same files sees them all.
	reloaded := NewFileStore(kv)
	entries, err = reloaded.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].URL != "https://x.com/jane" || entries[1].URL != "https://jane.dev" {
		t.Fatalf("append order lost: %+v", entries)
	}
}

func TestPostgresStoreAppend(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	confidence := 5
	mock.ExpectExec("INSERT INTO knowledge_entries").
		WithArgs(sqlmock.AnyArg(), "001", "https://x.com/jane", "X", confidence, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewPostgresStore(db, "001")
	err = s.Append(context.Background(), []workspace.LinkRecord{
		{URL: "https://x.com/jane", Platform: "X", IsConfirmed: boolPtr(true), Confidence: &confidence},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreList(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"payload"}).
		AddRow([]byte(`{"link":"https://jane.dev","platform":"PersonalSite"}`))
	mock.ExpectQuery("SELECT payload FROM knowledge_entries").
		WithArgs("001").
		WillReturnRows(rows)

	s := NewPostgresStore(db, "001")
	entries, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "https://jane.dev" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestSearchIndex(t *testing.T) {
	t.Parallel()
	idx, err := NewIndex([]workspace.LinkRecord{
		{URL: "https://x.com/jane", Platform: "X", SearchInfo: "jane doe software engineer"},
		{URL: "https://bakery.example.com", Platform: "PersonalSite", SearchInfo: "sourdough bread recipes"},
	})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	defer idx.Close()

	hits, err := idx.Search("engineer", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].URL != "https://x.com/jane" {
		t.Fatalf("wrong hit: %+v", hits[0])
	}
}
