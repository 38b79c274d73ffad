package knowledge

import (
	"fmt"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

// Hit is one search result from the knowledge index.
type Hit struct {
	URL      string
	Platform string
	Score    float64
}

// Index is an in-memory full-text index over knowledge base entries. It is
// rebuilt from the store on each use; the store stays the source of truth.
type Index struct {
	idx bleve.Index
}

type indexedEntry struct {
	URL         string `json:"url"`
	Platform    string `json:"platform"`
	SearchInfo  string `json:"search_info"`
	AgentNotes  string `json:"agent_notes"`
	LinkSummary string `json:"link_summary"`
}

// NewIndex builds an index over the given entries.
func NewIndex(entries []workspace.LinkRecord) (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}
	for _, e := range entries {
		doc := indexedEntry{
			URL:         e.URL,
			Platform:    e.Platform,
			SearchInfo:  e.SearchInfo,
			AgentNotes:  e.AgentNotes,
			LinkSummary: e.LinkSummary,
		}
		if err := idx.Index(e.URL, doc); err != nil {
			return nil, fmt.Errorf("failed to index entry %s: %w", e.URL, err)
		}
	}
	return &Index{idx: idx}, nil
}

// Search returns up to k hits matching the query, best first.
func (i *Index) Search(query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), k, 0, false)
	req.Fields = []string{"url", "platform"}
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{URL: h.ID, Score: h.Score}
		if p, ok := h.Fields["platform"].(string); ok {
			hit.Platform = p
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the index.
func (i *Index) Close() error { return i.idx.Close() }
