package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/footprint/internal/crawler"
	"github.com/mohammad-safakhou/footprint/internal/registry"
	"github.com/mohammad-safakhou/footprint/internal/store"
)

// RetrievedRecord is one cached crawl result handed to the information
// retriever. The body fields are flattened next to the record's own fields
// so the model sees a single object.
type RetrievedRecord struct {
	LinkID string
	URL    string
	Source string
	Body   map[string]interface{}
}

func (r RetrievedRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Body)+3)
	for k, v := range r.Body {
		flat[k] = v
	}
	flat["link_id"] = r.LinkID
	flat["link"] = r.URL
	flat["source"] = r.Source
	return json.Marshal(flat)
}

// collectRetrievable scans the registry for cached crawl results not yet
// processed this session. Site-link records whose discovered links are all
// already registered carry no new information and are skipped.
func collectRetrievable(ctx context.Context, reg *registry.Registry, cache store.KV, processed map[string]bool) ([]RetrievedRecord, error) {
	var records []RetrievedRecord
	for _, entry := range reg.Entries() {
		if processed[entry.ID] {
			continue
		}
		blob, ok, err := cache.Get(ctx, entry.ID+".json")
		if err != nil {
			return nil, fmt.Errorf("failed to read crawl cache for %s: %w", entry.URL, err)
		}
		if !ok {
			continue
		}
		var cached crawler.CacheEntry
		if err := json.Unmarshal(blob, &cached); err != nil {
			return nil, fmt.Errorf("failed to parse crawl cache for %s: %w", entry.URL, err)
		}
		if cached.Error != "" || len(cached.Body) == 0 {
			continue
		}
		var body map[string]interface{}
		if err := json.Unmarshal(cached.Body, &body); err != nil {
			// Non-object bodies still reach the retriever as raw content.
			body = map[string]interface{}{"content": string(cached.Body)}
		}

		rec := RetrievedRecord{
			LinkID: entry.ID,
			URL:    entry.URL,
			Source: classifySource(body),
			Body:   body,
		}
		if rec.Source == crawler.ToolSiteLinks && allLinksKnown(body, reg) {
			processed[entry.ID] = true
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// classifySource decides which crawl tool produced a cached body by shape:
// link maps carry "links" or "metadata", content extractions do not.
func classifySource(body map[string]interface{}) string {
	if _, ok := body["links"]; ok {
		return crawler.ToolSiteLinks
	}
	if _, ok := body["metadata"]; ok {
		return crawler.ToolSiteLinks
	}
	return crawler.ToolExternalContent
}

func allLinksKnown(body map[string]interface{}, reg *registry.Registry) bool {
	raw, ok := body["links"].([]interface{})
	if !ok || len(raw) == 0 {
		return false
	}
	for _, l := range raw {
		url, ok := l.(string)
		if !ok {
			return false
		}
		if !reg.Contains(url) {
			return false
		}
	}
	return true
}
