package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/footprint/internal/registry"
	"github.com/mohammad-safakhou/footprint/internal/store"
	"github.com/mohammad-safakhou/footprint/internal/telemetry"
)

const (
	ToolSiteLinks       = "crawl_get_site_links"
	ToolExternalContent = "crawl_external_content"
)

// ValidTools is the whitelist of crawl operations and their allowed methods.
// Instructions naming anything else are recorded as failed outcomes, never
// executed.
var ValidTools = map[string][]string{
	ToolSiteLinks:       {"GET"},
	ToolExternalContent: {"GET"},
}

// Instruction is one crawl request produced by the tool selector.
type Instruction struct {
	Link       string `json:"link"`
	Reasoning  string `json:"reasoning,omitempty"`
	ToolName   string `json:"tool_name"`
	Parameters struct {
		Endpoint string `json:"endpoint"`
	} `json:"parameters"`
}

// Outcome reports what happened to one instruction. Failures carry Error and
// leave the rest of the fields at their zero values where nothing happened.
type Outcome struct {
	Link       string `json:"link"`
	Tool       string `json:"tool"`
	LinkID     string `json:"link_id,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error,omitempty"`
	OutputRef  string `json:"output_file,omitempty"`
}

// CacheEntry is the persisted result of one fetch, keyed by link identifier.
// A later fetch of the same link overwrites the previous entry.
type CacheEntry struct {
	StatusCode int             `json:"status_code,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Executor runs crawl instructions against a backend and caches every result.
type Executor struct {
	registry *registry.Registry
	cache    store.KV
	backend  Backend
	logger   *log.Logger
	metrics  *telemetry.Telemetry
}

func NewExecutor(reg *registry.Registry, cache store.KV, backend Backend, logger *log.Logger, metrics *telemetry.Telemetry) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{registry: reg, cache: cache, backend: backend, logger: logger, metrics: metrics}
}

// Execute runs every instruction and returns one outcome per instruction, in
// order. A failing instruction never aborts the batch.
func (e *Executor) Execute(ctx context.Context, instructions []Instruction) []Outcome {
	outcomes := make([]Outcome, 0, len(instructions))
	for _, ins := range instructions {
		outcomes = append(outcomes, e.executeOne(ctx, ins))
	}
	return outcomes
}

func (e *Executor) executeOne(ctx context.Context, ins Instruction) Outcome {
	out := Outcome{Link: ins.Link, Tool: ins.ToolName}

	if _, ok := ValidTools[ins.ToolName]; !ok {
		out.Error = fmt.Sprintf("tool %q is not allowed", ins.ToolName)
		e.metrics.Fetch(ins.ToolName, "rejected")
		e.logger.Printf("rejected instruction for %s: %s", ins.Link, out.Error)
		return out
	}

	id, err := e.registry.Resolve(ctx, ins.Link)
	if err != nil {
		out.Error = fmt.Sprintf("failed to register link: %v", err)
		e.metrics.Fetch(ins.ToolName, "error")
		e.logger.Printf("%s", out.Error)
		return out
	}
	out.LinkID = id

	entry := CacheEntry{}
	status, body, err := e.backend.Fetch(ctx, ins.ToolName, ins.Parameters.Endpoint)
	if err != nil {
		entry.Error = err.Error()
		out.Error = err.Error()
		e.metrics.Fetch(ins.ToolName, "error")
		e.logger.Printf("fetch failed for %s (%s): %v", ins.Link, ins.ToolName, err)
	} else {
		entry.StatusCode = status
		entry.Body = asJSON(body)
		out.StatusCode = status
		e.metrics.Fetch(ins.ToolName, fmt.Sprintf("%d", status))
		e.logger.Printf("fetched %s (%s) status=%d bytes=%d", ins.Link, ins.ToolName, status, len(body))
	}

	key := id + ".json"
	blob, merr := json.Marshal(entry)
	if merr == nil {
		merr = e.cache.Put(ctx, key, blob)
	}
	if merr != nil {
		if out.Error == "" {
			out.Error = fmt.Sprintf("failed to cache result: %v", merr)
		}
		e.logger.Printf("failed to cache %s: %v", key, merr)
		return out
	}
	out.OutputRef = key
	return out
}

// asJSON keeps JSON bodies as-is and wraps anything else as a JSON string so
// the cache entry always stays valid JSON.
func asJSON(body []byte) json.RawMessage {
	if json.Valid(body) && len(body) > 0 {
		return json.RawMessage(body)
	}
	quoted, _ := json.Marshal(string(body))
	return json.RawMessage(quoted)
}
