package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/footprint/provider"
)

// Kind names a pipeline stage.
type Kind string

const (
	KindQueryHandler  Kind = "query_handler"
	KindClarifier     Kind = "clarifier"
	KindToolSelector  Kind = "tool_selector"
	KindInfoRetriever Kind = "info_retriever"
)

// Request carries everything a stage invocation needs. Profile and
// HistorySummary are rendered into the system prompt; Retrieved, when set,
// is attached as an extra system message.
type Request struct {
	Query          string
	Profile        json.RawMessage
	HistorySummary string
	Retrieved      interface{}
}

// StageError marks a stage whose model output could not be used. The failed
// turn step is abandoned; the workspace is never fed a partial result.
type StageError struct {
	Stage   Kind
	Preview string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v (output: %s)", e.Stage, e.Err, e.Preview)
}

func (e *StageError) Unwrap() error { return e.Err }

// Stage is a single LLM pipeline stage with a fixed system prompt.
type Stage struct {
	kind Kind
	llm  provider.Provider
	sys  string
}

func New(kind Kind, llm provider.Provider) *Stage {
	var sys string
	switch kind {
	case KindQueryHandler:
		sys = queryHandlerPrompt
	case KindClarifier:
		sys = clarifierPrompt
	case KindToolSelector:
		sys = toolSelectorPrompt
	case KindInfoRetriever:
		sys = infoRetrieverPrompt
	}
	return &Stage{kind: kind, llm: llm, sys: sys}
}

func (s *Stage) Kind() Kind { return s.kind }

// Invoke renders the system prompt, calls the model and returns the raw JSON
// object text. Any output that is not a single JSON object is rejected.
func (s *Stage) Invoke(ctx context.Context, req Request) (string, error) {
	profile := string(req.Profile)
	if profile == "" {
		profile = "{}"
	}
	sys := renderPrompt(s.sys, map[string]string{
		"user_profile":    profile,
		"history_summary": req.HistorySummary,
	})

	messages := []provider.Message{{Role: "system", Content: sys}}
	if req.Retrieved != nil {
		blob, err := json.MarshalIndent(req.Retrieved, "", "  ")
		if err != nil {
			return "", &StageError{Stage: s.kind, Err: fmt.Errorf("failed to marshal retrieved context: %w", err)}
		}
		messages = append(messages, provider.Message{
			Role:    "system",
			Name:    "retrieved_context",
			Content: string(blob),
		})
	}
	messages = append(messages, provider.Message{Role: "user", Content: req.Query})

	raw, err := s.llm.CompleteJSON(ctx, messages)
	if err != nil {
		return "", &StageError{Stage: s.kind, Err: err}
	}

	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") || !json.Valid([]byte(trimmed)) {
		return "", &StageError{
			Stage:   s.kind,
			Preview: shorten(trimmed, 300),
			Err:     fmt.Errorf("model output is not a JSON object"),
		}
	}
	return trimmed, nil
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
