package agent

import (
	"encoding/json"
	"fmt"

	"github.com/mohammad-safakhou/footprint/internal/crawler"
	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

// QueryOutput is the query handler's result.
type QueryOutput struct {
	Links          []workspace.LinkRecord `json:"links"`
	UserInfo       json.RawMessage        `json:"user_info,omitempty"`
	FeedbackInfo   json.RawMessage        `json:"feedback_info,omitempty"`
	ToClarifier    []workspace.LinkRecord `json:"to_clarifier"`
	ToToolSelector []workspace.LinkRecord `json:"to_tool_selector"`
	ToUser         string                 `json:"to_user"`
}

// ClarifyOutput is the clarifier's result.
type ClarifyOutput struct {
	ToUser         string                 `json:"to_user"`
	ClarifiedLinks []workspace.LinkRecord `json:"clarified_links"`
}

// ToolSelection is the tool selector's result.
type ToolSelection struct {
	Results []crawler.Instruction `json:"results"`
}

// RetrievalOutput is the information retriever's result for one cached
// crawl record.
type RetrievalOutput struct {
	ThinkingProcess string                 `json:"thinking_process,omitempty"`
	ToKnowledgeBase []workspace.LinkRecord `json:"to_knowledge_base"`
	ToClarifier     []workspace.LinkRecord `json:"to_clarifier"`
	ToUser          string                 `json:"to_user"`
}

// Decode parses a stage's raw JSON into the stage-specific output struct.
func Decode(kind Kind, raw string, out interface{}) error {
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &StageError{
			Stage:   kind,
			Preview: shorten(raw, 300),
			Err:     fmt.Errorf("failed to decode stage output: %w", err),
		}
	}
	return nil
}
