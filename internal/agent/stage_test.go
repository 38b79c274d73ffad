package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/footprint/provider"
)

type fakeLLM struct {
	reply    string
	err      error
	messages []provider.Message
}

func (f *fakeLLM) CompleteJSON(_ context.Context, messages []provider.Message) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

func TestRenderPrompt(t *testing.T) {
	t.Parallel()
	got := renderPrompt("profile: {{user_profile}}, history: {{history_summary}}, keep {{unknown}} and {\"json\": true}",
		map[string]string{"user_profile": "{\"name\":\"jane\"}", "history_summary": "none"})
	want := "profile: {\"name\":\"jane\"}, history: none, keep {{unknown}} and {\"json\": true}"
	if got != want {
		t.Fatalf("renderPrompt:\n got %s\nwant %s", got, want)
	}
}

func TestInvokeRejectsNonJSON(t *testing.T) {
	t.Parallel()
	long := "I am sorry, I cannot produce JSON today. " + strings.Repeat("x", 400)
	llm := &fakeLLM{reply: long}
	s := New(KindQueryHandler, llm)

	_, err := s.Invoke(context.Background(), Request{Query: "hi"})
	if err == nil {
		t.Fatalf("expected error for non-JSON output")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %T", err)
	}
	if se.Stage != KindQueryHandler {
		t.Fatalf("wrong stage: %s", se.Stage)
	}
	if len(se.Preview) > 303 {
		t.Fatalf("preview not shortened: %d chars", len(se.Preview))
	}
	if !strings.HasPrefix(se.Preview, "I am sorry") {
		t.Fatalf("preview lost the output head: %q", se.Preview[:20])
	}
}

func TestInvokeAcceptsJSONObject(t *testing.T) {
	t.Parallel()
	llm := &fakeLLM{reply: "  {\"links\": []}\n"}
	s := New(KindQueryHandler, llm)

	raw, err := s.Invoke(context.Background(), Request{Query: "hi", HistorySummary: "none"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if raw != "{\"links\": []}" {
		t.Fatalf("expected trimmed output, got %q", raw)
	}

	if len(llm.messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(llm.messages))
	}
	if llm.messages[0].Role != "system" || llm.messages[1].Role != "user" {
		t.Fatalf("wrong message roles: %+v", llm.messages)
	}
	if strings.Contains(llm.messages[0].Content, "{{user_profile}}") {
		t.Fatalf("system prompt placeholder not rendered")
	}
}

func TestInvokeAttachesRetrievedContext(t *testing.T) {
	t.Parallel()
	llm := &fakeLLM{reply: "{}"}
	s := New(KindInfoRetriever, llm)

	_, err := s.Invoke(context.Background(), Request{
		Query:     "evaluate",
		Retrieved: map[string]string{"link": "https://a.com"},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(llm.messages) != 3 {
		t.Fatalf("expected system + retrieved + user, got %d", len(llm.messages))
	}
	mid := llm.messages[1]
	if mid.Role != "system" || mid.Name != "retrieved_context" {
		t.Fatalf("retrieved context message malformed: %+v", mid)
	}
	if !strings.Contains(mid.Content, "https://a.com") {
		t.Fatalf("retrieved context lost payload: %s", mid.Content)
	}
}

func TestDecodeWrapsErrors(t *testing.T) {
	t.Parallel()
	var out QueryOutput
	err := Decode(KindQueryHandler, `{"links": "not-an-array"}`, &out)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %T", err)
	}
}
