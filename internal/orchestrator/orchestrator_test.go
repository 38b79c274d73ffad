package orchestrator

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/footprint/internal/agent"
	"github.com/mohammad-safakhou/footprint/internal/crawler"
	"github.com/mohammad-safakhou/footprint/internal/knowledge"
	"github.com/mohammad-safakhou/footprint/internal/registry"
	"github.com/mohammad-safakhou/footprint/internal/store"
	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

// scriptedStage replies with a fixed sequence of raw JSON outputs.
type scriptedStage struct {
	replies []string
	reqs    []agent.Request
}

func (s *scriptedStage) Invoke(_ context.Context, req agent.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	if len(s.replies) == 0 {
		return "{}", nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

type capturePublisher struct {
	snaps []workspace.Snapshot
}

func (p *capturePublisher) Publish(s workspace.Snapshot) { p.snaps = append(p.snaps, s) }

type sessionFixture struct {
	orch      *Orchestrator
	workspace *workspace.Store
	knowledge *knowledge.FileStore
	publisher *capturePublisher
	query     *scriptedStage
	clarify   *scriptedStage
	selects   *scriptedStage
	retrieve  *scriptedStage
	out       *bytes.Buffer
}

func newSession(t *testing.T, backendURL string) *sessionFixture {
	t.Helper()
	ctx := context.Background()
	kv, err := store.NewFileKV(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileKV: %v", err)
	}
	reg, err := registry.New(ctx, kv)
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	ws, err := workspace.NewStore(ctx, kv)
	if err != nil {
		t.Fatalf("workspace.NewStore: %v", err)
	}
	kb := knowledge.NewFileStore(kv)
	exec := crawler.NewExecutor(reg, kv, crawler.NewHTTPBackend(backendURL, 5*time.Second), nil, nil)

	f := &sessionFixture{
		workspace: ws,
		knowledge: kb,
		publisher: &capturePublisher{},
		query:     &scriptedStage{},
		clarify:   &scriptedStage{},
		selects:   &scriptedStage{},
		retrieve:  &scriptedStage{},
		out:       &bytes.Buffer{},
	}
	f.orch = New(Options{
		Stages: Stages{
			Query:      f.query,
			Clarify:    f.clarify,
			ToolSelect: f.selects,
			Retrieve:   f.retrieve,
		},
		Workspace: ws,
		Registry:  reg,
		Cache:     kv,
		Executor:  exec,
		Knowledge: kb,
		Publisher: f.publisher,
		Profile:   []byte(`{"name":"Jane Doe"}`),
		Out:       f.out,
	})
	return f
}

func TestTurnClarifyShortCircuit(t *testing.T) {
	t.Parallel()
	f := newSession(t, "http://unused.invalid")
	ctx := context.Background()

	f.query.replies = []string{`{
		"links": [{"link": "https://x.com/jane", "platform": "X"}],
		"to_clarifier": [{"link": "https://x.com/jane", "platform": "X"}],
		"to_tool_selector": [],
		"to_user": ""
	}`}
	f.clarify.replies = []string{`{
		"to_user": "Please review the links below.",
		"clarified_links": [{
			"link": "https://x.com/jane", "platform": "X",
			"search_info": "Jane Doe", "is_confirmed": false,
			"add_to_db": "waiting_for_confirm",
			"agent_notes": "handle matches the subject's name"
		}]
	}`}

	if err := f.orch.RunTurn(ctx, "check https://x.com/jane"); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if len(f.selects.reqs) != 0 || len(f.retrieve.reqs) != 0 {
		t.Fatalf("clarification must short-circuit the turn")
	}
	rec, ok := f.workspace.Get("https://x.com/jane")
	if !ok {
		t.Fatalf("clarified link missing from workspace")
	}
	if rec.AddToDB == nil || *rec.AddToDB != workspace.DBStatePending {
		t.Fatalf("expected pending add_to_db, got %v", rec.AddToDB)
	}
	if len(f.publisher.snaps) != 1 {
		t.Fatalf("expected one published snapshot, got %d", len(f.publisher.snaps))
	}
	snap := f.publisher.snaps[0]
	if len(snap.Messages) != 1 || snap.Messages[0] != "Please review the links below." {
		t.Fatalf("snapshot messages: %v", snap.Messages)
	}
	if !strings.Contains(f.out.String(), "https://x.com/jane") {
		t.Fatalf("review table not shown to the user")
	}
}

func TestTurnCrawlAndRetrieve(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"links": ["https://jane.dev/about"],
			"metadata": {"https://jane.dev/about": {"text": "About Jane"}},
			"status": "success"
		}`))
	}))
	defer srv.Close()

	f := newSession(t, srv.URL)
	ctx := context.Background()

	f.query.replies = []string{`{
		"links": [{"link": "https://x.com/jane", "platform": "X", "is_confirmed": true}],
		"to_clarifier": [],
		"to_tool_selector": [{"link": "https://x.com/jane", "platform": "X", "is_confirmed": true}],
		"to_user": ""
	}`}
	f.selects.replies = []string{`{
		"results": [{
			"link": "https://x.com/jane",
			"reasoning": "map the profile for outbound links",
			"tool_name": "crawl_get_site_links",
			"parameters": {"endpoint": "?url=https%3A%2F%2Fx.com%2Fjane&search=Jane%20Doe"}
		}]
	}`}
	f.retrieve.replies = []string{`{
		"thinking_process": "the about page matches the profile",
		"to_knowledge_base": [{
			"link": "https://jane.dev/about", "platform": "PersonalSite",
			"confidence": 5, "is_confirmed": true, "add_to_db": true
		}],
		"to_clarifier": [],
		"to_user": "Found Jane's personal site."
	}`}

	if err := f.orch.RunTurn(ctx, "yes, that is her account"); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if len(f.retrieve.reqs) != 1 {
		t.Fatalf("expected one retrieval invocation, got %d", len(f.retrieve.reqs))
	}
	if f.retrieve.reqs[0].Retrieved == nil {
		t.Fatalf("retriever must receive the cached record")
	}

	entries, err := f.knowledge.List(ctx)
	if err != nil {
		t.Fatalf("knowledge.List: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "https://jane.dev/about" {
		t.Fatalf("knowledge base entries: %+v", entries)
	}

	rec, ok := f.workspace.Get("https://jane.dev/about")
	if !ok {
		t.Fatalf("knowledge link missing from workspace")
	}
	if !rec.Added() {
		t.Fatalf("knowledge link not marked added: %+v", rec)
	}

	snap := f.publisher.snaps[len(f.publisher.snaps)-1]
	found := false
	for _, m := range snap.Messages {
		if m == "Found Jane's personal site." {
			found = true
		}
	}
	if !found {
		t.Fatalf("retriever message not published: %v", snap.Messages)
	}

	// A second turn with nothing new must not reprocess the cached record.
	f.query.replies = []string{`{"links": [], "to_clarifier": [], "to_tool_selector": [], "to_user": ""}`}
	if err := f.orch.RunTurn(ctx, "anything else?"); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(f.retrieve.reqs) != 1 {
		t.Fatalf("cached record reprocessed on the next turn")
	}
	last := f.publisher.snaps[len(f.publisher.snaps)-1]
	for _, m := range last.Messages {
		if m == "Found Jane's personal site." {
			t.Fatalf("stale message republished: %v", last.Messages)
		}
	}
}

func TestTurnStageFailureAbortsRemainingSteps(t *testing.T) {
	t.Parallel()
	f := newSession(t, "http://unused.invalid")
	ctx := context.Background()

	f.query.replies = []string{`not json at all`}
	err := f.orch.RunTurn(ctx, "hello")
	if err == nil {
		t.Fatalf("expected turn error for invalid stage output")
	}
	if f.workspace.Len() != 0 {
		t.Fatalf("failed stage must not touch the workspace")
	}

	// The session keeps working on the next turn.
	f.query.replies = []string{`{"links": [{"link": "https://a.com"}], "to_clarifier": [], "to_tool_selector": [], "to_user": "noted"}`}
	if err := f.orch.RunTurn(ctx, "try again"); err != nil {
		t.Fatalf("RunTurn after failure: %v", err)
	}
	if f.workspace.Len() != 1 {
		t.Fatalf("workspace should have the new link")
	}
}

func TestLoopEndSentinel(t *testing.T) {
	t.Parallel()
	f := newSession(t, "http://unused.invalid")

	in := strings.NewReader("END\n")
	if err := f.orch.Loop(context.Background(), in); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	if len(f.query.reqs) != 0 {
		t.Fatalf("END must not run a turn")
	}
	if !strings.Contains(f.out.String(), "Session finished.") {
		t.Fatalf("missing session end message")
	}
}

func TestClassifySource(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{"links map", map[string]interface{}{"links": []interface{}{"https://a.com"}}, crawler.ToolSiteLinks},
		{"metadata only", map[string]interface{}{"metadata": map[string]interface{}{}}, crawler.ToolSiteLinks},
		{"content", map[string]interface{}{"content": "about jane"}, crawler.ToolExternalContent},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classifySource(tc.body); got != tc.want {
				t.Fatalf("classifySource = %s, want %s", got, tc.want)
			}
		})
	}
}
