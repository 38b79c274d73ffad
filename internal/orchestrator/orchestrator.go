package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/footprint/internal/agent"
	"github.com/mohammad-safakhou/footprint/internal/crawler"
	"github.com/mohammad-safakhou/footprint/internal/knowledge"
	"github.com/mohammad-safakhou/footprint/internal/registry"
	"github.com/mohammad-safakhou/footprint/internal/store"
	"github.com/mohammad-safakhou/footprint/internal/telemetry"
	"github.com/mohammad-safakhou/footprint/internal/workspace"
)

const (
	endSentinel = "END"

	feedbackKey = "feedback_info.json"
)

// Publisher receives the workspace snapshot at the end of every turn.
type Publisher interface {
	Publish(workspace.Snapshot)
}

// Invoker is the part of a pipeline stage the orchestrator drives.
type Invoker interface {
	Invoke(ctx context.Context, req agent.Request) (string, error)
}

// Stages bundles the four pipeline stages a session needs.
type Stages struct {
	Query      Invoker
	Clarify    Invoker
	ToolSelect Invoker
	Retrieve   Invoker
}

// Orchestrator runs the interactive discovery session: one turn per user
// message, reconciling every stage's output into the shared workspace.
type Orchestrator struct {
	stages    Stages
	workspace *workspace.Store
	registry  *registry.Registry
	cache     store.KV
	executor  *crawler.Executor
	knowledge knowledge.Store
	publisher Publisher
	logger    *log.Logger
	metrics   *telemetry.Telemetry

	profile   json.RawMessage
	history   []string
	processed map[string]bool
	out       io.Writer
}

type Options struct {
	Stages    Stages
	Workspace *workspace.Store
	Registry  *registry.Registry
	Cache     store.KV
	Executor  *crawler.Executor
	Knowledge knowledge.Store
	Publisher Publisher
	Logger    *log.Logger
	Metrics   *telemetry.Telemetry
	Profile   json.RawMessage
	Out       io.Writer
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Orchestrator{
		stages:    opts.Stages,
		workspace: opts.Workspace,
		registry:  opts.Registry,
		cache:     opts.Cache,
		executor:  opts.Executor,
		knowledge: opts.Knowledge,
		publisher: opts.Publisher,
		logger:    logger,
		metrics:   opts.Metrics,
		profile:   opts.Profile,
		processed: map[string]bool{},
		out:       out,
	}
}

// Loop reads user messages until EOF or the END sentinel. Each message runs
// one full turn; a failing turn is reported and the loop keeps going.
func (o *Orchestrator) Loop(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(o.out, "Footprint discovery session. Describe the person or paste links to investigate.")
	fmt.Fprintln(o.out, "Type END to finish.")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if o.workspace.AllAdded() {
			fmt.Fprintln(o.out, "All links in the workspace are in the knowledge base. Share more leads or type END.")
		}
		fmt.Fprint(o.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == endSentinel {
			fmt.Fprintln(o.out, "Session finished.")
			break
		}
		if err := o.RunTurn(ctx, line); err != nil {
			o.logger.Printf("turn failed: %v", err)
			fmt.Fprintf(o.out, "Something went wrong this turn: %v\n", err)
		}
	}
	return scanner.Err()
}

// RunTurn executes one full turn for a single user message.
func (o *Orchestrator) RunTurn(ctx context.Context, input string) error {
	turnID := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	start := time.Now()
	defer func() {
		o.metrics.ObserveTurn(time.Since(start).Seconds())
		o.metrics.SetWorkspaceSize(o.workspace.Len())
		o.logger.Printf("turn %s done in %s", turnID, time.Since(start).Round(time.Millisecond))
	}()

	var messages []string

	qOut, err := o.runQuery(ctx, input)
	if err != nil {
		return err
	}
	if qOut.ToUser != "" {
		messages = append(messages, qOut.ToUser)
	}
	if len(qOut.Links) > 0 {
		n, err := o.workspace.Merge(ctx, qOut.Links)
		if err != nil {
			return fmt.Errorf("failed to merge query links: %w", err)
		}
		o.logger.Printf("query handler merged %d link(s)", n)
	}
	o.writeFeedback(ctx, qOut.FeedbackInfo)
	o.printStatus()

	// New, unreviewed links always interrupt the turn for user review.
	if len(qOut.ToClarifier) > 0 {
		msg, err := o.runClarify(ctx, qOut.ToClarifier)
		if err != nil {
			return err
		}
		if msg != "" {
			messages = append(messages, msg)
		}
		o.finishTurn(messages)
		return nil
	}

	if len(qOut.ToToolSelector) > 0 {
		if err := o.runCrawl(ctx, qOut.ToToolSelector); err != nil {
			return err
		}
	}

	retrMsgs, err := o.runRetrieval(ctx)
	if err != nil {
		return err
	}
	messages = append(messages, retrMsgs...)

	if o.workspace.AllAdded() {
		messages = append(messages, "Every confirmed link has been added to the knowledge base. Share more leads or type END.")
	}
	o.finishTurn(messages)
	return nil
}

func (o *Orchestrator) runQuery(ctx context.Context, input string) (*agent.QueryOutput, error) {
	raw, err := o.stages.Query.Invoke(ctx, agent.Request{
		Query:          input,
		Profile:        o.profile,
		HistorySummary: o.historySummary(),
	})
	if err != nil {
		o.metrics.StageErr(string(agent.KindQueryHandler))
		return nil, err
	}
	o.metrics.StageOK(string(agent.KindQueryHandler))

	var out agent.QueryOutput
	if err := agent.Decode(agent.KindQueryHandler, raw, &out); err != nil {
		o.metrics.StageErr(string(agent.KindQueryHandler))
		return nil, err
	}
	return &out, nil
}

// runClarify annotates the given records for user review, merges the
// annotated rows and shows the review table.
func (o *Orchestrator) runClarify(ctx context.Context, records []workspace.LinkRecord) (string, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("failed to marshal clarifier input: %w", err)
	}
	raw, err := o.stages.Clarify.Invoke(ctx, agent.Request{
		Query:          string(payload),
		Profile:        o.profile,
		HistorySummary: o.historySummary(),
	})
	if err != nil {
		o.metrics.StageErr(string(agent.KindClarifier))
		return "", err
	}
	o.metrics.StageOK(string(agent.KindClarifier))

	var out agent.ClarifyOutput
	if err := agent.Decode(agent.KindClarifier, raw, &out); err != nil {
		o.metrics.StageErr(string(agent.KindClarifier))
		return "", err
	}
	if len(out.ClarifiedLinks) > 0 {
		if _, err := o.workspace.Merge(ctx, out.ClarifiedLinks); err != nil {
			return "", fmt.Errorf("failed to merge clarified links: %w", err)
		}
	}
	o.printReviewTable(out.ClarifiedLinks)
	return out.ToUser, nil
}

func (o *Orchestrator) runCrawl(ctx context.Context, confirmed []workspace.LinkRecord) error {
	payload, err := json.Marshal(map[string]interface{}{"to_tool_selector": confirmed})
	if err != nil {
		return fmt.Errorf("failed to marshal tool selector input: %w", err)
	}
	raw, err := o.stages.ToolSelect.Invoke(ctx, agent.Request{
		Query:          string(payload),
		Profile:        o.profile,
		HistorySummary: o.historySummary(),
		Retrieved:      map[string]interface{}{"valid_tools": crawler.ValidTools},
	})
	if err != nil {
		o.metrics.StageErr(string(agent.KindToolSelector))
		return err
	}
	o.metrics.StageOK(string(agent.KindToolSelector))

	var sel agent.ToolSelection
	if err := agent.Decode(agent.KindToolSelector, raw, &sel); err != nil {
		o.metrics.StageErr(string(agent.KindToolSelector))
		return err
	}
	outcomes := o.executor.Execute(ctx, sel.Results)
	for _, oc := range outcomes {
		if oc.Error != "" {
			o.logger.Printf("crawl failed for %s: %s", oc.Link, oc.Error)
		} else {
			o.logger.Printf("crawl cached %s as %s", oc.Link, oc.OutputRef)
		}
	}
	return nil
}

// runRetrieval walks every unprocessed cached crawl result through the
// information retriever. Knowledge-base entries are persisted and merged;
// uncertain links go through a clarifier round.
func (o *Orchestrator) runRetrieval(ctx context.Context) ([]string, error) {
	records, err := collectRetrievable(ctx, o.registry, o.cache, o.processed)
	if err != nil {
		return nil, err
	}

	var messages []string
	for _, rec := range records {
		raw, err := o.stages.Retrieve.Invoke(ctx, agent.Request{
			Query:          "Evaluate the retrieved crawl record.",
			Profile:        o.profile,
			HistorySummary: o.historySummary(),
			Retrieved:      rec,
		})
		if err != nil {
			o.metrics.StageErr(string(agent.KindInfoRetriever))
			return messages, err
		}
		o.metrics.StageOK(string(agent.KindInfoRetriever))

		var out agent.RetrievalOutput
		if err := agent.Decode(agent.KindInfoRetriever, raw, &out); err != nil {
			o.metrics.StageErr(string(agent.KindInfoRetriever))
			return messages, err
		}

		if len(out.ToKnowledgeBase) > 0 {
			if err := o.knowledge.Append(ctx, out.ToKnowledgeBase); err != nil {
				return messages, fmt.Errorf("failed to append knowledge entries: %w", err)
			}
			o.metrics.AddKnowledge(len(out.ToKnowledgeBase))
			if _, err := o.workspace.Merge(ctx, out.ToKnowledgeBase); err != nil {
				return messages, fmt.Errorf("failed to merge knowledge links: %w", err)
			}
		}
		if len(out.ToClarifier) > 0 {
			msg, err := o.runClarify(ctx, out.ToClarifier)
			if err != nil {
				return messages, err
			}
			if msg != "" {
				messages = append(messages, msg)
			}
		}
		if out.ToUser != "" {
			messages = append(messages, out.ToUser)
		}
		o.processed[rec.LinkID] = true
		o.note(fmt.Sprintf("processed %s (%s): %d to knowledge base, %d to clarifier",
			rec.URL, rec.Source, len(out.ToKnowledgeBase), len(out.ToClarifier)))
	}
	return messages, nil
}

// finishTurn publishes the snapshot with this turn's messages only. Messages
// from earlier turns are never re-published.
func (o *Orchestrator) finishTurn(messages []string) {
	for _, m := range messages {
		fmt.Fprintln(o.out, m)
	}
	if o.publisher != nil {
		o.publisher.Publish(workspace.Snapshot{
			Links:    o.workspace.Links(),
			Messages: messages,
		})
	}
}

// writeFeedback overwrites the per-turn feedback file. Never fatal.
func (o *Orchestrator) writeFeedback(ctx context.Context, feedback json.RawMessage) {
	if o.cache == nil {
		return
	}
	if len(feedback) == 0 {
		feedback = json.RawMessage("{}")
	}
	if err := o.cache.Put(ctx, feedbackKey, feedback); err != nil {
		o.logger.Printf("failed to write feedback file: %v", err)
	}
}

func (o *Orchestrator) printStatus() {
	st := o.workspace.Stats()
	fmt.Fprintf(o.out, "Workspace: %d link(s), %d confirmed, %d in knowledge base.\n",
		st.Total, st.Confirmed, st.Added)
}

func (o *Orchestrator) printReviewTable(records []workspace.LinkRecord) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintln(o.out, "Links waiting for your review:")
	for _, r := range records {
		notes := r.AgentNotes
		if notes == "" {
			notes = r.SearchInfo
		}
		fmt.Fprintf(o.out, "  - %s [%s] %s\n", r.URL, r.Platform, notes)
	}
}

func (o *Orchestrator) note(s string) {
	o.history = append(o.history, s)
	// Keep the summary bounded; old notes age out.
	if len(o.history) > 20 {
		o.history = o.history[len(o.history)-20:]
	}
}

func (o *Orchestrator) historySummary() string {
	if len(o.history) == 0 {
		return "none"
	}
	return strings.Join(o.history, "; ")
}
