package research

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ferret/internal/store"
	"ferret/internal/updates"
)

// searchFunc adapts a function to the Searcher interface.
type searchFunc func(ctx context.Context, query string) ([]store.SearchResult, error)

func (f searchFunc) Search(ctx context.Context, query string) ([]store.SearchResult, error) {
	return f(ctx, query)
}

// generateFunc adapts a function to the Generator interface.
type generateFunc func(ctx context.Context, prompt, system string) (string, error)

func (f generateFunc) Generate(ctx context.Context, prompt, system string) (string, error) {
	return f(ctx, prompt, system)
}

// testSystem wires a full store + channel over a temporary database.
func testSystem(t *testing.T) (*store.Store, *updates.Channel) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	lg, err := updates.NewLog(db)
	if err != nil {
		t.Fatalf("create log: %v", err)
	}
	ch := updates.NewChannel(updates.NewBus(), lg)
	s, err := store.New(db, ch)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, ch
}

func newPending(t *testing.T, s *store.Store, query string) *store.Research {
	t.Helper()
	chat, err := s.CreateChat("test chat")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	rec, err := s.CreateResearch(chat.ID, "user-1", query)
	if err != nil {
		t.Fatalf("CreateResearch: %v", err)
	}
	return rec
}

// scriptedGenerator answers the analysis prompt with one string and
// everything else with another.
func scriptedGenerator(analysis, summary string) Generator {
	return generateFunc(func(ctx context.Context, prompt, system string) (string, error) {
		if strings.HasPrefix(prompt, "Analyze these search results") {
			return analysis, nil
		}
		return summary, nil
	})
}

func TestRun_FullPipelineSucceeds(t *testing.T) {
	s, ch := testSystem(t)

	sources := []store.SearchResult{{Title: "A", Content: "c1", URL: "u1"}}
	exec := NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) {
			return sources, nil
		}),
		scriptedGenerator("the analysis", "the summary"),
	)
	runner := NewRunner(s, ch, exec)
	rec := newPending(t, s, "quantum computing")

	if err := runner.Run(context.Background(), rec.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	final, err := s.GetResearch(rec.ID)
	if err != nil {
		t.Fatalf("GetResearch: %v", err)
	}
	if final.Status != store.StatusDone {
		t.Fatalf("expected done, got %s (error: %s)", final.Status, final.Error)
	}
	if final.StartedAt == nil || final.CompletedAt == nil {
		t.Error("expected both timestamps on a finished research")
	}

	var results store.ResearchResults
	if err := json.Unmarshal(final.Results, &results); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if len(results.SearchResults) != 1 {
		t.Errorf("expected 1 search result, got %d", len(results.SearchResults))
	}
	if results.Analysis != "the analysis" {
		t.Errorf("expected analysis 'the analysis', got %q", results.Analysis)
	}
	if results.Summary != "the summary" {
		t.Errorf("expected summary 'the summary', got %q", results.Summary)
	}

	steps, _ := s.GetSteps(rec.ID)
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	var prev *time.Time
	for i, st := range steps {
		if st.Order != i+1 {
			t.Errorf("step %d: expected order %d, got %d", i, i+1, st.Order)
		}
		if st.Status != store.StatusDone {
			t.Errorf("step %d: expected done, got %s", i+1, st.Status)
		}
		if st.StartedAt == nil {
			t.Fatalf("step %d: missing startedAt", i+1)
		}
		if prev != nil && !st.StartedAt.After(*prev) {
			t.Errorf("step %d: startedAt not strictly after predecessor", i+1)
		}
		prev = st.StartedAt
	}
}

func TestRun_SearchFailureDegradesToFallback(t *testing.T) {
	s, ch := testSystem(t)

	exec := NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) {
			return nil, errors.New("search backend unreachable")
		}),
		scriptedGenerator("analysis", "summary"),
	)
	runner := NewRunner(s, ch, exec)
	rec := newPending(t, s, "resilience")

	if err := runner.Run(context.Background(), rec.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	steps, _ := s.GetSteps(rec.ID)
	if steps[0].Status != store.StatusDone {
		t.Fatalf("web_search step must complete despite backend failure, got %s", steps[0].Status)
	}
	var data store.SearchStepData
	if err := json.Unmarshal(steps[0].Data, &data); err != nil {
		t.Fatalf("decode step data: %v", err)
	}
	if len(data.Results) == 0 {
		t.Error("expected non-empty fallback results")
	}

	final, _ := s.GetResearch(rec.ID)
	if final.Status != store.StatusDone {
		t.Errorf("expected done, got %s", final.Status)
	}
}

func TestRun_AnalysisFailureFailsResearch(t *testing.T) {
	s, ch := testSystem(t)

	exec := NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) {
			return []store.SearchResult{{Title: "A", Content: "c1", URL: "u1"}}, nil
		}),
		generateFunc(func(ctx context.Context, prompt, system string) (string, error) {
			return "", errors.New("model overloaded")
		}),
	)
	runner := NewRunner(s, ch, exec)
	rec := newPending(t, s, "doomed")

	if err := runner.Run(context.Background(), rec.ID); err == nil {
		t.Fatal("expected Run to return the stage error")
	}

	final, _ := s.GetResearch(rec.ID)
	if final.Status != store.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if !strings.Contains(final.Error, "model overloaded") {
		t.Errorf("expected error to carry the cause, got %q", final.Error)
	}
	if string(final.Results) != "{}" {
		t.Errorf("expected empty results on failure, got %s", final.Results)
	}

	steps, _ := s.GetSteps(rec.ID)
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps (summary never created), got %d", len(steps))
	}
	if steps[0].Status != store.StatusDone {
		t.Errorf("step 1: expected done, got %s", steps[0].Status)
	}
	if steps[1].Status != store.StatusFailed {
		t.Errorf("step 2: expected failed, got %s", steps[1].Status)
	}

	// The terminal failure is announced.
	events, _ := ch.History(rec.ID)
	last := events[len(events)-1]
	if last.Type != updates.EventStatusUpdate || last.Status != string(store.StatusFailed) {
		t.Errorf("expected final failed status_update, got %+v", last)
	}
	if last.Error == "" {
		t.Error("expected error on the final event")
	}
}

func TestRun_SummaryFailureFailsResearch(t *testing.T) {
	s, ch := testSystem(t)

	exec := NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) {
			return []store.SearchResult{{Title: "A", Content: "c1", URL: "u1"}}, nil
		}),
		generateFunc(func(ctx context.Context, prompt, system string) (string, error) {
			if strings.HasPrefix(prompt, "Analyze these search results") {
				return "fine analysis", nil
			}
			return "", errors.New("summary blew up")
		}),
	)
	runner := NewRunner(s, ch, exec)
	rec := newPending(t, s, "late failure")

	if err := runner.Run(context.Background(), rec.ID); err == nil {
		t.Fatal("expected Run to return the stage error")
	}

	steps, _ := s.GetSteps(rec.ID)
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[2].Status != store.StatusFailed {
		t.Errorf("step 3: expected failed, got %s", steps[2].Status)
	}
	if steps[2].Error == "" {
		t.Error("step 3: expected error message")
	}
}

func TestRun_SecondConcurrentRunRefused(t *testing.T) {
	s, ch := testSystem(t)
	exec := NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) {
			return nil, nil
		}),
		scriptedGenerator("a", "s"),
	)
	runner := NewRunner(s, ch, exec)
	rec := newPending(t, s, "contended")

	// Simulate another orchestration holding the claim.
	now := time.Now().UTC()
	if _, err := s.SetResearchStatus(rec.ID, store.StatusRunning, store.StatusUpdate{StartedAt: &now}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	err := runner.Run(context.Background(), rec.ID)
	if !errors.Is(err, store.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	// The refused run created nothing.
	steps, _ := s.GetSteps(rec.ID)
	if len(steps) != 0 {
		t.Errorf("expected no steps from the refused run, got %d", len(steps))
	}
}

func TestRun_UnknownResearch(t *testing.T) {
	s, ch := testSystem(t)
	runner := NewRunner(s, ch, NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) { return nil, nil }),
		scriptedGenerator("a", "s"),
	))

	err := runner.Run(context.Background(), "no-such-id")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRun_CompletionEventCarriesPreviewOnly(t *testing.T) {
	s, ch := testSystem(t)

	longSummary := strings.Repeat("x", 500)
	exec := NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) {
			return []store.SearchResult{{Title: "A"}}, nil
		}),
		scriptedGenerator("analysis", longSummary),
	)
	runner := NewRunner(s, ch, exec)
	rec := newPending(t, s, "preview")

	if err := runner.Run(context.Background(), rec.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	events, _ := ch.History(rec.ID)
	last := events[len(events)-1]
	if last.Status != string(store.StatusDone) {
		t.Fatalf("expected final done event, got %+v", last)
	}
	data, ok := last.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data object on completion event, got %T", last.Data)
	}
	preview, _ := data["summary"].(string)
	if len(preview) == 0 || len(preview) > 203 {
		t.Errorf("expected bounded preview, got %d chars", len(preview))
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("expected truncated preview, got %q", preview)
	}
}

func TestPreview(t *testing.T) {
	if got := preview("short", 200); got != "short" {
		t.Errorf("short strings pass through, got %q", got)
	}
	long := strings.Repeat("é", 300)
	got := preview(long, 200)
	if len([]rune(got)) != 203 {
		t.Errorf("expected 200 runes + ellipsis, got %d runes", len([]rune(got)))
	}
}

func TestStatusSequenceIsMonotone(t *testing.T) {
	s, ch := testSystem(t)
	exec := NewExecutor(
		searchFunc(func(ctx context.Context, query string) ([]store.SearchResult, error) {
			return []store.SearchResult{{Title: "A"}}, nil
		}),
		scriptedGenerator("a", "s"),
	)
	runner := NewRunner(s, ch, exec)
	rec := newPending(t, s, "sequence")

	if err := runner.Run(context.Background(), rec.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The recorded status_update events walk forward through the
	// lifecycle, never backward.
	rank := map[string]int{"pending": 0, "running": 1, "done": 2, "failed": 2}
	events, _ := ch.History(rec.ID)
	last := -1
	for _, e := range events {
		if e.Type != updates.EventStatusUpdate {
			continue
		}
		r, ok := rank[e.Status]
		if !ok {
			t.Fatalf("unknown status %q", e.Status)
		}
		if r < last {
			t.Errorf("status went backward: %s after rank %d", e.Status, last)
		}
		last = r
	}
	if last != 2 {
		t.Error("expected a terminal status_update")
	}
}
