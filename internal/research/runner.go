package research

import (
	"context"
	"fmt"
	"log"
	"time"

	"ferret/internal/store"
	"ferret/internal/updates"
)

// Runner drives one research task through its pipeline. Stage output
// feeds the next stage; every transition is written to the store
// (which emits the bare status events) while the runner adds the
// human-readable progress announcements on top.
type Runner struct {
	store *store.Store
	ch    *updates.Channel
	exec  *Executor
}

// NewRunner creates a runner. The store, channel and executor are
// explicit dependencies owned by the wiring process.
func NewRunner(s *store.Store, ch *updates.Channel, exec *Executor) *Runner {
	return &Runner{store: s, ch: ch, exec: exec}
}

// Run executes the full pipeline for a pending research task.
// The pending -> running claim is exclusive: a second concurrent Run
// for the same ID fails with store.ErrAlreadyRunning and touches
// nothing. Once started, the task ends done or failed; there is no
// mid-pipeline cancellation.
func (r *Runner) Run(ctx context.Context, id string) error {
	rec, err := r.store.GetResearch(id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if _, err := r.store.SetResearchStatus(id, store.StatusRunning, store.StatusUpdate{StartedAt: &now}); err != nil {
		return err
	}

	r.announce(id, updates.Event{
		Type:    updates.EventStatusUpdate,
		Status:  string(store.StatusRunning),
		Message: fmt.Sprintf("Starting deep research for %q", rec.Query),
	})

	if err := r.runPipeline(ctx, rec); err != nil {
		r.fail(id, err)
		return err
	}
	return nil
}

func (r *Runner) runPipeline(ctx context.Context, rec *store.Research) error {
	// Stage 1: web search. Never fails outright — the executor falls
	// back to a fixed result set when the backend is unreachable.
	searchStep, err := r.startStep(rec.ID, 1, store.StepWebSearch, store.SearchStepData{
		Query:     rec.Query,
		StartTime: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	r.announceStep(rec.ID, searchStep, store.StatusRunning,
		fmt.Sprintf("Searching the web for information about %q", rec.Query), nil)

	results := r.exec.WebSearch(ctx, rec.Query)

	if err := r.completeStep(searchStep.ID, store.SearchStepData{
		Query:         rec.Query,
		Results:       results,
		CompletedTime: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	r.announceStep(rec.ID, searchStep, store.StatusDone,
		fmt.Sprintf("Found %d relevant sources about %q", len(results), rec.Query),
		map[string]any{"resultCount": len(results)})

	// Stage 2: content analysis over the search results.
	analysisStep, err := r.startStep(rec.ID, 2, store.StepContentAnalysis, store.AnalysisStepData{
		StartTime: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	r.announceStep(rec.ID, analysisStep, store.StatusRunning, "Analyzing content from search results", nil)

	analysis, err := r.exec.AnalyzeContent(ctx, rec.Query, results)
	if err != nil {
		r.failStep(analysisStep.ID, err)
		return err
	}

	if err := r.completeStep(analysisStep.ID, store.AnalysisStepData{
		Analysis:      analysis,
		CompletedTime: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	r.announceStep(rec.ID, analysisStep, store.StatusDone, "Completed content analysis", nil)

	// Stage 3: summary over the analysis.
	summaryStep, err := r.startStep(rec.ID, 3, store.StepSummaryGen, store.SummaryStepData{
		StartTime: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	r.announceStep(rec.ID, summaryStep, store.StatusRunning, "Generating comprehensive summary", nil)

	summary, err := r.exec.Summarize(ctx, rec.Query, analysis)
	if err != nil {
		r.failStep(summaryStep.ID, err)
		return err
	}

	if err := r.completeStep(summaryStep.ID, store.SummaryStepData{
		Summary:       summary,
		CompletedTime: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}
	r.announceStep(rec.ID, summaryStep, store.StatusDone, "Completed summary generation", nil)

	// All stages complete: aggregate the result and finish.
	resultsPayload, err := store.EncodeJSON(store.ResearchResults{
		SearchResults: results,
		Analysis:      analysis,
		Summary:       summary,
	})
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	now := time.Now().UTC()
	if _, err := r.store.SetResearchStatus(rec.ID, store.StatusDone, store.StatusUpdate{
		Results:     resultsPayload,
		CompletedAt: &now,
	}); err != nil {
		return err
	}

	// The completion event carries only a preview; the full summary
	// lives on the record.
	r.announce(rec.ID, updates.Event{
		Type:    updates.EventStatusUpdate,
		Status:  string(store.StatusDone),
		Message: "Deep research completed successfully",
		Data:    map[string]any{"summary": preview(summary, 200)},
	})

	return nil
}

// startStep creates a pipeline step already in the running state.
func (r *Runner) startStep(researchID string, order int, typ store.StepType, data any) (*store.ResearchStep, error) {
	payload, err := store.EncodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("encode step data: %w", err)
	}
	return r.store.CreateStep(researchID, order, typ, store.StatusRunning, payload)
}

func (r *Runner) completeStep(stepID string, data any) error {
	payload, err := store.EncodeJSON(data)
	if err != nil {
		return fmt.Errorf("encode step data: %w", err)
	}
	now := time.Now().UTC()
	_, err = r.store.SetStepStatus(stepID, store.StatusDone, store.StepUpdate{
		Data:        payload,
		CompletedAt: &now,
	})
	return err
}

// failStep marks the step failed. The research-level failure path
// follows regardless, so a store error here is logged, not returned.
func (r *Runner) failStep(stepID string, cause error) {
	now := time.Now().UTC()
	if _, err := r.store.SetStepStatus(stepID, store.StatusFailed, store.StepUpdate{
		Error:       cause.Error(),
		CompletedAt: &now,
	}); err != nil {
		log.Printf("research: mark step %s failed: %v", stepID, err)
	}
}

// fail moves the research to its terminal failed state. Notification
// errors are swallowed here: the record is the source of truth even if
// the last event is lost, and nothing may mask the original cause.
func (r *Runner) fail(id string, cause error) {
	now := time.Now().UTC()
	if _, err := r.store.SetResearchStatus(id, store.StatusFailed, store.StatusUpdate{
		Error:       cause.Error(),
		CompletedAt: &now,
	}); err != nil {
		log.Printf("research: mark research %s failed: %v", id, err)
	}
	r.announce(id, updates.Event{
		Type:    updates.EventStatusUpdate,
		Status:  string(store.StatusFailed),
		Message: "Deep research failed",
		Error:   cause.Error(),
	})
}

// announce publishes and records a progress event. Record failures are
// logged and swallowed — announcements never abort the pipeline.
func (r *Runner) announce(id string, e updates.Event) {
	e.Timestamp = time.Now().UTC()
	r.ch.Publish(id, e)
	if err := r.ch.Record(id, e); err != nil {
		log.Printf("research: record update for %s: %v", id, err)
	}
}

func (r *Runner) announceStep(researchID string, step *store.ResearchStep, status store.Status, message string, data any) {
	r.announce(researchID, updates.Event{
		Type:      updates.EventStepUpdate,
		StepID:    step.ID,
		StepType:  string(step.Type),
		StepOrder: step.Order,
		Status:    string(status),
		Message:   message,
		Data:      data,
	})
}

// preview truncates s to at most n runes for event payloads.
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
