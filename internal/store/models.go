package store

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state shared by research tasks and their steps.
// Transitions only move forward: pending -> running -> done | failed.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// StepType identifies a pipeline stage.
type StepType string

const (
	StepWebSearch       StepType = "web_search"
	StepWebsiteVisit    StepType = "website_visit" // reserved; not part of the default pipeline
	StepContentAnalysis StepType = "content_analysis"
	StepSummaryGen      StepType = "summary_generation"
)

// Chat is the owning conversation a research request belongs to.
// Deleting a chat cascades to its research records.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Research is one end-to-end research request and its aggregate state.
type Research struct {
	ID          string          `json:"id"`
	ChatID      string          `json:"chat_id"`
	UserID      string          `json:"user_id"`
	Query       string          `json:"query"`
	Status      Status          `json:"status"`
	Results     json.RawMessage `json:"results"` // empty until status is done
	Error       string          `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ResearchStep is one ordered stage of a research pipeline.
type ResearchStep struct {
	ID          string          `json:"id"`
	ResearchID  string          `json:"research_id"`
	Order       int             `json:"step_order"` // 1-based, contiguous per research
	Type        StepType        `json:"step_type"`
	Status      Status          `json:"status"`
	Data        json.RawMessage `json:"data"`
	Error       string          `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// SearchResult is one source found by the web search stage.
type SearchResult struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// SearchStepData is the payload of a web_search step.
type SearchStepData struct {
	Query         string         `json:"query"`
	Results       []SearchResult `json:"results,omitempty"`
	StartTime     string         `json:"startTime,omitempty"`
	CompletedTime string         `json:"completedTime,omitempty"`
}

// AnalysisStepData is the payload of a content_analysis step.
type AnalysisStepData struct {
	Analysis      string `json:"analysis,omitempty"`
	StartTime     string `json:"startTime,omitempty"`
	CompletedTime string `json:"completedTime,omitempty"`
}

// SummaryStepData is the payload of a summary_generation step.
type SummaryStepData struct {
	Summary       string `json:"summary,omitempty"`
	StartTime     string `json:"startTime,omitempty"`
	CompletedTime string `json:"completedTime,omitempty"`
}

// ResearchResults is the aggregate output of a completed pipeline.
type ResearchResults struct {
	SearchResults []SearchResult `json:"searchResults"`
	Analysis      string         `json:"analysis"`
	Summary       string         `json:"summary"`
}

// EncodeJSON marshals a payload for storage in a data/results column.
func EncodeJSON(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
