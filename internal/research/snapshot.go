package research

import (
	"errors"

	"ferret/internal/store"
	"ferret/internal/updates"
)

// Snapshot is what a viewer sees at one point in time: the research
// record, its steps, and — only while the task is still running — the
// retained event history for catching up. Once terminal, the record's
// own results/error fields are authoritative and replay is redundant.
type Snapshot struct {
	Research *store.Research      `json:"research"`
	Steps    []store.ResearchStep `json:"steps,omitempty"`
	Events   []updates.Event      `json:"updates,omitempty"`
}

// Gateway is the read path for viewers. It performs no mutation and is
// safe to call concurrently and repeatedly.
type Gateway struct {
	store *store.Store
	ch    *updates.Channel
}

// NewGateway creates a gateway over the store and update channel.
func NewGateway(s *store.Store, ch *updates.Channel) *Gateway {
	return &Gateway{store: s, ch: ch}
}

// Snapshot returns the current view of one research task, or nil if
// the task does not exist (absence is not an error).
func (g *Gateway) Snapshot(id string) (*Snapshot, error) {
	rec, err := g.store.GetResearch(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return g.snapshot(rec)
}

// SnapshotsByChat returns the current view of every research task in a
// chat, newest first.
func (g *Gateway) SnapshotsByChat(chatID string) ([]Snapshot, error) {
	recs, err := g.store.ListResearchByChat(chatID)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(recs))
	for i := range recs {
		snap, err := g.snapshot(&recs[i])
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, nil
}

func (g *Gateway) snapshot(rec *store.Research) (*Snapshot, error) {
	steps, err := g.store.GetSteps(rec.ID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Research: rec, Steps: steps}

	if rec.Status == store.StatusRunning {
		events, err := g.ch.History(rec.ID)
		if err != nil {
			return nil, err
		}
		snap.Events = events
	}
	return snap, nil
}
