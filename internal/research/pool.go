package research

import (
	"context"
	"errors"
	"log"
	"sync"

	"ferret/internal/store"
)

// Pool runs research pipelines in the background, at most maxWorkers
// at a time. Distinct tasks share no mutable state beyond the store,
// so they may run concurrently; the per-task running claim inside the
// store keeps duplicate starts for the same ID harmless.
type Pool struct {
	runner *Runner
	sem    chan struct{}
	wg     sync.WaitGroup
}

// NewPool creates a pool over the given runner.
func NewPool(runner *Runner, maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		runner: runner,
		sem:    make(chan struct{}, maxWorkers),
	}
}

// Start launches the pipeline for a research task in the background
// and returns immediately. Failures end up on the research record;
// here they are only logged.
func (p *Pool) Start(ctx context.Context, id string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.sem <- struct{}{} // acquire worker slot
		defer func() { <-p.sem }()

		if err := p.runner.Run(ctx, id); err != nil {
			if errors.Is(err, store.ErrAlreadyRunning) {
				log.Printf("research: %s is already being driven by another run", id)
				return
			}
			log.Printf("research: pipeline for %s failed: %v", id, err)
		}
	}()
}

// Wait blocks until all started pipelines have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}
