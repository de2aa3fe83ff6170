package matching

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/segyhp/reconciliation-engine/internal/domain"
)

// Result is the merged, unranked output of all generators.
type Result struct {
	Candidates    []domain.Candidate
	CountsPerKind map[domain.ObligationKind]int
	// FailedKinds lists generators that errored and contributed nothing.
	FailedKinds []domain.ObligationKind
}

// Engine fans a query out to every registered generator.
type Engine struct {
	generators []Generator
	logger     *slog.Logger
}

func NewEngine(logger *slog.Logger, generators ...Generator) *Engine {
	return &Engine{generators: generators, logger: logger}
}

// Kinds returns the obligation kinds this engine searches, in
// registration order.
func (e *Engine) Kinds() []domain.ObligationKind {
	kinds := make([]domain.ObligationKind, 0, len(e.generators))
	for _, g := range e.generators {
		kinds = append(kinds, g.Kind())
	}
	return kinds
}

// Run executes every generator concurrently. A failing generator is logged
// at WARN and treated as having found nothing; Run itself never fails.
func (e *Engine) Run(ctx context.Context, q Query) Result {
	type outcome struct {
		candidates []domain.Candidate
		err        error
	}
	outcomes := make([]outcome, len(e.generators))

	var wg sync.WaitGroup
	for i, g := range e.generators {
		wg.Add(1)
		go func(i int, g Generator) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = outcome{err: fmt.Errorf("generator panicked: %v", r)}
				}
			}()
			candidates, err := g.Generate(ctx, q)
			outcomes[i] = outcome{candidates: candidates, err: err}
		}(i, g)
	}
	wg.Wait()

	result := Result{CountsPerKind: make(map[domain.ObligationKind]int, len(e.generators))}
	for i, g := range e.generators {
		o := outcomes[i]
		if o.err != nil {
			e.logger.WarnContext(ctx, "candidate generator failed",
				"kind", g.Kind(),
				"customer_id", q.CustomerID,
				"error", o.err,
			)
			result.FailedKinds = append(result.FailedKinds, g.Kind())
			result.CountsPerKind[g.Kind()] = 0
			continue
		}
		result.CountsPerKind[g.Kind()] = len(o.candidates)
		result.Candidates = append(result.Candidates, o.candidates...)
	}
	return result
}
