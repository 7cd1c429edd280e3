package judge

import (
	"context"

	"spellbee/internal/breaker"
)

// Guarded runs an evaluator behind a circuit breaker.
type Guarded struct {
	next Evaluator
	b    *breaker.Breaker
}

// NewGuarded wraps e with b.
func NewGuarded(e Evaluator, b *breaker.Breaker) *Guarded {
	return &Guarded{next: e, b: b}
}

// Name implements Evaluator.
func (g *Guarded) Name() string { return g.next.Name() }

// Evaluate implements Evaluator.
func (g *Guarded) Evaluate(ctx context.Context, target string, clip Clip) (*Judgment, error) {
	j, err := breaker.Do(ctx, g.b, func() (*Judgment, error) {
		return g.next.Evaluate(ctx, target, clip)
	})
	if err != nil {
		return nil, evaluationError(g.next.Name(), target, err)
	}
	return j, nil
}
