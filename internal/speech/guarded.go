package speech

import (
	"context"

	"spellbee/internal/breaker"
)

// Guarded runs a provider behind a circuit breaker.
type Guarded struct {
	next Pronouncer
	b    *breaker.Breaker
}

// NewGuarded wraps p with b. While b is open, Synthesize fails fast with a
// *PronunciationError wrapping breaker.ErrOpen.
func NewGuarded(p Pronouncer, b *breaker.Breaker) *Guarded {
	return &Guarded{next: p, b: b}
}

// Name implements Pronouncer.
func (g *Guarded) Name() string { return g.next.Name() }

// Voice returns the wrapped provider's voice, if it has one.
func (g *Guarded) Voice() string { return voiceOf(g.next) }

// IsAvailable implements Pronouncer.
func (g *Guarded) IsAvailable() error { return g.next.IsAvailable() }

// Synthesize implements Pronouncer.
func (g *Guarded) Synthesize(ctx context.Context, word string) (*Audio, error) {
	audio, err := breaker.Do(ctx, g.b, func() (*Audio, error) {
		return g.next.Synthesize(ctx, word)
	})
	if err != nil {
		return nil, pronunciationError(g.next.Name(), word, err)
	}
	return audio, nil
}
