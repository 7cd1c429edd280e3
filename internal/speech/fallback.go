package speech

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Fallback tries a secondary provider when the primary fails.
type Fallback struct {
	primary  Pronouncer
	fallback Pronouncer
	log      *zap.SugaredLogger
}

// WithFallback wraps primary so that any primary failure is retried once on
// fallback. A cancelled request is not retried.
func WithFallback(primary, fallback Pronouncer, log *zap.SugaredLogger) *Fallback {
	return &Fallback{primary: primary, fallback: fallback, log: nopIfNil(log)}
}

// Name implements Pronouncer.
func (f *Fallback) Name() string {
	return fmt.Sprintf("%s (fallback: %s)", f.primary.Name(), f.fallback.Name())
}

// Voice returns the primary provider's voice, if it has one.
func (f *Fallback) Voice() string { return voiceOf(f.primary) }

// IsAvailable reports nil when at least one provider is usable.
func (f *Fallback) IsAvailable() error {
	primaryErr := f.primary.IsAvailable()
	if primaryErr == nil {
		return nil
	}
	fallbackErr := f.fallback.IsAvailable()
	if fallbackErr == nil {
		return nil
	}
	return fmt.Errorf("both providers unavailable: primary=%v, fallback=%v", primaryErr, fallbackErr)
}

// Synthesize implements Pronouncer.
func (f *Fallback) Synthesize(ctx context.Context, word string) (*Audio, error) {
	audio, err := f.primary.Synthesize(ctx, word)
	if err == nil {
		return audio, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyWord) {
		return nil, err
	}
	f.log.Warnw("primary pronouncer failed, using fallback",
		"primary", f.primary.Name(), "fallback", f.fallback.Name(), "error", err)

	audio, fbErr := f.fallback.Synthesize(ctx, word)
	if fbErr != nil {
		return nil, &PronunciationError{Provider: f.Name(), Word: word, Err: errors.Join(err, fbErr)}
	}
	out := *audio
	out.Substitute = true
	return &out, nil
}
