// Package speech turns a practice word into playable audio. Providers are
// interchangeable behind Pronouncer and can be stacked with a fallback, a
// tiered cache and a circuit breaker.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MIME types produced by the providers.
const (
	MIMEMP3 = "audio/mpeg"
	MIMEWAV = "audio/wav"
)

// Audio is a synthesized pronunciation.
type Audio struct {
	Data     []byte
	MIMEType string
	// Substitute is set when a fallback provider produced the audio. Caches
	// do not store it.
	Substitute bool
}

// Pronouncer synthesizes the pronunciation of a single word.
type Pronouncer interface {
	// Synthesize returns audio for word. Failures are *PronunciationError.
	Synthesize(ctx context.Context, word string) (*Audio, error)

	// Name identifies the provider in logs and cache keys.
	Name() string

	// IsAvailable reports whether the provider is configured and reachable
	// without making a billable request.
	IsAvailable() error
}

// Sentinel errors wrapped by PronunciationError.
var (
	ErrMissingCredential = errors.New("missing API key")
	ErrEmptyWord         = errors.New("empty word")
	ErrNoAudio           = errors.New("provider returned no audio")
)

// PronunciationError reports a failed synthesis.
type PronunciationError struct {
	Provider string
	Word     string
	Err      error
}

func (e *PronunciationError) Error() string {
	return fmt.Sprintf("speech: %s: pronounce %q: %v", e.Provider, e.Word, e.Err)
}

func (e *PronunciationError) Unwrap() error { return e.Err }

func pronunciationError(provider, word string, err error) error {
	var pe *PronunciationError
	if errors.As(err, &pe) {
		return err
	}
	return &PronunciationError{Provider: provider, Word: word, Err: err}
}

// Config selects and tunes a provider.
type Config struct {
	Provider     string // openai, gemini or espeak
	Voice        string
	Model        string
	Speed        float64
	Instructions string
	Timeout      time.Duration

	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
}

// New builds the provider named in cfg.Provider. Remote providers fail with
// ErrMissingCredential when their key is empty.
func New(ctx context.Context, cfg Config, log *zap.SugaredLogger) (Pronouncer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:       cfg.OpenAIKey,
			BaseURL:      cfg.OpenAIBaseURL,
			Model:        cfg.Model,
			Voice:        cfg.Voice,
			Speed:        cfg.Speed,
			Instructions: cfg.Instructions,
			Timeout:      cfg.Timeout,
		})
	case ProviderGemini:
		return NewGemini(ctx, GeminiConfig{
			APIKey:  cfg.GeminiKey,
			Model:   cfg.Model,
			Voice:   cfg.Voice,
			Timeout: cfg.Timeout,
		})
	case ProviderESpeak:
		return NewESpeak(ESpeakConfig{Voice: cfg.Voice, Timeout: cfg.Timeout}, log), nil
	default:
		return nil, fmt.Errorf("speech: unknown provider %q", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func nopIfNil(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}
