// Package judge decides whether a recorded spelling attempt matches the
// target word. Judging is delegated to a remote model; the result is a
// human-readable judgment shown to the speller as-is.
package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Clip is a recorded spelling attempt as uploaded by the browser.
type Clip struct {
	Data     []byte
	MIMEType string
}

// Judgment is the evaluator's verdict. Text is always set and is displayed
// verbatim. Heard and Correct are optional hints; they are empty or nil when
// the backend did not provide them.
type Judgment struct {
	Text    string
	Heard   string
	Correct *bool
}

// Evaluator judges a spelling attempt against a target word.
type Evaluator interface {
	// Evaluate returns a judgment or an *EvaluationError.
	Evaluate(ctx context.Context, target string, clip Clip) (*Judgment, error)
	Name() string
}

// Sentinel errors wrapped by EvaluationError.
var (
	ErrMissingCredential = errors.New("missing API key")
	ErrEmptyTarget       = errors.New("empty target word")
	ErrEmptyClip         = errors.New("recording is empty")
	ErrNoJudgment        = errors.New("evaluator returned no judgment")
)

// EvaluationError reports a failed evaluation.
type EvaluationError struct {
	Provider string
	Word     string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e.Word == "" {
		return fmt.Sprintf("judge: %s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("judge: %s: evaluate %q: %v", e.Provider, e.Word, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func evaluationError(provider, word string, err error) error {
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return err
	}
	return &EvaluationError{Provider: provider, Word: word, Err: err}
}

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and tunes an evaluator.
type Config struct {
	Provider        string // gemini (default) or openai
	Model           string
	TranscribeModel string // openai only
	Timeout         time.Duration

	GeminiKey     string
	OpenAIKey     string
	OpenAIBaseURL string
}

// New builds the evaluator named in cfg.Provider. It fails with
// ErrMissingCredential when the provider has no API key.
func New(ctx context.Context, cfg Config) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		return NewGemini(ctx, GeminiConfig{APIKey: cfg.GeminiKey, Model: cfg.Model, Timeout: cfg.Timeout})
	case ProviderOpenAI:
		return NewOpenAI(OpenAIConfig{
			APIKey:          cfg.OpenAIKey,
			BaseURL:         cfg.OpenAIBaseURL,
			Model:           cfg.Model,
			TranscribeModel: cfg.TranscribeModel,
			Timeout:         cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("judge: unknown provider %q", cfg.Provider)
	}
}

func validate(provider, target string, clip Clip) error {
	if strings.TrimSpace(target) == "" {
		return &EvaluationError{Provider: provider, Err: ErrEmptyTarget}
	}
	if len(clip.Data) == 0 {
		return &EvaluationError{Provider: provider, Word: target, Err: ErrEmptyClip}
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
