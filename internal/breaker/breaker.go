// Package breaker wraps sony/gobreaker for the remote speech and judging
// providers so a failing upstream is not hammered on every click.
package breaker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("provider temporarily unavailable")

// Settings configure a Breaker. Zero values fall back to defaults.
type Settings struct {
	Name         string
	MaxFailures  uint32        // consecutive failures before opening
	OpenTimeout  time.Duration // how long to stay open
	HalfOpenMax  uint32        // probe calls allowed while half-open
	ResetWindow  time.Duration // closed-state counter reset interval
	IsSuccessful func(error) bool // extra errors that do not count as failures
}

const (
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
	defaultHalfOpenMax = 1
	defaultResetWindow = time.Minute
)

// Breaker is a named circuit breaker.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// New builds a Breaker. State changes are logged at warn level.
func New(s Settings, log *zap.SugaredLogger) *Breaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = defaultMaxFailures
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = defaultOpenTimeout
	}
	if s.HalfOpenMax == 0 {
		s.HalfOpenMax = defaultHalfOpenMax
	}
	if s.ResetWindow == 0 {
		s.ResetWindow = defaultResetWindow
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	maxFailures := s.MaxFailures
	extra := s.IsSuccessful

	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.HalfOpenMax,
		Interval:    s.ResetWindow,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.As(err, new(*callerError)) || IsClientError(err) {
				return true
			}
			return extra != nil && extra(err)
		},
	})}
}

// Name returns the breaker name.
func (b *Breaker) Name() string { return b.cb.Name() }

// State returns "closed", "half-open" or "open".
func (b *Breaker) State() string { return b.cb.State().String() }

// callerError marks an error returned after the caller's context ended.
type callerError struct{ err error }

func (e *callerError) Error() string { return e.err.Error() }
func (e *callerError) Unwrap() error { return e.err }

// IsClientError reports whether err is an upstream rejection of this one
// request (a 4xx other than 429), such as unusable audio or a bad argument.
// Those say nothing about the provider's health.
func IsClientError(err error) bool {
	code := 0
	var gv genai.APIError
	var gp *genai.APIError
	var oa *openai.APIError
	var re *openai.RequestError
	switch {
	case errors.As(err, &gv):
		code = gv.Code
	case errors.As(err, &gp):
		code = gp.Code
	case errors.As(err, &oa):
		code = oa.HTTPStatusCode
	case errors.As(err, &re):
		code = re.HTTPStatusCode
	}
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// Do runs fn through the breaker. Rejections are reported as ErrOpen. A
// failure seen after ctx is done belongs to the caller and is not counted.
func Do[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn()
	}
	out, err := b.cb.Execute(func() (interface{}, error) {
		v, err := fn()
		if err != nil && ctx.Err() != nil {
			return v, &callerError{err: err}
		}
		return v, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, ErrOpen
		}
		var ce *callerError
		if errors.As(err, &ce) {
			return zero, ce.err
		}
		return zero, err
	}
	v, ok := out.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}
