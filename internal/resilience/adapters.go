package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
)

// Call runs fn through cb and returns its result. On rejection the zero T is
// returned together with the breaker error.
func Call[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var out T
	err := cb.Execute(func() error {
		var err error
		out, err = fn()
		return err
	})
	return out, err
}

// IsVendorFailure reports whether err indicates an unhealthy vendor: a
// transport failure, a 429 or 5xx status, or a response that broke the
// request-stitching protocol. Client errors (4xx) and caller cancellation do
// not count.
func IsVendorFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, tts.ErrMissingContinuationToken) {
		return true
	}
	var pe *tts.ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode == 0 ||
			pe.StatusCode == http.StatusTooManyRequests ||
			pe.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// breakerConfig fills in the vendor failure classifier when unset.
func breakerConfig(name string, cfg CircuitBreakerConfig) CircuitBreakerConfig {
	if cfg.Name == "" {
		cfg.Name = name
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = IsVendorFailure
	}
	return cfg
}

// Simple guards a [tts.SimpleSynthesizer] with a circuit breaker.
type Simple struct {
	next tts.SimpleSynthesizer
	cb   *CircuitBreaker
}

var _ tts.SimpleSynthesizer = (*Simple)(nil)

// NewSimple wraps next. An empty cfg.Name defaults to "openai".
func NewSimple(next tts.SimpleSynthesizer, cfg CircuitBreakerConfig) *Simple {
	return &Simple{next: next, cb: NewCircuitBreaker(breakerConfig("openai", cfg))}
}

// Synthesize implements tts.SimpleSynthesizer.
func (s *Simple) Synthesize(ctx context.Context, model, voiceID, text, format string) ([]byte, error) {
	return Call(s.cb, func() ([]byte, error) {
		return s.next.Synthesize(ctx, model, voiceID, text, format)
	})
}

// Breaker exposes the underlying breaker for health reporting.
func (s *Simple) Breaker() *CircuitBreaker { return s.cb }

// Conditioned guards a [tts.ConditionedSynthesizer] with a circuit breaker.
// ListVoices is forwarded through the same breaker when next supports it.
type Conditioned struct {
	next tts.ConditionedSynthesizer
	cb   *CircuitBreaker
}

var (
	_ tts.ConditionedSynthesizer = (*Conditioned)(nil)
	_ tts.VoiceLister            = (*Conditioned)(nil)
)

// NewConditioned wraps next. An empty cfg.Name defaults to "elevenlabs".
func NewConditioned(next tts.ConditionedSynthesizer, cfg CircuitBreakerConfig) *Conditioned {
	return &Conditioned{next: next, cb: NewCircuitBreaker(breakerConfig("elevenlabs", cfg))}
}

// SynthesizeConditioned implements tts.ConditionedSynthesizer.
func (c *Conditioned) SynthesizeConditioned(ctx context.Context, req tts.ConditionedRequest) (tts.ConditionedResult, error) {
	return Call(c.cb, func() (tts.ConditionedResult, error) {
		return c.next.SynthesizeConditioned(ctx, req)
	})
}

// ListVoices implements tts.VoiceLister.
func (c *Conditioned) ListVoices(ctx context.Context) ([]tts.RemoteVoice, error) {
	lister, ok := c.next.(tts.VoiceLister)
	if !ok {
		return nil, fmt.Errorf("%s: voice listing not supported", c.cb.Name())
	}
	return Call(c.cb, func() ([]tts.RemoteVoice, error) {
		return lister.ListVoices(ctx)
	})
}

// Breaker exposes the underlying breaker for health reporting.
func (c *Conditioned) Breaker() *CircuitBreaker { return c.cb }
