// Package mock provides test doubles for the tts adapter contracts.
//
// Both doubles record every call so tests can assert on the exact arguments
// the orchestrator sent, including conditioning context.
//
// Example:
//
//	p := &mock.Conditioned{
//	    Audio: func(req tts.ConditionedRequest) []byte { return pcmFor(req.Text) },
//	}
//	res, _ := p.SynthesizeConditioned(ctx, req)
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Simple.Synthesize.
type SynthesizeCall struct {
	Model  string
	Voice  string
	Text   string
	Format string
}

// Simple is a mock implementation of tts.SimpleSynthesizer.
type Simple struct {
	mu sync.Mutex

	// Audio, if set, computes the response for each call. Otherwise
	// DefaultAudio is returned.
	Audio func(call SynthesizeCall) []byte

	// DefaultAudio is returned when Audio is nil.
	DefaultAudio []byte

	// Err, if non-nil, is returned from every call.
	Err error

	// FailOn maps a call index (0-based) to an error returned for that call only.
	FailOn map[int]error

	// Calls records every call in order.
	Calls []SynthesizeCall
}

var _ tts.SimpleSynthesizer = (*Simple)(nil)

// Synthesize records the call and returns the configured response.
func (m *Simple) Synthesize(_ context.Context, model, voiceID, text, format string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := SynthesizeCall{Model: model, Voice: voiceID, Text: text, Format: format}
	idx := len(m.Calls)
	m.Calls = append(m.Calls, call)
	if err := m.FailOn[idx]; err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Audio != nil {
		return m.Audio(call), nil
	}
	return slices.Clone(m.DefaultAudio), nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (m *Simple) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (m *Simple) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// Conditioned is a mock implementation of tts.ConditionedSynthesizer and
// tts.VoiceLister. Each successful call returns the request id
// "<RequestIDPrefix><n>" where n counts from 1.
type Conditioned struct {
	mu sync.Mutex

	// Audio, if set, computes the audio for each call. Otherwise DefaultAudio
	// is returned.
	Audio func(req tts.ConditionedRequest) []byte

	// DefaultAudio is returned when Audio is nil.
	DefaultAudio []byte

	// RequestIDPrefix defaults to "req-".
	RequestIDPrefix string

	// OmitRequestID makes every call fail with tts.ErrMissingContinuationToken.
	OmitRequestID bool

	// Err, if non-nil, is returned from every call.
	Err error

	// FailOn maps a call index (0-based) to an error returned for that call only.
	FailOn map[int]error

	// Voices is returned by ListVoices.
	Voices []tts.RemoteVoice

	// ListErr, if non-nil, is returned from ListVoices.
	ListErr error

	// Calls records every SynthesizeConditioned call in order.
	Calls []tts.ConditionedRequest
}

var (
	_ tts.ConditionedSynthesizer = (*Conditioned)(nil)
	_ tts.VoiceLister            = (*Conditioned)(nil)
)

// SynthesizeConditioned records a deep copy of req and returns the configured
// response.
func (m *Conditioned) SynthesizeConditioned(_ context.Context, req tts.ConditionedRequest) (tts.ConditionedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.Calls)
	m.Calls = append(m.Calls, copyRequest(req))
	if err := m.FailOn[idx]; err != nil {
		return tts.ConditionedResult{}, err
	}
	if m.Err != nil {
		return tts.ConditionedResult{}, m.Err
	}
	if m.OmitRequestID {
		return tts.ConditionedResult{}, fmt.Errorf("mock: %w", tts.ErrMissingContinuationToken)
	}
	prefix := m.RequestIDPrefix
	if prefix == "" {
		prefix = "req-"
	}
	audio := slices.Clone(m.DefaultAudio)
	if m.Audio != nil {
		audio = m.Audio(req)
	}
	return tts.ConditionedResult{Audio: audio, RequestID: fmt.Sprintf("%s%d", prefix, idx+1)}, nil
}

// ListVoices returns Voices, ListErr.
func (m *Conditioned) ListVoices(context.Context) ([]tts.RemoteVoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Voices, m.ListErr
}

// CallCount returns the number of recorded calls. Thread-safe.
func (m *Conditioned) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (m *Conditioned) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

func copyRequest(req tts.ConditionedRequest) tts.ConditionedRequest {
	req.PreviousRequestIDs = slices.Clone(req.PreviousRequestIDs)
	if req.PreviousText != nil {
		s := *req.PreviousText
		req.PreviousText = &s
	}
	if req.NextText != nil {
		s := *req.NextText
		req.NextText = &s
	}
	return req
}
