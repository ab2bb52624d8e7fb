// Package speech is the speech-block orchestration engine. A [Client] owns a
// voice registry and the platform adapters, and turns an ordered list of
// [voice.SpeechBlock] values into a single normalized track (or one buffer
// per block).
//
// Consecutive blocks that share a voice on a platform supporting context
// conditioning are synthesized as a group: every call in the group carries
// the surrounding text and the request ids of the previous calls so the
// vendor can keep prosody continuous across segments. All other blocks are
// synthesized standalone. Calls are strictly sequential.
package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jellypod-Inc/route-tts/internal/observe"
	"github.com/Jellypod-Inc/route-tts/pkg/audio"
	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// Options controls a single [Client.GenerateSpeechList] call.
type Options struct {
	// InterBlockBufferMs is silence inserted after every block except the last.
	InterBlockBufferMs int

	// SingleOutput folds all segments into [Result.Audio]. When false the
	// per-block segments are returned in [Result.Segments].
	SingleOutput bool

	// NormalizeOutputs enables loudness normalization across segments.
	NormalizeOutputs bool

	// RequestStitching enables grouping for context-conditioned platforms.
	RequestStitching bool

	// TargetLevel and Tolerance parameterise [Normalize], in dBFS.
	TargetLevel float64
	Tolerance   float64
}

// DefaultOptions returns the documented defaults: no inter-block silence,
// single output, normalization and request stitching on, -30 dBFS ± 3.
func DefaultOptions() Options {
	return Options{
		SingleOutput:     true,
		NormalizeOutputs: true,
		RequestStitching: true,
		TargetLevel:      DefaultTargetLevel,
		Tolerance:        DefaultTolerance,
	}
}

// Validate reports option values outside their domain.
func (o Options) Validate() error {
	if o.InterBlockBufferMs < 0 {
		return fmt.Errorf("%w: inter_block_buffer_ms must not be negative, got %d", ErrInvalidOptions, o.InterBlockBufferMs)
	}
	if o.NormalizeOutputs && o.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance must be positive, got %g", ErrInvalidOptions, o.Tolerance)
	}
	return nil
}

// Result is the output of a generation.
type Result struct {
	// RunID identifies the generation in logs and spans.
	RunID string

	// Audio is the concatenated track. Set only when Options.SingleOutput.
	Audio audio.Buffer

	// Segments holds one buffer per input block, each followed by its
	// trailing silence. Set only when Options.SingleOutput is false.
	Segments []audio.Buffer
}

// Client orchestrates speech synthesis across platforms.
//
// Client performs no locking. Callers must not mutate the registry or run
// generations concurrently on the same Client.
type Client struct {
	voices     *voice.Registry
	openai     tts.SimpleSynthesizer
	elevenlabs tts.ConditionedSynthesizer
	decoder    audio.Decoder
	metrics    *observe.Metrics
}

// Option configures a [Client].
type Option func(*Client)

// WithOpenAI sets the adapter used for [voice.PlatformOpenAI] voices.
func WithOpenAI(s tts.SimpleSynthesizer) Option {
	return func(c *Client) { c.openai = s }
}

// WithElevenLabs sets the adapter used for [voice.PlatformElevenLabs] voices.
func WithElevenLabs(s tts.ConditionedSynthesizer) Option {
	return func(c *Client) { c.elevenlabs = s }
}

// WithDecoder overrides the decoder applied to adapter output.
func WithDecoder(d audio.Decoder) Option {
	return func(c *Client) { c.decoder = d }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient returns a client over voices. A nil registry is replaced by an
// empty one. Platforms without an adapter fail at generation time with
// [tts.ErrProviderNotConfigured].
func NewClient(voices *voice.Registry, opts ...Option) *Client {
	if voices == nil {
		voices = voice.NewRegistry()
	}
	c := &Client{voices: voices}
	for _, o := range opts {
		o(c)
	}
	if c.decoder == nil {
		c.decoder = audio.NewDecoder(audio.DefaultFormat)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Voices returns the registry owned by c.
func (c *Client) Voices() *voice.Registry { return c.voices }

// AddVoice validates v and inserts or replaces it in the registry.
func (c *Client) AddVoice(v voice.Voice) error {
	if err := v.Validate(); err != nil {
		return err
	}
	c.voices.Upsert(v)
	return nil
}

// RemoveVoice deletes a voice. The error wraps [voice.ErrNotFound] when id
// is not registered.
func (c *Client) RemoveVoice(id string) error {
	return c.voices.Remove(id)
}

// ListVoices returns all registered voices in insertion order.
func (c *Client) ListVoices() []voice.Voice {
	return c.voices.List()
}

// GenerateSpeech synthesizes one block standalone, without conditioning
// context and without normalization.
func (c *Client) GenerateSpeech(ctx context.Context, block voice.SpeechBlock) (audio.Buffer, error) {
	v, err := c.resolve(0, block)
	if err != nil {
		return audio.Buffer{}, err
	}
	ctx, span := observe.StartSpan(ctx, "speech.generate",
		trace.WithAttributes(
			attribute.String("voice.id", v.ID),
			attribute.String("voice.platform", v.Platform.String()),
		),
	)
	buf, err := c.generateStandalone(ctx, 0, block, v)
	observe.EndSpan(span, err)
	return buf, err
}

// resolve looks up the voice for block i and checks that the client can
// dispatch on its platform.
func (c *Client) resolve(i int, b voice.SpeechBlock) (voice.Voice, error) {
	if b.BufferMs < 0 {
		return voice.Voice{}, &GenerationError{
			Index: i, Text: b.Text, VoiceID: b.VoiceID,
			Cause: fmt.Errorf("%w: buffer_ms must not be negative, got %d", ErrInvalidOptions, b.BufferMs),
		}
	}
	v, ok := c.voices.Resolve(b.VoiceID)
	if !ok {
		return voice.Voice{}, &VoiceNotFoundError{Index: i, VoiceID: b.VoiceID}
	}
	var configured bool
	switch v.Platform {
	case voice.PlatformOpenAI:
		configured = c.openai != nil
	case voice.PlatformElevenLabs:
		configured = c.elevenlabs != nil
	default:
		return voice.Voice{}, &UnsupportedPlatformError{VoiceID: v.ID, Platform: v.Platform}
	}
	if !configured {
		return voice.Voice{}, &GenerationError{
			Index: i, Text: b.Text, VoiceID: b.VoiceID,
			Cause: fmt.Errorf("%s: %w", v.Platform, tts.ErrProviderNotConfigured),
		}
	}
	return v, nil
}

// generateStandalone synthesizes one block with no conditioning context.
func (c *Client) generateStandalone(ctx context.Context, i int, b voice.SpeechBlock, v voice.Voice) (audio.Buffer, error) {
	var (
		data []byte
		err  error
	)
	switch v.Platform {
	case voice.PlatformOpenAI:
		data, err = c.callSimple(ctx, v, b.Text)
	case voice.PlatformElevenLabs:
		var res tts.ConditionedResult
		res, err = c.callConditioned(ctx, conditionedRequest(v, b.Text))
		data = res.Audio
	default:
		return audio.Buffer{}, &UnsupportedPlatformError{VoiceID: v.ID, Platform: v.Platform}
	}
	if err != nil {
		return audio.Buffer{}, &GenerationError{Index: i, Text: b.Text, VoiceID: b.VoiceID, Cause: err}
	}
	buf, err := c.decoder.Decode(ctx, data, v.EffectiveFormat())
	if err != nil {
		return audio.Buffer{}, &GenerationError{Index: i, Text: b.Text, VoiceID: b.VoiceID, Cause: err}
	}
	c.metrics.RecordBlock(ctx, v.Platform.String(), "standalone")
	observe.Logger(ctx).Debug("block synthesized",
		"index", i,
		"voice", v.ID,
		"platform", v.Platform,
		"duration", buf.Duration(),
	)
	return buf, nil
}

func conditionedRequest(v voice.Voice, text string) tts.ConditionedRequest {
	return tts.ConditionedRequest{
		VoiceID:      v.Voice,
		ModelID:      v.Model,
		Text:         text,
		OutputFormat: v.OutputFormat,
		Settings:     v.Settings,
	}
}

func (c *Client) callSimple(ctx context.Context, v voice.Voice, text string) ([]byte, error) {
	const provider = "openai"
	ctx, span := observe.StartSpan(ctx, "tts.synthesize",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("tts.model", v.Model),
			attribute.Int("tts.text_length", len(text)),
		),
	)
	start := time.Now()
	data, err := c.openai.Synthesize(ctx, v.Model, v.Voice, text, v.EffectiveFormat())
	c.recordCall(ctx, provider, start, err)
	observe.EndSpan(span, err)
	return data, err
}

func (c *Client) callConditioned(ctx context.Context, req tts.ConditionedRequest) (tts.ConditionedResult, error) {
	const provider = "elevenlabs"
	ctx, span := observe.StartSpan(ctx, "tts.synthesize",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("tts.model", req.ModelID),
			attribute.Int("tts.text_length", len(req.Text)),
			attribute.Int("tts.previous_request_ids", len(req.PreviousRequestIDs)),
		),
	)
	start := time.Now()
	res, err := c.elevenlabs.SynthesizeConditioned(ctx, req)
	c.recordCall(ctx, provider, start, err)
	if err == nil {
		span.SetAttributes(attribute.String("tts.request_id", res.RequestID))
	}
	observe.EndSpan(span, err)
	return res, err
}

func (c *Client) recordCall(ctx context.Context, provider string, start time.Time, err error) {
	c.metrics.RecordTTSDuration(ctx, provider, time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		c.metrics.RecordProviderError(ctx, provider, "tts")
	}
	c.metrics.RecordProviderRequest(ctx, provider, "tts", status)
}

func newRunID() string { return uuid.NewString() }
