// Package app wires the route-tts subsystems into a running application.
//
// The App owns the voice registry, the platform adapters (each guarded by a
// circuit breaker), and the speech client. It serialises every generation
// and every registry mutation behind a single mutex, since the speech client
// itself performs no locking.
//
// For testing, inject mock adapters through [Providers] and override the
// decoder or metrics with functional options.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Jellypod-Inc/route-tts/internal/config"
	"github.com/Jellypod-Inc/route-tts/internal/health"
	"github.com/Jellypod-Inc/route-tts/internal/observe"
	"github.com/Jellypod-Inc/route-tts/internal/resilience"
	"github.com/Jellypod-Inc/route-tts/internal/speech"
	"github.com/Jellypod-Inc/route-tts/pkg/audio"
	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// Providers holds one adapter per platform. Nil means the platform is not
// configured. Populated by main.go via the config registry.
type Providers struct {
	OpenAI     tts.SimpleSynthesizer
	ElevenLabs tts.ConditionedSynthesizer
}

// App owns the registry and adapters and serves generations one at a time.
type App struct {
	mu       sync.Mutex
	voices   *voice.Registry
	client   *speech.Client
	defaults speech.Options

	openai     *resilience.Simple
	elevenlabs *resilience.Conditioned

	decoder  audio.Decoder
	metrics  *observe.Metrics
	logLevel *slog.LevelVar
}

// Option is a functional option for New.
type Option func(*App)

// WithDecoder overrides the decoder built from the generation format.
func WithDecoder(d audio.Decoder) Option {
	return func(a *App) { a.decoder = d }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads adjust the log level through lv.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// New builds an App from cfg. Each non-nil adapter in providers is wrapped in
// a circuit breaker tuned by cfg.Resilience.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		voices:   voice.NewRegistry(cfg.Voices...),
		defaults: cfg.Generation.Options(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.decoder == nil {
		a.decoder = audio.NewDecoder(cfg.Generation.Format())
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	cbCfg := resilience.CircuitBreakerConfig{
		MaxFailures:   cfg.Resilience.MaxFailures,
		ResetTimeout:  cfg.Resilience.ResetTimeout,
		OnStateChange: logBreakerTransition,
	}
	clientOpts := []speech.Option{
		speech.WithDecoder(a.decoder),
		speech.WithMetrics(a.metrics),
	}
	if providers.OpenAI != nil {
		a.openai = resilience.NewSimple(providers.OpenAI, cbCfg)
		clientOpts = append(clientOpts, speech.WithOpenAI(a.openai))
	}
	if providers.ElevenLabs != nil {
		a.elevenlabs = resilience.NewConditioned(providers.ElevenLabs, cbCfg)
		clientOpts = append(clientOpts, speech.WithElevenLabs(a.elevenlabs))
	}
	a.client = speech.NewClient(a.voices, clientOpts...)

	slog.Info("app initialised",
		"voices", a.voices.Len(),
		"openai", providers.OpenAI != nil,
		"elevenlabs", providers.ElevenLabs != nil,
	)
	return a, nil
}

func logBreakerTransition(name string, from, to resilience.State) {
	level := slog.LevelInfo
	if to == resilience.StateOpen {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state change", "provider", name, "from", from, "to", to)
}

// Defaults returns the generation options configured for this instance.
func (a *App) Defaults() speech.Options {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.defaults
}

// Generate runs one speech list generation. Concurrent callers queue.
func (a *App) Generate(ctx context.Context, blocks []voice.SpeechBlock, opts speech.Options) (speech.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client.GenerateSpeechList(ctx, blocks, opts)
}

// GenerateSpeech synthesizes a single block.
func (a *App) GenerateSpeech(ctx context.Context, block voice.SpeechBlock) (audio.Buffer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client.GenerateSpeech(ctx, block)
}

// Voices returns the registered voices in insertion order.
func (a *App) Voices() []voice.Voice {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client.ListVoices()
}

// VoiceCount returns the number of registered voices.
func (a *App) VoiceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.voices.Len()
}

// UpsertVoice validates and registers v.
func (a *App) UpsertVoice(v voice.Voice) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client.AddVoice(v)
}

// RemoveVoice unregisters the voice id. The error wraps [voice.ErrNotFound]
// when id is unknown.
func (a *App) RemoveVoice(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client.RemoveVoice(id)
}

// Configured reports whether an adapter is wired for platform p.
func (a *App) Configured(p voice.Platform) bool {
	switch p {
	case voice.PlatformOpenAI:
		return a.openai != nil
	case voice.PlatformElevenLabs:
		return a.elevenlabs != nil
	}
	return false
}

// RemoteVoices lists the voice catalogue of the conditioning platform.
func (a *App) RemoteVoices(ctx context.Context) ([]tts.RemoteVoice, error) {
	if a.elevenlabs == nil {
		return nil, fmt.Errorf("%s: %w", voice.PlatformElevenLabs, tts.ErrProviderNotConfigured)
	}
	return a.elevenlabs.ListVoices(ctx)
}

// ApplyConfig applies the hot-reloadable parts of a config change: voices,
// generation defaults, and the log level. Provider settings need a restart.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	a.mu.Lock()
	if d.VoicesChanged {
		d.ApplyVoices(a.voices)
	}
	if d.GenerationChanged {
		a.defaults = d.NewGeneration.Options()
	}
	a.mu.Unlock()

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
	}
	if d.GenerationChanged && d.NewGeneration.Format() != old.Generation.Format() {
		slog.Warn("generation sample format changed; restart to apply", "format", d.NewGeneration.Format())
	}
	for _, vd := range d.VoiceChanges {
		switch {
		case vd.Added:
			slog.Info("voice added", "voice", vd.ID, "platform", vd.Voice.Platform)
		case vd.Removed:
			slog.Info("voice removed", "voice", vd.ID)
		default:
			slog.Info("voice updated", "voice", vd.ID)
		}
	}
}

// Checkers returns the readiness checks for this instance.
func (a *App) Checkers() []health.Checker {
	checkers := []health.Checker{health.VoicesChecker(a.VoiceCount)}
	if a.openai != nil {
		checkers = append(checkers, health.BreakerChecker(a.openai.Breaker()))
	}
	if a.elevenlabs != nil {
		checkers = append(checkers, health.BreakerChecker(a.elevenlabs.Breaker()))
	}
	return append(checkers, health.FFmpegChecker(a.needsFFmpeg))
}

// needsFFmpeg reports whether any registered voice needs transcoding.
func (a *App) needsFFmpeg() bool {
	for _, v := range a.Voices() {
		if needsTranscoder(v) {
			return true
		}
	}
	return false
}

// needsTranscoder reports whether v's output cannot be decoded natively.
func needsTranscoder(v voice.Voice) bool {
	codec, _, _ := strings.Cut(v.EffectiveFormat(), "_")
	switch codec {
	case "pcm", "wav", "ulaw", "alaw":
		return false
	}
	return true
}

// SlogLevel maps a config log level onto slog. Unknown values map to info.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
