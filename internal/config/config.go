// Package config provides the configuration schema, loader, and provider
// registry for route-tts.
package config

import (
	"time"

	"github.com/Jellypod-Inc/route-tts/internal/speech"
	"github.com/Jellypod-Inc/route-tts/pkg/audio"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Environment variables consulted when a provider has no api_key.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvElevenLabsKey = "ELEVEN_API_KEY"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Voices     []voice.Voice    `yaml:"voices"`
	Generation GenerationConfig `yaml:"generation"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds network and logging settings for the HTTP server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig holds one entry per supported platform. The platform name
// selects the factory in the [Registry].
type ProvidersConfig struct {
	OpenAI     ProviderEntry `yaml:"openai"`
	ElevenLabs ProviderEntry `yaml:"elevenlabs"`
}

// Entry returns the entry for platform p and whether p is known.
func (c ProvidersConfig) Entry(p voice.Platform) (ProviderEntry, bool) {
	switch p {
	case voice.PlatformOpenAI:
		return c.OpenAI, true
	case voice.PlatformElevenLabs:
		return c.ElevenLabs, true
	}
	return ProviderEntry{}, false
}

// ProviderEntry is the configuration block shared by all platforms.
type ProviderEntry struct {
	// APIKey authenticates against the vendor. When empty, the platform's
	// environment variable is used instead (see [EnvOpenAIKey]).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the vendor's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single synthesis request. Zero selects the adapter default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds platform-specific values not covered by the fields above
	// (e.g. "organization" for OpenAI).
	Options map[string]any `yaml:"options"`
}

// GenerationConfig holds the default generation options. Pointer fields
// distinguish "unset" from an explicit false or zero.
type GenerationConfig struct {
	InterBlockBufferMs int      `yaml:"inter_block_buffer_ms"`
	SingleOutput       *bool    `yaml:"single_output"`
	NormalizeOutputs   *bool    `yaml:"normalize_outputs"`
	RequestStitching   *bool    `yaml:"request_stitching"`
	TargetLevel        *float64 `yaml:"target_level"`
	Tolerance          *float64 `yaml:"tolerance"`

	// SampleRate and Channels select the format every segment is decoded to.
	// Zero values select 24 kHz mono.
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// Options merges g over [speech.DefaultOptions].
func (g GenerationConfig) Options() speech.Options {
	o := speech.DefaultOptions()
	o.InterBlockBufferMs = g.InterBlockBufferMs
	if g.SingleOutput != nil {
		o.SingleOutput = *g.SingleOutput
	}
	if g.NormalizeOutputs != nil {
		o.NormalizeOutputs = *g.NormalizeOutputs
	}
	if g.RequestStitching != nil {
		o.RequestStitching = *g.RequestStitching
	}
	if g.TargetLevel != nil {
		o.TargetLevel = *g.TargetLevel
	}
	if g.Tolerance != nil {
		o.Tolerance = *g.Tolerance
	}
	return o
}

// Format returns the decode target, falling back to [audio.DefaultFormat]
// field by field.
func (g GenerationConfig) Format() audio.Format {
	f := audio.DefaultFormat
	if g.SampleRate > 0 {
		f.SampleRate = g.SampleRate
	}
	if g.Channels > 0 {
		f.Channels = g.Channels
	}
	return f
}

// ResilienceConfig tunes the per-platform circuit breakers.
type ResilienceConfig struct {
	// MaxFailures is the number of consecutive vendor failures that opens a
	// breaker. Zero selects the breaker default.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open breaker waits before probing again.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}
