package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
// An empty document yields the zero Config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadVoices decodes a YAML list of voices, as accepted by the voices
// section of the main config, and validates each entry.
func LoadVoices(r io.Reader) ([]voice.Voice, error) {
	var voices []voice.Voice
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&voices); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode voices: %w", err)
	}
	if err := validateVoices(voices); err != nil {
		return nil, err
	}
	return voices, nil
}

// LoadBlocks decodes a YAML (or JSON) list of speech blocks. Voice
// references are resolved at generation time, not here.
func LoadBlocks(r io.Reader) ([]voice.SpeechBlock, error) {
	var blocks []voice.SpeechBlock
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&blocks); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode blocks: %w", err)
	}
	var errs []error
	for i, b := range blocks {
		if b.VoiceID == "" {
			errs = append(errs, fmt.Errorf("blocks[%d]: voice_id is required", i))
		}
		if b.BufferMs < 0 {
			errs = append(errs, fmt.Errorf("blocks[%d]: buffer_ms must not be negative, got %d", i, b.BufferMs))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	for _, p := range voice.Platforms {
		entry, _ := cfg.Providers.Entry(p)
		if entry.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout must not be negative", p))
		}
	}

	// Voices
	if err := validateVoices(cfg.Voices); err != nil {
		errs = append(errs, err)
	}

	// Provider availability warnings
	for _, p := range usedPlatforms(cfg.Voices) {
		if cfg.APIKey(p) == "" {
			slog.Warn("voices reference a platform without credentials; their blocks will fail",
				"platform", p,
				"env", envKeyFor(p),
			)
		}
	}

	// Generation
	g := cfg.Generation
	if g.InterBlockBufferMs < 0 {
		errs = append(errs, fmt.Errorf("generation.inter_block_buffer_ms must not be negative, got %d", g.InterBlockBufferMs))
	}
	if g.Tolerance != nil && *g.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("generation.tolerance must be positive, got %g", *g.Tolerance))
	}
	if g.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("generation.sample_rate must not be negative, got %d", g.SampleRate))
	}
	if g.Channels < 0 || g.Channels > 2 {
		errs = append(errs, fmt.Errorf("generation.channels must be 1 or 2, got %d", g.Channels))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures must not be negative, got %d", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, errors.New("resilience.reset_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

func validateVoices(voices []voice.Voice) error {
	var errs []error
	seen := make(map[string]int, len(voices))
	for i, v := range voices {
		prefix := fmt.Sprintf("voices[%d]", i)
		if err := v.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", prefix, err))
		}
		if v.ID == "" {
			continue
		}
		if prev, ok := seen[v.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of voices[%d]", prefix, v.ID, prev))
		}
		seen[v.ID] = i
	}
	return errors.Join(errs...)
}

// APIKey returns the credential for platform p: the configured api_key, or
// the platform's environment variable when that is empty.
func (c *Config) APIKey(p voice.Platform) string {
	entry, ok := c.Providers.Entry(p)
	if !ok {
		return ""
	}
	if entry.APIKey != "" {
		return entry.APIKey
	}
	return os.Getenv(envKeyFor(p))
}

func envKeyFor(p voice.Platform) string {
	switch p {
	case voice.PlatformOpenAI:
		return EnvOpenAIKey
	case voice.PlatformElevenLabs:
		return EnvElevenLabsKey
	}
	return ""
}

// usedPlatforms returns the distinct valid platforms referenced by voices,
// in first-seen order.
func usedPlatforms(voices []voice.Voice) []voice.Platform {
	var out []voice.Platform
	seen := make(map[voice.Platform]bool)
	for _, v := range voices {
		if v.Platform.IsValid() && !seen[v.Platform] {
			seen[v.Platform] = true
			out = append(out, v.Platform)
		}
	}
	return out
}
