// Package voice defines the voice descriptors and speech blocks shared by the
// synthesis adapters, the orchestrator, and the configuration layer.
//
// These types are the lingua franca between packages. A [Registry] owns the
// mapping from voice identifier to [Voice] for a single client instance.
package voice

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Platform identifies the synthesis vendor a voice belongs to. It is a closed
// set: only the constants below are valid.
type Platform string

const (
	// PlatformOpenAI is the stateless single-shot provider. Each block is one
	// independent request.
	PlatformOpenAI Platform = "openai"

	// PlatformElevenLabs supports context conditioning: consecutive requests
	// for the same voice can be stitched together.
	PlatformElevenLabs Platform = "elevenlabs"
)

// Platforms lists every valid platform in a stable order.
var Platforms = []Platform{PlatformOpenAI, PlatformElevenLabs}

// IsValid reports whether p is one of the known platforms.
func (p Platform) IsValid() bool {
	return slices.Contains(Platforms, p)
}

// SupportsConditioning reports whether the platform accepts neighbouring text
// and previous request identifiers.
func (p Platform) SupportsConditioning() bool {
	return p == PlatformElevenLabs
}

func (p Platform) String() string { return string(p) }

// OpenAI response formats accepted by the speech endpoint.
var openAIFormats = []string{"mp3", "opus", "aac", "flac", "wav", "pcm"}

// ElevenLabs output formats are "<codec>_<rate>[_<bitrate>]".
var elevenLabsCodecs = []string{"mp3", "pcm", "ulaw", "alaw", "opus"}

// DefaultOpenAIFormat is used when an OpenAI voice sets no output format.
const DefaultOpenAIFormat = "mp3"

// Settings mirrors the ElevenLabs voice_settings object. Nil fields are left
// to the vendor's defaults.
type Settings struct {
	Stability       *float64 `yaml:"stability" json:"stability,omitempty"`
	SimilarityBoost *float64 `yaml:"similarity_boost" json:"similarity_boost,omitempty"`
	Style           *float64 `yaml:"style" json:"style,omitempty"`
	UseSpeakerBoost *bool    `yaml:"use_speaker_boost" json:"use_speaker_boost,omitempty"`
}

// Voice is a named voice descriptor.
type Voice struct {
	// ID is the registry key. It is unique within a [Registry].
	ID string `yaml:"id" json:"id"`

	// Platform selects the adapter used to synthesise this voice.
	Platform Platform `yaml:"platform" json:"platform"`

	// Model is the vendor model identifier (e.g. "tts-1", "eleven_multilingual_v2").
	Model string `yaml:"model" json:"model"`

	// Voice is the vendor voice identifier (e.g. "alloy" or an ElevenLabs voice_id).
	Voice string `yaml:"voice" json:"voice"`

	// OutputFormat is an optional container/codec hint passed to the vendor.
	OutputFormat string `yaml:"output_format" json:"output_format,omitempty"`

	// Settings is only sent to conditioning providers.
	Settings *Settings `yaml:"settings" json:"settings,omitempty"`
}

// Validate checks that the fields required by the voice's platform are
// populated. All problems are reported together.
func (v Voice) Validate() error {
	var errs []error
	if strings.TrimSpace(v.ID) == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if !v.Platform.IsValid() {
		errs = append(errs, fmt.Errorf("platform %q is not one of %v", v.Platform, Platforms))
	}
	if v.Model == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if v.Voice == "" {
		errs = append(errs, errors.New("voice is required"))
	}
	if v.OutputFormat != "" {
		if err := validateOutputFormat(v.Platform, v.OutputFormat); err != nil {
			errs = append(errs, err)
		}
	}
	if s := v.Settings; s != nil {
		for name, val := range map[string]*float64{
			"stability":        s.Stability,
			"similarity_boost": s.SimilarityBoost,
			"style":            s.Style,
		} {
			if val != nil && (*val < 0 || *val > 1) {
				errs = append(errs, fmt.Errorf("settings.%s must be within [0, 1], got %g", name, *val))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("voice %q: %w", v.ID, err)
	}
	return nil
}

func validateOutputFormat(p Platform, format string) error {
	switch p {
	case PlatformOpenAI:
		if !slices.Contains(openAIFormats, format) {
			return fmt.Errorf("output_format %q is not one of %v", format, openAIFormats)
		}
	case PlatformElevenLabs:
		codec, _, _ := strings.Cut(format, "_")
		if !slices.Contains(elevenLabsCodecs, codec) {
			return fmt.Errorf("output_format %q has unknown codec %q", format, codec)
		}
	}
	return nil
}

// EffectiveFormat returns the output format sent to the vendor. OpenAI voices
// default to mp3; ElevenLabs voices leave the choice to the vendor.
func (v Voice) EffectiveFormat() string {
	if v.OutputFormat == "" && v.Platform == PlatformOpenAI {
		return DefaultOpenAIFormat
	}
	return v.OutputFormat
}

// SpeechBlock is one ordered unit of input text.
type SpeechBlock struct {
	// VoiceID references a voice in the registry.
	VoiceID string `yaml:"voice_id" json:"voice_id"`

	// Text is the literal text to synthesise.
	Text string `yaml:"text" json:"text"`

	// BufferMs is trailing silence appended after this block's audio.
	BufferMs int `yaml:"buffer_ms" json:"buffer_ms,omitempty"`
}
