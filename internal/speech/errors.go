package speech

import (
	"errors"
	"fmt"

	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

var (
	// ErrEmptyInput is returned when generation or normalization is invoked
	// with nothing to work on.
	ErrEmptyInput = errors.New("speech: empty input")

	// ErrInvalidOptions is returned for option values outside their domain.
	ErrInvalidOptions = errors.New("speech: invalid options")
)

// VoiceNotFoundError reports a block referencing an unregistered voice. It
// matches [voice.ErrNotFound] with errors.Is.
type VoiceNotFoundError struct {
	// Index is the position of the offending block.
	Index   int
	VoiceID string
}

func (e *VoiceNotFoundError) Error() string {
	return fmt.Sprintf("speech: block %d: voice %q not found", e.Index, e.VoiceID)
}

func (e *VoiceNotFoundError) Is(target error) bool { return target == voice.ErrNotFound }

// UnsupportedPlatformError reports a registered voice whose platform tag is
// not one the client can dispatch on.
type UnsupportedPlatformError struct {
	VoiceID  string
	Platform voice.Platform
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("speech: voice %q: unsupported platform %q", e.VoiceID, e.Platform)
}

// GenerationError wraps the first block-level failure of a generation. No
// partial results accompany it.
type GenerationError struct {
	// Index is the position of the failing block in the input.
	Index   int
	Text    string
	VoiceID string
	Cause   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("speech: block %d (voice %q): %v", e.Index, e.VoiceID, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }
