// Package tts defines the adapter contracts for Text-to-Speech vendors.
//
// Two capabilities exist. A [SimpleSynthesizer] turns one piece of text into
// one encoded audio payload with no memory of earlier calls. A
// [ConditionedSynthesizer] additionally accepts the surrounding text and the
// identifiers of earlier requests so consecutive segments sound continuous,
// and returns a continuation token for the next call.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// MaxPreviousRequestIDs is the number of continuation tokens forwarded on
// each conditioned call.
const MaxPreviousRequestIDs = 3

// SimpleSynthesizer is a stateless, single-shot synthesis backend.
type SimpleSynthesizer interface {
	// Synthesize returns the encoded audio for text. format is the container
	// requested from the vendor (e.g. "mp3", "wav", "pcm"); an empty value
	// selects the vendor default.
	Synthesize(ctx context.Context, model, voiceID, text, format string) ([]byte, error)
}

// ConditionedRequest is a single call to a [ConditionedSynthesizer].
type ConditionedRequest struct {
	// VoiceID is the vendor voice identifier.
	VoiceID string

	// ModelID is the vendor model identifier.
	ModelID string

	// Text is the text to synthesise in this call.
	Text string

	// PreviousText and NextText are the neighbouring texts of the group. Nil
	// means absent, which is distinct from an empty string.
	PreviousText *string
	NextText     *string

	// PreviousRequestIDs holds at most [MaxPreviousRequestIDs] tokens from
	// earlier calls, oldest first.
	PreviousRequestIDs []string

	// OutputFormat is the vendor output format; empty selects the default.
	OutputFormat string

	// Settings are sent as voice_settings when non-nil.
	Settings *voice.Settings
}

// ConditionedResult is the audio and continuation token from one call.
type ConditionedResult struct {
	Audio     []byte
	RequestID string
}

// ConditionedSynthesizer is a backend supporting request stitching.
type ConditionedSynthesizer interface {
	// SynthesizeConditioned performs one call. It returns an error wrapping
	// [ErrMissingContinuationToken] when the vendor response carries no
	// request identifier.
	SynthesizeConditioned(ctx context.Context, req ConditionedRequest) (ConditionedResult, error)
}

// RemoteVoice is an entry of a vendor voice catalogue.
type RemoteVoice struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// VoiceLister is implemented by adapters that can list the vendor catalogue.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]RemoteVoice, error)
}

// LastRequestIDs returns the trailing [MaxPreviousRequestIDs] entries of ids
// as a fresh slice, or nil when ids is empty.
func LastRequestIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	start := max(len(ids)-MaxPreviousRequestIDs, 0)
	out := make([]string, len(ids)-start)
	copy(out, ids[start:])
	return out
}
