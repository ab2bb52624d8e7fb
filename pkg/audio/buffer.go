// Package audio provides the decoded-audio value used by the speech
// orchestrator: an immutable 16-bit PCM [Buffer] supporting concatenation,
// silence generation, gain application and loudness measurement, plus the
// [Decoder] and [Exporter] that move audio in and out of container formats.
//
// Every Buffer operation returns a new Buffer; the receiver is never mutated.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// maxAmplitude is the full-scale reference for 16-bit PCM loudness.
const maxAmplitude = 32768.0

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// IsZero reports whether f is the unset format.
func (f Format) IsZero() bool {
	return f.SampleRate == 0 && f.Channels == 0
}

// Validate returns an error if f cannot describe PCM audio.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate %d must be positive", f.SampleRate)
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("audio: %d channels not supported (mono or stereo only)", f.Channels)
	}
	return nil
}

// String returns a human-readable form such as "24000Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Buffer is an immutable block of interleaved signed 16-bit PCM samples.
//
// The zero Buffer has no format and no samples; concatenating onto it adopts
// the format of the appended buffer.
type Buffer struct {
	samples []int16
	format  Format
}

// NewBuffer builds a Buffer from little-endian 16-bit PCM bytes.
func NewBuffer(pcm []byte, f Format) (Buffer, error) {
	if err := f.Validate(); err != nil {
		return Buffer{}, err
	}
	if len(pcm)%(2*f.Channels) != 0 {
		return Buffer{}, fmt.Errorf("audio: %d bytes is not a whole number of %s frames", len(pcm), f)
	}
	return Buffer{samples: bytesToSamples(pcm), format: f}, nil
}

// FromSamples builds a Buffer from interleaved samples. The slice is copied.
func FromSamples(samples []int16, f Format) Buffer {
	s := make([]int16, len(samples))
	copy(s, samples)
	return Buffer{samples: s, format: f}
}

// Silence returns d of digital silence in format f. Durations are truncated
// to whole frames.
func Silence(d time.Duration, f Format) Buffer {
	if d <= 0 {
		return Buffer{format: f}
	}
	frames := int(int64(d) * int64(f.SampleRate) / int64(time.Second))
	return Buffer{samples: make([]int16, frames*f.Channels), format: f}
}

// SilenceMs is Silence expressed in milliseconds.
func SilenceMs(ms int, f Format) Buffer {
	return Silence(time.Duration(ms)*time.Millisecond, f)
}

// Format returns the buffer's sample format.
func (b Buffer) Format() Format { return b.format }

// Frames returns the number of sample frames (samples per channel).
func (b Buffer) Frames() int {
	if b.format.Channels == 0 {
		return 0
	}
	return len(b.samples) / b.format.Channels
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.format.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(b.Frames()) * int64(time.Second) / int64(b.format.SampleRate))
}

// LengthMs returns the playback length in whole milliseconds.
func (b Buffer) LengthMs() int64 {
	return b.Duration().Milliseconds()
}

// Samples returns a copy of the interleaved samples.
func (b Buffer) Samples() []int16 {
	s := make([]int16, len(b.samples))
	copy(s, b.samples)
	return s
}

// PCM returns the buffer as little-endian 16-bit PCM bytes.
func (b Buffer) PCM() []byte {
	return samplesToBytes(b.samples)
}

// Concat returns b followed by o. When the formats differ, o is converted to
// b's format first. Appending onto the zero Buffer adopts o's format.
func (b Buffer) Concat(o Buffer) Buffer {
	if b.format.IsZero() {
		return FromSamples(o.samples, o.format)
	}
	if !o.format.IsZero() && o.format != b.format {
		o = Convert(o, b.format)
	}
	out := make([]int16, 0, len(b.samples)+len(o.samples))
	out = append(out, b.samples...)
	out = append(out, o.samples...)
	return Buffer{samples: out, format: b.format}
}

// ApplyGain returns a copy of b with its level changed by db decibels.
// Samples are rounded and clamped to the int16 range.
func (b Buffer) ApplyGain(db float64) Buffer {
	factor := math.Pow(10, db/20)
	out := make([]int16, len(b.samples))
	for i, s := range b.samples {
		out[i] = clamp16(math.Round(float64(s) * factor))
	}
	return Buffer{samples: out, format: b.format}
}

// Loudness returns the RMS level of b in dBFS. Empty or digitally silent
// buffers report negative infinity.
func (b Buffer) Loudness() float64 {
	if len(b.samples) == 0 {
		return math.Inf(-1)
	}
	var sum float64
	for _, s := range b.samples {
		v := float64(s)
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(b.samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms/maxAmplitude)
}

func clamp16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// bytesToSamples decodes little-endian int16 PCM. A trailing odd byte is ignored.
func bytesToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
