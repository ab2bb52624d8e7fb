package speech

import (
	"math"

	"github.com/Jellypod-Inc/route-tts/pkg/audio"
)

// Default loudness targets, in dBFS.
const (
	DefaultTargetLevel = -30.0
	DefaultTolerance   = 3.0
)

// Normalize softly evens out loudness across buffers and returns new
// buffers in the same order.
//
// When the loudness spread exceeds 2*tolerance, each buffer's level is
// remapped linearly from [min, max] onto [target-tolerance, target+tolerance].
// Otherwise every buffer receives the same gain so that the midpoint of the
// range lands on target. Gain is additive in dB.
//
// Digital silence has no defined loudness; such buffers are excluded from the
// range and returned unchanged.
func Normalize(buffers []audio.Buffer, target, tolerance float64) ([]audio.Buffer, error) {
	if len(buffers) == 0 {
		return nil, ErrEmptyInput
	}

	levels := make([]float64, len(buffers))
	minL, maxL := math.Inf(1), math.Inf(-1)
	for i, b := range buffers {
		l := b.Loudness()
		levels[i] = l
		if math.IsInf(l, -1) {
			continue
		}
		minL = math.Min(minL, l)
		maxL = math.Max(maxL, l)
	}

	out := make([]audio.Buffer, len(buffers))
	copy(out, buffers)
	if math.IsInf(maxL, -1) {
		return out, nil
	}

	currentRange := maxL - minL
	targetRange := 2 * tolerance
	uniform := target - (maxL+minL)/2

	for i, b := range buffers {
		l := levels[i]
		if math.IsInf(l, -1) {
			continue
		}
		gain := uniform
		if currentRange > targetRange {
			newLevel := (l-minL)/currentRange*targetRange + (target - tolerance)
			gain = newLevel - l
		}
		out[i] = b.ApplyGain(gain)
	}
	return out, nil
}
