package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// FormatConverter converts Buffers to a target format. It logs a warning on
// the first format mismatch so that misconfigured providers are visible
// without flooding the log. Create one per decoder; safe for concurrent use.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
}

// Convert returns b in the converter's target format. If the source format
// already matches, b is returned unchanged.
func (c *FormatConverter) Convert(b Buffer) Buffer {
	if b.format == c.Target || b.format.IsZero() {
		return b
	}
	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", b.format.String(),
			"to", c.Target.String(),
		)
	})
	return Convert(b, c.Target)
}

// Convert returns b resampled and channel-mapped to target.
// Conversion order: resample first, then channel convert.
func Convert(b Buffer, target Format) Buffer {
	if b.format == target || b.format.IsZero() {
		return b
	}
	samples := b.samples
	channels := b.format.Channels

	// Resample first (avoids resampling stereo when target is mono).
	if b.format.SampleRate != target.SampleRate {
		samples = resample16(samples, channels, b.format.SampleRate, target.SampleRate)
	}

	if channels != target.Channels {
		switch {
		case channels == 1 && target.Channels == 2:
			samples = monoToStereo(samples)
		case channels == 2 && target.Channels == 1:
			samples = stereoToMono(samples)
		}
	}
	return Buffer{samples: samples, format: target}
}

// monoToStereo duplicates each mono sample into an L+R pair.
func monoToStereo(in []int16) []int16 {
	out := make([]int16, len(in)*2)
	for i, s := range in {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

// stereoToMono averages L+R per frame using int32 arithmetic.
func stereoToMono(in []int16) []int16 {
	frames := len(in) / 2
	out := make([]int16, frames)
	for i := range frames {
		avg := (int32(in[i*2]) + int32(in[i*2+1])) / 2
		out[i] = int16(avg)
	}
	return out
}

// resample16 resamples interleaved int16 audio from srcRate to dstRate using
// linear interpolation per channel. Invalid rates return the input unchanged.
func resample16(in []int16, channels, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || channels <= 0 || srcRate == dstRate {
		return in
	}
	srcFrames := len(in) / channels
	if srcFrames == 0 {
		return nil
	}
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	out := make([]int16, dstFrames*channels)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for ch := range channels {
			s0 := float64(in[srcIdx*channels+ch])
			s1 := float64(in[next*channels+ch])
			out[i*channels+ch] = int16(s0*(1-frac) + s1*frac)
		}
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
