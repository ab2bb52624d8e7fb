package speech

import (
	"errors"
	"math"
	"testing"

	"github.com/Jellypod-Inc/route-tts/pkg/audio"
)

// levelEpsilon absorbs int16 rounding after gain is applied.
const levelEpsilon = 0.05

var testFormat = audio.Format{SampleRate: 24000, Channels: 1}

// square returns ms of a square wave at amplitude amp. Its RMS level is
// exactly 20*log10(amp/32768) dBFS.
func square(ms int, amp int16) audio.Buffer {
	n := ms * testFormat.SampleRate / 1000
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amp
		} else {
			samples[i] = -amp
		}
	}
	return audio.FromSamples(samples, testFormat)
}

func levels(bufs []audio.Buffer) []float64 {
	out := make([]float64, len(bufs))
	for i, b := range bufs {
		out[i] = b.Loudness()
	}
	return out
}

func near(a, b float64) bool { return math.Abs(a-b) <= levelEpsilon }

func TestNormalize_EmptyInput(t *testing.T) {
	_, err := Normalize(nil, DefaultTargetLevel, DefaultTolerance)
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
}

func TestNormalize_SingleBufferHitsTarget(t *testing.T) {
	for _, amp := range []int16{200, 1000, 8000, 30000} {
		out, err := Normalize([]audio.Buffer{square(50, amp)}, -30, 3)
		if err != nil {
			t.Fatalf("Normalize: %v", err)
		}
		if got := out[0].Loudness(); !near(got, -30) {
			t.Errorf("amp %d: loudness = %.3f, want -30", amp, got)
		}
	}
}

func TestNormalize_WideRangeIsRemapped(t *testing.T) {
	in := []audio.Buffer{square(40, 500), square(40, 4000), square(40, 16000)}
	before := levels(in)

	out, err := Normalize(in, -30, 3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	after := levels(out)

	if !near(after[0], -33) {
		t.Errorf("quietest = %.3f, want -33", after[0])
	}
	if !near(after[2], -27) {
		t.Errorf("loudest = %.3f, want -27", after[2])
	}
	want := (before[1]-before[0])/(before[2]-before[0])*6 - 33
	if !near(after[1], want) {
		t.Errorf("middle = %.3f, want %.3f", after[1], want)
	}
}

func TestNormalize_TightRangeIsRecentered(t *testing.T) {
	in := []audio.Buffer{square(40, 1000), square(40, 1200)}
	before := levels(in)

	out, err := Normalize(in, -20, 3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	after := levels(out)

	gain0 := after[0] - before[0]
	gain1 := after[1] - before[1]
	if !near(gain0, gain1) {
		t.Errorf("gains differ: %.3f vs %.3f", gain0, gain1)
	}
	if mid := (after[0] + after[1]) / 2; !near(mid, -20) {
		t.Errorf("midpoint = %.3f, want -20", mid)
	}
	if spread := after[1] - after[0]; !near(spread, before[1]-before[0]) {
		t.Errorf("spread changed from %.3f to %.3f", before[1]-before[0], spread)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	in := []audio.Buffer{square(40, 300), square(40, 2500), square(40, 20000)}
	once, err := Normalize(in, -30, 3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	twice, err := Normalize(once, -30, 3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	first, second := levels(once), levels(twice)
	for i := range second {
		if second[i] < -33-levelEpsilon || second[i] > -27+levelEpsilon {
			t.Errorf("buffer %d: loudness %.3f outside [-33, -27]", i, second[i])
		}
		if !near(first[i], second[i]) {
			t.Errorf("buffer %d drifted from %.3f to %.3f", i, first[i], second[i])
		}
	}
}

func TestNormalize_SilencePassesThrough(t *testing.T) {
	silent := audio.SilenceMs(30, testFormat)
	in := []audio.Buffer{silent, square(40, 9000)}

	out, err := Normalize(in, -30, 3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !math.IsInf(out[0].Loudness(), -1) || out[0].Frames() != silent.Frames() {
		t.Errorf("silent buffer changed: loudness %v frames %d", out[0].Loudness(), out[0].Frames())
	}
	if got := out[1].Loudness(); !near(got, -30) {
		t.Errorf("tone loudness = %.3f, want -30", got)
	}
}

func TestNormalize_AllSilent(t *testing.T) {
	in := []audio.Buffer{audio.SilenceMs(10, testFormat), audio.SilenceMs(20, testFormat)}
	out, err := Normalize(in, -30, 3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i := range in {
		if out[i].Frames() != in[i].Frames() {
			t.Errorf("buffer %d: frames = %d, want %d", i, out[i].Frames(), in[i].Frames())
		}
	}
}

func TestNormalize_PreservesOrderAndInput(t *testing.T) {
	in := []audio.Buffer{square(10, 1000), square(20, 20000), square(30, 4000)}
	orig := levels(in)

	out, err := Normalize(in, -30, 3)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	for i := range in {
		if out[i].Frames() != in[i].Frames() {
			t.Errorf("buffer %d: frames = %d, want %d", i, out[i].Frames(), in[i].Frames())
		}
		if in[i].Loudness() != orig[i] {
			t.Errorf("input buffer %d was modified", i)
		}
	}
}
