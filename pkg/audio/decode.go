package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zaf/g711"
)

// DecodeError reports provider audio that could not be turned into a Buffer.
type DecodeError struct {
	// Format is the container/codec hint the decoder was given.
	Format string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Format == "" {
		return "audio: decode: " + e.Cause.Error()
	}
	return fmt.Sprintf("audio: decode %s: %v", e.Format, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decoder turns provider response bytes into a Buffer.
//
// formatHint is the output format the provider was asked for (e.g. "mp3",
// "pcm", "pcm_24000", "ulaw_8000"). An empty hint lets the decoder sniff the
// container.
type Decoder interface {
	Decode(ctx context.Context, data []byte, formatHint string) (Buffer, error)
}

// Transcoder converts an encoded audio container into raw 16-bit PCM in the
// requested format. [FFmpegTranscoder] is the production implementation.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, inputFormat string, target Format) ([]byte, error)
}

// DefaultFormat is the decoder target used when none is configured. It
// matches the native rate of OpenAI's raw pcm output.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1}

// openAIPCMFormat is the fixed layout of OpenAI's response_format=pcm.
var openAIPCMFormat = Format{SampleRate: 24000, Channels: 1}

// DecoderOption configures a [StandardDecoder].
type DecoderOption func(*StandardDecoder)

// WithTranscoder overrides the transcoder used for compressed formats.
func WithTranscoder(t Transcoder) DecoderOption {
	return func(d *StandardDecoder) {
		d.transcoder = t
	}
}

// StandardDecoder decodes WAV, raw PCM and G.711 natively and hands every
// other container to a [Transcoder]. All output is converted to Target so
// the orchestrator can concatenate segments from different providers.
type StandardDecoder struct {
	conv       *FormatConverter
	transcoder Transcoder
}

var _ Decoder = (*StandardDecoder)(nil)

// NewDecoder returns a decoder producing buffers in target. A zero target
// selects [DefaultFormat].
func NewDecoder(target Format, opts ...DecoderOption) *StandardDecoder {
	if target.IsZero() {
		target = DefaultFormat
	}
	d := &StandardDecoder{
		conv:       &FormatConverter{Target: target},
		transcoder: FFmpegTranscoder{},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Target returns the format every decoded buffer is converted to.
func (d *StandardDecoder) Target() Format { return d.conv.Target }

// Decode implements [Decoder].
func (d *StandardDecoder) Decode(ctx context.Context, data []byte, formatHint string) (Buffer, error) {
	b, err := d.decode(ctx, data, formatHint)
	if err != nil {
		return Buffer{}, &DecodeError{Format: formatHint, Cause: err}
	}
	return d.conv.Convert(b), nil
}

func (d *StandardDecoder) decode(ctx context.Context, data []byte, hint string) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, errors.New("empty audio payload")
	}
	if isWAV(data) {
		b, err := decodeWAV(data)
		if err == nil {
			return b, nil
		}
		if !errors.Is(err, errUnsupportedWAV) {
			return Buffer{}, err
		}
		// Non-PCM16 WAV (float, 24-bit, ...) goes through the transcoder.
		return d.transcode(ctx, data, "wav")
	}

	codec, rate := splitFormat(hint)
	switch codec {
	case "pcm":
		f := openAIPCMFormat
		if rate > 0 {
			f = Format{SampleRate: rate, Channels: 1}
		}
		return NewBuffer(data, f)
	case "ulaw":
		return NewBuffer(g711.DecodeUlaw(data), Format{SampleRate: rateOr(rate, 8000), Channels: 1})
	case "alaw":
		return NewBuffer(g711.DecodeAlaw(data), Format{SampleRate: rateOr(rate, 8000), Channels: 1})
	case "wav":
		return Buffer{}, errors.New("payload is not a RIFF/WAVE container")
	}
	return d.transcode(ctx, data, codec)
}

func (d *StandardDecoder) transcode(ctx context.Context, data []byte, codec string) (Buffer, error) {
	if d.transcoder == nil {
		return Buffer{}, fmt.Errorf("no transcoder configured for %q", codec)
	}
	target := d.conv.Target
	pcm, err := d.transcoder.Transcode(ctx, data, containerFor(codec), target)
	if err != nil {
		return Buffer{}, err
	}
	return NewBuffer(pcm, target)
}

// splitFormat splits vendor format names such as "mp3_44100_128" or
// "pcm_16000" into a codec and an optional sample rate.
func splitFormat(hint string) (codec string, rate int) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(hint)), "_")
	codec = parts[0]
	if len(parts) > 1 {
		if r, err := strconv.Atoi(parts[1]); err == nil {
			rate = r
		}
	}
	return codec, rate
}

// containerFor maps a codec name onto the demuxer ffmpeg expects. An empty
// result lets ffmpeg probe the input.
func containerFor(codec string) string {
	switch codec {
	case "mp3":
		return "mp3"
	case "opus", "ogg":
		return "ogg"
	case "aac":
		return "aac"
	case "flac":
		return "flac"
	case "wav":
		return "wav"
	default:
		return ""
	}
}

func rateOr(rate, def int) int {
	if rate > 0 {
		return rate
	}
	return def
}

// ---- WAV ----

var errUnsupportedWAV = errors.New("unsupported WAV encoding")

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset    int
	DataSize      int
	AudioFormat   int
	SampleRate    int
	Channels      int
	BitsPerSample int
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// parseWAV walks the RIFF chunks in wav and returns the data location and the
// format from the "fmt " sub-chunk.
func parseWAV(wav []byte) (wavInfo, error) {
	if !isWAV(wav) {
		return wavInfo{}, errors.New("missing RIFF/WAVE header")
	}
	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || offset+8+16 > len(wav) {
				return wavInfo{}, errors.New("truncated fmt chunk")
			}
			fmtData := wav[offset+8:]
			info.AudioFormat = int(binary.LittleEndian.Uint16(fmtData[0:2]))
			info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtData[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return wavInfo{}, errors.New("data chunk before fmt chunk")
			}
			info.DataOffset = offset + 8
			info.DataSize = chunkSize
			// Streaming writers leave the size unset; clip to what we have.
			if info.DataSize <= 0 || info.DataOffset+info.DataSize > len(wav) {
				info.DataSize = len(wav) - info.DataOffset
			}
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if odd size.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("missing data chunk")
}

func decodeWAV(data []byte) (Buffer, error) {
	info, err := parseWAV(data)
	if err != nil {
		return Buffer{}, err
	}
	if info.AudioFormat != 1 || info.BitsPerSample != 16 {
		return Buffer{}, fmt.Errorf("%w: format=%d bits=%d", errUnsupportedWAV, info.AudioFormat, info.BitsPerSample)
	}
	f := Format{SampleRate: info.SampleRate, Channels: info.Channels}
	pcm := data[info.DataOffset : info.DataOffset+info.DataSize]
	// Drop a trailing partial frame rather than rejecting the whole file.
	frameBytes := 2 * max(f.Channels, 1)
	pcm = pcm[:len(pcm)-len(pcm)%frameBytes]
	return NewBuffer(pcm, f)
}
