package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

func init() {
	ffmpeg.LogCompiledCommand = false
}

// ErrFFmpegNotInstalled is returned when a compressed format is requested but
// the ffmpeg binary cannot be found on PATH.
var ErrFFmpegNotInstalled = fmt.Errorf("audio: ffmpeg is not installed; it is required for compressed audio formats")

// FFmpegAvailable reports whether the ffmpeg binary is on PATH.
func FFmpegAvailable() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return ErrFFmpegNotInstalled
	}
	return nil
}

// FFmpegTranscoder implements [Transcoder] by piping audio through the ffmpeg
// binary. It holds no state and is safe for concurrent use.
type FFmpegTranscoder struct{}

var _ Transcoder = FFmpegTranscoder{}

// Transcode decodes data (optionally forcing inputFormat as the demuxer) into
// signed 16-bit little-endian PCM at the target rate and channel count. The
// ffmpeg process is killed when ctx is done.
func (FFmpegTranscoder) Transcode(ctx context.Context, data []byte, inputFormat string, target Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := FFmpegAvailable(); err != nil {
		return nil, err
	}

	inArgs := ffmpeg.KwArgs{}
	if inputFormat != "" {
		inArgs["f"] = inputFormat
	}

	var out, stderr bytes.Buffer
	err := ffmpeg.OutputContext(ctx, []*ffmpeg.Stream{ffmpeg.Input("pipe:0", inArgs)}, "pipe:1", ffmpeg.KwArgs{
		"loglevel": "error",
		"f":        "s16le",
		"acodec":   "pcm_s16le",
		"ar":       target.SampleRate,
		"ac":       target.Channels,
	}).
		WithInput(bytes.NewReader(data)).
		WithOutput(&out).
		WithErrorOutput(&stderr).
		Run()
	if err != nil {
		return nil, ffmpegError(ctx, "transcode", err, &stderr)
	}
	return out.Bytes(), nil
}

// ffmpegEncode writes b to path in the given container using ffmpeg.
func ffmpegEncode(ctx context.Context, b Buffer, path, format string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := FFmpegAvailable(); err != nil {
		return err
	}
	outArgs := ffmpeg.KwArgs{"loglevel": "error"}
	if muxer := muxerFor(format); muxer != "" {
		outArgs["f"] = muxer
	}
	if format == "opus" {
		outArgs["acodec"] = "libopus"
	}

	in := ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"f":  "s16le",
		"ar": b.format.SampleRate,
		"ac": b.format.Channels,
	})
	var stderr bytes.Buffer
	err := ffmpeg.OutputContext(ctx, []*ffmpeg.Stream{in}, path, outArgs).
		OverWriteOutput().
		WithInput(bytes.NewReader(b.PCM())).
		WithErrorOutput(&stderr).
		Run()
	if err != nil {
		return ffmpegError(ctx, "encode "+format, err, &stderr)
	}
	return nil
}

// ffmpegError reports a failed run. When ctx ended the run, the process was
// killed and the context error is what the caller needs to see.
func ffmpegError(ctx context.Context, op string, err error, stderr *bytes.Buffer) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ffmpeg %s: %w", op, ctxErr)
	}
	return fmt.Errorf("ffmpeg %s: %w: %s", op, err, strings.TrimSpace(stderr.String()))
}

func muxerFor(format string) string {
	switch format {
	case "mp3":
		return "mp3"
	case "ogg", "opus":
		return "ogg"
	case "flac":
		return "flac"
	case "aac":
		return "adts"
	default:
		return ""
	}
}
