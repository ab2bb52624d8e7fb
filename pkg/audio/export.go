package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteWAV writes b as a canonical 44-byte-header PCM WAV file.
func WriteWAV(w io.Writer, b Buffer) error {
	if err := b.format.Validate(); err != nil {
		return err
	}
	pcm := b.PCM()
	channels := b.format.Channels
	rate := b.format.SampleRate

	var hdr bytes.Buffer
	le := binary.LittleEndian
	hdr.WriteString("RIFF")
	_ = binary.Write(&hdr, le, uint32(36+len(pcm)))
	hdr.WriteString("WAVE")

	hdr.WriteString("fmt ")
	_ = binary.Write(&hdr, le, uint32(16))
	_ = binary.Write(&hdr, le, uint16(1)) // PCM
	_ = binary.Write(&hdr, le, uint16(channels))
	_ = binary.Write(&hdr, le, uint32(rate))
	_ = binary.Write(&hdr, le, uint32(rate*channels*2))
	_ = binary.Write(&hdr, le, uint16(channels*2))
	_ = binary.Write(&hdr, le, uint16(16))

	hdr.WriteString("data")
	_ = binary.Write(&hdr, le, uint32(len(pcm)))

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// EncodeWAV returns b as WAV bytes.
func EncodeWAV(b Buffer) ([]byte, error) {
	var out bytes.Buffer
	if err := WriteWAV(&out, b); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// FormatFromPath derives an export format from a file extension, defaulting
// to wav.
func FormatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return "wav"
	}
	return ext
}

// Export writes b to path. wav and raw pcm are written natively; mp3, ogg,
// opus, flac and aac are encoded with ffmpeg. An empty format is derived
// from the path extension.
func Export(ctx context.Context, b Buffer, path, format string) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	switch format {
	case "wav":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("audio: export: %w", err)
		}
		if err := WriteWAV(f, b); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case "pcm", "raw":
		if err := os.WriteFile(path, b.PCM(), 0o644); err != nil {
			return fmt.Errorf("audio: export: %w", err)
		}
		return nil
	case "mp3", "ogg", "opus", "flac", "aac":
		return ffmpegEncode(ctx, b, path, format)
	default:
		return fmt.Errorf("audio: export: unsupported format %q", format)
	}
}
