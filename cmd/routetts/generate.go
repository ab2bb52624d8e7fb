package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Jellypod-Inc/route-tts/internal/config"
	"github.com/Jellypod-Inc/route-tts/internal/speech"
	"github.com/Jellypod-Inc/route-tts/pkg/audio"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

var generateFlags struct {
	output       string
	format       string
	interBlockMs int
	split        bool
	noNormalize  bool
	noStitching  bool
}

var generateCmd = &cobra.Command{
	Use:   "generate <script.yaml|->",
	Short: "Synthesise a script of speech blocks to an audio file",
	Long: `Generate reads a YAML or JSON list of speech blocks and writes the
resulting audio. Each block has a voice_id, text, and optional buffer_ms.

Use "-" to read the script from stdin. With --split every block is written
to its own file, numbered after the output name.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.output, "output", "o", "output.wav", "output file path")
	f.StringVarP(&generateFlags.format, "format", "f", "", "output format (wav, pcm, mp3, ogg, opus, flac, aac); default from the extension")
	f.IntVar(&generateFlags.interBlockMs, "inter-block-ms", 0, "silence between consecutive blocks in milliseconds")
	f.BoolVar(&generateFlags.split, "split", false, "write one file per block instead of a single track")
	f.BoolVar(&generateFlags.noNormalize, "no-normalize", false, "skip loudness normalization")
	f.BoolVar(&generateFlags.noStitching, "no-stitching", false, "disable request stitching for conditioning platforms")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	blocks, err := readScript(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	_, a, err := newApp()
	if err != nil {
		return err
	}

	opts := a.Defaults()
	if cmd.Flags().Changed("inter-block-ms") {
		opts.InterBlockBufferMs = generateFlags.interBlockMs
	}
	if generateFlags.split {
		opts.SingleOutput = false
	}
	if generateFlags.noNormalize {
		opts.NormalizeOutputs = false
	}
	if generateFlags.noStitching {
		opts.RequestStitching = false
	}

	ctx := cmd.Context()
	res, err := a.Generate(ctx, blocks, opts)
	if err != nil {
		return err
	}

	if opts.SingleOutput {
		if err := audio.Export(ctx, res.Audio, generateFlags.output, generateFlags.format); err != nil {
			return err
		}
		slog.Info("audio written", "path", generateFlags.output, "duration", res.Audio.Duration(), "run_id", res.RunID)
		return nil
	}

	for i, seg := range res.Segments {
		path := segmentPath(generateFlags.output, i)
		if err := audio.Export(ctx, seg, path, generateFlags.format); err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		slog.Info("segment written", "path", path, "duration", seg.Duration())
	}
	return nil
}

// readScript loads the blocks from path, or from stdin when path is "-".
func readScript(stdin io.Reader, path string) ([]voice.SpeechBlock, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		r = f
	}
	blocks, err := config.LoadBlocks(r)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("script %q: %w", path, speech.ErrEmptyInput)
	}
	return blocks, nil
}

// segmentPath numbers output after its stem: out.wav becomes out_000.wav.
func segmentPath(output string, i int) string {
	ext := filepath.Ext(output)
	return fmt.Sprintf("%s_%03d%s", strings.TrimSuffix(output, ext), i, ext)
}
