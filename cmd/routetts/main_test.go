package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/Jellypod-Inc/route-tts/internal/config"
	"github.com/Jellypod-Inc/route-tts/internal/speech"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

func TestBuildProviders_SkipsPlatformsWithoutCredentials(t *testing.T) {
	t.Setenv(config.EnvOpenAIKey, "")
	t.Setenv(config.EnvElevenLabsKey, "")

	cfg := &config.Config{}
	cfg.Providers.OpenAI.APIKey = "sk-test"

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	ps, err := buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.OpenAI == nil {
		t.Error("openai adapter not created despite api_key")
	}
	if ps.ElevenLabs != nil {
		t.Error("elevenlabs adapter created without credentials")
	}
}

func TestBuildProviders_UsesEnvironmentKey(t *testing.T) {
	t.Setenv(config.EnvOpenAIKey, "")
	t.Setenv(config.EnvElevenLabsKey, "el-test")

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	ps, err := buildProviders(&config.Config{}, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.ElevenLabs == nil || ps.OpenAI != nil {
		t.Errorf("providers = %+v, want only elevenlabs", ps)
	}
}

func TestReadScript(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "script.yaml")
	script := "- voice_id: host\n  text: Hello.\n- voice_id: narrator\n  text: Once.\n  buffer_ms: 120\n"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}

	fromFile, err := readScript(nil, path)
	if err != nil {
		t.Fatalf("readScript(file): %v", err)
	}
	fromStdin, err := readScript(strings.NewReader(script), "-")
	if err != nil {
		t.Fatalf("readScript(stdin): %v", err)
	}
	want := []voice.SpeechBlock{
		{VoiceID: "host", Text: "Hello."},
		{VoiceID: "narrator", Text: "Once.", BufferMs: 120},
	}
	if diff := cmp.Diff(want, fromFile); diff != "" {
		t.Errorf("file blocks (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, fromStdin); diff != "" {
		t.Errorf("stdin blocks (-want +got):\n%s", diff)
	}

	if _, err := readScript(strings.NewReader(""), "-"); !errors.Is(err, speech.ErrEmptyInput) {
		t.Errorf("empty script: err = %v, want ErrEmptyInput", err)
	}
	if _, err := readScript(nil, filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing script: err = %v, want ErrNotExist", err)
	}
}

func TestSegmentPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		output string
		i      int
		want   string
	}{
		{"out.wav", 0, "out_000.wav"},
		{"dir/episode.mp3", 12, "dir/episode_012.mp3"},
		{"noext", 3, "noext_003"},
	}
	for _, tc := range tests {
		if got := segmentPath(tc.output, tc.i); got != tc.want {
			t.Errorf("segmentPath(%q, %d) = %q, want %q", tc.output, tc.i, got, tc.want)
		}
	}
}

func TestWriteVoiceTable(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	writeVoiceTable(&buf, []voice.Voice{
		{ID: "host", Platform: voice.PlatformOpenAI, Model: "tts-1", Voice: "alloy"},
		{ID: "narrator", Platform: voice.PlatformElevenLabs, Model: "eleven_multilingual_v2", Voice: "abc"},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}
	if f := strings.Fields(lines[1]); f[len(f)-1] != "mp3" {
		t.Errorf("host row = %q, want default mp3 format", lines[1])
	}
	if f := strings.Fields(lines[2]); f[len(f)-1] != "-" {
		t.Errorf("narrator row = %q, want dash for vendor-chosen format", lines[2])
	}
}
