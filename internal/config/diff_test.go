package config_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Jellypod-Inc/route-tts/internal/config"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

var (
	hostVoice     = voice.Voice{ID: "host", Platform: voice.PlatformOpenAI, Model: "tts-1", Voice: "alloy"}
	narratorVoice = voice.Voice{ID: "narrator", Platform: voice.PlatformElevenLabs, Model: "eleven_multilingual_v2", Voice: "abc"}
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Voices: []voice.Voice{hostVoice, narratorVoice},
	}
	d := config.Diff(cfg, cfg)
	if d.VoicesChanged || d.LogLevelChanged || d.GenerationChanged {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
	if len(d.VoiceChanges) != 0 {
		t.Errorf("expected 0 voice changes, got %d", len(d.VoiceChanges))
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
}

func TestDiff_GenerationChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{}
	new := &config.Config{Generation: config.GenerationConfig{InterBlockBufferMs: 100}}

	d := config.Diff(old, new)
	if !d.GenerationChanged {
		t.Fatal("expected GenerationChanged=true")
	}
	if d.NewGeneration.InterBlockBufferMs != 100 {
		t.Errorf("NewGeneration: got %+v", d.NewGeneration)
	}
}

func TestDiff_VoiceChanges(t *testing.T) {
	t.Parallel()
	modified := hostVoice
	modified.Voice = "nova"
	guest := voice.Voice{ID: "guest", Platform: voice.PlatformOpenAI, Model: "tts-1", Voice: "echo"}

	old := &config.Config{Voices: []voice.Voice{hostVoice, narratorVoice}}
	new := &config.Config{Voices: []voice.Voice{modified, guest}}

	d := config.Diff(old, new)
	want := []config.VoiceDiff{
		{ID: "guest", Voice: guest, Added: true},
		{ID: "host", Voice: modified},
		{ID: "narrator", Removed: true},
	}
	if !d.VoicesChanged {
		t.Error("expected VoicesChanged=true")
	}
	if diff := cmp.Diff(want, d.VoiceChanges); diff != "" {
		t.Errorf("VoiceChanges mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff_SettingsChangeIsDetected(t *testing.T) {
	t.Parallel()
	a, b := 0.2, 0.8
	oldV, newV := narratorVoice, narratorVoice
	oldV.Settings = &voice.Settings{Stability: &a}
	newV.Settings = &voice.Settings{Stability: &b}

	d := config.Diff(&config.Config{Voices: []voice.Voice{oldV}}, &config.Config{Voices: []voice.Voice{newV}})
	if len(d.VoiceChanges) != 1 || d.VoiceChanges[0].ID != "narrator" {
		t.Errorf("expected narrator change, got %+v", d.VoiceChanges)
	}
}

func TestConfigDiff_ApplyVoices(t *testing.T) {
	t.Parallel()
	modified := hostVoice
	modified.Voice = "nova"
	guest := voice.Voice{ID: "guest", Platform: voice.PlatformOpenAI, Model: "tts-1", Voice: "echo"}

	reg := voice.NewRegistry(hostVoice, narratorVoice)
	d := config.Diff(
		&config.Config{Voices: []voice.Voice{hostVoice, narratorVoice}},
		&config.Config{Voices: []voice.Voice{modified, guest}},
	)
	d.ApplyVoices(reg)

	want := []voice.Voice{modified, guest}
	if diff := cmp.Diff(want, reg.List()); diff != "" {
		t.Errorf("registry mismatch (-want +got):\n%s", diff)
	}

	// Applying again is harmless even though narrator is already gone.
	d.ApplyVoices(reg)
	if reg.Len() != 2 {
		t.Errorf("Len after reapply = %d, want 2", reg.Len())
	}
}
