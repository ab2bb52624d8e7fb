package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Jellypod-Inc/route-tts/internal/config"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

const pollInterval = 20 * time.Millisecond

const hostOnlyYAML = `
server:
  log_level: info
voices:
  - id: host
    platform: openai
    model: tts-1
    voice: alloy
    output_format: pcm
`

const hostAndNarratorYAML = `
server:
  log_level: debug
voices:
  - id: host
    platform: openai
    model: tts-1
    voice: nova
    output_format: pcm
  - id: narrator
    platform: elevenlabs
    model: eleven_multilingual_v2
    voice: abc
`

// change is one observed reload.
type change struct{ old, new *config.Config }

// watch writes initial to a fresh config file and starts a watcher whose
// reloads are delivered on the returned channel.
func watch(t *testing.T, initial string) (path string, w *config.Watcher, changes <-chan change) {
	t.Helper()
	path = filepath.Join(t.TempDir(), "config.yaml")
	rewrite(t, path, initial)

	ch := make(chan change, 8)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		ch <- change{old, new}
	}, config.WithInterval(pollInterval))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return path, w, ch
}

// rewrite replaces the file and moves its mtime past the previous one, so
// the next poll sees it even on filesystems with coarse timestamps.
func rewrite(t *testing.T, path, content string) {
	t.Helper()
	var prev time.Time
	if info, err := os.Stat(path); err == nil {
		prev = info.ModTime()
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
	bumpMtime(t, path, prev)
}

// bumpMtime sets the mtime one second past the later of floor and the
// current mtime.
func bumpMtime(t *testing.T, path string, floor time.Time) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %q: %v", path, err)
	}
	next := info.ModTime()
	if floor.After(next) {
		next = floor
	}
	next = next.Add(time.Second)
	if err := os.Chtimes(path, next, next); err != nil {
		t.Fatalf("chtimes %q: %v", path, err)
	}
}

func expectNoChange(t *testing.T, changes <-chan change) {
	t.Helper()
	select {
	case c := <-changes:
		t.Fatalf("unexpected reload: %+v", c.new)
	case <-time.After(10 * pollInterval):
	}
}

func TestWatcher_LoadsInitialConfig(t *testing.T) {
	t.Parallel()
	_, w, _ := watch(t, hostOnlyYAML)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() returned nil after initial load")
	}
	if len(cfg.Voices) != 1 || cfg.Voices[0].ID != "host" {
		t.Errorf("voices: got %+v", cfg.Voices)
	}
}

func TestWatcher_ReloadAppliesVoiceDiff(t *testing.T) {
	t.Parallel()
	path, w, changes := watch(t, hostOnlyYAML)
	reg := voice.NewRegistry(w.Current().Voices...)

	rewrite(t, path, hostAndNarratorYAML)

	var c change
	select {
	case c = <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload within timeout")
	}

	d := config.Diff(c.old, c.new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff: %+v", d)
	}
	d.ApplyVoices(reg)
	if diff := cmp.Diff(c.new.Voices, reg.List()); diff != "" {
		t.Errorf("registry after reload (-want +got):\n%s", diff)
	}
	if got := w.Current(); got != c.new {
		t.Error("Current() does not return the reloaded config")
	}
}

func TestWatcher_IgnoresInvalidAndUnchangedFiles(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(t *testing.T, path string)
	}{
		{
			name: "invalid log level",
			mutate: func(t *testing.T, path string) {
				rewrite(t, path, "server:\n  log_level: bananas\n")
			},
		},
		{
			name: "duplicate voice ids",
			mutate: func(t *testing.T, path string) {
				rewrite(t, path, hostOnlyYAML+`  - id: host
    platform: openai
    model: tts-1
    voice: echo
`)
			},
		},
		{
			name: "touch without content change",
			mutate: func(t *testing.T, path string) {
				bumpMtime(t, path, time.Time{})
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			path, w, changes := watch(t, hostOnlyYAML)
			before := w.Current()

			tc.mutate(t, path)
			expectNoChange(t, changes)

			if w.Current() != before {
				t.Error("Current() changed although no reload was reported")
			}
		})
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected error for a missing file, got nil")
	}
}

func TestWatcher_WaitReturnsOnCancel(t *testing.T) {
	t.Parallel()
	_, w, _ := watch(t, hostOnlyYAML)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Wait(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Wait returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
	// Stop after Wait, and twice, must be safe.
	w.Stop()
	w.Stop()
}
