package config

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ChangeFunc receives the previous and the newly loaded config after a
// reload. It runs on the watcher goroutine.
type ChangeFunc func(old, new *Config)

// Watcher polls a config file and hands every valid change to a
// [ChangeFunc]. A file is only parsed when its mtime moves, and only reported
// when its content hash differs from the live config. A file that fails to
// parse or validate is logged once per modification and otherwise ignored,
// so the last good config stays live.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	live    snapshot
	seenMod time.Time
}

// snapshot is one successfully loaded version of the file.
type snapshot struct {
	cfg  *Config
	hash [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values keep the
// 5 second default.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and starts polling it in the background. It fails if
// the initial load fails.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, mod, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.live, w.seenMod = snap, mod

	go w.poll()
	return w, nil
}

// Current returns the live config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.live.cfg
}

// Stop ends polling. Calling it again is a no-op.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

// Wait blocks until ctx is done or the watcher is stopped, and always
// returns nil so it can sit in an errgroup next to the HTTP server.
func (w *Watcher) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-w.done:
	}
	w.Stop()
	return nil
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seenMod)
	w.mu.Unlock()
	if unchanged {
		return
	}

	snap, mod, err := w.read()
	w.mu.Lock()
	w.seenMod = mod
	if err != nil || snap.hash == w.live.hash {
		w.mu.Unlock()
		if err != nil {
			slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		}
		return
	}
	old := w.live.cfg
	w.live = snap
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path, "voices", len(snap.cfg.Voices))
	if w.onChange != nil {
		w.onChange(old, snap.cfg)
	}
}

// read loads and validates the file. The returned mtime is valid whenever the
// file could be read, even if its content was rejected.
func (w *Watcher) read() (snapshot, time.Time, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, info.ModTime(), err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, info.ModTime(), err
	}
	return snapshot{cfg: cfg, hash: sha256.Sum256(data)}, info.ModTime(), nil
}
