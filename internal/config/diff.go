package config

import (
	"reflect"
	"slices"
	"strings"

	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider
// credentials and the listen address require a restart.
type ConfigDiff struct {
	// VoicesChanged is true if any voice was added, removed, or modified.
	VoicesChanged bool
	VoiceChanges  []VoiceDiff

	GenerationChanged bool
	NewGeneration     GenerationConfig

	LogLevelChanged bool
	NewLogLevel     LogLevel
}

// VoiceDiff describes what changed for a single voice between two configs.
// Voice holds the new descriptor for added and modified voices.
type VoiceDiff struct {
	ID      string
	Voice   voice.Voice
	Added   bool
	Removed bool
}

// Diff compares old and new configs and returns what changed. Voice changes
// are ordered by voice ID.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Generation defaults
	if !reflect.DeepEqual(old.Generation, new.Generation) {
		d.GenerationChanged = true
		d.NewGeneration = new.Generation
	}

	// Build voice lookup maps keyed by ID.
	oldVoices := make(map[string]voice.Voice, len(old.Voices))
	for _, v := range old.Voices {
		oldVoices[v.ID] = v
	}
	newVoices := make(map[string]voice.Voice, len(new.Voices))
	for _, v := range new.Voices {
		newVoices[v.ID] = v
	}

	// Detect modified and removed voices.
	for id, ov := range oldVoices {
		nv, exists := newVoices[id]
		if !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{ID: id, Removed: true})
			continue
		}
		if !reflect.DeepEqual(ov, nv) {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{ID: id, Voice: nv})
		}
	}

	// Detect added voices.
	for id, nv := range newVoices {
		if _, exists := oldVoices[id]; !exists {
			d.VoiceChanges = append(d.VoiceChanges, VoiceDiff{ID: id, Voice: nv, Added: true})
		}
	}

	slices.SortFunc(d.VoiceChanges, func(a, b VoiceDiff) int { return strings.Compare(a.ID, b.ID) })
	d.VoicesChanged = len(d.VoiceChanges) > 0
	return d
}

// ApplyVoices applies the voice changes in d to r. Removals of voices that
// are already gone are ignored.
func (d ConfigDiff) ApplyVoices(r *voice.Registry) {
	for _, vd := range d.VoiceChanges {
		if vd.Removed {
			_ = r.Remove(vd.ID)
			continue
		}
		r.Upsert(vd.Voice)
	}
}
