package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Jellypod-Inc/route-tts/pkg/provider/tts"
	"github.com/Jellypod-Inc/route-tts/pkg/voice"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps platform names to adapter constructors. Stateless platforms
// and context-conditioning platforms have separate factory tables because
// their adapters satisfy different contracts. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	simple      map[voice.Platform]func(ProviderEntry) (tts.SimpleSynthesizer, error)
	conditioned map[voice.Platform]func(ProviderEntry) (tts.ConditionedSynthesizer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		simple:      make(map[voice.Platform]func(ProviderEntry) (tts.SimpleSynthesizer, error)),
		conditioned: make(map[voice.Platform]func(ProviderEntry) (tts.ConditionedSynthesizer, error)),
	}
}

// RegisterSimple registers a stateless adapter factory under platform.
// Subsequent calls with the same platform overwrite the previous registration.
func (r *Registry) RegisterSimple(platform voice.Platform, factory func(ProviderEntry) (tts.SimpleSynthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simple[platform] = factory
}

// RegisterConditioned registers a context-conditioning adapter factory under platform.
func (r *Registry) RegisterConditioned(platform voice.Platform, factory func(ProviderEntry) (tts.ConditionedSynthesizer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditioned[platform] = factory
}

// CreateSimple instantiates the stateless adapter registered under platform.
// Returns [ErrProviderNotRegistered] if no factory has been registered.
func (r *Registry) CreateSimple(platform voice.Platform, entry ProviderEntry) (tts.SimpleSynthesizer, error) {
	r.mu.RLock()
	factory, ok := r.simple[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: simple/%q", ErrProviderNotRegistered, platform)
	}
	return factory(entry)
}

// CreateConditioned instantiates the conditioning adapter registered under platform.
func (r *Registry) CreateConditioned(platform voice.Platform, entry ProviderEntry) (tts.ConditionedSynthesizer, error) {
	r.mu.RLock()
	factory, ok := r.conditioned[platform]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: conditioned/%q", ErrProviderNotRegistered, platform)
	}
	return factory(entry)
}

// ResolvedEntry returns the provider entry for platform p with APIKey filled
// from the environment when the config leaves it empty.
func (c *Config) ResolvedEntry(p voice.Platform) ProviderEntry {
	entry, _ := c.Providers.Entry(p)
	entry.APIKey = c.APIKey(p)
	return entry
}

// OptString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func OptString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
