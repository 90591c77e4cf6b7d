package provider

import "sync"

// Registry holds all registered source adapters keyed by name.
type Registry struct {
	mu           sync.RWMutex
	sources      map[SourceName]Source
	fingerprints map[SourceName]FingerprintSource
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[SourceName]Source),
		fingerprints: make(map[SourceName]FingerprintSource),
	}
}

// Register adds a search source to the registry.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// RegisterFingerprint adds a fingerprint source to the registry.
func (r *Registry) RegisterFingerprint(s FingerprintSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fingerprints[s.Name()] = s
}

// Get returns a search source by name, or nil if not registered.
func (r *Registry) Get(name SourceName) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// GetFingerprint returns a fingerprint source by name, or nil if not registered.
func (r *Registry) GetFingerprint(name SourceName) FingerprintSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fingerprints[name]
}

// All returns all registered search sources in a stable order.
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Source
	for _, name := range AllSourceNames() {
		if s, ok := r.sources[name]; ok {
			result = append(result, s)
		}
	}
	return result
}

// AllFingerprints returns all registered fingerprint sources in a stable order.
func (r *Registry) AllFingerprints() []FingerprintSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []FingerprintSource
	for _, name := range AllSourceNames() {
		if s, ok := r.fingerprints[name]; ok {
			result = append(result, s)
		}
	}
	return result
}
