package core

import "sync"

// ── Registry ──────────────────────────────────────────────────────────────────

// DefaultRegistry is a thread-safe implementation of Registry.
type DefaultRegistry struct {
	mu     sync.RWMutex
	codecs map[Category]Codec
}

// NewRegistry returns a DefaultRegistry holding the given codecs.
func NewRegistry(codecs ...Codec) *DefaultRegistry {
	r := &DefaultRegistry{codecs: make(map[Category]Codec)}
	for _, c := range codecs {
		r.codecs[c.Category()] = c
	}
	return r
}

// RegisterCodec installs c for its category, replacing any previous codec.
func (r *DefaultRegistry) RegisterCodec(c Codec) {
	r.mu.Lock()
	r.codecs[c.Category()] = c
	r.mu.Unlock()
}

func (r *DefaultRegistry) CodecFor(cat Category) (Codec, bool) {
	r.mu.RLock()
	c, ok := r.codecs[cat]
	r.mu.RUnlock()
	return c, ok
}
