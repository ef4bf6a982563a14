package mbtiles

import (
	"sync"
)

// Pool hands out one shared Reader per archive path, opened on first use.
// A failed open is not cached, so the next Get retries.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	once sync.Once
	r    *Reader
	err  error
}

func NewPool() *Pool {
	return &Pool{entries: make(map[string]*poolEntry)}
}

// Get returns the shared reader for path, opening it if needed.
// Concurrent callers for the same path wait on a single Open.
func (p *Pool) Get(path string) (*Reader, error) {
	p.mu.Lock()
	e, ok := p.entries[path]
	if !ok {
		e = &poolEntry{}
		p.entries[path] = e
	}
	p.mu.Unlock()

	e.once.Do(func() {
		e.r, e.err = Open(path)
	})
	if e.err != nil {
		p.mu.Lock()
		if p.entries[path] == e {
			delete(p.entries, path)
		}
		p.mu.Unlock()
		return nil, e.err
	}
	return e.r, nil
}

// Close closes every open reader and empties the pool.
// Readers handed out earlier must not be used afterwards.
func (p *Pool) Close() error {
	p.mu.Lock()
	entries := p.entries
	p.entries = make(map[string]*poolEntry)
	p.mu.Unlock()

	var first error
	for _, e := range entries {
		e.once.Do(func() {})
		if e.r == nil {
			continue
		}
		if err := e.r.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
