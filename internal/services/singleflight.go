package services

import "sync"

// FormGuard admits at most one holder per key. The zero value is ready.
type FormGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// Acquire claims key. It returns false if the key is already held; otherwise
// the returned release func must be called exactly once.
func (g *FormGuard) Acquire(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = make(map[string]struct{})
	}
	if _, busy := g.held[key]; busy {
		return nil, false
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently claimed.
func (g *FormGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[key]
	return ok
}
