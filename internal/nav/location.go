package nav

import "sync"

// Location holds the current token, like a browser address bar, with
// back/forward history for external navigation.
type Location struct {
	mu      sync.Mutex
	current string
	back    []string
	forward []string
}

func NewLocation(raw string) *Location { return &Location{current: raw} }

func (l *Location) Get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Set replaces the token in place (no history entry).
func (l *Location) Set(raw string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = raw
}

// Push navigates to raw, recording the current token for Back.
func (l *Location) Push(raw string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if raw == l.current {
		return
	}
	l.back = append(l.back, l.current)
	l.forward = nil
	l.current = raw
}

// Back returns to the previous token. It reports false at the start of history.
func (l *Location) Back() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.back) == 0 {
		return false
	}
	l.forward = append(l.forward, l.current)
	l.current = l.back[len(l.back)-1]
	l.back = l.back[:len(l.back)-1]
	return true
}

func (l *Location) Forward() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.forward) == 0 {
		return false
	}
	l.back = append(l.back, l.current)
	l.current = l.forward[len(l.forward)-1]
	l.forward = l.forward[:len(l.forward)-1]
	return true
}
