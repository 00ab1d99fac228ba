package gitint

import (
	"sort"
	"sync"
	"time"
)

// settleWindow is how long .git must be quiet before HEAD is re-read. A
// checkout rewrites HEAD, index and ORIG_HEAD in quick succession.
const settleWindow = 100 * time.Millisecond

// settler collapses a burst of .git entry changes into one callback fired
// after window of silence. The callback receives the sorted names of the
// entries touched during the burst. It is safe for concurrent use.
type settler struct {
	window time.Duration
	fire   func(names []string)

	mu      sync.Mutex
	timer   *time.Timer
	names   map[string]struct{}
	stopped bool
}

func newSettler(window time.Duration, fire func(names []string)) *settler {
	return &settler{
		window: window,
		fire:   fire,
		names:  make(map[string]struct{}),
	}
}

// Touch records a change to name and restarts the quiet window.
func (s *settler) Touch(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.names[name] = struct{}{}

	if s.timer != nil {
		s.timer.Reset(s.window)
		return
	}
	s.timer = time.AfterFunc(s.window, s.flush)
}

func (s *settler) flush() {
	s.mu.Lock()
	names := s.drain()
	s.mu.Unlock()

	if len(names) > 0 {
		s.fire(names)
	}
}

// drain must be called with mu held.
func (s *settler) drain() []string {
	s.timer = nil
	if len(s.names) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.names))
	for n := range s.names {
		names = append(names, n)
	}
	sort.Strings(names)
	s.names = make(map[string]struct{})
	return names
}

// Stop cancels the pending timer without firing. Later Touch calls are
// no-ops.
func (s *settler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.drain()
}
