package gitint

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

type fireRecorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *fireRecorder) fire(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, names)
}

func (r *fireRecorder) get() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func TestSettlerSingleTouch(t *testing.T) {
	rec := &fireRecorder{}
	s := newSettler(50*time.Millisecond, rec.fire)
	defer s.Stop()

	s.Touch("HEAD")
	time.Sleep(120 * time.Millisecond)

	calls := rec.get()
	if len(calls) != 1 {
		t.Fatalf("expected 1 callback, got %d", len(calls))
	}
	if !reflect.DeepEqual(calls[0], []string{"HEAD"}) {
		t.Errorf("names = %v, want [HEAD]", calls[0])
	}
}

func TestSettlerBurstCollapse(t *testing.T) {
	rec := &fireRecorder{}
	s := newSettler(50*time.Millisecond, rec.fire)
	defer s.Stop()

	// A checkout touches several entries in rapid succession.
	for _, name := range []string{"index", "HEAD", "ORIG_HEAD", "index", "HEAD"} {
		s.Touch(name)
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(120 * time.Millisecond)

	calls := rec.get()
	if len(calls) != 1 {
		t.Fatalf("expected exactly 1 callback after burst, got %d", len(calls))
	}
	want := []string{"HEAD", "ORIG_HEAD", "index"}
	if !reflect.DeepEqual(calls[0], want) {
		t.Errorf("names = %v, want %v", calls[0], want)
	}
}

func TestSettlerSeparateBursts(t *testing.T) {
	rec := &fireRecorder{}
	s := newSettler(30*time.Millisecond, rec.fire)
	defer s.Stop()

	s.Touch("HEAD")
	time.Sleep(100 * time.Millisecond)
	s.Touch("COMMIT_EDITMSG")
	time.Sleep(100 * time.Millisecond)

	if calls := rec.get(); len(calls) != 2 {
		t.Fatalf("expected 2 callbacks, got %d", len(calls))
	}
}

func TestSettlerStopDiscards(t *testing.T) {
	rec := &fireRecorder{}
	s := newSettler(50*time.Millisecond, rec.fire)

	s.Touch("HEAD")
	s.Stop()
	s.Touch("index")
	time.Sleep(120 * time.Millisecond)

	if calls := rec.get(); len(calls) != 0 {
		t.Errorf("expected no callbacks after Stop, got %v", calls)
	}
}
