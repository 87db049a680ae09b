package langclient

import (
	"sync"
	"testing"
	"time"
)

// pullRecorder records background pulls in order and settles immediately.
type pullRecorder struct {
	mu   sync.Mutex
	uris []DocumentURI
}

func (p *pullRecorder) Pull(doc Document, done func()) {
	p.mu.Lock()
	p.uris = append(p.uris, doc.URI())
	p.mu.Unlock()
	if done != nil {
		done()
	}
}

func (p *pullRecorder) pulled() []DocumentURI {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DocumentURI(nil), p.uris...)
}

func (p *pullRecorder) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.uris)
}

func TestSchedulerRoundRobinStopsAtMarker(t *testing.T) {
	recorder := &pullRecorder{}
	s := NewBackgroundScheduler(recorder, WithTickInterval(2*time.Millisecond))
	defer s.Dispose()

	a := NewTextDocument("file:///a.go", "go")
	b := NewTextDocument("file:///b.go", "go")
	c := NewTextDocument("file:///c.go", "go")
	s.Add(a)
	s.Add(b)
	s.Add(c)

	waitFor(t, func() bool { return recorder.count() == 3 }, "three background pulls")
	time.Sleep(30 * time.Millisecond)

	got := recorder.pulled()
	want := []DocumentURI{"file:///a.go", "file:///b.go", "file:///c.go"}
	if len(got) != len(want) {
		t.Fatalf("pulled %v, want %v (loop must stop at the last added document)", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pull %d = %s, want %s", i, got[i], want[i])
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3 (idle loop keeps its queue)", s.Len())
	}
}

func TestSchedulerTriggerRestartsSweep(t *testing.T) {
	recorder := &pullRecorder{}
	s := NewBackgroundScheduler(recorder, WithTickInterval(2*time.Millisecond))
	defer s.Dispose()

	s.Add(NewTextDocument("file:///a.go", "go"))
	s.Add(NewTextDocument("file:///b.go", "go"))
	waitFor(t, func() bool { return recorder.count() == 2 }, "first sweep")
	time.Sleep(20 * time.Millisecond)

	s.Trigger()
	waitFor(t, func() bool { return recorder.count() == 4 }, "second sweep")
	time.Sleep(30 * time.Millisecond)
	if got := recorder.count(); got != 4 {
		t.Errorf("pulls = %d, want 4 (one more full round per trigger)", got)
	}
}

func TestSchedulerReAddMovesToTail(t *testing.T) {
	recorder := &pullRecorder{}
	s := NewBackgroundScheduler(recorder, WithTickInterval(20*time.Millisecond))
	defer s.Dispose()

	a := NewTextDocument("file:///a.go", "go")
	b := NewTextDocument("file:///b.go", "go")
	s.Add(a)
	s.Add(b)
	s.Add(a)

	waitFor(t, func() bool { return recorder.count() == 2 }, "sweep up to the re-added document")
	got := recorder.pulled()
	if got[0] != "file:///b.go" || got[1] != "file:///a.go" {
		t.Errorf("pulled %v, want re-added document last", got)
	}
}

func TestSchedulerRemoveAdjustsMarker(t *testing.T) {
	recorder := &pullRecorder{}
	s := NewBackgroundScheduler(recorder, WithTickInterval(20*time.Millisecond))
	defer s.Dispose()

	a := NewTextDocument("file:///a.go", "go")
	b := NewTextDocument("file:///b.go", "go")
	c := NewTextDocument("file:///c.go", "go")
	s.Add(a)
	s.Add(b)
	s.Add(c)
	s.Remove(c)

	waitFor(t, func() bool { return recorder.count() == 2 }, "sweep up to the moved marker")
	time.Sleep(60 * time.Millisecond)
	if got := recorder.count(); got != 2 {
		t.Errorf("pulls = %d, want 2 (marker moved to the previous entry)", got)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2", s.Len())
	}
}

func TestSchedulerRemoveHeadMarkerStops(t *testing.T) {
	recorder := &pullRecorder{}
	s := NewBackgroundScheduler(recorder, WithTickInterval(20*time.Millisecond))
	defer s.Dispose()

	a := NewTextDocument("file:///a.go", "go")
	s.Add(a)
	s.Remove(a)

	time.Sleep(60 * time.Millisecond)
	if got := recorder.count(); got != 0 {
		t.Errorf("pulls = %d, want 0 after removing the only entry", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestSchedulerDispose(t *testing.T) {
	recorder := &pullRecorder{}
	s := NewBackgroundScheduler(recorder, WithTickInterval(20*time.Millisecond))

	s.Add(NewTextDocument("file:///a.go", "go"))
	s.Dispose()
	s.Dispose() // idempotent

	s.Add(NewTextDocument("file:///b.go", "go"))
	time.Sleep(60 * time.Millisecond)
	if got := recorder.count(); got != 0 {
		t.Errorf("pulls = %d, want 0 after dispose", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0 after dispose", s.Len())
	}
}
