package langclient

import (
	"sync"
	"time"
)

// documentPuller is the slice of the requestor the scheduler needs: it
// delegates the actual pull and never writes diagnostics itself.
type documentPuller interface {
	Pull(doc Document, done func())
}

const defaultTickInterval = 500 * time.Millisecond

// BackgroundScheduler cooperatively revalidates documents that are not
// directly visible or edited but may be stale because another document
// with inter-file dependencies changed. It walks an ordered queue one
// document per tick, re-arming itself until it has caught up to a moving
// "run up to" marker. Round-robin with a bounded per-tick cost amortizes
// revalidation while guaranteeing eventual consistency up to the most
// recently changed document.
type BackgroundScheduler struct {
	mu       sync.Mutex
	puller   documentPuller
	interval time.Duration

	keys []string
	docs map[string]Document

	// endKey names the last entry that must be processed before the loop
	// may go idle. hasEnd guards it: without a marker the loop stops.
	endKey string
	hasEnd bool

	timer    *time.Timer
	running  bool
	disposed bool
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*BackgroundScheduler)

// WithTickInterval sets the delay between background ticks.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *BackgroundScheduler) {
		s.interval = d
	}
}

// NewBackgroundScheduler creates a scheduler delegating pulls to the
// given puller.
func NewBackgroundScheduler(puller documentPuller, opts ...SchedulerOption) *BackgroundScheduler {
	s := &BackgroundScheduler{
		puller:   puller,
		interval: defaultTickInterval,
		docs:     make(map[string]Document),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add enqueues a document for revalidation. A document already queued
// moves to the tail (most recently added runs last); the run-up-to marker
// advances to the new tail and the loop starts if idle.
func (s *BackgroundScheduler) Add(doc Document) {
	key := string(doc.URI())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if _, ok := s.docs[key]; ok {
		s.moveToTailLocked(key)
	} else {
		s.keys = append(s.keys, key)
	}
	s.docs[key] = doc
	s.endKey = s.keys[len(s.keys)-1]
	s.hasEnd = true
	if !s.running {
		s.armLocked()
	}
}

// Remove drops a document from the queue. If the removed entry was the
// run-up-to marker, the marker moves to the entry before it so the sweep
// does not report itself caught up on the wrong boundary; removing the
// head entry while it is the marker means the sweep is already caught up.
// An empty queue stops the loop entirely.
func (s *BackgroundScheduler) Remove(doc Document) {
	key := string(doc.URI())

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, k := range s.keys {
		if k == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if s.hasEnd && key == s.endKey {
		if idx > 0 {
			s.endKey = s.keys[idx-1]
		} else {
			s.hasEnd = false
		}
	}
	s.keys = append(s.keys[:idx], s.keys[idx+1:]...)
	delete(s.docs, key)
	if len(s.keys) == 0 {
		s.stopLocked()
	}
}

// Trigger moves the run-up-to marker to the current tail and starts the
// loop if idle.
func (s *BackgroundScheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || len(s.keys) == 0 {
		return
	}
	s.endKey = s.keys[len(s.keys)-1]
	s.hasEnd = true
	if !s.running {
		s.armLocked()
	}
}

// Len returns the number of queued documents.
func (s *BackgroundScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Dispose stops the loop and clears the queue. Idempotent; document pull
// state stays with the requestor.
func (s *BackgroundScheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	s.stopLocked()
	s.keys = nil
	s.docs = make(map[string]Document)
}

func (s *BackgroundScheduler) moveToTailLocked(key string) {
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
	s.keys = append(s.keys, key)
}

func (s *BackgroundScheduler) armLocked() {
	s.running = true
	s.timer = time.AfterFunc(s.interval, s.tick)
}

func (s *BackgroundScheduler) stopLocked() {
	s.hasEnd = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.running = false
}

// tick processes the head of the queue: pull it, requeue it at the tail,
// and arm the next tick once the pull settles. The loop goes idle when
// the processed entry is the run-up-to marker.
func (s *BackgroundScheduler) tick() {
	s.mu.Lock()
	s.timer = nil
	if s.disposed || len(s.keys) == 0 {
		s.running = false
		s.hasEnd = false
		s.mu.Unlock()
		return
	}
	key := s.keys[0]
	doc := s.docs[key]
	s.moveToTailLocked(key)
	s.mu.Unlock()

	metricBackgroundTicks.Inc()
	s.puller.Pull(doc, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		if s.disposed || len(s.keys) == 0 || !s.hasEnd {
			return
		}
		if key == s.endKey {
			// Caught up to the marker.
			s.hasEnd = false
			return
		}
		s.armLocked()
	})
}
