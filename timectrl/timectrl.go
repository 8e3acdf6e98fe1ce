// Package timectrl schedules per-frame callbacks. TickerScheduler drives
// them from wall-clock ticks; ManualScheduler fires them on demand so
// tests can step animation deterministically.
package timectrl

import (
	"sort"
	"sync"
	"time"
)

// FrameID identifies a requested callback. Zero is never issued.
type FrameID uint64

// FrameFunc receives the timestamp of the frame it runs in.
type FrameFunc func(now time.Time)

// FrameScheduler runs each requested callback once, on the next frame.
// Callbacks requested while a frame is running wait for the following
// frame.
type FrameScheduler interface {
	Request(fn FrameFunc) FrameID
	Cancel(id FrameID)
	// Pending reports how many callbacks are waiting for a frame.
	Pending() int
}

// DefaultInterval approximates a 60 Hz display.
const DefaultInterval = time.Second / 60

// queue holds pending callbacks. Both schedulers embed it.
type queue struct {
	mu      sync.Mutex
	next    FrameID
	pending map[FrameID]FrameFunc
}

func (q *queue) Request(fn FrameFunc) FrameID {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == nil {
		q.pending = make(map[FrameID]FrameFunc)
	}
	q.next++
	q.pending[q.next] = fn
	return q.next
}

func (q *queue) Cancel(id FrameID) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

// Pending returns the number of callbacks waiting for a frame.
func (q *queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// flush runs the current batch in request order. The lock is released
// before callbacks run so they may request or cancel freely.
func (q *queue) flush(now time.Time) int {
	q.mu.Lock()
	ids := make([]FrameID, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	batch := make([]FrameFunc, len(ids))
	for i, id := range ids {
		batch[i] = q.pending[id]
		delete(q.pending, id)
	}
	q.mu.Unlock()

	for _, fn := range batch {
		fn(now)
	}
	return len(batch)
}

// TickerScheduler fires pending callbacks on every tick of a ticker
// goroutine.
type TickerScheduler struct {
	queue
	Interval time.Duration

	runMu   sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

// NewTickerScheduler constructs a scheduler ticking every interval. It
// does nothing until Start.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TickerScheduler{Interval: interval}
}

// Start launches the ticker goroutine. It returns a channel that is
// closed once the goroutine exits after Stop. Calling Start on a running
// scheduler returns the existing channel.
func (s *TickerScheduler) Start() <-chan struct{} {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stop != nil {
		return s.stopped
	}
	stop := make(chan struct{})
	stopped := make(chan struct{})
	s.stop, s.stopped = stop, stopped

	go func() {
		defer close(stopped)

		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				s.flush(now)
			}
		}
	}()
	return stopped
}

// Stop ends the ticker goroutine and waits for the frame in progress.
// Pending callbacks stay queued.
func (s *TickerScheduler) Stop() {
	s.runMu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.runMu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

// ManualScheduler fires callbacks only when stepped.
type ManualScheduler struct {
	queue
	now time.Time
}

// NewManualScheduler constructs a scheduler whose clock starts at start.
func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{now: start}
}

// Step advances the clock by d and runs one frame. It returns the number
// of callbacks that ran.
func (m *ManualScheduler) Step(d time.Duration) int {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	m.mu.Unlock()
	return m.flush(now)
}

// Now returns the scheduler clock.
func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
