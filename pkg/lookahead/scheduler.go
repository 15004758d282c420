// ABOUTME: Lookahead timer that releases note events close to their due time
// ABOUTME: Single goroutine owning a heap of pending events and one re-armed timer
package lookahead

import (
	"container/heap"
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Kind distinguishes note-on from note-off
type Kind int

const (
	Play Kind = iota
	Stop
)

func (k Kind) String() string {
	switch k {
	case Play:
		return "play"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Event is a deferred note command. At is the graph time the note must land on.
type Event struct {
	Kind     Kind
	NoteID   string
	OwnerID  string
	Velocity float64
	At       float64
}

// Config configures a Scheduler
type Config struct {
	// Buffer sizes the request and event channels (default 256)
	Buffer int
	Logger *zap.Logger
}

// Stats tracks scheduler metrics
type Stats struct {
	Posted    int64
	Fired     int64
	Discarded int64
}

type request struct {
	due time.Time
	ev  Event
}

// Scheduler delays events on a dedicated goroutine
type Scheduler struct {
	requests chan request
	events   chan Event
	queue    *eventQueue
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	now      func() time.Time

	pending   atomic.Int64
	posted    atomic.Int64
	fired     atomic.Int64
	discarded atomic.Int64

	logger *zap.Logger
}

// New creates a scheduler; call Run to start it
func New(cfg Config) *Scheduler {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		requests: make(chan request, cfg.Buffer),
		events:   make(chan Event, cfg.Buffer),
		queue:    newEventQueue(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		now:      time.Now,
		logger:   cfg.Logger.Named("lookahead"),
	}
}

// Post queues ev to be delivered after delay. It returns false once the scheduler is stopped.
func (s *Scheduler) Post(delay time.Duration, ev Event) bool {
	if delay < 0 {
		delay = 0
	}
	req := request{due: s.now().Add(delay), ev: ev}
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	s.pending.Add(1)
	select {
	case s.requests <- req:
		s.posted.Add(1)
		return true
	case <-s.ctx.Done():
		s.pending.Add(-1)
		return false
	}
}

// Events delivers fired events in due order
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Pending returns how many events are waiting, including those not yet picked up
func (s *Scheduler) Pending() int {
	return int(s.pending.Load())
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() Stats {
	return Stats{
		Posted:    s.posted.Load(),
		Fired:     s.fired.Load(),
		Discarded: s.discarded.Load(),
	}
}

// Stop terminates the scheduler; pending events are discarded
func (s *Scheduler) Stop() {
	s.cancel()
}

// Done is closed when Run has returned
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Run owns the queue until Stop is called
func (s *Scheduler) Run() {
	defer close(s.done)
	defer s.discard()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.requests:
			heap.Push(s.queue, req)
			s.rearm(timer)
		case <-timer.C:
			if !s.fire() {
				return
			}
			s.rearm(timer)
		}
	}
}

// fire delivers every due event; false means the scheduler stopped mid-delivery
func (s *Scheduler) fire() bool {
	now := s.now()
	for s.queue.Len() > 0 {
		next := s.queue.Peek()
		if next.due.After(now) {
			break
		}
		heap.Pop(s.queue)
		select {
		case s.events <- next.ev:
			s.pending.Add(-1)
			s.fired.Add(1)
		case <-s.ctx.Done():
			s.pending.Add(-1)
			s.discarded.Add(1)
			return false
		}
	}
	return true
}

func (s *Scheduler) rearm(timer *time.Timer) {
	if s.queue.Len() == 0 {
		timer.Stop()
		return
	}
	d := s.queue.Peek().due.Sub(s.now())
	if d < 0 {
		d = 0
	}
	timer.Reset(d)
}

// discard drops everything still queued or in flight
func (s *Scheduler) discard() {
	n := s.queue.Len()
	s.queue.items = nil
	for {
		select {
		case <-s.requests:
			n++
		default:
			if n > 0 {
				s.pending.Add(int64(-n))
				s.discarded.Add(int64(n))
				s.logger.Debug("discarded pending events", zap.Int("count", n))
			}
			return
		}
	}
}

// eventQueue is a priority queue of requests ordered by due time, then arrival
type eventQueue struct {
	items []queued
	seq   uint64
}

type queued struct {
	request
	seq uint64
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	heap.Init(q)
	return q
}

// Implement heap.Interface
func (q *eventQueue) Len() int { return len(q.items) }

func (q *eventQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.due.Equal(b.due) {
		return a.seq < b.seq
	}
	return a.due.Before(b.due)
}

func (q *eventQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *eventQueue) Push(x interface{}) {
	q.seq++
	q.items = append(q.items, queued{request: x.(request), seq: q.seq})
}

func (q *eventQueue) Pop() interface{} {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item.request
}

// Peek returns the earliest request without removing it
func (q *eventQueue) Peek() request {
	return q.items[0].request
}
