package redo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/pushgate/pkg/log"
)

// Action is the unit of work stored in a queue entry. The context passed to
// an action is never cancelled by Rewind and identifies the consumer, so an
// action may call Rewind on its own queue. An action that has called Rewind
// must not Enqueue on the same queue: Enqueue waits for the rewind.
type Action func(ctx context.Context) error

// slot is one position on the tape. A zero sentAt means the entry has not
// been consumed yet.
type slot struct {
	id     uint32
	action Action
	sentAt time.Time
	used   bool
}

// consumerKey marks contexts handed to actions by a queue's consumer.
type consumerKey struct{}

type actionScope struct {
	queue *Queue
	epoch uint64
}

// EpochOf returns the queue epoch an action started in, if ctx is the
// context the action received.
func EpochOf(ctx context.Context) (uint64, bool) {
	scope, ok := ctx.Value(consumerKey{}).(actionScope)
	return scope.epoch, ok
}

// Stats is a point-in-time view of the tape.
type Stats struct {
	Capacity int
	// Pending counts entries whose action has not completed, including the
	// one in flight.
	Pending int
	// Retained counts consumed entries still held for replay.
	Retained int
	Running  bool
}

// Queue is a fixed-capacity circular tape of actions with a single
// asynchronous consumer and id-addressable replay.
//
// head is the slot written last and tail the slot consumed last. Ids must be
// enqueued in increasing order.
type Queue struct {
	retain time.Duration
	logger log.Logger

	// enqMu serializes Enqueue and Rewind.
	enqMu sync.Mutex

	mu      sync.Mutex
	tape    []slot
	head    int
	tail    int
	lastID  uint32
	hasLast bool
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	changed chan struct{}
	// pending is the slot an action asked to rewind to, or -1. pendingID is
	// the id that slot held when the rewind was requested.
	pending   int
	pendingID uint32
	// epoch counts applied rewinds.
	epoch uint64
}

// New creates a queue with the given capacity (at least 2) that retains sent
// entries for at least retain before their slot can be reused.
func New(capacity int, retain time.Duration, opts ...Option) *Queue {
	if capacity < 2 {
		panic(fmt.Sprintf("redo: capacity must be at least 2, got %d", capacity))
	}
	q := &Queue{
		retain:  retain,
		logger:  log.NoopLogger{},
		tape:    make([]slot, capacity),
		changed: make(chan struct{}),
		pending: -1,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Capacity returns the number of slots on the tape.
func (q *Queue) Capacity() int { return len(q.tape) }

// Retention returns the minimum time a sent entry stays replayable.
func (q *Queue) Retention() time.Duration { return q.retain }

func (q *Queue) inc(k int) int {
	k++
	if k == len(q.tape) {
		k = 0
	}
	return k
}

// Enqueue appends an action under id and starts the consumer if it is idle.
//
// It blocks while the next slot is still unconsumed (or is the slot being
// consumed), while the entry in that slot was sent less than the retention
// window ago, and while a rewind requested by the running action is waiting
// to be applied. It returns ctx.Err() if ctx ends while blocked; the
// queue is unchanged in that case.
func (q *Queue) Enqueue(ctx context.Context, id uint32, action Action) error {
	q.enqMu.Lock()
	defer q.enqMu.Unlock()

	q.mu.Lock()
	var next int
	for {
		next = q.inc(q.head)
		s := &q.tape[next]
		if q.pending >= 0 || next == q.tail || (s.used && s.sentAt.IsZero()) {
			if err := q.waitLocked(ctx, 0); err != nil {
				q.mu.Unlock()
				return err
			}
			continue
		}
		if s.used {
			if wait := q.retain - time.Since(s.sentAt); wait > 0 {
				if err := q.waitLocked(ctx, wait); err != nil {
					q.mu.Unlock()
					return err
				}
				continue
			}
		}
		break
	}

	q.tape[next] = slot{id: id, action: action, used: true}
	q.head = next
	q.lastID, q.hasLast = id, true
	if !q.running {
		q.startLocked()
	}
	q.mu.Unlock()
	return nil
}

// Rewind makes the consumer run again every entry enqueued after id, in
// order. Entries up to and including id are not run again.
//
// Rewinding to the most recently enqueued id is a no-op. If id is neither a
// sent entry still on the tape nor the entry being run, Rewind returns an
// *EntryNotFoundError and leaves the queue unchanged.
//
// Called from outside, Rewind stops the consumer and waits for its current
// action to finish before repositioning it. Called from inside an action
// (with the context the action received), the rewind takes effect as soon as
// that action returns.
func (q *Queue) Rewind(ctx context.Context, id uint32) error {
	if scope, _ := ctx.Value(consumerKey{}).(actionScope); scope.queue == q {
		return q.rewindFromConsumer(id)
	}

	q.enqMu.Lock()
	defer q.enqMu.Unlock()

	q.mu.Lock()
	if q.hasLast && id == q.lastID {
		q.mu.Unlock()
		return nil
	}
	if q.findLocked(id, true) < 0 {
		q.mu.Unlock()
		return &EntryNotFoundError{ID: id}
	}
	q.mu.Unlock()

	q.stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	// Slots are only overwritten under enqMu, so the entry is still there,
	// and an entry that was in flight has been stamped by now.
	idx := q.findLocked(id, false)
	if idx < 0 {
		return &EntryNotFoundError{ID: id}
	}
	q.rewindLocked(idx)
	if q.hasNextLocked() {
		q.startLocked()
	}
	q.signalLocked()
	return nil
}

func (q *Queue) rewindFromConsumer(id uint32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.hasLast && id == q.lastID {
		return nil
	}
	idx := q.findLocked(id, true)
	if idx < 0 {
		return &EntryNotFoundError{ID: id}
	}
	q.pending, q.pendingID = idx, id
	return nil
}

// Epoch returns the number of rewinds applied so far. An action whose
// EpochOf is greater than a value read before a Rewind started is running
// as part of the replay.
func (q *Queue) Epoch() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.epoch
}

// Drain blocks until the consumer is idle, meaning every buffered entry has
// been consumed.
func (q *Queue) Drain(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.running {
		if err := q.waitLocked(ctx, 0); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the tape.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Stats{Capacity: len(q.tape), Running: q.running}
	for i := range q.tape {
		s := &q.tape[i]
		switch {
		case !s.used:
		case s.sentAt.IsZero():
			st.Pending++
		default:
			st.Retained++
		}
	}
	return st
}

// findLocked returns the slot holding the sent entry with the given id,
// searching from the newest entry backwards, or -1. With inFlight, the entry
// the consumer is running counts as sent: a peer can report it before the
// consumer stamps it.
func (q *Queue) findLocked(id uint32, inFlight bool) int {
	n := len(q.tape)
	for i := 0; i < n; i++ {
		k := (q.head - i + n) % n
		s := &q.tape[k]
		if !s.used || s.id != id {
			continue
		}
		if !s.sentAt.IsZero() || (inFlight && q.running && k == q.tail) {
			return k
		}
	}
	return -1
}

// rewindLocked moves tail to idx and marks every later entry up to head as
// unconsumed.
func (q *Queue) rewindLocked(idx int) {
	q.tail = idx
	q.epoch++
	for k := idx; k != q.head; {
		k = q.inc(k)
		s := &q.tape[k]
		if s.used && !s.sentAt.IsZero() {
			s.sentAt = time.Time{}
		}
	}
	q.logger.Info("rewound queue",
		log.Uint32("id", q.tape[idx].id),
		log.Uint32("head_id", q.tape[q.head].id),
	)
}

// applyPendingLocked applies the rewind requested by the action that just
// returned. The target slot must still hold the requested entry.
func (q *Queue) applyPendingLocked() {
	idx, id := q.pending, q.pendingID
	q.pending = -1
	if s := &q.tape[idx]; !s.used || s.id != id || s.sentAt.IsZero() {
		q.logger.Error("rewind dropped, entry no longer on the tape",
			log.Err(&EntryNotFoundError{ID: id}),
		)
		return
	}
	q.rewindLocked(idx)
}

func (q *Queue) hasNextLocked() bool {
	s := &q.tape[q.inc(q.tail)]
	return s.used && s.sentAt.IsZero()
}

// signalLocked wakes every goroutine blocked in waitLocked.
func (q *Queue) signalLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// waitLocked releases mu until the tape changes, d elapses (if positive) or
// ctx ends, then reacquires it.
func (q *Queue) waitLocked(ctx context.Context, d time.Duration) error {
	changed := q.changed
	q.mu.Unlock()
	defer q.mu.Lock()

	var timeout <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-changed:
		return nil
	case <-timeout:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	q.running = true
	q.cancel = cancel
	q.done = done
	go q.consume(ctx, cancel, done)
}

// stop cancels the consumer and waits until it has exited.
func (q *Queue) stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.cancel()
	done := q.done
	q.mu.Unlock()
	<-done
}

func (q *Queue) consume(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	for {
		q.mu.Lock()
		if ctx.Err() != nil || !q.hasNextLocked() {
			q.running = false
			q.signalLocked()
			q.mu.Unlock()
			return
		}
		q.tail = q.inc(q.tail)
		idx := q.tail
		s := q.tape[idx]
		actionCtx := context.WithValue(context.Background(), consumerKey{}, actionScope{queue: q, epoch: q.epoch})
		q.signalLocked()
		q.mu.Unlock()

		q.run(actionCtx, s)

		q.mu.Lock()
		q.tape[idx].sentAt = time.Now()
		if q.pending >= 0 {
			q.applyPendingLocked()
		}
		q.signalLocked()
		q.mu.Unlock()
	}
}

// run executes one action. Failures are logged; the entry still counts as
// sent.
func (q *Queue) run(ctx context.Context, s slot) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("queue action panicked",
				log.Uint32("id", s.id),
				log.Any("panic", r),
			)
		}
	}()
	if err := s.action(ctx); err != nil {
		q.logger.Error("queue action failed",
			log.Uint32("id", s.id),
			log.Err(err),
		)
	}
}
