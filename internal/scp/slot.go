//////////////////////////////////////////////////////////////////////////////
//
// actionSlot and eventSlot are single-item mailboxes guarded by a
// (mutex, condvar) pair: publish overwrites any unread value, and a
// waiter blocks on "slot is non-empty" with a timeout. This is the
// "last write wins; reads coalesce" pattern spec.md §5 and §9 call for,
// in the idiom of the teacher's internal/media/flow.go mutex-guarded
// state (no extra channel/framework machinery).
//
//////////////////////////////////////////////////////////////////////////////

package scp

import (
	"sync"
	"time"
)

type actionSlot struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value *Action
}

func newActionSlot() *actionSlot {
	s := &actionSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// publish overwrites any unread action. Earlier, unread actions are lost
// by design (spec.md §5 Ordering).
func (s *actionSlot) publish(a Action) {
	s.mu.Lock()
	s.value = &a
	s.mu.Unlock()
	s.cond.Broadcast()
}

// take clears and returns the pending action, if any, without blocking.
func (s *actionSlot) take() (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return Action{}, false
	}
	a := *s.value
	s.value = nil
	return a, true
}

// waitOrTimeout blocks on cond.Wait (the caller must hold the matching
// mutex), but also wakes when d elapses. sync.Cond has no built-in timed
// wait, so a one-shot timer broadcasts on our behalf; the broadcast is
// harmless if a real publish already woke us first.
func waitOrTimeout(cond *sync.Cond, mu *sync.Mutex, d time.Duration) {
	timer := time.AfterFunc(d, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}

type eventSlot struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value *Event
	// closed marks that the slot's owner has shut down; waiters should
	// stop blocking even if no event is ever published again.
	closed bool
}

func newEventSlot() *eventSlot {
	s := &eventSlot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *eventSlot) publish(e Event) {
	s.mu.Lock()
	s.value = &e
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *eventSlot) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// waitTimeout blocks until an event is published, the slot is closed, or
// timeout elapses. It consumes the event it returns.
func (s *eventSlot) waitTimeout(timeout time.Duration) (Event, bool) {
	deadline := time.Now().Add(timeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.value == nil && !s.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Event{}, false
		}
		waitOrTimeout(s.cond, &s.mu, remaining)
	}

	if s.value == nil {
		return Event{}, false
	}
	e := *s.value
	s.value = nil
	return e, true
}

// isClosed reports whether close has been called.
func (s *eventSlot) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// peek returns the pending event, if any, without consuming it or
// blocking. Used by the non-blocking PendingPeer() peek.
func (s *eventSlot) peek() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return Event{}, false
	}
	return *s.value, true
}
