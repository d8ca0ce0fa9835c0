// Package scheduler implements the process-wide end-of-tick queue
// (§4.6): a doubly-linked list of open files ordered by ascending
// end-of-tick deadline, fired from library entry/exit transitions.
package scheduler

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Controller is anything the Scheduler can fire at its deadline: the
// writer and reader Tick Controller variants in package tick both
// implement this.
type Controller interface {
	// EndOfTick runs one tick-controller cycle. Implementations are
	// expected to remove and re-insert themselves on the owning
	// Scheduler at their new deadline before returning.
	EndOfTick(now time.Time) error
	// NextDeadline reports the controller's current end-of-tick deadline.
	NextDeadline() time.Time
}

type entry struct {
	ctrl     Controller
	deadline time.Time
}

// Scheduler is a process-wide sorted queue of open-file entries. A
// single process is expected to use one Scheduler instance (see
// Global); per-test isolation is supported via New.
type Scheduler struct {
	mu      sync.Mutex
	l       *list.List
	byCtrl  map[Controller]*list.Element
}

// New constructs an empty scheduler.
func New() *Scheduler {
	return &Scheduler{l: list.New(), byCtrl: make(map[Controller]*list.Element)}
}

// Insert adds ctrl to the queue at its current NextDeadline,
// maintaining ascending deadline order. O(n) in the number of open
// files, which spec.md §4.6 notes is small.
func (s *Scheduler) Insert(ctrl Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(ctrl, ctrl.NextDeadline())
}

func (s *Scheduler) insertLocked(ctrl Controller, deadline time.Time) {
	e := &entry{ctrl: ctrl, deadline: deadline}
	for el := s.l.Front(); el != nil; el = el.Next() {
		if el.Value.(*entry).deadline.After(deadline) {
			s.byCtrl[ctrl] = s.l.InsertBefore(e, el)
			return
		}
	}
	s.byCtrl[ctrl] = s.l.PushBack(e)
}

// Remove unlinks ctrl from the queue, if present.
func (s *Scheduler) Remove(ctrl Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byCtrl[ctrl]; ok {
		s.l.Remove(el)
		delete(s.byCtrl, ctrl)
	}
}

// Reinsert removes ctrl (if present) and re-inserts it at its current
// NextDeadline. Tick Controllers call this as the last step of
// EndOfTick (§4.4 step 9, §4.5 step 4).
func (s *Scheduler) Reinsert(ctrl Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byCtrl[ctrl]; ok {
		s.l.Remove(el)
		delete(s.byCtrl, ctrl)
	}
	s.insertLocked(ctrl, ctrl.NextDeadline())
}

// Head returns the controller with the earliest deadline, if any.
func (s *Scheduler) Head() (Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	front := s.l.Front()
	if front == nil {
		return nil, false
	}
	return front.Value.(*entry).ctrl, true
}

// Len reports the number of open files currently tracked.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.l.Len()
}

// FireDue invokes EndOfTick on the queue head repeatedly while its
// deadline has passed relative to now, matching §4.6's firing policy:
// "while now() ≥ head.end_of_tick, invoke the head's Tick Controller."
// Each invocation is expected to reschedule itself via Reinsert, so
// the loop naturally terminates once the new head is not yet due.
func (s *Scheduler) FireDue(now time.Time) []error {
	var errs []error
	for {
		s.mu.Lock()
		front := s.l.Front()
		if front == nil {
			s.mu.Unlock()
			return errs
		}
		e := front.Value.(*entry)
		if e.deadline.After(now) {
			s.mu.Unlock()
			return errs
		}
		ctrl := e.ctrl
		s.mu.Unlock()

		if err := ctrl.EndOfTick(now); err != nil {
			errs = append(errs, err)
		}
	}
}

// global is the process-wide Scheduler singleton. It is created at
// package initialization and is never torn down; files join and leave
// it through Insert and Remove.
var global = New()

// Global returns the process-wide Scheduler instance.
func Global() *Scheduler { return global }

var entryCount int32

// OnEntry marks one more in-flight library call, firing all due
// controllers on the 0→1 transition.
func OnEntry() []error {
	if atomic.AddInt32(&entryCount, 1) == 1 {
		return global.FireDue(time.Now())
	}
	return nil
}

// OnExit marks one fewer in-flight library call, firing all due
// controllers on the 1→0 transition.
func OnExit() []error {
	if atomic.AddInt32(&entryCount, -1) == 0 {
		return global.FireDue(time.Now())
	}
	return nil
}
