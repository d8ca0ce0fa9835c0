package scheduler

import (
	"testing"
	"time"
)

type fakeController struct {
	name     string
	deadline time.Time
	sched    *Scheduler
	fired    *[]string
	advance  time.Duration
}

func (f *fakeController) EndOfTick(now time.Time) error {
	*f.fired = append(*f.fired, f.name)
	f.deadline = now.Add(f.advance)
	f.sched.Reinsert(f)
	return nil
}

func (f *fakeController) NextDeadline() time.Time { return f.deadline }

func TestInsertOrdersByDeadline(t *testing.T) {
	s := New()
	var fired []string
	base := time.Unix(1000, 0)
	a := &fakeController{name: "a", deadline: base.Add(3 * time.Second), sched: s, fired: &fired, advance: time.Hour}
	b := &fakeController{name: "b", deadline: base.Add(1 * time.Second), sched: s, fired: &fired, advance: time.Hour}
	c := &fakeController{name: "c", deadline: base.Add(2 * time.Second), sched: s, fired: &fired, advance: time.Hour}
	s.Insert(a)
	s.Insert(b)
	s.Insert(c)

	head, ok := s.Head()
	if !ok || head.(*fakeController).name != "b" {
		t.Fatalf("Head() = %v, want b (earliest deadline)", head)
	}
}

func TestFireDueInvokesOnlyExpiredHeads(t *testing.T) {
	s := New()
	var fired []string
	base := time.Unix(2000, 0)
	a := &fakeController{name: "a", deadline: base.Add(-time.Second), sched: s, fired: &fired, advance: time.Hour}
	b := &fakeController{name: "b", deadline: base.Add(time.Hour), sched: s, fired: &fired, advance: time.Hour}
	s.Insert(a)
	s.Insert(b)

	errs := s.FireDue(base)
	if len(errs) != 0 {
		t.Fatalf("FireDue errs = %v, want none", errs)
	}
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("fired = %v, want only [a]", fired)
	}
}

func TestFireDueCatchesUpMultipleDueControllers(t *testing.T) {
	s := New()
	var fired []string
	base := time.Unix(3000, 0)
	// a and b are both already due at base; each one reschedules itself
	// past base once fired, so FireDue must fire the head and then the
	// new head before it finds nothing due.
	a := &fakeController{name: "a", deadline: base.Add(-10 * time.Second), sched: s, fired: &fired, advance: 3 * time.Second}
	b := &fakeController{name: "b", deadline: base.Add(-5 * time.Second), sched: s, fired: &fired, advance: 3 * time.Second}
	s.Insert(a)
	s.Insert(b)

	errs := s.FireDue(base)
	if len(errs) != 0 {
		t.Fatalf("FireDue errs = %v, want none", errs)
	}
	if len(fired) < 2 {
		t.Fatalf("expected FireDue to catch up multiple due cycles, fired=%v", fired)
	}
}

func TestRemoveUnlinksController(t *testing.T) {
	s := New()
	var fired []string
	a := &fakeController{name: "a", deadline: time.Unix(1, 0), sched: s, fired: &fired}
	s.Insert(a)
	s.Remove(a)
	if _, ok := s.Head(); ok {
		t.Fatalf("Head() after Remove should be empty")
	}
}

func TestGlobalEntryExitTransitions(t *testing.T) {
	prev := global
	defer func() { global = prev }()
	global = New()

	var fired []string
	a := &fakeController{name: "a", deadline: time.Now().Add(-time.Second), sched: global, fired: &fired, advance: time.Hour}
	global.Insert(a)

	entryCount = 0
	OnEntry()
	if len(fired) != 1 {
		t.Fatalf("OnEntry on 0->1 transition did not fire due controllers: %v", fired)
	}
}
