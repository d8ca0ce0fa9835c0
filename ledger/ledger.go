// Package ledger implements the delayed-write ledger: a FIFO of
// previous page images kept alive long enough that a lagging reader
// can never observe "a message from the future".
package ledger

import "container/list"

// Entry is one retained previous image of a reused metadata-file page.
type Entry struct {
	HDF5Page uint32
	MDPage   uint32
	Length   uint32
	TickNum  uint64
}

// Ledger is a doubly-linked FIFO, newest at the head, oldest at the
// tail. Entries are non-increasing in TickNum from head to tail.
type Ledger struct {
	l *list.List
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{l: list.New()}
}

// PushHead inserts a new delayed-write entry at the head. Callers must
// insert entries in non-decreasing tick order (always the current
// tick) to preserve the ledger's tail-is-oldest invariant.
func (lg *Ledger) PushHead(e Entry) {
	lg.l.PushFront(e)
}

// Len returns the number of retained entries.
func (lg *Ledger) Len() int {
	return lg.l.Len()
}

// FreeFunc releases a metadata-file region back to the free-space
// manager once its retaining ledger entry is pruned.
type FreeFunc func(mdPage uint32, length uint32)

// Prune removes every tail entry whose TickNum is old enough that it
// can no longer be referenced by any reader within maxLag ticks of
// currentTick, releasing each one's region via free. Pruning stops at
// the first entry that is still too young; the head-to-tail
// non-increasing invariant guarantees nothing younger remains beyond it.
func (lg *Ledger) Prune(currentTick uint64, maxLag uint32, free FreeFunc) {
	for {
		back := lg.l.Back()
		if back == nil {
			return
		}
		e := back.Value.(Entry)
		if !expired(e.TickNum, currentTick, maxLag) {
			return
		}
		lg.l.Remove(back)
		if free != nil {
			free(e.MDPage, e.Length)
		}
	}
}

// expired reports whether tick <= currentTick - maxLag, guarding
// against underflow when currentTick has not yet reached maxLag.
func expired(tick, currentTick uint64, maxLag uint32) bool {
	if currentTick < uint64(maxLag) {
		return false
	}
	return tick <= currentTick-uint64(maxLag)
}

// WalkOldestFirst returns all retained entries ordered tail-to-head
// (oldest first), for diagnostics and tests.
func (lg *Ledger) WalkOldestFirst() []Entry {
	out := make([]Entry, 0, lg.l.Len())
	for e := lg.l.Back(); e != nil; e = e.Prev() {
		out = append(out, e.Value.(Entry))
	}
	return out
}
