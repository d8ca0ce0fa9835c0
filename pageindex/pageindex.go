// Package pageindex maintains the sorted, fixed-capacity array of
// per-page descriptors that the writer publishes and the reader
// diffs against. Capacity is fixed at construction and overflow is a
// fatal error, never a silent reallocation.
package pageindex

import (
	"errors"
	"sort"
)

// ErrCapacityOverflow is returned by InsertOrUpdate when inserting a
// new page would exceed the index's fixed capacity.
var ErrCapacityOverflow = errors.New("pageindex: capacity overflow")

// Entry is one in-memory page descriptor. EntryPtr holds the live
// image while it is owned by the writer's page cache; it is cleared
// once the image has been published to the metadata file.
type Entry struct {
	HDF5Page         uint32
	MDPage           uint32
	Length           uint32
	Checksum         uint32
	EntryPtr         []byte
	TickOfLastChange uint64
	TickOfLastFlush  uint64
	Clean            bool
	MovedToHDF5File  bool
	DelayedFlush     uint64
}

// Index is the writer-side sorted array of Entry, ordered by
// ascending HDF5Page with no duplicates.
type Index struct {
	entries  []Entry
	capacity int
}

// New constructs an empty Index with the given fixed capacity.
func New(capacity int) *Index {
	return &Index{entries: make([]Entry, 0, capacity), capacity: capacity}
}

// Capacity returns the fixed maximum entry count.
func (idx *Index) Capacity() int { return idx.capacity }

// Len returns the current entry count.
func (idx *Index) Len() int { return len(idx.entries) }

func (idx *Index) search(page uint32) (int, bool) {
	n := len(idx.entries)
	i := sort.Search(n, func(i int) bool { return idx.entries[i].HDF5Page >= page })
	if i < n && idx.entries[i].HDF5Page == page {
		return i, true
	}
	return i, false
}

// Lookup returns a pointer into the index's backing array for page,
// or (nil, false) if absent. The returned pointer is valid until the
// next call to InsertOrUpdate.
func (idx *Index) Lookup(page uint32) (*Entry, bool) {
	i, found := idx.search(page)
	if !found {
		return nil, false
	}
	return &idx.entries[i], true
}

// InsertOrUpdate attaches a new image to page, inserting a new entry
// in sorted position if page is not already present. Returns
// ErrCapacityOverflow if page is new and the index is already full.
func (idx *Index) InsertOrUpdate(page uint32, imagePtr []byte, length uint32, tick uint64) error {
	i, found := idx.search(page)
	if found {
		e := &idx.entries[i]
		e.EntryPtr = imagePtr
		e.Length = length
		e.TickOfLastChange = tick
		e.Clean = false
		return nil
	}
	if len(idx.entries) >= idx.capacity {
		return ErrCapacityOverflow
	}
	idx.entries = append(idx.entries, Entry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = Entry{
		HDF5Page:         page,
		EntryPtr:         imagePtr,
		Length:           length,
		TickOfLastChange: tick,
	}
	return nil
}

// Remove deletes the entry for page, if present.
func (idx *Index) Remove(page uint32) {
	i, found := idx.search(page)
	if !found {
		return
	}
	idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
}

// SortByHDF5PageOffset re-establishes sort order. InsertOrUpdate keeps
// the array sorted incrementally; this is a defensive pass run after
// the writer's commit loop mutates entries in place (§4.4 step 5).
func (idx *Index) SortByHDF5PageOffset() {
	sort.Slice(idx.entries, func(i, j int) bool {
		return idx.entries[i].HDF5Page < idx.entries[j].HDF5Page
	})
}

// IterSorted returns the entries in ascending HDF5Page order. The
// returned slice aliases the index's backing array and must not be
// retained across a subsequent mutating call.
func (idx *Index) IterSorted() []Entry {
	return idx.entries
}

// Clone returns a deep copy of the index, used when a reader snapshot
// must be taken without aliasing the live buffer.
func (idx *Index) Clone() *Index {
	out := New(idx.capacity)
	out.entries = append(out.entries[:0], idx.entries...)
	return out
}

// Reset empties the index in place while keeping its capacity.
func (idx *Index) Reset() {
	idx.entries = idx.entries[:0]
}

// DoubleBuffered holds the reader-side current/old index pair,
// swapped each tick so the diff pass (§4.5) runs against the prior
// snapshot without copying.
type DoubleBuffered struct {
	Current *Index
	Old     *Index
}

// NewDoubleBuffered constructs an empty double-buffered pair, both
// sides sharing the same fixed capacity.
func NewDoubleBuffered(capacity int) *DoubleBuffered {
	return &DoubleBuffered{Current: New(capacity), Old: New(capacity)}
}

// Swap exchanges Current and Old, making the previous Current the new
// Old (to be diffed against) and leaving Old's former contents as the
// slot the next Index will be decoded into.
func (d *DoubleBuffered) Swap() {
	d.Current, d.Old = d.Old, d.Current
}
