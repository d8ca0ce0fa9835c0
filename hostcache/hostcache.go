// Package hostcache defines the collaborator interfaces the core
// engine consumes from its surrounding library (§6: host page buffer,
// host metadata cache) and provides in-memory reference
// implementations sufficient to drive a Tick Controller end-to-end in
// tests, without pulling in a real host library.
//
// These reference types are not a production page cache; raw-data
// flush policy and free-space reclamation inside the large file
// remain out of scope.
package hostcache

import (
	"sort"
	"sync"

	"vfdswmr/internal/bufpool"
)

// DirtyPage is one page image the host page buffer reports as
// modified since the last tick.
type DirtyPage struct {
	Page  uint32
	Image []byte
}

// TickListStats summarizes a call to UpdateIndex: how many pages were
// newly added to the index, how many updated an existing entry, and
// how many were not present in the buffer's own tick list bookkeeping
// (with or without having already been flushed).
type TickListStats struct {
	Added          int
	Modified       int
	NotInTL        int
	NotInTLFlushed int
}

// PageBuffer is the host page buffer collaborator (§6). One instance
// is bound to a single open file.
type PageBuffer interface {
	// SetTick records the tick number the buffer is now operating under.
	SetTick(tick uint64)
	// TickListPages returns the pages dirtied since the last
	// ReleaseTickList call, in no particular order.
	TickListPages() []DirtyPage
	// UpdateIndex is called after the Tick Controller has merged
	// TickListPages into the Index, reporting which of merged were
	// newly added vs. updates to an existing entry.
	UpdateIndex(merged []uint32) TickListStats
	// ReleaseTickList clears the current tick's dirty-page bookkeeping.
	ReleaseTickList()
	// ReleaseDelayedWrites drops delayed-write holds whose delay has
	// expired, allowing those pages to be dirtied again.
	ReleaseDelayedWrites()
	// DelayedWriteListLen reports the number of pages currently held
	// back from reuse by an outstanding delayed-write constraint.
	DelayedWriteListLen() int
	// RemoveEntry drops any bookkeeping the buffer holds for pageAddr,
	// called when the Index evicts the corresponding entry.
	RemoveEntry(pageAddr uint32)
}

// MetadataCache is the host metadata cache collaborator (§6): the
// layer of parsed, higher-level metadata objects whose validity
// depends on which raw pages are current.
type MetadataCache interface {
	// Flush pushes any cache-resident writes down to the page buffer.
	Flush() error
	// Iterate calls cb once per cached entry's backing page, stopping
	// on the first error.
	Iterate(cb func(page uint32) error) error
	// EvictOrRefreshAllEntriesInPage evicts or re-reads every cache
	// entry backed by page, tagging survivors with newTick.
	EvictOrRefreshAllEntriesInPage(page uint32, newTick uint64) error
	// CacheIsClean reports whether every cached entry matches what is
	// currently published in the metadata file.
	CacheIsClean() bool
}

// InMemoryPageBuffer is a reference PageBuffer backed by a
// mutex-guarded map, grounded on the teacher's query-result-cache
// shape (a single RWMutex-guarded map with an explicit eviction pass)
// rather than its more elaborate adaptive-replacement variant, since a
// test double has no need for frequency-weighted eviction.
type InMemoryPageBuffer struct {
	mu sync.RWMutex

	tick uint64

	dirty   map[uint32][]byte // pages dirtied this tick, not yet merged
	delayed map[uint32]uint64 // page -> tick at which it may be overwritten again
}

// NewInMemoryPageBuffer constructs an empty reference page buffer.
func NewInMemoryPageBuffer() *InMemoryPageBuffer {
	return &InMemoryPageBuffer{
		dirty:   make(map[uint32][]byte),
		delayed: make(map[uint32]uint64),
	}
}

// SetTick implements PageBuffer.
func (b *InMemoryPageBuffer) SetTick(tick uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tick = tick
}

// MarkDirty records that page was modified this tick with the given
// image, the way a host application writing through the buffer would.
// image is copied into a pooled buffer so callers may reuse their
// slice immediately.
func (b *InMemoryPageBuffer) MarkDirty(page uint32, image []byte) {
	buf := bufpool.Get(len(image))
	copy(buf, image)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirty[page] = buf
}

// TickListPages implements PageBuffer.
func (b *InMemoryPageBuffer) TickListPages() []DirtyPage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DirtyPage, 0, len(b.dirty))
	for page, img := range b.dirty {
		out = append(out, DirtyPage{Page: page, Image: img})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

// UpdateIndex implements PageBuffer. This reference implementation
// does not know which pages are new to the Index: every merged page
// still in the tick list is counted as Modified and any other as
// NotInTL. Added and NotInTLFlushed are always zero.
func (b *InMemoryPageBuffer) UpdateIndex(merged []uint32) TickListStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := TickListStats{}
	for _, p := range merged {
		if _, ok := b.dirty[p]; ok {
			stats.Modified++
		} else {
			stats.NotInTL++
		}
	}
	return stats
}

// ReleaseTickList implements PageBuffer.
func (b *InMemoryPageBuffer) ReleaseTickList() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, img := range b.dirty {
		bufpool.Put(img)
	}
	b.dirty = make(map[uint32][]byte)
}

// ReleaseDelayedWrites implements PageBuffer.
func (b *InMemoryPageBuffer) ReleaseDelayedWrites() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for page, until := range b.delayed {
		if b.tick >= until {
			delete(b.delayed, page)
		}
	}
}

// DelayedWriteListLen implements PageBuffer.
func (b *InMemoryPageBuffer) DelayedWriteListLen() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.delayed)
}

// RemoveEntry implements PageBuffer.
func (b *InMemoryPageBuffer) RemoveEntry(pageAddr uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.dirty, pageAddr)
	delete(b.delayed, pageAddr)
}

// HoldDelayed records that page may not be overwritten again until
// tick, called by the writer after consulting the Tick Controller's
// DelayWriteUntil.
func (b *InMemoryPageBuffer) HoldDelayed(page uint32, until uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if until > b.tick {
		b.delayed[page] = until
	}
}

// InMemoryMetadataCache is a reference MetadataCache, grounded on the
// same mutex-guarded-map shape as InMemoryPageBuffer: entries are
// identified by the page they are backed by, with a per-entry clean
// flag.
type InMemoryMetadataCache struct {
	mu sync.RWMutex

	entriesByPage map[uint32][]uint64 // page -> entry ids backed by that page
	clean         map[uint64]bool
	nextID        uint64
}

// NewInMemoryMetadataCache constructs an empty reference metadata cache.
func NewInMemoryMetadataCache() *InMemoryMetadataCache {
	return &InMemoryMetadataCache{
		entriesByPage: make(map[uint32][]uint64),
		clean:         make(map[uint64]bool),
	}
}

// AddEntry registers a new cache entry backed by page, for tests to
// populate the cache before driving a tick.
func (c *InMemoryMetadataCache) AddEntry(page uint32) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.entriesByPage[page] = append(c.entriesByPage[page], id)
	c.clean[id] = true
	return id
}

// Flush implements MetadataCache: marks every entry clean, as if its
// content had been pushed down to the page buffer.
func (c *InMemoryMetadataCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.clean {
		c.clean[id] = true
	}
	return nil
}

// Iterate implements MetadataCache.
func (c *InMemoryMetadataCache) Iterate(cb func(page uint32) error) error {
	c.mu.RLock()
	pages := make([]uint32, 0, len(c.entriesByPage))
	for page := range c.entriesByPage {
		pages = append(pages, page)
	}
	c.mu.RUnlock()

	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	for _, page := range pages {
		if err := cb(page); err != nil {
			return err
		}
	}
	return nil
}

// EvictOrRefreshAllEntriesInPage implements MetadataCache: every
// entry backed by page is dropped (eviction), the simplest of the two
// policies §4.5 allows; a host that instead refreshes would re-read
// and keep the entry, which is equally correct for the two-pass
// invalidation ordering.
func (c *InMemoryMetadataCache) EvictOrRefreshAllEntriesInPage(page uint32, newTick uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.entriesByPage[page] {
		delete(c.clean, id)
	}
	delete(c.entriesByPage, page)
	return nil
}

// CacheIsClean implements MetadataCache.
func (c *InMemoryMetadataCache) CacheIsClean() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, clean := range c.clean {
		if !clean {
			return false
		}
	}
	return true
}
