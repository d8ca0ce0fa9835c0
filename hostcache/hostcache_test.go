package hostcache

import "testing"

func TestPageBufferTickListRoundTrip(t *testing.T) {
	b := NewInMemoryPageBuffer()
	b.SetTick(1)
	b.MarkDirty(5, []byte("hello"))
	b.MarkDirty(2, []byte("world"))

	pages := b.TickListPages()
	if len(pages) != 2 {
		t.Fatalf("TickListPages() returned %d pages, want 2", len(pages))
	}
	if pages[0].Page != 2 || pages[1].Page != 5 {
		t.Fatalf("TickListPages() not sorted: %+v", pages)
	}

	stats := b.UpdateIndex([]uint32{2, 5})
	if stats.Modified != 2 {
		t.Fatalf("UpdateIndex stats = %+v, want Modified=2", stats)
	}

	b.ReleaseTickList()
	if len(b.TickListPages()) != 0 {
		t.Fatalf("ReleaseTickList did not clear the tick list")
	}
}

func TestPageBufferDelayedWrites(t *testing.T) {
	b := NewInMemoryPageBuffer()
	b.SetTick(1)
	b.HoldDelayed(9, 4)
	if b.DelayedWriteListLen() != 1 {
		t.Fatalf("DelayedWriteListLen() = %d, want 1", b.DelayedWriteListLen())
	}

	b.SetTick(3)
	b.ReleaseDelayedWrites()
	if b.DelayedWriteListLen() != 1 {
		t.Fatalf("delayed write released too early at tick 3 (until=4)")
	}

	b.SetTick(4)
	b.ReleaseDelayedWrites()
	if b.DelayedWriteListLen() != 0 {
		t.Fatalf("delayed write not released once current tick reached its bound")
	}
}

func TestPageBufferRemoveEntry(t *testing.T) {
	b := NewInMemoryPageBuffer()
	b.MarkDirty(7, []byte("x"))
	b.HoldDelayed(7, 99)
	b.RemoveEntry(7)
	if len(b.TickListPages()) != 0 || b.DelayedWriteListLen() != 0 {
		t.Fatalf("RemoveEntry did not clear all bookkeeping for the page")
	}
}

func TestMetadataCacheIterateAndEvict(t *testing.T) {
	c := NewInMemoryMetadataCache()
	c.AddEntry(1)
	c.AddEntry(1)
	c.AddEntry(2)

	var seen []uint32
	if err := c.Iterate(func(page uint32) error {
		seen = append(seen, page)
		return nil
	}); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("Iterate visited %d pages, want 2 distinct pages", len(seen))
	}

	if !c.CacheIsClean() {
		t.Fatalf("freshly populated cache should be clean")
	}

	if err := c.EvictOrRefreshAllEntriesInPage(1, 5); err != nil {
		t.Fatalf("EvictOrRefreshAllEntriesInPage: %v", err)
	}
	var after []uint32
	c.Iterate(func(page uint32) error { after = append(after, page); return nil })
	if len(after) != 1 || after[0] != 2 {
		t.Fatalf("entries for page 1 were not evicted: %v", after)
	}
}
