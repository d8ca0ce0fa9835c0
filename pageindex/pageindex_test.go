package pageindex

import "testing"

func TestInsertOrUpdateKeepsSortOrder(t *testing.T) {
	idx := New(8)
	for _, p := range []uint32{5, 1, 9, 3} {
		if err := idx.InsertOrUpdate(p, nil, 4096, 1); err != nil {
			t.Fatalf("InsertOrUpdate(%d): %v", p, err)
		}
	}
	var last uint32
	for i, e := range idx.IterSorted() {
		if i > 0 && e.HDF5Page <= last {
			t.Fatalf("entries not strictly increasing at %d: %d <= %d", i, e.HDF5Page, last)
		}
		last = e.HDF5Page
	}
}

func TestInsertOrUpdateUpdatesExisting(t *testing.T) {
	idx := New(4)
	if err := idx.InsertOrUpdate(5, []byte("a"), 10, 1); err != nil {
		t.Fatal(err)
	}
	if err := idx.InsertOrUpdate(5, []byte("b"), 20, 2); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (update, not insert)", idx.Len())
	}
	e, ok := idx.Lookup(5)
	if !ok || e.Length != 20 || e.TickOfLastChange != 2 {
		t.Fatalf("Lookup(5) = %+v, ok=%v", e, ok)
	}
}

func TestCapacityOverflowIsFatal(t *testing.T) {
	idx := New(2)
	if err := idx.InsertOrUpdate(1, nil, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := idx.InsertOrUpdate(2, nil, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := idx.InsertOrUpdate(3, nil, 1, 1); err != ErrCapacityOverflow {
		t.Fatalf("InsertOrUpdate beyond capacity: got %v, want ErrCapacityOverflow", err)
	}
}

func TestLookupMissing(t *testing.T) {
	idx := New(4)
	if _, ok := idx.Lookup(42); ok {
		t.Fatalf("Lookup(42) on empty index returned ok=true")
	}
}

func TestDoubleBufferedSwap(t *testing.T) {
	d := NewDoubleBuffered(4)
	d.Current.InsertOrUpdate(1, nil, 4096, 1)
	prevCurrent := d.Current
	d.Swap()
	if d.Old != prevCurrent {
		t.Fatalf("Swap did not move the old Current into Old")
	}
	if d.Current.Len() != 0 {
		t.Fatalf("Swap did not expose an empty-or-stale slot as the new Current")
	}
}
