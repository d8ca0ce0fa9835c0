package ledger

import "testing"

func TestPushHeadMaintainsMonotonicity(t *testing.T) {
	lg := New()
	lg.PushHead(Entry{HDF5Page: 1, MDPage: 1, Length: 4096, TickNum: 1})
	lg.PushHead(Entry{HDF5Page: 2, MDPage: 2, Length: 4096, TickNum: 2})
	lg.PushHead(Entry{HDF5Page: 3, MDPage: 3, Length: 4096, TickNum: 3})

	entries := lg.WalkOldestFirst()
	for i := 1; i < len(entries); i++ {
		if entries[i].TickNum < entries[i-1].TickNum {
			t.Fatalf("ledger not non-decreasing oldest-to-newest at %d: %+v", i, entries)
		}
	}
}

func TestPruneRemovesOnlyExpiredTail(t *testing.T) {
	lg := New()
	lg.PushHead(Entry{MDPage: 1, Length: 10, TickNum: 1})
	lg.PushHead(Entry{MDPage: 2, Length: 10, TickNum: 2})
	lg.PushHead(Entry{MDPage: 3, Length: 10, TickNum: 5})

	var freed []uint32
	lg.Prune(6, 3, func(mdPage uint32, length uint32) {
		freed = append(freed, mdPage)
	})

	if len(freed) != 2 {
		t.Fatalf("freed = %v, want 2 entries pruned (tick 1 and 2, threshold 6-3=3)", freed)
	}
	if lg.Len() != 1 {
		t.Fatalf("Len() after prune = %d, want 1", lg.Len())
	}
	for _, e := range lg.WalkOldestFirst() {
		if e.TickNum <= 3 {
			t.Fatalf("entry %+v should have been pruned", e)
		}
	}
}

func TestPruneNoUnderflowBeforeMaxLagReached(t *testing.T) {
	lg := New()
	lg.PushHead(Entry{MDPage: 1, Length: 10, TickNum: 1})
	var freed int
	lg.Prune(2, 3, func(uint32, uint32) { freed++ })
	if freed != 0 {
		t.Fatalf("Prune before currentTick >= maxLag freed %d entries, want 0", freed)
	}
}

func TestPruneStopsAtFirstYoungEntry(t *testing.T) {
	lg := New()
	lg.PushHead(Entry{MDPage: 1, Length: 10, TickNum: 1})
	lg.PushHead(Entry{MDPage: 2, Length: 10, TickNum: 10})
	var freed []uint32
	lg.Prune(4, 3, func(mdPage uint32, length uint32) { freed = append(freed, mdPage) })
	if len(freed) != 1 || freed[0] != 1 {
		t.Fatalf("freed = %v, want only [1]", freed)
	}
}
