package mdfile

import (
	"path/filepath"
	"testing"

	"vfdswmr/codec"
)

func TestCreatePublishesInitialTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md.bin")
	h, err := Create(path, 4096, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	hdr, entries, err := h.ReadTick()
	if err != nil {
		t.Fatalf("ReadTick: %v", err)
	}
	if hdr.TickNum != 1 {
		t.Fatalf("initial TickNum = %d, want 1", hdr.TickNum)
	}
	if len(entries) != 0 {
		t.Fatalf("initial entries = %v, want empty", entries)
	}
}

func TestWriteThenReaderSeesNewTick(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md.bin")
	w, err := Create(path, 4096, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()

	entries := []codec.Entry{{HDF5Page: 5, MDPage: 1, Length: 4096, Checksum: 0xAA}}
	if err := w.WriteIndex(2, entries); err != nil {
		t.Fatalf("WriteIndex: %v", err)
	}
	if err := w.WriteHeader(codec.Header{
		FSPageSize:  4096,
		TickNum:     2,
		IndexOffset: codec.HeaderSize,
		IndexLength: codec.IndexSize(len(entries)),
	}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	hdr, got, err := r.ReadTick()
	if err != nil {
		t.Fatalf("reader ReadTick: %v", err)
	}
	if hdr.TickNum != 2 || len(got) != 1 || got[0] != entries[0] {
		t.Fatalf("reader observed header=%+v entries=%+v, want tick=2 entries=%+v", hdr, got, entries)
	}
}

func TestReadTickSurfacesTornReadAfterCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md.bin")
	w, err := Create(path, 4096, 8)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer w.Close()
	w.SetRetryBudget(2)

	// Corrupt a byte inside the published Index region.
	if _, err := w.f.WriteAt([]byte{0xFF}, int64(codec.HeaderSize)+5); err != nil {
		t.Fatalf("corrupt write: %v", err)
	}

	if _, _, err := w.ReadTick(); err != ErrTornReadExhausted {
		t.Fatalf("ReadTick on corrupted index = %v, want ErrTornReadExhausted", err)
	}
}

func TestAllocatorFirstFitThenBump(t *testing.T) {
	a := NewAllocator(4096, 8)
	p1, err := a.Alloc(4096)
	if err != nil || p1 != 1 {
		t.Fatalf("Alloc #1 = %d, %v; want 1, nil", p1, err)
	}
	p2, err := a.Alloc(4096)
	if err != nil || p2 != 2 {
		t.Fatalf("Alloc #2 = %d, %v; want 2, nil", p2, err)
	}
	a.Free(p1, 4096)
	p3, err := a.Alloc(4096)
	if err != nil || p3 != p1 {
		t.Fatalf("Alloc #3 = %d, %v; want first-fit reuse of freed page %d", p3, err, p1)
	}
}

func TestAllocatorCapacityExceeded(t *testing.T) {
	a := NewAllocator(4096, 2) // 1 usable page (page 0 reserved conceptually, total=2)
	if _, err := a.Alloc(4096); err != nil {
		t.Fatalf("Alloc within capacity: %v", err)
	}
	if _, err := a.Alloc(4096); err != ErrCapacityExceeded {
		t.Fatalf("Alloc beyond capacity = %v, want ErrCapacityExceeded", err)
	}
}
