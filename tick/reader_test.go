package tick

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"vfdswmr/codec"
	"vfdswmr/hostcache"
	"vfdswmr/mdfile"
)

func TestReaderConvergesAfterWriterCommitsS3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md.bin")
	wh, err := mdfile.Create(path, 4096, 8)
	if err != nil {
		t.Fatalf("mdfile.Create: %v", err)
	}
	defer wh.Close()

	capacity := int((8*uint64(4096) - codec.HeaderSize) / codec.EntrySize)
	wPageBuffer := hostcache.NewInMemoryPageBuffer()
	wMetaCache := hostcache.NewInMemoryMetadataCache()
	writer := NewWriterController(wh, capacity, wPageBuffer, wMetaCache, SystemClock{}, nil, 1, 3)

	wPageBuffer.MarkDirty(5, bytes.Repeat([]byte{0xAB}, 4096))
	if err := writer.EndOfTick(time.Now()); err != nil {
		t.Fatalf("writer EndOfTick: %v", err)
	}

	rh, err := mdfile.Open(path)
	if err != nil {
		t.Fatalf("mdfile.Open: %v", err)
	}
	defer rh.Close()

	rPageBuffer := hostcache.NewInMemoryPageBuffer()
	rMetaCache := hostcache.NewInMemoryMetadataCache()
	reader := NewReaderController(rh, capacity, rPageBuffer, rMetaCache, SystemClock{}, nil, 1)

	if reader.CurrentIndex().Len() != 0 {
		t.Fatalf("reader Index should start empty")
	}

	if err := reader.EndOfTick(time.Now()); err != nil {
		t.Fatalf("reader EndOfTick: %v", err)
	}

	if reader.TickNum() != writer.TickNum() {
		t.Fatalf("reader tick %d did not converge to writer tick %d", reader.TickNum(), writer.TickNum())
	}
	cur := reader.CurrentIndex().IterSorted()
	if len(cur) != 1 || cur[0].HDF5Page != 5 {
		t.Fatalf("reader Index after convergence = %+v, want one entry for page 5", cur)
	}
}

func TestReaderProbeSkipsWhenTickUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "md.bin")
	wh, err := mdfile.Create(path, 4096, 8)
	if err != nil {
		t.Fatalf("mdfile.Create: %v", err)
	}
	defer wh.Close()

	rh, err := mdfile.Open(path)
	if err != nil {
		t.Fatalf("mdfile.Open: %v", err)
	}
	defer rh.Close()

	capacity := int((8*uint64(4096) - codec.HeaderSize) / codec.EntrySize)
	rPageBuffer := hostcache.NewInMemoryPageBuffer()
	rMetaCache := hostcache.NewInMemoryMetadataCache()
	reader := NewReaderController(rh, capacity, rPageBuffer, rMetaCache, SystemClock{}, nil, 1)

	// The file was just created at tick 1; the reader's own tickNum
	// starts at 0, so the first probe should observe a change.
	if err := reader.EndOfTick(time.Now()); err != nil {
		t.Fatalf("first EndOfTick: %v", err)
	}
	if reader.TickNum() != 1 {
		t.Fatalf("reader tick after first probe = %d, want 1", reader.TickNum())
	}

	before := reader.CurrentIndex()
	if err := reader.EndOfTick(time.Now()); err != nil {
		t.Fatalf("second EndOfTick: %v", err)
	}
	if reader.CurrentIndex() != before {
		t.Fatalf("reader swapped buffers on an unchanged-tick probe")
	}
}
