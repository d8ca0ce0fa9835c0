// Package tick implements the per-file Tick Controller state
// machines: the writer variant (§4.4) that advances the tick counter,
// synchronizes with the host page cache, and rewrites the metadata
// file, and the reader variant (§4.5) that diffs old against new
// index state and invalidates stale host-cache pages.
package tick

import (
	"time"

	"github.com/google/uuid"

	"vfdswmr/codec"
	"vfdswmr/hostcache"
	"vfdswmr/ledger"
	"vfdswmr/logger"
	"vfdswmr/mdfile"
	"vfdswmr/pageindex"
	"vfdswmr/scheduler"
)

// WriterController is the writer-side Tick Controller for one open
// file (§4.4).
type WriterController struct {
	SessionID uuid.UUID

	handle     *mdfile.Handle
	idx        *pageindex.Index
	ledger     *ledger.Ledger
	pageBuffer hostcache.PageBuffer
	metaCache  hostcache.MetadataCache
	clock      Clock
	sched      *scheduler.Scheduler

	tickNum   uint64
	tickLen   uint32
	maxLag    uint32
	endOfTick time.Time

	// FlushRawData is the open-question (a) hook: raw-data flush policy
	// is an external concern and may be left nil, treated as a no-op.
	FlushRawData func() error

	closed bool
}

// NewWriterController constructs a writer Tick Controller over an
// already-created metadata file handle. indexCapacity is the Index's
// fixed entry capacity (§3), computed by the caller from
// md_pages_reserved and fs_page_size.
func NewWriterController(
	h *mdfile.Handle,
	indexCapacity int,
	pageBuffer hostcache.PageBuffer,
	metaCache hostcache.MetadataCache,
	clock Clock,
	sched *scheduler.Scheduler,
	tickLen, maxLag uint32,
) *WriterController {
	c := &WriterController{
		SessionID:  uuid.New(),
		handle:     h,
		idx:        pageindex.New(indexCapacity),
		ledger:     ledger.New(),
		pageBuffer: pageBuffer,
		metaCache:  metaCache,
		clock:      clock,
		sched:      sched,
		tickNum:    1,
		tickLen:    tickLen,
		maxLag:     maxLag,
	}
	c.endOfTick = clock.Now().Add(TickLenToDuration(tickLen))
	return c
}

// TickNum returns the controller's current tick number.
func (c *WriterController) TickNum() uint64 { return c.tickNum }

// NextDeadline implements scheduler.Controller.
func (c *WriterController) NextDeadline() time.Time { return c.endOfTick }

// Index exposes the writer's live Index, primarily for tests.
func (c *WriterController) Index() *pageindex.Index { return c.idx }

// DelayWriteUntil answers the page buffer's question of when page may
// next be overwritten (§4.4 "Delayed-write decision"). A non-zero
// result lies in [current_tick, current_tick+max_lag]; 0 means "write
// allowed immediately". A stored bound beyond that range is reported
// as ErrDelayedWriteRangeViolation.
func (c *WriterController) DelayWriteUntil(page uint32) (uint64, error) {
	e, found := c.idx.Lookup(page)
	if !found {
		return c.tickNum + uint64(c.maxLag), nil
	}
	if e.DelayedFlush >= c.tickNum {
		if e.DelayedFlush > c.tickNum+uint64(c.maxLag) {
			return 0, ErrDelayedWriteRangeViolation
		}
		return e.DelayedFlush, nil
	}
	return 0, nil
}

// EndOfTick runs one writer tick-controller cycle (§4.4, steps 1-9).
// Any step failing aborts the tick; nothing has been committed to the
// metadata file until step 6 succeeds, so an early abort leaves the
// file in its pre-tick state.
func (c *WriterController) EndOfTick(now time.Time) error {
	logger.TraceIf("tick", "writer %s: begin end-of-tick, committing tick %d", c.SessionID, c.tickNum+1)

	// Step 1: flush client state into the host page cache.
	if c.FlushRawData != nil {
		if err := c.FlushRawData(); err != nil {
			return err
		}
	}

	// Step 2: flush host metadata cache into the page buffer, unless
	// the cache has already been torn down during close.
	if !c.closed {
		if err := c.metaCache.Flush(); err != nil {
			return err
		}
	}

	// Step 3: advance tick_num. The file already carries the bootstrap
	// or previously-committed tick, so the Index merge, the ledger
	// push, and the Header/Index publish in step 6 all need to use the
	// tick number that is becoming current, not the one already on disk.
	c.tickNum++

	// Step 4: merge the tick list into the Index.
	c.pageBuffer.SetTick(c.tickNum)
	dirty := c.pageBuffer.TickListPages()
	merged := make([]uint32, 0, len(dirty))
	for _, p := range dirty {
		_, existed := c.idx.Lookup(p.Page)
		if err := c.idx.InsertOrUpdate(p.Page, p.Image, uint32(len(p.Image)), c.tickNum); err != nil {
			return err
		}
		if !existed {
			// A page absent from the Index until now must survive at
			// least max_lag ticks once published, so a reader that saw
			// its absence cannot later observe it having been reused.
			if e, ok := c.idx.Lookup(p.Page); ok {
				e.DelayedFlush = c.tickNum + uint64(c.maxLag)
			}
		}
		merged = append(merged, p.Page)
	}
	stats := c.pageBuffer.UpdateIndex(merged)
	logger.TraceIf("tick", "writer %s: merged %d pages (added=%d modified=%d not_in_tl=%d not_in_tl_flushed=%d)",
		c.SessionID, len(merged), stats.Added, stats.Modified, stats.NotInTL, stats.NotInTLFlushed)

	// Step 5: commit modified entries to the metadata file.
	entries := c.idx.IterSorted()
	for i := range entries {
		e := &entries[i]
		if e.EntryPtr == nil {
			continue
		}
		if e.MDPage != 0 {
			c.ledger.PushHead(ledger.Entry{
				HDF5Page: e.HDF5Page,
				MDPage:   e.MDPage,
				Length:   e.Length,
				TickNum:  c.tickNum,
			})
		}
		addr, err := c.handle.Allocator().Alloc(uint32(len(e.EntryPtr)))
		if err != nil {
			return err
		}
		sum := codec.ChecksumBytes(e.EntryPtr)
		if err := c.handle.WritePage(addr, e.EntryPtr); err != nil {
			return err
		}
		e.MDPage = addr
		e.Checksum = sum
		e.Length = uint32(len(e.EntryPtr))
		e.EntryPtr = nil
		e.Clean = true
		e.TickOfLastFlush = c.tickNum
	}
	c.idx.SortByHDF5PageOffset()

	// Step 6: encode-and-write Index, then Header, in that order.
	wire := toWireEntries(c.idx.IterSorted())
	if err := c.handle.WriteIndex(c.tickNum, wire); err != nil {
		return err
	}
	hdr := codec.Header{
		FSPageSize:  c.handle.PageSize(),
		TickNum:     c.tickNum,
		IndexOffset: codec.HeaderSize,
		IndexLength: codec.IndexSize(len(wire)),
	}
	// Open question (c): re-verify our own just-encoded Header before commit.
	if _, err := codec.DecodeHeader(codec.EncodeHeader(hdr)); err != nil {
		return err
	}
	if err := c.handle.WriteHeader(hdr); err != nil {
		return err
	}

	// Step 7: release the page buffer's tick list and any expired
	// delayed-write holds.
	c.pageBuffer.ReleaseTickList()
	c.pageBuffer.ReleaseDelayedWrites()

	// Step 8: prune the ledger.
	c.ledger.Prune(c.tickNum, c.maxLag, func(mdPage, length uint32) {
		c.handle.Allocator().Free(mdPage, length)
	})

	// Step 9: recompute end_of_tick and re-enqueue. tick_num was already
	// advanced in step 3, ahead of the publish it names.
	c.endOfTick = now.Add(TickLenToDuration(c.tickLen))
	if c.sched != nil {
		c.sched.Reinsert(c)
	}
	logger.TraceIf("tick", "writer %s: committed tick %d, next deadline %s", c.SessionID, c.tickNum, c.endOfTick)
	return nil
}

// FlushOrClosePrep drains the page buffer's delayed-write list ahead
// of close (§4.4 "Flush-or-close prep"): it forces one end-of-tick to
// clear the current tick list, then repeatedly sleeps tick_len and
// runs end-of-tick until nothing is held back.
func (c *WriterController) FlushOrClosePrep() error {
	c.closed = true
	if err := c.EndOfTick(c.clock.Now()); err != nil {
		return err
	}
	for c.pageBuffer.DelayedWriteListLen() > 0 {
		c.clock.Sleep(TickLenToDuration(c.tickLen))
		if err := c.EndOfTick(c.clock.Now()); err != nil {
			return err
		}
	}
	return nil
}

func toWireEntries(entries []pageindex.Entry) []codec.Entry {
	out := make([]codec.Entry, len(entries))
	for i, e := range entries {
		out[i] = codec.Entry{
			HDF5Page: e.HDF5Page,
			MDPage:   e.MDPage,
			Length:   e.Length,
			Checksum: e.Checksum,
		}
	}
	return out
}
