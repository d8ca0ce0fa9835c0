package tick

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"vfdswmr/codec"
	"vfdswmr/hostcache"
	"vfdswmr/logger"
	"vfdswmr/mdfile"
	"vfdswmr/pageindex"
	"vfdswmr/scheduler"
)

// ReaderController is the reader-side Tick Controller for one open
// file (§4.5).
type ReaderController struct {
	SessionID uuid.UUID

	handle     *mdfile.Handle
	db         *pageindex.DoubleBuffered
	pageBuffer hostcache.PageBuffer
	metaCache  hostcache.MetadataCache
	clock      Clock
	sched      *scheduler.Scheduler

	tickNum   uint64
	tickLen   uint32
	endOfTick time.Time
}

// NewReaderController constructs a reader Tick Controller over an
// already-opened read-only metadata file handle.
func NewReaderController(
	h *mdfile.Handle,
	indexCapacity int,
	pageBuffer hostcache.PageBuffer,
	metaCache hostcache.MetadataCache,
	clock Clock,
	sched *scheduler.Scheduler,
	tickLen uint32,
) *ReaderController {
	c := &ReaderController{
		SessionID:  uuid.New(),
		handle:     h,
		db:         pageindex.NewDoubleBuffered(indexCapacity),
		pageBuffer: pageBuffer,
		metaCache:  metaCache,
		clock:      clock,
		sched:      sched,
		tickLen:    tickLen,
	}
	c.endOfTick = clock.Now().Add(TickLenToDuration(tickLen))
	return c
}

// TickNum returns the last tick number this reader has observed.
func (c *ReaderController) TickNum() uint64 { return c.tickNum }

// NextDeadline implements scheduler.Controller.
func (c *ReaderController) NextDeadline() time.Time { return c.endOfTick }

// CurrentIndex exposes the reader's current Index snapshot, primarily for tests.
func (c *ReaderController) CurrentIndex() *pageindex.Index { return c.db.Current }

// EndOfTick runs one reader tick-controller cycle (§4.5, steps 1-4).
func (c *ReaderController) EndOfTick(now time.Time) error {
	// Step 1: probe Header.
	hdr, err := c.handle.ReadHeader()
	if err != nil {
		if errors.Is(err, codec.ErrTornRead) || errors.Is(err, codec.ErrBadMagic) {
			// Header not yet published or mid-write; try again next cycle.
			c.reschedule(now)
			return nil
		}
		return err
	}
	if hdr.TickNum == c.tickNum {
		c.reschedule(now)
		return nil
	}

	// Step 2: fetch new Index, validated via the Header-Index-Header protocol.
	c.db.Swap()
	observedHdr, entries, err := c.handle.ReadTick()
	if err != nil {
		c.reschedule(now)
		return ErrReadExhausted
	}

	c.db.Current.Reset()
	for _, e := range entries {
		if ierr := c.db.Current.InsertOrUpdate(e.HDF5Page, nil, e.Length, observedHdr.TickNum); ierr != nil {
			return ierr
		}
		if entry, ok := c.db.Current.Lookup(e.HDF5Page); ok {
			entry.MDPage = e.MDPage
			entry.Checksum = e.Checksum
		}
	}

	// Step 3: two-pass diff against old.
	logger.TraceIf("tick", "reader %s: diffing tick %d -> %d", c.SessionID, c.tickNum, observedHdr.TickNum)
	changedOrRemoved := diffChangedAndRemoved(c.db.Old.IterSorted(), c.db.Current.IterSorted())

	for _, page := range changedOrRemoved {
		c.pageBuffer.RemoveEntry(page)
	}
	for _, page := range changedOrRemoved {
		if err := c.metaCache.EvictOrRefreshAllEntriesInPage(page, observedHdr.TickNum); err != nil {
			return err
		}
	}

	// Step 4: advance and reschedule.
	c.tickNum = observedHdr.TickNum
	c.reschedule(now)
	return nil
}

func (c *ReaderController) reschedule(now time.Time) {
	c.endOfTick = now.Add(TickLenToDuration(c.tickLen))
	if c.sched != nil {
		c.sched.Reinsert(c)
	}
}

// diffChangedAndRemoved walks two sorted entry slices and returns the
// HDF5 page offsets that are either present in both with a different
// MDPage ("changed") or present only in old ("removed"). Pages present
// only in current ("added") require no invalidation (§4.5 step 3).
func diffChangedAndRemoved(old, current []pageindex.Entry) []uint32 {
	var out []uint32
	i, j := 0, 0
	for i < len(old) && j < len(current) {
		switch {
		case old[i].HDF5Page == current[j].HDF5Page:
			if old[i].MDPage != current[j].MDPage {
				out = append(out, old[i].HDF5Page)
			}
			i++
			j++
		case old[i].HDF5Page < current[j].HDF5Page:
			out = append(out, old[i].HDF5Page) // removed
			i++
		default:
			j++ // added, no invalidation needed
		}
	}
	for ; i < len(old); i++ {
		out = append(out, old[i].HDF5Page) // removed, tail of old
	}
	return out
}
