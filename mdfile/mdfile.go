// Package mdfile implements the scoped handle over the on-disk
// metadata file: exclusive-open enforcement for the writer, in-place
// Header/Index overwrite at end-of-tick, and the Header-Index-Header
// torn-read protocol on the reader side.
package mdfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"

	"vfdswmr/codec"
	"vfdswmr/logger"
)

// ErrShortWrite is fatal to the file handle per spec.md §7: a partial
// Header or Index write leaves the metadata file's committed tick
// unambiguous (the old tick_num stands) but the handle is unusable.
var ErrShortWrite = errors.New("mdfile: short write")

// ErrTornReadExhausted is returned once the bounded Header-Index-Header
// retry budget is spent without a consistent read.
var ErrTornReadExhausted = errors.New("mdfile: torn read retry budget exhausted")

// DefaultTornReadRetries bounds the reader's Header-Index-Header retry loop.
const DefaultTornReadRetries = 8

// Handle is a scoped handle over one metadata file, either the single
// writer or one of the independent readers.
type Handle struct {
	path     string
	f        *os.File
	writer   bool
	pageSize uint32
	alloc    *Allocator
	retries  int
}

// Create truncates path to pagesReserved*pageSize bytes, takes an
// exclusive flock ("writer process owns the metadata file
// exclusively", spec.md §5), and publishes an initial empty Index and
// Header at tick 1.
func Create(path string, pageSize uint32, pagesReserved uint32) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(int64(pageSize) * int64(pagesReserved)); err != nil {
		f.Close()
		return nil, err
	}

	h := &Handle{
		path:     path,
		f:        f,
		writer:   true,
		pageSize: pageSize,
		alloc:    NewAllocator(pageSize, pagesReserved),
		retries:  DefaultTornReadRetries,
	}

	idxBuf := codec.EncodeIndex(1, nil)
	hdr := codec.Header{
		FSPageSize:  pageSize,
		TickNum:     1,
		IndexOffset: codec.HeaderSize,
		IndexLength: uint64(len(idxBuf)),
	}
	if err := h.WriteIndex(1, nil); err != nil {
		f.Close()
		return nil, err
	}
	if err := h.WriteHeader(hdr); err != nil {
		f.Close()
		return nil, err
	}
	return h, nil
}

// Open opens an existing metadata file read-only. Readers take no
// flock of their own: the writer's exclusive lock exists only to rule
// out a second writer, never to block readers, and readers never
// mutate the file.
func Open(path string) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	return &Handle{path: path, f: f, writer: false, retries: DefaultTornReadRetries}, nil
}

// SetRetryBudget overrides the reader's torn-read retry budget.
func (h *Handle) SetRetryBudget(n int) { h.retries = n }

// Allocator returns the writer's free-space allocator over the
// metadata file's page grid. Readers have none.
func (h *Handle) Allocator() *Allocator { return h.alloc }

// PageSize returns the file's fixed page size.
func (h *Handle) PageSize() uint32 { return h.pageSize }

// WriteIndex overwrites the Index region in place at codec.HeaderSize.
func (h *Handle) WriteIndex(tick uint64, entries []codec.Entry) error {
	buf := codec.EncodeIndex(tick, entries)
	n, err := h.f.WriteAt(buf, int64(codec.HeaderSize))
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortWrite
	}
	return unix.Fdatasync(int(h.f.Fd()))
}

// WriteHeader overwrites the Header region in place at offset 0. The
// writer must call WriteIndex before WriteHeader (§4.1): the Header's
// tick_num is what commits the tick.
func (h *Handle) WriteHeader(hdr codec.Header) error {
	buf := codec.EncodeHeader(hdr)
	n, err := h.f.WriteAt(buf, 0)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return ErrShortWrite
	}
	return unix.Fdatasync(int(h.f.Fd()))
}

// ReadHeader reads and decodes the Header once, without retry.
func (h *Handle) ReadHeader() (codec.Header, error) {
	buf := make([]byte, codec.HeaderSize)
	if _, err := h.f.ReadAt(buf, 0); err != nil {
		return codec.Header{}, err
	}
	return codec.DecodeHeader(buf)
}

func (h *Handle) readIndexFor(hdr codec.Header) ([]codec.Entry, error) {
	buf := make([]byte, hdr.IndexLength)
	if _, err := h.f.ReadAt(buf, int64(hdr.IndexOffset)); err != nil {
		return nil, err
	}
	return codec.DecodeIndex(buf, hdr.TickNum)
}

// ReadTick implements the Header-Index-Header torn-read protocol
// (§4.1): read Header, read Index at the offset/length it names, then
// re-read Header and require the tick number to still match. Any
// checksum or tick mismatch along the way is treated as a torn read
// and the whole sequence is retried, bounded by the handle's retry
// budget.
func (h *Handle) ReadTick() (codec.Header, []codec.Entry, error) {
	var lastErr error
	for attempt := 0; attempt < h.retries; attempt++ {
		first, err := h.ReadHeader()
		if err != nil {
			if errors.Is(err, codec.ErrTornRead) {
				lastErr = err
				continue
			}
			return codec.Header{}, nil, err
		}
		entries, err := h.readIndexFor(first)
		if err != nil {
			if errors.Is(err, codec.ErrTornRead) {
				lastErr = err
				continue
			}
			return codec.Header{}, nil, err
		}
		second, err := h.ReadHeader()
		if err != nil {
			if errors.Is(err, codec.ErrTornRead) {
				lastErr = err
				continue
			}
			return codec.Header{}, nil, err
		}
		if second.TickNum != first.TickNum {
			lastErr = codec.ErrTornRead
			continue
		}
		return second, entries, nil
	}
	if lastErr != nil {
		logger.Warn("mdfile: torn read retry budget exhausted for %s: %v", h.path, lastErr)
	}
	return codec.Header{}, nil, ErrTornReadExhausted
}

// WritePage writes a page image at md-file page address addr.
func (h *Handle) WritePage(addr uint32, data []byte) error {
	n, err := h.f.WriteAt(data, int64(addr)*int64(h.pageSize))
	if err != nil {
		return err
	}
	if n != len(data) {
		return ErrShortWrite
	}
	return nil
}

// ReadPage reads a page image of length bytes from md-file page address addr.
func (h *Handle) ReadPage(addr uint32, length uint32) ([]byte, error) {
	buf := make([]byte, length)
	if _, err := h.f.ReadAt(buf, int64(addr)*int64(h.pageSize)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close releases the handle. A writer unlinks the metadata file as
// part of close; failure to do so is best-effort (logged, not fatal,
// per spec.md §7).
func (h *Handle) Close() error {
	if err := h.f.Close(); err != nil {
		return err
	}
	if h.writer {
		if err := os.Remove(h.path); err != nil {
			logger.Warn("mdfile: failed to unlink %s at close: %v", h.path, err)
		}
	}
	return nil
}
