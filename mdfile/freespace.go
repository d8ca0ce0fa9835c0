package mdfile

import "errors"

// ErrCapacityExceeded is returned when the metadata file has no
// remaining pages to satisfy an allocation request. Free-space
// reclamation beyond this bump/free-list scheme is out of scope; see
// spec.md §1 Non-goals.
var ErrCapacityExceeded = errors.New("mdfile: metadata file page capacity exceeded")

type freeRegion struct {
	start uint32
	pages uint32
}

// Allocator is a minimal bump/free-list page allocator over the
// metadata file's page grid. Page 0 is reserved for Header+Index;
// allocation starts at page 1. It exists only to let the Tick
// Controller (§4.4 step 5) exercise allocate/free without a real
// free-space reclamation subsystem.
type Allocator struct {
	pageSize      uint32
	totalPages    uint32
	nextPage      uint32
	free          []freeRegion
}

// NewAllocator constructs an allocator over a metadata file with the
// given page size and total page capacity.
func NewAllocator(pageSize uint32, totalPages uint32) *Allocator {
	return &Allocator{pageSize: pageSize, totalPages: totalPages, nextPage: 1}
}

func pagesFor(length uint32, pageSize uint32) uint32 {
	return (length + pageSize - 1) / pageSize
}

// Alloc reserves enough whole pages to hold length bytes, preferring
// a first-fit match from previously freed regions before bumping the
// high-water mark. Returns ErrCapacityExceeded if the file has no room.
func (a *Allocator) Alloc(length uint32) (uint32, error) {
	need := pagesFor(length, a.pageSize)
	if need == 0 {
		need = 1
	}
	for i, r := range a.free {
		if r.pages >= need {
			addr := r.start
			if r.pages == need {
				a.free = append(a.free[:i], a.free[i+1:]...)
			} else {
				a.free[i] = freeRegion{start: r.start + need, pages: r.pages - need}
			}
			return addr, nil
		}
	}
	if a.nextPage+need > a.totalPages {
		return 0, ErrCapacityExceeded
	}
	addr := a.nextPage
	a.nextPage += need
	return addr, nil
}

// Free releases addr..+length back to the free list. Adjacent regions
// are not coalesced; this is the minimal scheme spec.md's Non-goals
// permit for the first cut.
func (a *Allocator) Free(addr uint32, length uint32) {
	pages := pagesFor(length, a.pageSize)
	if pages == 0 {
		pages = 1
	}
	a.free = append(a.free, freeRegion{start: addr, pages: pages})
}

// CloseAllocator releases the allocator's bookkeeping. It never fails; the
// free-space manager's Close in §6 is a no-op for this in-memory scheme.
func (a *Allocator) CloseAllocator() error {
	a.free = nil
	return nil
}
