package mdfile

// ReaderPool is a bounded pool of read-only Handles over the same
// metadata file path, grounded on the teacher's reader-pool shape: a
// buffered channel of ready instances, with Get falling back to
// opening a fresh handle when the pool is empty and Put discarding an
// instance once the pool is full rather than blocking.
type ReaderPool struct {
	path string
	pool chan *Handle
}

// NewReaderPool constructs a pool with room for size idle handles.
func NewReaderPool(path string, size int) *ReaderPool {
	return &ReaderPool{path: path, pool: make(chan *Handle, size)}
}

// Get returns an idle handle if one is available, otherwise opens a new one.
func (p *ReaderPool) Get() (*Handle, error) {
	select {
	case h := <-p.pool:
		return h, nil
	default:
		return Open(p.path)
	}
}

// Put returns h to the pool, closing it instead if the pool is full.
func (p *ReaderPool) Put(h *Handle) {
	select {
	case p.pool <- h:
	default:
		h.Close()
	}
}

// Close drains the pool, closing every idle handle.
func (p *ReaderPool) Close() {
	close(p.pool)
	for h := range p.pool {
		h.Close()
	}
}
