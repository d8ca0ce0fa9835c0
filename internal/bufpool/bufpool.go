// Package bufpool provides reusable byte buffers for the in-memory
// reference PageBuffer, avoiding an allocation on every page image
// copy during a busy tick.
package bufpool

import "sync"

// pagePool holds reusable fixed-size page buffers. Page size varies
// per metadata file, so buffers below the requested size are
// discarded rather than reused; Get always returns a slice with the
// requested length.
var pagePool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// Get returns a byte slice of length size, reusing a pooled buffer
// when its capacity is large enough.
func Get(size int) []byte {
	bp := pagePool.Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, size)
	} else {
		b = b[:size]
	}
	return b
}

// Put returns b to the pool for reuse. Oversized buffers are dropped
// so the pool does not retain unbounded memory from one large page.
func Put(b []byte) {
	if cap(b) > 1<<20 {
		return
	}
	b = b[:0]
	pagePool.Put(&b)
}
