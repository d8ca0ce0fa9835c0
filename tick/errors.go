package tick

import "errors"

// ErrDelayedWriteRangeViolation indicates delay_write_until produced a
// value outside [current_tick, current_tick+max_lag], which spec.md
// §4.4 calls an internal logic bug, not a recoverable condition.
var ErrDelayedWriteRangeViolation = errors.New("tick: delay_write_until range violation")

// ErrReadExhausted wraps a reader-side torn-read budget exhaustion
// surfaced as a read error, per spec.md §7.
var ErrReadExhausted = errors.New("tick: reader exhausted its torn-read retry budget")
