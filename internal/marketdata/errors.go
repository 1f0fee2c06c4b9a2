package marketdata

import "errors"

// ErrSinkFull is returned by RingSink.Push when the ring has no free
// slot; the caller (an Adapter, ultimately the matching engine) counts
// this as an AdapterDropped event rather than treating it as fatal
// (spec.md §7).
var ErrSinkFull = errors.New("marketdata: ring sink full, message dropped")
