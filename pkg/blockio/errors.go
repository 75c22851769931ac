package blockio

import "errors"

// ErrIO marks a byte-level read/write failure while encoding or decoding a
// record. Use [errors.Is] with this sentinel to detect it.
var ErrIO = errors.New("blockio: io error")

// ErrFormat marks a short or truncated frame seen while decoding a record:
// the stream ended before a full metadata or data frame could be read. This
// always indicates a malformed or truncated log file, never a transient
// condition.
var ErrFormat = errors.New("blockio: format error")
