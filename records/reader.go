package records

import (
	"encoding/binary"

	"github.com/mwos/librecords/batch"
	"github.com/mwos/librecords/message"
)

const (
	lengthOffset = 8
	magicOffset  = 16
	// minSlice is the smallest buffer that can hold a batch: the log
	// overhead plus a v0 message with empty key and value. A batch shorter
	// than this is corrupt, not truncated.
	minSlice = batch.LogOverhead + message.OverheadV0
)

// NewReader wraps buf, which holds a sequence of encoded batches possibly
// ending mid-batch, and primes the one-batch lookahead. The reader never
// copies payload bytes: returned views share buf's backing array. buf must
// not be mutated while the reader (or any view) is in use.
func NewReader(buf []byte) *Reader {
	r := &Reader{buf: buf, leftover: -1}
	r.cacheNext()
	return r
}

// Reader is a forward-only, lazy iterator over the batches in a buffer. Not
// safe for concurrent use; multiple Readers over the same buffer are fine.
type Reader struct {
	buf []byte
	// cursor: one lookahead slice is kept so HasNext is O(1). Once the scan
	// has run past the last complete batch, leftover holds the count of
	// unusable trailing bytes (-1 while unknown).
	pos      int
	next     []byte
	leftover int
}

// cacheNext advances the cursor: either caches the next complete batch as
// the lookahead, or records the leftover byte count and clears the
// lookahead. Fewer than LogOverhead trailing bytes, or a length field
// pointing past the end of the buffer, mean a batch was cut off in transit;
// that is expected with partial reads from a streaming transport.
func (r *Reader) cacheNext() {
	remaining := len(r.buf) - r.pos
	if remaining < batch.LogOverhead {
		r.leftover = remaining
		r.next = nil
		return
	}
	length := int(int32(binary.BigEndian.Uint32(r.buf[r.pos+lengthOffset:])))
	if length < 0 {
		// a negative length is malformed, not a partial write; cache a
		// too-short view so NextBatch reports the corruption
		r.next = r.buf[r.pos : r.pos+batch.LogOverhead]
		r.pos = len(r.buf)
		return
	}
	end := r.pos + batch.LogOverhead + length
	if end > len(r.buf) {
		r.leftover = remaining
		r.next = nil
		return
	}
	r.next = r.buf[r.pos:end]
	r.pos = end
}

// HasNext reports whether a lookahead batch is cached. O(1).
func (r *Reader) HasNext() bool {
	return r.next != nil
}

// NextBatch returns the next batch as a version-appropriate view, or
// (nil, nil) when the buffer is exhausted. A batch shorter than the minimum
// legal batch size returns CorruptRecordError: the buffer's framing is
// broken and iteration cannot continue.
func (r *Reader) NextBatch() (batch.Decoded, error) {
	next := r.next
	if next == nil {
		return nil, nil
	}
	if len(next) < minSlice {
		return nil, CorruptRecordError
	}
	r.cacheNext()
	if magic := int8(next[magicOffset]); magic <= 1 {
		return batch.NewLegacyView(next, magic), nil
	}
	return batch.NewDefaultView(next), nil
}

// SizeInBytes is the total buffer length.
func (r *Reader) SizeInBytes() int {
	return len(r.buf)
}

// ValidBytes is the total buffer length minus any unusable trailing bytes.
// The first call may scan the remaining buffer to find where the usable
// bytes end; the cursor is snapshotted and restored around the scan, so
// calling this mid-iteration does not disturb iteration order. The buffer is
// immutable, so the result is cached for the reader's lifetime.
func (r *Reader) ValidBytes() int {
	if r.leftover < 0 {
		next, pos := r.next, r.pos
		for r.leftover < 0 {
			r.cacheNext()
		}
		r.next, r.pos = next, pos
	}
	return len(r.buf) - r.leftover
}
