// Package record implements marshaling and unmarshaling of individual v2
// format records.
package record

import (
	"errors"

	"github.com/mwos/librecords/varint"
)

var ErrTruncated = errors.New("record body is truncated")

// New returns a record with the key and value lengths set. A nil key or
// value has length -1 on the wire ("null", distinct from empty).
func New(key, value []byte) *Record {
	r := &Record{KeyLen: -1, Key: key, ValueLen: -1, Value: value}
	if key != nil {
		r.KeyLen = int64(len(key))
	}
	if value != nil {
		r.ValueLen = int64(len(value))
	}
	return r
}

// Header is a record-level key-value header (v2 format only).
type Header struct {
	Key   string
	Value []byte
}

type Record struct {
	Len            int64
	Attributes     int8
	TimestampDelta int64
	OffsetDelta    int64
	KeyLen         int64
	Key            []byte
	ValueLen       int64
	Value          []byte
	Headers        []Header
}

// Metadata describes a single successful append to a batch builder. Crc is
// set only by the legacy builder (the v2 format has no per-record checksum).
type Metadata struct {
	Offset    int64
	Timestamp int64
	Size      int
	Crc       uint32
}

// Marshal the record body: zigzag varint length followed by that many bytes.
func (r *Record) Marshal() []byte {
	tmp := make([]byte, 10)
	var b []byte
	b = append(b, byte(r.Attributes))
	b = varint.PutZigZag64(b, tmp, r.TimestampDelta)
	b = varint.PutZigZag64(b, tmp, r.OffsetDelta)
	b = varint.PutZigZag64(b, tmp, r.KeyLen)
	b = append(b, r.Key...)
	b = varint.PutZigZag64(b, tmp, r.ValueLen)
	b = append(b, r.Value...)
	b = varint.PutZigZag64(b, tmp, int64(len(r.Headers)))
	for _, h := range r.Headers {
		b = varint.PutZigZag64(b, tmp, int64(len(h.Key)))
		b = append(b, h.Key...)
		b = varint.PutZigZag64(b, tmp, int64(len(h.Value)))
		b = append(b, h.Value...)
	}
	c := varint.PutZigZag64(nil, tmp, int64(len(b)))
	return append(c, b...)
}

func Unmarshal(b []byte) (*Record, error) {
	r := &Record{}
	var offset, n int
	r.Len, n = varint.DecodeZigZag64(b)
	if n == 0 || int(r.Len) > len(b)-n {
		return nil, ErrTruncated
	}
	offset = n
	r.Attributes = int8(b[offset])
	offset++
	r.TimestampDelta, n = varint.DecodeZigZag64(b[offset:])
	offset += n
	r.OffsetDelta, n = varint.DecodeZigZag64(b[offset:])
	offset += n
	r.KeyLen, n = varint.DecodeZigZag64(b[offset:])
	offset += n
	if r.KeyLen > 0 {
		if int(r.KeyLen) > len(b)-offset {
			return nil, ErrTruncated
		}
		r.Key = make([]byte, r.KeyLen)
		offset += copy(r.Key, b[offset:])
	}
	r.ValueLen, n = varint.DecodeZigZag64(b[offset:])
	offset += n
	if r.ValueLen > 0 {
		if int(r.ValueLen) > len(b)-offset {
			return nil, ErrTruncated
		}
		r.Value = make([]byte, r.ValueLen)
		offset += copy(r.Value, b[offset:])
	}
	var headers int64
	headers, n = varint.DecodeZigZag64(b[offset:])
	offset += n
	for i := int64(0); i < headers; i++ {
		var klen, vlen int64
		klen, n = varint.DecodeZigZag64(b[offset:])
		offset += n
		if n == 0 || klen < 0 || int(klen) > len(b)-offset {
			return nil, ErrTruncated
		}
		h := Header{Key: string(b[offset : offset+int(klen)])}
		offset += int(klen)
		vlen, n = varint.DecodeZigZag64(b[offset:])
		offset += n
		if vlen > 0 {
			if int(vlen) > len(b)-offset {
				return nil, ErrTruncated
			}
			h.Value = make([]byte, vlen)
			offset += copy(h.Value, b[offset:])
		}
		r.Headers = append(r.Headers, h)
	}
	return r, nil
}
