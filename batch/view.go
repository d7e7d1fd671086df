package batch

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/mwos/librecords/compression"
	"github.com/mwos/librecords/message"
)

// Decoded is a non-owning view over a single encoded batch, decoded lazily
// for its format version. The two implementations are DefaultView (magic >= 2)
// and LegacyView (magic 0 and 1). Views are valid only as long as the buffer
// they were carved from.
type Decoded interface {
	Magic() int8
	BaseOffset() int64
	SizeInBytes() int
	// Validate checks batch integrity (crc) without decoding records.
	Validate() error
	// Records returns the marshaled record bodies, decompressing with d when
	// the batch attributes call for it. Unmarshal the bodies with the record
	// package (DefaultView) or the message package (LegacyView).
	Records(d Decompressor) ([][]byte, error)
}

// NewDefaultView wraps one encoded v2 batch.
func NewDefaultView(b []byte) *DefaultView {
	return &DefaultView{b: b}
}

type DefaultView struct {
	b []byte
}

func (v *DefaultView) Magic() int8 { return int8(v.b[16]) }

func (v *DefaultView) BaseOffset() int64 {
	return int64(binary.BigEndian.Uint64(v.b[0:8]))
}

func (v *DefaultView) SizeInBytes() int { return len(v.b) }

func (v *DefaultView) Validate() error {
	if len(v.b) < HeaderSize {
		return CorruptedBatchError
	}
	crc := binary.BigEndian.Uint32(v.b[crcOffset : crcOffset+4])
	if crc32.Checksum(v.b[crcOffset+4:], crc32c) != crc {
		return CorruptedBatchError
	}
	return nil
}

// Batch decodes the full header. The returned batch references the view's
// bytes, it does not copy them.
func (v *DefaultView) Batch() (*Batch, error) {
	return Unmarshal(v.b)
}

func (v *DefaultView) Records(d Decompressor) ([][]byte, error) {
	batch, err := Unmarshal(v.b)
	if err != nil {
		return nil, err
	}
	if ct := batch.CompressionType(); ct != compression.None {
		if d == nil || d.Type() != ct {
			return nil, fmt.Errorf("batch compressed with codec %d", ct)
		}
		if err := batch.Decompress(d); err != nil {
			return nil, err
		}
	}
	return batch.Records(), nil
}

// NewLegacyView wraps one log-overhead-framed legacy message: in the v0/v1
// formats every message in a set is its own "batch" to the scanner.
func NewLegacyView(b []byte, magic int8) *LegacyView {
	return &LegacyView{b: b, magic: magic}
}

type LegacyView struct {
	b     []byte
	magic int8
}

func (v *LegacyView) Magic() int8 { return v.magic }

func (v *LegacyView) BaseOffset() int64 {
	return int64(binary.BigEndian.Uint64(v.b[0:8]))
}

func (v *LegacyView) SizeInBytes() int { return len(v.b) }

func (v *LegacyView) Validate() error {
	_, err := message.Unmarshal(v.b[LogOverhead:])
	return err
}

func (v *LegacyView) Records(d Decompressor) ([][]byte, error) {
	m, err := message.Unmarshal(v.b[LogOverhead:])
	if err != nil {
		return nil, err
	}
	ct := m.CompressionType()
	if ct == compression.None {
		return [][]byte{v.b[LogOverhead:]}, nil
	}
	// a compressed legacy batch is a wrapper message whose value is the
	// compressed inner message set
	if d == nil || d.Type() != ct {
		return nil, fmt.Errorf("batch compressed with codec %d", ct)
	}
	inner, err := d.Decompress(m.Value)
	if err != nil {
		return nil, fmt.Errorf("error decompressing message set: %w", err)
	}
	var records [][]byte
	for b := inner; len(b) > 0; {
		if len(b) < LogOverhead {
			return nil, CorruptedBatchError
		}
		size := int32(binary.BigEndian.Uint32(b[8:12]))
		n := LogOverhead + int(size)
		if size < 0 || n > len(b) {
			return nil, CorruptedBatchError
		}
		records = append(records, b[LogOverhead:n])
		b = b[n:]
	}
	return records, nil
}
