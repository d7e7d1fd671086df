package batch

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/mwos/librecords/compression"
	"github.com/mwos/librecords/message"
	"github.com/mwos/librecords/record"
)

// NewBuilder returns a builder accumulating records into a single v2 batch.
// Appends that would push the batch past capacity bytes are refused, except
// that the first record always fits (a batch must be able to carry one
// oversized record). Producer id, epoch and base sequence of -1 mean unset.
func NewBuilder(c Compressor, capacity int, transactional bool, producerID int64, producerEpoch int16, baseSequence int32) *Builder {
	return &Builder{
		compressor:    c,
		capacity:      capacity,
		transactional: transactional,
		producerID:    producerID,
		producerEpoch: producerEpoch,
		baseSequence:  baseSequence,
	}
}

// Builder accumulates records into an in-progress v2 batch. Not safe for
// concurrent use.
type Builder struct {
	compressor    Compressor
	capacity      int
	transactional bool
	producerID    int64
	producerEpoch int16
	baseSequence  int32
	//
	baseOffset      int64
	firstTimestamp  int64
	maxTimestamp    int64
	lastOffsetDelta int32
	n               int32
	buf             bytes.Buffer
}

// Append a record at the given absolute offset. The first appended offset
// becomes the batch base offset; the first timestamp becomes the batch first
// timestamp. Returns nil when there is no room left.
func (b *Builder) Append(offset, timestamp int64, key, value []byte, headers []record.Header) *record.Metadata {
	if b.n == 0 {
		b.baseOffset = offset
		b.firstTimestamp = timestamp
		b.maxTimestamp = timestamp
	}
	r := record.New(key, value)
	r.TimestampDelta = timestamp - b.firstTimestamp
	r.OffsetDelta = offset - b.baseOffset
	r.Headers = headers
	rb := r.Marshal()
	if b.n > 0 && b.Size()+len(rb) > b.capacity {
		return nil
	}
	b.buf.Write(rb)
	b.n++
	b.lastOffsetDelta = int32(offset - b.baseOffset)
	if timestamp > b.maxTimestamp {
		b.maxTimestamp = timestamp
	}
	return &record.Metadata{Offset: offset, Timestamp: timestamp, Size: len(rb)}
}

// Size of the in-progress batch in bytes, before compression.
func (b *Builder) Size() int {
	return HeaderSize + b.buf.Len()
}

func (b *Builder) SetProducerState(id int64, epoch int16, baseSequence int32, transactional bool) {
	b.producerID = id
	b.producerEpoch = epoch
	b.baseSequence = baseSequence
	b.transactional = transactional
}

func (b *Builder) ProducerID() int64    { return b.producerID }
func (b *Builder) ProducerEpoch() int16 { return b.producerEpoch }

// Build compresses the accumulated records and marshals the finished batch.
// Call once: building again would compress the records again.
func (b *Builder) Build() ([]byte, error) {
	records, err := b.compressor.Compress(b.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("error compressing batch records: %w", err)
	}
	attributes := b.compressor.Type()
	if b.transactional {
		attributes |= AttrTransactional
	}
	lastOffsetDelta := b.lastOffsetDelta
	if b.n == 0 {
		lastOffsetDelta = -1
	}
	batch := &Batch{
		BaseOffset:       b.baseOffset,
		BatchLengthBytes: int32(lengthBase + len(records)),
		Magic:            2,
		Attributes:       attributes,
		LastOffsetDelta:  lastOffsetDelta,
		FirstTimestamp:   b.firstTimestamp,
		MaxTimestamp:     b.maxTimestamp,
		ProducerId:       b.producerID,
		ProducerEpoch:    b.producerEpoch,
		BaseSequence:     b.baseSequence,
		NumRecords:       b.n,
		MarshaledRecords: records,
	}
	return batch.Marshal(), nil
}

// NewLegacyBuilder returns a builder accumulating messages into a v0 or v1
// message set. Capacity semantics match NewBuilder.
func NewLegacyBuilder(magic int8, c Compressor, capacity int) *LegacyBuilder {
	return &LegacyBuilder{magic: magic, compressor: c, capacity: capacity}
}

// LegacyBuilder accumulates messages into an in-progress v0/v1 message set.
// Not safe for concurrent use.
type LegacyBuilder struct {
	magic      int8
	compressor Compressor
	capacity   int
	//
	lastOffset   int64
	maxTimestamp int64
	n            int
	buf          bytes.Buffer
}

// Append a message at the given absolute offset. Record headers are a v2
// feature; the legacy formats cannot carry them and they are dropped.
// Returns nil when there is no room left.
func (b *LegacyBuilder) Append(offset, timestamp int64, key, value []byte, _ []record.Header) *record.Metadata {
	m := message.New(b.magic, timestamp, key, value)
	mb := m.Marshal()
	if b.n > 0 && b.buf.Len()+LogOverhead+len(mb) > b.capacity {
		return nil
	}
	var frame [LogOverhead]byte
	binary.BigEndian.PutUint64(frame[0:8], uint64(offset))
	binary.BigEndian.PutUint32(frame[8:12], uint32(len(mb)))
	b.buf.Write(frame[:])
	b.buf.Write(mb)
	b.n++
	b.lastOffset = offset
	if timestamp > b.maxTimestamp {
		b.maxTimestamp = timestamp
	}
	return &record.Metadata{Offset: offset, Timestamp: timestamp, Size: LogOverhead + len(mb), Crc: m.Crc}
}

// Size of the in-progress message set in bytes, before compression.
func (b *LegacyBuilder) Size() int {
	return b.buf.Len()
}

// SetProducerState is a v2 feature; records.Writer rejects it before it can
// reach a legacy builder.
func (b *LegacyBuilder) SetProducerState(int64, int16, int32, bool) {}

func (b *LegacyBuilder) ProducerID() int64    { return -1 }
func (b *LegacyBuilder) ProducerEpoch() int16 { return -1 }

// Build finalizes the message set. With compression, the whole set is
// compressed and wrapped in a single wrapper message whose offset is the
// last inner offset and whose timestamp is the max inner timestamp.
func (b *LegacyBuilder) Build() ([]byte, error) {
	if b.compressor.Type() == compression.None || b.n == 0 {
		out := make([]byte, b.buf.Len())
		copy(out, b.buf.Bytes())
		return out, nil
	}
	compressed, err := b.compressor.Compress(b.buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("error compressing message set: %w", err)
	}
	wrapper := message.New(b.magic, b.maxTimestamp, nil, compressed)
	wrapper.Attributes = int8(b.compressor.Type())
	wb := wrapper.Marshal()
	out := make([]byte, 0, LogOverhead+len(wb))
	out = binary.BigEndian.AppendUint64(out, uint64(b.lastOffset))
	out = binary.BigEndian.AppendUint32(out, uint32(len(wb)))
	return append(out, wb...), nil
}
