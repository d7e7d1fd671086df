/*
Package records implements the core of the log-format codec: lazy iteration
over a buffer of record batches (Reader) and accumulation of records into a
single size-bounded batch (Writer).

All formats share the leading byte offsets of the Length and Magic fields:

	V0 and V1 (Offset is MessageSet part, other bytes are Message ones):
	 Offset => Int64
	 BytesLength => Int32
	 CRC => Int32
	 Magic => Int8
	 ...

	V2:
	 BaseOffset => Int64
	 Length => Int32
	 PartitionLeaderEpoch => Int32
	 Magic => Int8
	 ...

So batches can be discovered just by reading the Length field at a fixed
offset, and the Magic byte selects the right view for each batch without
decoding anything else.

Nothing in this package does I/O, blocks, or locks; a Reader or Writer is
meant to be owned by one goroutine at a time.
*/
package records

import (
	"errors"

	"github.com/mwos/librecords/record"
)

var (
	// CorruptRecordError means a discovered batch claims to be smaller than
	// the minimum legal batch. Fatal for the read attempt; distinct from
	// truncation, which is reported through Reader.ValidBytes.
	CorruptRecordError = errors.New("record size is less than the minimum record overhead")
	// UnsupportedVersionError means a v2-only operation was attempted on a
	// legacy format writer.
	UnsupportedVersionError = errors.New("producer state requires message format v2+")
	// IllegalStateError means an operation found the writer in the wrong
	// lifecycle state. It indicates a bug in the caller.
	IllegalStateError = errors.New("illegal batch writer state")
	// InvalidConfigurationError is returned by NewWriter for contradictory
	// construction parameters, before any bytes are written.
	InvalidConfigurationError = errors.New("invalid writer configuration")
)

// Encoder accumulates appended records into one in-progress batch. It is a
// single-use resource: a Writer builds it exactly once and releases it. The
// implementations are batch.Builder and batch.LegacyBuilder.
type Encoder interface {
	// Append returns nil when the batch has no room for the record.
	Append(offset, timestamp int64, key, value []byte, headers []record.Header) *record.Metadata
	// Size of the in-progress batch in bytes, before compression.
	Size() int
	SetProducerState(id int64, epoch int16, baseSequence int32, transactional bool)
	// Build finalizes the batch into an immutable byte sequence. This is
	// where compression runs.
	Build() ([]byte, error)
	// ProducerID and ProducerEpoch report the producer identity, which the
	// encoder may have assigned internally; read after Build.
	ProducerID() int64
	ProducerEpoch() int16
}
