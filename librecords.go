/*
Package librecords implements the record batch codec for the Kafka log
format. It handles both the legacy (v0 and v1 "message set") and the default
(v2 "record batch") formats.

Reading

Bytes fetched from a broker are a sequence of record batches, possibly ending
mid-batch (brokers cap response sizes, so the last batch on the wire may be
cut off). Wrap the bytes in a records.Reader to iterate over the complete
batches without copying them; the trailing partial batch (if any) is reported
through ValidBytes, not as an error. Each call to NextBatch returns a view
decoded lazily for the batch's own format version.

Writing

records.Writer accumulates individual records into exactly one batch of a
chosen magic version, bounded by a byte capacity. Close finalizes (and
compresses) the batch exactly once; closing again is a no-op, which makes
retry loops safe. For the v2 format the writer also carries the producer
id, epoch and base sequence used for idempotent and transactional delivery.

Record batch compression and decompression implementations live in the
compression package; batch and record marshaling live in the batch, record,
and message packages. Nothing in this library does I/O.
*/
package librecords

import (
	"github.com/mwos/librecords/batch"
	"github.com/mwos/librecords/record"
	"github.com/mwos/librecords/records"
)

func NewRecord(key, value []byte) *Record {
	return record.New(key, value)
}

type Record = record.Record

type Header = record.Header

type Batch = batch.Batch

type Reader = records.Reader

type Writer = records.Writer
