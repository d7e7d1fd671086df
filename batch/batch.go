/*
Package batch implements building, marshaling, and unmarshaling of record
batches in both supported log formats.

The v2 ("default") format stores many records inside a single batch with one
CRC; the Builder accumulates records into such a batch. The v0/v1 ("legacy")
format is a message set where every message carries its own CRC; the
LegacyBuilder accumulates those. Both builders are driven by records.Writer.

On the read side, DefaultView and LegacyView are non-owning windows over a
single encoded batch as discovered by records.Reader. They decode headers and
records on demand and never copy payload bytes.
*/
package batch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"reflect"

	"github.com/mwos/librecords/varint"
	"github.com/mwos/librecords/wire"
)

const (
	// LogOverhead is the byte size of the framing shared by all formats: an
	// 8 byte offset followed by a 4 byte length.
	LogOverhead = 12
	// HeaderSize is the byte size of the v2 batch header, BaseOffset through
	// NumRecords.
	HeaderSize = 61
	// lengthBase is the part of the v2 header counted by BatchLengthBytes:
	// everything after the length field itself.
	lengthBase = HeaderSize - LogOverhead
	// crcOffset is where the v2 crc field sits; the crc covers everything
	// after it.
	crcOffset = 17
)

type Compressor interface {
	Compress([]byte) ([]byte, error)
	Type() int16
}

type Decompressor interface {
	Decompress([]byte) ([]byte, error)
	Type() int16
}

var (
	CorruptedBatchError = errors.New("batch crc does not match bytes")
	crc32c              = crc32.MakeTable(crc32.Castagnoli)
)

// Unmarshal a v2 batch. On error batch is nil. If there is an error, it is
// most likely because the crc failed.
func Unmarshal(b []byte) (*Batch, error) {
	if len(b) < HeaderSize {
		return nil, CorruptedBatchError
	}
	buf := bytes.NewBuffer(b)
	batch := &Batch{}
	if err := wire.Read(buf, reflect.ValueOf(batch)); err != nil {
		return nil, err
	}
	batch.MarshaledRecords = buf.Bytes() // the remainder is the record bodies
	if crc32.Checksum(b[crcOffset+4:], crc32c) != batch.Crc {
		return nil, CorruptedBatchError
	}
	return batch, nil
}

// Batch defines the v2 record batch in wire format. Not safe for concurrent
// use.
type Batch struct {
	BaseOffset           int64
	BatchLengthBytes     int32
	PartitionLeaderEpoch int32
	Magic                int8 // this should be =2
	Crc                  uint32
	Attributes           int16
	LastOffsetDelta      int32
	FirstTimestamp       int64 // ms since epoch
	MaxTimestamp         int64 // ms since epoch
	ProducerId           int64
	ProducerEpoch        int16
	BaseSequence         int32
	NumRecords           int32 // LastOffsetDelta+1
	//
	MarshaledRecords []byte `wire:"omit" json:"-"`
}

const (
	TimestampCreate    = 0b0000
	TimestampLogAppend = 0b1000

	AttrTransactional = 0b10000
)

func (batch *Batch) CompressionType() int16 {
	return batch.Attributes & 0b111
}

func (batch *Batch) TimestampType() int16 {
	return batch.Attributes & 0b1000
}

func (batch *Batch) Transactional() bool {
	return batch.Attributes&AttrTransactional != 0
}

func (batch *Batch) LastOffset() int64 {
	return batch.BaseOffset + int64(batch.LastOffsetDelta)
}

// Marshal batch header and append marshaled records. If you want the batch
// to be compressed call Compress before Marshal. Mutates the batch Crc.
func (batch *Batch) Marshal() RecordSet {
	buf := new(bytes.Buffer)
	if err := wire.Write(buf, reflect.ValueOf(batch)); err != nil {
		panic(err)
	}
	buf.Write(batch.MarshaledRecords)
	b := buf.Bytes()
	batch.Crc = crc32.Checksum(b[crcOffset+4:], crc32c)
	binary.BigEndian.PutUint32(b[crcOffset:], batch.Crc)
	return b
}

// Compress batch records with supplied compressor. Mutates batch on success
// only. Call before Marshal. Not idempotent (on success).
func (batch *Batch) Compress(c Compressor) error {
	b, err := c.Compress(batch.MarshaledRecords)
	if err != nil {
		return fmt.Errorf("error compressing batch records: %w", err)
	}
	batch.BatchLengthBytes = int32(lengthBase + len(b))
	batch.Attributes = batch.Attributes&^0b111 | c.Type()
	batch.Crc = 0 // invalidate crc
	batch.MarshaledRecords = b
	return nil
}

// Decompress batch with supplied decompressor. Mutates batch. Call after
// Unmarshal and before Records. Not idempotent.
func (batch *Batch) Decompress(d Decompressor) error {
	b, err := d.Decompress(batch.MarshaledRecords)
	if err != nil {
		return fmt.Errorf("error decompressing record batch: %w", err)
	}
	batch.BatchLengthBytes = int32(lengthBase + len(b))
	batch.Attributes = batch.Attributes &^ 0b111
	batch.Crc = 0 // invalidate crc
	batch.MarshaledRecords = b
	return nil
}

// Records retrieves individual records from the batch. If batch records are
// compressed you must call Decompress first.
func (batch *Batch) Records() [][]byte {
	var records [][]byte
	for b := batch.MarshaledRecords; len(b) > 0; {
		length, n := varint.DecodeZigZag64(b)
		if n == 0 {
			break
		}
		n += int(length)
		if n > len(b) {
			break
		}
		records = append(records, b[0:n])
		b = b[n:]
	}
	return records
}

// RecordSet is composed of 0 or more record batches (of any format, since
// the framing is shared). Fetch responses carry record sets. The byte
// representation of a record set with only one batch is identical to the
// batch itself.
type RecordSet []byte

// Batches returns the batches in the record set. Because brokers limit
// response byte sizes, the last batch in the set may be truncated (bytes
// will be missing from the end). In such case the last batch is discarded.
// For lazy iteration with truncation accounting use records.Reader.
func (b RecordSet) Batches() [][]byte {
	var batches [][]byte
	for {
		if len(b) < LogOverhead {
			break
		}
		length := int32(binary.BigEndian.Uint32(b[8:12]))
		n := LogOverhead + int(length)
		if length < 0 || len(b) < n {
			break // "incomplete" batch
		}
		batches = append(batches, b[:n])
		b = b[n:]
	}
	return batches
}
