package records

import (
	"fmt"

	"github.com/mwos/librecords/batch"
	"github.com/mwos/librecords/compression"
	"github.com/mwos/librecords/record"
)

// WriterConfig carries the construction parameters for a Writer. Producer
// id, epoch and base sequence of -1 mean unset.
type WriterConfig struct {
	Magic       int8
	Compression int16
	// Codec overrides Compression when set; used to plug in custom codec
	// implementations.
	Codec compression.Codec
	// Capacity is the target batch size in bytes. One record is always
	// accepted even if it alone exceeds the capacity.
	Capacity      int
	BaseOffset    int64
	Transactional bool
	ProducerID    int64
	ProducerEpoch int16
	BaseSequence  int32
}

// NewWriterConfig returns a config with the producer fields unset.
func NewWriterConfig(magic int8, compression int16, capacity int) WriterConfig {
	return WriterConfig{
		Magic:         magic,
		Compression:   compression,
		Capacity:      capacity,
		ProducerID:    -1,
		ProducerEpoch: -1,
		BaseSequence:  -1,
	}
}

// NewWriter validates cfg and returns a writer accumulating records into
// exactly one batch of the configured format. Contradictory parameters fail
// here, before any bytes are written, with InvalidConfigurationError.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Magic < 0 || cfg.Magic > 2 {
		return nil, fmt.Errorf("%w: magic %d", InvalidConfigurationError, cfg.Magic)
	}
	codec := cfg.Codec
	if codec == nil {
		var err error
		if codec, err = compression.ByType(cfg.Compression); err != nil {
			return nil, fmt.Errorf("%w: %v", InvalidConfigurationError, err)
		}
	}
	w := &Writer{
		magic:         cfg.Magic,
		capacity:      cfg.Capacity,
		nextOffset:    cfg.BaseOffset,
		producerID:    -1,
		producerEpoch: -1,
	}
	if cfg.Magic < 2 {
		// idempotent and transactional delivery are v2-only features
		if cfg.Transactional {
			return nil, fmt.Errorf("%w: transactional batches require message format v2+", InvalidConfigurationError)
		}
		if cfg.ProducerID != -1 {
			return nil, fmt.Errorf("%w: idempotent batches require message format v2+", InvalidConfigurationError)
		}
		w.encoder = batch.NewLegacyBuilder(cfg.Magic, codec, cfg.Capacity)
		return w, nil
	}
	// the producer identity is an atomic triple: a partial one is a caller
	// bug, not something to paper over
	if cfg.Transactional && cfg.ProducerID == -1 {
		return nil, fmt.Errorf("%w: cannot write transactional messages without a valid producer id", InvalidConfigurationError)
	}
	if cfg.ProducerID != -1 && cfg.ProducerEpoch == -1 {
		return nil, fmt.Errorf("%w: invalid negative producer epoch", InvalidConfigurationError)
	}
	if cfg.ProducerID != -1 && cfg.BaseSequence == -1 {
		return nil, fmt.Errorf("%w: invalid negative base sequence", InvalidConfigurationError)
	}
	w.producerID = cfg.ProducerID
	w.producerEpoch = cfg.ProducerEpoch
	w.encoder = batch.NewBuilder(codec, cfg.Capacity, cfg.Transactional, cfg.ProducerID, cfg.ProducerEpoch, cfg.BaseSequence)
	return w, nil
}

// Writer accumulates records into exactly one batch and finalizes it at most
// once. It has two states: open, in which records may be appended and
// producer state set, and closed, in which the finished buffer is readable
// and all mutation is refused. Not safe for concurrent use.
type Writer struct {
	encoder  Encoder // nil once closed
	magic    int8
	capacity int
	//
	nextOffset    int64
	closed        bool
	buf           []byte
	bytesWritten  int
	producerID    int64
	producerEpoch int16
}

// Append a record with the given timestamp. Returns the metadata of the
// append, or nil if the record was not appended: either the writer is
// closed (normal during retries, not an error) or the batch is out of room.
func (w *Writer) Append(timestamp int64, key, value []byte, headers []record.Header) *record.Metadata {
	if w.closed {
		return nil
	}
	md := w.encoder.Append(w.nextOffset, timestamp, key, value, headers)
	if md == nil {
		return nil
	}
	w.nextOffset++
	return md
}

// Skip advances the next offset without writing. Exposed for testing against
// compacted logs, where offsets have gaps.
func (w *Writer) Skip(offsets int64) {
	w.nextOffset += offsets
}

// SetProducerState assigns the producer identity used for idempotent and
// transactional delivery. Sequence numbers are assigned at close time as the
// accumulator drains batches; changing the identity of an already closed
// batch risks shipping duplicate sequence numbers on retry, so that is an
// IllegalStateError rather than a silent success.
func (w *Writer) SetProducerState(id int64, epoch int16, baseSequence int32, transactional bool) error {
	if w.magic < 2 {
		return UnsupportedVersionError
	}
	if w.closed {
		return fmt.Errorf("%w: cannot set producer state", IllegalStateError)
	}
	w.encoder.SetProducerState(id, epoch, baseSequence, transactional)
	w.producerID = id
	return nil
}

// Close finalizes the batch into an immutable buffer. Idempotent: the first
// call captures the pre-compression size, builds the buffer (compression
// runs here, exactly once), captures the final producer identity, and
// releases the encoder; later calls are no-ops. On a build error the writer
// stays open with its state intact.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	size := w.encoder.Size()
	buf, err := w.encoder.Build()
	if err != nil {
		return fmt.Errorf("error closing batch: %w", err)
	}
	w.bytesWritten = size
	w.buf = buf
	if w.magic >= 2 {
		w.producerID = w.encoder.ProducerID()
		w.producerEpoch = w.encoder.ProducerEpoch()
	}
	w.encoder = nil
	w.closed = true
	return nil
}

// Records wraps the finalized buffer in a fresh Reader, letting the caller
// verify what was actually written. The writer must be closed.
func (w *Writer) Records() (*Reader, error) {
	if !w.closed {
		return nil, fmt.Errorf("%w: batch writer is still open", IllegalStateError)
	}
	return NewReader(w.buf), nil
}

// Buffer returns the finalized immutable byte sequence. The writer must be
// closed.
func (w *Writer) Buffer() ([]byte, error) {
	if !w.closed {
		return nil, fmt.Errorf("%w: batch writer is still open", IllegalStateError)
	}
	return w.buf, nil
}

// SizeInBytes is the in-progress batch size while open, and the finalized
// buffer length once closed.
func (w *Writer) SizeInBytes() int {
	if w.closed {
		return len(w.buf)
	}
	return w.encoder.Size()
}

// CompressionRate is the ratio of the finalized size to the bytes written
// before compression. The writer must be closed.
func (w *Writer) CompressionRate() (float64, error) {
	if !w.closed {
		return 0, fmt.Errorf("%w: batch writer is still open", IllegalStateError)
	}
	return float64(len(w.buf)) / float64(w.bytesWritten), nil
}

// IsFull reports whether no further appends can succeed.
func (w *Writer) IsFull() bool {
	return w.closed || w.encoder.Size() >= w.capacity
}

// NextOffset is the logical offset the next successful append would receive.
func (w *Writer) NextOffset() int64 {
	return w.nextOffset
}

func (w *Writer) ProducerID() int64    { return w.producerID }
func (w *Writer) ProducerEpoch() int16 { return w.producerEpoch }
