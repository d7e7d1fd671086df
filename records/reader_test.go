package records

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mwos/librecords/batch"
	"github.com/mwos/librecords/compression"
)

// build returns the finalized buffer of a writer of the given magic with one
// record per value, starting at baseOffset.
func build(t *testing.T, magic int8, baseOffset int64, values ...string) []byte {
	t.Helper()
	cfg := NewWriterConfig(magic, compression.None, 1<<20)
	cfg.BaseOffset = baseOffset
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	for _, v := range values {
		require.NotNil(t, w.Append(1569363015859, nil, []byte(v), nil))
	}
	require.NoError(t, w.Close())
	b, err := w.Buffer()
	require.NoError(t, err)
	return b
}

// A buffer of concatenated batches of mixed magic yields exactly those
// batches in order, and with no trailing garbage every byte is valid.
func TestUnitReaderMixedMagic(t *testing.T) {
	var buf []byte
	// two legacy "batches" then one v2 batch
	buf = append(buf, build(t, 1, 0, "m1", "m2")...)
	buf = append(buf, build(t, 2, 2, "m3", "m4")...)

	r := NewReader(buf)
	require.Equal(t, len(buf), r.SizeInBytes())

	var magics []int8
	var offsets []int64
	for r.HasNext() {
		b, err := r.NextBatch()
		require.NoError(t, err)
		magics = append(magics, b.Magic())
		offsets = append(offsets, b.BaseOffset())
	}
	require.Equal(t, []int8{1, 1, 2}, magics)
	require.Equal(t, []int64{0, 1, 2}, offsets)

	b, err := r.NextBatch()
	require.NoError(t, err)
	require.Nil(t, b)
	require.Equal(t, r.SizeInBytes(), r.ValidBytes())
}

func TestUnitReaderDispatch(t *testing.T) {
	buf := append(build(t, 0, 0, "m1"), build(t, 2, 1, "m2")...)
	r := NewReader(buf)
	b, err := r.NextBatch()
	require.NoError(t, err)
	require.IsType(t, &batch.LegacyView{}, b)
	b, err = r.NextBatch()
	require.NoError(t, err)
	require.IsType(t, &batch.DefaultView{}, b)
	require.False(t, r.HasNext())
}

// A trailing partial batch is truncation, not an error: same batches, then
// no next, and ValidBytes accounts for the leftover.
func TestUnitReaderTruncated(t *testing.T) {
	whole := build(t, 2, 0, "m1", "m2")
	buf := append([]byte{}, whole...)
	// a valid 12-byte header claiming more bytes than remain
	partial := make([]byte, 17)
	binary.BigEndian.PutUint32(partial[8:12], 100)
	buf = append(buf, partial...)

	r := NewReader(buf)
	b, err := r.NextBatch()
	require.NoError(t, err)
	require.NotNil(t, b)
	require.False(t, r.HasNext())
	require.Equal(t, len(whole), r.ValidBytes())
	require.Equal(t, len(whole)+len(partial), r.SizeInBytes())
}

// Fewer than 12 trailing bytes cannot even hold the framing; also truncation.
func TestUnitReaderShortTrailer(t *testing.T) {
	whole := build(t, 2, 0, "m1")
	buf := append(append([]byte{}, whole...), 0, 1, 2, 3)
	r := NewReader(buf)
	_, err := r.NextBatch()
	require.NoError(t, err)
	require.False(t, r.HasNext())
	require.Equal(t, 4, r.SizeInBytes()-r.ValidBytes())
}

func TestUnitReaderEmpty(t *testing.T) {
	r := NewReader(nil)
	require.False(t, r.HasNext())
	b, err := r.NextBatch()
	require.NoError(t, err)
	require.Nil(t, b)
	require.Equal(t, 0, r.ValidBytes())
	require.Equal(t, 0, r.SizeInBytes())
}

// A batch that claims a length below the legacy minimum overhead is corrupt,
// not truncated: the framing itself can no longer be trusted.
func TestUnitReaderCorrupt(t *testing.T) {
	buf := make([]byte, 17)
	binary.BigEndian.PutUint32(buf[8:12], 5) // total claimed size 17 < 26
	r := NewReader(buf)
	require.True(t, r.HasNext())
	_, err := r.NextBatch()
	require.Equal(t, CorruptRecordError, err)
	// fatal for the iteration: the error persists
	_, err = r.NextBatch()
	require.Equal(t, CorruptRecordError, err)
}

func TestUnitReaderNegativeLength(t *testing.T) {
	buf := make([]byte, 40)
	binary.BigEndian.PutUint32(buf[8:12], 0xffffffff) // length -1
	r := NewReader(buf)
	require.True(t, r.HasNext())
	_, err := r.NextBatch()
	require.Equal(t, CorruptRecordError, err)
}

// Calling ValidBytes mid-iteration must not disturb iteration order: the
// cursor is restored after the out-of-band scan.
func TestUnitReaderValidBytesMidIteration(t *testing.T) {
	var buf []byte
	buf = append(buf, build(t, 2, 0, "m1")...)
	buf = append(buf, build(t, 2, 1, "m2")...)
	buf = append(buf, build(t, 2, 2, "m3")...)
	valid := len(buf)
	buf = append(buf, 0xde, 0xad, 0xbe, 0xef) // truncated trailer

	r := NewReader(buf)
	b, err := r.NextBatch()
	require.NoError(t, err)
	require.EqualValues(t, 0, b.BaseOffset())

	require.Equal(t, valid, r.ValidBytes())

	var offsets []int64
	for r.HasNext() {
		b, err := r.NextBatch()
		require.NoError(t, err)
		offsets = append(offsets, b.BaseOffset())
	}
	require.Equal(t, []int64{1, 2}, offsets)
	// cached after the first computation
	require.Equal(t, valid, r.ValidBytes())
}
