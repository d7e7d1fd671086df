package records

import (
	"bytes"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/mwos/librecords/compression"
	"github.com/mwos/librecords/record"
)

func TestUnitWriterInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  WriterConfig
	}{
		{"bad magic", NewWriterConfig(3, compression.None, 100)},
		{"bad compression", NewWriterConfig(2, 9, 100)},
		{"transactional without producer id", func() WriterConfig {
			cfg := NewWriterConfig(2, compression.None, 100)
			cfg.Transactional = true
			return cfg
		}()},
		{"producer id without epoch", func() WriterConfig {
			cfg := NewWriterConfig(2, compression.None, 100)
			cfg.ProducerID = 9000
			cfg.BaseSequence = 0
			return cfg
		}()},
		{"producer id without base sequence", func() WriterConfig {
			cfg := NewWriterConfig(2, compression.None, 100)
			cfg.ProducerID = 9000
			cfg.ProducerEpoch = 0
			return cfg
		}()},
		{"producer id on legacy magic", func() WriterConfig {
			cfg := NewWriterConfig(1, compression.None, 100)
			cfg.ProducerID = 9000
			cfg.ProducerEpoch = 0
			cfg.BaseSequence = 0
			return cfg
		}()},
		{"transactional on legacy magic", func() WriterConfig {
			cfg := NewWriterConfig(0, compression.None, 100)
			cfg.Transactional = true
			return cfg
		}()},
	}
	for _, test := range tests {
		_, err := NewWriter(test.cfg)
		require.ErrorIs(t, err, InvalidConfigurationError, test.name)
	}
}

func TestUnitWriterAppendOffsets(t *testing.T) {
	faker := gofakeit.New(11)
	cfg := NewWriterConfig(2, compression.None, 2000)
	cfg.BaseOffset = 1000
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	require.EqualValues(t, 1000, w.NextOffset())

	var appended int64
	for {
		md := w.Append(1569363015859, []byte(faker.LetterN(8)), []byte(faker.Sentence(5)), nil)
		if md == nil {
			break
		}
		require.Equal(t, 1000+appended, md.Offset)
		appended++
	}
	require.True(t, appended > 1, appended)
	require.True(t, w.IsFull() || w.SizeInBytes() <= 2000)
	// the last successful append got offset baseOffset + count - 1
	require.Equal(t, 1000+appended, w.NextOffset())
	require.NoError(t, w.Close())

	r, err := w.Records()
	require.NoError(t, err)
	b, err := r.NextBatch()
	require.NoError(t, err)
	require.EqualValues(t, 1000, b.BaseOffset())
}

func TestUnitWriterAppendWhenFull(t *testing.T) {
	w, err := NewWriter(NewWriterConfig(2, compression.None, 100))
	require.NoError(t, err)
	require.False(t, w.IsFull())
	require.NotNil(t, w.Append(0, nil, bytes.Repeat([]byte("x"), 200), nil))
	require.True(t, w.IsFull())
	require.Nil(t, w.Append(0, nil, []byte("m"), nil))
	require.EqualValues(t, 1, w.NextOffset())
}

// countingCodec counts Compress calls: the proof that closing twice does not
// compress twice.
type countingCodec struct {
	compression.GzipCodec
	compressions int
}

func (c *countingCodec) Compress(b []byte) ([]byte, error) {
	c.compressions++
	return c.GzipCodec.Compress(b)
}

func TestUnitWriterCloseIdempotent(t *testing.T) {
	codec := &countingCodec{}
	cfg := NewWriterConfig(2, compression.Gzip, 1<<20)
	cfg.Codec = codec
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	payload := bytes.Repeat([]byte("na"), 500)
	require.NotNil(t, w.Append(1000, nil, payload, nil))

	require.NoError(t, w.Close())
	first, err := w.Buffer()
	require.NoError(t, err)

	// closed writers silently refuse appends; a retry path must not error
	require.Nil(t, w.Append(2000, nil, []byte("late"), nil))
	require.True(t, w.IsFull())

	require.NoError(t, w.Close())
	second, err := w.Buffer()
	require.NoError(t, err)
	require.True(t, bytes.Equal(first, second))
	require.Equal(t, 1, codec.compressions)
}

func TestUnitWriterCompressionRate(t *testing.T) {
	cfg := NewWriterConfig(2, compression.Gzip, 1<<20)
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	require.NotNil(t, w.Append(0, nil, bytes.Repeat([]byte("ab"), 2000), nil))

	_, err = w.CompressionRate()
	require.ErrorIs(t, err, IllegalStateError)

	sizeBefore := w.SizeInBytes()
	require.NoError(t, w.Close())
	rate, err := w.CompressionRate()
	require.NoError(t, err)
	require.Equal(t, float64(w.SizeInBytes())/float64(sizeBefore), rate)
	require.Less(t, rate, 1.0)
}

func TestUnitWriterProducerState(t *testing.T) {
	w, err := NewWriter(NewWriterConfig(2, compression.None, 1<<20))
	require.NoError(t, err)
	require.EqualValues(t, -1, w.ProducerID())

	require.NoError(t, w.SetProducerState(9000, 3, 42, false))
	require.EqualValues(t, 9000, w.ProducerID())

	require.NotNil(t, w.Append(0, nil, []byte("m1"), nil))
	require.NoError(t, w.Close())
	require.EqualValues(t, 9000, w.ProducerID())
	require.EqualValues(t, 3, w.ProducerEpoch())

	// sequence numbers are assigned at close time; re-assigning after close
	// risks duplicate sequences on retry
	err = w.SetProducerState(9001, 4, 43, false)
	require.ErrorIs(t, err, IllegalStateError)
	require.EqualValues(t, 9000, w.ProducerID())
	require.EqualValues(t, 3, w.ProducerEpoch())
}

func TestUnitWriterProducerStateLegacy(t *testing.T) {
	w, err := NewWriter(NewWriterConfig(1, compression.None, 1<<20))
	require.NoError(t, err)
	err = w.SetProducerState(9000, 3, 42, false)
	require.ErrorIs(t, err, UnsupportedVersionError)
	require.EqualValues(t, -1, w.ProducerID())
}

func TestUnitWriterOpenPreconditions(t *testing.T) {
	w, err := NewWriter(NewWriterConfig(2, compression.None, 1<<20))
	require.NoError(t, err)
	_, err = w.Records()
	require.ErrorIs(t, err, IllegalStateError)
	_, err = w.Buffer()
	require.ErrorIs(t, err, IllegalStateError)
}

func TestUnitWriterSkip(t *testing.T) {
	w, err := NewWriter(NewWriterConfig(2, compression.None, 1<<20))
	require.NoError(t, err)
	size := w.SizeInBytes()
	w.Skip(10)
	require.EqualValues(t, 10, w.NextOffset())
	require.Equal(t, size, w.SizeInBytes())
	md := w.Append(0, nil, []byte("m1"), nil)
	require.NotNil(t, md)
	require.EqualValues(t, 10, md.Offset)
}

// Everything written comes back: close, re-read through a fresh Reader,
// compare records including headers.
func TestUnitWriterRoundTrip(t *testing.T) {
	faker := gofakeit.New(7)
	type kv struct {
		key, value string
		headers    []record.Header
	}
	var want []kv
	for i := 0; i < 10; i++ {
		want = append(want, kv{
			key:   faker.LetterN(6),
			value: faker.Sentence(8),
			headers: []record.Header{
				{Key: "source", Value: []byte(faker.AppName())},
			},
		})
	}

	cfg := NewWriterConfig(2, compression.Zstd, 1<<20)
	w, err := NewWriter(cfg)
	require.NoError(t, err)
	for _, m := range want {
		require.NotNil(t, w.Append(1569363015859, []byte(m.key), []byte(m.value), m.headers))
	}
	require.NoError(t, w.Close())

	r, err := w.Records()
	require.NoError(t, err)
	b, err := r.NextBatch()
	require.NoError(t, err)
	require.NoError(t, b.Validate())
	require.Equal(t, r.SizeInBytes(), r.ValidBytes())

	codec, _ := compression.ByType(compression.Zstd)
	bodies, err := b.Records(codec)
	require.NoError(t, err)
	require.Len(t, bodies, len(want))
	for i, body := range bodies {
		rec, err := record.Unmarshal(body)
		require.NoError(t, err)
		require.Equal(t, want[i].key, string(rec.Key))
		require.Equal(t, want[i].value, string(rec.Value))
		require.Equal(t, want[i].headers, rec.Headers)
	}
	require.False(t, r.HasNext())
}

func TestUnitWriterLegacyRoundTrip(t *testing.T) {
	w, err := NewWriter(NewWriterConfig(0, compression.None, 1<<20))
	require.NoError(t, err)
	require.NotNil(t, w.Append(0, []byte("k1"), []byte("m1"), nil))
	require.NotNil(t, w.Append(0, nil, []byte("m2"), nil))
	require.NoError(t, w.Close())

	r, err := w.Records()
	require.NoError(t, err)
	n := 0
	for r.HasNext() {
		b, err := r.NextBatch()
		require.NoError(t, err)
		require.NoError(t, b.Validate())
		require.EqualValues(t, 0, b.Magic())
		n++
	}
	require.Equal(t, 2, n)
	require.Equal(t, r.SizeInBytes(), r.ValidBytes())
}
