// Package compression implements the record batch compression codecs. The
// codec ids are the values carried in batch attribute bits 0-2.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// https://kafka.apache.org/documentation/#recordbatch
const (
	None = iota
	Gzip
	Snappy
	Lz4
	Zstd
)

// Codec compresses and decompresses record batch payloads. Implementations
// must be safe for concurrent use.
type Codec interface {
	Compress([]byte) ([]byte, error)
	Decompress([]byte) ([]byte, error)
	Type() int16
}

// ByType resolves a codec id from batch attributes (or writer configuration)
// to its implementation.
func ByType(t int16) (Codec, error) {
	switch t {
	case None:
		return &Nop{}, nil
	case Gzip:
		return &GzipCodec{}, nil
	case Snappy:
		return &SnappyCodec{}, nil
	case Lz4:
		return &Lz4Codec{}, nil
	case Zstd:
		return &ZstdCodec{}, nil
	}
	return nil, fmt.Errorf("unknown compression type %d", t)
}

// Nop is the identity codec for uncompressed batches.
type Nop struct{}

func (*Nop) Compress(b []byte) ([]byte, error)   { return b, nil }
func (*Nop) Decompress(b []byte) ([]byte, error) { return b, nil }
func (*Nop) Type() int16                         { return None }

type GzipCodec struct{}

func (*GzipCodec) Compress(b []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := gzip.NewWriter(buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (*GzipCodec) Decompress(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (*GzipCodec) Type() int16 { return Gzip }

type SnappyCodec struct{}

func (*SnappyCodec) Compress(b []byte) ([]byte, error) {
	return snappy.Encode(nil, b), nil
}

func (*SnappyCodec) Decompress(b []byte) ([]byte, error) {
	return snappy.Decode(nil, b)
}

func (*SnappyCodec) Type() int16 { return Snappy }

// lz4Writers reuses writers across batches.
var lz4Writers = sync.Pool{
	New: func() any { return lz4.NewWriter(nil) },
}

type Lz4Codec struct{}

func (*Lz4Codec) Compress(b []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := lz4Writers.Get().(*lz4.Writer)
	defer lz4Writers.Put(w)
	w.Reset(buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (*Lz4Codec) Decompress(b []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(lz4.NewReader(bytes.NewReader(b))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (*Lz4Codec) Type() int16 { return Lz4 }

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

type ZstdCodec struct{}

func (*ZstdCodec) Compress(b []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(b, nil), nil
}

func (*ZstdCodec) Decompress(b []byte) ([]byte, error) {
	return zstdDecoder.DecodeAll(b, nil)
}

func (*ZstdCodec) Type() int16 { return Zstd }
