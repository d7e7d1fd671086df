// Package message implements marshaling and unmarshaling of individual
// legacy format (v0 and v1) messages. A legacy message carries its own IEEE
// CRC; within a message set each message is framed by an 8 byte offset and a
// 4 byte size (the log overhead), which belongs to the set, not the message.
package message

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const (
	// OverheadV0 is the byte size of a v0 message with empty key and value:
	// crc + magic + attributes + key length + value length.
	OverheadV0 = 14
	// OverheadV1 adds the 8 byte timestamp.
	OverheadV1 = 22
)

var CorruptedMessageError = errors.New("message crc does not match bytes")

func New(magic int8, timestamp int64, key, value []byte) *Message {
	return &Message{Magic: magic, Timestamp: timestamp, Key: key, Value: value}
}

type Message struct {
	Crc        uint32
	Magic      int8 // 0 or 1
	Attributes int8 // bits 0-2 are the compression type
	Timestamp  int64
	Key        []byte
	Value      []byte
}

func (m *Message) CompressionType() int16 {
	return int16(m.Attributes) & 0b111
}

// Size of the marshaled message in bytes.
func (m *Message) Size() int {
	n := OverheadV0 + len(m.Key) + len(m.Value)
	if m.Magic > 0 {
		n += 8
	}
	return n
}

// Marshal the message and set its Crc. The crc covers everything from the
// magic byte to the end.
func (m *Message) Marshal() []byte {
	b := make([]byte, 4, m.Size())
	b = append(b, byte(m.Magic), byte(m.Attributes))
	if m.Magic > 0 {
		b = binary.BigEndian.AppendUint64(b, uint64(m.Timestamp))
	}
	b = appendBytes(b, m.Key)
	b = appendBytes(b, m.Value)
	m.Crc = crc32.ChecksumIEEE(b[4:])
	binary.BigEndian.PutUint32(b[0:4], m.Crc)
	return b
}

// appendBytes writes an int32 length followed by the body; nil marshals as
// length -1.
func appendBytes(b, v []byte) []byte {
	if v == nil {
		return binary.BigEndian.AppendUint32(b, 0xffffffff)
	}
	b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
	return append(b, v...)
}

// Unmarshal a single message (no log overhead). Returned key and value are
// subslices of b, valid only as long as b is.
func Unmarshal(b []byte) (*Message, error) {
	if len(b) < OverheadV0 {
		return nil, CorruptedMessageError
	}
	m := &Message{
		Crc:        binary.BigEndian.Uint32(b[0:4]),
		Magic:      int8(b[4]),
		Attributes: int8(b[5]),
	}
	if crc32.ChecksumIEEE(b[4:]) != m.Crc {
		return nil, CorruptedMessageError
	}
	offset := 6
	if m.Magic > 0 {
		if len(b) < OverheadV1 {
			return nil, CorruptedMessageError
		}
		m.Timestamp = int64(binary.BigEndian.Uint64(b[offset:]))
		offset += 8
	}
	var err error
	if m.Key, offset, err = readBytes(b, offset); err != nil {
		return nil, err
	}
	if m.Value, _, err = readBytes(b, offset); err != nil {
		return nil, err
	}
	return m, nil
}

func readBytes(b []byte, offset int) ([]byte, int, error) {
	if len(b)-offset < 4 {
		return nil, 0, CorruptedMessageError
	}
	n := int32(binary.BigEndian.Uint32(b[offset:]))
	offset += 4
	if n < 0 {
		return nil, offset, nil
	}
	if int(n) > len(b)-offset {
		return nil, 0, CorruptedMessageError
	}
	return b[offset : offset+int(n)], offset + int(n), nil
}
