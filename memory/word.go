package memory

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	BigEndianName    = "big"
	LittleEndianName = "little"
)

// ParseByteOrder returns the binary.ByteOrder named by str.
// Supported names are "big" and "little" (case-insensitive).
func ParseByteOrder(str string) (binary.ByteOrder, error) {
	switch strings.ToLower(str) {
	case BigEndianName, "be", "big-endian":
		return binary.BigEndian, nil
	case LittleEndianName, "le", "little-endian":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("unknown byte order: %q", str)
	}
}

// ByteOrderName returns the name of order as understood by ParseByteOrder.
func ByteOrderName(order binary.ByteOrder) string {
	if order.String() == binary.LittleEndian.String() {
		return LittleEndianName
	}
	return BigEndianName
}

// WordCodecFor returns a WordCodec for words of the specified size
// in bytes. Supported sizes are 2, 4 and 8.
func WordCodecFor(order binary.ByteOrder, size int) (WordCodec, error) {
	if order == nil {
		return WordCodec{}, fmt.Errorf("byte order cannot be nil")
	}

	switch size {
	case 2, 4, 8:
	default:
		return WordCodec{}, fmt.Errorf("unsupported word size: %d", size)
	}

	return WordCodec{
		byteOrder: order,
		size:      size,
	}, nil
}

// WordCodec converts between word values and the bytes
// that a target stores in memory.
type WordCodec struct {
	byteOrder binary.ByteOrder
	size      int
}

// Size returns the word size in bytes.
func (o WordCodec) Size() int {
	return o.size
}

// ByteOrder returns the codec's byte order.
func (o WordCodec) ByteOrder() binary.ByteOrder {
	return o.byteOrder
}

// Encode returns the bytes of value as stored by the target.
// Bits beyond the word size are discarded.
func (o WordCodec) Encode(value uint64) []byte {
	out := make([]byte, o.size)
	switch o.size {
	case 2:
		o.byteOrder.PutUint16(out, uint16(value))
	case 4:
		o.byteOrder.PutUint32(out, uint32(value))
	case 8:
		o.byteOrder.PutUint64(out, value)
	default:
		panic(fmt.Sprintf("unsupported word size: %d", o.size))
	}
	return out
}

// Decode returns the value whose stored representation is b.
// b must be exactly one word long.
func (o WordCodec) Decode(b []byte) uint64 {
	if len(b) != o.size {
		panic(fmt.Sprintf("word must be %d bytes - got %d", o.size, len(b)))
	}

	switch o.size {
	case 2:
		return uint64(o.byteOrder.Uint16(b))
	case 4:
		return uint64(o.byteOrder.Uint32(b))
	case 8:
		return o.byteOrder.Uint64(b)
	default:
		panic(fmt.Sprintf("unsupported word size: %d", o.size))
	}
}
