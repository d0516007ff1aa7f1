package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Bytable is a declared byte size plus the function that writes exactly that
// many bytes. Callers allocate from Size before writing, so the two must agree.
type Bytable struct {
	size  int
	write func(buf []byte) int
}

// Empty writes nothing.
var Empty = Bytable{}

// New builds a Bytable from a size and a writer returning the written count.
func New(size int, write func(buf []byte) int) Bytable {
	return Bytable{size: size, write: write}
}

func (b Bytable) Size() int { return b.size }

// WriteTo writes into buf, which must hold at least Size bytes, and returns the
// number of bytes actually written.
func (b Bytable) WriteTo(buf []byte) int {
	if b.write == nil {
		return 0
	}
	return b.write(buf)
}

// Append returns b followed by others.
func (b Bytable) Append(others ...Bytable) Bytable {
	return Join(append([]Bytable{b}, others...)...)
}

// Bytes allocates Size bytes and writes into them.
func (b Bytable) Bytes() ([]byte, error) {
	buf := make([]byte, b.size)
	n := b.WriteTo(buf)
	if n != b.size {
		return nil, fmt.Errorf("%w: declared %d, wrote %d", ErrSizeMismatch, b.size, n)
	}
	return buf, nil
}

// Join concatenates parts in order.
func Join(parts ...Bytable) Bytable {
	size := 0
	for _, p := range parts {
		size += p.size
	}
	return Bytable{
		size: size,
		write: func(buf []byte) int {
			off := 0
			for _, p := range parts {
				off += p.WriteTo(buf[off:])
			}
			return off
		},
	}
}

func Bool(v bool) Bytable {
	return New(1, func(buf []byte) int {
		if v {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
		return 1
	})
}

func Uint8(v uint8) Bytable {
	return New(1, func(buf []byte) int {
		buf[0] = v
		return 1
	})
}

func Uint16(v uint16) Bytable {
	return New(2, func(buf []byte) int {
		binary.LittleEndian.PutUint16(buf, v)
		return 2
	})
}

func Uint32(v uint32) Bytable {
	return New(4, func(buf []byte) int {
		binary.LittleEndian.PutUint32(buf, v)
		return 4
	})
}

func Uint64(v uint64) Bytable {
	return New(8, func(buf []byte) int {
		binary.LittleEndian.PutUint64(buf, v)
		return 8
	})
}

func Int32(v int32) Bytable { return Uint32(uint32(v)) }

func Int64(v int64) Bytable { return Uint64(uint64(v)) }

func Float32(v float32) Bytable { return Uint32(math.Float32bits(v)) }

func Float64(v float64) Bytable { return Uint64(math.Float64bits(v)) }

// String writes a u32 byte length followed by the UTF-8 bytes.
func String(v string) Bytable {
	return New(4+len(v), func(buf []byte) int {
		binary.LittleEndian.PutUint32(buf, uint32(len(v)))
		return 4 + copy(buf[4:], v)
	})
}

// Raw writes a u32 length followed by the bytes.
func Raw(v []byte) Bytable {
	return New(4+len(v), func(buf []byte) int {
		binary.LittleEndian.PutUint32(buf, uint32(len(v)))
		return 4 + copy(buf[4:], v)
	})
}

// Uint64s writes a u32 count followed by each value.
func Uint64s(vs []uint64) Bytable {
	return New(4+8*len(vs), func(buf []byte) int {
		binary.LittleEndian.PutUint32(buf, uint32(len(vs)))
		off := 4
		for _, v := range vs {
			binary.LittleEndian.PutUint64(buf[off:], v)
			off += 8
		}
		return off
	})
}

// Float32s writes the values back to back without a count.
func Float32s(vs ...float32) Bytable {
	return New(4*len(vs), func(buf []byte) int {
		off := 0
		for _, v := range vs {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v))
			off += 4
		}
		return off
	})
}
