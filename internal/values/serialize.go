// Binary serialization for every scalar and vector Value variant.
//
// Every layout is fixed-width except STRING, which is length-prefixed
// (4-byte little-endian length followed by UTF-8 bytes) the way
// folio's own records carry a variable-length _d field — but here as
// raw bytes rather than JSON text, since the column store has no use
// for a self-describing text format on its hot path (see DESIGN.md).
package values

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cottontaildb/cottontail/internal/cterr"
)

// Serialize encodes v to its on-disk byte representation.
func Serialize(v Value) ([]byte, error) {
	switch x := v.(type) {
	case Boolean:
		if x {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case Byte:
		return []byte{byte(x)}, nil
	case Short:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(x))
		return buf, nil
	case Int:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(x))
		return buf, nil
	case Long:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(x))
		return buf, nil
	case Float:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(x)))
		return buf, nil
	case Double:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(float64(x)))
		return buf, nil
	case String:
		b := []byte(x)
		buf := make([]byte, 4+len(b))
		binary.LittleEndian.PutUint32(buf[:4], uint32(len(b)))
		copy(buf[4:], b)
		return buf, nil
	case Complex32:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(real(x)))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(imag(x)))
		return buf, nil
	case Complex64:
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(real(x)))
		binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(imag(x)))
		return buf, nil
	case BooleanVector:
		buf := make([]byte, len(x))
		for i, b := range x {
			if b {
				buf[i] = 1
			}
		}
		return buf, nil
	case IntVector:
		buf := make([]byte, 4*len(x))
		for i, e := range x {
			binary.LittleEndian.PutUint32(buf[i*4:], uint32(e))
		}
		return buf, nil
	case LongVector:
		buf := make([]byte, 8*len(x))
		for i, e := range x {
			binary.LittleEndian.PutUint64(buf[i*8:], uint64(e))
		}
		return buf, nil
	case FloatVector:
		buf := make([]byte, 4*len(x))
		for i, e := range x {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(e))
		}
		return buf, nil
	case DoubleVector:
		buf := make([]byte, 8*len(x))
		for i, e := range x {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(e))
		}
		return buf, nil
	case Complex32Vector:
		buf := make([]byte, 8*len(x))
		for i, e := range x {
			binary.LittleEndian.PutUint32(buf[i*8:], math.Float32bits(real(e)))
			binary.LittleEndian.PutUint32(buf[i*8+4:], math.Float32bits(imag(e)))
		}
		return buf, nil
	case Complex64Vector:
		buf := make([]byte, 16*len(x))
		for i, e := range x {
			binary.LittleEndian.PutUint64(buf[i*16:], math.Float64bits(real(e)))
			binary.LittleEndian.PutUint64(buf[i*16+8:], math.Float64bits(imag(e)))
		}
		return buf, nil
	case BitVector:
		buf := make([]byte, len(x.Bits))
		copy(buf, x.Bits)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: serialize: unknown value type %T", cterr.ErrTypeMismatch, v)
	}
}

// Deserialize decodes data back into a Value of the given type. n is
// the declared logical size (element count) for vector types; it is
// ignored for scalars and validated against data's length for
// vectors, surfacing cterr.ErrVectorSizeMismatch on mismatch.
func Deserialize(t Type, n int, data []byte) (Value, error) {
	switch t {
	case TypeBoolean:
		return Boolean(data[0] != 0), nil
	case TypeByte:
		return Byte(int8(data[0])), nil
	case TypeShort:
		return Short(int16(binary.LittleEndian.Uint16(data))), nil
	case TypeInt:
		return Int(int32(binary.LittleEndian.Uint32(data))), nil
	case TypeLong:
		return Long(int64(binary.LittleEndian.Uint64(data))), nil
	case TypeFloat:
		return Float(math.Float32frombits(binary.LittleEndian.Uint32(data))), nil
	case TypeDouble:
		return Double(math.Float64frombits(binary.LittleEndian.Uint64(data))), nil
	case TypeString:
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: deserialize STRING: short header", cterr.ErrCorruptHeader)
		}
		n := binary.LittleEndian.Uint32(data[:4])
		if uint32(len(data)-4) < n {
			return nil, fmt.Errorf("%w: deserialize STRING: short body", cterr.ErrCorruptHeader)
		}
		return String(data[4 : 4+n]), nil
	case TypeComplex32:
		re := math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
		im := math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
		return Complex32(complex(re, im)), nil
	case TypeComplex64:
		re := math.Float64frombits(binary.LittleEndian.Uint64(data[0:8]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(data[8:16]))
		return Complex64(complex(re, im)), nil
	case TypeBooleanVector:
		if err := checkVectorSize(t, n, len(data), 1); err != nil {
			return nil, err
		}
		out := make(BooleanVector, n)
		for i := range out {
			out[i] = data[i] != 0
		}
		return out, nil
	case TypeIntVector:
		if err := checkVectorSize(t, n, len(data), 4); err != nil {
			return nil, err
		}
		out := make(IntVector, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out, nil
	case TypeLongVector:
		if err := checkVectorSize(t, n, len(data), 8); err != nil {
			return nil, err
		}
		out := make(LongVector, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return out, nil
	case TypeFloatVector:
		if err := checkVectorSize(t, n, len(data), 4); err != nil {
			return nil, err
		}
		out := make(FloatVector, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		return out, nil
	case TypeDoubleVector:
		if err := checkVectorSize(t, n, len(data), 8); err != nil {
			return nil, err
		}
		out := make(DoubleVector, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
		return out, nil
	case TypeComplex32Vector:
		if err := checkVectorSize(t, n, len(data), 8); err != nil {
			return nil, err
		}
		out := make(Complex32Vector, n)
		for i := range out {
			re := math.Float32frombits(binary.LittleEndian.Uint32(data[i*8:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:]))
			out[i] = complex(re, im)
		}
		return out, nil
	case TypeComplex64Vector:
		if err := checkVectorSize(t, n, len(data), 16); err != nil {
			return nil, err
		}
		out := make(Complex64Vector, n)
		for i := range out {
			re := math.Float64frombits(binary.LittleEndian.Uint64(data[i*16:]))
			im := math.Float64frombits(binary.LittleEndian.Uint64(data[i*16+8:]))
			out[i] = complex(re, im)
		}
		return out, nil
	case TypeBitVector:
		want := (n + 7) / 8
		if len(data) < want {
			return nil, fmt.Errorf("%w: BIT_VEC wants %d bytes, got %d", cterr.ErrVectorSizeMismatch, want, len(data))
		}
		buf := make([]byte, want)
		copy(buf, data[:want])
		return BitVector{Bits: buf, N: n}, nil
	default:
		return nil, fmt.Errorf("%w: deserialize: unknown type %v", cterr.ErrTypeMismatch, t)
	}
}

func checkVectorSize(t Type, n, dataLen, width int) error {
	if dataLen != n*width {
		return fmt.Errorf("%w: %s wants %d bytes for %d elements, got %d", cterr.ErrVectorSizeMismatch, t, n*width, n, dataLen)
	}
	return nil
}

// FixedSize reports the byte length Serialize produces for a scalar
// type, or 0 for STRING and vector types (whose length depends on
// content/LogicalSize).
func FixedSize(t Type) int {
	switch t {
	case TypeBoolean, TypeByte:
		return 1
	case TypeShort:
		return 2
	case TypeInt, TypeFloat:
		return 4
	case TypeLong, TypeDouble, TypeComplex32:
		return 8
	case TypeComplex64:
		return 16
	default:
		return 0
	}
}
