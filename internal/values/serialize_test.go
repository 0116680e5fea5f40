package values

import (
	"reflect"
	"testing"
)

// TestScalarRoundTrip exercises spec.md §8's round-trip law for every
// scalar variant: deserialize(serialize(v)) == v.
func TestScalarRoundTrip(t *testing.T) {
	cases := []Value{
		Boolean(true),
		Boolean(false),
		Byte(-12),
		Short(-4200),
		Int(123456),
		Long(-98765432100),
		Float(3.5),
		Double(2.718281828),
		String("hello, cottontail"),
		String(""),
		Complex32(complex(float32(1.5), float32(-2.5))),
		Complex64(complex(1.5, -2.5)),
	}

	for _, v := range cases {
		t.Run(v.Type().String(), func(t *testing.T) {
			buf, err := Serialize(v)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			got, err := Deserialize(v.Type(), 1, buf)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !reflect.DeepEqual(got, v) {
				t.Fatalf("round trip mismatch: got %#v, want %#v", got, v)
			}
		})
	}
}

// TestVectorRoundTrip checks that every vector variant's serialised
// length equals LogicalSize * element width and that it decodes back
// to an equal value.
func TestVectorRoundTrip(t *testing.T) {
	const n = 7

	boolVec := make(BooleanVector, n)
	intVec := make(IntVector, n)
	longVec := make(LongVector, n)
	floatVec := make(FloatVector, n)
	doubleVec := make(DoubleVector, n)
	c32Vec := make(Complex32Vector, n)
	c64Vec := make(Complex64Vector, n)
	for i := 0; i < n; i++ {
		boolVec[i] = i%2 == 0
		intVec[i] = int32(i * 7)
		longVec[i] = int64(i * 1000003)
		floatVec[i] = float32(i) + 0.5
		doubleVec[i] = float64(i) * 1.25
		c32Vec[i] = complex(float32(i), float32(-i))
		c64Vec[i] = complex(float64(i), float64(-i))
	}
	bitVec := NewBitVector(13)
	bitVec.Set(0, true)
	bitVec.Set(5, true)
	bitVec.Set(12, true)

	cases := []Vector{boolVec, intVec, longVec, floatVec, doubleVec, c32Vec, c64Vec, bitVec}

	for _, v := range cases {
		t.Run(v.Type().String(), func(t *testing.T) {
			buf, err := Serialize(v)
			if err != nil {
				t.Fatalf("Serialize: %v", err)
			}
			if len(buf) != v.PhysicalSize() {
				t.Fatalf("physical size: got %d, want %d", len(buf), v.PhysicalSize())
			}
			got, err := Deserialize(v.Type(), v.LogicalSize(), buf)
			if err != nil {
				t.Fatalf("Deserialize: %v", err)
			}
			if !reflect.DeepEqual(got, v) {
				t.Fatalf("round trip mismatch: got %#v, want %#v", got, v)
			}
		})
	}
}

func TestVectorSizeMismatch(t *testing.T) {
	buf, _ := Serialize(FloatVector{1, 2, 3})
	if _, err := Deserialize(TypeFloatVector, 4, buf); err == nil {
		t.Fatal("expected vector size mismatch error")
	}
}

func TestParseType(t *testing.T) {
	for t2 := TypeBoolean; t2 <= TypeBitVector; t2++ {
		got, ok := ParseType(t2.String())
		if !ok || got != t2 {
			t.Fatalf("ParseType(%q) = %v, %v", t2.String(), got, ok)
		}
	}
	if _, ok := ParseType("NOPE"); ok {
		t.Fatal("expected ParseType to reject unknown name")
	}
}
