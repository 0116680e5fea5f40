package values

// Scalar value variants. Each is a named primitive implementing Value.

type Boolean bool

func (Boolean) Type() Type      { return TypeBoolean }
func (Boolean) LogicalSize() int { return 1 }

type Byte int8

func (Byte) Type() Type      { return TypeByte }
func (Byte) LogicalSize() int { return 1 }

type Short int16

func (Short) Type() Type      { return TypeShort }
func (Short) LogicalSize() int { return 1 }

type Int int32

func (Int) Type() Type      { return TypeInt }
func (Int) LogicalSize() int { return 1 }

type Long int64

func (Long) Type() Type      { return TypeLong }
func (Long) LogicalSize() int { return 1 }

type Float float32

func (Float) Type() Type      { return TypeFloat }
func (Float) LogicalSize() int { return 1 }

type Double float64

func (Double) Type() Type      { return TypeDouble }
func (Double) LogicalSize() int { return 1 }

type String string

func (String) Type() Type      { return TypeString }
func (String) LogicalSize() int { return 1 }

// Complex32 is a complex number backed by two float32 lanes (real,
// imag), stored as a Go complex64.
type Complex32 complex64

func (Complex32) Type() Type      { return TypeComplex32 }
func (Complex32) LogicalSize() int { return 1 }

// Complex64 is a complex number backed by two float64 lanes.
type Complex64 complex128

func (Complex64) Type() Type      { return TypeComplex64 }
func (Complex64) LogicalSize() int { return 1 }
