package tdms

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"slices"
	"time"
	"unicode/utf8"
)

// DataType identifies one of the TDMS raw-type codes (type registry, C1).
// It is used both as the raw sample type of a channel and as the type tag of
// a property value.
type DataType uint32

const (
	DataTypeVoid DataType = iota
	DataTypeInt8
	DataTypeInt16
	DataTypeInt32
	DataTypeInt64
	DataTypeUint8
	DataTypeUint16
	DataTypeUint32
	DataTypeUint64
	DataTypeFloat32
	DataTypeFloat64
	DataTypeFloat128
	DataTypeFloat32WithUnit DataType = 0x19
	DataTypeFloat64WithUnit DataType = 0x1A
	DataTypeFloat128WithUnit DataType = 0x1B
	DataTypeString          DataType = 0x20
	DataTypeBool            DataType = 0x21
	DataTypeTimestamp       DataType = 0x44
	DataTypeFixedPoint      DataType = 0x4F
	DataTypeComplex64       DataType = 0x08000c
	DataTypeComplex128      DataType = 0x10000d
	DataTypeDAQmxRawData    DataType = 0xFFFFFFFF
)

// Size returns the fixed on-disk byte size of dt. Querying the size of
// [DataTypeString] is an error, since strings are variable-length
// (spec.md §3: "Querying the fixed size of the string type is an error").
func (dt DataType) Size() (int, error) {
	switch dt {
	case DataTypeString:
		return 0, ErrStringHasNoFixedSize
	case DataTypeVoid, DataTypeDAQmxRawData:
		return 0, nil
	case DataTypeInt8, DataTypeUint8, DataTypeBool:
		return 1, nil
	case DataTypeInt16, DataTypeUint16:
		return 2, nil
	case DataTypeInt32, DataTypeUint32, DataTypeFloat32, DataTypeFloat32WithUnit, DataTypeFixedPoint:
		return 4, nil
	case DataTypeInt64, DataTypeUint64, DataTypeFloat64, DataTypeFloat64WithUnit, DataTypeComplex64:
		return 8, nil
	case DataTypeFloat128, DataTypeFloat128WithUnit, DataTypeComplex128, DataTypeTimestamp:
		return 16, nil
	default:
		return 0, fmt.Errorf("%w: 0x%x", ErrUnsupportedType, uint32(dt))
	}
}

// rawSize is the internal counterpart to Size used by the loader: it never
// errors, reporting 0 for the variable-length string type so that callers
// already special-casing strings (chunk byte-offset tables) have a sentinel
// to branch on without having to thread an error through the hot read path.
func (dt DataType) rawSize() int {
	size, err := dt.Size()
	if err != nil {
		return 0
	}
	return size
}

// String implements [fmt.Stringer], returning the human-readable name of dt.
func (dt DataType) String() string {
	switch dt {
	case DataTypeVoid:
		return "Void"
	case DataTypeInt8:
		return "Int8"
	case DataTypeInt16:
		return "Int16"
	case DataTypeInt32:
		return "Int32"
	case DataTypeInt64:
		return "Int64"
	case DataTypeUint8:
		return "Uint8"
	case DataTypeUint16:
		return "Uint16"
	case DataTypeUint32:
		return "Uint32"
	case DataTypeUint64:
		return "Uint64"
	case DataTypeFloat32, DataTypeFloat32WithUnit:
		return "Float32"
	case DataTypeFloat64, DataTypeFloat64WithUnit:
		return "Float64"
	case DataTypeFloat128, DataTypeFloat128WithUnit:
		return "Float128"
	case DataTypeString:
		return "String"
	case DataTypeBool:
		return "Boolean"
	case DataTypeTimestamp:
		return "Timestamp"
	case DataTypeComplex64:
		return "ComplexFloat32"
	case DataTypeComplex128:
		return "ComplexFloat64"
	case DataTypeFixedPoint:
		return "FixedPoint"
	case DataTypeDAQmxRawData:
		return "DAQmxRawData"
	default:
		return fmt.Sprintf("Unknown(0x%X)", uint32(dt))
	}
}

// tdmsEpoch is the TDMS/LabVIEW epoch (1904-01-01T00:00:00 UTC) expressed as
// a Unix timestamp offset: add it to a TDMS "seconds" field to get Unix time.
const tdmsEpoch int64 = -2_082_844_800

func ptr[T any](value T) *T { return &value }

// tdsValue is the internal per-type decode primitive backing [DataType].
// Implementers know their own fixed size (where defined) and how to decode
// themselves from a reader under an explicit byte order.
type tdsValue interface {
	Size() int
	Read(reader io.Reader, byteOrder binary.ByteOrder) error
}

// newTDSValue returns a zero-valued decode primitive for the given raw type
// code, or [ErrUnsupportedType] if the code isn't one of the 22 known types.
func newTDSValue(typeCode DataType) (tdsValue, error) {
	switch typeCode {
	case DataTypeVoid:
		return &tdsVoid{}, nil
	case DataTypeInt8:
		return ptr(tdsInt8(0)), nil
	case DataTypeInt16:
		return ptr(tdsInt16(0)), nil
	case DataTypeInt32:
		return ptr(tdsInt32(0)), nil
	case DataTypeInt64:
		return ptr(tdsInt64(0)), nil
	case DataTypeUint8:
		return ptr(tdsUint8(0)), nil
	case DataTypeUint16:
		return ptr(tdsUint16(0)), nil
	case DataTypeUint32:
		return ptr(tdsUint32(0)), nil
	case DataTypeUint64:
		return ptr(tdsUint64(0)), nil
	case DataTypeFloat32, DataTypeFloat32WithUnit:
		return ptr(tdsFloat32(0)), nil
	case DataTypeFloat64, DataTypeFloat64WithUnit:
		return ptr(tdsFloat64(0)), nil
	case DataTypeFloat128, DataTypeFloat128WithUnit:
		return &tdsFloat128{}, nil
	case DataTypeString:
		return ptr(tdsString("")), nil
	case DataTypeBool:
		return ptr(tdsBool(false)), nil
	case DataTypeTimestamp:
		return &tdsTimestamp{}, nil
	case DataTypeFixedPoint:
		return &tdsFixedPoint{}, nil
	case DataTypeComplex64:
		return ptr(tdsComplex64(0 + 0i)), nil
	case DataTypeComplex128:
		return ptr(tdsComplex128(0 + 0i)), nil
	case DataTypeDAQmxRawData:
		return &tdsDAQmxRawData{}, nil
	default:
		return nil, fmt.Errorf("%w: 0x%x", ErrUnsupportedType, uint32(typeCode))
	}
}

// readPropertyValue decodes a single property value of the given type from
// reader, returning it as the plain Go value that [Property.Value] exposes.
func readPropertyValue(typeCode DataType, reader io.Reader, byteOrder binary.ByteOrder) (any, error) {
	v, err := newTDSValue(typeCode)
	if err != nil {
		return nil, err
	}

	if err := v.Read(reader, byteOrder); err != nil {
		return nil, err
	}

	switch val := v.(type) {
	case *tdsVoid:
		return nil, nil
	case *tdsInt8:
		return int8(*val), nil
	case *tdsInt16:
		return int16(*val), nil
	case *tdsInt32:
		return int32(*val), nil
	case *tdsInt64:
		return int64(*val), nil
	case *tdsUint8:
		return uint8(*val), nil
	case *tdsUint16:
		return uint16(*val), nil
	case *tdsUint32:
		return uint32(*val), nil
	case *tdsUint64:
		return uint64(*val), nil
	case *tdsFloat32:
		return float32(*val), nil
	case *tdsFloat64:
		return float64(*val), nil
	case *tdsFloat128:
		return Float128(*val), nil
	case *tdsString:
		return string(*val), nil
	case *tdsBool:
		return bool(*val), nil
	case *tdsTimestamp:
		return Timestamp{Seconds: val.seconds, Fraction: val.fraction}, nil
	case *tdsComplex64:
		return complex64(*val), nil
	case *tdsComplex128:
		return complex128(*val), nil
	case *tdsFixedPoint, *tdsDAQmxRawData:
		return nil, fmt.Errorf("%w: %s properties are not decodable", ErrUnsupportedType, typeCode)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
}

type tdsVoid struct{}

func (t tdsVoid) Size() int { return 0 }

func (t tdsVoid) Read(reader io.Reader, byteOrder binary.ByteOrder) error { return nil }

type tdsInt8 int8

func (t tdsInt8) Size() int { return 1 }

func (t *tdsInt8) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	// Byte order doesn't matter here because it's only 1 byte long.
	*t = tdsInt8(int8(valBytes[0]))
	return nil
}

type tdsInt16 int16

func (t tdsInt16) Size() int { return 2 }

func (t *tdsInt16) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsInt16(int16(byteOrder.Uint16(valBytes)))
	return nil
}

type tdsInt32 int32

func (t tdsInt32) Size() int { return 4 }

func (t *tdsInt32) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsInt32(int32(byteOrder.Uint32(valBytes)))
	return nil
}

type tdsInt64 int64

func (t tdsInt64) Size() int { return 8 }

func (t *tdsInt64) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsInt64(int64(byteOrder.Uint64(valBytes)))
	return nil
}

type tdsUint8 uint8

func (t tdsUint8) Size() int { return 1 }

func (t *tdsUint8) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsUint8(valBytes[0])
	return nil
}

type tdsUint16 uint16

func (t tdsUint16) Size() int { return 2 }

func (t *tdsUint16) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsUint16(byteOrder.Uint16(valBytes))
	return nil
}

type tdsUint32 uint32

func (t tdsUint32) Size() int { return 4 }

func (t *tdsUint32) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsUint32(byteOrder.Uint32(valBytes))
	return nil
}

type tdsUint64 uint64

func (t tdsUint64) Size() int { return 8 }

func (t *tdsUint64) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsUint64(byteOrder.Uint64(valBytes))
	return nil
}

type tdsFloat32 float32

func (t tdsFloat32) Size() int { return 4 }

func (t *tdsFloat32) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsFloat32(math.Float32frombits(byteOrder.Uint32(valBytes)))
	return nil
}

type tdsFloat64 float64

func (t tdsFloat64) Size() int { return 8 }

func (t *tdsFloat64) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsFloat64(math.Float64frombits(byteOrder.Uint64(valBytes)))
	return nil
}

type tdsFloat128 Float128

func (t tdsFloat128) Size() int { return 16 }

// Read decodes a 128-bit IEEE-754 quad-precision float. LabVIEW can hold
// extended precision numbers in various widths internally, but TDMS always
// standardises on the 128-bit on-disk representation.
func (t *tdsFloat128) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, t.Size())
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsFloat128(parseQuad(valBytes, byteOrder))
	return nil
}

// Float128 holds a 128-bit IEEE-754 quad-precision float normalised to
// big-endian byte order, independent of the order it was read in. big.Float
// cannot represent NaN, so NaN-ness is tracked separately; use [Float128.IsNaN]
// before trusting [Float128.AsBigFloat] or [Float128.Float64].
type Float128 struct {
	raw [16]byte
	nan bool
}

// IsNaN reports whether the value is not-a-number.
func (f Float128) IsNaN() bool {
	return f.nan
}

// AsBigFloat converts f to a 113-bit precision [big.Float]. Returns nil if f
// is NaN.
func (f Float128) AsBigFloat() *big.Float {
	if f.nan {
		return nil
	}
	return decodeQuadBigEndian(f.raw[:])
}

// Float64 converts f to a float64, losing precision. Returns [math.NaN] if f
// is NaN. To avoid losing precision, use [Float128.AsBigFloat] instead.
func (f Float128) Float64() float64 {
	if f.nan {
		return math.NaN()
	}
	v, _ := f.AsBigFloat().Float64()
	return v
}

// parseQuad decodes a 128-bit IEEE 754 quad precision float from 16 bytes in
// the given byte order, returning a byte-order-independent [Float128].
func parseQuad(data []byte, order binary.ByteOrder) Float128 {
	be := make([]byte, 16)
	copy(be, data)
	if order == binary.LittleEndian {
		slices.Reverse(be)
	}

	exponent := (uint16(be[0]&0x7F) << 8) | uint16(be[1])
	mantissaIsZero := isZeroMantissa(be[2:16])

	var f Float128
	copy(f.raw[:], be)
	f.nan = exponent == 0x7FFF && !mantissaIsZero
	return f
}

// decodeQuadBigEndian converts 16 big-endian IEEE-754 quad-precision bytes
// (known not to be NaN) into a 113-bit precision [big.Float].
func decodeQuadBigEndian(data []byte) *big.Float {
	sign := (data[0] >> 7) & 1

	exponent := uint16(data[0]&0x7F) << 8
	exponent |= uint16(data[1])

	mantissaBits := data[2:16]

	result := new(big.Float).SetPrec(113)

	shiftAmount := new(big.Int).Lsh(big.NewInt(1), 112)

	if exponent == 0x7FFF {
		// Mantissa must be zero here - NaN is filtered out by the caller.
		result.SetInf(sign == 1)
		return result
	}

	if exponent == 0 {
		if isZeroMantissa(mantissaBits) {
			result.SetInt64(0)
			return result
		}

		// Subnormal number: exponent is -16382, implicit leading bit is 0.
		mantissaValue := mantissaToBigInt(mantissaBits)
		mantissaFloat := new(big.Float).SetInt(mantissaValue)
		mantissaFloat.Quo(mantissaFloat, new(big.Float).SetInt(shiftAmount))

		power := new(big.Float).SetMantExp(big.NewFloat(1), -16382)
		result.Mul(mantissaFloat, power)

		if sign == 1 {
			result.Neg(result)
		}

		return result
	}

	// Normal number: implicit leading bit is 1.
	exponentValue := int(exponent) - 16383
	mantissaValue := mantissaToBigInt(mantissaBits)

	mantissaFloat := new(big.Float).SetInt(mantissaValue)
	mantissaFloat.Quo(mantissaFloat, new(big.Float).SetInt(shiftAmount))
	mantissaFloat.Add(mantissaFloat, big.NewFloat(1))

	// Apply exponent via Mul rather than SetMantExp directly on result, to
	// avoid clobbering the precision already set on result.
	power := new(big.Float).SetMantExp(big.NewFloat(1), exponentValue)
	result.Mul(mantissaFloat, power)

	if sign == 1 {
		result.Neg(result)
	}

	return result
}

func isZeroMantissa(mantissaBits []byte) bool {
	for _, b := range mantissaBits {
		if b != 0 {
			return false
		}
	}
	return true
}

func mantissaToBigInt(mantissaBits []byte) *big.Int {
	result := new(big.Int)
	for _, b := range mantissaBits {
		result.Lsh(result, 8)
		result.Or(result, new(big.Int).SetInt64(int64(b)))
	}
	return result
}

type tdsString string

func (t tdsString) Size() int { return len(string(t)) }

func (t *tdsString) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	sizeBytes := make([]byte, 4)
	if _, err := io.ReadFull(reader, sizeBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	size := int(byteOrder.Uint32(sizeBytes))

	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}

	*t = tdsString(string(data))
	return nil
}

type tdsBool bool

func (t tdsBool) Size() int { return 1 }

func (t *tdsBool) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	boolBytes := make([]byte, 1)
	if _, err := io.ReadFull(reader, boolBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	*t = tdsBool(boolBytes[0] != 0)
	return nil
}

// Timestamp is a TDMS timestamp: a count of whole seconds since the LabVIEW
// epoch (1904-01-01T00:00:00 UTC) plus a sub-second fraction in units of
// 2⁻⁶⁴ seconds.
type Timestamp struct {
	Seconds  int64
	Fraction uint64
}

// AsTime converts t to a [time.Time]. This necessarily loses precision: TDMS
// retains roughly 1.8×10¹⁰ times more sub-second resolution than time.Time's
// nanoseconds.
func (t Timestamp) AsTime() time.Time {
	ns := new(big.Int).SetUint64(t.Fraction)
	ns.Mul(ns, big.NewInt(1e9))
	ns.Rsh(ns, 64)
	return time.Unix(t.Seconds+tdmsEpoch, ns.Int64())
}

type tdsTimestamp struct {
	seconds  int64
	fraction uint64
}

func (t tdsTimestamp) Size() int { return 16 }

func (t *tdsTimestamp) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	timeBytes := make([]byte, 16)
	if _, err := io.ReadFull(reader, timeBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	t.seconds = int64(byteOrder.Uint64(timeBytes))
	t.fraction = byteOrder.Uint64(timeBytes[8:])
	return nil
}

// tdsFixedPoint captures the raw 4-byte fixed-point sample, per spec.md §3's
// fixed_size(4) for the type. NI has never documented the fixed-point binary
// layout, so the value is retained opaquely rather than interpreted.
type tdsFixedPoint struct {
	raw [4]byte
}

func (t tdsFixedPoint) Size() int { return 4 }

func (t *tdsFixedPoint) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	if _, err := io.ReadFull(reader, t.raw[:]); err != nil {
		return errors.Join(ErrReadFailed, err)
	}
	return nil
}

type tdsComplex64 complex64

func (t tdsComplex64) Size() int { return 8 }

func (t *tdsComplex64) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, 8)
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	re := math.Float32frombits(byteOrder.Uint32(valBytes))
	im := math.Float32frombits(byteOrder.Uint32(valBytes[4:]))

	*t = tdsComplex64(complex(re, im))
	return nil
}

type tdsComplex128 complex128

func (t tdsComplex128) Size() int { return 16 }

func (t *tdsComplex128) Read(reader io.Reader, byteOrder binary.ByteOrder) error {
	valBytes := make([]byte, 16)
	if _, err := io.ReadFull(reader, valBytes); err != nil {
		return errors.Join(ErrReadFailed, err)
	}

	re := math.Float64frombits(byteOrder.Uint64(valBytes))
	im := math.Float64frombits(byteOrder.Uint64(valBytes[8:]))

	*t = tdsComplex128(complex(re, im))
	return nil
}

// tdsDAQmxRawData is a marker: the "DAQmx raw data" code doesn't identify a
// real sample layout itself, it signals that the actual per-scaler types are
// found in the object's DAQmx descriptor (see [daqmxScaler]).
type tdsDAQmxRawData struct{}

func (t tdsDAQmxRawData) Size() int { return 0 }

func (t *tdsDAQmxRawData) Read(reader io.Reader, byteOrder binary.ByteOrder) error { return nil }
