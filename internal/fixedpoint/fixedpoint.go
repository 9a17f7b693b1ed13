// Package fixedpoint encodes real numbers as elements of the ring Z/2^64.
//
// A value x is represented by round(x * 2^FractionalBits) in two's complement,
// stored as uint64 so that addition and multiplication wrap exactly like ring
// arithmetic. Products carry twice the fractional bits and must be truncated
// back, either directly (public values) or share by share (secret-shared
// values).
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
)

const (
	// FractionalBits is the number of bits after the binary point.
	FractionalBits = 16

	// Scale is 2^FractionalBits.
	Scale = 1 << FractionalBits

	// IntegralBits bounds the magnitude of encodable values. The raw
	// product of two encodings fits in 63 bits before truncation only
	// when the product itself is below Bound.
	IntegralBits = 63 - 2*FractionalBits
)

// Bound is the smallest magnitude that cannot be encoded.
var Bound = math.Ldexp(1, IntegralBits)

// Sentinel errors for the numeric traps of the encoding.
var (
	ErrOverflow  = errors.New("fixedpoint: overflow")
	ErrUnderflow = errors.New("fixedpoint: underflow")
	ErrInvalid   = errors.New("fixedpoint: invalid value")
)

// OverflowError reports a value outside the encodable range.
type OverflowError struct {
	Value float64
	Err   error
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%v: %g (encodable magnitude < %g)", e.Err, e.Value, Bound)
}

func (e *OverflowError) Unwrap() error {
	return e.Err
}

// Encode converts x into its ring representation.
//
// Values whose magnitude is below 1/Scale silently become zero.
func Encode(x float64) (uint64, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, &OverflowError{Value: x, Err: ErrInvalid}
	}
	if math.Abs(x) >= Bound {
		return 0, &OverflowError{Value: x, Err: ErrOverflow}
	}
	return uint64(int64(math.Round(x * Scale))), nil
}

// EncodeStrict is Encode but also rejects non-zero values that round to zero.
func EncodeStrict(x float64) (uint64, error) {
	v, err := Encode(x)
	if err != nil {
		return 0, err
	}
	if v == 0 && x != 0 {
		return 0, &OverflowError{Value: x, Err: ErrUnderflow}
	}
	return v, nil
}

// MustEncode is Encode that panics with *OverflowError.
func MustEncode(x float64) uint64 {
	v, err := Encode(x)
	if err != nil {
		panic(err)
	}
	return v
}

// Decode converts a ring element back to a float.
func Decode(v uint64) float64 {
	return float64(int64(v)) / Scale
}

// Truncate divides a double-precision product by Scale with sign.
func Truncate(v uint64) uint64 {
	return uint64(int64(v) >> FractionalBits)
}

// TruncateShares truncates an additively shared double-precision value
// without interaction. Party 0 shifts its share; party 1 shifts the
// negation of its share and negates the result.
//
// The shares reconstruct to Truncate(s0+s1) within one unit in the last
// place, except with probability about |x|/2^63 for the shared value x.
func TruncateShares(s0, s1 uint64) (uint64, uint64) {
	return s0 >> FractionalBits, -((-s1) >> FractionalBits)
}

// EncodeSlice encodes every value of xs.
func EncodeSlice(xs []float64) ([]uint64, error) {
	out := make([]uint64, len(xs))
	for i, x := range xs {
		v, err := Encode(x)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// DecodeSlice decodes every value of vs.
func DecodeSlice(vs []uint64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = Decode(v)
	}
	return out
}
