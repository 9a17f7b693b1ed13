package tensor

import (
	"fmt"
	"math/bits"

	"github.com/born-ml/pond/internal/fixedpoint"
)

// PublicTensor holds fixed-point ring values known to every party.
type PublicTensor struct {
	shape  Shape
	values []uint64
}

// NewPublic encodes data with the given shape.
func NewPublic(data []float64, shape Shape) (*PublicTensor, error) {
	if err := checkData(len(data), shape); err != nil {
		return nil, err
	}
	values, err := fixedpoint.EncodeSlice(data)
	if err != nil {
		return nil, err
	}
	return &PublicTensor{shape: shape.Clone(), values: values}, nil
}

// Kind implements Tensor.
func (t *PublicTensor) Kind() Kind { return Public }

// Shape implements Tensor.
func (t *PublicTensor) Shape() Shape { return t.shape }

// Values returns the encoded ring elements.
func (t *PublicTensor) Values() []uint64 { return t.values }

// Add implements Tensor.
func (t *PublicTensor) Add(other Tensor) Tensor { return binary(t, other, "add") }

// Sub implements Tensor.
func (t *PublicTensor) Sub(other Tensor) Tensor { return binary(t, other, "sub") }

// Mul implements Tensor.
func (t *PublicTensor) Mul(other Tensor) Tensor { return binary(t, other, "mul") }

// Dot implements Tensor.
func (t *PublicTensor) Dot(other Tensor) Tensor { return dot(t, other) }

func (t *PublicTensor) binary(o *PublicTensor, op string) Tensor {
	var f func(x, y uint64) uint64
	switch op {
	case "add":
		f = func(x, y uint64) uint64 { return x + y }
	case "sub":
		f = func(x, y uint64) uint64 { return x - y }
	case "mul":
		f = mulTruncate
	default:
		panic("tensor: unknown op " + op)
	}
	values, shape := zipWith(t.values, t.shape, o.values, o.shape, f)
	return &PublicTensor{shape: shape, values: values}
}

// mulTruncate multiplies two encodings and rescales, trapping on products
// that do not fit the ring.
func mulTruncate(x, y uint64) uint64 {
	ax, negX := abs64(x)
	ay, negY := abs64(y)
	hi, lo := bits.Mul64(ax, ay)
	if hi != 0 || lo>>63 != 0 {
		panic(&fixedpoint.OverflowError{
			Value: fixedpoint.Decode(x) * fixedpoint.Decode(y),
			Err:   fixedpoint.ErrOverflow,
		})
	}
	p := lo >> fixedpoint.FractionalBits
	if negX != negY {
		// Floor toward -inf to match Truncate on the signed product.
		if lo&(fixedpoint.Scale-1) != 0 {
			p++
		}
		return -p
	}
	return p
}

func abs64(v uint64) (uint64, bool) {
	if int64(v) < 0 {
		return -v, true
	}
	return v, false
}

func (t *PublicTensor) dot(o *PublicTensor, m, k, n int) Tensor {
	values := matmul(t.values, o.values, m, k, n)
	for i, v := range values {
		values[i] = fixedpoint.Truncate(v)
	}
	return &PublicTensor{shape: Shape{m, n}, values: values}
}

// Neg implements Tensor.
func (t *PublicTensor) Neg() Tensor {
	out := make([]uint64, len(t.values))
	for i, v := range t.values {
		out[i] = -v
	}
	return &PublicTensor{shape: t.shape, values: out}
}

// Sum implements Tensor.
func (t *PublicTensor) Sum(axis int, keepDims bool) Tensor {
	values, shape := sumAxis(t.values, t.shape, axis, keepDims)
	return &PublicTensor{shape: shape, values: values}
}

// Reshape implements Tensor.
func (t *PublicTensor) Reshape(dims ...int) Tensor {
	return &PublicTensor{shape: reshape(t.shape, dims), values: t.values}
}

// Transpose implements Tensor.
func (t *PublicTensor) Transpose(perm ...int) Tensor {
	values, shape := permute(t.values, t.shape, perm)
	return &PublicTensor{shape: shape, values: values}
}

// Rows implements Tensor.
func (t *PublicTensor) Rows(start, end int) Tensor {
	values, shape := rows(t.values, t.shape, start, end)
	return &PublicTensor{shape: shape, values: values}
}

// Im2Col implements Tensor.
func (t *PublicTensor) Im2Col(c Conv) Tensor {
	values, shape := im2col(t.values, t.shape, c)
	return &PublicTensor{shape: shape, values: values}
}

// Col2Im implements Tensor.
func (t *PublicTensor) Col2Im(c Conv, imShape Shape) Tensor {
	return &PublicTensor{shape: imShape.Clone(), values: col2im(t.values, t.shape, c, imShape)}
}

// Reveal implements Tensor.
func (t *PublicTensor) Reveal() Tensor { return t }

// Float64s implements Tensor.
func (t *PublicTensor) Float64s() []float64 { return fixedpoint.DecodeSlice(t.values) }

// Decode converts the tensor back to a NativeTensor.
func (t *PublicTensor) Decode() *NativeTensor {
	return &NativeTensor{shape: t.shape, data: t.Float64s()}
}

func (t *PublicTensor) String() string {
	return fmt.Sprintf("PublicTensor%v", []int(t.shape))
}
