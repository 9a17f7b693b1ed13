package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/pond/internal/fixedpoint"
)

// NativeTensor holds float64 values computed in the clear.
type NativeTensor struct {
	shape Shape
	data  []float64
}

// NewNative wraps data (not copied) with the given shape.
func NewNative(data []float64, shape Shape) (*NativeTensor, error) {
	if err := checkData(len(data), shape); err != nil {
		return nil, err
	}
	return &NativeTensor{shape: shape.Clone(), data: data}, nil
}

// Scalar returns a rank-0 native tensor that broadcasts against any shape.
func Scalar(v float64) *NativeTensor {
	return &NativeTensor{shape: Shape{}, data: []float64{v}}
}

// Zeros returns a native tensor of zeros.
func Zeros(shape Shape) *NativeTensor {
	return &NativeTensor{shape: shape.Clone(), data: make([]float64, shape.NumElements())}
}

// Full returns a native tensor filled with v.
func Full(shape Shape, v float64) *NativeTensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Kind implements Tensor.
func (t *NativeTensor) Kind() Kind { return Native }

// Shape implements Tensor.
func (t *NativeTensor) Shape() Shape { return t.shape }

// Data returns the backing slice.
func (t *NativeTensor) Data() []float64 { return t.data }

// Add implements Tensor.
func (t *NativeTensor) Add(other Tensor) Tensor { return binary(t, other, "add") }

// Sub implements Tensor.
func (t *NativeTensor) Sub(other Tensor) Tensor { return binary(t, other, "sub") }

// Mul implements Tensor.
func (t *NativeTensor) Mul(other Tensor) Tensor { return binary(t, other, "mul") }

// Dot implements Tensor.
func (t *NativeTensor) Dot(other Tensor) Tensor { return dot(t, other) }

func (t *NativeTensor) binary(o *NativeTensor, op string) Tensor {
	var f func(x, y float64) float64
	switch op {
	case "add":
		f = func(x, y float64) float64 { return x + y }
	case "sub":
		f = func(x, y float64) float64 { return x - y }
	case "mul":
		f = func(x, y float64) float64 { return x * y }
	default:
		panic("tensor: unknown op " + op)
	}
	data, shape := zipWith(t.data, t.shape, o.data, o.shape, f)
	return &NativeTensor{shape: shape, data: data}
}

func (t *NativeTensor) dot(o *NativeTensor, m, k, n int) Tensor {
	a := mat.NewDense(m, k, t.data)
	b := mat.NewDense(k, n, o.data)
	var c mat.Dense
	c.Mul(a, b)
	return &NativeTensor{shape: Shape{m, n}, data: c.RawMatrix().Data}
}

// Neg implements Tensor.
func (t *NativeTensor) Neg() Tensor {
	out := make([]float64, len(t.data))
	for i, v := range t.data {
		out[i] = -v
	}
	return &NativeTensor{shape: t.shape, data: out}
}

// Sum implements Tensor.
func (t *NativeTensor) Sum(axis int, keepDims bool) Tensor {
	data, shape := sumAxis(t.data, t.shape, axis, keepDims)
	return &NativeTensor{shape: shape, data: data}
}

// Reshape implements Tensor.
func (t *NativeTensor) Reshape(dims ...int) Tensor {
	return &NativeTensor{shape: reshape(t.shape, dims), data: t.data}
}

// Transpose implements Tensor.
func (t *NativeTensor) Transpose(perm ...int) Tensor {
	data, shape := permute(t.data, t.shape, perm)
	return &NativeTensor{shape: shape, data: data}
}

// Rows implements Tensor.
func (t *NativeTensor) Rows(start, end int) Tensor {
	data, shape := rows(t.data, t.shape, start, end)
	return &NativeTensor{shape: shape, data: data}
}

// Im2Col implements Tensor.
func (t *NativeTensor) Im2Col(c Conv) Tensor {
	data, shape := im2col(t.data, t.shape, c)
	return &NativeTensor{shape: shape, data: data}
}

// Col2Im implements Tensor.
func (t *NativeTensor) Col2Im(c Conv, imShape Shape) Tensor {
	return &NativeTensor{shape: imShape.Clone(), data: col2im(t.data, t.shape, c, imShape)}
}

// Reveal implements Tensor.
func (t *NativeTensor) Reveal() Tensor { return t }

// Float64s implements Tensor.
func (t *NativeTensor) Float64s() []float64 { return t.data }

// Encode converts the tensor to fixed point, panicking with
// *fixedpoint.OverflowError on out-of-range values.
func (t *NativeTensor) Encode() *PublicTensor {
	values, err := fixedpoint.EncodeSlice(t.data)
	if err != nil {
		panic(err)
	}
	return &PublicTensor{shape: t.shape, values: values}
}

func (t *NativeTensor) String() string {
	return fmt.Sprintf("NativeTensor%v", []int(t.shape))
}
