package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Like wraps data in the kind of t (native or public) with the given shape.
// Private tensors are rejected: the values would be public.
func Like(t Tensor, data []float64, shape Shape) Tensor {
	switch t.Kind() {
	case Native:
		return NativeWrapper(data, shape)
	case Public:
		return PublicWrapper(data, shape)
	default:
		panic(fmt.Errorf("tensor: %s: %w", t, ErrPrivateOperand))
	}
}

// Map applies fn to every decoded element of a native or public tensor and
// returns a tensor of the same kind.
func Map(t Tensor, fn func(float64) float64) Tensor {
	if t.Kind() == Private {
		panic(fmt.Errorf("tensor: map over %s: %w", t, ErrPrivateOperand))
	}
	in := t.Float64s()
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return Like(t, out, t.Shape())
}

// Exp is the element-wise exponential.
func Exp(t Tensor) Tensor { return Map(t, math.Exp) }

// Log is the element-wise natural logarithm.
func Log(t Tensor) Tensor { return Map(t, math.Log) }

// Positive returns a native 0/1 mask of the elements greater than zero.
func Positive(t Tensor) *NativeTensor {
	if t.Kind() == Private {
		panic(fmt.Errorf("tensor: compare %s: %w", t, ErrPrivateOperand))
	}
	in := t.Float64s()
	out := make([]float64, len(in))
	for i, v := range in {
		if v > 0 {
			out[i] = 1
		}
	}
	return &NativeTensor{shape: t.Shape(), data: out}
}

// ArgMax returns the index of the largest element of every row of a 2D
// tensor. Private tensors are revealed.
func ArgMax(t Tensor) []int {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Errorf("tensor: argmax expects 2D input, got %v: %w", shape, ErrShapeMismatch))
	}
	data := t.Float64s()
	out := make([]int, shape[0])
	for r := range out {
		out[r] = floats.MaxIdx(data[r*shape[1] : (r+1)*shape[1]])
	}
	return out
}
