// Package tensor provides plaintext, fixed-point and secret-shared tensors
// behind a single Tensor interface.
//
// Three kinds of tensor exist, ordered by the protection they give:
//
//   - NativeTensor: float64 values, computed in the clear.
//   - PublicTensor: fixed-point ring values known to both parties.
//   - PrivateTensor: fixed-point ring values split into two additive shares.
//
// Binary operations accept any mix of kinds; the weaker operand is promoted
// to the stronger kind first. Tensors are immutable: every operation returns
// a new tensor and may share backing storage with its inputs.
//
// Shape misuse is a programmer error and panics with an error wrapping
// ErrShapeMismatch. Encoding overflow panics with *fixedpoint.OverflowError.
package tensor

import (
	"errors"
	"fmt"
)

// Sentinel errors carried by panics and returned by constructors.
var (
	ErrShapeMismatch  = errors.New("tensor: shape mismatch")
	ErrPrivateOperand = errors.New("tensor: operation needs a revealed operand")
)

// Kind identifies the representation of a tensor.
type Kind int

// Kinds in promotion order.
const (
	Native Kind = iota
	Public
	Private
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// ParseKind converts the output of Kind.String back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "native":
		return Native, nil
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	default:
		return 0, fmt.Errorf("tensor: unknown kind %q", s)
	}
}

// Tensor is the common interface of all tensor kinds.
type Tensor interface {
	// Kind reports the representation of the tensor.
	Kind() Kind

	// Shape returns the dimensions. Callers must not modify it.
	Shape() Shape

	// Add, Sub and Mul are element-wise with NumPy broadcasting.
	Add(other Tensor) Tensor
	Sub(other Tensor) Tensor
	Mul(other Tensor) Tensor

	// Dot is the matrix product of two 2D tensors.
	Dot(other Tensor) Tensor

	// Neg negates every element.
	Neg() Tensor

	// Sum reduces along axis.
	Sum(axis int, keepDims bool) Tensor

	// Reshape returns the same elements with new dimensions; one may be -1.
	Reshape(dims ...int) Tensor

	// Transpose permutes axes. Without arguments the axes are reversed.
	Transpose(perm ...int) Tensor

	// Rows returns elements [start, end) along the first axis.
	Rows(start, end int) Tensor

	// Im2Col lays out the receptive fields of a [N, C, H, W] tensor as
	// columns of a [C*FilterH*FilterW, OutH*OutW*N] matrix.
	Im2Col(c Conv) Tensor

	// Col2Im is the adjoint of Im2Col: it sums columns back into a tensor
	// of shape imShape.
	Col2Im(c Conv, imShape Shape) Tensor

	// Reveal reconstructs secret-shared values. Other kinds return themselves.
	Reveal() Tensor

	// Float64s returns decoded values in row-major order. On a private
	// tensor this reconstructs the shares.
	Float64s() []float64

	String() string
}

// Wrapper materialises float data as a tensor of some kind.
//
// Data loaders use a Wrapper to produce batches and layers use one to
// create their weights.
type Wrapper func(data []float64, shape Shape) Tensor

// NativeWrapper wraps data as a NativeTensor.
func NativeWrapper(data []float64, shape Shape) Tensor {
	t, err := NewNative(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// PublicWrapper encodes data as a PublicTensor.
func PublicWrapper(data []float64, shape Shape) Tensor {
	t, err := NewPublic(data, shape)
	if err != nil {
		panic(err)
	}
	return t
}

// checkData validates that data fills shape.
func checkData(n int, shape Shape) error {
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	if shape.NumElements() != n {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, n, shape)
	}
	return nil
}

// promote returns the stronger of the two kinds.
func promote(a, b Tensor) Kind {
	return max(a.Kind(), b.Kind())
}

// asPublic converts native or public tensors to PublicTensor.
func asPublic(t Tensor) *PublicTensor {
	switch v := t.(type) {
	case *PublicTensor:
		return v
	case *NativeTensor:
		return v.Encode()
	default:
		panic(fmt.Errorf("tensor: cannot demote %s tensor to public: %w", t.Kind(), ErrPrivateOperand))
	}
}

// asPrivate converts any tensor to PrivateTensor. Public values become
// the trivial sharing (v, 0) and carry no dealer.
func asPrivate(t Tensor) *PrivateTensor {
	switch v := t.(type) {
	case *PrivateTensor:
		return v
	default:
		p := asPublic(t)
		zeros := make([]uint64, len(p.values))
		return &PrivateTensor{shape: p.shape, shares: [2][]uint64{p.values, zeros}}
	}
}

// binary dispatches an element-wise operation after promotion.
func binary(a, b Tensor, op string) Tensor {
	switch promote(a, b) {
	case Native:
		return a.(*NativeTensor).binary(b.(*NativeTensor), op)
	case Public:
		return asPublic(a).binary(asPublic(b), op)
	default:
		return privateBinary(a, b, op)
	}
}

// dot dispatches a matrix product after promotion.
func dot(a, b Tensor) Tensor {
	m, k, n := matShapes(a.Shape(), b.Shape())
	switch promote(a, b) {
	case Native:
		return a.(*NativeTensor).dot(b.(*NativeTensor), m, k, n)
	case Public:
		return asPublic(a).dot(asPublic(b), m, k, n)
	default:
		return privateDot(a, b, m, k, n)
	}
}

// matShapes validates the operands of a matrix product.
func matShapes(a, b Shape) (m, k, n int) {
	if len(a) != 2 || len(b) != 2 || a[1] != b[0] {
		panic(fmt.Errorf("tensor: dot %v and %v: %w", a, b, ErrShapeMismatch))
	}
	return a[0], a[1], b[1]
}
