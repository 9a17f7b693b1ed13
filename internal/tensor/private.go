package tensor

import (
	"fmt"

	"github.com/born-ml/pond/internal/fixedpoint"
)

// PrivateTensor holds fixed-point ring values split into two additive
// shares, one per party. Both shares live in this process; every operation
// touches each share only the way its owning party could.
//
// Products that leave the encodable range wrap around the ring and are
// not trapped; only public operations detect overflow.
type PrivateTensor struct {
	shape  Shape
	shares [2][]uint64
	dealer *Dealer
}

// Kind implements Tensor.
func (t *PrivateTensor) Kind() Kind { return Private }

// Shape implements Tensor.
func (t *PrivateTensor) Shape() Shape { return t.shape }

// Dealer returns the crypto producer the tensor draws triples from.
func (t *PrivateTensor) Dealer() *Dealer { return t.dealer }

// Add implements Tensor.
func (t *PrivateTensor) Add(other Tensor) Tensor { return binary(t, other, "add") }

// Sub implements Tensor.
func (t *PrivateTensor) Sub(other Tensor) Tensor { return binary(t, other, "sub") }

// Mul implements Tensor.
func (t *PrivateTensor) Mul(other Tensor) Tensor { return binary(t, other, "mul") }

// Dot implements Tensor.
func (t *PrivateTensor) Dot(other Tensor) Tensor { return dot(t, other) }

func (t *PrivateTensor) with(shape Shape, s0, s1 []uint64) *PrivateTensor {
	return &PrivateTensor{shape: shape, shares: [2][]uint64{s0, s1}, dealer: t.dealer}
}

func pickDealer(a, b *PrivateTensor) *Dealer {
	if a.dealer != nil {
		return a.dealer
	}
	return b.dealer
}

func privateBinary(a, b Tensor, op string) Tensor {
	if op == "mul" {
		if a.Kind() == Private && b.Kind() == Private {
			return beaverMul(a.(*PrivateTensor), b.(*PrivateTensor))
		}
		if a.Kind() == Private {
			return scaleShares(a.(*PrivateTensor), asPublic(b))
		}
		return scaleShares(b.(*PrivateTensor), asPublic(a))
	}

	x, y := asPrivate(a), asPrivate(b)
	var f func(u, v uint64) uint64
	switch op {
	case "add":
		f = func(u, v uint64) uint64 { return u + v }
	case "sub":
		f = func(u, v uint64) uint64 { return u - v }
	default:
		panic("tensor: unknown op " + op)
	}
	s0, shape := zipWith(x.shares[0], x.shape, y.shares[0], y.shape, f)
	s1, _ := zipWith(x.shares[1], x.shape, y.shares[1], y.shape, f)
	return &PrivateTensor{shape: shape, shares: [2][]uint64{s0, s1}, dealer: pickDealer(x, y)}
}

// scaleShares multiplies each share by a public tensor and rescales.
func scaleShares(x *PrivateTensor, p *PublicTensor) Tensor {
	shape := broadcastTo(x.shape, p.shape)
	v := expand(p.values, p.shape, shape)
	out := [2][]uint64{}
	for s := range out {
		xs := expand(x.shares[s], x.shape, shape)
		out[s] = make([]uint64, len(v))
		for i := range v {
			out[s][i] = xs[i] * v[i]
		}
	}
	truncateShares(out)
	return x.with(shape, out[0], out[1])
}

// beaverMul multiplies two private tensors element-wise with a triple.
func beaverMul(x, y *PrivateTensor) Tensor {
	d := pickDealer(x, y)
	if d == nil {
		panic("tensor: private multiplication without a dealer")
	}

	shape := broadcastTo(x.shape, y.shape)
	xs := [2][]uint64{expand(x.shares[0], x.shape, shape), expand(x.shares[1], x.shape, shape)}
	ys := [2][]uint64{expand(y.shares[0], y.shape, shape), expand(y.shares[1], y.shape, shape)}

	a, b, c := d.mulTriple(shape.NumElements())
	e := d.open(xs, a)
	f := d.open(ys, b)

	z := [2][]uint64{make([]uint64, len(e)), make([]uint64, len(e))}
	for s := range z {
		for i := range e {
			z[s][i] = c[s][i] + e[i]*b[s][i] + a[s][i]*f[i]
		}
	}
	for i := range e {
		z[0][i] += e[i] * f[i]
	}
	truncateShares(z)
	return &PrivateTensor{shape: shape, shares: z, dealer: d}
}

func privateDot(a, b Tensor, m, k, n int) Tensor {
	switch {
	case a.Kind() == Private && b.Kind() == Private:
		return beaverDot(a.(*PrivateTensor), b.(*PrivateTensor), m, k, n)
	case a.Kind() == Private:
		x, p := a.(*PrivateTensor), asPublic(b)
		out := [2][]uint64{matmul(x.shares[0], p.values, m, k, n), matmul(x.shares[1], p.values, m, k, n)}
		truncateShares(out)
		return x.with(Shape{m, n}, out[0], out[1])
	default:
		p, y := asPublic(a), b.(*PrivateTensor)
		out := [2][]uint64{matmul(p.values, y.shares[0], m, k, n), matmul(p.values, y.shares[1], m, k, n)}
		truncateShares(out)
		return y.with(Shape{m, n}, out[0], out[1])
	}
}

// beaverDot computes a private matrix product with a matrix triple.
func beaverDot(x, y *PrivateTensor, m, k, n int) Tensor {
	d := pickDealer(x, y)
	if d == nil {
		panic("tensor: private product without a dealer")
	}

	a, b, c := d.dotTriple(m, k, n)
	e := d.open(x.shares, a)
	f := d.open(y.shares, b)

	z := [2][]uint64{}
	for s := range z {
		eb := matmul(e, b[s], m, k, n)
		af := matmul(a[s], f, m, k, n)
		z[s] = make([]uint64, m*n)
		for i := range z[s] {
			z[s][i] = c[s][i] + eb[i] + af[i]
		}
	}
	ef := matmul(e, f, m, k, n)
	for i := range ef {
		z[0][i] += ef[i]
	}
	truncateShares(z)
	return &PrivateTensor{shape: Shape{m, n}, shares: z, dealer: d}
}

// Neg implements Tensor.
func (t *PrivateTensor) Neg() Tensor {
	out := [2][]uint64{make([]uint64, len(t.shares[0])), make([]uint64, len(t.shares[1]))}
	for s := range out {
		for i, v := range t.shares[s] {
			out[s][i] = -v
		}
	}
	return t.with(t.shape, out[0], out[1])
}

// Sum implements Tensor.
func (t *PrivateTensor) Sum(axis int, keepDims bool) Tensor {
	s0, shape := sumAxis(t.shares[0], t.shape, axis, keepDims)
	s1, _ := sumAxis(t.shares[1], t.shape, axis, keepDims)
	return t.with(shape, s0, s1)
}

// Reshape implements Tensor.
func (t *PrivateTensor) Reshape(dims ...int) Tensor {
	return t.with(reshape(t.shape, dims), t.shares[0], t.shares[1])
}

// Transpose implements Tensor.
func (t *PrivateTensor) Transpose(perm ...int) Tensor {
	s0, shape := permute(t.shares[0], t.shape, perm)
	s1, _ := permute(t.shares[1], t.shape, perm)
	return t.with(shape, s0, s1)
}

// Rows implements Tensor.
func (t *PrivateTensor) Rows(start, end int) Tensor {
	s0, shape := rows(t.shares[0], t.shape, start, end)
	s1, _ := rows(t.shares[1], t.shape, start, end)
	return t.with(shape, s0, s1)
}

// Im2Col implements Tensor.
func (t *PrivateTensor) Im2Col(c Conv) Tensor {
	s0, shape := im2col(t.shares[0], t.shape, c)
	s1, _ := im2col(t.shares[1], t.shape, c)
	return t.with(shape, s0, s1)
}

// Col2Im implements Tensor.
func (t *PrivateTensor) Col2Im(c Conv, imShape Shape) Tensor {
	s0 := col2im(t.shares[0], t.shape, c, imShape)
	s1 := col2im(t.shares[1], t.shape, c, imShape)
	return t.with(imShape.Clone(), s0, s1)
}

func (t *PrivateTensor) reconstruct() []uint64 {
	out := make([]uint64, len(t.shares[0]))
	for i := range out {
		out[i] = t.shares[0][i] + t.shares[1][i]
	}
	return out
}

// Reveal implements Tensor by reconstructing a PublicTensor.
func (t *PrivateTensor) Reveal() Tensor {
	return &PublicTensor{shape: t.shape, values: t.reconstruct()}
}

// Float64s implements Tensor. It reveals the values.
func (t *PrivateTensor) Float64s() []float64 {
	return fixedpoint.DecodeSlice(t.reconstruct())
}

func (t *PrivateTensor) String() string {
	return fmt.Sprintf("PrivateTensor%v", []int(t.shape))
}
