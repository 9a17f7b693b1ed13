package tensor

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pond/internal/fixedpoint"
)

const tol = 1e-3

func testDealer() *Dealer {
	return NewDealer([32]byte{7})
}

func randomData(rng *rand.Rand, n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * scale
	}
	return out
}

func native(t *testing.T, data []float64, shape ...int) *NativeTensor {
	t.Helper()
	n, err := NewNative(data, Shape(shape))
	require.NoError(t, err)
	return n
}

// panicErr runs f and returns the error it panicked with, if any.
func panicErr(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err, _ = r.(error)
		}
	}()
	f()
	return nil
}

func TestNewNative_ShapeMismatch(t *testing.T) {
	_, err := NewNative([]float64{1, 2, 3}, Shape{2, 2})
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = NewPublic([]float64{1, 2}, Shape{2, 0})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestNative_BroadcastOps(t *testing.T) {
	x := native(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := native(t, []float64{10, 20, 30}, 1, 3)

	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, x.Add(b).Float64s())
	assert.Equal(t, []float64{-9, -18, -27, -6, -15, -24}, x.Sub(b).Float64s())
	assert.Equal(t, []float64{2, 4, 6, 8, 10, 12}, x.Mul(Scalar(2)).Float64s())
	assert.Equal(t, Shape{2, 3}, x.Add(b).Shape())

	err := panicErr(func() { x.Add(native(t, []float64{1, 2}, 2)) })
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestNative_Dot(t *testing.T) {
	a := native(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := native(t, []float64{7, 8, 9, 10, 11, 12}, 3, 2)

	c := a.Dot(b)
	assert.Equal(t, Shape{2, 2}, c.Shape())
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Float64s())

	err := panicErr(func() { a.Dot(a) })
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestManipulation(t *testing.T) {
	x := native(t, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, x.Transpose().Float64s())
	assert.Equal(t, Shape{3, 2}, x.Transpose().Shape())

	assert.Equal(t, []float64{5, 7, 9}, x.Sum(0, false).Float64s())
	assert.Equal(t, Shape{1, 3}, x.Sum(0, true).Shape())
	assert.Equal(t, []float64{6, 15}, x.Sum(-1, false).Float64s())

	assert.Equal(t, Shape{3, 2}, x.Reshape(-1, 2).Shape())
	assert.Equal(t, []float64{4, 5, 6}, x.Rows(1, 2).Float64s())

	y := native(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}, 2, 3, 4)
	p := y.Transpose(2, 0, 1)
	assert.Equal(t, Shape{4, 2, 3}, p.Shape())
	// p[1][1][2] = y[1][2][1]
	assert.Equal(t, 21.0, p.Float64s()[1*6+1*3+2])

	err := panicErr(func() { x.Reshape(4, -1) })
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestPromotion(t *testing.T) {
	d := testDealer()
	n := native(t, []float64{1, 2}, 2)
	p, err := NewPublic([]float64{0.5, 0.25}, Shape{2})
	require.NoError(t, err)
	s, err := d.NewPrivate([]float64{3, 4}, Shape{2})
	require.NoError(t, err)

	assert.Equal(t, Public, n.Add(p).Kind())
	assert.Equal(t, Public, p.Mul(n).Kind())
	assert.Equal(t, Private, n.Sub(s).Kind())
	assert.Equal(t, Private, p.Mul(s).Kind())
	assert.Equal(t, Private, s.Reshape(1, 2).Dot(n.Reshape(2, 1)).Kind())

	assert.InDeltaSlice(t, []float64{1.5, 2.25}, n.Add(p).Float64s(), tol)
	assert.InDeltaSlice(t, []float64{-2, -2}, n.Sub(s).Float64s(), tol)
	assert.InDeltaSlice(t, []float64{1.5, 1}, p.Mul(s).Float64s(), tol)
}

func TestPublic_MulNegative(t *testing.T) {
	a, err := NewPublic([]float64{-1.5, 2, -0.001, 3}, Shape{4})
	require.NoError(t, err)
	b, err := NewPublic([]float64{2.25, -3, 0.5, 1e-3}, Shape{4})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{-3.375, -6, -0.0005, 0.003}, a.Mul(b).Float64s(), tol)
}

func TestPublic_MulOverflow(t *testing.T) {
	a, err := NewPublic([]float64{1 << 20}, Shape{1})
	require.NoError(t, err)

	err = panicErr(func() { a.Mul(a) })
	var oe *fixedpoint.OverflowError
	assert.True(t, errors.As(err, &oe))
}

func TestPrivate_MulOverflowWraps(t *testing.T) {
	dealer := NewDealer([32]byte{3})
	a := dealer.Wrap([]float64{1 << 20}, Shape{1})

	var got []float64
	assert.NotPanics(t, func() { got = a.Mul(a).Float64s() })
	assert.NotEqual(t, float64(1<<40), got[0])
}

func TestEncodeOverflow(t *testing.T) {
	n := native(t, []float64{1, fixedpoint.Bound * 2}, 2)
	err := panicErr(func() { n.Encode() })
	assert.True(t, errors.Is(err, fixedpoint.ErrOverflow))
}

func TestPrivate_MatchesNative(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	d := testDealer()

	xData := randomData(rng, 12, 2)
	yData := randomData(rng, 12, 2)
	wData := randomData(rng, 12, 1)

	x := native(t, xData, 3, 4)
	y := native(t, yData, 3, 4)
	w := native(t, wData, 4, 3)

	px, err := d.NewPrivate(xData, Shape{3, 4})
	require.NoError(t, err)
	py, err := d.NewPrivate(yData, Shape{3, 4})
	require.NoError(t, err)
	pw, err := d.NewPrivate(wData, Shape{4, 3})
	require.NoError(t, err)

	tests := []struct {
		name    string
		native  Tensor
		private Tensor
	}{
		{"add", x.Add(y), px.Add(py)},
		{"sub", x.Sub(y), px.Sub(py)},
		{"mul", x.Mul(y), px.Mul(py)},
		{"mul-broadcast", x.Mul(y.Rows(0, 1)), px.Mul(py.Rows(0, 1))},
		{"mul-public", x.Mul(y), px.Mul(y)},
		{"dot", x.Dot(w), px.Dot(pw)},
		{"dot-public-left", x.Dot(w), x.Dot(pw)},
		{"dot-public-right", x.Dot(w), px.Dot(w)},
		{"neg", x.Neg(), px.Neg()},
		{"sum", x.Sum(1, true), px.Sum(1, true)},
		{"transpose", x.Transpose(), px.Transpose()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, Private, tt.private.Kind())
			assert.Equal(t, tt.native.Shape(), tt.private.Shape())
			assert.InDeltaSlice(t, tt.native.Float64s(), tt.private.Float64s(), tol)
		})
	}

	stats := d.Stats()
	assert.Equal(t, int64(3), stats.Triples)
	assert.Equal(t, int64(6), stats.OpenedTensors)
}

func TestPrivate_SharesAreMasked(t *testing.T) {
	d := testDealer()
	p, err := d.NewPrivate([]float64{1, 2, 3}, Shape{3})
	require.NoError(t, err)

	encoded := []uint64{fixedpoint.MustEncode(1), fixedpoint.MustEncode(2), fixedpoint.MustEncode(3)}
	assert.NotEqual(t, encoded, p.shares[0])
	assert.NotEqual(t, encoded, p.shares[1])

	revealed := p.Reveal()
	assert.Equal(t, Public, revealed.Kind())
	assert.Equal(t, encoded, revealed.(*PublicTensor).Values())

	again := d.Encrypt(p)
	assert.NotEqual(t, p.shares[0], again.shares[0])
	assert.Equal(t, []float64{1, 2, 3}, again.Float64s())
}

func TestPrivate_WithoutDealer(t *testing.T) {
	p, err := NewPublic([]float64{1, 2}, Shape{2})
	require.NoError(t, err)
	a, b := asPrivate(p), asPrivate(p)
	assert.Panics(t, func() { a.Mul(b) })
}

func TestIm2Col_Col2ImAdjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	c := Conv{FilterH: 3, FilterW: 3, Stride: 2, Padding: 1}
	imShape := Shape{2, 3, 7, 7}

	x := native(t, randomData(rng, imShape.NumElements(), 1), imShape...)
	cols := x.Im2Col(c)

	oh, ow := c.OutputSize(7, 7)
	require.Equal(t, 4, oh)
	require.Equal(t, Shape{3 * 3 * 3, oh * ow * 2}, cols.Shape())

	y := native(t, randomData(rng, cols.Shape().NumElements(), 1), cols.Shape()...)
	back := y.Col2Im(c, imShape)
	require.Equal(t, imShape, back.Shape())

	// <im2col(x), y> == <x, col2im(y)>
	var lhs, rhs float64
	for i, v := range cols.Float64s() {
		lhs += v * y.Float64s()[i]
	}
	for i, v := range x.Float64s() {
		rhs += v * back.Float64s()[i]
	}
	assert.InDelta(t, lhs, rhs, 1e-9)
}

func TestIm2Col_Layout(t *testing.T) {
	// One 1x3x3 image, 2x2 filter, stride 1, no padding.
	x := native(t, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 1, 1, 3, 3)
	cols := x.Im2Col(Conv{FilterH: 2, FilterW: 2, Stride: 1})

	assert.Equal(t, Shape{4, 4}, cols.Shape())
	assert.Equal(t, []float64{
		1, 2, 4, 5, // filter position (0,0)
		2, 3, 5, 6, // (0,1)
		4, 5, 7, 8, // (1,0)
		5, 6, 8, 9, // (1,1)
	}, cols.Float64s())
}

func TestIm2Col_PrivateMatchesNative(t *testing.T) {
	rng := rand.New(rand.NewPCG(8, 9))
	d := testDealer()
	c := Conv{FilterH: 4, FilterW: 4, Stride: 2, Padding: 1}
	imShape := Shape{2, 1, 6, 6}
	data := randomData(rng, imShape.NumElements(), 1)

	x := native(t, data, imShape...)
	px, err := d.NewPrivate(data, imShape)
	require.NoError(t, err)

	assert.InDeltaSlice(t, x.Im2Col(c).Float64s(), px.Im2Col(c).Float64s(), tol)
	cols := x.Im2Col(c)
	assert.InDeltaSlice(t, cols.Col2Im(c, imShape).Float64s(), px.Im2Col(c).Col2Im(c, imShape).Float64s(), tol)
}

func TestPlainHelpers(t *testing.T) {
	n := native(t, []float64{-1, 0, 2, 3, -4, 1}, 2, 3)

	assert.Equal(t, []float64{0, 0, 1, 1, 0, 1}, Positive(n).Float64s())
	assert.Equal(t, []int{2, 0}, ArgMax(n))

	p, err := NewPublic([]float64{0, 1}, Shape{2})
	require.NoError(t, err)
	e := Exp(p)
	assert.Equal(t, Public, e.Kind())
	assert.InDeltaSlice(t, []float64{1, 2.71828}, e.Float64s(), tol)

	priv, err := testDealer().NewPrivate([]float64{1}, Shape{1})
	require.NoError(t, err)
	err = panicErr(func() { Log(priv) })
	assert.True(t, errors.Is(err, ErrPrivateOperand))
	err = panicErr(func() { Positive(priv) })
	assert.True(t, errors.Is(err, ErrPrivateOperand))
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{Native, Public, Private} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("secret")
	assert.Error(t, err)
}

func TestShape_Resolve(t *testing.T) {
	s, err := Shape{2, -1, 4}.Resolve(24)
	require.NoError(t, err)
	assert.Equal(t, Shape{2, 3, 4}, s)

	_, err = Shape{-1, -1}.Resolve(4)
	assert.Error(t, err)
	_, err = Shape{5, -1}.Resolve(12)
	assert.Error(t, err)
}
