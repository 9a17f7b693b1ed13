package nn

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pond/internal/tensor"
)

func convPool() *Sequential {
	return NewSequential(
		NewConv2D([4]int{4, 4, 1, 20}, Conv2DConfig{Stride: 2, Padding: 1}),
		NewReluExact(),
		NewAveragePooling2D(2, 2),
		NewConv2D([4]int{3, 3, 20, 20}, Conv2DConfig{Stride: 2, Padding: 1}),
		NewReluExact(),
		NewAveragePooling2D(2, 2),
		NewFlatten(),
		NewDense(10, 80, DenseConfig{}),
		NewReveal(),
		NewSoftmax(),
	)
}

func TestSequential_ShapeInference(t *testing.T) {
	model := convPool()
	require.NoError(t, model.Initialize(tensor.Shape{1, 28, 28}, Initializer{Rand: testRand()}))
	assert.Equal(t, tensor.Shape{10}, model.OutputShape())
	assert.Equal(t, tensor.Shape{1, 28, 28}, model.InputShape())
	assert.Equal(t, 10, model.Len())
	assert.Len(t, model.Parameters(), 6)

	rng := testRand()
	x := native(t, uniform(rng, 2*28*28, 1), 2, 1, 28, 28)
	y := model.Forward(x)
	assert.Equal(t, tensor.Shape{2, 10}, y.Shape())

	dx := model.Backward(y.Sub(native(t, make([]float64, 20), 2, 10)))
	assert.Equal(t, tensor.Shape{2, 1, 28, 28}, dx.Shape())
}

func TestSequential_InitializeError(t *testing.T) {
	model := NewSequential(
		NewConv2D([4]int{3, 3, 1, 4}, Conv2DConfig{}),
		NewAveragePooling2D(4, 4), // 26x26 is not divisible by 4
	)
	err := model.Initialize(tensor.Shape{1, 28, 28}, Initializer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "layer 1")
}

func TestSequential_String(t *testing.T) {
	model := NewSequential(NewFlatten(), NewDense(2, 4, DenseConfig{}))
	s := model.String()
	assert.Contains(t, s, "(0): Flatten()")
	assert.Contains(t, s, "(1): Dense(nodes=2, features=4)")
}

func TestSequential_StateDict(t *testing.T) {
	src := NewSequential(NewFlatten(), NewDense(3, 4, DenseConfig{InitialScale: 1}))
	require.NoError(t, src.Initialize(tensor.Shape{2, 2}, Initializer{Rand: testRand()}))

	state := src.StateDict()
	require.Contains(t, state, "1.weights")
	require.Contains(t, state, "1.bias")
	assert.Equal(t, tensor.Shape{4, 3}, state["1.weights"].Shape())

	dst := NewSequential(NewFlatten(), NewDense(3, 4, DenseConfig{}))
	require.NoError(t, dst.Initialize(tensor.Shape{2, 2}, Initializer{}))
	require.NoError(t, dst.LoadStateDict(state, nil))

	x := native(t, []float64{1, 2, 3, 4}, 1, 2, 2)
	assert.Equal(t, src.Forward(x).Float64s(), dst.Forward(x).Float64s())

	// Snapshots do not alias live parameters.
	state["1.weights"].Data()[0] = 100
	assert.NotEqual(t, 100.0, dst.Layer(1).Parameters()[0].Value().Float64s()[0])
}

func TestSequential_LoadStateDictErrors(t *testing.T) {
	model := NewSequential(NewDense(3, 4, DenseConfig{}))
	require.NoError(t, model.Initialize(tensor.Shape{4}, Initializer{}))

	err := model.LoadStateDict(map[string]*tensor.NativeTensor{}, nil)
	assert.ErrorContains(t, err, "missing")

	state := model.StateDict()
	state["0.bias"] = tensor.Zeros(tensor.Shape{3})
	err = model.LoadStateDict(state, nil)
	assert.ErrorContains(t, err, "shape")
}

func TestSequential_PrivateStateDict(t *testing.T) {
	dealer := tensor.NewDealer([32]byte{5})
	model := NewSequential(NewDense(2, 2, DenseConfig{InitialScale: 1}))
	require.NoError(t, model.Initialize(tensor.Shape{2}, Initializer{Wrap: dealer.Wrap, Rand: testRand()}))

	state := model.StateDict()
	w := model.Layer(0).Parameters()[0].Value()
	require.Equal(t, tensor.Private, w.Kind())
	assert.InDeltaSlice(t, w.Float64s(), state["0.weights"].Data(), 1e-9)

	require.NoError(t, model.LoadStateDict(state, dealer.Wrap))
	assert.Equal(t, tensor.Private, model.Layer(0).Parameters()[0].Value().Kind())
}

func TestCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")
	src := convPool()
	require.NoError(t, src.Initialize(tensor.Shape{1, 28, 28}, Initializer{Rand: testRand()}))
	require.NoError(t, SaveCheckpoint(path, src, map[string]string{"epoch": "2"}))

	dst := convPool()
	require.NoError(t, dst.Initialize(tensor.Shape{1, 28, 28}, Initializer{}))
	meta, err := LoadCheckpoint(path, dst, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", meta["epoch"])

	want := src.StateDict()
	for name, got := range dst.StateDict() {
		assert.Equal(t, want[name].Data(), got.Data(), name)
	}

	_, err = LoadCheckpoint(filepath.Join(t.TempDir(), "missing"), dst, nil)
	assert.Error(t, err)
}

func TestLosses(t *testing.T) {
	pred := native(t, []float64{0.7, 0.2, 0.1, 0.1, 0.8, 0.1}, 2, 3)
	target := native(t, []float64{1, 0, 0, 0, 0, 1}, 2, 3)

	ce := NewCrossEntropy()
	assert.InDelta(t, -(math.Log(0.7)+math.Log(0.1))/2, ce.Evaluate(pred, target), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.15, 0.1, 0.05, 0.05, 0.4, -0.45}, ce.Derive(pred, target).Float64s(), 1e-12)

	zero := native(t, []float64{0, 1}, 1, 2)
	one := native(t, []float64{1, 0}, 1, 2)
	assert.InDelta(t, -math.Log(1e-12), ce.Evaluate(zero, one), 1e-9)

	diff := NewDiff()
	assert.InDelta(t, (0.09+0.04+0.01+0.01+0.64+0.81)/4, diff.Evaluate(pred, target), 1e-12)
	assert.InDeltaSlice(t, []float64{-0.15, 0.1, 0.05, 0.05, 0.4, -0.45}, diff.Derive(pred, target).Float64s(), 1e-12)

	err := panicErr(func() { ce.Evaluate(pred, one) })
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestPolyFit(t *testing.T) {
	square := func(x float64) float64 { return 2*x*x - x + 3 }
	c, err := PolyFit(square, 2, -2, 2, 50)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, -1, 2}, c, 1e-9)
	assert.InDelta(t, square(1.5), PolyEval(c, 1.5), 1e-9)

	assert.Equal(t, []float64{-1, 4}, PolyDerivative([]float64{3, -1, 2}))
	assert.Equal(t, []float64{0}, PolyDerivative([]float64{3}))

	_, err = PolyFit(square, 3, -1, 1, 3)
	assert.Error(t, err)
	_, err = PolyFit(square, 2, 1, 1, 10)
	assert.Error(t, err)
}

func TestPolyval_Private(t *testing.T) {
	dealer := tensor.NewDealer([32]byte{2})
	coeffs := []float64{0.5, -1, 0.25}
	data := []float64{-1, -0.5, 0, 0.5, 1}

	got := polyval(dealer.Wrap(data, tensor.Shape{5}), coeffs)
	require.Equal(t, tensor.Private, got.Kind())
	for i, x := range data {
		assert.InDelta(t, PolyEval(coeffs, x), got.Float64s()[i], 1e-3)
	}

	constant := polyval(native(t, data, 5), []float64{2})
	assert.Equal(t, []float64{2, 2, 2, 2, 2}, constant.Float64s())
}

func TestDataLoader(t *testing.T) {
	data := make([]float64, 5*2*3)
	for i := range data {
		data[i] = float64(i)
	}
	loader, err := NewDataLoader(data, tensor.Shape{5, 2, 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, loader.Len())
	assert.Equal(t, tensor.Shape{2, 3}, loader.SampleShape())
	assert.Equal(t, 3, loader.NumBatches(2))

	var sizes []int
	for i, batch := range loader.Batches(2) {
		assert.Equal(t, len(sizes), i)
		sizes = append(sizes, batch.Shape()[0])
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)

	b := loader.Batch([]int{4, 0})
	assert.Equal(t, tensor.Shape{2, 2, 3}, b.Shape())
	assert.Equal(t, []float64{24, 25, 26, 27, 28, 29, 0, 1, 2, 3, 4, 5}, b.Float64s())

	all := loader.All()
	assert.Equal(t, data, all.Float64s())
	all.Float64s()[0] = -1
	assert.Equal(t, 0.0, data[0], "batches copy the dataset")

	dealer := tensor.NewDealer([32]byte{4})
	private := loader.WithWrapper(dealer.Wrap).Range(1, 2)
	assert.Equal(t, tensor.Private, private.Kind())
	assert.InDeltaSlice(t, data[6:12], private.Float64s(), 1e-4)

	_, err = NewDataLoader(data, tensor.Shape{4, 2, 3}, nil)
	assert.Error(t, err)
	assert.Panics(t, func() { loader.Batch([]int{5}) })
}

func TestDataLoader_EarlyBreak(t *testing.T) {
	loader, err := NewDataLoader(make([]float64, 10), tensor.Shape{10, 1}, nil)
	require.NoError(t, err)
	n := 0
	for range loader.Batches(3) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
