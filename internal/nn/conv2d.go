package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/pond/internal/tensor"
)

// Conv2DConfig configures a Conv2D layer.
type Conv2DConfig struct {
	Stride  int // Stride (default: 1)
	Padding int // Zero padding on every border

	// FilterInit returns the initial filter values for a filter of shape
	// [out_channels, in_channels, kernel_h, kernel_w]. Default: N(0, 0.1²).
	FilterInit func(shape tensor.Shape, rng *rand.Rand) []float64
}

// NormalFilters returns a FilterInit drawing from N(0, scale²).
func NormalFilters(scale float64) func(tensor.Shape, *rand.Rand) []float64 {
	return func(shape tensor.Shape, rng *rand.Rand) []float64 {
		return Normal(rng, shape.NumElements(), scale)
	}
}

// Conv2D is a 2D convolutional layer over channels-first images.
//
// Input shape:  [batch, in_channels, height, width]
// Filter shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels, 1]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// The convolution is a single matrix product between the reshaped filters
// and the im2col layout of the input, so it runs unchanged on private
// tensors.
type Conv2D struct {
	inChannels  int
	outChannels int
	conv        tensor.Conv
	filterInit  func(tensor.Shape, *rand.Rand) []float64

	filters *Parameter
	bias    *Parameter

	cols       tensor.Tensor
	inputShape tensor.Shape
}

// NewConv2D creates a convolution from a filter shape given as
// (kernel_h, kernel_w, in_channels, out_channels).
func NewConv2D(filterShape [4]int, cfg Conv2DConfig) *Conv2D {
	kh, kw, in, out := filterShape[0], filterShape[1], filterShape[2], filterShape[3]
	if in <= 0 || out <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", in, out))
	}
	if kh <= 0 || kw <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kh, kw))
	}
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Stride < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", cfg.Stride))
	}
	if cfg.Padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", cfg.Padding))
	}
	if cfg.FilterInit == nil {
		cfg.FilterInit = NormalFilters(0.1)
	}

	return &Conv2D{
		inChannels:  in,
		outChannels: out,
		conv:        tensor.Conv{FilterH: kh, FilterW: kw, Stride: cfg.Stride, Padding: cfg.Padding},
		filterInit:  cfg.FilterInit,
	}
}

// Initialize implements Layer.
func (c *Conv2D) Initialize(inputShape tensor.Shape, init Initializer) (tensor.Shape, error) {
	if len(inputShape) != 3 || inputShape[0] != c.inChannels {
		return nil, fmt.Errorf("conv2d: expected input shape [%d, H, W], got %v", c.inChannels, inputShape)
	}
	if err := c.conv.Validate(inputShape[1], inputShape[2]); err != nil {
		return nil, fmt.Errorf("conv2d: %w", err)
	}
	init = init.withDefaults()

	shape := tensor.Shape{c.outChannels, c.inChannels, c.conv.FilterH, c.conv.FilterW}
	values := c.filterInit(shape, init.Rand)
	if len(values) != shape.NumElements() {
		return nil, fmt.Errorf("conv2d: filter init returned %d values for shape %v", len(values), shape)
	}
	c.filters = NewParameter("filters", init.Wrap(values, shape))
	c.bias = NewParameter("bias", init.Wrap(make([]float64, c.outChannels), tensor.Shape{c.outChannels, 1}))

	oh, ow := c.conv.OutputSize(inputShape[1], inputShape[2])
	return tensor.Shape{c.outChannels, oh, ow}, nil
}

// Forward implements Layer.
func (c *Conv2D) Forward(x tensor.Tensor) tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.inChannels))
	}
	n := shape[0]
	oh, ow := c.conv.OutputSize(shape[2], shape[3])

	c.inputShape = shape.Clone()
	c.cols = x.Im2Col(c.conv) // [C*kh*kw, oh*ow*N]

	w := c.filters.Value().Reshape(c.outChannels, -1)
	y := w.Dot(c.cols).Add(c.bias.Value()) // [out, oh*ow*N]
	return y.Reshape(c.outChannels, oh, ow, n).Transpose(3, 0, 1, 2)
}

// Backward implements Layer.
func (c *Conv2D) Backward(dy tensor.Tensor) tensor.Tensor {
	if c.cols == nil {
		panic("conv2d: backward before forward")
	}
	d := dy.Transpose(1, 2, 3, 0).Reshape(c.outChannels, -1) // [out, oh*ow*N]

	dw := d.Dot(c.cols.Transpose())
	c.filters.SetGrad(dw.Reshape(c.outChannels, c.inChannels, c.conv.FilterH, c.conv.FilterW))
	c.bias.SetGrad(d.Sum(1, true))

	w := c.filters.Value().Reshape(c.outChannels, -1)
	dcols := w.Transpose().Dot(d)
	return dcols.Col2Im(c.conv, c.inputShape)
}

// Parameters implements Layer.
func (c *Conv2D) Parameters() []*Parameter {
	if c.filters == nil {
		return nil
	}
	return []*Parameter{c.filters, c.bias}
}

// Filters returns the filter parameter.
func (c *Conv2D) Filters() *Parameter {
	return c.filters
}

func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d)",
		c.inChannels, c.outChannels, c.conv.FilterH, c.conv.FilterW, c.conv.Stride, c.conv.Padding)
}
