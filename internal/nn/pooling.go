package nn

import (
	"fmt"

	"github.com/born-ml/pond/internal/tensor"
)

// AveragePooling2D averages non-overlapping windows of channels-first images.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, height/pool_h, width/pool_w]
//
// Height and width must be multiples of the pool size. Averaging is a sum
// and a public scale, so the layer runs on private tensors.
type AveragePooling2D struct {
	poolH, poolW int
	inputShape   tensor.Shape
}

// NewAveragePooling2D creates an average pooling layer.
func NewAveragePooling2D(poolH, poolW int) *AveragePooling2D {
	if poolH <= 0 || poolW <= 0 {
		panic(fmt.Sprintf("avgpool2d: invalid pool size %dx%d", poolH, poolW))
	}
	return &AveragePooling2D{poolH: poolH, poolW: poolW}
}

// Initialize implements Layer.
func (p *AveragePooling2D) Initialize(inputShape tensor.Shape, _ Initializer) (tensor.Shape, error) {
	if len(inputShape) != 3 {
		return nil, fmt.Errorf("avgpool2d: expected input shape [C, H, W], got %v", inputShape)
	}
	if inputShape[1]%p.poolH != 0 || inputShape[2]%p.poolW != 0 {
		return nil, fmt.Errorf("avgpool2d: input %dx%d not divisible by pool %dx%d",
			inputShape[1], inputShape[2], p.poolH, p.poolW)
	}
	return tensor.Shape{inputShape[0], inputShape[1] / p.poolH, inputShape[2] / p.poolW}, nil
}

func (p *AveragePooling2D) scale() tensor.Tensor {
	return tensor.Scalar(1 / float64(p.poolH*p.poolW))
}

// Forward implements Layer.
func (p *AveragePooling2D) Forward(x tensor.Tensor) tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 4 || shape[2]%p.poolH != 0 || shape[3]%p.poolW != 0 {
		panic(fmt.Sprintf("avgpool2d: input %v incompatible with pool %dx%d", shape, p.poolH, p.poolW))
	}
	p.inputShape = shape.Clone()
	n, c, oh, ow := shape[0], shape[1], shape[2]/p.poolH, shape[3]/p.poolW

	windows := x.Reshape(n, c, oh, p.poolH, ow, p.poolW)
	return windows.Sum(5, false).Sum(3, false).Mul(p.scale())
}

// Backward implements Layer.
func (p *AveragePooling2D) Backward(dy tensor.Tensor) tensor.Tensor {
	if p.inputShape == nil {
		panic("avgpool2d: backward before forward")
	}
	n, c, oh, ow := p.inputShape[0], p.inputShape[1], p.inputShape[2]/p.poolH, p.inputShape[3]/p.poolW

	// Spread every output gradient evenly over its window.
	g := dy.Mul(p.scale()).Reshape(n, c, oh, 1, ow, 1)
	spread := g.Add(tensor.Zeros(tensor.Shape{n, c, oh, p.poolH, ow, p.poolW}))
	return spread.Reshape(p.inputShape...)
}

// Parameters implements Layer.
func (p *AveragePooling2D) Parameters() []*Parameter { return nil }

func (p *AveragePooling2D) String() string {
	return fmt.Sprintf("AveragePooling2D(pool_size=(%d, %d))", p.poolH, p.poolW)
}

// Flatten collapses every dimension but the batch.
type Flatten struct {
	inputShape tensor.Shape
}

// NewFlatten creates a Flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

// Initialize implements Layer.
func (f *Flatten) Initialize(inputShape tensor.Shape, _ Initializer) (tensor.Shape, error) {
	return tensor.Shape{inputShape.NumElements()}, nil
}

// Forward implements Layer.
func (f *Flatten) Forward(x tensor.Tensor) tensor.Tensor {
	f.inputShape = x.Shape().Clone()
	return x.Reshape(f.inputShape[0], -1)
}

// Backward implements Layer.
func (f *Flatten) Backward(dy tensor.Tensor) tensor.Tensor {
	return dy.Reshape(f.inputShape...)
}

// Parameters implements Layer.
func (f *Flatten) Parameters() []*Parameter { return nil }

func (f *Flatten) String() string { return "Flatten()" }
