package nn

import (
	"fmt"

	"github.com/born-ml/pond/internal/tensor"
)

// DenseConfig configures a Dense layer.
type DenseConfig struct {
	// InitialScale is the standard deviation of the initial weights
	// (default: 0.01).
	InitialScale float64
}

// Dense implements a fully connected layer.
//
// Performs the transformation: y = x · W + b
// where:
//   - x is the input tensor with shape [batch_size, num_features]
//   - W is the weight matrix with shape [num_features, num_nodes]
//   - b is the bias row with shape [1, num_nodes]
//   - y is the output tensor with shape [batch_size, num_nodes]
//
// Example:
//
//	layer := nn.NewDense(10, 80, nn.DenseConfig{})
//	_, err := layer.Initialize(tensor.Shape{80}, nn.Initializer{})
//	output := layer.Forward(input) // [batch, 10]
type Dense struct {
	numNodes    int
	numFeatures int
	scale       float64

	weights *Parameter // [num_features, num_nodes]
	bias    *Parameter // [1, num_nodes]

	input tensor.Tensor
}

// NewDense creates a new Dense layer with numNodes outputs for inputs of
// numFeatures values.
func NewDense(numNodes, numFeatures int, cfg DenseConfig) *Dense {
	if numNodes <= 0 || numFeatures <= 0 {
		panic(fmt.Sprintf("dense: invalid size nodes=%d, features=%d", numNodes, numFeatures))
	}
	if cfg.InitialScale == 0 {
		cfg.InitialScale = 0.01
	}
	return &Dense{numNodes: numNodes, numFeatures: numFeatures, scale: cfg.InitialScale}
}

// Initialize implements Layer.
func (d *Dense) Initialize(inputShape tensor.Shape, init Initializer) (tensor.Shape, error) {
	if len(inputShape) != 1 || inputShape[0] != d.numFeatures {
		return nil, fmt.Errorf("dense: expected input shape [%d], got %v", d.numFeatures, inputShape)
	}
	init = init.withDefaults()

	w := Normal(init.Rand, d.numFeatures*d.numNodes, d.scale)
	d.weights = NewParameter("weights", init.Wrap(w, tensor.Shape{d.numFeatures, d.numNodes}))
	d.bias = NewParameter("bias", init.Wrap(make([]float64, d.numNodes), tensor.Shape{1, d.numNodes}))

	return tensor.Shape{d.numNodes}, nil
}

// Forward implements Layer.
func (d *Dense) Forward(x tensor.Tensor) tensor.Tensor {
	shape := x.Shape()
	if len(shape) != 2 || shape[1] != d.numFeatures {
		panic(fmt.Sprintf("dense: expected input [batch, %d], got %v", d.numFeatures, shape))
	}
	d.input = x
	return x.Dot(d.weights.Value()).Add(d.bias.Value())
}

// Backward implements Layer.
func (d *Dense) Backward(dy tensor.Tensor) tensor.Tensor {
	if d.input == nil {
		panic("dense: backward before forward")
	}
	d.weights.SetGrad(d.input.Transpose().Dot(dy))
	d.bias.SetGrad(dy.Sum(0, true))
	return dy.Dot(d.weights.Value().Transpose())
}

// Parameters implements Layer.
func (d *Dense) Parameters() []*Parameter {
	if d.weights == nil {
		return nil
	}
	return []*Parameter{d.weights, d.bias}
}

// Weights returns the weight parameter.
func (d *Dense) Weights() *Parameter {
	return d.weights
}

// Bias returns the bias parameter.
func (d *Dense) Bias() *Parameter {
	return d.bias
}

func (d *Dense) String() string {
	return fmt.Sprintf("Dense(nodes=%d, features=%d)", d.numNodes, d.numFeatures)
}
