// Package nn implements neural network layers over secret-shared tensors.
//
// This package provides building blocks for constructing networks:
//   - Layer interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradients
//   - Dense, Conv2D, AveragePooling2D, Flatten
//   - Activations: Sigmoid, Relu (polynomial), ReluExact, Softmax
//   - Reveal: the boundary from private to public values
//   - Loss functions: CrossEntropy, Diff
//   - Sequential: Container for stacking layers
//   - DataLoader: Batches of a dataset wrapped as tensors
//
// Layers work on any tensor kind. Layers that are polynomial in their input
// (Dense, Conv2D, pooling, Sigmoid, Relu) run on private tensors; layers
// that need comparisons or exponentials (ReluExact, Softmax) need their
// input revealed first.
package nn

import (
	"math/rand/v2"

	"github.com/born-ml/pond/internal/tensor"
)

// Layer is the base interface for all neural network components.
//
// Every layer must implement:
//   - Initialize: Create parameters and infer the output shape
//   - Forward: Compute output from input, caching what Backward needs
//   - Backward: Store parameter gradients and return the input gradient
//   - Parameters: Return all trainable parameters
type Layer interface {
	// Initialize creates the layer's parameters for inputs of the given
	// per-sample shape (batch dimension excluded) and returns the
	// per-sample output shape.
	Initialize(inputShape tensor.Shape, init Initializer) (tensor.Shape, error)

	// Forward computes the output for a batch.
	Forward(x tensor.Tensor) tensor.Tensor

	// Backward takes the gradient of the loss with respect to the last
	// Forward output and returns the gradient with respect to its input.
	Backward(dy tensor.Tensor) tensor.Tensor

	// Parameters returns all trainable parameters of this layer.
	//
	// Returns an empty slice for layers without parameters.
	Parameters() []*Parameter

	String() string
}

// Initializer controls how layers materialise their parameters.
type Initializer struct {
	// Wrap turns initial values into tensors. Nil means native tensors.
	Wrap tensor.Wrapper

	// Rand draws initial values. Nil means a randomly seeded source.
	Rand *rand.Rand
}

func (i Initializer) withDefaults() Initializer {
	if i.Wrap == nil {
		i.Wrap = tensor.NativeWrapper
	}
	if i.Rand == nil {
		i.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return i
}

// NewRand returns a deterministic source for Initializer.Rand.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Normal returns n samples from N(0, scale²).
func Normal(rng *rand.Rand, n int, scale float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * scale
	}
	return out
}

// Parameter represents a trainable parameter in a neural network.
//
// Tensors are immutable, so an update replaces the value with Set.
type Parameter struct {
	name  string
	value tensor.Tensor
	grad  tensor.Tensor
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, value tensor.Tensor) *Parameter {
	return &Parameter{name: name, value: value}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Value returns the parameter tensor.
func (p *Parameter) Value() tensor.Tensor {
	return p.value
}

// Set replaces the parameter tensor.
func (p *Parameter) Set(value tensor.Tensor) {
	p.value = value
}

// Grad returns the gradient of the last backward pass, or nil.
func (p *Parameter) Grad() tensor.Tensor {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter) SetGrad(grad tensor.Tensor) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
