// Package models builds the networks trained by the CLI and examples.
package models

import (
	"fmt"

	"github.com/born-ml/pond/internal/nn"
	"github.com/born-ml/pond/internal/tensor"
)

// InputShape is the per-sample MNIST image shape.
var InputShape = tensor.Shape{1, 28, 28}

// Activation names the non-linearity used between layers.
type Activation string

// Supported activations.
const (
	ReluExact Activation = "relu-exact"
	Relu      Activation = "relu"
	Sigmoid   Activation = "sigmoid"
)

// ParseActivation validates an activation name.
func ParseActivation(s string) (Activation, error) {
	switch a := Activation(s); a {
	case ReluExact, Relu, Sigmoid:
		return a, nil
	default:
		return "", fmt.Errorf("models: unknown activation %q", s)
	}
}

// Secure reports whether the activation runs on private tensors.
func (a Activation) Secure() bool {
	return a != ReluExact
}

func (a Activation) layer() (nn.Layer, error) {
	switch a {
	case "", ReluExact:
		return nn.NewReluExact(), nil
	case Relu:
		return nn.NewRelu(nn.ReluConfig{})
	case Sigmoid:
		return nn.NewSigmoid(), nil
	default:
		return nil, fmt.Errorf("models: unknown activation %q", a)
	}
}

// ModelConfig configures the builders.
type ModelConfig struct {
	Activation  Activation // default: relu-exact
	FilterScale float64    // filter init standard deviation (default: 0.1)
}

// ConvPool returns two strided convolutions with average pooling followed
// by a dense classifier:
//
//	Conv2D(4x4, 1->20, stride 2, pad 1) -> act -> AvgPool(2x2)
//	Conv2D(3x3, 20->20, stride 2, pad 1) -> act -> AvgPool(2x2)
//	Flatten -> Dense(80->10) -> Reveal -> Softmax
//
// On 28x28 inputs the feature maps shrink 28 -> 14 -> 7 -> 4 -> 2.
func ConvPool(cfg ModelConfig) (*nn.Sequential, error) {
	if cfg.FilterScale == 0 {
		cfg.FilterScale = 0.1
	}
	act1, err := cfg.Activation.layer()
	if err != nil {
		return nil, err
	}
	act2, err := cfg.Activation.layer()
	if err != nil {
		return nil, err
	}
	filters := nn.NormalFilters(cfg.FilterScale)

	return nn.NewSequential(
		nn.NewConv2D([4]int{4, 4, 1, 20}, nn.Conv2DConfig{Stride: 2, Padding: 1, FilterInit: filters}),
		act1,
		nn.NewAveragePooling2D(2, 2),
		nn.NewConv2D([4]int{3, 3, 20, 20}, nn.Conv2DConfig{Stride: 2, Padding: 1, FilterInit: filters}),
		act2,
		nn.NewAveragePooling2D(2, 2),
		nn.NewFlatten(),
		nn.NewDense(10, 80, nn.DenseConfig{}),
		nn.NewReveal(),
		nn.NewSoftmax(),
	), nil
}

// Dense returns a one-hidden-layer baseline. The activation defaults to
// sigmoid.
func Dense(hidden int, cfg ModelConfig) (*nn.Sequential, error) {
	if cfg.Activation == "" {
		cfg.Activation = Sigmoid
	}
	act, err := cfg.Activation.layer()
	if err != nil {
		return nil, err
	}
	features := InputShape.NumElements()
	return nn.NewSequential(
		nn.NewFlatten(),
		nn.NewDense(hidden, features, nn.DenseConfig{InitialScale: 0.1}),
		act,
		nn.NewDense(10, hidden, nn.DenseConfig{InitialScale: 0.1}),
		nn.NewReveal(),
		nn.NewSoftmax(),
	), nil
}

// Build returns the named architecture: "convpool" or "dense".
func Build(name string, cfg ModelConfig) (*nn.Sequential, error) {
	switch name {
	case "convpool":
		return ConvPool(cfg)
	case "dense":
		return Dense(128, cfg)
	default:
		return nil, fmt.Errorf("models: unknown model %q", name)
	}
}
