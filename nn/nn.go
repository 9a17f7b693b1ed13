// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/pond/internal/nn"
	"github.com/born-ml/pond/tensor"
)

// Core types.
type (
	Layer       = nn.Layer
	Initializer = nn.Initializer
	Parameter   = nn.Parameter
	Sequential  = nn.Sequential
	DataLoader  = nn.DataLoader
	Loss        = nn.Loss
	Optimizer   = nn.Optimizer
)

// NewSequential creates a container that chains layers.
func NewSequential(layers ...Layer) *Sequential {
	return nn.NewSequential(layers...)
}

// NewDataLoader wraps row-major samples for batching.
func NewDataLoader(data []float64, shape tensor.Shape, wrap tensor.Wrapper) (*DataLoader, error) {
	return nn.NewDataLoader(data, shape, wrap)
}

// Layers

type (
	Dense            = nn.Dense
	DenseConfig      = nn.DenseConfig
	Conv2D           = nn.Conv2D
	Conv2DConfig     = nn.Conv2DConfig
	AveragePooling2D = nn.AveragePooling2D
	Flatten          = nn.Flatten
	Sigmoid          = nn.Sigmoid
	Relu             = nn.Relu
	ReluConfig       = nn.ReluConfig
	ReluExact        = nn.ReluExact
	Softmax          = nn.Softmax
	Reveal           = nn.Reveal
)

// NewDense creates a fully connected layer.
func NewDense(numNodes, numFeatures int, cfg DenseConfig) *Dense {
	return nn.NewDense(numNodes, numFeatures, cfg)
}

// NewConv2D creates a convolution with filters of shape {h, w, in, out}.
func NewConv2D(filterShape [4]int, cfg Conv2DConfig) *Conv2D {
	return nn.NewConv2D(filterShape, cfg)
}

// NewAveragePooling2D creates a non-overlapping average pool.
func NewAveragePooling2D(poolH, poolW int) *AveragePooling2D {
	return nn.NewAveragePooling2D(poolH, poolW)
}

// NewFlatten creates a layer flattening all but the batch dimension.
func NewFlatten() *Flatten { return nn.NewFlatten() }

// NewSigmoid creates the polynomial sigmoid.
func NewSigmoid() *Sigmoid { return nn.NewSigmoid() }

// NewRelu creates a polynomial ReLU fitted per cfg.
func NewRelu(cfg ReluConfig) (*Relu, error) { return nn.NewRelu(cfg) }

// NewReluExact creates the exact ReLU for plaintext inputs.
func NewReluExact() *ReluExact { return nn.NewReluExact() }

// NewSoftmax creates a row-wise softmax for plaintext inputs.
func NewSoftmax() *Softmax { return nn.NewSoftmax() }

// NewReveal creates a layer opening private inputs.
func NewReveal() *Reveal { return nn.NewReveal() }

// Losses

type (
	CrossEntropy = nn.CrossEntropy
	Diff         = nn.Diff
)

// NewCrossEntropy creates the cross-entropy loss for softmax outputs.
func NewCrossEntropy() *CrossEntropy { return nn.NewCrossEntropy() }

// NewDiff creates the squared-difference loss.
func NewDiff() *Diff { return nn.NewDiff() }

// SaveCheckpoint writes the model's revealed parameters to a SafeTensors file.
func SaveCheckpoint(path string, model *Sequential, metadata map[string]string) error {
	return nn.SaveCheckpoint(path, model, metadata)
}

// LoadCheckpoint restores parameters saved by SaveCheckpoint.
func LoadCheckpoint(path string, model *Sequential, wrap tensor.Wrapper) (map[string]string, error) {
	return nn.LoadCheckpoint(path, model, wrap)
}
