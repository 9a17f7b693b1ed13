// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for building and training networks
// over pond tensors.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewFlatten(),
//	    nn.NewDense(10, 784, nn.DenseConfig{}),
//	    nn.NewReveal(),
//	    nn.NewSoftmax(),
//	)
//	err := model.Initialize(tensor.Shape{1, 28, 28}, nn.Initializer{Wrap: dealer.Wrap})
package nn
