// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/pond/internal/tensor"

// Tensor is the interface shared by every tensor kind.
type Tensor = tensor.Tensor

// Shape is a tensor shape, outermost dimension first.
type Shape = tensor.Shape

// Kind identifies how a tensor holds its values.
type Kind = tensor.Kind

// Tensor kinds in promotion order.
const (
	Native  = tensor.Native
	Public  = tensor.Public
	Private = tensor.Private
)

// Concrete tensor types.
type (
	NativeTensor  = tensor.NativeTensor
	PublicTensor  = tensor.PublicTensor
	PrivateTensor = tensor.PrivateTensor
)

// Wrapper turns raw values into a tensor of some kind.
type Wrapper = tensor.Wrapper

// Dealer produces shares and multiplication triples for private tensors.
type Dealer = tensor.Dealer

// DealerStats counts the material a Dealer has produced.
type DealerStats = tensor.DealerStats

// Sentinel errors.
var (
	ErrShapeMismatch  = tensor.ErrShapeMismatch
	ErrPrivateOperand = tensor.ErrPrivateOperand
)

// NewNative creates a native tensor over data.
func NewNative(data []float64, shape Shape) (*NativeTensor, error) {
	return tensor.NewNative(data, shape)
}

// NewPublic encodes data as a public tensor.
func NewPublic(data []float64, shape Shape) (*PublicTensor, error) {
	return tensor.NewPublic(data, shape)
}

// NewDealer creates a dealer with a deterministic stream.
func NewDealer(seed [32]byte) *Dealer {
	return tensor.NewDealer(seed)
}

// NewRandomDealer seeds a dealer from the operating system.
func NewRandomDealer() (*Dealer, error) {
	return tensor.NewRandomDealer()
}

// ParseKind parses "native", "public" or "private".
func ParseKind(s string) (Kind, error) {
	return tensor.ParseKind(s)
}

// NativeWrapper wraps values as a native tensor.
func NativeWrapper(data []float64, shape Shape) Tensor {
	return tensor.NativeWrapper(data, shape)
}

// PublicWrapper wraps values as a public tensor.
func PublicWrapper(data []float64, shape Shape) Tensor {
	return tensor.PublicWrapper(data, shape)
}
