// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for pond tensors.
//
// Three kinds share one interface and promote Native < Public < Private
// when mixed:
//   - Native: plain float64 values
//   - Public: fixed-point encodings in Z/2^64 known to both parties
//   - Private: two additive shares of the encodings, multiplied with
//     Beaver triples from a Dealer
//
// Example:
//
//	dealer := tensor.NewDealer(seed)
//	x := dealer.Wrap([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
//	w := tensor.NativeWrapper([]float64{0.5, 0, 0, 0.5}, tensor.Shape{2, 2})
//	y := x.Dot(w)          // private
//	fmt.Println(y.Reveal()) // public
package tensor
