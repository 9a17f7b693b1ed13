// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/pond/tensor"
)

func TestPublicAPI(t *testing.T) {
	dealer := tensor.NewDealer([32]byte{9})
	x := dealer.Wrap([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	w := tensor.NativeWrapper([]float64{0.5, 0, 0, 0.5}, tensor.Shape{2, 2})

	y := x.Dot(w)
	require.Equal(t, tensor.Private, y.Kind())
	assert.InDeltaSlice(t, []float64{0.5, 1, 1.5, 2}, y.Reveal().Float64s(), 1e-3)

	k, err := tensor.ParseKind("public")
	require.NoError(t, err)
	assert.Equal(t, tensor.Public, k)
}
