package fixedpoint

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		x    float64
	}{
		{"zero", 0},
		{"one", 1},
		{"negative", -3.25},
		{"fraction", 0.123456},
		{"large", 123456.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Encode(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.x, Decode(v), 1.0/Scale)
		})
	}
}

func TestEncode_Overflow(t *testing.T) {
	_, err := Encode(Bound)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverflow))

	var oe *OverflowError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, Bound, oe.Value)

	_, err = Encode(math.NaN())
	assert.True(t, errors.Is(err, ErrInvalid))

	assert.Panics(t, func() { MustEncode(math.Inf(-1)) })
}

func TestEncodeStrict_Underflow(t *testing.T) {
	v, err := Encode(1e-9)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = EncodeStrict(1e-9)
	assert.True(t, errors.Is(err, ErrUnderflow))

	_, err = EncodeStrict(0)
	assert.NoError(t, err)
}

func TestTruncate_Product(t *testing.T) {
	a := MustEncode(-1.5)
	b := MustEncode(2.25)
	assert.InDelta(t, -3.375, Decode(Truncate(a*b)), 1.0/Scale)
}

func TestTruncateShares(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 1000; i++ {
		x := (rng.Float64()*2 - 1) * 100
		y := (rng.Float64()*2 - 1) * 10
		prod := MustEncode(x) * MustEncode(y)

		s0 := rng.Uint64()
		s1 := prod - s0
		t0, t1 := TruncateShares(s0, s1)

		assert.InDelta(t, Decode(Truncate(prod)), Decode(t0+t1), 1.5/Scale, "x=%v y=%v", x, y)
	}
}

func TestEncodeSlice(t *testing.T) {
	vs, err := EncodeSlice([]float64{1, -2, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 0.5}, DecodeSlice(vs))

	_, err = EncodeSlice([]float64{1, math.Inf(1)})
	assert.ErrorContains(t, err, "index 1")
}
