package serialization

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		want     error
	}{
		{
			name: "no overlap",
			tensors: []TensorMeta{
				{Name: "tensor1", Offset: 0, Size: 100},
				{Name: "tensor2", Offset: 100, Size: 200},
				{Name: "tensor3", Offset: 300, Size: 150},
			},
			dataSize: 500,
		},
		{
			name: "partial overlap at boundary",
			tensors: []TensorMeta{
				{Name: "tensor1", Offset: 0, Size: 100},
				{Name: "tensor2", Offset: 99, Size: 100},
			},
			dataSize: 200,
			want:     ErrOffsetOverlap,
		},
		{
			name: "unsorted input",
			tensors: []TensorMeta{
				{Name: "tensor2", Offset: 100, Size: 100},
				{Name: "tensor1", Offset: 0, Size: 100},
			},
			dataSize: 200,
		},
		{
			name:     "beyond data",
			tensors:  []TensorMeta{{Name: "tensor1", Offset: 50, Size: 100}},
			dataSize: 120,
			want:     ErrOutOfBounds,
		},
		{
			name:     "negative offset",
			tensors:  []TensorMeta{{Name: "tensor1", Offset: -8, Size: 8}},
			dataSize: 120,
			want:     ErrNegativeOffset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	valid := []string{"0.weights", "layer_1.bias", "conv.filters"}
	for _, name := range valid {
		assert.NoError(t, ValidateTensorName(name), name)
	}

	invalid := []string{"", "../etc/passwd", "a/b", "a\\b", "a\x00b"}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateTensorName(name), ErrInvalidTensorName, name)
	}
	assert.ErrorIs(t, ValidateTensorName(strings.Repeat("x", MaxTensorNameLen+1)), ErrTensorNameTooLong)
}

func TestValidateChecksum(t *testing.T) {
	data := []byte("pond")
	sum := ComputeChecksum(data)
	assert.NoError(t, ValidateChecksum(data, sum))
	assert.ErrorIs(t, ValidateChecksum([]byte("pend"), sum), ErrChecksumMismatch)
}
