package nn

import (
	"fmt"
	"iter"

	"github.com/born-ml/pond/internal/tensor"
)

// DataLoader serves batches of an in-memory dataset as tensors.
//
// Samples are stored row-major as float64; the wrapper decides whether a
// batch becomes a native, public or private tensor.
type DataLoader struct {
	data        []float64
	sampleShape tensor.Shape
	sampleSize  int
	n           int
	wrap        tensor.Wrapper
}

// NewDataLoader creates a loader over data whose leading dimension of shape
// is the sample count. A nil wrap means native tensors.
func NewDataLoader(data []float64, shape tensor.Shape, wrap tensor.Wrapper) (*DataLoader, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("dataloader: shape needs a sample dimension")
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("dataloader: %w", err)
	}
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("dataloader: %d values do not fill shape %v", len(data), shape)
	}
	if wrap == nil {
		wrap = tensor.NativeWrapper
	}
	sample := shape[1:].Clone()
	return &DataLoader{
		data:        data,
		sampleShape: sample,
		sampleSize:  sample.NumElements(),
		n:           shape[0],
		wrap:        wrap,
	}, nil
}

// Len returns the number of samples.
func (l *DataLoader) Len() int {
	return l.n
}

// SampleShape returns the per-sample shape.
func (l *DataLoader) SampleShape() tensor.Shape {
	return l.sampleShape
}

// WithWrapper returns a loader over the same data producing another kind.
func (l *DataLoader) WithWrapper(wrap tensor.Wrapper) *DataLoader {
	c := *l
	c.wrap = wrap
	return &c
}

func (l *DataLoader) batchShape(n int) tensor.Shape {
	return append(tensor.Shape{n}, l.sampleShape...)
}

// Batch gathers the samples at indices.
func (l *DataLoader) Batch(indices []int) tensor.Tensor {
	out := make([]float64, 0, len(indices)*l.sampleSize)
	for _, idx := range indices {
		if idx < 0 || idx >= l.n {
			panic(fmt.Sprintf("dataloader: index %d out of range [0, %d)", idx, l.n))
		}
		out = append(out, l.data[idx*l.sampleSize:(idx+1)*l.sampleSize]...)
	}
	return l.wrap(out, l.batchShape(len(indices)))
}

// Range returns samples [start, end).
func (l *DataLoader) Range(start, end int) tensor.Tensor {
	if start < 0 || end > l.n || start >= end {
		panic(fmt.Sprintf("dataloader: invalid range [%d, %d) of %d samples", start, end, l.n))
	}
	out := make([]float64, (end-start)*l.sampleSize)
	copy(out, l.data[start*l.sampleSize:end*l.sampleSize])
	return l.wrap(out, l.batchShape(end-start))
}

// Batches yields consecutive batches with their index. The final batch is
// shorter when batchSize does not divide Len.
func (l *DataLoader) Batches(batchSize int) iter.Seq2[int, tensor.Tensor] {
	if batchSize <= 0 {
		panic(fmt.Sprintf("dataloader: invalid batch size %d", batchSize))
	}
	return func(yield func(int, tensor.Tensor) bool) {
		for i, start := 0, 0; start < l.n; i, start = i+1, start+batchSize {
			if !yield(i, l.Range(start, min(start+batchSize, l.n))) {
				return
			}
		}
	}
}

// NumBatches returns how many batches Batches yields.
func (l *DataLoader) NumBatches(batchSize int) int {
	return (l.n + batchSize - 1) / batchSize
}

// All returns the whole dataset as one batch.
func (l *DataLoader) All() tensor.Tensor {
	return l.Range(0, l.n)
}
