package tensor

import (
	"fmt"

	"github.com/born-ml/pond/internal/parallel"
)

// number covers the element types of the kernels: float64 for native
// tensors and uint64 for ring elements, where + and * wrap mod 2^64.
type number interface {
	~float64 | ~uint64
}

// broadcastTo returns the broadcast output shape of a and b, or panics.
func broadcastTo(a, b Shape) Shape {
	out, _, err := BroadcastShapes(a, b)
	if err != nil {
		panic(err)
	}
	return out
}

// expand materialises data of shape from into shape to.
func expand[T any](data []T, from, to Shape) []T {
	if from.Equal(to) {
		return data
	}

	// Source strides aligned to the right of to; broadcast axes get 0.
	srcStrides := make([]int, len(to))
	fromStrides := from.ComputeStrides()
	offset := len(to) - len(from)
	for i := range from {
		if from[i] != 1 {
			srcStrides[offset+i] = fromStrides[i]
		}
	}

	n := to.NumElements()
	out := make([]T, n)
	index := make([]int, len(to))
	src := 0
	for i := 0; i < n; i++ {
		out[i] = data[src]
		for ax := len(to) - 1; ax >= 0; ax-- {
			index[ax]++
			src += srcStrides[ax]
			if index[ax] < to[ax] {
				break
			}
			src -= srcStrides[ax] * index[ax]
			index[ax] = 0
		}
	}
	return out
}

// zipWith applies f element-wise to two broadcast-compatible operands.
func zipWith[T any](a []T, as Shape, b []T, bs Shape, f func(x, y T) T) ([]T, Shape) {
	shape := broadcastTo(as, bs)
	a = expand(a, as, shape)
	b = expand(b, bs, shape)
	out := make([]T, len(a))
	for i := range out {
		out[i] = f(a[i], b[i])
	}
	return out, shape
}

// sumAxis reduces data of shape along axis.
func sumAxis[T number](data []T, shape Shape, axis int, keepDims bool) ([]T, Shape) {
	axis = normalizeAxis(axis, len(shape))
	outer := Shape(shape[:axis]).NumElements()
	dim := shape[axis]
	inner := Shape(shape[axis+1:]).NumElements()

	out := make([]T, outer*inner)
	for o := 0; o < outer; o++ {
		dst := out[o*inner : (o+1)*inner]
		for d := 0; d < dim; d++ {
			src := data[(o*dim+d)*inner : (o*dim+d+1)*inner]
			for i := range dst {
				dst[i] += src[i]
			}
		}
	}

	outShape := shape.Clone()
	if keepDims {
		outShape[axis] = 1
	} else {
		outShape = append(outShape[:axis], outShape[axis+1:]...)
	}
	return out, outShape
}

// normalizeAxis maps negative axes and validates the result.
func normalizeAxis(axis, rank int) int {
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis >= rank {
		panic(fmt.Errorf("tensor: axis %d out of range for rank %d: %w", axis, rank, ErrShapeMismatch))
	}
	return axis
}

// permute transposes data of shape by perm.
func permute[T any](data []T, shape Shape, perm []int) ([]T, Shape) {
	rank := len(shape)
	if len(perm) == 0 {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	if len(perm) != rank {
		panic(fmt.Errorf("tensor: permutation %v for rank %d: %w", perm, rank, ErrShapeMismatch))
	}

	seen := make([]bool, rank)
	outShape := make(Shape, rank)
	inStrides := shape.ComputeStrides()
	srcStrides := make([]int, rank)
	for i, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			panic(fmt.Errorf("tensor: invalid permutation %v: %w", perm, ErrShapeMismatch))
		}
		seen[p] = true
		outShape[i] = shape[p]
		srcStrides[i] = inStrides[p]
	}

	n := len(data)
	out := make([]T, n)
	index := make([]int, rank)
	src := 0
	for i := 0; i < n; i++ {
		out[i] = data[src]
		for ax := rank - 1; ax >= 0; ax-- {
			index[ax]++
			src += srcStrides[ax]
			if index[ax] < outShape[ax] {
				break
			}
			src -= srcStrides[ax] * index[ax]
			index[ax] = 0
		}
	}
	return out, outShape
}

// reshape validates a reshape of n elements.
func reshape(shape Shape, dims []int) Shape {
	out, err := Shape(dims).Resolve(shape.NumElements())
	if err != nil {
		panic(fmt.Errorf("tensor: reshape %v: %w: %w", shape, ErrShapeMismatch, err))
	}
	return out
}

// rows slices [start, end) along the first axis.
func rows[T any](data []T, shape Shape, start, end int) ([]T, Shape) {
	if len(shape) == 0 || start < 0 || end > shape[0] || start >= end {
		panic(fmt.Errorf("tensor: rows [%d, %d) of %v: %w", start, end, shape, ErrShapeMismatch))
	}
	stride := Shape(shape[1:]).NumElements()
	out := shape.Clone()
	out[0] = end - start
	return data[start*stride : end*stride], out
}

// matmul multiplies an m×k matrix by a k×n matrix.
func matmul[T number](a, b []T, m, k, n int) []T {
	out := make([]T, m*n)
	parallel.For(m, func(i int) {
		row := out[i*n : (i+1)*n]
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			brow := b[p*n : (p+1)*n]
			for j := range row {
				row[j] += av * brow[j]
			}
		}
	}, parallel.Default())
	return out
}

// Conv describes the geometry of a 2D convolution for Im2Col and Col2Im.
type Conv struct {
	FilterH int
	FilterW int
	Stride  int
	Padding int
}

// OutputSize returns the spatial output size for an input of h×w.
func (c Conv) OutputSize(h, w int) (int, int) {
	return (h+2*c.Padding-c.FilterH)/c.Stride + 1, (w+2*c.Padding-c.FilterW)/c.Stride + 1
}

// Validate checks that the geometry is usable on an h×w input.
func (c Conv) Validate(h, w int) error {
	if c.FilterH <= 0 || c.FilterW <= 0 {
		return fmt.Errorf("invalid filter size %dx%d", c.FilterH, c.FilterW)
	}
	if c.Stride <= 0 {
		return fmt.Errorf("invalid stride %d", c.Stride)
	}
	if c.Padding < 0 {
		return fmt.Errorf("invalid padding %d", c.Padding)
	}
	if h+2*c.Padding < c.FilterH || w+2*c.Padding < c.FilterW {
		return fmt.Errorf("filter %dx%d larger than padded input %dx%d",
			c.FilterH, c.FilterW, h+2*c.Padding, w+2*c.Padding)
	}
	return nil
}

// imageDims validates a [N, C, H, W] shape for c.
func (c Conv) imageDims(shape Shape) (n, ch, h, w int) {
	if len(shape) != 4 {
		panic(fmt.Errorf("tensor: im2col expects [N, C, H, W], got %v: %w", shape, ErrShapeMismatch))
	}
	if err := c.Validate(shape[2], shape[3]); err != nil {
		panic(fmt.Errorf("tensor: im2col on %v: %w: %w", shape, ErrShapeMismatch, err))
	}
	return shape[0], shape[1], shape[2], shape[3]
}

// im2col gathers receptive fields. Row r = (ci*FilterH + i)*FilterW + j,
// column = (y*outW + x)*N + b. Padding reads the zero value.
func im2col[T any](data []T, shape Shape, c Conv) ([]T, Shape) {
	n, ch, h, w := c.imageDims(shape)
	oh, ow := c.OutputSize(h, w)
	numRows := ch * c.FilterH * c.FilterW
	numCols := oh * ow * n

	out := make([]T, numRows*numCols)
	parallel.For(numRows, func(r int) {
		j := r % c.FilterW
		i := (r / c.FilterW) % c.FilterH
		ci := r / (c.FilterW * c.FilterH)
		dst := out[r*numCols : (r+1)*numCols]
		for y := 0; y < oh; y++ {
			iy := y*c.Stride + i - c.Padding
			if iy < 0 || iy >= h {
				continue
			}
			for x := 0; x < ow; x++ {
				ix := x*c.Stride + j - c.Padding
				if ix < 0 || ix >= w {
					continue
				}
				col := (y*ow + x) * n
				for b := 0; b < n; b++ {
					dst[col+b] = data[((b*ch+ci)*h+iy)*w+ix]
				}
			}
		}
	}, parallel.Default())

	return out, Shape{numRows, numCols}
}

// col2im scatters columns back to an image of imShape, summing overlaps.
func col2im[T number](cols []T, colShape Shape, c Conv, imShape Shape) []T {
	n, ch, h, w := c.imageDims(imShape)
	oh, ow := c.OutputSize(h, w)
	numRows := ch * c.FilterH * c.FilterW
	numCols := oh * ow * n
	if !colShape.Equal(Shape{numRows, numCols}) {
		panic(fmt.Errorf("tensor: col2im columns %v for image %v: %w", colShape, imShape, ErrShapeMismatch))
	}

	out := make([]T, imShape.NumElements())
	// Each (sample, channel) pair owns a disjoint slice of out.
	parallel.ForBatch(n, ch, func(b, ci int) {
		for i := 0; i < c.FilterH; i++ {
			for j := 0; j < c.FilterW; j++ {
				r := (ci*c.FilterH+i)*c.FilterW + j
				src := cols[r*numCols : (r+1)*numCols]
				for y := 0; y < oh; y++ {
					iy := y*c.Stride + i - c.Padding
					if iy < 0 || iy >= h {
						continue
					}
					for x := 0; x < ow; x++ {
						ix := x*c.Stride + j - c.Padding
						if ix < 0 || ix >= w {
							continue
						}
						out[((b*ch+ci)*h+iy)*w+ix] += src[(y*ow+x)*n+b]
					}
				}
			}
		}
	}, parallel.Config{Enabled: true, NumWorkers: parallel.Default().NumWorkers, MinChunkSize: 1})

	return out
}
