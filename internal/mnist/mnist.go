// Package mnist loads the MNIST handwritten digit dataset.
//
// Files are read in the official IDX format, plain or gzipped:
//
//	train-images-idx3-ubyte[.gz]   train-labels-idx1-ubyte[.gz]
//	t10k-images-idx3-ubyte[.gz]    t10k-labels-idx1-ubyte[.gz]
//
// Images are scaled to [0, 1] and laid out channels-first.
package mnist

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"

	"github.com/born-ml/pond/internal/tensor"
)

// Classes is the number of digit classes.
const Classes = 10

// Dataset holds images and labels.
type Dataset struct {
	Images []float64 // [N * Rows * Cols], scaled to [0, 1]
	Labels []int     // [N]
	Rows   int
	Cols   int
}

// Load reads the training or test split from dir. At most maxSamples
// samples are loaded when maxSamples > 0.
func Load(dir string, train bool, maxSamples int) (*Dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}
	imageFile := filepath.Join(dir, prefix+"-images-idx3-ubyte")
	labelFile := filepath.Join(dir, prefix+"-labels-idx1-ubyte")

	ir, err := openIDX(imageFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}
	defer func() {
		_ = ir.Close()
	}()
	pixels, n, rows, cols, err := readIDXImages(ir, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imageFile, err)
	}

	lr, err := openIDX(labelFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}
	defer func() {
		_ = lr.Close()
	}()
	raw, err := readIDXLabels(lr, maxSamples)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labelFile, err)
	}

	if n != len(raw) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", n, len(raw))
	}

	d := &Dataset{
		Images: make([]float64, len(pixels)),
		Labels: make([]int, n),
		Rows:   rows,
		Cols:   cols,
	}
	for i, p := range pixels {
		d.Images[i] = float64(p) / 255.0
	}
	for i, l := range raw {
		if l >= Classes {
			return nil, fmt.Errorf("%s: label %d of sample %d out of range", labelFile, l, i)
		}
		d.Labels[i] = int(l)
	}
	return d, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// ImageShape returns [N, 1, Rows, Cols].
func (d *Dataset) ImageShape() tensor.Shape {
	return tensor.Shape{d.Len(), 1, d.Rows, d.Cols}
}

// OneHot encodes the labels as rows of a [N, classes] matrix.
func (d *Dataset) OneHot(classes int) []float64 {
	out := make([]float64, d.Len()*classes)
	for i, l := range d.Labels {
		if l < 0 || l >= classes {
			panic(fmt.Sprintf("mnist: label %d outside %d classes", l, classes))
		}
		out[i*classes+l] = 1
	}
	return out
}

// Split splits the dataset into train and validation sets, keeping order.
// validationRatio is the fraction of samples in the second set.
func (d *Dataset) Split(validationRatio float64) (*Dataset, *Dataset) {
	if validationRatio < 0 || validationRatio > 1 {
		panic(fmt.Sprintf("mnist: invalid validation ratio %g", validationRatio))
	}
	splitIdx := int(float64(d.Len()) * (1 - validationRatio))
	size := d.Rows * d.Cols
	return &Dataset{
			Images: d.Images[:splitIdx*size],
			Labels: d.Labels[:splitIdx],
			Rows:   d.Rows,
			Cols:   d.Cols,
		}, &Dataset{
			Images: d.Images[splitIdx*size:],
			Labels: d.Labels[splitIdx:],
			Rows:   d.Rows,
			Cols:   d.Cols,
		}
}

// Synthetic returns n deterministic 28x28 samples for runs without the real
// dataset. Digit k is a bright horizontal band starting at row 2k, with a
// little seeded noise so samples of a class differ.
func Synthetic(n int, seed uint64) *Dataset {
	const rows, cols = 28, 28
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	d := &Dataset{
		Images: make([]float64, n*rows*cols),
		Labels: make([]int, n),
		Rows:   rows,
		Cols:   cols,
	}
	for i := range n {
		label := i % Classes
		d.Labels[i] = label
		img := d.Images[i*rows*cols : (i+1)*rows*cols]
		for r := label * 2; r < label*2+8 && r < rows; r++ {
			for c := 5; c < 23; c++ {
				img[r*cols+c] = 0.8
			}
		}
		for j := range img {
			img[j] = min(1, max(0, img[j]+rng.NormFloat64()*0.05))
		}
	}
	return d
}
