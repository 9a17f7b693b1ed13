package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/pond/internal/tensor"
)

// Loss is a training objective over a batch of predictions.
//
// Targets are one row per sample. Evaluate reveals private inputs; Derive
// keeps the kind of its operands.
type Loss interface {
	// Evaluate returns the mean loss over the batch.
	Evaluate(pred, target tensor.Tensor) float64

	// Derive returns the gradient of the mean loss with respect to the
	// input of the final layer.
	Derive(pred, target tensor.Tensor) tensor.Tensor

	String() string
}

// Optimizer updates parameters from their gradients.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step(params []*Parameter)

	// ZeroGrad clears the gradients of params.
	ZeroGrad(params []*Parameter)

	// GetLR returns the current learning rate.
	GetLR() float64
}

func checkTargets(pred, target tensor.Tensor) int {
	ps, ts := pred.Shape(), target.Shape()
	if !ps.Equal(ts) || len(ps) == 0 {
		panic(fmt.Errorf("loss: prediction %v vs target %v: %w", ps, ts, tensor.ErrShapeMismatch))
	}
	return ps[0]
}

// CrossEntropy is the categorical cross-entropy of probabilities against
// one-hot targets.
//
// It is meant to follow Softmax: Derive returns (p - t)/N, the gradient with
// respect to the softmax inputs.
type CrossEntropy struct{}

// NewCrossEntropy creates a CrossEntropy loss.
func NewCrossEntropy() *CrossEntropy {
	return &CrossEntropy{}
}

// Evaluate implements Loss.
func (CrossEntropy) Evaluate(pred, target tensor.Tensor) float64 {
	n := checkTargets(pred, target)
	p, t := pred.Float64s(), target.Float64s()
	sum := 0.0
	for i := range p {
		if t[i] != 0 {
			sum -= t[i] * math.Log(math.Max(p[i], 1e-12))
		}
	}
	return sum / float64(n)
}

// Derive implements Loss.
func (CrossEntropy) Derive(pred, target tensor.Tensor) tensor.Tensor {
	n := checkTargets(pred, target)
	return pred.Sub(target).Mul(tensor.Scalar(1 / float64(n)))
}

func (CrossEntropy) String() string { return "CrossEntropy()" }

// Diff is half the mean squared difference between predictions and
// targets.
type Diff struct{}

// NewDiff creates a Diff loss.
func NewDiff() *Diff {
	return &Diff{}
}

// Evaluate implements Loss.
func (Diff) Evaluate(pred, target tensor.Tensor) float64 {
	n := checkTargets(pred, target)
	p, t := pred.Float64s(), target.Float64s()
	sum := 0.0
	for i := range p {
		d := p[i] - t[i]
		sum += d * d
	}
	return sum / (2 * float64(n))
}

// Derive implements Loss.
func (Diff) Derive(pred, target tensor.Tensor) tensor.Tensor {
	n := checkTargets(pred, target)
	return pred.Sub(target).Mul(tensor.Scalar(1 / float64(n)))
}

func (Diff) String() string { return "Diff()" }
