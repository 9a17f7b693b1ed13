package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/pond/internal/tensor"
)

// sigmoidCoeffs approximate 1/(1+e^-x) with an odd polynomial around 0.5.
var sigmoidCoeffs = []float64{
	0.5,
	0.2159198015,
	0,
	-0.0082176259,
	0,
	0.0001825597,
	0,
	-0.0000018848,
	0,
	0.0000000072,
}

// polyval evaluates Σ c[i]·x^i element-wise by Horner's rule.
//
// Only additions and multiplications are used, so x may be private.
func polyval(x tensor.Tensor, coeffs []float64) tensor.Tensor {
	n := len(coeffs) - 1
	if n < 0 {
		panic("nn: empty polynomial")
	}
	acc := x.Mul(tensor.Scalar(coeffs[n]))
	if n == 0 {
		// Constant polynomial: acc is zero-valued with x's shape and kind.
		return acc.Sub(acc).Add(tensor.Scalar(coeffs[0]))
	}
	acc = acc.Add(tensor.Scalar(coeffs[n-1]))
	for i := n - 2; i >= 0; i-- {
		acc = acc.Mul(x).Add(tensor.Scalar(coeffs[i]))
	}
	return acc
}

// Sigmoid is a polynomial approximation of the logistic function.
//
// The approximation is accurate on roughly [-5, 5] and diverges outside.
// Backward uses dy · y · (1 - y) on the cached output.
type Sigmoid struct {
	output tensor.Tensor
}

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{}
}

// Initialize implements Layer.
func (s *Sigmoid) Initialize(inputShape tensor.Shape, _ Initializer) (tensor.Shape, error) {
	return inputShape.Clone(), nil
}

// Forward implements Layer.
func (s *Sigmoid) Forward(x tensor.Tensor) tensor.Tensor {
	s.output = polyval(x, sigmoidCoeffs)
	return s.output
}

// Backward implements Layer.
func (s *Sigmoid) Backward(dy tensor.Tensor) tensor.Tensor {
	if s.output == nil {
		panic("sigmoid: backward before forward")
	}
	y := s.output
	oneMinus := y.Neg().Add(tensor.Scalar(1))
	return dy.Mul(y).Mul(oneMinus)
}

// Parameters implements Layer.
func (s *Sigmoid) Parameters() []*Parameter { return nil }

func (s *Sigmoid) String() string { return "Sigmoid()" }

// ReluConfig configures the polynomial approximation used by Relu.
type ReluConfig struct {
	Order   int        // Polynomial order (default: 3)
	Domain  [2]float64 // Fitting interval (default: [-1, 1])
	Samples int        // Fitting points (default: 1000)
}

// Relu approximates max(0, x) by a least-squares polynomial fitted on a
// fixed interval.
//
// Unlike ReluExact it runs on private tensors. Outside the fitting interval
// the approximation degrades quickly, so inputs should be kept small.
type Relu struct {
	cfg    ReluConfig
	coeffs []float64
	deriv  []float64
	input  tensor.Tensor
}

// NewRelu fits the approximation and returns the layer.
func NewRelu(cfg ReluConfig) (*Relu, error) {
	if cfg.Order == 0 {
		cfg.Order = 3
	}
	if cfg.Domain == [2]float64{} {
		cfg.Domain = [2]float64{-1, 1}
	}
	if cfg.Samples == 0 {
		cfg.Samples = 1000
	}
	coeffs, err := PolyFit(func(x float64) float64 { return math.Max(0, x) },
		cfg.Order, cfg.Domain[0], cfg.Domain[1], cfg.Samples)
	if err != nil {
		return nil, fmt.Errorf("relu: %w", err)
	}
	return &Relu{cfg: cfg, coeffs: coeffs, deriv: PolyDerivative(coeffs)}, nil
}

// Coefficients returns the fitted coefficients, lowest order first.
func (r *Relu) Coefficients() []float64 {
	return r.coeffs
}

// Initialize implements Layer.
func (r *Relu) Initialize(inputShape tensor.Shape, _ Initializer) (tensor.Shape, error) {
	return inputShape.Clone(), nil
}

// Forward implements Layer.
func (r *Relu) Forward(x tensor.Tensor) tensor.Tensor {
	r.input = x
	return polyval(x, r.coeffs)
}

// Backward implements Layer.
func (r *Relu) Backward(dy tensor.Tensor) tensor.Tensor {
	if r.input == nil {
		panic("relu: backward before forward")
	}
	return dy.Mul(polyval(r.input, r.deriv))
}

// Parameters implements Layer.
func (r *Relu) Parameters() []*Parameter { return nil }

func (r *Relu) String() string {
	return fmt.Sprintf("Relu(order=%d, domain=[%g, %g])", r.cfg.Order, r.cfg.Domain[0], r.cfg.Domain[1])
}

// ReluExact computes max(0, x) exactly.
//
// It needs a comparison on plaintext values and panics with an error
// wrapping tensor.ErrPrivateOperand when given a private tensor.
type ReluExact struct {
	mask tensor.Tensor
}

// NewReluExact creates an exact ReLU activation.
func NewReluExact() *ReluExact {
	return &ReluExact{}
}

// Initialize implements Layer.
func (r *ReluExact) Initialize(inputShape tensor.Shape, _ Initializer) (tensor.Shape, error) {
	return inputShape.Clone(), nil
}

// Forward implements Layer.
func (r *ReluExact) Forward(x tensor.Tensor) tensor.Tensor {
	r.mask = tensor.Positive(x)
	return x.Mul(r.mask)
}

// Backward implements Layer.
func (r *ReluExact) Backward(dy tensor.Tensor) tensor.Tensor {
	if r.mask == nil {
		panic("relu_exact: backward before forward")
	}
	return dy.Mul(r.mask)
}

// Parameters implements Layer.
func (r *ReluExact) Parameters() []*Parameter { return nil }

func (r *ReluExact) String() string { return "ReluExact()" }

// Softmax normalises every row of a 2D batch into a probability
// distribution.
//
// The exponentials are computed on plaintext, so private inputs must be
// revealed first. Backward passes the gradient through unchanged: pair it
// with CrossEntropy, whose Derive already yields the gradient with respect
// to the softmax inputs.
type Softmax struct{}

// NewSoftmax creates a Softmax activation.
func NewSoftmax() *Softmax {
	return &Softmax{}
}

// Initialize implements Layer.
func (s *Softmax) Initialize(inputShape tensor.Shape, _ Initializer) (tensor.Shape, error) {
	if len(inputShape) != 1 {
		return nil, fmt.Errorf("softmax: expected input shape [classes], got %v", inputShape)
	}
	return inputShape.Clone(), nil
}

// Forward implements Layer.
func (s *Softmax) Forward(x tensor.Tensor) tensor.Tensor {
	if x.Kind() == tensor.Private {
		panic(fmt.Errorf("softmax: %s: %w", x, tensor.ErrPrivateOperand))
	}
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Errorf("softmax: expected 2D input, got %v: %w", shape, tensor.ErrShapeMismatch))
	}
	in := x.Float64s()
	out := make([]float64, len(in))
	cols := shape[1]
	for r := range shape[0] {
		row := in[r*cols : (r+1)*cols]
		peak := math.Inf(-1)
		for _, v := range row {
			peak = math.Max(peak, v)
		}
		sum := 0.0
		for j, v := range row {
			e := math.Exp(v - peak)
			out[r*cols+j] = e
			sum += e
		}
		for j := range row {
			out[r*cols+j] /= sum
		}
	}
	return tensor.Like(x, out, shape)
}

// Backward implements Layer.
func (s *Softmax) Backward(dy tensor.Tensor) tensor.Tensor {
	return dy
}

// Parameters implements Layer.
func (s *Softmax) Parameters() []*Parameter { return nil }

func (s *Softmax) String() string { return "Softmax()" }

// Reveal reconstructs private activations as public values.
//
// Everything after a Reveal layer sees plaintext. The gradient passes
// through unchanged.
type Reveal struct{}

// NewReveal creates a Reveal layer.
func NewReveal() *Reveal {
	return &Reveal{}
}

// Initialize implements Layer.
func (r *Reveal) Initialize(inputShape tensor.Shape, _ Initializer) (tensor.Shape, error) {
	return inputShape.Clone(), nil
}

// Forward implements Layer.
func (r *Reveal) Forward(x tensor.Tensor) tensor.Tensor {
	return x.Reveal()
}

// Backward implements Layer.
func (r *Reveal) Backward(dy tensor.Tensor) tensor.Tensor {
	return dy
}

// Parameters implements Layer.
func (r *Reveal) Parameters() []*Parameter { return nil }

func (r *Reveal) String() string { return "Reveal()" }
