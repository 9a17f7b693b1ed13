package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PolyFit returns the coefficients c[0..order] of the least-squares
// polynomial Σ c[i]·x^i approximating fn at samples evenly spaced points of
// [lo, hi].
func PolyFit(fn func(float64) float64, order int, lo, hi float64, samples int) ([]float64, error) {
	if order < 0 {
		return nil, fmt.Errorf("polyfit: negative order %d", order)
	}
	if samples <= order {
		return nil, fmt.Errorf("polyfit: %d samples cannot determine order %d", samples, order)
	}
	if !(lo < hi) {
		return nil, fmt.Errorf("polyfit: empty domain [%g, %g]", lo, hi)
	}

	vander := mat.NewDense(samples, order+1, nil)
	target := mat.NewVecDense(samples, nil)
	step := (hi - lo) / float64(samples-1)
	for i := range samples {
		x := lo + float64(i)*step
		p := 1.0
		for j := 0; j <= order; j++ {
			vander.Set(i, j, p)
			p *= x
		}
		target.SetVec(i, fn(x))
	}

	var coeffs mat.VecDense
	if err := coeffs.SolveVec(vander, target); err != nil {
		return nil, fmt.Errorf("polyfit: %w", err)
	}
	return coeffs.RawVector().Data, nil
}

// PolyDerivative returns the coefficients of the derivative of Σ c[i]·x^i.
func PolyDerivative(coeffs []float64) []float64 {
	if len(coeffs) <= 1 {
		return []float64{0}
	}
	out := make([]float64, len(coeffs)-1)
	for i := 1; i < len(coeffs); i++ {
		out[i-1] = float64(i) * coeffs[i]
	}
	return out
}

// PolyEval evaluates Σ c[i]·x^i at a plain value.
func PolyEval(coeffs []float64, x float64) float64 {
	acc := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc*x + coeffs[i]
	}
	return acc
}
