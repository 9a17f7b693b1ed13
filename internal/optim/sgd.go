// Package optim implements optimization algorithms for training neural networks.
//
// Optimizers work on nn.Parameter values of any tensor kind. An update is
// built from additions and multiplications by public constants only, so
// private weights stay secret-shared across steps.
//
// Example usage:
//
//	optimizer := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//
//	for range epochs {
//	    output := model.Forward(x)
//	    model.Backward(loss.Derive(output, y))
//	    optimizer.Step(model.Parameters())
//	    optimizer.ZeroGrad(model.Parameters())
//	}
package optim

import (
	"fmt"

	"github.com/born-ml/pond/internal/nn"
	"github.com/born-ml/pond/internal/tensor"
)

var _ nn.Optimizer = (*SGD)(nil)

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float64 // Learning rate (default: 0.01)
	Momentum    float64 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float64 // L2 penalty added to the gradient (default: 0.0)
}

// SGD implements Stochastic Gradient Descent with optional momentum and
// weight decay.
//
// Update rule:
//
//	g = gradient + weight_decay * param
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// Without momentum the velocity is just g.
type SGD struct {
	lr          float64
	momentum    float64
	weightDecay float64
	velocities  map[*nn.Parameter]tensor.Tensor
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.LR < 0 {
		panic(fmt.Sprintf("sgd: invalid learning rate %g", config.LR))
	}
	if config.Momentum < 0 || config.Momentum >= 1 {
		panic(fmt.Sprintf("sgd: momentum %g outside [0, 1)", config.Momentum))
	}
	return &SGD{
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter]tensor.Tensor),
	}
}

// Step performs a single optimization step.
//
// Parameters with no gradient are skipped.
func (s *SGD) Step(params []*nn.Parameter) {
	for _, p := range params {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		if s.weightDecay != 0 {
			grad = grad.Add(p.Value().Mul(tensor.Scalar(s.weightDecay)))
		}

		update := grad
		if s.momentum != 0 {
			if v, ok := s.velocities[p]; ok {
				update = v.Mul(tensor.Scalar(s.momentum)).Add(grad)
			}
			s.velocities[p] = update
		}

		p.Set(p.Value().Sub(update.Mul(tensor.Scalar(s.lr))))
	}
}

// ZeroGrad clears the gradients of params.
func (s *SGD) ZeroGrad(params []*nn.Parameter) {
	for _, p := range params {
		p.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR changes the learning rate, e.g. for a schedule.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// Reset drops the momentum state.
func (s *SGD) Reset() {
	clear(s.velocities)
}
