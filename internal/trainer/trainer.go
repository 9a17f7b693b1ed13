// Package trainer runs the training loop of an nn.Sequential model.
//
// Each batch runs forward, derives the loss gradient, back-propagates and
// applies the optimizer. Numeric traps of the fixed-point encoding surface
// as errors naming the epoch and batch instead of crashing the process.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/born-ml/pond/internal/fixedpoint"
	"github.com/born-ml/pond/internal/nn"
	"github.com/born-ml/pond/internal/optim"
	"github.com/born-ml/pond/internal/tensor"
)

// ErrNonFinite reports a loss that is NaN or infinite.
var ErrNonFinite = errors.New("trainer: non-finite loss")

// FitConfig configures Fit.
type FitConfig struct {
	XTrain, YTrain *nn.DataLoader
	XValid, YValid *nn.DataLoader // optional

	Loss      nn.Loss      // default: CrossEntropy
	Optimizer nn.Optimizer // default: SGD with LearningRate

	Epochs       int     // default: 1
	BatchSize    int     // default: 32
	LearningRate float64 // used by the default optimizer (default: 0.01)

	// Verbose selects output: 0 silent, 1 one line per epoch, 2 also
	// per-batch progress.
	Verbose int
	Shuffle bool
	Seed    uint64

	// EvalBatches limits validation to the first batches (0 = all).
	EvalBatches int

	Out io.Writer // default: os.Stdout
}

func (c *FitConfig) validate() error {
	if c.XTrain == nil || c.YTrain == nil {
		return errors.New("trainer: training loaders are required")
	}
	if c.XTrain.Len() != c.YTrain.Len() {
		return fmt.Errorf("trainer: %d training inputs but %d targets", c.XTrain.Len(), c.YTrain.Len())
	}
	if (c.XValid == nil) != (c.YValid == nil) {
		return errors.New("trainer: validation needs both inputs and targets")
	}
	if c.XValid != nil && c.XValid.Len() != c.YValid.Len() {
		return fmt.Errorf("trainer: %d validation inputs but %d targets", c.XValid.Len(), c.YValid.Len())
	}
	if c.Epochs < 0 || c.BatchSize < 0 || c.EvalBatches < 0 {
		return errors.New("trainer: epochs, batch size and eval batches must not be negative")
	}

	if c.Loss == nil {
		c.Loss = nn.NewCrossEntropy()
	}
	if c.Optimizer == nil {
		c.Optimizer = optim.NewSGD(optim.SGDConfig{LR: c.LearningRate})
	}
	if c.Epochs == 0 {
		c.Epochs = 1
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.Out == nil {
		c.Out = os.Stdout
	}
	return nil
}

// Fit trains model on the configured data and returns the per-epoch
// history. On error the history holds the epochs completed so far.
func Fit(ctx context.Context, model *nn.Sequential, cfg FitConfig) (*History, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d))
	history := &History{}
	numBatches := cfg.XTrain.NumBatches(cfg.BatchSize)

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		start := time.Now()
		order := batchOrder(cfg.XTrain.Len(), cfg.Shuffle, rng)

		var w window
		for b := range numBatches {
			if err := ctx.Err(); err != nil {
				return history, err
			}
			idx := order[b*cfg.BatchSize : min((b+1)*cfg.BatchSize, len(order))]

			loss, correct, err := trainStep(model, cfg, idx)
			if err != nil {
				return history, fmt.Errorf("epoch %d, batch %d: %w", epoch, b+1, err)
			}
			w.record(loss, correct, len(idx))

			if cfg.Verbose >= 2 {
				fmt.Fprintf(cfg.Out, "  batch %d/%d: loss=%.4f, acc=%.2f%%\n",
					b+1, numBatches, w.meanLoss(), w.accuracy()*100)
			}
		}

		stats := EpochStats{
			Epoch:         epoch,
			Loss:          w.meanLoss(),
			Accuracy:      w.accuracy(),
			ValidLoss:     math.NaN(),
			ValidAccuracy: math.NaN(),
			Samples:       w.samples,
		}
		if cfg.XValid != nil {
			vl, va, err := evaluate(ctx, model, cfg.XValid, cfg.YValid, cfg.Loss, cfg.BatchSize, cfg.EvalBatches)
			if err != nil {
				return history, fmt.Errorf("epoch %d, validation: %w", epoch, err)
			}
			stats.ValidLoss, stats.ValidAccuracy = vl, va
		}
		stats.Duration = time.Since(start)
		history.Epochs = append(history.Epochs, stats)

		if cfg.Verbose >= 1 {
			fmt.Fprintf(cfg.Out, "Epoch %2d/%d: %s\n", epoch, cfg.Epochs, stats)
		}
	}
	return history, nil
}

func batchOrder(n int, shuffle bool, rng *rand.Rand) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

// trainStep runs one forward/backward/update cycle.
func trainStep(model *nn.Sequential, cfg FitConfig, idx []int) (loss float64, correct int, err error) {
	defer recoverTrap(&err)

	x := cfg.XTrain.Batch(idx)
	y := cfg.YTrain.Batch(idx)

	params := model.Parameters()
	cfg.Optimizer.ZeroGrad(params)

	pred := model.Forward(x)
	loss = cfg.Loss.Evaluate(pred, y)
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, 0, fmt.Errorf("%w: %g", ErrNonFinite, loss)
	}
	model.Backward(cfg.Loss.Derive(pred, y))
	cfg.Optimizer.Step(params)

	return loss, countCorrect(pred, y), nil
}

// recoverTrap turns a fixed-point encoding panic into an error. Other
// panics propagate.
func recoverTrap(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		var oe *fixedpoint.OverflowError
		if errors.As(e, &oe) {
			*err = e
			return
		}
	}
	panic(r)
}

func countCorrect(pred, target tensor.Tensor) int {
	p, t := tensor.ArgMax(pred), tensor.ArgMax(target)
	n := 0
	for i := range p {
		if p[i] == t[i] {
			n++
		}
	}
	return n
}

// Evaluate returns the mean loss and accuracy of model on x and y.
func Evaluate(ctx context.Context, model *nn.Sequential, x, y *nn.DataLoader, loss nn.Loss, batchSize int) (float64, float64, error) {
	if x.Len() != y.Len() {
		return 0, 0, fmt.Errorf("trainer: %d inputs but %d targets", x.Len(), y.Len())
	}
	if loss == nil {
		loss = nn.NewCrossEntropy()
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return evaluate(ctx, model, x, y, loss, batchSize, 0)
}

func evaluate(ctx context.Context, model *nn.Sequential, x, y *nn.DataLoader, loss nn.Loss, batchSize, maxBatches int) (l, acc float64, err error) {
	defer recoverTrap(&err)

	var w window
	for b, xb := range x.Batches(batchSize) {
		if maxBatches > 0 && b >= maxBatches {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		start := b * batchSize
		yb := y.Range(start, start+xb.Shape()[0])

		pred := model.Forward(xb)
		bl := loss.Evaluate(pred, yb)
		if math.IsNaN(bl) || math.IsInf(bl, 0) {
			return 0, 0, fmt.Errorf("%w: %g", ErrNonFinite, bl)
		}
		w.record(bl, countCorrect(pred, yb), xb.Shape()[0])
	}
	return w.meanLoss(), w.accuracy(), nil
}

// Predict runs model over x and returns the revealed outputs row-major with
// their shape.
func Predict(ctx context.Context, model *nn.Sequential, x *nn.DataLoader, batchSize int) (out []float64, shape tensor.Shape, err error) {
	defer recoverTrap(&err)

	if batchSize <= 0 {
		batchSize = 32
	}
	for _, xb := range x.Batches(batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		pred := model.Forward(xb).Reveal()
		if shape == nil {
			shape = append(tensor.Shape{x.Len()}, pred.Shape()[1:]...)
		}
		out = append(out, pred.Float64s()...)
	}
	return out, shape, nil
}
