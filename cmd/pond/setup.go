package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"

	"github.com/born-ml/pond/internal/config"
	"github.com/born-ml/pond/internal/mnist"
	"github.com/born-ml/pond/internal/models"
	"github.com/born-ml/pond/internal/nn"
	"github.com/born-ml/pond/internal/tensor"
)

// Sample counts used for synthetic runs when none are configured.
const (
	syntheticTrain = 2000
	syntheticTest  = 500
)

// commonFlags registers the flags shared by train and eval and returns a
// function resolving the final configuration after parsing. Command
// specific values arrive in extra and are applied with the shared flags.
func commonFlags(fset *flag.FlagSet) func(extra config.Overrides) *config.Config {
	cfgPath := fset.String("config", "", "Path to YAML config (defaults apply when empty)")
	model := fset.String("model", "", "Model: convpool or dense")
	activation := fset.String("activation", "", "Activation: relu-exact, relu or sigmoid")
	dataDir := fset.String("data", "", "Directory containing MNIST IDX files")
	synthetic := fset.Bool("synthetic", false, "Use synthetic digits instead of MNIST files")
	trainSamples := fset.Int("samples", 0, "Max training samples (0 = all)")
	testSamples := fset.Int("test-samples", 0, "Max test samples (0 = all)")
	batchSize := fset.Int("batch", 0, "Batch size")
	verbose := fset.Int("verbose", -1, "Verbosity: 0 silent, 1 per epoch, 2 per batch")
	seed := fset.Uint64("seed", 0, "PRNG seed")
	dataKind := fset.String("data-kind", "", "Input tensors: native, public or private")
	weightKind := fset.String("weight-kind", "", "Weight tensors: native or private")
	checkpoint := fset.String("checkpoint", "", "SafeTensors checkpoint path")

	return func(extra config.Overrides) *config.Config {
		cfg := config.Default()
		if *cfgPath != "" {
			var err error
			if cfg, err = config.Load(*cfgPath); err != nil {
				log.Fatalf("failed to load config: %v", err)
			}
		}
		o := config.Overrides{
			Epochs:       extra.Epochs,
			LearningRate: extra.LearningRate,
			Model:        *model,
			Activation:   *activation,
			DataDir:      *dataDir,
			Synthetic:    *synthetic,
			TrainSamples: *trainSamples,
			TestSamples:  *testSamples,
			BatchSize:    *batchSize,
			Seed:         *seed,
			DataKind:     *dataKind,
			WeightKind:   *weightKind,
			Checkpoint:   *checkpoint,
		}
		if *verbose >= 0 {
			o.Verbose = verbose
		}
		cfg.ApplyOverrides(o)
		return cfg
	}
}

// session holds what train and eval derive from the configuration.
type session struct {
	cfg    *config.Config
	dealer *tensor.Dealer // nil when nothing is private
}

func newSession(cfg *config.Config) (*session, error) {
	s := &session{cfg: cfg}
	if cfg.DataKind == config.KindPrivate || cfg.WeightKind == config.KindPrivate {
		dealer, err := tensor.NewRandomDealer()
		if err != nil {
			return nil, err
		}
		s.dealer = dealer
	}
	return s, nil
}

func (s *session) dataWrapper() tensor.Wrapper {
	switch s.cfg.DataKind {
	case config.KindPublic:
		return tensor.PublicWrapper
	case config.KindPrivate:
		return s.dealer.Wrap
	default:
		return tensor.NativeWrapper
	}
}

func (s *session) weightWrapper() tensor.Wrapper {
	if s.cfg.WeightKind == config.KindPrivate {
		return s.dealer.Wrap
	}
	return tensor.NativeWrapper
}

// dataset loads the training or test split, or a synthetic stand-in.
func (s *session) dataset(train bool) (*mnist.Dataset, error) {
	limit := s.cfg.TestSamples
	if train {
		limit = s.cfg.TrainSamples
	}
	if s.cfg.Synthetic {
		n, seed := syntheticTest, s.cfg.Seed+1
		if train {
			n, seed = syntheticTrain, s.cfg.Seed
		}
		if limit > 0 {
			n = limit
		}
		return mnist.Synthetic(n, seed), nil
	}

	ds, err := mnist.Load(s.cfg.DataDir, train, limit)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w\n\nDownload the four MNIST IDX files (optionally gzipped) into %s, or pass -synthetic", err, s.cfg.DataDir)
	}
	return ds, err
}

// loaders wraps a dataset as image and one-hot label loaders.
func (s *session) loaders(ds *mnist.Dataset) (x, y *nn.DataLoader, err error) {
	x, err = nn.NewDataLoader(ds.Images, ds.ImageShape(), s.dataWrapper())
	if err != nil {
		return nil, nil, err
	}
	y, err = nn.NewDataLoader(ds.OneHot(mnist.Classes), tensor.Shape{ds.Len(), mnist.Classes}, nil)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// model builds and initialises the configured architecture.
func (s *session) model() (*nn.Sequential, error) {
	act, err := models.ParseActivation(s.cfg.Activation)
	if err != nil {
		return nil, err
	}
	model, err := models.Build(s.cfg.Model, models.ModelConfig{Activation: act})
	if err != nil {
		return nil, err
	}
	init := nn.Initializer{Wrap: s.weightWrapper(), Rand: nn.NewRand(s.cfg.Seed)}
	if err := model.Initialize(models.InputShape, init); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", s.cfg.Model, err)
	}
	return model, nil
}

func (s *session) describe() string {
	src := s.cfg.DataDir
	if s.cfg.Synthetic {
		src = "synthetic"
	}
	return fmt.Sprintf("model=%s activation=%s data=%s data_kind=%s weight_kind=%s",
		s.cfg.Model, s.cfg.Activation, src, s.cfg.DataKind, s.cfg.WeightKind)
}
