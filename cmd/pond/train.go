package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/born-ml/pond/internal/config"
	"github.com/born-ml/pond/internal/nn"
	"github.com/born-ml/pond/internal/optim"
	"github.com/born-ml/pond/internal/trainer"
)

// trainFlags registers the train flags on fset.
func trainFlags(fset *flag.FlagSet) func() *config.Config {
	resolve := commonFlags(fset)
	epochs := fset.Int("epochs", 0, "Number of training epochs")
	lr := fset.Float64("lr", 0, "SGD learning rate")
	return func() *config.Config {
		return resolve(config.Overrides{Epochs: *epochs, LearningRate: *lr})
	}
}

func runTrain(args []string) {
	fset := flag.NewFlagSet("train", flag.ExitOnError)
	resolve := trainFlags(fset)
	_ = fset.Parse(args)

	cfg := resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	s, err := newSession(cfg)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	fmt.Printf("pond %s: %s\n", version, s.describe())

	trainSet, err := s.dataset(true)
	if err != nil {
		log.Fatalf("failed to load training data: %v", err)
	}
	testSet, err := s.dataset(false)
	if err != nil {
		log.Fatalf("failed to load test data: %v", err)
	}
	xTrain, yTrain, err := s.loaders(trainSet)
	if err != nil {
		log.Fatalf("training loaders: %v", err)
	}
	xTest, yTest, err := s.loaders(testSet)
	if err != nil {
		log.Fatalf("test loaders: %v", err)
	}
	fmt.Printf("Train: %d samples, Val: %d samples\n", trainSet.Len(), testSet.Len())

	model, err := s.model()
	if err != nil {
		log.Fatalf("failed to build model: %v", err)
	}
	fmt.Println(model)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := trainer.Fit(ctx, model, trainer.FitConfig{
		XTrain: xTrain, YTrain: yTrain,
		XValid: xTest, YValid: yTest,
		Loss: nn.NewCrossEntropy(),
		Optimizer: optim.NewSGD(optim.SGDConfig{
			LR:          cfg.LearningRate,
			Momentum:    cfg.Momentum,
			WeightDecay: cfg.WeightDecay,
		}),
		Epochs:      cfg.Epochs,
		BatchSize:   cfg.BatchSize,
		Verbose:     cfg.Verbose,
		Shuffle:     cfg.Shuffle,
		Seed:        cfg.Seed,
		EvalBatches: cfg.EvalBatches,
		Out:         os.Stdout,
	})
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}
	fmt.Printf("Training complete in %s\n", history.Duration().Round(time.Millisecond))
	if s.dealer != nil {
		st := s.dealer.Stats()
		fmt.Printf("Dealer: %d triples (%d elements), %d openings\n", st.Triples, st.TripleElements, st.OpenedTensors)
	}

	if cfg.Checkpoint != "" {
		last, _ := history.Last()
		meta := map[string]string{
			"model":      cfg.Model,
			"activation": cfg.Activation,
			"epochs":     strconv.Itoa(cfg.Epochs),
			"accuracy":   strconv.FormatFloat(last.ValidAccuracy, 'f', 4, 64),
		}
		if err := nn.SaveCheckpoint(cfg.Checkpoint, model, meta); err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Printf("Saved checkpoint to %s\n", cfg.Checkpoint)
	}
}
