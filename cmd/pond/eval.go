package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/pond/internal/config"
	"github.com/born-ml/pond/internal/nn"
	"github.com/born-ml/pond/internal/trainer"
)

func runEval(args []string) {
	fset := flag.NewFlagSet("eval", flag.ExitOnError)
	resolve := commonFlags(fset)
	_ = fset.Parse(args)

	cfg := resolve(config.Overrides{})
	if cfg.Checkpoint == "" {
		log.Fatal("eval needs -checkpoint")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	s, err := newSession(cfg)
	if err != nil {
		log.Fatalf("setup: %v", err)
	}
	testSet, err := s.dataset(false)
	if err != nil {
		log.Fatalf("failed to load test data: %v", err)
	}
	x, y, err := s.loaders(testSet)
	if err != nil {
		log.Fatalf("test loaders: %v", err)
	}

	model, err := s.model()
	if err != nil {
		log.Fatalf("failed to build model: %v", err)
	}
	meta, err := nn.LoadCheckpoint(cfg.Checkpoint, model, s.weightWrapper())
	if err != nil {
		log.Fatalf("%v", err)
	}
	if m := meta["model"]; m != "" && m != cfg.Model {
		log.Printf("checkpoint was trained as %s, evaluating as %s", m, cfg.Model)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loss, acc, err := trainer.Evaluate(ctx, model, x, y, nn.NewCrossEntropy(), cfg.BatchSize)
	if err != nil {
		log.Fatalf("evaluation failed: %v", err)
	}
	fmt.Printf("%s\n", s.describe())
	fmt.Printf("Test: %d samples, Loss=%.4f, Acc=%.2f%%\n", testSet.Len(), loss, acc*100)
}
