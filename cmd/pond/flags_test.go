package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainFlags(t *testing.T) {
	fset := flag.NewFlagSet("train", flag.ContinueOnError)
	resolve := trainFlags(fset)
	require.NoError(t, fset.Parse([]string{
		"-epochs", "5", "-lr", "0.2", "-batch", "8", "-verbose", "0",
		"-synthetic", "-model", "dense", "-activation", "relu",
	}))

	cfg := resolve()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.Epochs)
	assert.Equal(t, 0.2, cfg.LearningRate)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 0, cfg.Verbose)
	assert.True(t, cfg.Synthetic)
	assert.Equal(t, "dense", cfg.Model)
	assert.Equal(t, "relu", cfg.Activation)
}

func TestTrainFlags_Defaults(t *testing.T) {
	fset := flag.NewFlagSet("train", flag.ContinueOnError)
	resolve := trainFlags(fset)
	require.NoError(t, fset.Parse(nil))

	cfg := resolve()
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, 1, cfg.Verbose)
}

func TestSessionModel_DenseActivation(t *testing.T) {
	fset := flag.NewFlagSet("train", flag.ContinueOnError)
	resolve := trainFlags(fset)
	require.NoError(t, fset.Parse([]string{"-synthetic", "-model", "dense", "-activation", "relu"}))

	s, err := newSession(resolve())
	require.NoError(t, err)
	model, err := s.model()
	require.NoError(t, err)
	assert.Contains(t, model.String(), "(2): Relu(")
}
