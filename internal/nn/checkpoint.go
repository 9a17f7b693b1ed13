package nn

import (
	"fmt"

	"github.com/born-ml/pond/internal/serialization"
	"github.com/born-ml/pond/internal/tensor"
)

// SaveCheckpoint writes the model's revealed parameters to a SafeTensors
// file.
func SaveCheckpoint(path string, model *Sequential, metadata map[string]string) error {
	if err := serialization.WriteSafeTensors(path, model.StateDict(), metadata); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores parameters written by SaveCheckpoint into an
// initialised model and returns the file's metadata.
func LoadCheckpoint(path string, model *Sequential, wrap tensor.Wrapper) (map[string]string, error) {
	state, meta, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if err := model.LoadStateDict(state, wrap); err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return meta, nil
}
