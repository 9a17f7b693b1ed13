// Package config holds the run configuration of the pond CLI.
//
// A run starts from Default, optionally layered with a YAML file (Load) and
// finally with command-line overrides (ApplyOverrides). Validate checks
// field ranges with struct tags and the combinations the tensor layer
// cannot execute.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/pond/internal/models"
)

// Tensor kinds accepted for data_kind and weight_kind.
const (
	KindNative  = "native"
	KindPublic  = "public"
	KindPrivate = "private"
)

// Config captures the knobs of a training or evaluation run.
type Config struct {
	Model      string `yaml:"model" validate:"oneof=convpool dense"`
	Activation string `yaml:"activation" validate:"oneof=relu-exact relu sigmoid"`

	DataDir      string `yaml:"data_dir"`
	Synthetic    bool   `yaml:"synthetic"`
	TrainSamples int    `yaml:"train_samples" validate:"gte=0"`
	TestSamples  int    `yaml:"test_samples" validate:"gte=0"`

	Epochs       int     `yaml:"epochs" validate:"gt=0"`
	BatchSize    int     `yaml:"batch_size" validate:"gt=0"`
	LearningRate float64 `yaml:"learning_rate" validate:"gt=0"`
	Momentum     float64 `yaml:"momentum" validate:"gte=0,lt=1"`
	WeightDecay  float64 `yaml:"weight_decay" validate:"gte=0"`
	Verbose      int     `yaml:"verbose" validate:"gte=0,lte=2"`
	Shuffle      bool    `yaml:"shuffle"`
	Seed         uint64  `yaml:"seed"`
	EvalBatches  int     `yaml:"eval_batches" validate:"gte=0"`

	// DataKind and WeightKind select how inputs and parameters are held.
	DataKind   string `yaml:"data_kind" validate:"oneof=native public private"`
	WeightKind string `yaml:"weight_kind" validate:"oneof=native private"`

	Checkpoint string `yaml:"checkpoint"`
}

// Default returns the configuration of the reference MNIST run: the
// convolutional model with exact ReLU, 3 epochs of batch 32 in plaintext.
func Default() *Config {
	return &Config{
		Model:        "convpool",
		Activation:   string(models.ReluExact),
		DataDir:      "data/mnist",
		Epochs:       3,
		BatchSize:    32,
		LearningRate: 0.01,
		Verbose:      1,
		Shuffle:      true,
		Seed:         1,
		DataKind:     KindNative,
		WeightKind:   KindNative,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// Overrides captures CLI supplied values. Zero values leave the config
// unchanged.
type Overrides struct {
	Model        string
	Activation   string
	DataDir      string
	Synthetic    bool
	TrainSamples int
	TestSamples  int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Verbose      *int
	Seed         uint64
	DataKind     string
	WeightKind   string
	Checkpoint   string
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Model != "" {
		c.Model = o.Model
	}
	if o.Activation != "" {
		c.Activation = o.Activation
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Synthetic {
		c.Synthetic = true
	}
	if o.TrainSamples > 0 {
		c.TrainSamples = o.TrainSamples
	}
	if o.TestSamples > 0 {
		c.TestSamples = o.TestSamples
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Verbose != nil {
		c.Verbose = *o.Verbose
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.DataKind != "" {
		c.DataKind = o.DataKind
	}
	if o.WeightKind != "" {
		c.WeightKind = o.WeightKind
	}
	if o.Checkpoint != "" {
		c.Checkpoint = o.Checkpoint
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report YAML key names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	act := models.Activation(c.Activation)
	if !act.Secure() && (c.DataKind == KindPrivate || c.WeightKind == KindPrivate) {
		return fmt.Errorf("invalid config: activation %s needs plaintext inputs; use relu or sigmoid with private tensors", act)
	}
	if !c.Synthetic && c.DataDir == "" {
		return errors.New("invalid config: data_dir is required unless synthetic is set")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s (got %v)", fe.Field(), comparisons[fe.Tag()], fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

var comparisons = map[string]string{"gt": ">", "gte": ">=", "lt": "<", "lte": "<="}
