package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/pond/internal/tensor"
)

// Sequential is a container that chains layers sequentially.
//
// The output of each layer is passed as input to the next layer; Backward
// walks the chain in reverse.
//
// Example:
//
//	model := nn.NewSequential(
//	    nn.NewFlatten(),
//	    nn.NewDense(10, 784, nn.DenseConfig{}),
//	    nn.NewSoftmax(),
//	)
//	if err := model.Initialize(tensor.Shape{1, 28, 28}, nn.Initializer{}); err != nil {
//	    return err
//	}
//	output := model.Forward(input)
type Sequential struct {
	layers      []Layer
	inputShape  tensor.Shape
	outputShape tensor.Shape
}

// NewSequential creates a new Sequential container.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Add appends a layer. The model must be initialised again afterwards.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
	s.outputShape = nil
}

// Len returns the number of layers.
func (s *Sequential) Len() int {
	return len(s.layers)
}

// Layer returns the layer at the given index.
func (s *Sequential) Layer(index int) Layer {
	return s.layers[index]
}

// Layers returns all layers.
func (s *Sequential) Layers() []Layer {
	return s.layers
}

// Initialize infers every layer's shapes from the per-sample input shape
// and creates the parameters.
func (s *Sequential) Initialize(inputShape tensor.Shape, init Initializer) error {
	init = init.withDefaults()
	shape := inputShape.Clone()
	for i, layer := range s.layers {
		out, err := layer.Initialize(shape, init)
		if err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, layer, err)
		}
		shape = out
	}
	s.inputShape = inputShape.Clone()
	s.outputShape = shape
	return nil
}

// InputShape returns the per-sample input shape given to Initialize.
func (s *Sequential) InputShape() tensor.Shape {
	return s.inputShape
}

// OutputShape returns the per-sample output shape, or nil before Initialize.
func (s *Sequential) OutputShape() tensor.Shape {
	return s.outputShape
}

// Forward passes input through all layers sequentially.
func (s *Sequential) Forward(x tensor.Tensor) tensor.Tensor {
	for _, layer := range s.layers {
		x = layer.Forward(x)
	}
	return x
}

// Backward propagates dy through all layers in reverse order.
func (s *Sequential) Backward(dy tensor.Tensor) tensor.Tensor {
	for i := len(s.layers) - 1; i >= 0; i-- {
		dy = s.layers[i].Backward(dy)
	}
	return dy
}

// Parameters returns all trainable parameters from all layers.
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// StateDict returns a plaintext snapshot of every parameter keyed by
// "<layer index>.<parameter name>". Private parameters are revealed.
func (s *Sequential) StateDict() map[string]*tensor.NativeTensor {
	state := make(map[string]*tensor.NativeTensor)
	for i, layer := range s.layers {
		for _, p := range layer.Parameters() {
			v := p.Value()
			values := append([]float64(nil), v.Float64s()...)
			t, err := tensor.NewNative(values, v.Shape())
			if err != nil {
				panic(err)
			}
			state[fmt.Sprintf("%d.%s", i, p.Name())] = t
		}
	}
	return state
}

// LoadStateDict replaces parameter values from a snapshot, wrapping them
// with wrap (nil means native). Every parameter must be present with a
// matching shape.
func (s *Sequential) LoadStateDict(state map[string]*tensor.NativeTensor, wrap tensor.Wrapper) error {
	if wrap == nil {
		wrap = tensor.NativeWrapper
	}
	type update struct {
		param *Parameter
		value tensor.Tensor
	}
	var updates []update
	for i, layer := range s.layers {
		for _, p := range layer.Parameters() {
			key := fmt.Sprintf("%d.%s", i, p.Name())
			t, ok := state[key]
			if !ok {
				return fmt.Errorf("state dict: missing %q", key)
			}
			if !t.Shape().Equal(p.Value().Shape()) {
				return fmt.Errorf("state dict: %q has shape %v, want %v", key, t.Shape(), p.Value().Shape())
			}
			updates = append(updates, update{p, wrap(append([]float64(nil), t.Data()...), t.Shape())})
		}
	}
	for _, u := range updates {
		u.param.Set(u.value)
	}
	return nil
}

func (s *Sequential) String() string {
	var b strings.Builder
	b.WriteString("Sequential(\n")
	for i, layer := range s.layers {
		fmt.Fprintf(&b, "  (%d): %s\n", i, layer)
	}
	b.WriteString(")")
	return b.String()
}
