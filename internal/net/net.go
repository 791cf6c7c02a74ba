// Package net assembles layers into a convolutional network and drives
// per-record sweeps over a mini-batch.
package net

import (
	"fmt"

	"github.com/FlavioCFOliveira/convnet/internal/activations"
	"github.com/FlavioCFOliveira/convnet/internal/layer"
)

// Config holds the settings used when a network is assembled.
type Config struct {
	// Activation is applied to convolution and output maps.
	Activation activations.Activation
	// Seed and InitScale drive the uniform kernel and bias initializer.
	Seed      int64
	InitScale float64
}

// DefaultConfig returns Sigmoid activations and a seeded initializer
// drawing from [-0.05, 0.05).
func DefaultConfig() Config {
	return Config{
		Activation: activations.Sigmoid{},
		Seed:       42,
		InitScale:  0.1,
	}
}

// Network is an ordered stack of layers sharing one batch cursor.
// It is not safe for concurrent use.
type Network struct {
	layers []*layer.Layer
	cursor *layer.Cursor
	act    activations.Activation
}

// New validates the layer order and attaches every layer to its
// predecessor, allocating kernels and biases. The stack must start with an
// Input layer, end with an Output layer and contain only Convolution and
// Sampling layers in between.
func New(cfg Config, layers ...*layer.Layer) (*Network, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("network needs at least an input and an output layer, got %d: %w",
			len(layers), layer.ErrInvalidOperation)
	}
	for i, l := range layers {
		if err := checkPosition(i, len(layers), l); err != nil {
			return nil, err
		}
	}

	if cfg.Activation == nil {
		cfg.Activation = activations.Sigmoid{}
	}
	if cfg.InitScale == 0 {
		cfg.InitScale = DefaultConfig().InitScale
	}
	ini := layer.NewUniformInit(cfg.Seed, cfg.InitScale)

	for i := 1; i < len(layers); i++ {
		if err := layers[i].Attach(layers[i-1], ini); err != nil {
			return nil, fmt.Errorf("attach layer %d (%s): %w", i, layers[i].Kind(), err)
		}
	}

	return &Network{
		layers: layers,
		cursor: layer.NewCursor(),
		act:    cfg.Activation,
	}, nil
}

func checkPosition(i, n int, l *layer.Layer) error {
	if l == nil {
		return fmt.Errorf("layer %d is nil: %w", i, layer.ErrInvalidOperation)
	}
	var ok bool
	switch {
	case i == 0:
		ok = l.Kind() == layer.Input
	case i == n-1:
		ok = l.Kind() == layer.Output
	default:
		ok = l.Kind() == layer.Convolution || l.Kind() == layer.Sampling
	}
	if !ok {
		return fmt.Errorf("%s layer at position %d of %d: %w", l.Kind(), i, n, layer.ErrInvalidOperation)
	}
	return nil
}

// Layers returns the network's layers in order.
func (n *Network) Layers() []*layer.Layer {
	return n.layers
}

// Cursor returns the batch cursor shared by all layers.
func (n *Network) Cursor() *layer.Cursor {
	return n.cursor
}

// Activation returns the activation applied by convolution and output layers.
func (n *Network) Activation() activations.Activation {
	return n.act
}

// Input returns the first layer.
func (n *Network) Input() *layer.Layer {
	return n.layers[0]
}

// Output returns the last layer.
func (n *Network) Output() *layer.Layer {
	return n.layers[len(n.layers)-1]
}

// ParamCount returns the number of learnable scalars across all layers.
func (n *Network) ParamCount() int {
	total := 0
	for _, l := range n.layers {
		total += l.ParamCount()
	}
	return total
}

// PrepareForNewBatch rewinds the cursor and reallocates every layer's
// activation and error maps for batchSize records.
func (n *Network) PrepareForNewBatch(batchSize int) error {
	if err := n.cursor.PrepareForNewBatch(batchSize); err != nil {
		return err
	}
	for i, l := range n.layers {
		if err := l.InitActivations(batchSize); err != nil {
			return fmt.Errorf("layer %d activations: %w", i, err)
		}
		if err := l.InitErrors(batchSize); err != nil {
			return fmt.Errorf("layer %d errors: %w", i, err)
		}
	}
	return nil
}

// PrepareForNewRecord advances the cursor once every layer has finished
// with the current record.
func (n *Network) PrepareForNewRecord() {
	n.cursor.PrepareForNewRecord()
}

// ResetErrors reallocates every layer's error maps for the current batch
// size, leaving activations untouched.
func (n *Network) ResetErrors() error {
	for i, l := range n.layers {
		if err := l.InitErrors(n.cursor.BatchSize()); err != nil {
			return fmt.Errorf("layer %d errors: %w", i, err)
		}
	}
	return nil
}
