package net

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/convnet/internal/activations"
	"github.com/FlavioCFOliveira/convnet/internal/layer"
)

// LayerConfig holds the configuration needed to rebuild a layer through
// the layer constructors.
type LayerConfig struct {
	Kind        string
	OutMapCount int
	MapX, MapY  int
	KernelX     int
	KernelY     int
	PoolX       int
	PoolY       int
}

// ExtractLayerConfig captures the static configuration of l.
func ExtractLayerConfig(l *layer.Layer) LayerConfig {
	return LayerConfig{
		Kind:        l.Kind().String(),
		OutMapCount: l.OutMapCount(),
		MapX:        l.MapSize().X,
		MapY:        l.MapSize().Y,
		KernelX:     l.KernelSize().X,
		KernelY:     l.KernelSize().Y,
		PoolX:       l.PoolSize().X,
		PoolY:       l.PoolSize().Y,
	}
}

// CreateLayer builds an unattached layer from the configuration.
func (c *LayerConfig) CreateLayer() (*layer.Layer, error) {
	switch c.Kind {
	case layer.Input.String():
		return layer.NewInput(layer.Size{X: c.MapX, Y: c.MapY}), nil
	case layer.Convolution.String():
		return layer.NewConvolution(c.OutMapCount, layer.Size{X: c.KernelX, Y: c.KernelY}), nil
	case layer.Sampling.String():
		return layer.NewSampling(layer.Size{X: c.PoolX, Y: c.PoolY}), nil
	case layer.Output.String():
		return layer.NewOutput(c.OutMapCount), nil
	}
	return nil, fmt.Errorf("unknown layer kind %q", c.Kind)
}

// Save writes the network to a file using gob encoding.
// Activation and error maps are batch state and are not saved.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return n.Encode(file)
}

// Load reads a network written by Save.
func Load(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Encode writes the layer configurations, the activation name and every
// kernel and bias to w.
func (n *Network) Encode(w io.Writer) error {
	encoder := gob.NewEncoder(w)

	if err := encoder.Encode(int32(len(n.layers))); err != nil {
		return fmt.Errorf("failed to encode layer count: %w", err)
	}

	actName := activations.Name(n.act)
	if actName == "" {
		return fmt.Errorf("activation %T cannot be saved", n.act)
	}
	if err := encoder.Encode(actName); err != nil {
		return fmt.Errorf("failed to encode activation: %w", err)
	}

	for _, l := range n.layers {
		if err := encoder.Encode(ExtractLayerConfig(l)); err != nil {
			return fmt.Errorf("failed to encode layer: %w", err)
		}
	}

	for i, l := range n.layers {
		if l.ParamCount() == 0 {
			continue
		}
		kernels, biases, err := layerParams(l)
		if err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		if err := encoder.Encode(kernels); err != nil {
			return fmt.Errorf("failed to encode layer %d kernels: %w", i, err)
		}
		if err := encoder.Encode(biases); err != nil {
			return fmt.Errorf("failed to encode layer %d biases: %w", i, err)
		}
	}
	return nil
}

// layerParams flattens l's kernels in [src][dst] order.
func layerParams(l *layer.Layer) ([][]byte, []float64, error) {
	var kernels [][]byte
	for i := 0; i < l.PrevMapCount(); i++ {
		for j := 0; j < l.OutMapCount(); j++ {
			k, err := l.Kernel(i, j)
			if err != nil {
				return nil, nil, err
			}
			b, err := k.MarshalBinary()
			if err != nil {
				return nil, nil, err
			}
			kernels = append(kernels, b)
		}
	}
	biases := make([]float64, l.OutMapCount())
	for j := range biases {
		b, err := l.Bias(j)
		if err != nil {
			return nil, nil, err
		}
		biases[j] = b
	}
	return kernels, biases, nil
}

// maxLayers bounds the layer count accepted from a stream.
const maxLayers = 1 << 16

// Decode reads a network written by Encode.
func Decode(r io.Reader) (*Network, error) {
	decoder := gob.NewDecoder(r)

	var numLayers int32
	if err := decoder.Decode(&numLayers); err != nil {
		return nil, fmt.Errorf("failed to read layer count: %w", err)
	}
	if numLayers < 2 || numLayers > maxLayers {
		return nil, fmt.Errorf("layer count %d: %w", numLayers, layer.ErrInvalidOperation)
	}

	var actName string
	if err := decoder.Decode(&actName); err != nil {
		return nil, fmt.Errorf("failed to read activation: %w", err)
	}
	act, ok := activations.ByName(actName)
	if !ok {
		return nil, fmt.Errorf("unknown activation %q", actName)
	}

	layers := make([]*layer.Layer, numLayers)
	for i := range layers {
		var cfg LayerConfig
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read layer %d: %w", i, err)
		}
		l, err := cfg.CreateLayer()
		if err != nil {
			return nil, err
		}
		layers[i] = l
	}

	cfg := DefaultConfig()
	cfg.Activation = act
	n, err := New(cfg, layers...)
	if err != nil {
		return nil, err
	}

	for i, l := range n.layers {
		if l.ParamCount() == 0 {
			continue
		}
		var kernels [][]byte
		if err := decoder.Decode(&kernels); err != nil {
			return nil, fmt.Errorf("failed to read layer %d kernels: %w", i, err)
		}
		var biases []float64
		if err := decoder.Decode(&biases); err != nil {
			return nil, fmt.Errorf("failed to read layer %d biases: %w", i, err)
		}
		if err := setLayerParams(l, kernels, biases); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return n, nil
}

func setLayerParams(l *layer.Layer, kernels [][]byte, biases []float64) error {
	if len(kernels) != l.PrevMapCount()*l.OutMapCount() || len(biases) != l.OutMapCount() {
		return fmt.Errorf("%d kernels and %d biases saved: %w", len(kernels), len(biases), layer.ErrIndexOutOfRange)
	}
	for idx, b := range kernels {
		k := new(mat.Dense)
		if err := k.UnmarshalBinary(b); err != nil {
			return err
		}
		if err := l.SetKernel(idx/l.OutMapCount(), idx%l.OutMapCount(), k); err != nil {
			return err
		}
	}
	for j, b := range biases {
		if err := l.SetBias(j, b); err != nil {
			return err
		}
	}
	return nil
}
