// Package convnet is the public entry point for building convolutional
// networks out of input, convolution, sampling and output layers.
package convnet

import (
	"github.com/FlavioCFOliveira/convnet/internal/activations"
	"github.com/FlavioCFOliveira/convnet/internal/layer"
	"github.com/FlavioCFOliveira/convnet/internal/net"
)

// Re-export common types and functions for easier access
type (
	Network     = net.Network
	Config      = net.Config
	Layer       = layer.Layer
	Size        = layer.Size
	Cursor      = layer.Cursor
	Kind        = layer.Kind
	Initializer = layer.Initializer
	Activation  = activations.Activation
)

// Layer kinds
const (
	Input       = layer.Input
	Convolution = layer.Convolution
	Sampling    = layer.Sampling
	Output      = layer.Output
)

// Errors
var (
	ErrShapeMismatch    = layer.ErrShapeMismatch
	ErrInvalidOperation = layer.ErrInvalidOperation
	ErrIndexOutOfRange  = layer.ErrIndexOutOfRange
)

// Activations
var (
	ReLU    = activations.ReLU{}
	Sigmoid = activations.Sigmoid{}
	Tanh    = activations.Tanh{}
	Linear  = activations.Linear{}
)

// Network creation
func New(cfg Config, layers ...*Layer) (*Network, error) {
	return net.New(cfg, layers...)
}

func DefaultConfig() Config {
	return net.DefaultConfig()
}

// Layers
func InputLayer(width, height int) *Layer {
	return layer.NewInput(layer.Size{X: width, Y: height})
}

func ConvolutionLayer(outMaps, kernelWidth, kernelHeight int) *Layer {
	return layer.NewConvolution(outMaps, layer.Size{X: kernelWidth, Y: kernelHeight})
}

func SamplingLayer(poolWidth, poolHeight int) *Layer {
	return layer.NewSampling(layer.Size{X: poolWidth, Y: poolHeight})
}

func OutputLayer(classCount int) *Layer {
	return layer.NewOutput(classCount)
}

// Model Persistence
func Load(filename string) (*Network, error) {
	return net.Load(filename)
}
