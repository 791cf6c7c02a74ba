// Package activations provides the element-wise functions applied to
// convolution and output maps.
package activations

import "math"

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x)
	Derivative(x float64) float64

	// OutputDerivative computes f'(x) from y = f(x). Layers keep only
	// activated maps, so the backward sweep differentiates through this.
	OutputDerivative(y float64) float64
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// OutputDerivative returns 1 if y > 0, else 0
func (r ReLU) OutputDerivative(y float64) float64 {
	return r.Derivative(y)
}

// Sigmoid activation function.
type Sigmoid struct{}

// sigmoid computes the sigmoid function
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	return s.OutputDerivative(sigmoid(x))
}

// OutputDerivative computes y * (1 - y)
func (s Sigmoid) OutputDerivative(y float64) float64 {
	return y * (1 - y)
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	return t.OutputDerivative(math.Tanh(x))
}

// OutputDerivative computes 1 - y^2
func (t Tanh) OutputDerivative(y float64) float64 {
	return 1 - y*y
}

// Linear is the identity activation.
type Linear struct{}

// Activate returns x
func (l Linear) Activate(x float64) float64 { return x }

// Derivative returns 1
func (l Linear) Derivative(x float64) float64 { return 1 }

// OutputDerivative returns 1
func (l Linear) OutputDerivative(y float64) float64 { return 1 }

// Name returns the registry name of a, or "" for unknown types.
func Name(a Activation) string {
	switch a.(type) {
	case ReLU:
		return "ReLU"
	case Sigmoid:
		return "Sigmoid"
	case Tanh:
		return "Tanh"
	case Linear:
		return "Linear"
	}
	return ""
}

// ByName returns the activation registered under name.
func ByName(name string) (Activation, bool) {
	switch name {
	case "ReLU":
		return ReLU{}, true
	case "Sigmoid":
		return Sigmoid{}, true
	case "Tanh":
		return Tanh{}, true
	case "Linear":
		return Linear{}, true
	}
	return nil, false
}
