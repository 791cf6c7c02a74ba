package layer

import (
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Initializer produces starting values for kernels and biases.
// Kernel must return a new matrix on every call.
type Initializer interface {
	Kernel(rows, cols int) *mat.Dense
	Bias() float64
}

// UniformInit draws every kernel weight and bias independently and
// uniformly from [-Scale/2, Scale/2).
type UniformInit struct {
	Scale float64
	rng   *rand.Rand
}

// NewUniformInit creates a UniformInit with its own seeded generator.
func NewUniformInit(seed int64, scale float64) *UniformInit {
	return &UniformInit{
		Scale: scale,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// DefaultInit returns a UniformInit with scale 0.1 seeded from the clock.
func DefaultInit() *UniformInit {
	return NewUniformInit(time.Now().UnixNano(), 0.1)
}

// Kernel returns a rows x cols matrix of fresh random weights.
func (u *UniformInit) Kernel(rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (u.rng.Float64() - 0.5) * u.Scale
	}
	return mat.NewDense(rows, cols, data)
}

// Bias returns one random bias.
func (u *UniformInit) Bias() float64 {
	return (u.rng.Float64() - 0.5) * u.Scale
}
