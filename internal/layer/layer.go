// Package layer provides the layers of a convolutional network: their
// parameters, their per-batch activation and error maps, and the map-size
// arithmetic that chains them together.
package layer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Kind identifies which variant a Layer is.
type Kind int

const (
	Input Kind = iota
	Convolution
	Sampling
	Output
)

func (k Kind) String() string {
	switch k {
	case Input:
		return "Input"
	case Convolution:
		return "Convolution"
	case Sampling:
		return "Sampling"
	case Output:
		return "Output"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// hasParams reports whether layers of kind k carry kernels and biases.
func (k Kind) hasParams() bool {
	return k == Convolution || k == Output
}

// Layer is one layer of a convolutional network.
//
// Only the fields that belong to its Kind are meaningful: kernels and
// biases exist on Convolution and Output layers, poolSize on Sampling
// layers. Kernels and biases live for the whole run; activations and
// errors are reallocated for every mini-batch.
type Layer struct {
	kind        Kind
	outMapCount int
	mapSize     Size
	kernelSize  Size
	poolSize    Size
	attached    bool

	// kernels[src][dst], each kernelSize
	kernels [][]*mat.Dense
	biases  []float64

	// activations[record][map] and errors[record][map], each mapSize
	activations [][]*mat.Dense
	errors      [][]*mat.Dense
}

// Kind returns the layer variant.
func (l *Layer) Kind() Kind { return l.kind }

// OutMapCount returns the number of maps the layer produces.
func (l *Layer) OutMapCount() int { return l.outMapCount }

// MapSize returns the size of every map the layer produces.
func (l *Layer) MapSize() Size { return l.mapSize }

// KernelSize returns the kernel size of a Convolution or Output layer.
func (l *Layer) KernelSize() Size { return l.kernelSize }

// PoolSize returns the pooling window of a Sampling layer.
func (l *Layer) PoolSize() Size { return l.poolSize }

// Attached reports whether the layer has been wired to a predecessor.
func (l *Layer) Attached() bool { return l.attached }

// BatchSize returns the number of records the activation maps were
// allocated for, or 0 before the first batch.
func (l *Layer) BatchSize() int { return len(l.activations) }

// PrevMapCount returns the number of source maps the kernels connect from.
func (l *Layer) PrevMapCount() int { return len(l.kernels) }

// ParamCount returns the number of learnable scalars in the layer.
func (l *Layer) ParamCount() int {
	n := len(l.biases)
	for _, row := range l.kernels {
		n += len(row) * l.kernelSize.Area()
	}
	return n
}

// Attach wires l to its predecessor: it derives the map size and, for
// Convolution and Output layers, allocates kernels and biases. A layer can
// be attached only once.
func (l *Layer) Attach(prev *Layer, ini Initializer) error {
	if l.attached {
		return fmt.Errorf("%s layer already attached: %w", l.kind, ErrInvalidOperation)
	}
	if l.kind == Input {
		return fmt.Errorf("input layer cannot follow another layer: %w", ErrInvalidOperation)
	}
	if prev == nil || !prev.mapSize.Valid() {
		return fmt.Errorf("%s layer has no sized predecessor: %w", l.kind, ErrInvalidOperation)
	}
	if l.kind.hasParams() && l.outMapCount <= 0 {
		return fmt.Errorf("%s layer with %d maps: %w", l.kind, l.outMapCount, ErrIndexOutOfRange)
	}

	switch l.kind {
	case Convolution:
		size := prev.mapSize.Subtract(l.kernelSize, 1)
		if !size.Valid() {
			return fmt.Errorf("kernel %s larger than map %s: %w", l.kernelSize, prev.mapSize, ErrShapeMismatch)
		}
		if err := l.InitKernels(prev.outMapCount, ini); err != nil {
			return err
		}
		l.mapSize = size
	case Sampling:
		size, err := prev.mapSize.Divide(l.poolSize)
		if err != nil {
			return err
		}
		l.mapSize = size
		l.outMapCount = prev.outMapCount
	case Output:
		if err := l.InitOutputKernels(prev.outMapCount, prev.mapSize, ini); err != nil {
			return err
		}
	}

	if l.kind.hasParams() {
		if err := l.InitBiases(l.outMapCount, ini); err != nil {
			return err
		}
	}
	l.attached = true
	return nil
}

// InitKernels allocates a prevMapCount x OutMapCount grid of independent
// kernels of KernelSize.
func (l *Layer) InitKernels(prevMapCount int, ini Initializer) error {
	if !l.kind.hasParams() {
		return fmt.Errorf("init kernels on %s layer: %w", l.kind, ErrInvalidOperation)
	}
	if prevMapCount <= 0 {
		return fmt.Errorf("previous map count %d: %w", prevMapCount, ErrIndexOutOfRange)
	}
	if !l.kernelSize.Valid() {
		return fmt.Errorf("kernel size %s: %w", l.kernelSize, ErrShapeMismatch)
	}

	l.kernels = make([][]*mat.Dense, prevMapCount)
	for i := range l.kernels {
		l.kernels[i] = make([]*mat.Dense, l.outMapCount)
		for j := range l.kernels[i] {
			l.kernels[i][j] = ini.Kernel(l.kernelSize.Y, l.kernelSize.X)
		}
	}
	return nil
}

// InitOutputKernels makes the kernel span the whole previous map, so that
// each convolution collapses to a single value, then allocates the kernels.
func (l *Layer) InitOutputKernels(prevMapCount int, prevMapSize Size, ini Initializer) error {
	if l.kind != Output {
		return fmt.Errorf("init output kernels on %s layer: %w", l.kind, ErrInvalidOperation)
	}
	l.kernelSize = prevMapSize
	return l.InitKernels(prevMapCount, ini)
}

// InitBiases allocates one bias per output map.
func (l *Layer) InitBiases(mapCount int, ini Initializer) error {
	if !l.kind.hasParams() {
		return fmt.Errorf("init biases on %s layer: %w", l.kind, ErrInvalidOperation)
	}
	if mapCount != l.outMapCount {
		return fmt.Errorf("%d biases for %d maps: %w", mapCount, l.outMapCount, ErrIndexOutOfRange)
	}
	l.biases = make([]float64, mapCount)
	for i := range l.biases {
		l.biases[i] = ini.Bias()
	}
	return nil
}

// InitActivations discards the previous batch and allocates zeroed
// activation maps for batchSize records.
func (l *Layer) InitActivations(batchSize int) error {
	grid, err := l.newGrid(batchSize)
	if err != nil {
		return err
	}
	l.activations = grid
	return nil
}

// InitErrors discards the previous batch and allocates zeroed error maps
// for batchSize records.
func (l *Layer) InitErrors(batchSize int) error {
	grid, err := l.newGrid(batchSize)
	if err != nil {
		return err
	}
	l.errors = grid
	return nil
}

func (l *Layer) newGrid(batchSize int) ([][]*mat.Dense, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size %d: %w", batchSize, ErrIndexOutOfRange)
	}
	if !l.mapSize.Valid() || l.outMapCount <= 0 {
		return nil, fmt.Errorf("%s layer is not sized: %w", l.kind, ErrInvalidOperation)
	}
	grid := make([][]*mat.Dense, batchSize)
	for r := range grid {
		grid[r] = make([]*mat.Dense, l.outMapCount)
		for m := range grid[r] {
			grid[r][m] = mat.NewDense(l.mapSize.Y, l.mapSize.X, nil)
		}
	}
	return grid, nil
}

// SetActivation replaces the activation map mapIndex of the cursor's
// record with m. The layer takes ownership of m.
func (l *Layer) SetActivation(c *Cursor, mapIndex int, m *mat.Dense) error {
	return l.replace(l.activations, c.Record(), mapIndex, m)
}

// SetActivationCell writes one cell of the cursor's record's activation map.
func (l *Layer) SetActivationCell(c *Cursor, mapIndex, row, col int, v float64) error {
	return l.setCell(l.activations, c.Record(), mapIndex, row, col, v)
}

// Activation returns the activation map mapIndex of record.
func (l *Layer) Activation(record, mapIndex int) (*mat.Dense, error) {
	return l.lookup(l.activations, record, mapIndex)
}

// SetError replaces the error map mapIndex of the cursor's record with m.
// The layer takes ownership of m.
func (l *Layer) SetError(c *Cursor, mapIndex int, m *mat.Dense) error {
	return l.replace(l.errors, c.Record(), mapIndex, m)
}

// SetErrorCell writes one cell of the cursor's record's error map.
func (l *Layer) SetErrorCell(c *Cursor, mapIndex, row, col int, v float64) error {
	return l.setCell(l.errors, c.Record(), mapIndex, row, col, v)
}

// ErrorMap returns the error map mapIndex of record.
func (l *Layer) ErrorMap(record, mapIndex int) (*mat.Dense, error) {
	return l.lookup(l.errors, record, mapIndex)
}

func (l *Layer) lookup(grid [][]*mat.Dense, record, mapIndex int) (*mat.Dense, error) {
	if record < 0 || record >= len(grid) {
		return nil, fmt.Errorf("record %d of %d: %w", record, len(grid), ErrIndexOutOfRange)
	}
	if mapIndex < 0 || mapIndex >= len(grid[record]) {
		return nil, fmt.Errorf("map %d of %d: %w", mapIndex, len(grid[record]), ErrIndexOutOfRange)
	}
	return grid[record][mapIndex], nil
}

func (l *Layer) replace(grid [][]*mat.Dense, record, mapIndex int, m *mat.Dense) error {
	if _, err := l.lookup(grid, record, mapIndex); err != nil {
		return err
	}
	if err := checkDims(m, l.mapSize); err != nil {
		return err
	}
	grid[record][mapIndex] = m
	return nil
}

func (l *Layer) setCell(grid [][]*mat.Dense, record, mapIndex, row, col int, v float64) error {
	m, err := l.lookup(grid, record, mapIndex)
	if err != nil {
		return err
	}
	if row < 0 || row >= l.mapSize.Y || col < 0 || col >= l.mapSize.X {
		return fmt.Errorf("cell (%d,%d) of %s map: %w", row, col, l.mapSize, ErrIndexOutOfRange)
	}
	m.Set(row, col, v)
	return nil
}

// Kernel returns the kernel connecting source map src to output map dst.
func (l *Layer) Kernel(src, dst int) (*mat.Dense, error) {
	if err := l.checkKernel(src, dst); err != nil {
		return nil, err
	}
	return l.kernels[src][dst], nil
}

// SetKernel replaces the kernel connecting src to dst. The layer takes
// ownership of m.
func (l *Layer) SetKernel(src, dst int, m *mat.Dense) error {
	if err := l.checkKernel(src, dst); err != nil {
		return err
	}
	if err := checkDims(m, l.kernelSize); err != nil {
		return err
	}
	l.kernels[src][dst] = m
	return nil
}

func (l *Layer) checkKernel(src, dst int) error {
	if !l.kind.hasParams() {
		return fmt.Errorf("kernel access on %s layer: %w", l.kind, ErrInvalidOperation)
	}
	if src < 0 || src >= len(l.kernels) || dst < 0 || dst >= l.outMapCount {
		return fmt.Errorf("kernel (%d,%d) of %dx%d: %w", src, dst, len(l.kernels), l.outMapCount, ErrIndexOutOfRange)
	}
	return nil
}

// Bias returns the bias of output map mapIndex.
func (l *Layer) Bias(mapIndex int) (float64, error) {
	if err := l.checkBias(mapIndex); err != nil {
		return 0, err
	}
	return l.biases[mapIndex], nil
}

// SetBias sets the bias of output map mapIndex.
func (l *Layer) SetBias(mapIndex int, v float64) error {
	if err := l.checkBias(mapIndex); err != nil {
		return err
	}
	l.biases[mapIndex] = v
	return nil
}

func (l *Layer) checkBias(mapIndex int) error {
	if !l.kind.hasParams() {
		return fmt.Errorf("bias access on %s layer: %w", l.kind, ErrInvalidOperation)
	}
	if mapIndex < 0 || mapIndex >= len(l.biases) {
		return fmt.Errorf("bias %d of %d: %w", mapIndex, len(l.biases), ErrIndexOutOfRange)
	}
	return nil
}

func checkDims(m *mat.Dense, want Size) error {
	if m == nil {
		return fmt.Errorf("nil matrix for %s: %w", want, ErrShapeMismatch)
	}
	r, c := m.Dims()
	if r != want.Y || c != want.X {
		return fmt.Errorf("matrix %dx%d does not fit %s: %w", c, r, want, ErrShapeMismatch)
	}
	return nil
}
