package net

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/convnet/internal/layer"
)

// Forward writes input and every derived map for the cursor's record and
// returns the output layer's values, one per class. input is copied.
func (n *Network) Forward(input mat.Matrix) ([]float64, error) {
	cur := n.cursor
	in := n.layers[0]
	r, c := input.Dims()
	if r != in.MapSize().Y || c != in.MapSize().X {
		return nil, fmt.Errorf("input %dx%d does not fit %s: %w", c, r, in.MapSize(), layer.ErrShapeMismatch)
	}
	if err := in.SetActivation(cur, 0, mat.DenseCopyOf(input)); err != nil {
		return nil, fmt.Errorf("layer 0: %w", err)
	}

	for i := 1; i < len(n.layers); i++ {
		var err error
		switch n.layers[i].Kind() {
		case layer.Convolution, layer.Output:
			err = n.convolve(n.layers[i-1], n.layers[i])
		case layer.Sampling:
			err = n.pool(n.layers[i-1], n.layers[i])
		}
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, n.layers[i].Kind(), err)
		}
	}

	out := n.Output()
	values := make([]float64, out.OutMapCount())
	for j := range values {
		m, err := out.Activation(cur.Record(), j)
		if err != nil {
			return nil, err
		}
		values[j] = m.At(0, 0)
	}
	return values, nil
}

// Predict runs Forward and returns the index of the strongest class.
func (n *Network) Predict(input mat.Matrix) (int, []float64, error) {
	values, err := n.Forward(input)
	if err != nil {
		return -1, nil, err
	}
	return floats.MaxIdx(values), values, nil
}

// convolve computes every map of l as the activated sum of valid
// correlations of prev's maps with l's kernels, plus the map's bias.
func (n *Network) convolve(prev, l *layer.Layer) error {
	record := n.cursor.Record()
	size := l.MapSize()
	for j := 0; j < l.OutMapCount(); j++ {
		sum := mat.NewDense(size.Y, size.X, nil)
		for i := 0; i < prev.OutMapCount(); i++ {
			a, err := prev.Activation(record, i)
			if err != nil {
				return err
			}
			k, err := l.Kernel(i, j)
			if err != nil {
				return err
			}
			correlateValid(sum, a, k)
		}
		bias, err := l.Bias(j)
		if err != nil {
			return err
		}
		sum.Apply(func(_, _ int, v float64) float64 {
			return n.act.Activate(v + bias)
		}, sum)
		if err := l.SetActivation(n.cursor, j, sum); err != nil {
			return err
		}
	}
	return nil
}

// pool computes every map of l as the block means of the matching map of prev.
func (n *Network) pool(prev, l *layer.Layer) error {
	record := n.cursor.Record()
	size, window := l.MapSize(), l.PoolSize()
	area := float64(window.Area())
	for m := 0; m < l.OutMapCount(); m++ {
		a, err := prev.Activation(record, m)
		if err != nil {
			return err
		}
		out := mat.NewDense(size.Y, size.X, nil)
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				block := a.Slice(y*window.Y, (y+1)*window.Y, x*window.X, (x+1)*window.X)
				out.Set(y, x, mat.Sum(block)/area)
			}
		}
		if err := l.SetActivation(n.cursor, m, out); err != nil {
			return err
		}
	}
	return nil
}

// Backward stores outputErrors, the gradients at the output layer's
// pre-activation, and propagates them down to the first hidden layer for
// the cursor's record.
func (n *Network) Backward(outputErrors []float64) error {
	out := n.Output()
	if len(outputErrors) != out.OutMapCount() {
		return fmt.Errorf("%d output errors for %d classes: %w",
			len(outputErrors), out.OutMapCount(), layer.ErrIndexOutOfRange)
	}
	for j, e := range outputErrors {
		if err := out.SetErrorCell(n.cursor, j, 0, 0, e); err != nil {
			return err
		}
	}

	for i := len(n.layers) - 2; i >= 1; i-- {
		l, next := n.layers[i], n.layers[i+1]
		var err error
		if next.Kind() == layer.Sampling {
			err = n.unpool(l, next)
		} else {
			err = n.backConvolve(l, next)
		}
		if err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, l.Kind(), err)
		}
	}
	return nil
}

// unpool spreads each error cell of the sampling layer next evenly over its
// window in l, scaled by the derivative of l's activation.
func (n *Network) unpool(l, next *layer.Layer) error {
	record := n.cursor.Record()
	size, window := l.MapSize(), next.PoolSize()
	area := float64(window.Area())
	for m := 0; m < l.OutMapCount(); m++ {
		e, err := next.ErrorMap(record, m)
		if err != nil {
			return err
		}
		a, err := l.Activation(record, m)
		if err != nil {
			return err
		}
		delta := mat.NewDense(size.Y, size.X, nil)
		delta.Apply(func(y, x int, _ float64) float64 {
			return e.At(y/window.Y, x/window.X) / area * n.derivative(l, a.At(y, x))
		}, delta)
		if err := l.SetError(n.cursor, m, delta); err != nil {
			return err
		}
	}
	return nil
}

// backConvolve sums, for every map of l, the full convolution of next's
// error maps with the kernels connecting them, scaled by the derivative of
// l's activation.
func (n *Network) backConvolve(l, next *layer.Layer) error {
	record := n.cursor.Record()
	size := l.MapSize()
	for i := 0; i < l.OutMapCount(); i++ {
		delta := mat.NewDense(size.Y, size.X, nil)
		for j := 0; j < next.OutMapCount(); j++ {
			e, err := next.ErrorMap(record, j)
			if err != nil {
				return err
			}
			k, err := next.Kernel(i, j)
			if err != nil {
				return err
			}
			convolveFull(delta, e, k)
		}
		a, err := l.Activation(record, i)
		if err != nil {
			return err
		}
		delta.Apply(func(y, x int, v float64) float64 {
			return v * n.derivative(l, a.At(y, x))
		}, delta)
		if err := l.SetError(n.cursor, i, delta); err != nil {
			return err
		}
	}
	return nil
}

// derivative returns the activation slope at output y of l. Sampling maps
// are not activated.
func (n *Network) derivative(l *layer.Layer, y float64) float64 {
	if l.Kind() == layer.Sampling {
		return 1
	}
	return n.act.OutputDerivative(y)
}

// correlateValid adds the valid correlation of a with k into dst.
// dst must be (ar-kr+1) x (ac-kc+1).
func correlateValid(dst *mat.Dense, a, k mat.Matrix) {
	kr, kc := k.Dims()
	dr, dc := dst.Dims()
	for y := 0; y < dr; y++ {
		for x := 0; x < dc; x++ {
			var s float64
			for u := 0; u < kr; u++ {
				for v := 0; v < kc; v++ {
					s += a.At(y+u, x+v) * k.At(u, v)
				}
			}
			dst.Set(y, x, dst.At(y, x)+s)
		}
	}
}

// convolveFull adds the full convolution of e with k into dst, the
// gradient of correlateValid with respect to its input.
// dst must be (er+kr-1) x (ec+kc-1).
func convolveFull(dst *mat.Dense, e, k mat.Matrix) {
	er, ec := e.Dims()
	kr, kc := k.Dims()
	for y := 0; y < er; y++ {
		for x := 0; x < ec; x++ {
			g := e.At(y, x)
			if g == 0 {
				continue
			}
			for u := 0; u < kr; u++ {
				for v := 0; v < kc; v++ {
					dst.Set(y+u, x+v, dst.At(y+u, x+v)+g*k.At(u, v))
				}
			}
		}
	}
}
