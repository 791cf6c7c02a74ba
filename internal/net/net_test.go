package net

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/convnet/internal/activations"
	"github.com/FlavioCFOliveira/convnet/internal/layer"
)

func lenet(t *testing.T) *Network {
	t.Helper()
	n, err := New(DefaultConfig(),
		layer.NewInput(layer.Size{X: 28, Y: 28}),
		layer.NewConvolution(6, layer.Size{X: 5, Y: 5}),
		layer.NewSampling(layer.Size{X: 2, Y: 2}),
		layer.NewConvolution(12, layer.Size{X: 5, Y: 5}),
		layer.NewSampling(layer.Size{X: 2, Y: 2}),
		layer.NewOutput(10),
	)
	require.NoError(t, err)
	return n
}

// tinyNet returns a linear 3x3 -> conv(1@2x2) -> pool(2x2) -> output(2)
// network with hand-set parameters: an all-ones convolution kernel and
// output kernels 1 and 2, all biases zero.
func tinyNet(t *testing.T) *Network {
	t.Helper()
	n, err := New(Config{Activation: activations.Linear{}, Seed: 1, InitScale: 0.1},
		layer.NewInput(layer.Size{X: 3, Y: 3}),
		layer.NewConvolution(1, layer.Size{X: 2, Y: 2}),
		layer.NewSampling(layer.Size{X: 2, Y: 2}),
		layer.NewOutput(2),
	)
	require.NoError(t, err)

	conv, out := n.Layers()[1], n.Output()
	require.NoError(t, conv.SetKernel(0, 0, mat.NewDense(2, 2, []float64{1, 1, 1, 1})))
	require.NoError(t, conv.SetBias(0, 0))
	require.NoError(t, out.SetKernel(0, 0, mat.NewDense(1, 1, []float64{1})))
	require.NoError(t, out.SetKernel(0, 1, mat.NewDense(1, 1, []float64{2})))
	require.NoError(t, out.SetBias(0, 0))
	require.NoError(t, out.SetBias(1, 0))
	return n
}

var tinyInput = mat.NewDense(3, 3, []float64{
	1, 2, 3,
	4, 5, 6,
	7, 8, 9,
})

func TestNewDerivesShapes(t *testing.T) {
	n := lenet(t)

	want := []struct {
		maps int
		size layer.Size
	}{
		{1, layer.Size{X: 28, Y: 28}},
		{6, layer.Size{X: 24, Y: 24}},
		{6, layer.Size{X: 12, Y: 12}},
		{12, layer.Size{X: 8, Y: 8}},
		{12, layer.Size{X: 4, Y: 4}},
		{10, layer.Size{X: 1, Y: 1}},
	}
	for i, l := range n.Layers() {
		if l.OutMapCount() != want[i].maps || l.MapSize() != want[i].size {
			t.Errorf("layer %d = %d@%s, want %d@%s", i, l.OutMapCount(), l.MapSize(), want[i].maps, want[i].size)
		}
	}
	assert.Equal(t, layer.Size{X: 4, Y: 4}, n.Output().KernelSize())

	params := (6*25 + 6) + (6*12*25 + 12) + (12*10*16 + 10)
	assert.Equal(t, params, n.ParamCount())
}

func TestNewRejectsBadStacks(t *testing.T) {
	in := func() *layer.Layer { return layer.NewInput(layer.Size{X: 8, Y: 8}) }

	tests := []struct {
		name   string
		layers []*layer.Layer
		want   error
	}{
		{"too short", []*layer.Layer{in()}, layer.ErrInvalidOperation},
		{"no input", []*layer.Layer{layer.NewConvolution(2, layer.Size{X: 3, Y: 3}), layer.NewOutput(2)}, layer.ErrInvalidOperation},
		{"no output", []*layer.Layer{in(), layer.NewConvolution(2, layer.Size{X: 3, Y: 3})}, layer.ErrInvalidOperation},
		{"output in the middle", []*layer.Layer{in(), layer.NewOutput(3), layer.NewOutput(2)}, layer.ErrInvalidOperation},
		{"nil layer", []*layer.Layer{in(), nil, layer.NewOutput(2)}, layer.ErrInvalidOperation},
		{"uneven pool", []*layer.Layer{in(), layer.NewSampling(layer.Size{X: 3, Y: 3}), layer.NewOutput(2)}, layer.ErrShapeMismatch},
		{"kernel too large", []*layer.Layer{in(), layer.NewConvolution(2, layer.Size{X: 9, Y: 9}), layer.NewOutput(2)}, layer.ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(DefaultConfig(), tt.layers...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestForwardKnownValues(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(1))

	values, err := n.Forward(tinyInput)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{20, 40}, values, 1e-12)

	conv, err := n.Layers()[1].Activation(0, 0)
	require.NoError(t, err)
	assert.True(t, mat.Equal(mat.NewDense(2, 2, []float64{12, 16, 24, 28}), conv))

	pooled, err := n.Layers()[2].Activation(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 20.0, pooled.At(0, 0))
}

func TestForwardCopiesInput(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(1))

	input := mat.DenseCopyOf(tinyInput)
	_, err := n.Forward(input)
	require.NoError(t, err)
	input.Set(0, 0, 100)

	stored, err := n.Input().Activation(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.At(0, 0))
}

func TestForwardWritesCursorRecord(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(2))

	_, err := n.Forward(tinyInput)
	require.NoError(t, err)
	n.PrepareForNewRecord()

	second := mat.NewDense(3, 3, nil)
	values, err := n.Forward(second)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, values)

	first, err := n.Output().Activation(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 40.0, first.At(0, 0))

	n.PrepareForNewRecord()
	_, err = n.Forward(tinyInput)
	assert.ErrorIs(t, err, layer.ErrIndexOutOfRange)
}

func TestForwardRejectsWrongInput(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(1))
	_, err := n.Forward(mat.NewDense(4, 3, nil))
	assert.ErrorIs(t, err, layer.ErrShapeMismatch)
}

func TestPredict(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(1))
	class, values, err := n.Predict(tinyInput)
	require.NoError(t, err)
	assert.Equal(t, 1, class)
	assert.Len(t, values, 2)
}

func TestBackwardKnownValues(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(1))
	_, err := n.Forward(tinyInput)
	require.NoError(t, err)

	require.NoError(t, n.Backward([]float64{1, 0.5}))

	outErr, err := n.Output().ErrorMap(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.5, outErr.At(0, 0))

	// 1*1 + 0.5*2
	poolErr, err := n.Layers()[2].ErrorMap(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, poolErr.At(0, 0), 1e-12)

	convErr, err := n.Layers()[1].ErrorMap(0, 0)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(mat.NewDense(2, 2, []float64{0.5, 0.5, 0.5, 0.5}), convErr, 1e-12))

	inErr, err := n.Input().ErrorMap(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat.Sum(inErr), "input errors are not propagated")
}

func TestBackwardScalesByActivationSlope(t *testing.T) {
	n, err := New(Config{Activation: activations.Sigmoid{}, Seed: 7, InitScale: 0.5},
		layer.NewInput(layer.Size{X: 6, Y: 6}),
		layer.NewConvolution(2, layer.Size{X: 3, Y: 3}),
		layer.NewSampling(layer.Size{X: 2, Y: 2}),
		layer.NewOutput(3),
	)
	require.NoError(t, err)
	require.NoError(t, n.PrepareForNewBatch(1))

	input := mat.NewDense(6, 6, nil)
	input.Apply(func(i, j int, _ float64) float64 { return float64(i*6+j) / 36 }, input)
	_, err = n.Forward(input)
	require.NoError(t, err)
	require.NoError(t, n.Backward([]float64{0.3, -0.2, 0.1}))

	conv, pool := n.Layers()[1], n.Layers()[2]
	for m := 0; m < 2; m++ {
		a, _ := conv.Activation(0, m)
		e, _ := conv.ErrorMap(0, m)
		pe, _ := pool.ErrorMap(0, m)
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				v := a.At(y, x)
				want := pe.At(y/2, x/2) / 4 * v * (1 - v)
				assert.InDelta(t, want, e.At(y, x), 1e-12)
			}
		}
	}
}

func TestBackwardRejectsWrongErrorCount(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(1))
	assert.ErrorIs(t, n.Backward([]float64{1}), layer.ErrIndexOutOfRange)
}

func TestResetErrorsKeepsActivations(t *testing.T) {
	n := tinyNet(t)
	require.NoError(t, n.PrepareForNewBatch(1))
	_, err := n.Forward(tinyInput)
	require.NoError(t, err)
	require.NoError(t, n.Backward([]float64{1, 1}))

	require.NoError(t, n.ResetErrors())

	e, err := n.Layers()[1].ErrorMap(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat.Sum(e))

	a, err := n.Layers()[1].Activation(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 80.0, mat.Sum(a))
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	lenet(t).Summary(&buf)

	out := buf.String()
	assert.Contains(t, out, "Convolution_1")
	assert.Contains(t, out, "6@24x24")
	assert.Contains(t, out, "Sampling_4")
	assert.Contains(t, out, "Output_5")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "_"))
	assert.Contains(t, out, "Total params: 3898")
}

func TestEncodeDecode(t *testing.T) {
	n := lenet(t)

	var buf bytes.Buffer
	require.NoError(t, n.Encode(&buf))

	loaded, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, loaded.Layers(), len(n.Layers()))
	assert.IsType(t, activations.Sigmoid{}, loaded.Activation())

	for i, l := range n.Layers() {
		got := loaded.Layers()[i]
		assert.Equal(t, ExtractLayerConfig(l), ExtractLayerConfig(got), "layer %d", i)
		for src := 0; src < l.PrevMapCount(); src++ {
			for dst := 0; dst < l.OutMapCount(); dst++ {
				want, _ := l.Kernel(src, dst)
				k, err := got.Kernel(src, dst)
				require.NoError(t, err)
				assert.True(t, mat.Equal(want, k), "layer %d kernel (%d,%d)", i, src, dst)
			}
		}
		if l.ParamCount() > 0 {
			for j := 0; j < l.OutMapCount(); j++ {
				want, _ := l.Bias(j)
				b, _ := got.Bias(j)
				assert.Equal(t, want, b)
			}
		}
	}
}

func TestSaveLoad(t *testing.T) {
	n := tinyNet(t)
	path := filepath.Join(t.TempDir(), "tiny.gob")
	require.NoError(t, n.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, loaded.PrepareForNewBatch(1))

	values, err := loaded.Forward(tinyInput)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{20, 40}, values, 1e-12)

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestLayerConfigUnknownKind(t *testing.T) {
	cfg := LayerConfig{Kind: "Dense"}
	_, err := cfg.CreateLayer()
	assert.Error(t, err)
}

func TestDecodeRejectsCorruptStream(t *testing.T) {
	countOnly := func(count int32) *bytes.Buffer {
		var buf bytes.Buffer
		enc := gob.NewEncoder(&buf)
		require.NoError(t, enc.Encode(count))
		require.NoError(t, enc.Encode("Sigmoid"))
		return &buf
	}

	tests := []struct {
		name  string
		count int32
	}{
		{"negative count", -1},
		{"zero count", 0},
		{"single layer", 1},
		{"huge count", 1 << 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(countOnly(tt.count))
			assert.ErrorIs(t, err, layer.ErrInvalidOperation)
		})
	}

	t.Run("truncated stream", func(t *testing.T) {
		var full bytes.Buffer
		require.NoError(t, lenet(t).Encode(&full))
		truncated := bytes.NewReader(full.Bytes()[:full.Len()/2])
		_, err := Decode(truncated)
		assert.Error(t, err)
	})

	t.Run("empty stream", func(t *testing.T) {
		_, err := Decode(&bytes.Buffer{})
		assert.Error(t, err)
	})
}
