package net

import (
	"fmt"
	"io"

	"github.com/FlavioCFOliveira/convnet/internal/layer"
)

// Summary writes a table of the network's layers to w.
func (n *Network) Summary(w io.Writer) {
	fmt.Fprintln(w, "Model: ConvNet")
	fmt.Fprintln(w, "_________________________________________________________________")
	fmt.Fprintf(w, "%-18s %-14s %-10s %-10s %-10s\n", "Layer (type)", "Output Shape", "Kernel", "Pool", "Param #")
	fmt.Fprintln(w, "=================================================================")

	for i, l := range n.layers {
		kernel, pool := "-", "-"
		switch l.Kind() {
		case layer.Convolution, layer.Output:
			kernel = l.KernelSize().String()
		case layer.Sampling:
			pool = l.PoolSize().String()
		}
		outShape := fmt.Sprintf("%d@%s", l.OutMapCount(), l.MapSize())
		fmt.Fprintf(w, "%-18s %-14s %-10s %-10s %-10d\n",
			fmt.Sprintf("%s_%d", l.Kind(), i), outShape, kernel, pool, l.ParamCount())
	}
	fmt.Fprintln(w, "=================================================================")
	fmt.Fprintf(w, "Total params: %d\n", n.ParamCount())
	fmt.Fprintln(w, "_________________________________________________________________")
}
