package layer

// NewInput creates an input layer producing one map of the given size.
func NewInput(size Size) *Layer {
	return &Layer{
		kind:        Input,
		outMapCount: 1,
		mapSize:     size,
	}
}

// NewConvolution creates a convolution layer with outMapCount maps and
// kernels of kernelSize. Its map size is derived when it is attached.
func NewConvolution(outMapCount int, kernelSize Size) *Layer {
	return &Layer{
		kind:        Convolution,
		outMapCount: outMapCount,
		kernelSize:  kernelSize,
	}
}

// NewSampling creates a pooling layer with the given window. Its map count
// and size are taken from the predecessor when it is attached.
func NewSampling(poolSize Size) *Layer {
	return &Layer{
		kind:     Sampling,
		poolSize: poolSize,
	}
}

// NewOutput creates the final layer with one 1x1 map per class.
// Its kernels span the whole predecessor map, making it fully connected.
func NewOutput(classCount int) *Layer {
	return &Layer{
		kind:        Output,
		outMapCount: classCount,
		mapSize:     Size{X: 1, Y: 1},
	}
}
