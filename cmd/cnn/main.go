package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/convnet/internal/activations"
	"github.com/FlavioCFOliveira/convnet/internal/layer"
	"github.com/FlavioCFOliveira/convnet/internal/net"
)

// CNN example: a LeNet-style stack swept over synthetic 28x28 images.
func main() {
	records := flag.Int("records", 40, "number of synthetic images")
	batchSize := flag.Int("batch", 8, "mini-batch size")
	seed := flag.Int64("seed", 42, "random seed for weights and data")
	actName := flag.String("act", "Sigmoid", "activation: Sigmoid, Tanh, ReLU or Linear")
	save := flag.String("save", "", "write the network to this file")
	flag.Parse()

	if err := checkCounts(*records, *batchSize); err != nil {
		log.Fatal(err)
	}

	act, ok := activations.ByName(*actName)
	if !ok {
		log.Fatalf("unknown activation %q", *actName)
	}

	cfg := net.DefaultConfig()
	cfg.Activation = act
	cfg.Seed = *seed

	network, err := net.New(cfg,
		layer.NewInput(layer.Size{X: 28, Y: 28}),
		layer.NewConvolution(6, layer.Size{X: 5, Y: 5}),
		layer.NewSampling(layer.Size{X: 2, Y: 2}),
		layer.NewConvolution(12, layer.Size{X: 5, Y: 5}),
		layer.NewSampling(layer.Size{X: 2, Y: 2}),
		layer.NewOutput(2),
	)
	if err != nil {
		log.Fatalf("build network: %v", err)
	}
	network.Summary(os.Stdout)

	rng := rand.New(rand.NewSource(*seed))
	images, labels := generateBinaryImages(rng, *records, 28)

	correct := 0
	for start := 0; start < len(images); start += *batchSize {
		end := min(start+*batchSize, len(images))
		batchCorrect, err := sweepBatch(network, images[start:end], labels[start:end])
		if err != nil {
			log.Fatalf("batch at record %d: %v", start, err)
		}
		correct += batchCorrect
		fmt.Printf("  Batch %d-%d: %d/%d predicted\n", start, end-1, batchCorrect, end-start)
	}
	fmt.Printf("  Accuracy (untrained): %.1f%%\n", float64(correct)/float64(len(images))*100)

	if *save != "" {
		if err := network.Save(*save); err != nil {
			log.Fatalf("save: %v", err)
		}
		log.Printf("network written to %s", *save)
	}
}

// checkCounts rejects record and batch counts the batch loop cannot slice by.
func checkCounts(records, batchSize int) error {
	if records <= 0 {
		return fmt.Errorf("record count must be positive, got %d", records)
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	return nil
}

// sweepBatch runs the forward and backward sweep for every record of one
// batch and returns how many records were classified correctly.
func sweepBatch(n *net.Network, images []*mat.Dense, labels []int) (int, error) {
	if err := n.PrepareForNewBatch(len(images)); err != nil {
		return 0, err
	}

	correct := 0
	for i, img := range images {
		class, out, err := n.Predict(img)
		if err != nil {
			return 0, err
		}
		if class == labels[i] {
			correct++
		}

		errs := make([]float64, len(out))
		for j, y := range out {
			target := 0.0
			if j == labels[i] {
				target = 1
			}
			errs[j] = (target - y) * n.Activation().OutputDerivative(y)
		}
		if err := n.Backward(errs); err != nil {
			return 0, err
		}
		n.PrepareForNewRecord()
	}
	return correct, nil
}

func generateBinaryImages(rng *rand.Rand, nSamples, size int) ([]*mat.Dense, []int) {
	images := make([]*mat.Dense, nSamples)
	labels := make([]int, nSamples)

	for i := 0; i < nSamples; i++ {
		class := i % 2
		img := mat.NewDense(size, size, nil)
		img.Apply(func(row, col int, _ float64) float64 {
			if class == 0 {
				// Class 0: random noise
				return rng.Float64() * 0.2
			}
			// Class 1: bright top-left quadrant
			base := (rng.Float64() - 0.5) * 0.5
			if row < size/2 && col < size/2 {
				base += 0.5
			}
			return base + rng.Float64()*0.1
		}, img)

		images[i] = img
		labels[i] = class
	}

	return images, labels
}
