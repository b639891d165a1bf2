package pitch_test

import (
	"fmt"

	"github.com/cwbudde/algo-tuner/internal/testutil"
	"github.com/cwbudde/algo-tuner/measure/pitch"
)

func ExampleTuner() {
	tuner, err := pitch.NewTuner(pitch.WithSampleRate(44100))
	if err != nil {
		panic(err)
	}

	signal := testutil.DeterministicSine(441, 44100, 0.5, 8192)
	for _, block := range testutil.Blocks(signal, 256) {
		tuner.OnBlock(block, 44100)
	}

	est := tuner.Estimate()
	fmt.Printf("lag=%d frequency=%.1f Hz\n", est.Lag, est.Frequency)
	// Output:
	// lag=100 frequency=441.0 Hz
}

func ExamplePickPeaks() {
	sim := []float64{1, 0.4, -0.3, 0.2, 0.7, 0.3, -0.2, 0.1, 0.6, 0.5}
	fmt.Println(pitch.PickPeaks(nil, sim))
	// Output:
	// [4 8]
}

func ExampleSelector_Select() {
	sim := make([]float64, 300)
	sim[0] = 1
	sim[100] = 0.82
	sim[200] = 0.9

	est := pitch.Selector{Proportion: 0.8}.Select(sim, []int{100, 200}, 48000)
	fmt.Printf("lag=%d frequency=%.0f Hz\n", est.Lag, est.Frequency)
	// Output:
	// lag=100 frequency=480 Hz
}
