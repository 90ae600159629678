package analysis

import (
	"math/rand/v2"
	"sort"
)

const DefaultRepeats = 100

// Accuracy is the share of positions where pred and gold agree, over the
// shorter of the two slices. It is 0 for empty input.
func Accuracy(pred, gold []string) float64 {
	n := min(len(pred), len(gold))
	if n == 0 {
		return 0
	}
	hits := 0
	for i := 0; i < n; i++ {
		if pred[i] == gold[i] {
			hits++
		}
	}
	return float64(hits) / float64(n)
}

// ConfidenceInterval resamples the (pred, gold) pairs with replacement
// repeats times and returns the 2.5th and 97.5th percentile accuracies.
func ConfidenceInterval(pred, gold []string, repeats int, rng *rand.Rand) (low, high float64) {
	n := min(len(pred), len(gold))
	if n == 0 || repeats <= 0 {
		return 0, 0
	}
	samples := make([]float64, repeats)
	for r := range samples {
		hits := 0
		for i := 0; i < n; i++ {
			j := rng.IntN(n)
			if pred[j] == gold[j] {
				hits++
			}
		}
		samples[r] = float64(hits) / float64(n)
	}
	sort.Float64s(samples)
	lo := int(0.025 * float64(repeats))
	hi := min(int(0.975*float64(repeats)), repeats-1)
	return samples[lo], samples[hi]
}

func newRand(seed uint64, stream int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(stream)))
}
