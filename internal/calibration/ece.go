package calibration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var ErrProbabilityRange = errors.New("probability outside [0,1]")

const DefaultBins = 10

type Pair struct {
	Probability float64
	Correct     bool
}

type Bin struct {
	Lo, Hi            float64
	AverageConfidence float64
	AverageAccuracy   float64
	Count             int
}

// Interval names the bin as "<lo>-<hi>" with two significant digits.
func (b Bin) Interval() string {
	return strconv.FormatFloat(b.Lo, 'g', 2, 64) + "-" + strconv.FormatFloat(b.Hi, 'g', 2, 64)
}

type Result struct {
	ECE  float64
	Bins []Bin
}

// Compute splits [0,1] into n equal-width bins, the last closed on the
// right, and returns the expected calibration error over the non-empty bins.
func Compute(pairs []Pair, n int) (Result, error) {
	if n < 1 {
		return Result{}, fmt.Errorf("bin count must be positive, got %d", n)
	}
	bins := make([]Bin, n)
	sumConf := make([]float64, n)
	sumAcc := make([]float64, n)
	for i := range bins {
		bins[i].Lo = float64(i) / float64(n)
		bins[i].Hi = float64(i+1) / float64(n)
	}
	for _, p := range pairs {
		if p.Probability < 0 || p.Probability > 1 || math.IsNaN(p.Probability) {
			return Result{}, fmt.Errorf("%w: %v", ErrProbabilityRange, p.Probability)
		}
		idx := int(math.Floor(p.Probability * float64(n)))
		if idx >= n {
			idx = n - 1
		}
		bins[idx].Count++
		sumConf[idx] += p.Probability
		if p.Correct {
			sumAcc[idx]++
		}
	}

	res := Result{Bins: bins}
	for i := range bins {
		if bins[i].Count == 0 {
			continue
		}
		c := float64(bins[i].Count)
		bins[i].AverageConfidence = sumConf[i] / c
		bins[i].AverageAccuracy = sumAcc[i] / c
		res.ECE += c / float64(len(pairs)) * math.Abs(bins[i].AverageAccuracy-bins[i].AverageConfidence)
	}
	return res, nil
}
