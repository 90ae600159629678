package analysis

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/aspect"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/bucket"
)

var ErrMissingBucketAlignment = errors.New("bucket missing from aligned prediction partition")

type BucketResult struct {
	Key        bucket.Key
	Accuracy   float64
	Count      int
	Pairs      int
	Low, High  float64
	ErrorCases []string
}

type aggregateOptions struct {
	ci      bool
	cases   bool
	repeats int
}

// aggregateBuckets walks each gold bucket alongside the aligned prediction
// bucket of the same key. Pairs whose example ids disagree are skipped.
// Results come back in display order.
func aggregateBuckets(gold, pred *bucket.Partition, lookup aspect.SentenceLookup, opts aggregateOptions, rng *rand.Rand) ([]BucketResult, error) {
	byKey := make(map[bucket.Key]BucketResult, gold.Len())
	for _, b := range gold.Buckets() {
		predMembers, ok := pred.Members(b.Key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingBucketAlignment, b.Key)
		}

		res := BucketResult{Key: b.Key, Count: len(b.Members)}
		var goldLabels, predLabels []string
		for i := 0; i < min(len(b.Members), len(predMembers)); i++ {
			goldID, goldLabel, ok1 := aspect.SplitKey(b.Members[i])
			predID, predLabel, ok2 := aspect.SplitKey(predMembers[i])
			if !ok1 || !ok2 || goldID != predID {
				continue
			}
			goldLabels = append(goldLabels, goldLabel)
			predLabels = append(predLabels, predLabel)
			if goldLabel != predLabel && opts.cases {
				res.ErrorCases = append(res.ErrorCases, goldLabel+"|||"+predLabel+"|||"+lookup.Text(goldID))
			}
		}
		res.Pairs = len(goldLabels)
		res.Accuracy = Accuracy(predLabels, goldLabels)
		if opts.ci {
			res.Low, res.High = ConfidenceInterval(predLabels, goldLabels, opts.repeats, rng)
		}
		byKey[b.Key] = res
	}

	out := make([]BucketResult, 0, len(byKey))
	for _, k := range bucket.SortKeys(gold.Keys()) {
		out = append(out, byKey[k])
	}
	return out, nil
}
