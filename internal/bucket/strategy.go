package bucket

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/aspect"
)

var (
	ErrUnsupportedStrategy = errors.New("unsupported bucketing strategy")
	ErrBucketRange         = errors.New("value outside configured buckets")
	ErrInvalidSetting      = errors.New("invalid bucketing setting")
)

// Strategy is one of Interval, SpecifiedValue or Discrete.
type Strategy interface {
	strategy()
	Name() string
}

// Interval assigns each value to the first key that contains it.
type Interval struct {
	Keys []Key
}

// SpecifiedValue produces exactly Buckets keys cut at Splits: values below
// Splits[0], then [Splits[i], Splits[i+1]), then values at or above the last
// split. Splits holds Buckets-1 increasing points; when empty they are taken
// from the quantiles of the observed values (see QuantileSplits).
type SpecifiedValue struct {
	Buckets int
	Splits  []float64
}

// Discrete keeps the TopK most frequent values seen at least MinCount times
// and folds the rest into the "other" bucket.
type Discrete struct {
	TopK     int
	MinCount int
}

func (Interval) strategy()       {}
func (SpecifiedValue) strategy() {}
func (Discrete) strategy()       {}

func (Interval) Name() string       { return NameInterval }
func (SpecifiedValue) Name() string { return NameSpecifiedValue }
func (Discrete) Name() string       { return NameDiscrete }

// Apply partitions the composite keys of m under s.
func Apply(s Strategy, m aspect.ValueMap) (*Partition, error) {
	switch st := s.(type) {
	case Interval:
		return applyInterval(st, m)
	case SpecifiedValue:
		return applySpecifiedValue(st, m)
	case Discrete:
		return applyDiscrete(st, m)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedStrategy, s)
	}
}

func applyInterval(s Interval, m aspect.ValueMap) (*Partition, error) {
	if len(s.Keys) == 0 {
		return nil, fmt.Errorf("%w: no intervals", ErrInvalidSetting)
	}
	p := newPartition(s.Keys)
	for i := 0; i < m.Len(); i++ {
		e := m.At(i)
		idx := firstContaining(p.buckets, e.Value)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s has value %s", ErrBucketRange, e.Key, e.Value)
		}
		p.add(idx, e.Key)
	}
	return p, nil
}

func applySpecifiedValue(s SpecifiedValue, m aspect.ValueMap) (*Partition, error) {
	if s.Buckets < 1 {
		return nil, fmt.Errorf("%w: bucket count %d", ErrInvalidSetting, s.Buckets)
	}
	if m.Categorical() {
		return nil, fmt.Errorf("%w: specified-value buckets need numeric values", ErrInvalidSetting)
	}
	splits := s.Splits
	if len(splits) == 0 {
		splits = QuantileSplits(m, s.Buckets)
	}
	if len(splits) != s.Buckets-1 {
		return nil, fmt.Errorf("%w: %d buckets need %d split points, got %d", ErrInvalidSetting, s.Buckets, s.Buckets-1, len(splits))
	}
	for i := 1; i < len(splits); i++ {
		if splits[i] <= splits[i-1] {
			return nil, fmt.Errorf("%w: split points must increase: %v", ErrInvalidSetting, splits)
		}
	}

	lo, ok := minValue(m)
	if len(splits) == 0 {
		if !ok {
			lo = 0
		}
		p := newPartition([]Key{Tail(lo)})
		for i := 0; i < m.Len(); i++ {
			p.add(0, m.At(i).Key)
		}
		return p, nil
	}
	if !ok || lo > splits[0] {
		lo = splits[0]
	}
	keys := make([]Key, 0, s.Buckets)
	keys = append(keys, Range(lo, splits[0], false))
	for i := 1; i < len(splits); i++ {
		keys = append(keys, Range(splits[i-1], splits[i], false))
	}
	keys = append(keys, Tail(splits[len(splits)-1]))

	p := newPartition(keys)
	for i := 0; i < m.Len(); i++ {
		e := m.At(i)
		p.add(splitIndex(splits, e.Value.Num), e.Key)
	}
	return p, nil
}

// splitIndex is the linear scan: the first bucket whose upper split exceeds v.
func splitIndex(splits []float64, v float64) int {
	for i, sp := range splits {
		if v < sp {
			return i
		}
	}
	return len(splits)
}

// QuantileSplits picks k-1 increasing split points from the distinct values
// of m so that the k buckets hold roughly equal shares of them. With fewer
// distinct values than buckets, the missing points continue in steps of one
// past the largest value and leave the top buckets empty.
func QuantileSplits(m aspect.ValueMap, k int) []float64 {
	if k < 2 {
		return nil
	}
	seen := map[float64]bool{}
	var distinct []float64
	for i := 0; i < m.Len(); i++ {
		v := m.At(i).Value.Num
		if !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}
	sort.Float64s(distinct)

	n := len(distinct)
	splits := make([]float64, 0, k-1)
	if n >= k {
		for i := 1; i < k; i++ {
			splits = append(splits, distinct[i*n/k])
		}
		return splits
	}
	last := 0.0
	if n > 0 {
		splits = append(splits, distinct[1:]...)
		last = distinct[n-1]
	}
	for step := 1.0; len(splits) < k-1; step++ {
		splits = append(splits, last+step)
	}
	return splits
}

func minValue(m aspect.ValueMap) (float64, bool) {
	if m.Len() == 0 {
		return 0, false
	}
	lo := m.At(0).Value.Num
	for i := 1; i < m.Len(); i++ {
		lo = min(lo, m.At(i).Value.Num)
	}
	return lo, true
}

func applyDiscrete(s Discrete, m aspect.ValueMap) (*Partition, error) {
	if s.TopK < 0 || s.MinCount < 0 {
		return nil, fmt.Errorf("%w: topK %d, min count %d", ErrInvalidSetting, s.TopK, s.MinCount)
	}
	counts := map[string]int{}
	var seen []string
	for i := 0; i < m.Len(); i++ {
		label := m.At(i).Value.String()
		if _, ok := counts[label]; !ok {
			seen = append(seen, label)
		}
		counts[label]++
	}
	sort.SliceStable(seen, func(i, j int) bool { return counts[seen[i]] > counts[seen[j]] })

	// A value spelled like the catch-all gets no key of its own, so bucket
	// names stay unique; its members land in the catch-all.
	keys := make([]Key, 0, min(s.TopK, len(seen))+1)
	for _, label := range seen {
		if len(keys) >= s.TopK || counts[label] < s.MinCount {
			break
		}
		if label == OtherLabel {
			continue
		}
		keys = append(keys, Label(label))
	}
	keys = append(keys, Other())

	p := newPartition(keys)
	for i := 0; i < m.Len(); i++ {
		e := m.At(i)
		p.add(firstContaining(p.buckets, e.Value), e.Key)
	}
	return p, nil
}

func firstContaining(buckets []Bucket, v aspect.Value) int {
	for i, b := range buckets {
		if b.Key.Contains(v) {
			return i
		}
	}
	return -1
}
