package aspect

import (
	"strconv"
	"strings"
)

// Value is an aspect value: a number, or a category for tag-like aspects.
type Value struct {
	Num         float64
	Str         string
	Categorical bool
}

func Number(f float64) Value { return Value{Num: f} }

func Category(s string) Value { return Value{Str: s, Categorical: true} }

func (v Value) String() string {
	if v.Categorical {
		return v.Str
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

// ParseValue reads a precomputed value: numbers stay numeric, anything else is
// a category.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Number(f)
	}
	return Category(raw)
}

const keySep = "|||"

// CompositeKey encodes (example id, label) as the single token tracked
// through both partitions.
func CompositeKey(id, label string) string {
	return id + keySep + label
}

// SplitKey recovers the example id and label from a composite key.
func SplitKey(key string) (id, label string, ok bool) {
	id, label, ok = strings.Cut(key, keySep)
	return id, label, ok
}

type Entry struct {
	Key   string
	Value Value
}

// ValueMap is an insertion-ordered composite key -> value mapping. It is built
// once by the extractor and never mutated afterwards.
type ValueMap struct {
	entries []Entry
}

func NewValueMap(entries []Entry) ValueMap {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return ValueMap{entries: cp}
}

func (m ValueMap) Len() int { return len(m.entries) }

func (m ValueMap) At(i int) Entry { return m.entries[i] }

// Entries returns a copy of the ordered entries.
func (m ValueMap) Entries() []Entry {
	cp := make([]Entry, len(m.entries))
	copy(cp, m.entries)
	return cp
}

// Categorical reports whether the map holds categorical values. An empty map
// is numeric.
func (m ValueMap) Categorical() bool {
	return len(m.entries) > 0 && m.entries[0].Value.Categorical
}

// Mean returns the average numeric value; ok is false for empty or
// categorical maps.
func (m ValueMap) Mean() (mean float64, ok bool) {
	if len(m.entries) == 0 || m.Categorical() {
		return 0, false
	}
	sum := 0.0
	for _, e := range m.entries {
		sum += e.Value.Num
	}
	return sum / float64(len(m.entries)), true
}
