package bucket

import "sort"

type Bucket struct {
	Key     Key
	Members []string
}

// Partition is an ordered set of buckets. Key order is the order the
// strategy defined them in, which is also the order Align tests them.
type Partition struct {
	buckets []Bucket
	index   map[Key]int
}

func newPartition(keys []Key) *Partition {
	p := &Partition{buckets: make([]Bucket, 0, len(keys)), index: make(map[Key]int, len(keys))}
	for _, k := range keys {
		p.addKey(k)
	}
	return p
}

func (p *Partition) addKey(k Key) int {
	if i, ok := p.index[k]; ok {
		return i
	}
	p.index[k] = len(p.buckets)
	p.buckets = append(p.buckets, Bucket{Key: k, Members: []string{}})
	return len(p.buckets) - 1
}

func (p *Partition) add(i int, member string) {
	p.buckets[i].Members = append(p.buckets[i].Members, member)
}

func (p *Partition) Len() int {
	if p == nil {
		return 0
	}
	return len(p.buckets)
}

func (p *Partition) Keys() []Key {
	out := make([]Key, 0, p.Len())
	for _, b := range p.buckets {
		out = append(out, b.Key)
	}
	return out
}

// Buckets returns the buckets in definition order.
func (p *Partition) Buckets() []Bucket {
	out := make([]Bucket, p.Len())
	for i, b := range p.buckets {
		out[i] = Bucket{Key: b.Key, Members: append([]string(nil), b.Members...)}
	}
	return out
}

// Members returns the composite keys in bucket k.
func (p *Partition) Members(k Key) ([]string, bool) {
	if p == nil {
		return nil, false
	}
	i, ok := p.index[k]
	if !ok {
		return nil, false
	}
	return append([]string(nil), p.buckets[i].Members...), true
}

// Size is the total number of members over all buckets.
func (p *Partition) Size() int {
	n := 0
	for _, b := range p.buckets {
		n += len(b.Members)
	}
	return n
}

// SortKeys orders keys for display: numeric keys ascending by lower bound
// ahead of label keys, which keep their relative order.
func SortKeys(keys []Key) []Key {
	out := append([]Key(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Numeric() != b.Numeric() {
			return a.Numeric()
		}
		if !a.Numeric() {
			return false
		}
		if a.Lo != b.Lo {
			return a.Lo < b.Lo
		}
		return a.Kind == KindPoint && b.Kind != KindPoint
	})
	return out
}
