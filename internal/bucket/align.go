package bucket

import "github.com/ogulcanaydogan/llm-error-analysis/internal/aspect"

// Align re-partitions the prediction-side value map with the keys learned on
// the gold side, whatever strategy produced them. Every key is present in the
// result, possibly empty. Entries no key contains are dropped and returned
// in dropped; they are not an error.
func Align(pred aspect.ValueMap, keys []Key) (p *Partition, dropped []string) {
	p = newPartition(keys)
	for i := 0; i < pred.Len(); i++ {
		e := pred.At(i)
		idx := firstContaining(p.buckets, e.Value)
		if idx < 0 {
			dropped = append(dropped, e.Key)
			continue
		}
		p.add(idx, e.Key)
	}
	return p, dropped
}
