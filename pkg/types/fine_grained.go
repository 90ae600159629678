package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AspectBuckets holds the bucket entries of one aspect.
type AspectBuckets struct {
	Name    string
	Buckets []BucketEntry
}

// FineGrained keeps per-aspect results in configuration order. It encodes as
// a JSON object whose keys appear in that order.
type FineGrained []AspectBuckets

// Get returns the buckets recorded for name.
func (f FineGrained) Get(name string) ([]BucketEntry, bool) {
	for _, a := range f {
		if a.Name == name {
			return a.Buckets, true
		}
	}
	return nil, false
}

// Names lists the aspects in order.
func (f FineGrained) Names() []string {
	names := make([]string, len(f))
	for i, a := range f {
		names[i] = a.Name
	}
	return names
}

func (f FineGrained) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		buckets := a.Buckets
		if buckets == nil {
			buckets = []BucketEntry{}
		}
		body, err := json.Marshal(buckets)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the object back keeping its key order. A repeated key
// replaces the earlier entry in place.
func (f *FineGrained) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*f = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("fine_grained: expected object, got %v", tok)
	}
	out := FineGrained{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("fine_grained: expected aspect name, got %v", tok)
		}
		var buckets []BucketEntry
		if err := dec.Decode(&buckets); err != nil {
			return fmt.Errorf("fine_grained %s: %w", name, err)
		}
		replaced := false
		for i := range out {
			if out[i].Name == name {
				out[i].Buckets = buckets
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, AspectBuckets{Name: name, Buckets: buckets})
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = out
	return nil
}
