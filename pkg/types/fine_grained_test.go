package types

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestFineGrainedKeepsConfigurationOrder(t *testing.T) {
	f := FineGrained{
		{Name: "tag", Buckets: []BucketEntry{{BucketName: "pos", BucketValue: "1", Num: 1, BucketErrorCase: []string{}}}},
		{Name: "sLen", Buckets: []BucketEntry{{BucketName: "(1,4)", BucketValue: "0.5", Num: 2, BucketErrorCase: []string{}}}},
		{Name: "A-B"},
	}
	raw, err := json.Marshal(Results{FineGrained: f})
	if err != nil {
		t.Fatal(err)
	}
	s := string(raw)
	tag, sLen, diff := strings.Index(s, `"tag"`), strings.Index(s, `"sLen"`), strings.Index(s, `"A-B":[]`)
	if tag < 0 || sLen < 0 || diff < 0 || !(tag < sLen && sLen < diff) {
		t.Fatalf("keys out of order: %s", s)
	}

	var back Results
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if got := back.FineGrained.Names(); !reflect.DeepEqual(got, []string{"tag", "sLen", "A-B"}) {
		t.Fatalf("names after decode = %v", got)
	}
	if b, ok := back.FineGrained.Get("sLen"); !ok || b[0].Num != 2 {
		t.Fatalf("sLen after decode = %+v", b)
	}
}

func TestFineGrainedEmpty(t *testing.T) {
	raw, err := json.Marshal(Results{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"fine_grained":{}`) {
		t.Fatalf("empty results should encode an object: %s", raw)
	}
	var f FineGrained
	if err := json.Unmarshal([]byte(`["x"]`), &f); err == nil {
		t.Fatal("expected error for non-object input")
	}
	if _, ok := f.Get("x"); ok {
		t.Fatal("empty value must not resolve names")
	}
}
