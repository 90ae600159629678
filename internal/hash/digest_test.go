package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestBytesKnownContent(t *testing.T) {
	content := []byte("a b\tpos\tpos\n")
	sum := sha256.Sum256(content)
	want := "sha256:" + hex.EncodeToString(sum[:])
	if got := Bytes(content); got != want {
		t.Fatalf("digest = %q, want %q", got, want)
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	got, err := CanonicalJSON(map[string]any{"b": 1.5, "a": []any{"x<y", 2}, "c": map[string]any{"z": true, "y": nil}})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a":["x<y",2],"b":1.5,"c":{"y":null,"z":true}}`
	if string(got) != want {
		t.Fatalf("canonical = %s, want %s", got, want)
	}
}

func TestHashCanonicalJSONStableAcrossFieldOrder(t *testing.T) {
	type first struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	type second struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	d1, _, err := HashCanonicalJSON(first{A: 1, B: 2})
	if err != nil {
		t.Fatal(err)
	}
	d2, _, err := HashCanonicalJSON(second{A: 1, B: 2})
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatalf("digests differ: %s vs %s", d1, d2)
	}
}

func TestCanonicalJSONRejectsUnsupported(t *testing.T) {
	if _, err := CanonicalJSON(map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("expected marshal error")
	}
}
