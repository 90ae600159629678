package textutil

import (
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a b", []string{"a", "b"}},
		{"  spaced   out ", []string{"spaced", "out"}},
		{"Hello, world!", []string{"Hello", ",", "world", "!"}},
		{"don't stop", []string{"don't", "stop"}},
		{"3.5 stars", []string{"3", ".", "5", "stars"}},
		{"", nil},
	}
	for _, tc := range cases {
		got := Tokens(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Tokens(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestWordSegmentJoinsWithSpaces(t *testing.T) {
	if got := WordSegment("x y z."); got != "x y z ." {
		t.Fatalf("unexpected segmentation %q", got)
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize(`say: "hi" {a/b}\ it's`)
	want := "say  hi ab its"
	if got != want {
		t.Fatalf("Sanitize = %q, want %q", got, want)
	}
}
