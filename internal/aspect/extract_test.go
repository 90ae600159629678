package aspect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

func nliExamples() []types.Example {
	return []types.Example{
		{ID: "0", TextA: "a b", TextB: "x y z", Gold: "pos", Predicted: "pos"},
		{ID: "1", TextA: "a b c", TextB: "x", Gold: "pos", Predicted: "neg"},
	}
}

func TestExtractLengthAspects(t *testing.T) {
	ext := Extract(nliExamples(), []string{SentALen, SentBLen, LenDiff, LenSum, LenRatio}, nil)
	if len(ext.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", ext.Errors)
	}
	want := map[string][]float64{
		SentALen: {2, 3},
		SentBLen: {3, 1},
		LenDiff:  {-1, 2},
		LenSum:   {5, 4},
		LenRatio: {2.0 / 3.0, 3},
	}
	for name, vals := range want {
		m := ext.Maps[name]
		if m.Gold.Len() != 2 || m.Pred.Len() != 2 {
			t.Fatalf("%s: unexpected map sizes", name)
		}
		for i, v := range vals {
			if got := m.Gold.At(i).Value.Num; got != v {
				t.Errorf("%s[%d] gold = %v, want %v", name, i, got, v)
			}
			if got := m.Pred.At(i).Value.Num; got != v {
				t.Errorf("%s[%d] pred = %v, want %v", name, i, got, v)
			}
		}
	}
}

func TestExtractCompositeKeysFollowLabels(t *testing.T) {
	m := Extract(nliExamples(), []string{LenDiff}, nil).Maps[LenDiff]
	if m.Gold.At(1).Key != "1|||pos" || m.Pred.At(1).Key != "1|||neg" {
		t.Fatalf("unexpected keys: %q %q", m.Gold.At(1).Key, m.Pred.At(1).Key)
	}
	id, label, ok := SplitKey(m.Pred.At(1).Key)
	if !ok || id != "1" || label != "neg" {
		t.Fatalf("SplitKey returned %q %q %v", id, label, ok)
	}
}

// The prediction-side tag map carries the gold label, not the predicted one.
func TestExtractTagUsesGoldOnBothSides(t *testing.T) {
	m := Extract(nliExamples(), []string{Tag}, nil).Maps[Tag]
	pred := m.Pred.At(1)
	if pred.Key != "1|||neg" {
		t.Fatalf("unexpected pred key %q", pred.Key)
	}
	if !pred.Value.Categorical || pred.Value.Str != "pos" {
		t.Fatalf("pred tag value = %+v, want gold label pos", pred.Value)
	}
	if !m.Gold.Categorical() {
		t.Fatal("tag map should be categorical")
	}
	if _, ok := m.Gold.Mean(); ok {
		t.Fatal("categorical map must not report a mean")
	}
}

func TestExtractRatioDivisionByZero(t *testing.T) {
	examples := []types.Example{{ID: "0", TextA: "a", TextB: "", Gold: "x", Predicted: "x"}}
	ext := Extract(examples, []string{LenRatio, SentALen}, nil)
	if !errors.Is(ext.Errors[LenRatio], ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", ext.Errors[LenRatio])
	}
	if _, ok := ext.Maps[LenRatio]; ok {
		t.Fatal("failed aspect must not produce maps")
	}
	if _, ok := ext.Maps[SentALen]; !ok {
		t.Fatal("other aspects must still be extracted")
	}
}

func TestExtractUnknownAspect(t *testing.T) {
	ext := Extract(nliExamples(), []string{"bleu"}, nil)
	if !errors.Is(ext.Errors["bleu"], ErrUnknownAspect) {
		t.Fatalf("expected unknown aspect error, got %v", ext.Errors["bleu"])
	}
}

func TestExtractPrecomputed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bleu.txt")
	if err := os.WriteFile(path, []byte("0.25\n0.75\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	vals, err := LoadPrecomputed(path)
	if err != nil {
		t.Fatal(err)
	}
	ext := Extract(nliExamples(), []string{"bleu"}, map[string][]Value{"bleu": vals})
	m, ok := ext.Maps["bleu"]
	if !ok {
		t.Fatalf("expected bleu maps, errors: %v", ext.Errors)
	}
	mean, ok := m.Gold.Mean()
	if !ok || mean != 0.5 {
		t.Fatalf("mean = %v %v", mean, ok)
	}

	short := Extract(nliExamples(), []string{"bleu"}, map[string][]Value{"bleu": vals[:1]})
	if short.Errors["bleu"] == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestSentenceLookup(t *testing.T) {
	nli := NewSentenceLookup(types.TaskNLI, []types.Example{{ID: "0", TextA: "a: b", TextB: `"c"`}})
	if got := nli.Text("0"); got != "a  b|||c" {
		t.Fatalf("nli text = %q", got)
	}
	tc := NewSentenceLookup(types.TaskClassification, []types.Example{{ID: "3", TextA: "{hi}"}})
	if got := tc.Text("3"); got != "hi" || tc.Len() != 1 {
		t.Fatalf("tc text = %q", got)
	}
}

func TestParseValue(t *testing.T) {
	if v := ParseValue(" 1.5 "); v.Categorical || v.Num != 1.5 {
		t.Fatalf("unexpected %+v", v)
	}
	if v := ParseValue("PER"); !v.Categorical || v.String() != "PER" {
		t.Fatalf("unexpected %+v", v)
	}
}
