package aspect

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/textutil"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrUnknownAspect  = errors.New("unknown aspect")
)

const (
	SentLen  = "sLen"
	SentALen = "sentALen"
	SentBLen = "sentBLen"
	LenDiff  = "A-B"
	LenSum   = "A+B"
	LenRatio = "A/B"
	Tag      = "tag"
)

// Features are the per-example inputs an aspect function may read.
type Features struct {
	LenA int
	LenB int
	Gold string
}

type Func func(Features) (Value, error)

// Builtins maps aspect names to their extractors. sLen and sentALen are the
// same measure named per task.
var Builtins = map[string]Func{
	SentLen:  func(f Features) (Value, error) { return Number(float64(f.LenA)), nil },
	SentALen: func(f Features) (Value, error) { return Number(float64(f.LenA)), nil },
	SentBLen: func(f Features) (Value, error) { return Number(float64(f.LenB)), nil },
	LenDiff:  func(f Features) (Value, error) { return Number(float64(f.LenA - f.LenB)), nil },
	LenSum:   func(f Features) (Value, error) { return Number(float64(f.LenA + f.LenB)), nil },
	LenRatio: func(f Features) (Value, error) {
		if f.LenB == 0 {
			return Value{}, ErrDivisionByZero
		}
		return Number(float64(f.LenA) / float64(f.LenB)), nil
	},
	Tag: func(f Features) (Value, error) { return Category(f.Gold), nil },
}

// Maps holds the two value maps of one aspect. Position i of Gold and Pred
// always refers to the same example.
type Maps struct {
	Gold ValueMap
	Pred ValueMap
}

// SentenceLookup maps example ids to sanitized display text.
type SentenceLookup struct {
	text map[string]string
}

func (l SentenceLookup) Text(id string) string { return l.text[id] }

func (l SentenceLookup) Len() int { return len(l.text) }

func NewSentenceLookup(task types.Task, examples []types.Example) SentenceLookup {
	text := make(map[string]string, len(examples))
	for _, ex := range examples {
		if task == types.TaskNLI {
			text[ex.ID] = textutil.Sanitize(textutil.Sanitize(ex.TextA) + "|||" + textutil.Sanitize(ex.TextB))
			continue
		}
		text[ex.ID] = textutil.Sanitize(ex.TextA)
	}
	return SentenceLookup{text: text}
}

type Extraction struct {
	Maps   map[string]Maps
	Errors map[string]error
}

// Extract computes the gold- and prediction-keyed value maps for every
// requested aspect. Values in precomputed replace extraction for that aspect
// and must hold one value per example. A failing aspect is reported in
// Errors and left out of Maps.
//
// The tag aspect stores the gold label on both sides. Downstream alignment
// relies on both maps carrying identical values.
func Extract(examples []types.Example, names []string, precomputed map[string][]Value) Extraction {
	out := Extraction{Maps: map[string]Maps{}, Errors: map[string]error{}}

	features := make([]Features, len(examples))
	for i, ex := range examples {
		features[i] = Features{
			LenA: len(textutil.Tokens(ex.TextA)),
			LenB: len(textutil.Tokens(ex.TextB)),
			Gold: ex.Gold,
		}
	}

	for _, name := range names {
		values, err := aspectValues(name, features, precomputed)
		if err != nil {
			out.Errors[name] = err
			continue
		}
		gold := make([]Entry, len(examples))
		pred := make([]Entry, len(examples))
		for i, ex := range examples {
			gold[i] = Entry{Key: CompositeKey(ex.ID, ex.Gold), Value: values[i]}
			pred[i] = Entry{Key: CompositeKey(ex.ID, ex.Predicted), Value: values[i]}
		}
		out.Maps[name] = Maps{Gold: NewValueMap(gold), Pred: NewValueMap(pred)}
	}
	return out
}

func aspectValues(name string, features []Features, precomputed map[string][]Value) ([]Value, error) {
	if pre, ok := precomputed[name]; ok {
		if len(pre) != len(features) {
			return nil, fmt.Errorf("aspect %s: %d precomputed values for %d examples", name, len(pre), len(features))
		}
		return pre, nil
	}
	fn, ok := Builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAspect, name)
	}
	values := make([]Value, len(features))
	for i, f := range features {
		v, err := fn(f)
		if err != nil {
			return nil, fmt.Errorf("aspect %s, example %d: %w", name, i, err)
		}
		values[i] = v
	}
	return values, nil
}

// LoadPrecomputed reads one aspect value per line.
func LoadPrecomputed(path string) ([]Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open precomputed values %s: %w", path, err)
	}
	defer f.Close()
	var out []Value
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, ParseValue(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read precomputed values %s: %w", path, err)
	}
	return out, nil
}
