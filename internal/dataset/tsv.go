package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

var ErrMalformedRecord = errors.New("malformed record")

type Skipped struct {
	Line   int
	Reason error
}

type Result struct {
	Examples []types.Example
	Skipped  []Skipped
}

type layout struct {
	minFields  int
	textCols   []int
	goldCol    int
	predCol    int
	probCol    int
	correctCol int
}

func layoutFor(task types.Task) (layout, error) {
	switch task {
	case types.TaskClassification:
		return layout{minFields: 3, textCols: []int{0}, goldCol: 1, predCol: 2, probCol: 3, correctCol: 4}, nil
	case types.TaskNLI:
		return layout{minFields: 4, textCols: []int{0, 1}, goldCol: 2, predCol: 3, probCol: 4, correctCol: 5}, nil
	default:
		return layout{}, fmt.Errorf("unsupported task %q", task)
	}
}

func ReadFile(path string, task types.Task) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open predictions %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f, task)
}

// Parse reads tab-separated prediction lines. Lines that do not carry the
// task's minimum number of fields, or whose optional numeric columns do not
// parse, are skipped and reported in Result.Skipped.
func Parse(r io.Reader, task types.Task) (Result, error) {
	lay, err := layoutFor(task)
	if err != nil {
		return Result{}, err
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	res := Result{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		fields := strings.Split(line, "\t")
		if len(fields) < lay.minFields {
			res.Skipped = append(res.Skipped, Skipped{Line: lineNo, Reason: fmt.Errorf("%w: %d fields, need %d", ErrMalformedRecord, len(fields), lay.minFields)})
			continue
		}
		ex, err := lay.example(fields)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Line: lineNo, Reason: err})
			continue
		}
		ex.ID = strconv.Itoa(len(res.Examples))
		res.Examples = append(res.Examples, ex)
	}
	if err := sc.Err(); err != nil {
		return Result{}, fmt.Errorf("read predictions: %w", err)
	}
	return res, nil
}

func (l layout) example(fields []string) (types.Example, error) {
	ex := types.Example{
		TextA:     fields[l.textCols[0]],
		Gold:      fields[l.goldCol],
		Predicted: fields[l.predCol],
	}
	if len(l.textCols) > 1 {
		ex.TextB = fields[l.textCols[1]]
	}
	if len(fields) > l.probCol && strings.TrimSpace(fields[l.probCol]) != "" {
		p, err := strconv.ParseFloat(strings.TrimSpace(fields[l.probCol]), 64)
		if err != nil || math.IsNaN(p) || p < 0 || p > 1 {
			return types.Example{}, fmt.Errorf("%w: probability %q", ErrMalformedRecord, fields[l.probCol])
		}
		ex.Probability, ex.HasProb = p, true
	}
	if len(fields) > l.correctCol && strings.TrimSpace(fields[l.correctCol]) != "" {
		c, err := strconv.Atoi(strings.TrimSpace(fields[l.correctCol]))
		if err != nil || (c != 0 && c != 1) {
			return types.Example{}, fmt.Errorf("%w: correctness flag %q", ErrMalformedRecord, fields[l.correctCol])
		}
		ex.Correct, ex.HasCorrect = c, true
	}
	return ex, nil
}

// Columns splits examples into the parallel slices the analysis consumes.
func Columns(examples []types.Example) (gold, pred []string) {
	gold = make([]string, len(examples))
	pred = make([]string, len(examples))
	for i, ex := range examples {
		gold[i] = ex.Gold
		pred[i] = ex.Predicted
	}
	return gold, pred
}
