package analysis

import (
	"math/rand/v2"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/dataset"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/textutil"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

type Holistic struct {
	Accuracy   float64
	Total      int
	Correct    int
	Low, High  float64
	ErrorCases []string
}

func holistic(task types.Task, examples []types.Example, opts Options, rng *rand.Rand) Holistic {
	gold, pred := dataset.Columns(examples)
	h := Holistic{Accuracy: Accuracy(pred, gold), Total: len(examples)}
	for _, ex := range examples {
		if ex.Gold == ex.Predicted {
			h.Correct++
			continue
		}
		if opts.Cases {
			h.ErrorCases = append(h.ErrorCases, errorCase(task, ex))
		}
	}
	if opts.CI {
		h.Low, h.High = ConfidenceInterval(pred, gold, opts.HolisticRepeats, rng)
	}
	return h
}

func errorCase(task types.Task, ex types.Example) string {
	s := ex.Gold + "|||" + ex.Predicted + "|||" + textutil.Sanitize(ex.TextA)
	if task == types.TaskNLI {
		s += "|||" + textutil.Sanitize(ex.TextB)
	}
	return s
}
