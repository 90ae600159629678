package types

import "fmt"

type Task string

const (
	TaskClassification Task = "tc"
	TaskNLI            Task = "nli"
)

func ParseTask(s string) (Task, error) {
	switch Task(s) {
	case TaskClassification, TaskNLI:
		return Task(s), nil
	case "text-classification", "classification":
		return TaskClassification, nil
	default:
		return "", fmt.Errorf("unsupported task %q (want tc|nli)", s)
	}
}

// Example is one parsed prediction record. ID is the ordinal position of the
// record among the accepted lines, stringified.
type Example struct {
	ID          string
	TextA       string
	TextB       string
	Gold        string
	Predicted   string
	Probability float64
	HasProb     bool
	Correct     int
	HasCorrect  bool
}

// IsCorrect reports the correctness flag when the input carried one and
// otherwise compares the labels.
func (e Example) IsCorrect() bool {
	if e.HasCorrect {
		return e.Correct == 1
	}
	return e.Gold == e.Predicted
}
