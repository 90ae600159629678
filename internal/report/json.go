package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

func MarshalJSON(r types.Report) ([]byte, error) {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return append(raw, '\n'), nil
}

func WriteJSON(path string, r types.Report) error {
	raw, err := MarshalJSON(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func ReadJSON(path string) (types.Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.Report{}, err
	}
	var r types.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return types.Report{}, fmt.Errorf("parse report %s: %w", path, err)
	}
	return r, nil
}
