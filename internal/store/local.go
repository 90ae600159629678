package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/report"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

// SaveLocal writes r as report_<run id>.json under dir.
func SaveLocal(r types.Report, dir string) (string, error) {
	if r.RunID == "" {
		return "", fmt.Errorf("report has no run id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("report_%s.json", r.RunID))
	if err := report.WriteJSON(dst, r); err != nil {
		return "", err
	}
	return dst, nil
}
