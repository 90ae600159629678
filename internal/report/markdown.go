package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

func BuildMarkdown(r types.Report) string {
	var b strings.Builder
	b.WriteString("# Fine-Grained Error Analysis Report\n\n")
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("- Run: `%s`\n", r.RunID))
	}
	b.WriteString(fmt.Sprintf("- Task: `%s`\n", r.Task))
	b.WriteString(fmt.Sprintf("- Dataset: `%s` (%s)\n", r.Data.Name, r.Data.Language))
	b.WriteString(fmt.Sprintf("- Model: `%s`\n", r.Model.Name))
	b.WriteString(fmt.Sprintf("- Examples: `%d` (skipped lines: `%d`)\n\n", r.Data.Examples, r.Data.Skipped))

	o := r.Model.Results.Overall
	b.WriteString("## Overall\n\n")
	b.WriteString(fmt.Sprintf("- Accuracy: **%s**\n", o.Performance))
	b.WriteString(fmt.Sprintf("- Confidence Interval: `[%s, %s]`\n", o.ConfidenceLow, o.ConfidenceUp))
	b.WriteString(fmt.Sprintf("- Error Cases: `%d`\n", len(o.ErrorCase)))

	if len(r.Data.Bias) > 0 {
		b.WriteString("\n## Dataset Bias\n\n")
		b.WriteString("| Aspect | Mean |\n")
		b.WriteString("|---|---:|\n")
		for _, name := range sortedKeys(r.Data.Bias) {
			b.WriteString(fmt.Sprintf("| %s | %s |\n", escape(name), Sig(r.Data.Bias[name], 4)))
		}
	}

	if len(r.Model.Results.FineGrained) > 0 {
		b.WriteString("\n## Fine-Grained Results\n")
		for _, a := range r.Model.Results.FineGrained {
			b.WriteString(fmt.Sprintf("\n### %s\n\n", a.Name))
			b.WriteString("| Bucket | Accuracy | Samples | CI Low | CI Up | Errors |\n")
			b.WriteString("|---|---:|---:|---:|---:|---:|\n")
			for _, e := range a.Buckets {
				b.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s | %d |\n",
					escape(e.BucketName), e.BucketValue, e.Num, e.ConfidenceLow, e.ConfidenceUp, len(e.BucketErrorCase)))
			}
		}
	}

	if cal := r.Model.Results.Calibration; cal != nil {
		b.WriteString("\n## Calibration\n\n")
		b.WriteString(fmt.Sprintf("- ECE: **%s**\n\n", Sig(cal.ECE, 4)))
		b.WriteString("| Interval | Avg Accuracy | Avg Confidence | Samples |\n")
		b.WriteString("|---|---:|---:|---:|\n")
		for _, d := range cal.Details {
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %d |\n", d.Interval, Sig(d.AverageAccuracy, 4), Sig(d.AverageConf, 4), d.Samples))
		}
	}

	if failed := r.Model.Results.FailedAspect; len(failed) > 0 {
		b.WriteString("\n## Failed Aspects\n\n")
		for _, name := range sortedKeys(failed) {
			b.WriteString("- " + name + ": " + failed[name] + "\n")
		}
	}
	return b.String()
}

func WriteMarkdown(path string, r types.Report) error {
	return os.WriteFile(path, []byte(BuildMarkdown(r)), 0o644)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
