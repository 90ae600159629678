package report

import (
	"path/filepath"
	"strconv"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/analysis"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

const DefaultLanguage = "English"

// Meta carries the run facts that do not come out of the analysis itself.
type Meta struct {
	RunID       string
	Task        types.Task
	Dataset     string
	Model       string
	Language    string
	InputPath   string
	InputDigest string
	Skipped     int
}

// Sig formats f with n significant digits the way the visualization layer
// expects ("0.5", "0.667", "1.23e+04").
func Sig(f float64, n int) string {
	return strconv.FormatFloat(f, 'g', n, 64)
}

// Build assembles the report document from an analysis result.
func Build(res analysis.Result, meta Meta) types.Report {
	lang := meta.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	r := types.Report{
		RunID: meta.RunID,
		Task:  meta.Task,
		Data: types.DataInfo{
			Name:        meta.Dataset,
			Language:    lang,
			Bias:        map[string]float64{},
			Output:      meta.Model + "/" + filepath.Base(meta.InputPath),
			InputDigest: meta.InputDigest,
			Examples:    res.Holistic.Total,
			Skipped:     meta.Skipped,
		},
		Model: types.ModelInfo{Name: meta.Model},
	}

	errorCases := res.Holistic.ErrorCases
	if errorCases == nil {
		errorCases = []string{}
	}
	r.Model.Results.Overall = types.Overall{
		Performance:   Sig(res.Holistic.Accuracy, 3),
		ConfidenceLow: Sig(res.Holistic.Low, 4),
		ConfidenceUp:  Sig(res.Holistic.High, 4),
		ErrorCase:     errorCases,
	}

	r.Model.Results.FineGrained = make(types.FineGrained, 0, len(res.Aspects))
	for _, a := range res.Aspects {
		if a.HasBias {
			r.Data.Bias[a.Name] = a.Bias
		}
		entries := make([]types.BucketEntry, 0, len(a.Buckets))
		for _, b := range a.Buckets {
			cases := b.ErrorCases
			if cases == nil {
				cases = []string{}
			}
			entries = append(entries, types.BucketEntry{
				BucketName:      b.Key.Name(),
				BucketValue:     Sig(b.Accuracy, 4),
				Num:             b.Count,
				ConfidenceLow:   Sig(b.Low, 4),
				ConfidenceUp:    Sig(b.High, 4),
				BucketErrorCase: cases,
			})
		}
		r.Model.Results.FineGrained = append(r.Model.Results.FineGrained, types.AspectBuckets{Name: a.Name, Buckets: entries})
	}

	if len(res.Failed) > 0 {
		r.Model.Results.FailedAspect = make(map[string]string, len(res.Failed))
		for _, f := range res.Failed {
			r.Model.Results.FailedAspect[f.Aspect] = f.Err.Error()
		}
	}

	if res.Calibration != nil {
		cal := &types.Calibration{ECE: res.Calibration.ECE, Details: make([]types.CalibBin, 0, len(res.Calibration.Bins))}
		for _, b := range res.Calibration.Bins {
			cal.Details = append(cal.Details, types.CalibBin{
				Interval:        b.Interval(),
				AverageAccuracy: b.AverageAccuracy,
				AverageConf:     b.AverageConfidence,
				Samples:         b.Count,
			})
		}
		r.Model.Results.Calibration = cal
	}
	return r
}
