// Package pipeline runs one analysis end to end: parse predictions, load the
// aspect configuration, analyze, assemble the report, validate and record it.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/analysis"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/config"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/dataset"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/hash"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/report"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/store"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/schema"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

var (
	ErrInvalidRequest  = errors.New("invalid analysis request")
	ErrAspectsFailed   = errors.New("one or more aspects failed")
	ErrSchemaViolation = errors.New("report does not match schema")
)

type Request struct {
	Task types.Task

	// InputPath is read when Input is nil. With Input set, InputPath only
	// names the data for the report.
	InputPath string
	Input     io.Reader

	ConfigPath string
	Dataset    string
	Model      string
	Language   string

	CI    bool
	Cases bool
	ECE   bool

	Bins        int
	Repeats     int
	Seed        uint64
	Parallelism int

	Validate   bool
	SchemaPath string
	Strict     bool
}

type Response struct {
	Report  types.Report
	Result  analysis.Result
	Skipped []dataset.Skipped
	Run     *store.Run
	// Violations lists schema errors when validation was requested.
	Violations []string
}

type Service struct {
	History  *store.History
	Logger   *slog.Logger
	NewRunID func() string
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Analyze runs req. When the report is assembled but a later check fails
// (strict aspect failures, schema violations) the response still carries the
// report alongside the error.
func (s *Service) Analyze(ctx context.Context, req Request) (Response, error) {
	log := s.logger()

	cfg, task, err := resolveConfig(req)
	if err != nil {
		return Response{}, err
	}

	raw, err := readInput(req)
	if err != nil {
		return Response{}, err
	}
	parsed, err := dataset.Parse(bytes.NewReader(raw), task)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for _, sk := range parsed.Skipped {
		log.Debug("skipped input line", "line", sk.Line, "error", sk.Reason)
	}
	if len(parsed.Skipped) > 0 {
		log.Warn("input lines skipped", "count", len(parsed.Skipped))
	}

	specs, failures := cfg.Specs()
	for _, f := range failures {
		log.Warn("aspect configuration rejected", "aspect", f.Aspect, "error", f.Err)
	}

	res, err := analysis.Run(ctx, parsed.Examples, analysis.Options{
		Task:            task,
		Aspects:         specs,
		CI:              req.CI,
		Cases:           req.Cases,
		ECE:             req.ECE,
		Bins:            req.Bins,
		HolisticRepeats: req.Repeats,
		BucketRepeats:   req.Repeats,
		Seed:            req.Seed,
		Parallelism:     req.Parallelism,
		Logger:          log,
	})
	if errors.Is(err, analysis.ErrNoProbabilities) {
		return Response{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err != nil {
		return Response{}, err
	}
	res.Failed = append(failures, res.Failed...)

	runID := uuid.NewString
	if s.NewRunID != nil {
		runID = s.NewRunID
	}
	resp := Response{
		Result:  res,
		Skipped: parsed.Skipped,
		Report: report.Build(res, report.Meta{
			RunID:       runID(),
			Task:        task,
			Dataset:     req.Dataset,
			Model:       req.Model,
			Language:    req.Language,
			InputPath:   req.InputPath,
			InputDigest: hash.Bytes(raw),
			Skipped:     len(parsed.Skipped),
		}),
	}

	if req.Validate {
		violations, err := validateReport(resp.Report, req.SchemaPath)
		if err != nil {
			return resp, err
		}
		if len(violations) > 0 {
			resp.Violations = violations
			return resp, fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(violations, "; "))
		}
	}

	if s.History != nil {
		run, err := s.History.Save(ctx, resp.Report)
		if err != nil {
			return resp, err
		}
		resp.Run = &run
		log.Info("analysis recorded", "run_id", run.ID, "digest", run.ReportDigest)
	}

	if req.Strict && len(res.Failed) > 0 {
		names := make([]string, len(res.Failed))
		for i, f := range res.Failed {
			names[i] = f.Aspect
		}
		return resp, fmt.Errorf("%w: %s", ErrAspectsFailed, strings.Join(names, ", "))
	}
	return resp, nil
}

func resolveConfig(req Request) (config.Config, types.Task, error) {
	var (
		cfg config.Config
		err error
	)
	if req.ConfigPath != "" {
		if cfg, err = config.Load(req.ConfigPath); err != nil {
			return config.Config{}, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	taskName := string(req.Task)
	if taskName == "" {
		taskName = cfg.Task
	}
	if taskName == "" {
		return config.Config{}, "", fmt.Errorf("%w: task is required", ErrInvalidRequest)
	}
	task, err := types.ParseTask(taskName)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if cfg.Task != "" {
		cfgTask, err := types.ParseTask(cfg.Task)
		if err != nil {
			return config.Config{}, "", fmt.Errorf("%w: config: %v", ErrInvalidRequest, err)
		}
		if cfgTask != task {
			return config.Config{}, "", fmt.Errorf("%w: config is for task %s, run is for %s", ErrInvalidRequest, cfgTask, task)
		}
	}

	if req.ConfigPath == "" {
		cfg = config.Default(task)
	}
	return cfg, task, nil
}

func readInput(req Request) ([]byte, error) {
	if req.Input != nil {
		raw, err := io.ReadAll(req.Input)
		if err != nil {
			return nil, fmt.Errorf("read predictions: %w", err)
		}
		return raw, nil
	}
	if req.InputPath == "" {
		return nil, fmt.Errorf("%w: input is required", ErrInvalidRequest)
	}
	raw, err := os.ReadFile(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read predictions %s: %v", ErrInvalidRequest, req.InputPath, err)
	}
	return raw, nil
}

func validateReport(r types.Report, schemaPath string) ([]string, error) {
	if schemaPath != "" {
		return schema.Validate(schemaPath, r)
	}
	return schema.ValidateReport(r)
}
