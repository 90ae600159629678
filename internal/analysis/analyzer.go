package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/aspect"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/bucket"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/calibration"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

var ErrNoProbabilities = errors.New("calibration requested but no example carries a probability")

// CalibrationName reports a calibration failure among the failed aspects.
const CalibrationName = "calibration"

// AspectSpec is one configured aspect: what to measure and how to bucket it.
type AspectSpec struct {
	Name        string
	Strategy    bucket.Strategy
	Precomputed []aspect.Value
}

type Options struct {
	Task    types.Task
	Aspects []AspectSpec

	CI    bool
	Cases bool
	ECE   bool

	Bins            int
	HolisticRepeats int
	BucketRepeats   int
	Seed            uint64
	Parallelism     int

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Bins == 0 {
		o.Bins = calibration.DefaultBins
	}
	if o.HolisticRepeats == 0 {
		o.HolisticRepeats = DefaultRepeats
	}
	if o.BucketRepeats == 0 {
		o.BucketRepeats = DefaultRepeats
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 4
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// AspectError attributes a failure to the aspect it aborted.
type AspectError struct {
	Aspect string
	Err    error
}

func (e *AspectError) Error() string { return fmt.Sprintf("aspect %s: %v", e.Aspect, e.Err) }

func (e *AspectError) Unwrap() error { return e.Err }

type AspectResult struct {
	Name    string
	Buckets []BucketResult
	Bias    float64
	HasBias bool
	Dropped []string
}

type Result struct {
	Holistic    Holistic
	Aspects     []AspectResult
	Failed      []*AspectError
	Calibration *calibration.Result
}

// Run performs the whole analysis over examples. Aspect-local failures, and a
// calibration that cannot be computed, are collected in Result.Failed and the
// rest is still reported; a broken alignment invariant aborts the run.
func Run(ctx context.Context, examples []types.Example, opts Options) (Result, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("task", string(opts.Task))

	res := Result{Holistic: holistic(opts.Task, examples, opts, newRand(opts.Seed, 0))}
	log.Info("holistic accuracy computed", "examples", len(examples), "accuracy", res.Holistic.Accuracy)

	names := make([]string, len(opts.Aspects))
	precomputed := map[string][]aspect.Value{}
	for i, a := range opts.Aspects {
		names[i] = a.Name
		if a.Precomputed != nil {
			precomputed[a.Name] = a.Precomputed
		}
	}
	extraction := aspect.Extract(examples, names, precomputed)
	lookup := aspect.NewSentenceLookup(opts.Task, examples)

	results := make([]*AspectResult, len(opts.Aspects))
	failures := make([]*AspectError, len(opts.Aspects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, spec := range opts.Aspects {
		if err := extraction.Errors[spec.Name]; err != nil {
			failures[i] = &AspectError{Aspect: spec.Name, Err: err}
			continue
		}
		maps := extraction.Maps[spec.Name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ar, err := analyzeAspect(spec, maps, lookup, opts, newRand(opts.Seed, i+1))
			if errors.Is(err, ErrMissingBucketAlignment) {
				return &AspectError{Aspect: spec.Name, Err: err}
			}
			if err != nil {
				failures[i] = &AspectError{Aspect: spec.Name, Err: err}
				return nil
			}
			results[i] = ar
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	for i := range opts.Aspects {
		if f := failures[i]; f != nil {
			log.Warn("aspect skipped", "aspect", f.Aspect, "error", f.Err)
			res.Failed = append(res.Failed, f)
			continue
		}
		ar := results[i]
		if len(ar.Dropped) > 0 {
			log.Warn("prediction-side examples fit no gold bucket", "aspect", ar.Name, "dropped", len(ar.Dropped))
		}
		log.Debug("aspect analyzed", "aspect", ar.Name, "buckets", len(ar.Buckets))
		res.Aspects = append(res.Aspects, *ar)
	}

	if opts.ECE {
		cal, err := calibrate(examples, opts.Bins)
		switch {
		case errors.Is(err, ErrNoProbabilities):
			return Result{}, err
		case err != nil:
			log.Warn("calibration skipped", "error", err)
			res.Failed = append(res.Failed, &AspectError{Aspect: CalibrationName, Err: err})
		default:
			log.Info("calibration computed", "ece", cal.ECE)
			res.Calibration = &cal
		}
	}
	return res, nil
}

func analyzeAspect(spec AspectSpec, maps aspect.Maps, lookup aspect.SentenceLookup, opts Options, rng *rand.Rand) (*AspectResult, error) {
	gold, err := bucket.Apply(spec.Strategy, maps.Gold)
	if err != nil {
		return nil, err
	}
	pred, dropped := bucket.Align(maps.Pred, gold.Keys())
	buckets, err := aggregateBuckets(gold, pred, lookup, aggregateOptions{ci: opts.CI, cases: opts.Cases, repeats: opts.BucketRepeats}, rng)
	if err != nil {
		return nil, err
	}
	ar := &AspectResult{Name: spec.Name, Buckets: buckets, Dropped: dropped}
	ar.Bias, ar.HasBias = maps.Gold.Mean()
	return ar, nil
}

func calibrate(examples []types.Example, bins int) (calibration.Result, error) {
	pairs := make([]calibration.Pair, 0, len(examples))
	for _, ex := range examples {
		if ex.HasProb {
			pairs = append(pairs, calibration.Pair{Probability: ex.Probability, Correct: ex.IsCorrect()})
		}
	}
	if len(pairs) == 0 {
		return calibration.Result{}, ErrNoProbabilities
	}
	return calibration.Compute(pairs, bins)
}
