package isample

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/exascience/pargo/parallel"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"atsnp/internal/model"
	"atsnp/internal/motif"
)

const DefaultSamples = 10000

// ctxCheckEvery is how many draws run between context checks.
const ctxCheckEvery = 256

// Problem is one batch of variants scored against a single motif.
type Problem struct {
	PWM        model.Matrix
	Weights    model.Matrix
	Background model.Background
	Scores     []model.ScorePair
	// P is the upper percentile of absolute score differences used as the
	// mean of the sampling distribution.
	P float64
}

type Options struct {
	Samples int
	Seed    int64
	// Workers bounds how many streams run at once.
	Workers int
	// Streams fixes how the draws are partitioned. Each stream owns an RNG
	// seeded with Seed+stream, so results depend on (Seed, Streams) only.
	Streams int
	Solver  ThetaSolver
	Scorer  motif.Scorer
	Logger  logrus.FieldLogger
}

type Result struct {
	PValues     []float64
	Diagnostics model.Diagnostics
}

type Estimator struct {
	opts Options
}

func NewEstimator(opts Options) *Estimator {
	if opts.Samples <= 0 {
		opts.Samples = DefaultSamples
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Streams <= 0 {
		opts.Streams = opts.Workers
	}
	if opts.Streams > opts.Samples {
		opts.Streams = opts.Samples
	}
	opts.Solver = opts.Solver.withDefaults()
	if opts.Scorer == nil {
		opts.Scorer = motif.LogLikelihood{}
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return &Estimator{opts: opts}
}

func (e *Estimator) Options() Options {
	return e.opts
}

// EstimateDiffPValues runs a single stream of DefaultSamples draws on rng.
func EstimateDiffPValues(ctx context.Context, pwm, weights model.Matrix, bg model.Background, scores []model.ScorePair, p float64, rng Source) ([]float64, error) {
	est := NewEstimator(Options{})
	prep, err := est.prepare(Problem{PWM: pwm, Weights: weights, Background: bg, Scores: scores, P: p})
	if err != nil {
		return nil, err
	}
	acc, err := est.runStream(ctx, prep, rng, est.opts.Samples)
	if err != nil {
		return nil, err
	}
	pValues := acc.pValues(est.opts.Samples)
	if err := checkFinite(prep.diag, pValues); err != nil {
		return nil, err
	}
	return pValues, nil
}

// prepared holds everything the draws share. It is read-only once built.
type prepared struct {
	problem   Problem
	evaluator Evaluator
	table     *TiltTable
	normConst float64
	diag      model.Diagnostics
}

func (e *Estimator) prepare(prob Problem) (*prepared, error) {
	if err := model.CheckShapes(prob.PWM, prob.Weights); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	log := e.opts.Logger

	percentile, err := FindPercentile(prob.Scores, prob.P)
	if err != nil {
		return nil, err
	}
	log.WithField("percentile", percentile).Debug("score difference percentile")

	weights := prob.Weights.Floored()
	theta, steps, err := e.opts.Solver.Solve(weights, prob.Background, percentile)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"theta": theta, "steps": steps}).Debug("tilting parameter")

	table := BuildTiltTable(weights, prob.Background.Transition, theta)
	normConst := table.NormalizingConstant(prob.Background.Stationary)
	log.WithField("norm_const", normConst).Debug("normalizing constant")

	return &prepared{
		problem: prob,
		evaluator: Evaluator{
			PWM:     prob.PWM.Floored(),
			Weights: weights,
			Scorer:  e.opts.Scorer,
		},
		table:     table,
		normConst: normConst,
		diag: model.Diagnostics{
			Percentile: percentile,
			Theta:      theta,
			ThetaSteps: steps,
			NormConst:  normConst,
		},
	}, nil
}

// Estimate computes one p-value per score pair.
func (e *Estimator) Estimate(ctx context.Context, prob Problem) (Result, error) {
	prep, err := e.prepare(prob)
	if err != nil {
		return Result{}, err
	}

	streams := e.opts.Streams
	partials := make([]*accumulator, streams)
	errs := make([]error, streams)
	batches := e.opts.Workers
	if batches > streams {
		batches = streams
	}
	parallel.Range(0, streams, batches, func(low, high int) {
		for s := low; s < high; s++ {
			rng := rand.New(rand.NewSource(e.opts.Seed + int64(s)))
			partials[s], errs[s] = e.runStream(ctx, prep, rng, streamDraws(e.opts.Samples, streams, s))
		}
	})
	for s, err := range errs {
		if err != nil {
			return Result{}, fmt.Errorf("stream %d: %w", s, err)
		}
	}

	total := newAccumulator(len(prob.Scores))
	for _, part := range partials {
		total.merge(part)
	}

	n := e.opts.Samples
	diag := prep.diag
	diag.MeanWeight = streamMean(partials, 1, func(a *accumulator) float64 { return a.weightSum })
	diag.MeanDiff = streamMean(partials, Substitutions, func(a *accumulator) float64 { return a.diffSum })
	diag.MeanAdjustment = streamMean(partials, 1, func(a *accumulator) float64 { return a.adjSum })
	diag.MeanScore = streamMean(partials, 1, func(a *accumulator) float64 { return a.scoreSum })
	pValues := total.pValues(n)
	if err := checkFinite(diag, pValues); err != nil {
		return Result{}, err
	}
	e.opts.Logger.WithFields(logrus.Fields{
		"mean_weight":     diag.MeanWeight,
		"mean_diff":       diag.MeanDiff,
		"mean_adjustment": diag.MeanAdjustment,
		"samples":         n,
		"streams":         streams,
	}).Info("importance sampling finished")

	return Result{PValues: pValues, Diagnostics: diag}, nil
}

// streamMean combines per-stream means weighted by their draw counts. per is
// the number of values each draw contributes to sum.
func streamMean(partials []*accumulator, per int, sum func(*accumulator) float64) float64 {
	means := make([]float64, len(partials))
	draws := make([]float64, len(partials))
	for i, part := range partials {
		draws[i] = float64(part.draws)
		if part.draws > 0 {
			means[i] = sum(part) / float64(per*part.draws)
		}
	}
	return stat.Mean(means, draws)
}

// importanceWeight is normConst / exp(theta*adj), evaluated in log space so a
// tiny normalizing constant does not meet an underflowed denominator.
func importanceWeight(logNormConst, theta, adj float64) float64 {
	return math.Exp(logNormConst - theta*adj)
}

func checkFinite(diag model.Diagnostics, pValues []float64) error {
	for _, v := range []float64{diag.NormConst, diag.MeanWeight, diag.MeanDiff, diag.MeanAdjustment, diag.MeanScore} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: importance weights overflowed at theta=%g", ErrNonFinite, diag.Theta)
		}
	}
	for i, p := range pValues {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: p-value %d is %g at theta=%g", ErrNonFinite, i, p, diag.Theta)
		}
	}
	return nil
}

func streamDraws(total, streams, s int) int {
	n := total / streams
	if s < total%streams {
		n++
	}
	return n
}

func (e *Estimator) runStream(ctx context.Context, prep *prepared, rng Source, draws int) (*accumulator, error) {
	scores := prep.problem.Scores
	acc := newAccumulator(len(scores))
	sampler := NewSampler(prep.table, prep.problem.Background)
	theta := prep.diag.Theta
	logNormConst := math.Log(prep.normConst)

	for i := 0; i < draws; i++ {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		sample := sampler.Draw(rng)
		ev, err := prep.evaluator.Evaluate(sample)
		if err != nil {
			return nil, err
		}
		w := importanceWeight(logNormConst, theta, ev.Adjustment)
		acc.weightSum += w
		acc.adjSum += ev.Adjustment
		acc.scoreSum += ev.Score
		for _, d := range ev.Diffs {
			acc.diffSum += d
		}
		for row, pair := range scores {
			for _, d := range ev.Diffs {
				if d >= pair[1]-pair[0] && d >= pair[0]-pair[1] {
					acc.hits[row] += w
				}
			}
		}
	}
	acc.draws = draws
	return acc, nil
}

type accumulator struct {
	draws     int
	hits      []float64
	weightSum float64
	diffSum   float64
	adjSum    float64
	scoreSum  float64
}

func newAccumulator(rows int) *accumulator {
	return &accumulator{hits: make([]float64, rows)}
}

func (a *accumulator) merge(o *accumulator) {
	for i := range a.hits {
		a.hits[i] += o.hits[i]
	}
	a.weightSum += o.weightSum
	a.diffSum += o.diffSum
	a.adjSum += o.adjSum
	a.scoreSum += o.scoreSum
	a.draws += o.draws
}

// pValues divides by 3n: every draw contributes one comparison per
// substitution.
func (a *accumulator) pValues(n int) []float64 {
	out := make([]float64, len(a.hits))
	for i, h := range a.hits {
		out[i] = h / float64(Substitutions*n)
	}
	return out
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
