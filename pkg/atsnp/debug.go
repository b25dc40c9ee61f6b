package atsnp

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"atsnp/internal/isample"
	"atsnp/internal/motif"
)

// The helpers below expose single stages of the estimator for inspection.
// Weight matrices are floored exactly as Run floors them.

func Percentile(scores mat.Matrix, p float64) (float64, error) {
	pairs, err := toScorePairs(scores)
	if err != nil {
		return 0, err
	}
	return isample.FindPercentile(pairs, p)
}

type ThetaResult struct {
	Theta float64
	Steps int
}

func Theta(weights mat.Matrix, stationary mat.Vector, transition mat.Matrix, target float64) (ThetaResult, error) {
	w, err := toMatrix("weight matrix", weights)
	if err != nil {
		return ThetaResult{}, err
	}
	bg, err := toBackground(stationary, transition)
	if err != nil {
		return ThetaResult{}, err
	}
	theta, steps, err := isample.DefaultThetaSolver().Solve(w.Floored(), bg, target)
	if err != nil {
		return ThetaResult{Steps: steps}, err
	}
	return ThetaResult{Theta: theta, Steps: steps}, nil
}

// Cumulant returns E[W^theta] at the variant site, averaged over the motif
// start offsets.
func Cumulant(weights mat.Matrix, stationary mat.Vector, transition mat.Matrix, theta float64) (float64, error) {
	w, err := toMatrix("weight matrix", weights)
	if err != nil {
		return 0, err
	}
	if w.Len() == 0 {
		return 0, fmt.Errorf("%w: empty weight matrix", ErrInvalidInput)
	}
	bg, err := toBackground(stationary, transition)
	if err != nil {
		return 0, err
	}
	return isample.EvaluateCumulant(w.Floored(), bg, theta), nil
}

type SampleRequest struct {
	Weights    mat.Matrix
	Stationary mat.Vector
	Transition mat.Matrix
	Theta      float64
	Seed       int64
	Count      int
}

type SampleItem struct {
	Sequence string
	Start    int
}

type SampleResult struct {
	NormConst         float64
	StartDistribution []float64
	Samples           []SampleItem
}

// Sample draws sequences from the tilted distribution.
func Sample(req SampleRequest) (SampleResult, error) {
	if req.Count <= 0 {
		return SampleResult{}, errors.New("sample count must be > 0")
	}
	w, err := toMatrix("weight matrix", req.Weights)
	if err != nil {
		return SampleResult{}, err
	}
	if w.Len() == 0 {
		return SampleResult{}, fmt.Errorf("%w: empty weight matrix", ErrInvalidInput)
	}
	bg, err := toBackground(req.Stationary, req.Transition)
	if err != nil {
		return SampleResult{}, err
	}

	table := isample.BuildTiltTable(w.Floored(), bg.Transition, req.Theta)
	sampler := isample.NewSampler(table, bg)
	rng := rand.New(rand.NewSource(req.Seed))

	out := SampleResult{
		NormConst:         table.NormalizingConstant(bg.Stationary),
		StartDistribution: sampler.StartDistribution(),
		Samples:           make([]SampleItem, 0, req.Count),
	}
	for i := 0; i < req.Count; i++ {
		s := sampler.Draw(rng)
		out.Samples = append(out.Samples, SampleItem{Sequence: motif.Decode(s.Sequence), Start: s.Start})
	}
	return out, nil
}
