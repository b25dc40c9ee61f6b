package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"

	"atsnp/pkg/atsnp"
)

func runPercentile(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("percentile", flag.ContinueOnError)
	scoresPath := fs.String("scores", "", "score pair file")
	p := fs.Float64("p", 0.1, "upper percentile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scoresPath == "" {
		return errors.New("percentile requires --scores")
	}

	scores, _, err := atsnp.LoadScores(*scoresPath)
	if err != nil {
		return err
	}
	value, err := atsnp.Percentile(scores, *p)
	if err != nil {
		return err
	}
	fmt.Printf("percentile=%.6f p=%g\n", value, *p)
	return nil
}

func runTheta(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("theta", flag.ContinueOnError)
	weightsPath := fs.String("weights", "", "weight matrix file")
	bgPath := fs.String("background", "", "background JSON (defaults to uniform)")
	target := fs.Float64("target", 0, "target mean log weight at the variant site")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *weightsPath == "" {
		return errors.New("theta requires --weights")
	}

	weights, _, err := atsnp.LoadMatrix(*weightsPath)
	if err != nil {
		return err
	}
	stationary, transition, err := atsnp.LoadBackground(*bgPath)
	if err != nil {
		return err
	}
	res, err := atsnp.Theta(weights, stationary, transition, *target)
	if err != nil {
		return err
	}
	fmt.Printf("theta=%.4f steps=%d target=%g\n", res.Theta, res.Steps, *target)
	return nil
}

func runCumulant(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("cumulant", flag.ContinueOnError)
	weightsPath := fs.String("weights", "", "weight matrix file")
	bgPath := fs.String("background", "", "background JSON (defaults to uniform)")
	theta := fs.Float64("theta", 0, "tilt parameter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *weightsPath == "" {
		return errors.New("cumulant requires --weights")
	}

	weights, _, err := atsnp.LoadMatrix(*weightsPath)
	if err != nil {
		return err
	}
	stationary, transition, err := atsnp.LoadBackground(*bgPath)
	if err != nil {
		return err
	}
	value, err := atsnp.Cumulant(weights, stationary, transition, *theta)
	if err != nil {
		return err
	}
	fmt.Printf("cumulant=%.10g log_cumulant=%.10g theta=%g\n", value, math.Log(value), *theta)
	return nil
}

func runSample(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	weightsPath := fs.String("weights", "", "weight matrix file")
	bgPath := fs.String("background", "", "background JSON (defaults to uniform)")
	theta := fs.Float64("theta", 0, "tilt parameter")
	seed := fs.Int64("seed", 1, "rng seed")
	count := fs.Int("n", 10, "number of sequences to draw")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *weightsPath == "" {
		return errors.New("sample requires --weights")
	}

	weights, _, err := atsnp.LoadMatrix(*weightsPath)
	if err != nil {
		return err
	}
	stationary, transition, err := atsnp.LoadBackground(*bgPath)
	if err != nil {
		return err
	}
	res, err := atsnp.Sample(atsnp.SampleRequest{
		Weights:    weights,
		Stationary: stationary,
		Transition: transition,
		Theta:      *theta,
		Seed:       *seed,
		Count:      *count,
	})
	if err != nil {
		return err
	}

	fmt.Printf("norm_const=%.10g start_distribution=%v\n", res.NormConst, res.StartDistribution)
	for _, s := range res.Samples {
		fmt.Printf("%s\tstart=%d\n", s.Sequence, s.Start)
	}
	return nil
}
