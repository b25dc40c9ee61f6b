package isample

import (
	"fmt"
	"math"

	"atsnp/internal/model"
	"atsnp/internal/motif"
)

// Substitutions is the number of alternative alleles scored per sample.
const Substitutions = model.Alphabet - 1

// Evaluation is the score summary of one sample.
type Evaluation struct {
	// Adjustment is log W[L-1-start][x], the exponent of the importance weight.
	Adjustment float64
	// Score is the best-alignment score of the sampled sequence.
	Score float64
	// Diffs holds score minus substituted score for each alternative allele
	// at the variant site, in nucleotide order.
	Diffs [Substitutions]float64
}

// Evaluator scores samples against a PWM. PWM and Weights must already be
// floored.
type Evaluator struct {
	PWM     model.Matrix
	Weights model.Matrix
	Scorer  motif.Scorer
}

// EvaluateSample scores a sample with the default log-likelihood scorer and
// returns (adjustment, diff0, diff1, diff2).
func EvaluateSample(pwm, weights model.Matrix, seq []int, start int) ([Substitutions + 1]float64, error) {
	ev := Evaluator{PWM: pwm.Floored(), Weights: weights.Floored(), Scorer: motif.LogLikelihood{}}
	res, err := ev.Evaluate(Sample{Sequence: seq, Start: start})
	if err != nil {
		return [Substitutions + 1]float64{}, err
	}
	return [Substitutions + 1]float64{res.Adjustment, res.Diffs[0], res.Diffs[1], res.Diffs[2]}, nil
}

func (e Evaluator) Evaluate(sample Sample) (Evaluation, error) {
	motifLen := e.PWM.Len()
	seq := sample.Sequence
	if len(seq) != 2*motifLen-1 {
		return Evaluation{}, fmt.Errorf("%w: sequence length %d, want %d", ErrInvalidInput, len(seq), 2*motifLen-1)
	}
	if sample.Start < 0 || sample.Start >= motifLen {
		return Evaluation{}, fmt.Errorf("%w: start offset %d outside [0,%d)", ErrInvalidInput, sample.Start, motifLen)
	}
	scorer := e.Scorer
	if scorer == nil {
		scorer = motif.LogLikelihood{}
	}

	site := motifLen - 1
	for i, code := range seq {
		if i != site && (code < 0 || code >= model.Alphabet) {
			return Evaluation{}, fmt.Errorf("%w: nucleotide code %d at position %d", ErrInvalidInput, code, i)
		}
	}
	alternatives := make([]int, 0, model.Alphabet)
	for code := 0; code < model.Alphabet; code++ {
		if seq[site] != code {
			alternatives = append(alternatives, code)
		}
	}
	if len(alternatives) != Substitutions {
		return Evaluation{}, fmt.Errorf("%w: %d substitutions at variant site (code %d), want %d", ErrInvariantViolation, len(alternatives), seq[site], Substitutions)
	}

	rc := motif.ReverseComplement(seq)
	score := motif.BothStrandsScore(scorer, e.PWM, seq, rc)

	seqCopy := append([]int(nil), seq...)
	rcCopy := append([]int(nil), rc...)
	out := Evaluation{Score: score}
	for n, code := range alternatives {
		seqCopy[site] = code
		// The variant site is the centre, so it sits at the same index on both strands.
		rcCopy[site] = motif.Complement(code)
		out.Diffs[n] = score - motif.BothStrandsScore(scorer, e.PWM, seqCopy, rcCopy)
	}

	// Must use the sampled start offset, not the best-match offset.
	out.Adjustment = math.Log(e.Weights[site-sample.Start][seq[site]])
	return out, nil
}
