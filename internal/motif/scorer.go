package motif

import (
	"math"

	"atsnp/internal/model"
)

// Scorer finds and scores the best alignment of a PWM inside a sequence.
type Scorer interface {
	FindBestMatch(pwm model.Matrix, seq []int) int
	LogProb(pwm model.Matrix, seq []int, offset int) float64
}

// LogLikelihood scores an alignment as the sum of log PWM entries.
// Entries are expected to be floored already.
type LogLikelihood struct{}

func (LogLikelihood) LogProb(pwm model.Matrix, seq []int, offset int) float64 {
	score := 0.0
	for m := range pwm {
		score += math.Log(pwm[m][seq[offset+m]])
	}
	return score
}

// FindBestMatch returns the first offset in [0, len(seq)-len(pwm)] with the
// highest log-likelihood.
func (l LogLikelihood) FindBestMatch(pwm model.Matrix, seq []int) int {
	best := 0
	bestScore := math.Inf(-1)
	for offset := 0; offset+len(pwm) <= len(seq); offset++ {
		if score := l.LogProb(pwm, seq, offset); score > bestScore {
			bestScore = score
			best = offset
		}
	}
	return best
}

// BestAlignmentScore is the log-likelihood of the best match of pwm in seq.
func BestAlignmentScore(s Scorer, pwm model.Matrix, seq []int) float64 {
	return s.LogProb(pwm, seq, s.FindBestMatch(pwm, seq))
}

// BothStrandsScore is the best alignment score over seq and its reverse
// complement rc.
func BothStrandsScore(s Scorer, pwm model.Matrix, seq, rc []int) float64 {
	score := BestAlignmentScore(s, pwm, seq)
	if rev := BestAlignmentScore(s, pwm, rc); rev > score {
		score = rev
	}
	return score
}
