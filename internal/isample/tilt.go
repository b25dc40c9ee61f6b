package isample

import (
	"math"

	"atsnp/internal/model"
)

// TiltTable holds the backward recursion of the theta-tilted chain for every
// start offset of the motif window. Entries are indexed
// [nucleotide][start offset][motif position] and never fall below model.Floor.
type TiltTable struct {
	motifLen int
	theta    float64
	values   []float64
}

func (t *TiltTable) MotifLen() int {
	return t.motifLen
}

func (t *TiltTable) Theta() float64 {
	return t.theta
}

func (t *TiltTable) At(nuc, start, pos int) float64 {
	return t.values[t.index(nuc, start, pos)]
}

func (t *TiltTable) index(nuc, start, pos int) int {
	return (nuc*t.motifLen+start)*t.motifLen + pos
}

// BuildTiltTable runs the backward recursion
//
//	delta[i][pos][L-1] = W[L-1-pos][i]^theta
//	delta[i][pos][m]   = sum_j T[i][j] * delta[j][pos][m+1]
//
// for every start offset pos. Weights below model.Floor are read as the floor.
func BuildTiltTable(weights model.Matrix, transition [model.Alphabet][model.Alphabet]float64, theta float64) *TiltTable {
	motifLen := weights.Len()
	t := &TiltTable{
		motifLen: motifLen,
		theta:    theta,
		values:   make([]float64, model.Alphabet*motifLen*motifLen),
	}
	if motifLen == 0 {
		return t
	}

	last := motifLen - 1
	for pos := 0; pos < motifLen; pos++ {
		row := weights[last-pos]
		for i := 0; i < model.Alphabet; i++ {
			t.values[t.index(i, pos, last)] = tiltWeight(row[i], theta)
		}
		for m := motifLen - 2; m >= 0; m-- {
			for i := 0; i < model.Alphabet; i++ {
				sum := 0.0
				for j := 0; j < model.Alphabet; j++ {
					sum += transition[i][j] * t.values[t.index(j, pos, m+1)]
				}
				if sum < model.Floor {
					sum = model.Floor
				}
				t.values[t.index(i, pos, m)] = sum
			}
		}
	}
	return t
}

// tiltWeight raises w to theta, inverting a positive power for negative theta
// so the exponent sign is consistent.
func tiltWeight(w, theta float64) float64 {
	if w < model.Floor {
		w = model.Floor
	}
	if theta < 0 {
		return 1 / math.Pow(w, -theta)
	}
	return math.Pow(w, theta)
}

// StartMass returns, for each start offset, sum_i stationary[i]*delta[i][pos][0].
func (t *TiltTable) StartMass(stationary [model.Alphabet]float64) []float64 {
	mass := make([]float64, t.motifLen)
	for pos := 0; pos < t.motifLen; pos++ {
		for i := 0; i < model.Alphabet; i++ {
			mass[pos] += stationary[i] * t.At(i, pos, 0)
		}
	}
	return mass
}

// NormalizingConstant averages the start mass over all start offsets.
func (t *TiltTable) NormalizingConstant(stationary [model.Alphabet]float64) float64 {
	if t.motifLen == 0 {
		return 0
	}
	total := 0.0
	for _, m := range t.StartMass(stationary) {
		total += m
	}
	return total / float64(t.motifLen)
}

// EvaluateCumulant is the normalizing constant of the theta-tilted
// distribution, i.e. the average over start offsets of E[W^theta].
func EvaluateCumulant(weights model.Matrix, bg model.Background, theta float64) float64 {
	return BuildTiltTable(weights, bg.Transition, theta).NormalizingConstant(bg.Stationary)
}
