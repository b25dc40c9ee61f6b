package isample

import (
	"atsnp/internal/model"
)

// Source yields independent uniform draws in [0,1). *math/rand.Rand
// satisfies it.
type Source interface {
	Float64() float64
}

// Sample is one background sequence of length 2*motif_len-1 together with
// the start offset of the tilted motif window that produced it.
type Sample struct {
	Sequence []int
	Start    int
}

// Sampler draws sequences from the theta-tilted distribution defined by a
// TiltTable. The cumulative start-offset mass is computed once.
type Sampler struct {
	table      *TiltTable
	bg         model.Background
	startCum   []float64
	uniformBuf []float64
}

func NewSampler(table *TiltTable, bg model.Background) *Sampler {
	mass := table.StartMass(bg.Stationary)
	for i := 1; i < len(mass); i++ {
		mass[i] += mass[i-1]
	}
	return &Sampler{
		table:      table,
		bg:         bg,
		startCum:   mass,
		uniformBuf: make([]float64, 2*table.MotifLen()),
	}
}

// DrawSample draws one sample without keeping a Sampler around.
func DrawSample(table *TiltTable, bg model.Background, rng Source) Sample {
	return NewSampler(table, bg).Draw(rng)
}

// StartDistribution returns the probability of each start offset.
func (s *Sampler) StartDistribution() []float64 {
	n := len(s.startCum)
	probs := make([]float64, n)
	if n == 0 {
		return probs
	}
	total := s.startCum[n-1]
	prev := 0.0
	for i, c := range s.startCum {
		probs[i] = (c - prev) / total
		prev = c
	}
	return probs
}

// Draw consumes 2*motif_len uniforms: one per sequence position, and the last
// one for the start offset. An empty table yields an empty Sample and consumes
// nothing. A Sampler is not safe for concurrent use.
func (s *Sampler) Draw(rng Source) Sample {
	motifLen := s.table.MotifLen()
	if motifLen == 0 {
		return Sample{}
	}
	seqLen := 2*motifLen - 1
	rv := s.uniformBuf
	for i := range rv {
		rv[i] = rng.Float64()
	}

	start := 0
	u := rv[len(rv)-1] * s.startCum[motifLen-1]
	for start < motifLen-1 && u > s.startCum[start] {
		start++
	}

	seq := make([]int, seqLen)
	var cond [model.Alphabet]float64
	for i := 0; i < seqLen; i++ {
		for j := 0; j < model.Alphabet; j++ {
			if i == 0 {
				cond[j] = s.bg.Stationary[j]
			} else {
				cond[j] = s.bg.Transition[seq[i-1]][j]
			}
			if i < motifLen {
				cond[j] *= s.table.At(j, start, i)
			}
			if j > 0 {
				cond[j] += cond[j-1]
			}
		}
		u := rv[i] * cond[model.Alphabet-1]
		code := 0
		for code < model.Alphabet-1 && u > cond[code] {
			code++
		}
		seq[i] = code
	}
	return Sample{Sequence: seq, Start: start}
}
