package model

import (
	"errors"
	"fmt"
)

// Alphabet is the nucleotide alphabet size. Column order is A, C, G, T.
const Alphabet = 4

// Floor is the smallest value any weight or tilt entry may take before it is
// raised to a power or passed to log.
const Floor = 1e-10

var ErrInvalidShape = errors.New("invalid shape")

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Matrix is a motif_len x 4 weight matrix. Rows are motif positions.
type Matrix [][Alphabet]float64

func (m Matrix) Len() int {
	return len(m)
}

// Floored returns a copy of m with every entry raised to at least Floor.
func (m Matrix) Floored() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		for j, v := range row {
			if v < Floor {
				v = Floor
			}
			out[i][j] = v
		}
	}
	return out
}

// Background is a first-order Markov chain over nucleotides.
type Background struct {
	Stationary [Alphabet]float64           `json:"stationary"`
	Transition [Alphabet][Alphabet]float64 `json:"transition"`
}

// UniformBackground returns the i.i.d. uniform chain.
func UniformBackground() Background {
	var bg Background
	for i := 0; i < Alphabet; i++ {
		bg.Stationary[i] = 1.0 / Alphabet
		for j := 0; j < Alphabet; j++ {
			bg.Transition[i][j] = 1.0 / Alphabet
		}
	}
	return bg
}

// ScorePair holds the two allele scores of one variant.
type ScorePair [2]float64

// CheckShapes reports whether pwm and weights describe the same motif.
func CheckShapes(pwm, weights Matrix) error {
	if pwm.Len() == 0 {
		return fmt.Errorf("%w: empty pwm", ErrInvalidShape)
	}
	if pwm.Len() != weights.Len() {
		return fmt.Errorf("%w: pwm has %d rows, weight matrix has %d", ErrInvalidShape, pwm.Len(), weights.Len())
	}
	return nil
}

// Diagnostics are advisory values recorded while estimating p-values.
type Diagnostics struct {
	Percentile     float64 `json:"percentile"`
	Theta          float64 `json:"theta"`
	ThetaSteps     int     `json:"theta_steps"`
	NormConst      float64 `json:"norm_const"`
	MeanWeight     float64 `json:"mean_weight"`
	MeanDiff       float64 `json:"mean_diff"`
	MeanAdjustment float64 `json:"mean_adjustment"`
	MeanScore      float64 `json:"mean_score"`
}

// RunRecord is one persisted estimation run.
type RunRecord struct {
	VersionedRecord
	ID           string      `json:"id"`
	CreatedAtUTC string      `json:"created_at_utc"`
	Motif        string      `json:"motif"`
	MotifLen     int         `json:"motif_len"`
	Variants     int         `json:"variants"`
	Samples      int         `json:"samples"`
	Seed         int64       `json:"seed"`
	Workers      int         `json:"workers"`
	Streams      int         `json:"streams"`
	P            float64     `json:"p"`
	VariantIDs   []string    `json:"variant_ids,omitempty"`
	PValues      []float64   `json:"p_values"`
	Diagnostics  Diagnostics `json:"diagnostics"`
}
