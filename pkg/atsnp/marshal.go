package atsnp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"atsnp/internal/isample"
	"atsnp/internal/model"
)

// toMatrix copies a motif_len x 4 gonum matrix into the core row layout.
func toMatrix(name string, m mat.Matrix) (model.Matrix, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: %s is required", isample.ErrInvalidInput, name)
	}
	rows, cols := m.Dims()
	if cols != model.Alphabet {
		return nil, fmt.Errorf("%w: %s must have %d columns, got %d", isample.ErrInvalidInput, name, model.Alphabet, cols)
	}
	out := make(model.Matrix, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out, nil
}

// toBackground builds the Markov background. A nil stationary vector and a nil
// transition matrix together select the uniform background.
func toBackground(stationary mat.Vector, transition mat.Matrix) (model.Background, error) {
	if stationary == nil && transition == nil {
		return model.UniformBackground(), nil
	}
	if stationary == nil || transition == nil {
		return model.Background{}, fmt.Errorf("%w: stationary and transition must be given together", isample.ErrInvalidInput)
	}
	if n := stationary.Len(); n != model.Alphabet {
		return model.Background{}, fmt.Errorf("%w: stationary distribution has length %d", isample.ErrInvalidInput, n)
	}
	if r, c := transition.Dims(); r != model.Alphabet || c != model.Alphabet {
		return model.Background{}, fmt.Errorf("%w: transition matrix is %dx%d", isample.ErrInvalidInput, r, c)
	}

	var bg model.Background
	for i := 0; i < model.Alphabet; i++ {
		bg.Stationary[i] = stationary.AtVec(i)
		for j := 0; j < model.Alphabet; j++ {
			bg.Transition[i][j] = transition.At(i, j)
		}
	}
	return bg, nil
}

func toScorePairs(scores mat.Matrix) ([]model.ScorePair, error) {
	if scores == nil {
		return nil, fmt.Errorf("%w: scores are required", isample.ErrInvalidInput)
	}
	rows, cols := scores.Dims()
	if cols != 2 {
		return nil, fmt.Errorf("%w: scores must have 2 columns, got %d", isample.ErrInvalidInput, cols)
	}
	out := make([]model.ScorePair, rows)
	for i := range out {
		out[i] = model.ScorePair{scores.At(i, 0), scores.At(i, 1)}
	}
	return out, nil
}

// MatrixDense converts a core matrix to a motif_len x 4 dense matrix. Like
// mat.NewDense it panics on an empty matrix.
func MatrixDense(m model.Matrix) *mat.Dense {
	data := make([]float64, 0, len(m)*model.Alphabet)
	for _, row := range m {
		data = append(data, row[:]...)
	}
	return mat.NewDense(len(m), model.Alphabet, data)
}

// BackgroundDense splits a background into its stationary vector and
// transition matrix.
func BackgroundDense(bg model.Background) (*mat.VecDense, *mat.Dense) {
	stationary := mat.NewVecDense(model.Alphabet, append([]float64(nil), bg.Stationary[:]...))
	transition := mat.NewDense(model.Alphabet, model.Alphabet, nil)
	for i, row := range bg.Transition {
		transition.SetRow(i, row[:])
	}
	return stationary, transition
}

// ScoresDense packs score pairs into an n x 2 dense matrix. pairs must not
// be empty.
func ScoresDense(pairs []model.ScorePair) *mat.Dense {
	data := make([]float64, 0, 2*len(pairs))
	for _, pair := range pairs {
		data = append(data, pair[0], pair[1])
	}
	return mat.NewDense(len(pairs), 2, data)
}
