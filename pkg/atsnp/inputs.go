package atsnp

import (
	"gonum.org/v1/gonum/mat"

	"atsnp/internal/dataset"
)

// FileInputs names the files a run is loaded from. WeightPath and
// BackgroundPath are optional.
type FileInputs struct {
	PWMPath        string
	WeightPath     string
	BackgroundPath string
	ScoresPath     string
}

// LoadRequest reads the input files into a RunRequest. Sampling options are
// left at their zero values for the caller to fill in.
func LoadRequest(files FileInputs) (RunRequest, error) {
	pwm, name, err := LoadMatrix(files.PWMPath)
	if err != nil {
		return RunRequest{}, err
	}
	req := RunRequest{
		Motif:   name,
		PWM:     pwm,
		Sources: files,
	}

	if files.WeightPath != "" {
		weights, _, err := LoadMatrix(files.WeightPath)
		if err != nil {
			return RunRequest{}, err
		}
		req.Weights = weights
	}

	req.Stationary, req.Transition, err = LoadBackground(files.BackgroundPath)
	if err != nil {
		return RunRequest{}, err
	}

	scores, ids, err := LoadScores(files.ScoresPath)
	if err != nil {
		return RunRequest{}, err
	}
	req.Scores = scores
	req.VariantIDs = ids
	return req, nil
}

// LoadMatrix reads a motif matrix file and returns it with the motif name.
func LoadMatrix(path string) (*mat.Dense, string, error) {
	m, err := dataset.ReadMatrixFile(path)
	if err != nil {
		return nil, "", err
	}
	return MatrixDense(m.Matrix), m.Name, nil
}

// LoadBackground reads a background file. An empty path returns nil
// interfaces for both parts, which Run and the helpers treat as the uniform
// chain.
func LoadBackground(path string) (mat.Vector, mat.Matrix, error) {
	if path == "" {
		return nil, nil, nil
	}
	bg, err := dataset.ReadBackgroundFile(path)
	if err != nil {
		return nil, nil, err
	}
	stationary, transition := BackgroundDense(bg)
	return stationary, transition, nil
}

// LoadScores reads a score-pair file into an n x 2 matrix plus the variant ids
// when the file has an id column.
func LoadScores(path string) (*mat.Dense, []string, error) {
	table, err := dataset.ReadScoresFile(path)
	if err != nil {
		return nil, nil, err
	}
	return ScoresDense(table.Pairs), table.IDs, nil
}
