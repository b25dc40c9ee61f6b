package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"atsnp/internal/model"
)

// sumTolerance is how far a probability vector may drift from 1.
const sumTolerance = 1e-6

func ReadBackgroundFile(path string) (model.Background, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Background{}, err
	}
	var bg model.Background
	if err := json.Unmarshal(data, &bg); err != nil {
		return model.Background{}, fmt.Errorf("decode background %s: %w", path, err)
	}
	if err := ValidateBackground(bg); err != nil {
		return model.Background{}, fmt.Errorf("background %s: %w", path, err)
	}
	return bg, nil
}

// ValidateBackground checks the stationary vector and every transition row
// are probability distributions.
func ValidateBackground(bg model.Background) error {
	if err := checkDistribution(bg.Stationary[:]); err != nil {
		return fmt.Errorf("stationary distribution: %w", err)
	}
	for i, row := range bg.Transition {
		if err := checkDistribution(row[:]); err != nil {
			return fmt.Errorf("transition row %d: %w", i, err)
		}
	}
	return nil
}

func checkDistribution(p []float64) error {
	sum := 0.0
	for i, v := range p {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("entry %d is %g", i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > sumTolerance {
		return fmt.Errorf("sums to %g", sum)
	}
	return nil
}
