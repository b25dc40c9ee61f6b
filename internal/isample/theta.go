package isample

import (
	"fmt"
	"math"

	"atsnp/internal/model"
)

const (
	DefaultThetaStep       = 0.01
	DefaultThetaHalfWindow = 0.005
	DefaultThetaMaxSteps   = 10000
)

// ThetaSolver brackets the tilt parameter whose finite-difference slope of
// the log cumulant matches a target score. The search walks in fixed steps
// and does not interpolate. Step is expected to equal 2*HalfWindow so each
// window reuses the edge of the previous one.
type ThetaSolver struct {
	Step       float64
	HalfWindow float64
	MaxSteps   int
}

func DefaultThetaSolver() ThetaSolver {
	return ThetaSolver{
		Step:       DefaultThetaStep,
		HalfWindow: DefaultThetaHalfWindow,
		MaxSteps:   DefaultThetaMaxSteps,
	}
}

// SolveTheta runs the default solver.
func SolveTheta(weights model.Matrix, bg model.Background, target float64) (float64, error) {
	theta, _, err := DefaultThetaSolver().Solve(weights, bg, target)
	return theta, err
}

// Solve returns theta and the number of steps taken from zero.
func (s ThetaSolver) Solve(weights model.Matrix, bg model.Background, target float64) (float64, int, error) {
	s = s.withDefaults()
	if weights.Len() == 0 {
		return 0, 0, fmt.Errorf("%w: empty weight matrix", ErrInvalidInput)
	}

	logCumulant := func(theta float64) float64 {
		return math.Log(EvaluateCumulant(weights, bg, theta))
	}
	// The slope is compared against target scaled to the window width.
	threshold := target * 2 * s.HalfWindow

	theta := 0.0
	low := logCumulant(theta - s.HalfWindow)
	upp := logCumulant(theta + s.HalfWindow)
	steps := 0
	if upp-low < threshold {
		for upp-low < threshold {
			if steps >= s.MaxSteps {
				return theta, steps, fmt.Errorf("%w: slope still below %g after %d steps (theta=%g)", ErrNonConvergent, threshold, steps, theta)
			}
			theta += s.Step
			steps++
			low = upp
			upp = logCumulant(theta + s.HalfWindow)
		}
		return theta, steps, nil
	}
	for upp-low > threshold {
		if steps >= s.MaxSteps {
			return theta, steps, fmt.Errorf("%w: slope still above %g after %d steps (theta=%g)", ErrNonConvergent, threshold, steps, theta)
		}
		theta -= s.Step
		steps++
		upp = low
		low = logCumulant(theta - s.HalfWindow)
	}
	return theta, steps, nil
}

func (s ThetaSolver) withDefaults() ThetaSolver {
	if s.Step <= 0 {
		s.Step = DefaultThetaStep
	}
	if s.HalfWindow <= 0 {
		s.HalfWindow = DefaultThetaHalfWindow
	}
	if s.MaxSteps <= 0 {
		s.MaxSteps = DefaultThetaMaxSteps
	}
	return s
}
