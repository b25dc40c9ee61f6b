package isample

import (
	"math"

	"atsnp/internal/model"
)

func markovBackground() model.Background {
	return model.Background{
		Stationary: [4]float64{0.3, 0.2, 0.2, 0.3},
		Transition: [4][4]float64{
			{0.4, 0.2, 0.2, 0.2},
			{0.3, 0.3, 0.1, 0.3},
			{0.25, 0.25, 0.25, 0.25},
			{0.1, 0.2, 0.3, 0.4},
		},
	}
}

func threeColumnWeights() model.Matrix {
	return model.Matrix{
		{0.5, 0.2, 0.2, 0.1},
		{0.1, 0.6, 0.2, 0.1},
		{0.25, 0.25, 0.4, 0.1},
	}
}

// windowProb is the background probability of the codes in x.
func windowProb(bg model.Background, x []int) float64 {
	p := bg.Stationary[x[0]]
	for i := 1; i < len(x); i++ {
		p *= bg.Transition[x[i-1]][x[i]]
	}
	return p
}

// enumerateWindows calls f for every sequence of length n.
func enumerateWindows(n int, f func(x []int)) {
	x := make([]int, n)
	total := int(math.Pow(4, float64(n)))
	for k := 0; k < total; k++ {
		v := k
		for i := n - 1; i >= 0; i-- {
			x[i] = v % 4
			v /= 4
		}
		f(x)
	}
}

// exactStartMass is sum_x p(x) * W[L-1-pos][x_{L-1}]^theta computed by brute force.
func exactStartMass(weights model.Matrix, bg model.Background, theta float64) []float64 {
	motifLen := weights.Len()
	mass := make([]float64, motifLen)
	enumerateWindows(motifLen, func(x []int) {
		p := windowProb(bg, x)
		for pos := 0; pos < motifLen; pos++ {
			mass[pos] += p * math.Pow(weights[motifLen-1-pos][x[motifLen-1]], theta)
		}
	})
	return mass
}
