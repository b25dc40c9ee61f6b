package isample

import (
	"fmt"
	"math"

	"atsnp/internal/model"
)

// FindPercentile returns the negated smallest value among the
// floor(n*p)+1 largest absolute allele score differences.
//
// Only a min-heap of the current top values is held in memory.
func FindPercentile(pairs []model.ScorePair, p float64) (float64, error) {
	if len(pairs) == 0 {
		return 0, fmt.Errorf("%w: no score pairs", ErrInvalidInput)
	}
	if p < 0 || p >= 1 || math.IsNaN(p) {
		return 0, fmt.Errorf("%w: percentile %v outside [0,1)", ErrInvalidInput, p)
	}

	nTop := int(float64(len(pairs))*p) + 1
	heap := make([]float64, nTop)
	for i := range heap {
		heap[i] = math.Inf(-1)
	}
	for _, pair := range pairs {
		diff := math.Abs(pair[0] - pair[1])
		if diff <= heap[0] {
			continue
		}
		heap[0] = diff
		siftDown(heap, 0)
	}
	return -heap[0], nil
}

func siftDown(heap []float64, idx int) {
	n := len(heap)
	for {
		child := 2*idx + 1
		if child >= n {
			return
		}
		if child+1 < n && heap[child+1] < heap[child] {
			child++
		}
		if heap[idx] <= heap[child] {
			return
		}
		heap[idx], heap[child] = heap[child], heap[idx]
		idx = child
	}
}
