package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the p-value distribution of one run.
type Summary struct {
	Count       int     `json:"count"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	Min         float64 `json:"min"`
	Median      float64 `json:"median"`
	Max         float64 `json:"max"`
	BelowAlpha5 int     `json:"below_0_05"`
	BelowAlpha1 int     `json:"below_0_01"`
}

func Summarize(pValues []float64) Summary {
	if len(pValues) == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), pValues...)
	sort.Float64s(sorted)

	out := Summary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    floats.Min(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Max:    floats.Max(sorted),
	}
	if len(sorted) > 1 {
		out.StdDev = stat.StdDev(sorted, nil)
	}
	for _, p := range sorted {
		if p < 0.05 {
			out.BelowAlpha5++
		}
		if p < 0.01 {
			out.BelowAlpha1++
		}
	}
	return out
}

// ReadSummary loads summary.json, recomputing it from pvalues.csv for runs
// that predate it.
func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	var summary Summary
	ok, err := readRunFile(baseDir, runID, summaryFile, &summary)
	if err != nil || ok {
		return summary, ok, err
	}
	rows, ok, err := ReadPValues(baseDir, runID)
	if err != nil || !ok {
		return Summary{}, ok, err
	}
	pValues := make([]float64, len(rows))
	for i, row := range rows {
		pValues[i] = row.PValue
	}
	return Summarize(pValues), true, nil
}
