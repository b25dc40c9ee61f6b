package isample

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"

	"atsnp/internal/model"
)

// chiSquarePValue returns the goodness-of-fit p-value of observed counts
// against expected probabilities.
func chiSquarePValue(observed []int, expected []float64, n int) float64 {
	stat := 0.0
	for i, p := range expected {
		e := p * float64(n)
		d := float64(observed[i]) - e
		stat += d * d / e
	}
	return distuv.ChiSquared{K: float64(len(expected) - 1)}.Survival(stat)
}

func TestDrawSampleShape(t *testing.T) {
	weights := threeColumnWeights()
	bg := markovBackground()
	table := BuildTiltTable(weights, bg.Transition, 1.1)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		s := DrawSample(table, bg, rng)
		if len(s.Sequence) != 2*weights.Len()-1 {
			t.Fatalf("unexpected sequence length %d", len(s.Sequence))
		}
		if s.Start < 0 || s.Start >= weights.Len() {
			t.Fatalf("start offset %d out of range", s.Start)
		}
		for _, code := range s.Sequence {
			if code < 0 || code > 3 {
				t.Fatalf("invalid code %d", code)
			}
		}
	}
}

type fixedSource struct {
	values []float64
	next   int
}

func (f *fixedSource) Float64() float64 {
	v := f.values[f.next%len(f.values)]
	f.next++
	return v
}

func TestDrawSampleConsumesLastUniformForStart(t *testing.T) {
	weights := model.Matrix{{0.25, 0.25, 0.25, 0.25}, {0.25, 0.25, 0.25, 0.25}}
	bg := model.UniformBackground()
	table := BuildTiltTable(weights, bg.Transition, 0)

	// Three sequence draws then the start draw; uniform start mass is 1 per offset.
	src := &fixedSource{values: []float64{0.1, 0.3, 0.9, 0.99}}
	s := DrawSample(table, bg, src)
	if s.Start != 1 {
		t.Fatalf("expected start 1, got %d", s.Start)
	}
	want := []int{0, 1, 3}
	for i, code := range want {
		if s.Sequence[i] != code {
			t.Fatalf("position %d: got %d want %d", i, s.Sequence[i], code)
		}
	}
	if src.next != 4 {
		t.Fatalf("expected 4 uniforms consumed, got %d", src.next)
	}
}

func TestDrawSampleStartOffsetGoodnessOfFit(t *testing.T) {
	weights := threeColumnWeights()
	bg := markovBackground()
	const theta = 1.5
	table := BuildTiltTable(weights, bg.Transition, theta)
	sampler := NewSampler(table, bg)

	mass := exactStartMass(weights, bg, theta)
	total := 0.0
	for _, m := range mass {
		total += m
	}
	expected := make([]float64, len(mass))
	for i, m := range mass {
		expected[i] = m / total
	}
	for i, p := range sampler.StartDistribution() {
		if math.Abs(p-expected[i]) > 1e-12 {
			t.Fatalf("start %d: table probability %g, enumeration %g", i, p, expected[i])
		}
	}

	const n = 30000
	rng := rand.New(rand.NewSource(17))
	counts := make([]int, len(expected))
	for i := 0; i < n; i++ {
		counts[sampler.Draw(rng).Start]++
	}
	if p := chiSquarePValue(counts, expected, n); p < 1e-4 {
		t.Fatalf("start offsets do not fit: counts=%v expected=%v p=%g", counts, expected, p)
	}
}

func TestDrawSampleWindowFollowsTiltedJoint(t *testing.T) {
	weights := model.Matrix{
		{0.4, 0.3, 0.2, 0.1},
		{0.2, 0.2, 0.3, 0.3},
	}
	bg := markovBackground()
	const theta = 0.8
	motifLen := weights.Len()
	table := BuildTiltTable(weights, bg.Transition, theta)

	// q(start, x) is proportional to p(x) * W[L-1-start][x_{L-1}]^theta.
	expected := make([]float64, 0, motifLen*16)
	enumerateWindows(motifLen, func(x []int) {
		for start := 0; start < motifLen; start++ {
			expected = append(expected, windowProb(bg, x)*math.Pow(weights[motifLen-1-start][x[motifLen-1]], theta))
		}
	})
	total := 0.0
	for _, v := range expected {
		total += v
	}
	for i := range expected {
		expected[i] /= total
	}

	const n = 60000
	rng := rand.New(rand.NewSource(23))
	sampler := NewSampler(table, bg)
	counts := make([]int, len(expected))
	for i := 0; i < n; i++ {
		s := sampler.Draw(rng)
		cell := (s.Sequence[0]*4+s.Sequence[1])*motifLen + s.Start
		counts[cell]++
	}
	if p := chiSquarePValue(counts, expected, n); p < 1e-4 {
		t.Fatalf("window distribution does not fit: p=%g", p)
	}
}

func TestDrawSampleEmptyTable(t *testing.T) {
	table := BuildTiltTable(model.Matrix{}, model.UniformBackground().Transition, 1)
	src := &fixedSource{values: []float64{0.5}}
	s := DrawSample(table, model.UniformBackground(), src)
	if len(s.Sequence) != 0 || s.Start != 0 {
		t.Fatalf("expected empty sample, got %+v", s)
	}
	if src.next != 0 {
		t.Fatalf("expected no uniforms consumed, got %d", src.next)
	}
}
