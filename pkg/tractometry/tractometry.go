// Package tractometry measures streamline geometry: path length, endpoint
// displacement and their ratio, plus summary statistics over a tractogram.
package tractometry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"tractseg/internal/workers"
	"tractseg/pkg/criteria"
	"tractseg/pkg/segerr"
	"tractseg/pkg/tractogram"
)

// Length returns the summed distance between consecutive nodes.
func Length(s tractogram.Streamline) float64 {
	total := 0.0
	for i := 1; i < s.Len(); i++ {
		total += r3.Norm(r3.Sub(s.Node(i), s.Node(i-1)))
	}
	return total
}

// Displacement returns the straight-line distance between the endpoints.
func Displacement(s tractogram.Streamline) float64 {
	if s.Len() == 0 {
		return 0
	}
	return r3.Norm(r3.Sub(s.Last(), s.First()))
}

// Efficiency returns displacement over length: 1 for a straight streamline,
// approaching 0 for one that loops back on itself. Zero-length streamlines
// have efficiency 0.
func Efficiency(s tractogram.Streamline) float64 {
	l := Length(s)
	if l == 0 {
		return 0
	}
	return Displacement(s) / l
}

// Measure applies fn to every streamline using numWorkers goroutines.
func Measure(set *tractogram.Tractogram, numWorkers int, fn func(tractogram.Streamline) float64) []float64 {
	out := make([]float64, set.Len())
	workers.Chunks(set.Len(), numWorkers, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			out[i] = fn(set.At(i))
		}
	})
	return out
}

// LengthRange selects the streamlines whose length lies in [lo, hi]. A
// non-positive hi means no upper bound.
func LengthRange(set *tractogram.Tractogram, lo, hi float64, numWorkers int) (criteria.Result, error) {
	const op = "LengthRange"
	if lo < 0 || math.IsNaN(lo) || math.IsNaN(hi) || (hi > 0 && hi < lo) {
		return criteria.Result{}, segerr.New(op, segerr.ErrInvalidArgument, "length range [%g, %g]", lo, hi)
	}
	if err := set.Validate(op); err != nil {
		return criteria.Result{}, err
	}

	lengths := Measure(set, numWorkers, Length)
	bits := make([]bool, len(lengths))
	for i, l := range lengths {
		bits[i] = l >= lo && (hi <= 0 || l <= hi)
	}
	return criteria.FromBools(bits), nil
}

// Summary describes a distribution of per-streamline values.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summarize computes a Summary of values. values is not modified.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	s := Summary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

// Profile bundles length and efficiency summaries for a selection.
type Profile struct {
	Length     Summary `json:"length_mm"`
	Efficiency Summary `json:"efficiency"`
}

// Describe summarizes the streamlines of set selected by keep. An empty
// Result (zero length) selects every streamline.
func Describe(set *tractogram.Tractogram, keep criteria.Result, numWorkers int) (Profile, error) {
	sub := set
	if keep.Len() > 0 {
		if keep.Len() != set.Len() {
			return Profile{}, &segerr.LengthMismatchError{Name: "selection", Got: keep.Len(), Want: set.Len()}
		}
		var err error
		if sub, err = set.Subset(keep.Indices()); err != nil {
			return Profile{}, err
		}
	}
	return Profile{
		Length:     Summarize(Measure(sub, numWorkers, Length)),
		Efficiency: Summarize(Measure(sub, numWorkers, Efficiency)),
	}, nil
}
