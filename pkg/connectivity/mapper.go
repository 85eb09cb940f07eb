// Package connectivity assigns every streamline to the pair of atlas labels
// its endpoints fall in, producing a complete categorical segmentation.
package connectivity

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"tractseg/internal/logger"
	"tractseg/internal/metrics"
	"tractseg/internal/workers"
	"tractseg/pkg/atlas"
	"tractseg/pkg/segerr"
	"tractseg/pkg/tractogram"
)

// Unlabeled is the bucket label for endpoints in background voxels, outside
// the grid, or on labels excluded from the mapping.
const Unlabeled = atlas.Background

// Params configures a Mapper.
type Params struct {
	// Symmetric treats (A,B) and (B,A) as the same bucket, stored as
	// Pair{min, max}.
	Symmetric bool
	// Labels restricts the label axis. Empty means every label of the atlas.
	Labels []int
	// Workers is the number of goroutines; 0 means runtime.NumCPU().
	Workers int
}

// Mapper builds connectivity mappings.
type Mapper struct {
	params Params
	logger *zap.Logger
}

// NewMapper creates a mapper. A nil logger disables logging.
func NewMapper(params Params, l *zap.Logger) *Mapper {
	return &Mapper{params: params, logger: logger.OrNop(l)}
}

// Map assigns each streamline of set to the bucket keyed by the labels of
// the voxels its first and last nodes fall in. The result is total: every
// streamline lands in exactly one bucket.
func (m *Mapper) Map(set *tractogram.Tractogram, a *atlas.Atlas) (*Mapping, error) {
	const op = "connectivity.Map"
	start := time.Now()

	if err := set.Validate(op); err != nil {
		return nil, err
	}
	axis, err := m.labelAxis(a)
	if err != nil {
		return nil, err
	}
	keep := make(map[int]bool, len(axis))
	for _, l := range axis {
		keep[l] = true
	}
	endpointLabel := func(l int, ok bool) int {
		if !ok || !keep[l] {
			return Unlabeled
		}
		return l
	}

	n := set.Len()
	pairs := make([]Pair, n)
	workers.Chunks(n, m.params.Workers, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			s := set.At(i)
			pairs[i] = Pair{
				A: endpointLabel(a.LabelAtWorld(s.First())),
				B: endpointLabel(a.LabelAtWorld(s.Last())),
			}
			if m.params.Symmetric {
				pairs[i] = pairs[i].Sorted()
			}
		}
	})

	mapping := newMapping(axis, m.params.Symmetric, n)
	var both, one, none int
	for i, p := range pairs {
		mapping.add(p, i)
		switch {
		case p.A != Unlabeled && p.B != Unlabeled:
			both++
		case p.A != Unlabeled || p.B != Unlabeled:
			one++
		default:
			none++
		}
	}
	metrics.ConnectivityStreamlinesTotal.WithLabelValues("both").Add(float64(both))
	metrics.ConnectivityStreamlinesTotal.WithLabelValues("one").Add(float64(one))
	metrics.ConnectivityStreamlinesTotal.WithLabelValues("none").Add(float64(none))

	m.logger.Debug("connectivity mapped",
		zap.Int("streamlines", n),
		zap.Int("labels", len(axis)-1),
		zap.Int("buckets", len(mapping.buckets)),
		zap.Int("unlabeled_endpoints", 2*none+one),
		zap.Bool("symmetric", m.params.Symmetric),
		zap.Duration("elapsed", time.Since(start)),
	)
	return mapping, nil
}

// labelAxis returns Unlabeled followed by the sorted labels to map.
func (m *Mapper) labelAxis(a *atlas.Atlas) ([]int, error) {
	labels := a.Labels()
	if len(m.params.Labels) > 0 {
		seen := make(map[int]bool)
		labels = labels[:0:0]
		var missing []int
		for _, l := range m.params.Labels {
			if l == Unlabeled || seen[l] {
				continue
			}
			seen[l] = true
			if !a.Has(l) {
				missing = append(missing, l)
				continue
			}
			labels = append(labels, l)
		}
		if len(missing) > 0 {
			sort.Ints(missing)
			return nil, &segerr.LabelNotFoundError{Labels: missing}
		}
		sort.Ints(labels)
	}
	return append([]int{Unlabeled}, labels...), nil
}
