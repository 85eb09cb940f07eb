package criteria

import (
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/internal/logger"
	"tractseg/internal/metrics"
	"tractseg/internal/workers"
	"tractseg/pkg/grid"
	"tractseg/pkg/roi"
	"tractseg/pkg/segerr"
	"tractseg/pkg/tractogram"
)

// Params configures an Evaluator.
type Params struct {
	Workers   int     // goroutines per pass; 0 means runtime.NumCPU()
	Tolerance float64 // intersection distance in mm; 0 means half the voxel diagonal
}

// Evaluator computes per-streamline criteria. It holds no state between
// calls and is safe for concurrent use.
type Evaluator struct {
	params Params
	logger *zap.Logger
}

// NewEvaluator creates an evaluator. A nil logger disables logging.
func NewEvaluator(params Params, l *zap.Logger) *Evaluator {
	return &Evaluator{params: params, logger: logger.OrNop(l)}
}

// Tolerance returns the intersection distance used against grid g.
func (e *Evaluator) Tolerance(g *grid.Grid) float64 {
	if e.params.Tolerance > 0 {
		return e.params.Tolerance
	}
	return g.HalfDiagonal()
}

// Intersect marks the streamlines whose nodes, selected by mode, lie within
// the tolerance of an occupied voxel center of r. The entry is true when that
// predicate equals want, so want=false selects the exact complement.
//
// A streamline running close and parallel to a plane counts as crossing it,
// and one whose nodes straddle a thin ROI without landing near it does not.
// Lowering the tolerance or resampling the tractogram changes both effects.
func (e *Evaluator) Intersect(set *tractogram.Tractogram, r *roi.ROI, want bool, mode NodeMode) (res Result, err error) {
	const op = "Intersect"
	start := time.Now()
	defer func() { metrics.ObserveCriterion("roi", set.Len(), start, err) }()

	if r.IsEmpty() {
		return Result{}, segerr.New(op, segerr.ErrEmptyROI, "")
	}
	if mode < AnyNode || mode > BothEnds {
		return Result{}, segerr.New(op, segerr.ErrInvalidArgument, "unknown node mode %d", int(mode))
	}
	if err := set.Validate(op); err != nil {
		return Result{}, err
	}

	tol := e.Tolerance(r.Grid())
	bounds, _ := r.WorldBounds()
	idx := newNearIndex(r.WorldPoints(), bounds, tol)

	n := set.Len()
	numWorkers := min(workers.Count(e.params.Workers), max(n, 1))
	pruned := make([]int, numWorkers)
	bits := make([]bool, n)

	workers.Chunks(n, numWorkers, func(w, lo, hi int) {
		for i := lo; i < hi; i++ {
			s := set.At(i)
			hit := false
			if idx.overlaps(s.Bounds()) {
				hit = matchNodes(s, mode, idx.near)
			} else {
				pruned[w]++
			}
			bits[i] = hit == want
		}
	})

	totalPruned := 0
	for _, p := range pruned {
		totalPruned += p
	}
	metrics.StreamlinesPrunedTotal.Add(float64(totalPruned))

	res = Result{bits: bits}
	e.logger.Debug("roi criterion evaluated",
		zap.String("mode", mode.String()),
		zap.Bool("want", want),
		zap.Int("streamlines", n),
		zap.Int("roi_voxels", r.Count()),
		zap.Float64("tolerance_mm", tol),
		zap.Int("pruned", totalPruned),
		zap.Int("selected", res.Count()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func matchNodes(s tractogram.Streamline, mode NodeMode, near func(r3.Vec) bool) bool {
	switch mode {
	case AnyNode:
		for i := 0; i < s.Len(); i++ {
			if near(s.Node(i)) {
				return true
			}
		}
		return false
	case AllNodes:
		for i := 0; i < s.Len(); i++ {
			if !near(s.Node(i)) {
				return false
			}
		}
		return true
	case EitherEnd:
		return near(s.First()) || near(s.Last())
	case BothEnds:
		return near(s.First()) && near(s.Last())
	}
	return false
}

// Endpoint classifies both endpoints of each streamline as lying strictly
// beyond plane in direction side or not, and aggregates the pair per how.
// The first/last labeling of the endpoints does not affect the outcome.
func (e *Evaluator) Endpoint(set *tractogram.Tractogram, plane *roi.ROI, side roi.Direction, how Require) (res Result, err error) {
	const op = "Endpoint"
	start := time.Now()
	defer func() { metrics.ObserveCriterion("endpoint", set.Len(), start, err) }()

	if how < Both || how > Neither {
		return Result{}, segerr.New(op, segerr.ErrInvalidArgument, "unknown endpoint requirement %d", int(how))
	}
	beyond, err := sideTest(op, plane, side)
	if err != nil {
		return Result{}, err
	}
	if err := set.Validate(op); err != nil {
		return Result{}, err
	}

	bits := make([]bool, set.Len())
	workers.Chunks(set.Len(), e.params.Workers, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			s := set.At(i)
			bits[i] = how.accept(beyond(s.First()), beyond(s.Last()))
		}
	})

	res = Result{bits: bits}
	e.logger.Debug("endpoint criterion evaluated",
		zap.String("side", side.String()),
		zap.String("require", how.String()),
		zap.Int("streamlines", set.Len()),
		zap.Int("selected", res.Count()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// Midpoint tests the sequence midpoint of each streamline against the side
// of plane. For an odd node count the midpoint is the central node; for an
// even count it is the mean of the two central nodes, which keeps the result
// independent of the streamline's orientation.
func (e *Evaluator) Midpoint(set *tractogram.Tractogram, plane *roi.ROI, side roi.Direction) (res Result, err error) {
	const op = "Midpoint"
	start := time.Now()
	defer func() { metrics.ObserveCriterion("midpoint", set.Len(), start, err) }()

	beyond, err := sideTest(op, plane, side)
	if err != nil {
		return Result{}, err
	}
	if err := set.Validate(op); err != nil {
		return Result{}, err
	}

	bits := make([]bool, set.Len())
	workers.Chunks(set.Len(), e.params.Workers, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			bits[i] = beyond(SequenceMidpoint(set.At(i)))
		}
	})

	res = Result{bits: bits}
	e.logger.Debug("midpoint criterion evaluated",
		zap.String("side", side.String()),
		zap.Int("streamlines", set.Len()),
		zap.Int("selected", res.Count()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// SequenceMidpoint returns the node at the center of the index range, or the
// mean of the two central nodes when the node count is even. The even case
// is a point between nodes rather than the lower or upper central node, so
// reversing a streamline never changes its midpoint.
func SequenceMidpoint(s tractogram.Streamline) r3.Vec {
	n := s.Len()
	if n%2 == 1 {
		return s.Node(n / 2)
	}
	return r3.Scale(0.5, r3.Add(s.Node(n/2-1), s.Node(n/2)))
}

// sideTest returns a predicate reporting whether a point lies strictly beyond
// plane in direction side.
func sideTest(op string, plane *roi.ROI, side roi.Direction) (func(r3.Vec) bool, error) {
	if plane.IsEmpty() {
		return nil, segerr.New(op, segerr.ErrEmptyROI, "")
	}
	axis, coord, err := plane.PlaneCoordinate()
	if err != nil {
		return nil, err
	}
	sa, sign, err := side.Resolve(coord)
	if err != nil {
		return nil, err
	}
	if sa != axis {
		return nil, segerr.New(op, segerr.ErrAxisMismatch,
			"%s runs along %s but the plane is perpendicular to %s", side, sa, axis)
	}
	return func(p r3.Vec) bool {
		return sign*(grid.Component(p, axis)-coord) > 0
	}, nil
}
