package recipe

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tractseg/internal/logger"
	"tractseg/internal/metrics"
	"tractseg/pkg/atlas"
	"tractseg/pkg/connectivity"
	"tractseg/pkg/criteria"
	"tractseg/pkg/grid"
	"tractseg/pkg/segerr"
	"tractseg/pkg/tractogram"
)

// Options configures a Runner.
type Options struct {
	Criteria     criteria.Params
	Connectivity connectivity.Params
	// NodeMode applies to roi criteria that do not name a mode.
	NodeMode criteria.NodeMode
}

// Inputs are the materialized volumes and streamlines of a run. Grid may be
// nil when Atlas is set; Atlas may be nil when no label-based declaration
// is used.
type Inputs struct {
	Tractogram *tractogram.Tractogram
	Grid       *grid.Grid
	Atlas      *atlas.Atlas
	Names      atlas.LookupTable
}

// SegmentOutcome is the result of one segment. Err is set when any ROI or
// criterion the segment depends on failed; Result is then empty.
type SegmentOutcome struct {
	Name       string
	Expression string
	Result     criteria.Result
	Err        error
}

// Outcome collects the results of a run.
type Outcome struct {
	RunID    string
	Recipe   string
	Segments []SegmentOutcome
	// Mapping is set when an atlas was supplied.
	Mapping *connectivity.Mapping
}

// Failed returns the segments that did not complete.
func (o *Outcome) Failed() []SegmentOutcome {
	var out []SegmentOutcome
	for _, s := range o.Segments {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Segment returns the outcome of the named segment.
func (o *Outcome) Segment(name string) (SegmentOutcome, bool) {
	for _, s := range o.Segments {
		if s.Name == name {
			return s, true
		}
	}
	return SegmentOutcome{}, false
}

// Runner executes recipes.
type Runner struct {
	opts      Options
	evaluator *criteria.Evaluator
	mapper    *connectivity.Mapper
	logger    *zap.Logger
}

// NewRunner creates a runner. A nil logger disables logging.
func NewRunner(opts Options, l *zap.Logger) *Runner {
	l = logger.OrNop(l)
	return &Runner{
		opts:      opts,
		evaluator: criteria.NewEvaluator(opts.Criteria, l),
		mapper:    connectivity.NewMapper(opts.Connectivity, l),
		logger:    l,
	}
}

// Run evaluates every segment of rec. Malformed inputs abort the run before
// any evaluation. A failing ROI, criterion or segment is recorded on its
// segment and the remaining segments still run.
func (r *Runner) Run(ctx context.Context, rec *Recipe, in Inputs) (*Outcome, error) {
	if in.Tractogram == nil {
		return nil, segerr.New("recipe.Run", segerr.ErrInvalidArgument, "no tractogram supplied")
	}
	if err := in.Tractogram.Validate("recipe.Run"); err != nil {
		return nil, errors.Wrap(err, "invalid tractogram")
	}
	g := in.Grid
	if in.Atlas != nil {
		if g != nil && !g.Same(in.Atlas.Grid()) {
			return nil, segerr.New("recipe.Run", segerr.ErrGridMismatch, "atlas is not on the reference grid")
		}
		g = in.Atlas.Grid()
	}

	out := &Outcome{RunID: uuid.NewString(), Recipe: rec.Name}
	log := r.logger.With(zap.String("run_id", out.RunID), zap.String("recipe", rec.Name))
	ctx = logger.ContextWithLogger(ctx, log)

	s := &session{
		runner:    r,
		in:        in,
		grid:      g,
		roiSpecs:  make(map[string]ROISpec, len(rec.ROIs)),
		critSpecs: make(map[string]CriterionSpec, len(rec.Criteria)),
		rois:      make(map[string]roiEntry),
		crits:     make(map[string]criterionEntry),
	}
	for _, spec := range rec.ROIs {
		s.roiSpecs[spec.Name] = spec
	}
	for _, spec := range rec.Criteria {
		s.critSpecs[spec.Name] = spec
	}

	if in.Atlas != nil {
		s.mapping, s.mappingErr = r.mapper.Map(in.Tractogram, in.Atlas)
		if s.mappingErr != nil {
			s.mappingErr = errors.Wrap(s.mappingErr, "connectivity")
			log.Warn("connectivity mapping failed", zap.Error(s.mappingErr))
		}
		out.Mapping = s.mapping
	}

	log.Info("recipe run started",
		zap.Int("streamlines", in.Tractogram.Len()),
		zap.Int("segments", len(rec.Segments)),
	)
	for _, spec := range rec.Segments {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrap(err, "recipe run interrupted")
		}
		out.Segments = append(out.Segments, s.segment(ctx, spec))
	}
	log.Info("recipe run finished",
		zap.Int("segments", len(out.Segments)),
		zap.Int("failed", len(out.Failed())),
	)
	return out, nil
}

func (s *session) segment(ctx context.Context, spec SegmentSpec) SegmentOutcome {
	log := logger.FromContext(ctx).With(zap.String("segment", spec.Name))
	start := time.Now()
	res := SegmentOutcome{Name: spec.Name}

	fail := func(err error) SegmentOutcome {
		res.Err = errors.Wrapf(err, "segment %q", spec.Name)
		metrics.SegmentsTotal.WithLabelValues("failed").Inc()
		log.Warn("segment failed", zap.Error(res.Err))
		return res
	}

	ref := func(name string) (criteria.Expr, error) {
		c, err := s.criterion(name)
		if err != nil {
			return nil, err
		}
		return criteria.Ref(c), nil
	}

	var terms []criteria.Expr
	for _, name := range spec.All {
		e, err := ref(name)
		if err != nil {
			return fail(err)
		}
		terms = append(terms, e)
	}
	if len(spec.Any) > 0 {
		var anyOf []criteria.Expr
		for _, name := range spec.Any {
			e, err := ref(name)
			if err != nil {
				return fail(err)
			}
			anyOf = append(anyOf, e)
		}
		terms = append(terms, criteria.Or(anyOf...))
	}
	for _, name := range spec.None {
		e, err := ref(name)
		if err != nil {
			return fail(err)
		}
		terms = append(terms, criteria.Not(e))
	}

	expr := criteria.And(terms...)
	res.Expression = expr.String()
	combined, err := criteria.Combine(expr, s.in.Tractogram.Len())
	if err != nil {
		return fail(err)
	}
	res.Result = combined

	metrics.SegmentsTotal.WithLabelValues("ok").Inc()
	log.Info("segment done",
		zap.String("expression", res.Expression),
		zap.Int("selected", combined.Count()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}
