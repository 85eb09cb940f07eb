package recipe

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/atlas"
	"tractseg/pkg/connectivity"
	"tractseg/pkg/criteria"
	"tractseg/pkg/grid"
	"tractseg/pkg/roi"
	"tractseg/pkg/segerr"
	"tractseg/pkg/tractometry"
)

type roiEntry struct {
	roi *roi.ROI
	err error
}

type criterionEntry struct {
	c   criteria.Criterion
	err error
}

// session memoizes the ROIs and criteria of one run. Failures are memoized
// too, so a broken declaration fails every segment that uses it and nothing
// else.
type session struct {
	runner *Runner
	in     Inputs
	grid   *grid.Grid

	mapping    *connectivity.Mapping
	mappingErr error

	roiSpecs  map[string]ROISpec
	critSpecs map[string]CriterionSpec
	rois      map[string]roiEntry
	crits     map[string]criterionEntry
}

func (s *session) roi(name string) (*roi.ROI, error) {
	if e, ok := s.rois[name]; ok {
		return e.roi, e.err
	}
	r, err := s.buildROI(s.roiSpecs[name])
	if err != nil {
		err = errors.Wrapf(err, "roi %q", name)
	}
	s.rois[name] = roiEntry{roi: r, err: err}
	return r, err
}

func (s *session) needGrid() (*grid.Grid, error) {
	if s.grid == nil {
		return nil, segerr.New("recipe", segerr.ErrInvalidArgument, "no grid or atlas supplied")
	}
	return s.grid, nil
}

func (s *session) needAtlas() (*atlas.Atlas, error) {
	if s.in.Atlas == nil {
		return nil, segerr.New("recipe", segerr.ErrInvalidArgument, "no atlas supplied")
	}
	return s.in.Atlas, nil
}

// labels resolves numeric labels and region names.
func (s *session) labels(values []int, regions []string) ([]int, error) {
	out := append([]int(nil), values...)
	for _, name := range regions {
		l, ok := s.in.Names.Find(name)
		if !ok {
			return nil, segerr.New("recipe", segerr.ErrLabelNotFound, "no region named %q", name)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *session) buildROI(spec ROISpec) (*roi.ROI, error) {
	switch spec.Type {
	case ROIPlane:
		g, err := s.needGrid()
		if err != nil {
			return nil, err
		}
		axis, err := grid.ParseAxis(spec.Axis)
		if err != nil {
			return nil, err
		}
		return roi.Planar(g, spec.Coordinate, axis)

	case ROISphere:
		g, err := s.needGrid()
		if err != nil {
			return nil, err
		}
		center := r3.Vec{X: spec.Center[0], Y: spec.Center[1], Z: spec.Center[2]}
		return roi.Sphere(g, center, spec.Radius)

	case ROILabel:
		a, err := s.needAtlas()
		if err != nil {
			return nil, err
		}
		labels, err := s.labels(spec.Labels, spec.Regions)
		if err != nil {
			return nil, err
		}
		return roi.FromLabels(a, labels...), nil

	case ROIBorder:
		a, err := s.needAtlas()
		if err != nil {
			return nil, err
		}
		labels, err := s.labels(spec.Labels, spec.Regions)
		if err != nil {
			return nil, err
		}
		border, err := roi.ParseDirection(spec.Border)
		if err != nil {
			return nil, err
		}
		return roi.BorderPlane(a, labels[0], border)

	case ROICut:
		src, err := s.roi(spec.Source)
		if err != nil {
			return nil, err
		}
		knife, err := s.roi(spec.Knife)
		if err != nil {
			return nil, err
		}
		keep, err := roi.ParseDirection(spec.Keep)
		if err != nil {
			return nil, err
		}
		return roi.Cut(src, knife, keep)

	case ROIUnion, ROIIntersect, ROISubtract:
		acc, err := s.roi(spec.Inputs[0])
		if err != nil {
			return nil, err
		}
		for _, name := range spec.Inputs[1:] {
			next, err := s.roi(name)
			if err != nil {
				return nil, err
			}
			switch spec.Type {
			case ROIUnion:
				acc, err = acc.Union(next)
			case ROIIntersect:
				acc, err = acc.Intersect(next)
			default:
				acc, err = acc.Subtract(next)
			}
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
	return nil, segerr.New("recipe", segerr.ErrInvalidArgument, "unknown roi type %q", spec.Type)
}

func (s *session) criterion(name string) (criteria.Criterion, error) {
	if e, ok := s.crits[name]; ok {
		return e.c, e.err
	}
	c, err := s.buildCriterion(s.critSpecs[name])
	if err != nil {
		err = errors.Wrapf(err, "criterion %q", name)
	}
	c.Name = name
	s.crits[name] = criterionEntry{c: c, err: err}
	return c, err
}

func (s *session) buildCriterion(spec CriterionSpec) (criteria.Criterion, error) {
	set := s.in.Tractogram
	ev := s.runner.evaluator

	switch spec.Type {
	case CriterionROI:
		r, err := s.roi(spec.ROI)
		if err != nil {
			return criteria.Criterion{}, err
		}
		mode := s.runner.opts.NodeMode
		if spec.Mode != "" {
			if mode, err = criteria.ParseNodeMode(spec.Mode); err != nil {
				return criteria.Criterion{}, err
			}
		}
		include := spec.Include == nil || *spec.Include
		res, err := ev.Intersect(set, r, include, mode)
		return criteria.Criterion{Kind: criteria.KindROI, Result: res}, err

	case CriterionEndpoint:
		plane, side, err := s.sidedPlane(spec)
		if err != nil {
			return criteria.Criterion{}, err
		}
		how, err := criteria.ParseRequire(spec.Require)
		if err != nil {
			return criteria.Criterion{}, err
		}
		res, err := ev.Endpoint(set, plane, side, how)
		return criteria.Criterion{Kind: criteria.KindEndpoint, Result: res}, err

	case CriterionMidpoint:
		plane, side, err := s.sidedPlane(spec)
		if err != nil {
			return criteria.Criterion{}, err
		}
		res, err := ev.Midpoint(set, plane, side)
		return criteria.Criterion{Kind: criteria.KindMidpoint, Result: res}, err

	case CriterionCategory:
		if s.mappingErr != nil {
			return criteria.Criterion{}, s.mappingErr
		}
		if s.mapping == nil {
			return criteria.Criterion{}, segerr.New("recipe", segerr.ErrInvalidArgument, "category criteria need an atlas")
		}
		pairs := make([]connectivity.Pair, 0, len(spec.Pairs)+len(spec.RegionPairs))
		for _, p := range spec.Pairs {
			pairs = append(pairs, connectivity.Pair{A: p[0], B: p[1]})
		}
		for _, p := range spec.RegionPairs {
			labels, err := s.labels(nil, p[:])
			if err != nil {
				return criteria.Criterion{}, err
			}
			pairs = append(pairs, connectivity.Pair{A: labels[0], B: labels[1]})
		}
		return criteria.Criterion{Kind: criteria.KindCategory, Result: s.mapping.Category(pairs...)}, nil

	case CriterionLength:
		res, err := tractometry.LengthRange(set, spec.Min, spec.Max, s.runner.opts.Criteria.Workers)
		return criteria.Criterion{Kind: criteria.KindLength, Result: res}, err
	}
	return criteria.Criterion{}, segerr.New("recipe", segerr.ErrInvalidArgument, "unknown criterion type %q", spec.Type)
}

func (s *session) sidedPlane(spec CriterionSpec) (*roi.ROI, roi.Direction, error) {
	plane, err := s.roi(spec.ROI)
	if err != nil {
		return nil, 0, err
	}
	side, err := roi.ParseDirection(spec.Side)
	if err != nil {
		return nil, 0, err
	}
	return plane, side, nil
}
