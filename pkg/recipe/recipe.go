// Package recipe declares segmentations in YAML: named ROIs built from the
// atlas and grid, named criteria evaluated against them, and segments that
// combine criteria into a final streamline selection.
package recipe

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ROI types
const (
	ROIPlane     = "plane"
	ROISphere    = "sphere"
	ROILabel     = "label"
	ROIBorder    = "border"
	ROICut       = "cut"
	ROIUnion     = "union"
	ROIIntersect = "intersect"
	ROISubtract  = "subtract"
)

// Criterion types
const (
	CriterionROI      = "roi"
	CriterionEndpoint = "endpoint"
	CriterionMidpoint = "midpoint"
	CriterionCategory = "category"
	CriterionLength   = "length"
)

// Recipe is a complete segmentation declaration.
type Recipe struct {
	Name     string          `yaml:"name"`
	ROIs     []ROISpec       `yaml:"rois"`
	Criteria []CriterionSpec `yaml:"criteria"`
	Segments []SegmentSpec   `yaml:"segments"`
}

// ROISpec declares one ROI. Which fields apply depends on Type.
type ROISpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// plane
	Axis       string  `yaml:"axis,omitempty"`
	Coordinate float64 `yaml:"coordinate,omitempty"`

	// sphere
	Center []float64 `yaml:"center,omitempty"`
	Radius float64   `yaml:"radius,omitempty"`

	// label, border
	Labels  []int    `yaml:"labels,omitempty"`
	Regions []string `yaml:"regions,omitempty"`
	Border  string   `yaml:"border,omitempty"`

	// cut
	Source string `yaml:"source,omitempty"`
	Knife  string `yaml:"knife,omitempty"`
	Keep   string `yaml:"keep,omitempty"`

	// union, intersect, subtract
	Inputs []string `yaml:"inputs,omitempty"`
}

// CriterionSpec declares one criterion.
type CriterionSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// roi, endpoint, midpoint
	ROI string `yaml:"roi,omitempty"`

	// roi: Include=false excludes streamlines touching the ROI
	Include *bool  `yaml:"include,omitempty"`
	Mode    string `yaml:"mode,omitempty"`

	// endpoint, midpoint
	Side    string `yaml:"side,omitempty"`
	Require string `yaml:"require,omitempty"`

	// category: label pairs, by value or region name
	Pairs       [][2]int    `yaml:"pairs,omitempty"`
	RegionPairs [][2]string `yaml:"regionPairs,omitempty"`

	// length, in mm; Max 0 means unbounded
	Min float64 `yaml:"min,omitempty"`
	Max float64 `yaml:"max,omitempty"`
}

// SegmentSpec selects the streamlines satisfying every All criterion, at
// least one Any criterion (when given), and no None criterion.
type SegmentSpec struct {
	Name string   `yaml:"name"`
	All  []string `yaml:"all,omitempty"`
	Any  []string `yaml:"any,omitempty"`
	None []string `yaml:"none,omitempty"`
}

// Parse decodes and validates a recipe document.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errors.Wrap(err, "parse recipe")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Load reads and parses the recipe at path.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read recipe %s", path)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "recipe %s", path)
	}
	return r, nil
}

// Validate checks names, types and references. ROIs may only reference ROIs
// declared before them, so declarations are acyclic.
func (r *Recipe) Validate() error {
	rois := make(map[string]bool, len(r.ROIs))
	for i, s := range r.ROIs {
		if s.Name == "" {
			return errors.Errorf("rois[%d]: name is required", i)
		}
		if rois[s.Name] {
			return errors.Errorf("rois[%d]: duplicate name %q", i, s.Name)
		}
		if err := s.validate(rois); err != nil {
			return errors.Wrapf(err, "roi %q", s.Name)
		}
		rois[s.Name] = true
	}

	crits := make(map[string]bool, len(r.Criteria))
	for i, c := range r.Criteria {
		if c.Name == "" {
			return errors.Errorf("criteria[%d]: name is required", i)
		}
		if crits[c.Name] {
			return errors.Errorf("criteria[%d]: duplicate name %q", i, c.Name)
		}
		if err := c.validate(rois); err != nil {
			return errors.Wrapf(err, "criterion %q", c.Name)
		}
		crits[c.Name] = true
	}

	if len(r.Segments) == 0 {
		return errors.New("recipe declares no segments")
	}
	segs := make(map[string]bool, len(r.Segments))
	for i, s := range r.Segments {
		if s.Name == "" {
			return errors.Errorf("segments[%d]: name is required", i)
		}
		if segs[s.Name] {
			return errors.Errorf("segments[%d]: duplicate name %q", i, s.Name)
		}
		if len(s.All)+len(s.Any)+len(s.None) == 0 {
			return errors.Errorf("segment %q: no criteria", s.Name)
		}
		for _, list := range [][]string{s.All, s.Any, s.None} {
			for _, ref := range list {
				if !crits[ref] {
					return errors.Errorf("segment %q: unknown criterion %q", s.Name, ref)
				}
			}
		}
		segs[s.Name] = true
	}
	return nil
}

func (s ROISpec) validate(known map[string]bool) error {
	ref := func(name, field string) error {
		if name == "" {
			return errors.Errorf("%s is required", field)
		}
		if !known[name] {
			return errors.Errorf("%s references unknown or later roi %q", field, name)
		}
		return nil
	}

	switch s.Type {
	case ROIPlane:
		if s.Axis == "" {
			return errors.New("axis is required")
		}
	case ROISphere:
		if len(s.Center) != 3 {
			return errors.Errorf("center needs 3 coordinates, got %d", len(s.Center))
		}
	case ROILabel:
		if len(s.Labels)+len(s.Regions) == 0 {
			return errors.New("labels or regions are required")
		}
	case ROIBorder:
		if len(s.Labels)+len(s.Regions) != 1 {
			return errors.New("border needs exactly one label or region")
		}
		if s.Border == "" {
			return errors.New("border is required")
		}
	case ROICut:
		if err := ref(s.Source, "source"); err != nil {
			return err
		}
		if err := ref(s.Knife, "knife"); err != nil {
			return err
		}
		if s.Keep == "" {
			return errors.New("keep is required")
		}
	case ROIUnion, ROIIntersect, ROISubtract:
		if len(s.Inputs) < 2 {
			return errors.Errorf("%s needs at least 2 inputs", s.Type)
		}
		for _, in := range s.Inputs {
			if err := ref(in, "inputs"); err != nil {
				return err
			}
		}
	default:
		return errors.Errorf("unknown roi type %q", s.Type)
	}
	return nil
}

func (c CriterionSpec) validate(rois map[string]bool) error {
	switch c.Type {
	case CriterionROI, CriterionEndpoint, CriterionMidpoint:
		if c.ROI == "" {
			return errors.New("roi is required")
		}
		if !rois[c.ROI] {
			return errors.Errorf("unknown roi %q", c.ROI)
		}
		if c.Type != CriterionROI && c.Side == "" {
			return errors.New("side is required")
		}
		if c.Type == CriterionEndpoint && c.Require == "" {
			return errors.New("require is required")
		}
	case CriterionCategory:
		if len(c.Pairs)+len(c.RegionPairs) == 0 {
			return errors.New("pairs or regionPairs are required")
		}
	case CriterionLength:
		if c.Min < 0 || (c.Max > 0 && c.Max < c.Min) {
			return errors.Errorf("invalid length range [%g, %g]", c.Min, c.Max)
		}
	default:
		return errors.Errorf("unknown criterion type %q", c.Type)
	}
	return nil
}
