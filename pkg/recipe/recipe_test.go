package recipe

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/atlas"
	"tractseg/pkg/connectivity"
	"tractseg/pkg/grid"
	"tractseg/pkg/segerr"
	"tractseg/pkg/tractogram"
)

const testRecipe = `
name: frontal-occipital
rois:
  - name: front
    type: label
    regions: [frontal]
  - name: zmid
    type: plane
    axis: z
    coordinate: 5
  - name: front_sup
    type: cut
    source: front
    knife: zmid
    keep: superior
  - name: bad_cut
    type: cut
    source: zmid
    knife: zmid
    keep: superior
  - name: lobes
    type: union
    inputs: [front, front_sup]
criteria:
  - name: through_front_sup
    type: roi
    roi: front_sup
  - name: ends_superior
    type: endpoint
    roi: zmid
    side: superior
    require: both
  - name: frontal_occipital
    type: category
    regionPairs: [[occipital, frontal]]
  - name: long
    type: length
    min: 5
  - name: broken
    type: roi
    roi: bad_cut
segments:
  - name: fo
    all: [frontal_occipital, long]
    none: [ends_superior]
  - name: fo_superior
    all: [frontal_occipital, through_front_sup]
  - name: either
    any: [ends_superior, long]
  - name: broken_segment
    all: [broken, long]
`

func createTestGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.NewFromSpacing([3]int{10, 10, 10}, [3]float64{1, 1, 1}, r3.Vec{})
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

// createTestInputs labels x<3 frontal (3), x>6 occipital (7) and the top of
// the middle slab parietal (5).
func createTestInputs(t *testing.T) Inputs {
	t.Helper()
	g := createTestGrid(t)
	labels := make([]int, g.Len())
	for n := range labels {
		idx := g.Unflat(n)
		switch {
		case idx.I < 3:
			labels[n] = 3
		case idx.I > 6:
			labels[n] = 7
		case idx.J > 8:
			labels[n] = 5
		}
	}
	a, err := atlas.New(g, labels)
	if err != nil {
		t.Fatalf("Failed to create atlas: %v", err)
	}

	set := tractogram.FromPoints([][]r3.Vec{
		line(r3.Vec{X: 1, Y: 2, Z: 2}, r3.Vec{X: 8, Y: 2, Z: 2}, 10),
		line(r3.Vec{X: 8, Y: 4, Z: 8}, r3.Vec{X: 1, Y: 4, Z: 8}, 10),
		{{X: 1, Y: 1, Z: 1}, {X: 5, Y: 9, Z: 1}},
		{{X: 5, Y: 5, Z: 5}, {X: 5, Y: 5, Z: 9}},
	})
	return Inputs{
		Tractogram: set,
		Atlas:      a,
		Names:      atlas.LookupTable{3: "frontal", 5: "parietal", 7: "occipital"},
	}
}

func line(a, b r3.Vec, n int) []r3.Vec {
	out := make([]r3.Vec, n)
	for i := range out {
		f := float64(i) / float64(n-1)
		out[i] = r3.Add(a, r3.Scale(f, r3.Sub(b, a)))
	}
	return out
}

func mustParse(t *testing.T, doc string) *Recipe {
	t.Helper()
	r, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return r
}

func indices(t *testing.T, o *Outcome, name string) []int {
	t.Helper()
	s, ok := o.Segment(name)
	if !ok {
		t.Fatalf("Missing segment %q", name)
	}
	if s.Err != nil {
		t.Fatalf("Segment %q failed: %v", name, s.Err)
	}
	return s.Result.Indices()
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestRunSegments verifies selections and isolation of a failing segment
func TestRunSegments(t *testing.T) {
	rec := mustParse(t, testRecipe)
	runner := NewRunner(Options{Connectivity: connectivity.Params{Symmetric: true}}, nil)

	out, err := runner.Run(context.Background(), rec, createTestInputs(t))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.RunID == "" || out.Recipe != "frontal-occipital" {
		t.Errorf("Unexpected run metadata %q %q", out.RunID, out.Recipe)
	}
	if out.Mapping == nil || out.Mapping.Total() != 4 {
		t.Fatal("Expected a complete connectivity mapping")
	}

	cases := map[string][]int{
		"fo":          {0},
		"fo_superior": {1},
		"either":      {0, 1, 2},
	}
	for name, want := range cases {
		if got := indices(t, out, name); !equalInts(got, want) {
			t.Errorf("Segment %q: expected %v, got %v", name, want, got)
		}
	}

	broken, _ := out.Segment("broken_segment")
	if !errors.Is(broken.Err, segerr.ErrDegenerateCut) {
		t.Errorf("Expected degenerate cut, got %v", broken.Err)
	}
	if !strings.Contains(broken.Err.Error(), `roi "bad_cut"`) {
		t.Errorf("Expected the failing roi to be named, got %q", broken.Err.Error())
	}
	if len(out.Failed()) != 1 {
		t.Errorf("Expected exactly one failed segment, got %d", len(out.Failed()))
	}

	fo, _ := out.Segment("fo")
	if fo.Expression != "(frontal_occipital & long & !ends_superior)" {
		t.Errorf("Unexpected expression %q", fo.Expression)
	}
}

// TestRunWithoutAtlas verifies label-based declarations fail per segment
func TestRunWithoutAtlas(t *testing.T) {
	rec := mustParse(t, testRecipe)
	in := createTestInputs(t)
	in.Grid = in.Atlas.Grid()
	in.Atlas = nil

	out, err := NewRunner(Options{}, nil).Run(context.Background(), rec, in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Mapping != nil {
		t.Error("Expected no mapping without an atlas")
	}
	if got := indices(t, out, "either"); !equalInts(got, []int{0, 1, 2}) {
		t.Errorf("Expected the grid-only segment to run, got %v", got)
	}
	fo, _ := out.Segment("fo")
	if !errors.Is(fo.Err, segerr.ErrInvalidArgument) {
		t.Errorf("Expected missing atlas error, got %v", fo.Err)
	}
}

// TestRunRejectsMalformedInputs verifies the run aborts before evaluating
func TestRunRejectsMalformedInputs(t *testing.T) {
	rec := mustParse(t, testRecipe)
	runner := NewRunner(Options{}, nil)

	if _, err := runner.Run(context.Background(), rec, Inputs{}); !errors.Is(err, segerr.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument, got %v", err)
	}

	in := createTestInputs(t)
	in.Tractogram = tractogram.FromPoints([][]r3.Vec{{{X: 1, Y: 1, Z: 1}}})
	if _, err := runner.Run(context.Background(), rec, in); !errors.Is(err, segerr.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}

	in = createTestInputs(t)
	other, err := grid.NewFromSpacing([3]int{10, 10, 10}, [3]float64{2, 2, 2}, r3.Vec{})
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	in.Grid = other
	if _, err := runner.Run(context.Background(), rec, in); !errors.Is(err, segerr.ErrGridMismatch) {
		t.Errorf("Expected grid mismatch, got %v", err)
	}
}

// TestRunCancelled verifies a cancelled context stops between segments
func TestRunCancelled(t *testing.T) {
	rec := mustParse(t, testRecipe)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := NewRunner(Options{}, nil).Run(ctx, rec, createTestInputs(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected cancellation, got %v", err)
	}
	if len(out.Segments) != 0 {
		t.Errorf("Expected no segments to run, got %d", len(out.Segments))
	}
}

// TestParseValidation verifies declaration errors are caught at load time
func TestParseValidation(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown roi type", `
rois: [{name: a, type: cube}]
segments: [{name: s, all: [c]}]`, `unknown roi type "cube"`},
		{"forward reference", `
rois:
  - {name: a, type: cut, source: b, knife: b, keep: anterior}
  - {name: b, type: plane, axis: y}
segments: [{name: s, all: [c]}]`, `unknown or later roi "b"`},
		{"duplicate", `
rois:
  - {name: a, type: plane, axis: y}
  - {name: a, type: plane, axis: z}
segments: [{name: s, all: [c]}]`, `duplicate name "a"`},
		{"unknown criterion", `
criteria: [{name: c, type: length, min: 1}]
segments: [{name: s, all: [d]}]`, `unknown criterion "d"`},
		{"endpoint without require", `
rois: [{name: a, type: plane, axis: z}]
criteria: [{name: c, type: endpoint, roi: a, side: superior}]
segments: [{name: s, all: [c]}]`, "require is required"},
		{"no segments", `
criteria: [{name: c, type: length, min: 1}]`, "no segments"},
		{"bad length", `
criteria: [{name: c, type: length, min: 10, max: 5}]
segments: [{name: s, all: [c]}]`, "invalid length range"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("unexpected error:\ngot:  %q\nwant: %q", err.Error(), tc.want)
			}
		})
	}
}
