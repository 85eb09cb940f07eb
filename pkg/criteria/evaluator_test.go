package criteria

import (
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/internal/metrics"
	"tractseg/pkg/grid"
	"tractseg/pkg/roi"
	"tractseg/pkg/segerr"
	"tractseg/pkg/tractogram"
)

func createTestGrid(t *testing.T, n int) *grid.Grid {
	t.Helper()
	g, err := grid.NewFromSpacing([3]int{n, n, n}, [3]float64{1, 1, 1}, r3.Vec{})
	if err != nil {
		t.Fatalf("Failed to create grid: %v", err)
	}
	return g
}

// line samples n evenly spaced nodes from a to b.
func line(a, b r3.Vec, n int) []r3.Vec {
	out := make([]r3.Vec, n)
	for i := range out {
		f := float64(i) / float64(n-1)
		out[i] = r3.Add(a, r3.Scale(f, r3.Sub(b, a)))
	}
	return out
}

func mustPlane(t *testing.T, g *grid.Grid, c float64, a grid.Axis) *roi.ROI {
	t.Helper()
	p, err := roi.Planar(g, c, a)
	if err != nil {
		t.Fatalf("Failed to create plane: %v", err)
	}
	return p
}

func mustSphere(t *testing.T, g *grid.Grid, c r3.Vec, r float64) *roi.ROI {
	t.Helper()
	s, err := roi.Sphere(g, c, r)
	if err != nil {
		t.Fatalf("Failed to create sphere: %v", err)
	}
	return s
}

// sphereTractogram holds, in order: a streamline through the sphere at
// (5,5,5), two far away ones, and one passing close but outside tolerance.
func sphereTractogram() *tractogram.Tractogram {
	return tractogram.FromPoints([][]r3.Vec{
		line(r3.Vec{X: 0, Y: 5, Z: 5}, r3.Vec{X: 9, Y: 5, Z: 5}, 10),
		line(r3.Vec{X: 0, Y: 0, Z: 9}, r3.Vec{X: 2, Y: 0, Z: 9}, 3),
		line(r3.Vec{X: 0, Y: 8, Z: 5}, r3.Vec{X: 9, Y: 8, Z: 5}, 10),
		line(r3.Vec{X: 0, Y: 6.5, Z: 6.5}, r3.Vec{X: 9, Y: 6.5, Z: 6.5}, 10),
	})
}

// TestIntersectNegationLaw verifies want=true and want=false are complements
func TestIntersectNegationLaw(t *testing.T) {
	g := createTestGrid(t, 10)
	sphere := mustSphere(t, g, r3.Vec{X: 5, Y: 5, Z: 5}, 1)
	set := sphereTractogram()
	e := NewEvaluator(Params{}, nil)

	in, err := e.Intersect(set, sphere, true, AnyNode)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	out, err := e.Intersect(set, sphere, false, AnyNode)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}

	want := []bool{true, false, false, false}
	for i := range want {
		if in.At(i) != want[i] {
			t.Errorf("Streamline %d: expected %v, got %v", i, want[i], in.At(i))
		}
		if out.At(i) == in.At(i) {
			t.Errorf("Streamline %d: exclusion must be the complement of inclusion", i)
		}
	}
}

// TestIntersectPrunesDistantStreamlines verifies the bounding box rejection
func TestIntersectPrunesDistantStreamlines(t *testing.T) {
	g := createTestGrid(t, 10)
	sphere := mustSphere(t, g, r3.Vec{X: 5, Y: 5, Z: 5}, 1)
	e := NewEvaluator(Params{Workers: 2}, nil)

	before := testutil.ToFloat64(metrics.StreamlinesPrunedTotal)
	if _, err := e.Intersect(sphereTractogram(), sphere, true, AnyNode); err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if got := testutil.ToFloat64(metrics.StreamlinesPrunedTotal) - before; got != 2 {
		t.Errorf("Expected 2 pruned streamlines, got %v", got)
	}
}

// TestIntersectNodeModes verifies all-node and endpoint variants
func TestIntersectNodeModes(t *testing.T) {
	g := createTestGrid(t, 10)
	sphere := mustSphere(t, g, r3.Vec{X: 5, Y: 5, Z: 5}, 1)
	set := tractogram.FromPoints([][]r3.Vec{
		line(r3.Vec{X: 0, Y: 5, Z: 5}, r3.Vec{X: 9, Y: 5, Z: 5}, 10), // crosses
		line(r3.Vec{X: 5, Y: 5, Z: 4}, r3.Vec{X: 5, Y: 5, Z: 6}, 3),  // inside
		{{X: 5, Y: 5, Z: 5}, {X: 9, Y: 9, Z: 9}},                     // starts inside
	})
	e := NewEvaluator(Params{}, nil)

	cases := []struct {
		mode NodeMode
		want []bool
	}{
		{AnyNode, []bool{true, true, true}},
		{AllNodes, []bool{false, true, false}},
		{EitherEnd, []bool{false, true, true}},
		{BothEnds, []bool{false, true, false}},
	}
	for _, tc := range cases {
		res, err := e.Intersect(set, sphere, true, tc.mode)
		if err != nil {
			t.Fatalf("%s: Intersect failed: %v", tc.mode, err)
		}
		for i, w := range tc.want {
			if res.At(i) != w {
				t.Errorf("%s streamline %d: expected %v, got %v", tc.mode, i, w, res.At(i))
			}
		}
	}
}

// TestIntersectTolerance verifies near-miss streamlines depend on the tolerance
func TestIntersectTolerance(t *testing.T) {
	g := createTestGrid(t, 10)
	plane := mustPlane(t, g, 5, grid.Z)
	set := tractogram.FromPoints([][]r3.Vec{
		line(r3.Vec{X: 1, Y: 1, Z: 6.5}, r3.Vec{X: 8, Y: 8, Z: 6.5}, 8),
	})

	res, err := NewEvaluator(Params{}, nil).Intersect(set, plane, true, AnyNode)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if res.At(0) {
		t.Error("Expected no intersection at 1.5mm with the default tolerance")
	}

	wide := NewEvaluator(Params{Tolerance: 2}, nil)
	if wide.Tolerance(g) != 2 {
		t.Errorf("Expected tolerance 2, got %v", wide.Tolerance(g))
	}
	res, err = wide.Intersect(set, plane, true, AnyNode)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	if !res.At(0) {
		t.Error("Expected an intersection with a 2mm tolerance")
	}
}

// TestIntersectWorkerCountIndependent verifies results do not depend on partitioning
func TestIntersectWorkerCountIndependent(t *testing.T) {
	g := createTestGrid(t, 20)
	sphere := mustSphere(t, g, r3.Vec{X: 10, Y: 10, Z: 10}, 4)

	points := make([][]r3.Vec, 200)
	for i := range points {
		a := float64(i) * 0.37
		from := r3.Vec{X: 10 + 9*math.Cos(a), Y: 10 + 9*math.Sin(a), Z: float64(i % 20)}
		to := r3.Vec{X: 10 - 9*math.Cos(a*1.3), Y: 10 + 9*math.Sin(a*0.7), Z: float64((i * 7) % 20)}
		points[i] = line(from, to, 12)
	}
	set := tractogram.FromPoints(points)

	single, err := NewEvaluator(Params{Workers: 1}, nil).Intersect(set, sphere, true, AnyNode)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	multi, err := NewEvaluator(Params{Workers: 7}, nil).Intersect(set, sphere, true, AnyNode)
	if err != nil {
		t.Fatalf("Intersect failed: %v", err)
	}
	for i := 0; i < set.Len(); i++ {
		if single.At(i) != multi.At(i) {
			t.Fatalf("Streamline %d differs between worker counts", i)
		}
	}
	if single.Count() == 0 || single.Count() == set.Len() {
		t.Errorf("Expected a mixed selection, got %d of %d", single.Count(), set.Len())
	}
}

// TestEndpointScenario verifies both, either, one and neither against a z plane
func TestEndpointScenario(t *testing.T) {
	g := createTestGrid(t, 10)
	plane := mustPlane(t, g, 5, grid.Z)
	set := tractogram.FromPoints([][]r3.Vec{
		{{X: 2, Y: 2, Z: 8}, {X: 5, Y: 5, Z: 3}, {X: 7, Y: 7, Z: 8}},
		{{X: 2, Y: 2, Z: 8}, {X: 5, Y: 5, Z: 3}, {X: 7, Y: 7, Z: 2}},
		{{X: 2, Y: 2, Z: 1}, {X: 5, Y: 5, Z: 9}, {X: 7, Y: 7, Z: 2}},
	})
	e := NewEvaluator(Params{}, nil)

	cases := []struct {
		how  Require
		want []bool
	}{
		{Both, []bool{true, false, false}},
		{Either, []bool{true, true, false}},
		{One, []bool{false, true, false}},
		{Neither, []bool{false, false, true}},
	}
	for _, tc := range cases {
		res, err := e.Endpoint(set, plane, roi.Superior, tc.how)
		if err != nil {
			t.Fatalf("%s: Endpoint failed: %v", tc.how, err)
		}
		for i, w := range tc.want {
			if res.At(i) != w {
				t.Errorf("%s streamline %d: expected %v, got %v", tc.how, i, w, res.At(i))
			}
		}
	}
}

// TestEndpointOnPlaneIsNotBeyond verifies the side test is strict
func TestEndpointOnPlaneIsNotBeyond(t *testing.T) {
	g := createTestGrid(t, 10)
	plane := mustPlane(t, g, 5, grid.Z)
	set := tractogram.FromPoints([][]r3.Vec{{{X: 1, Y: 1, Z: 5}, {X: 2, Y: 2, Z: 5}}})

	res, err := NewEvaluator(Params{}, nil).Endpoint(set, plane, roi.Inferior, Neither)
	if err != nil {
		t.Fatalf("Endpoint failed: %v", err)
	}
	if !res.At(0) {
		t.Error("Endpoints on the plane should be on neither side")
	}
}

// TestEndpointPartialPlane verifies a plane cut down to one row still works as
// an endpoint plane
func TestEndpointPartialPlane(t *testing.T) {
	g := createTestGrid(t, 10)
	strip, err := roi.Cut(mustPlane(t, g, 5, grid.Z), mustPlane(t, g, 9, grid.Y), roi.Anterior)
	if err != nil {
		t.Fatalf("Cut failed: %v", err)
	}
	set := tractogram.FromPoints([][]r3.Vec{
		{{X: 2, Y: 2, Z: 8}, {X: 7, Y: 7, Z: 7}},
		{{X: 2, Y: 2, Z: 1}, {X: 7, Y: 7, Z: 8}},
	})

	res, err := NewEvaluator(Params{}, nil).Endpoint(set, strip, roi.Superior, Both)
	if err != nil {
		t.Fatalf("Endpoint failed: %v", err)
	}
	if !res.At(0) || res.At(1) {
		t.Errorf("Expected [true false], got [%v %v]", res.At(0), res.At(1))
	}
}

// TestMidpoint verifies odd and even node counts and orientation symmetry
func TestMidpoint(t *testing.T) {
	g := createTestGrid(t, 10)
	plane := mustPlane(t, g, 4.6, grid.X)
	streamlines := [][]r3.Vec{
		{{X: 1}, {X: 6}, {X: 2}},
		{{X: 1}, {X: 4}, {X: 7}, {X: 1}},
		{{X: 1}, {X: 4}, {X: 5}, {X: 1}},
	}
	want := []bool{true, true, false}

	reversed := make([]tractogram.Streamline, len(streamlines))
	for i, nodes := range streamlines {
		reversed[i] = tractogram.NewStreamline(nodes).Reversed()
	}

	e := NewEvaluator(Params{}, nil)
	fwd, err := e.Midpoint(tractogram.FromPoints(streamlines), plane, roi.Right)
	if err != nil {
		t.Fatalf("Midpoint failed: %v", err)
	}
	rev, err := e.Midpoint(tractogram.New(reversed), plane, roi.Right)
	if err != nil {
		t.Fatalf("Midpoint failed: %v", err)
	}
	for i, w := range want {
		if fwd.At(i) != w {
			t.Errorf("Streamline %d: expected %v, got %v", i, w, fwd.At(i))
		}
		if rev.At(i) != fwd.At(i) {
			t.Errorf("Streamline %d: reversal changed the midpoint result", i)
		}
	}

	if m := SequenceMidpoint(tractogram.NewStreamline(streamlines[1])); m.X != 5.5 {
		t.Errorf("Expected even midpoint x=5.5, got %v", m.X)
	}
	for i, nodes := range streamlines {
		fwd := SequenceMidpoint(tractogram.NewStreamline(nodes))
		if rev := SequenceMidpoint(reversed[i]); rev != fwd {
			t.Errorf("Streamline %d: midpoint %v became %v when reversed", i, fwd, rev)
		}
	}
}

// TestEvaluatorErrors verifies the failure taxonomy
func TestEvaluatorErrors(t *testing.T) {
	g := createTestGrid(t, 10)
	plane := mustPlane(t, g, 5, grid.Z)
	sphere := mustSphere(t, g, r3.Vec{X: 5, Y: 5, Z: 5}, 2)
	good := tractogram.FromPoints([][]r3.Vec{line(r3.Vec{}, r3.Vec{X: 9, Y: 9, Z: 9}, 5)})
	e := NewEvaluator(Params{}, nil)

	if _, err := e.Intersect(good, roi.Empty(g), true, AnyNode); !errors.Is(err, segerr.ErrEmptyROI) {
		t.Errorf("Expected empty roi error, got %v", err)
	}
	if _, err := e.Endpoint(good, roi.Empty(g), roi.Superior, Both); !errors.Is(err, segerr.ErrEmptyROI) {
		t.Errorf("Expected empty roi error, got %v", err)
	}
	if _, err := e.Endpoint(good, sphere, roi.Superior, Both); !errors.Is(err, segerr.ErrAxis) {
		t.Errorf("Expected axis error for a non-planar roi, got %v", err)
	}
	if _, err := e.Midpoint(good, plane, roi.Anterior); !errors.Is(err, segerr.ErrAxisMismatch) {
		t.Errorf("Expected axis mismatch, got %v", err)
	}

	short := tractogram.FromPoints([][]r3.Vec{
		line(r3.Vec{}, r3.Vec{X: 1}, 2),
		line(r3.Vec{}, r3.Vec{X: 1}, 2),
		{{X: 4, Y: 4, Z: 4}},
	})
	_, err := e.Intersect(short, sphere, true, AnyNode)
	var shape *segerr.ShapeMismatchError
	if !errors.As(err, &shape) || shape.Index != 2 {
		t.Errorf("Expected shape mismatch at index 2, got %v", err)
	}
	if _, err := e.Endpoint(short, plane, roi.Superior, Both); !errors.Is(err, segerr.ErrShapeMismatch) {
		t.Errorf("Expected shape mismatch, got %v", err)
	}
}

// TestParseModes verifies the string forms used by recipes
func TestParseModes(t *testing.T) {
	if m, err := ParseNodeMode(""); err != nil || m != AnyNode {
		t.Errorf("Expected default any, got %v %v", m, err)
	}
	if m, err := ParseNodeMode("Both_Ends"); err != nil || m != BothEnds {
		t.Errorf("Expected both_ends, got %v %v", m, err)
	}
	if _, err := ParseNodeMode("most"); !errors.Is(err, segerr.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
	if r, err := ParseRequire("neither"); err != nil || r != Neither {
		t.Errorf("Expected neither, got %v %v", r, err)
	}
	if _, err := ParseRequire(""); err == nil {
		t.Error("Expected error for empty requirement")
	}
}
