package roi

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/atlas"
	"tractseg/pkg/grid"
	"tractseg/pkg/segerr"
)

// PlaneAt returns the full slice at index along voxel axis va.
func PlaneAt(g *grid.Grid, va grid.Axis, index int) (*ROI, error) {
	if !va.Valid() {
		return nil, segerr.New("PlaneAt", segerr.ErrAxis, "unknown voxel axis %d", int(va))
	}
	if n := g.Dims()[va]; index < 0 || index >= n {
		return nil, segerr.New("PlaneAt", segerr.ErrOutOfBounds,
			"slice %d outside [0,%d) on voxel axis %s", index, n, va)
	}

	mask := make([]bool, g.Len())
	for n := range mask {
		if g.Unflat(n).Along(va) == index {
			mask[n] = true
		}
	}
	return fromMask(g, mask).onPlane(&slice{axis: va, index: index}), nil
}

// Planar returns the plane perpendicular to world axis at the grid slice
// nearest coordinate. A coordinate mapping outside the grid is an error.
func Planar(g *grid.Grid, coordinate float64, axis grid.Axis) (*ROI, error) {
	if !axis.Valid() {
		return nil, segerr.New("Planar", segerr.ErrAxis, "unknown axis %d", int(axis))
	}

	// Any point with the requested world coordinate will do; use the grid
	// center for the other two components.
	dims := g.Dims()
	p := g.VoxelToWorld(grid.Index{I: dims[0] / 2, J: dims[1] / 2, K: dims[2] / 2})
	switch axis {
	case grid.X:
		p.X = coordinate
	case grid.Y:
		p.Y = coordinate
	case grid.Z:
		p.Z = coordinate
	}

	va, _ := g.VoxelAxis(axis)
	c := g.ContinuousIndex(p)
	index := int(math.Round(grid.Component(c, va)))
	if index < 0 || index >= dims[va] {
		return nil, segerr.New("Planar", segerr.ErrOutOfBounds,
			"%s = %.2f maps to slice %d outside [0,%d)", axis, coordinate, index, dims[va])
	}
	return PlaneAt(g, va, index)
}

// Sphere returns every voxel whose center lies within radius of center. A
// zero radius selects exactly the voxel containing center. A positive radius
// smaller than the distance to the nearest voxel center yields an empty ROI
// when center is in the grid.
func Sphere(g *grid.Grid, center r3.Vec, radius float64) (*ROI, error) {
	if radius < 0 || math.IsNaN(radius) {
		return nil, segerr.New("Sphere", segerr.ErrInvalidArgument, "radius %g", radius)
	}

	dims := g.Dims()
	spacing := g.Spacing()
	minSpacing := math.Min(spacing[0], math.Min(spacing[1], spacing[2]))
	reach := radius/minSpacing + 1
	c := g.ContinuousIndex(center)

	lo := [3]int{}
	hi := [3]int{}
	for a, v := range [3]float64{c.X, c.Y, c.Z} {
		lo[a] = max(0, int(math.Floor(v-reach)))
		hi[a] = min(dims[a]-1, int(math.Ceil(v+reach)))
	}

	mask := make([]bool, g.Len())
	found := false
	r2 := radius * radius
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				idx := grid.Index{I: i, J: j, K: k}
				d := r3.Sub(g.VoxelToWorld(idx), center)
				if r3.Dot(d, d) <= r2 {
					mask[g.Flat(idx)] = true
					found = true
				}
			}
		}
	}

	idx, inGrid := g.Lookup(center)
	if radius == 0 && inGrid {
		mask[g.Flat(idx)] = true
		found = true
	}

	if !found && !inGrid {
		return nil, segerr.New("Sphere", segerr.ErrOutOfBounds,
			"sphere at (%.2f, %.2f, %.2f) radius %.2f lies outside the grid", center.X, center.Y, center.Z, radius)
	}
	return fromMask(g, mask), nil
}

// FromLabel returns the voxels whose atlas value equals label. A label with
// no voxel yields an empty ROI.
func FromLabel(a *atlas.Atlas, label int) *ROI {
	return FromLabels(a, label)
}

// FromLabels returns the union of the voxels carrying any of labels.
func FromLabels(a *atlas.Atlas, labels ...int) *ROI {
	want := make(map[int]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}

	g := a.Grid()
	mask := make([]bool, g.Len())
	for n := range mask {
		if want[a.AtFlat(n)] {
			mask[n] = true
		}
	}
	return fromMask(g, mask)
}

// BorderPlane returns the full plane at the border of label's region in
// direction border, e.g. the top-most slice of the thalamus for Superior.
// Planes defined relative to anatomy this way carry over between subjects
// without hand-picked coordinates.
func BorderPlane(a *atlas.Atlas, label int, border Direction) (*ROI, error) {
	region := FromLabel(a, label)
	if region.IsEmpty() {
		return nil, &segerr.LabelNotFoundError{Labels: []int{label}}
	}
	return PlaneAtBorder(region, border)
}

// PlaneAtBorder returns the full plane through the extreme slice of r in
// direction border.
func PlaneAtBorder(r *ROI, border Direction) (*ROI, error) {
	if r.IsEmpty() {
		return nil, segerr.New("PlaneAtBorder", segerr.ErrEmptyROI, "")
	}

	box, _ := r.WorldBounds()
	ref := 0.5 * (box.Min.X + box.Max.X)
	w, sign, err := border.Resolve(ref)
	if err != nil {
		return nil, err
	}

	g := r.Grid()
	va, vsign := g.VoxelAxis(w)
	lo, hi, _ := r.Extent(va)
	index := lo
	if sign*vsign > 0 {
		index = hi
	}
	return PlaneAt(g, va, index)
}
