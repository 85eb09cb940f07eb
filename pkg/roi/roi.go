// Package roi builds regions of interest over a voxel grid and combines them.
//
// An ROI is a dense boolean mask aligned to a grid. ROIs are immutable: every
// constructor and combinator returns a new value, so a segmentation pipeline
// can share them freely between goroutines.
package roi

import (
	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/grid"
	"tractseg/pkg/segerr"
)

// ROI is an occupied-voxel mask on a grid.
type ROI struct {
	grid *grid.Grid
	mask []bool

	// voxels lists the occupied flat offsets in ascending order
	voxels []int

	// min and max bound the occupied voxel indices; meaningless when empty
	min, max grid.Index

	// plane is the slice the ROI was built on, nil for ROIs of free shape
	plane *slice
}

// slice names one grid slice: every voxel at index along axis.
type slice struct {
	axis  grid.Axis
	index int
}

// fromMask takes ownership of mask.
func fromMask(g *grid.Grid, mask []bool) *ROI {
	r := &ROI{grid: g, mask: mask}
	for n, on := range mask {
		if !on {
			continue
		}
		idx := g.Unflat(n)
		if len(r.voxels) == 0 {
			r.min, r.max = idx, idx
		} else {
			r.min = grid.Index{I: min(r.min.I, idx.I), J: min(r.min.J, idx.J), K: min(r.min.K, idx.K)}
			r.max = grid.Index{I: max(r.max.I, idx.I), J: max(r.max.J, idx.J), K: max(r.max.K, idx.K)}
		}
		r.voxels = append(r.voxels, n)
	}
	return r
}

// Empty returns an ROI with no occupied voxel.
func Empty(g *grid.Grid) *ROI {
	return fromMask(g, make([]bool, g.Len()))
}

// Grid returns the grid the ROI is aligned to.
func (r *ROI) Grid() *grid.Grid { return r.grid }

// Count returns the number of occupied voxels.
func (r *ROI) Count() int { return len(r.voxels) }

// IsEmpty reports whether no voxel is occupied.
func (r *ROI) IsEmpty() bool { return len(r.voxels) == 0 }

// Contains reports whether voxel idx is occupied. Out-of-grid indices are not.
func (r *ROI) Contains(idx grid.Index) bool {
	return r.grid.InBounds(idx) && r.mask[r.grid.Flat(idx)]
}

// Voxels returns the occupied voxel indices in x-fastest order.
func (r *ROI) Voxels() []grid.Index {
	out := make([]grid.Index, len(r.voxels))
	for i, n := range r.voxels {
		out[i] = r.grid.Unflat(n)
	}
	return out
}

// WorldPoints returns the world coordinates of the occupied voxel centers.
func (r *ROI) WorldPoints() []r3.Vec {
	out := make([]r3.Vec, len(r.voxels))
	for i, n := range r.voxels {
		out[i] = r.grid.VoxelToWorld(r.grid.Unflat(n))
	}
	return out
}

// Mask returns a copy of the dense mask in x-fastest order.
func (r *ROI) Mask() []bool {
	out := make([]bool, len(r.mask))
	copy(out, r.mask)
	return out
}

// Bounds returns the smallest and largest occupied index along each voxel
// axis. ok is false for an empty ROI.
func (r *ROI) Bounds() (lo, hi grid.Index, ok bool) {
	if r.IsEmpty() {
		return grid.Index{}, grid.Index{}, false
	}
	return r.min, r.max, true
}

// Extent returns the occupied index range along voxel axis a.
func (r *ROI) Extent(a grid.Axis) (lo, hi int, ok bool) {
	if r.IsEmpty() {
		return 0, 0, false
	}
	return r.min.Along(a), r.max.Along(a), true
}

// WorldBounds returns the world-space box spanned by the occupied voxel centers.
func (r *ROI) WorldBounds() (r3.Box, bool) {
	if r.IsEmpty() {
		return r3.Box{}, false
	}
	var box r3.Box
	for c := 0; c < 8; c++ {
		idx := r.min
		if c&1 != 0 {
			idx.I = r.max.I
		}
		if c&2 != 0 {
			idx.J = r.max.J
		}
		if c&4 != 0 {
			idx.K = r.max.K
		}
		p := r.grid.VoxelToWorld(idx)
		if c == 0 {
			box = r3.Box{Min: p, Max: p}
			continue
		}
		box.Min = r3.Vec{X: min(box.Min.X, p.X), Y: min(box.Min.Y, p.Y), Z: min(box.Min.Z, p.Z)}
		box.Max = r3.Vec{X: max(box.Max.X, p.X), Y: max(box.Max.Y, p.Y), Z: max(box.Max.Z, p.Z)}
	}
	return box, true
}

// onPlane records p as the slice r lies in and returns r.
func (r *ROI) onPlane(p *slice) *ROI {
	if p != nil && !r.IsEmpty() {
		r.plane = &slice{axis: p.axis, index: p.index}
	}
	return r
}

// PlaneAxis reports the voxel axis the ROI is a plane across and the index
// of that slice. ROIs built by PlaneAt, Planar or PlaneAtBorder keep their
// construction axis through Cut, Intersect and Subtract, even when the
// remaining voxels are also thin along another axis. Other ROIs count as
// planes only when exactly one axis is one voxel thick, so single voxels and
// lines are not planes.
func (r *ROI) PlaneAxis() (axis grid.Axis, index int, ok bool) {
	if r.IsEmpty() {
		return 0, 0, false
	}
	if r.plane != nil {
		return r.plane.axis, r.plane.index, true
	}
	thin := 0
	for _, a := range []grid.Axis{grid.X, grid.Y, grid.Z} {
		if r.min.Along(a) == r.max.Along(a) {
			thin++
			axis, index = a, r.min.Along(a)
		}
	}
	if thin != 1 {
		return 0, 0, false
	}
	return axis, index, true
}

// PlaneCoordinate returns the world axis a planar ROI is perpendicular to and
// its world coordinate along that axis. Non-planar ROIs yield an axis error.
func (r *ROI) PlaneCoordinate() (grid.Axis, float64, error) {
	if r.IsEmpty() {
		return 0, 0, segerr.New("PlaneCoordinate", segerr.ErrEmptyROI, "")
	}
	va, _, ok := r.PlaneAxis()
	if !ok {
		return 0, 0, segerr.New("PlaneCoordinate", segerr.ErrAxis,
			"roi spanning %v..%v is not a plane", r.min, r.max)
	}
	w := worldAxisOf(r.grid, va)
	return w, grid.Component(r.grid.VoxelToWorld(r.grid.Unflat(r.voxels[0])), w), nil
}

// worldAxisOf returns the world axis paired with voxel axis va.
func worldAxisOf(g *grid.Grid, va grid.Axis) grid.Axis {
	for _, w := range []grid.Axis{grid.X, grid.Y, grid.Z} {
		if v, _ := g.VoxelAxis(w); v == va {
			return w
		}
	}
	return va
}
