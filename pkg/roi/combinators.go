package roi

import (
	"tractseg/pkg/segerr"
)

// Cut removes from r every voxel on the side of the knife plane not named by
// keep. The knife slice itself belongs to the portion facing the positive
// world direction (anterior, superior, right), so Cut(r, k, Anterior) and
// Cut(r, k, Posterior) partition r exactly.
func Cut(r, knife *ROI, keep Direction) (*ROI, error) {
	const op = "Cut"

	if !r.grid.Same(knife.grid) {
		return nil, segerr.New(op, segerr.ErrGridMismatch, "roi and knife are on different grids")
	}

	kv, kIndex, ok := knife.PlaneAxis()
	if !ok {
		return nil, segerr.New(op, segerr.ErrDegenerateCut, "knife is not a plane")
	}
	kw, ref, err := knife.PlaneCoordinate()
	if err != nil {
		return nil, err
	}

	w, sign, err := keep.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if w != kw {
		return nil, segerr.New(op, segerr.ErrAxisMismatch,
			"%s runs along %s but the knife is a %s plane", keep, w, kw)
	}

	if rv, _, planar := r.PlaneAxis(); planar && rv == kv {
		return nil, segerr.New(op, segerr.ErrDegenerateCut, "roi and knife are parallel %s planes", kw)
	}

	_, vsign := r.grid.VoxelAxis(kw)
	mask := make([]bool, len(r.mask))
	for _, n := range r.voxels {
		offset := vsign * float64(r.grid.Unflat(n).Along(kv)-kIndex)
		if (sign > 0 && offset >= 0) || (sign < 0 && offset < 0) {
			mask[n] = true
		}
	}

	out := fromMask(r.grid, mask).onPlane(r.plane)
	if out.IsEmpty() {
		return nil, segerr.New(op, segerr.ErrDegenerateCut, "no voxel of the roi lies %s of the knife", keep)
	}
	return out, nil
}

// Union returns the voxels occupied in r or o. The union of two ROIs built on
// the same slice stays a plane across that slice.
func (r *ROI) Union(o *ROI) (*ROI, error) {
	var p *slice
	if r.plane != nil && o.plane != nil && *r.plane == *o.plane {
		p = r.plane
	}
	return r.merge(o, "Union", p, func(a, b bool) bool { return a || b })
}

// Intersect returns the voxels occupied in both r and o.
func (r *ROI) Intersect(o *ROI) (*ROI, error) {
	p := r.plane
	if p == nil {
		p = o.plane
	}
	return r.merge(o, "Intersect", p, func(a, b bool) bool { return a && b })
}

// Subtract returns the voxels occupied in r but not in o.
func (r *ROI) Subtract(o *ROI) (*ROI, error) {
	return r.merge(o, "Subtract", r.plane, func(a, b bool) bool { return a && !b })
}

// merge combines the masks voxel by voxel; a non-nil plane is recorded on
// the result.
func (r *ROI) merge(o *ROI, op string, plane *slice, keep func(a, b bool) bool) (*ROI, error) {
	if !r.grid.Same(o.grid) {
		return nil, segerr.New(op, segerr.ErrGridMismatch, "rois are on different grids")
	}
	mask := make([]bool, len(r.mask))
	for n := range mask {
		mask[n] = keep(r.mask[n], o.mask[n])
	}
	return fromMask(r.grid, mask).onPlane(plane), nil
}
