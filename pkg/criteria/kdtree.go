package criteria

import (
	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// voxelCenter is an ROI voxel center stored in the kd-tree.
type voxelCenter r3.Vec

// Compare implements the kdtree.Comparable interface
func (p voxelCenter) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(voxelCenter)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p voxelCenter) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p voxelCenter) Distance(c kdtree.Comparable) float64 {
	q := c.(voxelCenter)
	d := r3.Sub(r3.Vec(p), r3.Vec(q))
	return r3.Dot(d, d)
}

// voxelCenters satisfies kdtree.Interface
type voxelCenters []voxelCenter

func (p voxelCenters) Index(i int) kdtree.Comparable         { return p[i] }
func (p voxelCenters) Len() int                              { return len(p) }
func (p voxelCenters) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p voxelCenters) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(centerPlane{voxelCenters: p, Dim: d}, kdtree.MedianOfRandoms(centerPlane{voxelCenters: p, Dim: d}, 100))
}

// centerPlane implements kdtree.SortSlicer along one dimension.
type centerPlane struct {
	voxelCenters
	kdtree.Dim
}

func (p centerPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.voxelCenters[i].X < p.voxelCenters[j].X
	case 1:
		return p.voxelCenters[i].Y < p.voxelCenters[j].Y
	case 2:
		return p.voxelCenters[i].Z < p.voxelCenters[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p centerPlane) Slice(start, end int) kdtree.SortSlicer {
	return centerPlane{voxelCenters: p.voxelCenters[start:end], Dim: p.Dim}
}

func (p centerPlane) Swap(i, j int) {
	p.voxelCenters[i], p.voxelCenters[j] = p.voxelCenters[j], p.voxelCenters[i]
}

// nearIndex answers "is p within tol of any voxel center" queries. The tree
// is read-only once built and is shared by all workers.
type nearIndex struct {
	tree *kdtree.Tree
	box  r3.Box // voxel-center bounds grown by tol
	tol2 float64
}

func newNearIndex(points []r3.Vec, bounds r3.Box, tol float64) *nearIndex {
	centers := make(voxelCenters, len(points))
	for i, p := range points {
		centers[i] = voxelCenter(p)
	}
	grow := r3.Vec{X: tol, Y: tol, Z: tol}
	return &nearIndex{
		tree: kdtree.New(centers, false),
		box:  r3.Box{Min: r3.Sub(bounds.Min, grow), Max: r3.Add(bounds.Max, grow)},
		tol2: tol * tol,
	}
}

// overlaps reports whether b intersects the grown ROI box.
func (n *nearIndex) overlaps(b r3.Box) bool {
	return b.Min.X <= n.box.Max.X && b.Max.X >= n.box.Min.X &&
		b.Min.Y <= n.box.Max.Y && b.Max.Y >= n.box.Min.Y &&
		b.Min.Z <= n.box.Max.Z && b.Max.Z >= n.box.Min.Z
}

// near reports whether p lies within tol of a voxel center. Points outside
// the grown box are rejected without a tree query.
func (n *nearIndex) near(p r3.Vec) bool {
	if p.X < n.box.Min.X || p.X > n.box.Max.X ||
		p.Y < n.box.Min.Y || p.Y > n.box.Max.Y ||
		p.Z < n.box.Min.Z || p.Z > n.box.Max.Z {
		return false
	}
	_, d2 := n.tree.Nearest(voxelCenter(p))
	return d2 <= n.tol2
}
