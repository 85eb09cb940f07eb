// Package grid describes the reference volume that every ROI and atlas is
// aligned to: its shape, voxel size and the affine mapping between voxel
// indices and world (scanner/ACPC) coordinates.
//
// World coordinates follow the RAS convention: +x points right, +y anterior
// and +z superior. Each world axis is associated with the voxel axis that
// dominates it in the affine, so flipped (e.g. LAS) or permuted storage
// orders are handled transparently.
package grid

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/segerr"
)

// Axis names one of the three principal axes.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// String returns the lowercase axis letter
func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	default:
		return "invalid"
	}
}

// Valid reports whether a is one of the three principal axes.
func (a Axis) Valid() bool {
	return a >= X && a <= Z
}

// ParseAxis converts "x", "y" or "z" (any case) into an Axis.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	default:
		return 0, segerr.New("ParseAxis", segerr.ErrAxis, "%q is not one of x, y, z", s)
	}
}

// Component returns the coordinate of p along a.
func Component(p r3.Vec, a Axis) float64 {
	switch a {
	case X:
		return p.X
	case Y:
		return p.Y
	default:
		return p.Z
	}
}

// Index is an integer voxel coordinate.
type Index struct {
	I, J, K int
}

// Along returns the index component on voxel axis a.
func (idx Index) Along(a Axis) int {
	switch a {
	case X:
		return idx.I
	case Y:
		return idx.J
	default:
		return idx.K
	}
}

// Grid is an immutable voxel grid. Construct it with New or NewFromSpacing.
type Grid struct {
	dims    [3]int
	spacing [3]float64

	// forward and inverse hold the top three rows of the affine and its inverse
	forward [3][4]float64
	inverse [3][4]float64

	// voxelAxis[w] is the voxel axis that dominates world axis w, axisSign[w] its direction
	voxelAxis [3]Axis
	axisSign  [3]float64
}

// New builds a grid from its dimensions and a 4x4 voxel-to-world affine.
// The affine must be invertible with a (0,0,0,1) last row.
func New(dims [3]int, affine *mat.Dense) (*Grid, error) {
	const op = "grid.New"

	for i, n := range dims {
		if n <= 0 {
			return nil, segerr.New(op, segerr.ErrInvalidArgument, "dimension %d is %d", i, n)
		}
	}

	r, c := affine.Dims()
	if r != 4 || c != 4 {
		return nil, segerr.New(op, segerr.ErrInvalidArgument, "affine is %dx%d, want 4x4", r, c)
	}
	if affine.At(3, 0) != 0 || affine.At(3, 1) != 0 || affine.At(3, 2) != 0 || affine.At(3, 3) != 1 {
		return nil, segerr.New(op, segerr.ErrInvalidArgument, "affine last row must be (0,0,0,1)")
	}

	var inv mat.Dense
	if err := inv.Inverse(affine); err != nil {
		return nil, segerr.New(op, segerr.ErrInvalidArgument, "affine is not invertible: %v", err)
	}

	g := &Grid{dims: dims}
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			g.forward[row][col] = affine.At(row, col)
			g.inverse[row][col] = inv.At(row, col)
		}
	}

	// Voxel size is the length of each affine column
	for col := 0; col < 3; col++ {
		v := r3.Vec{X: affine.At(0, col), Y: affine.At(1, col), Z: affine.At(2, col)}
		g.spacing[col] = r3.Norm(v)
		if !(g.spacing[col] > 0) || math.IsInf(g.spacing[col], 0) {
			return nil, segerr.New(op, segerr.ErrInvalidArgument, "voxel spacing along axis %d is %g", col, g.spacing[col])
		}
	}

	g.assignAxes()
	return g, nil
}

// NewFromSpacing builds an axis-aligned RAS grid with the given voxel spacing
// whose voxel (0,0,0) sits at origin.
func NewFromSpacing(dims [3]int, spacing [3]float64, origin r3.Vec) (*Grid, error) {
	affine := mat.NewDense(4, 4, []float64{
		spacing[0], 0, 0, origin.X,
		0, spacing[1], 0, origin.Y,
		0, 0, spacing[2], origin.Z,
		0, 0, 0, 1,
	})
	return New(dims, affine)
}

// assignAxes pairs every world axis with the voxel axis carrying the largest
// affine weight, preferring axes that are not yet taken.
func (g *Grid) assignAxes() {
	var taken [3]bool
	for w := 0; w < 3; w++ {
		best, bestAbs := -1, -1.0
		for v := 0; v < 3; v++ {
			if taken[v] {
				continue
			}
			if a := math.Abs(g.forward[w][v]); a > bestAbs {
				best, bestAbs = v, a
			}
		}
		taken[best] = true
		g.voxelAxis[w] = Axis(best)
		g.axisSign[w] = 1
		if g.forward[w][best] < 0 {
			g.axisSign[w] = -1
		}
	}
}

// Dims returns (nx, ny, nz).
func (g *Grid) Dims() [3]int { return g.dims }

// Spacing returns the voxel size along each voxel axis.
func (g *Grid) Spacing() [3]float64 { return g.spacing }

// Len returns the number of voxels.
func (g *Grid) Len() int { return g.dims[0] * g.dims[1] * g.dims[2] }

// Affine returns a copy of the voxel-to-world affine.
func (g *Grid) Affine() *mat.Dense {
	a := mat.NewDense(4, 4, nil)
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			a.Set(row, col, g.forward[row][col])
		}
	}
	a.Set(3, 3, 1)
	return a
}

// HalfDiagonal returns half the length of a voxel's diagonal.
func (g *Grid) HalfDiagonal() float64 {
	s := g.spacing
	return 0.5 * math.Sqrt(s[0]*s[0]+s[1]*s[1]+s[2]*s[2])
}

// VoxelAxis returns the voxel axis aligned with world axis w and the sign of
// the alignment (+1 when increasing index moves toward +w).
func (g *Grid) VoxelAxis(w Axis) (Axis, float64) {
	return g.voxelAxis[w], g.axisSign[w]
}

// Same reports whether two grids share dimensions and affine.
func (g *Grid) Same(o *Grid) bool {
	if g == o {
		return true
	}
	if g == nil || o == nil {
		return false
	}
	return g.dims == o.dims && g.forward == o.forward
}

// InBounds reports whether idx lies in [0,nx)x[0,ny)x[0,nz).
func (g *Grid) InBounds(idx Index) bool {
	return idx.I >= 0 && idx.I < g.dims[0] &&
		idx.J >= 0 && idx.J < g.dims[1] &&
		idx.K >= 0 && idx.K < g.dims[2]
}

// Flat returns the x-fastest linear offset of idx.
func (g *Grid) Flat(idx Index) int {
	return idx.K*g.dims[0]*g.dims[1] + idx.J*g.dims[0] + idx.I
}

// Unflat is the inverse of Flat.
func (g *Grid) Unflat(n int) Index {
	plane := g.dims[0] * g.dims[1]
	return Index{
		I: n % g.dims[0],
		J: (n % plane) / g.dims[0],
		K: n / plane,
	}
}

// VoxelToWorld returns the world coordinate of the center of voxel idx.
func (g *Grid) VoxelToWorld(idx Index) r3.Vec {
	return apply(&g.forward, float64(idx.I), float64(idx.J), float64(idx.K))
}

// ContinuousIndex maps a world point to fractional voxel coordinates.
func (g *Grid) ContinuousIndex(p r3.Vec) r3.Vec {
	return apply(&g.inverse, p.X, p.Y, p.Z)
}

// Lookup rounds p to the nearest voxel and reports whether it lies in the grid.
func (g *Grid) Lookup(p r3.Vec) (Index, bool) {
	c := g.ContinuousIndex(p)
	idx := Index{I: roundIndex(c.X), J: roundIndex(c.Y), K: roundIndex(c.Z)}
	return idx, g.InBounds(idx)
}

// WorldToVoxel rounds p to the nearest voxel index. Points outside the grid
// are reported as an out-of-bounds error, never clamped.
func (g *Grid) WorldToVoxel(p r3.Vec) (Index, error) {
	idx, ok := g.Lookup(p)
	if !ok {
		return idx, segerr.New("WorldToVoxel", segerr.ErrOutOfBounds,
			"point (%.2f, %.2f, %.2f) maps to voxel %v outside %v", p.X, p.Y, p.Z, idx, g.dims)
	}
	return idx, nil
}

func apply(m *[3][4]float64, x, y, z float64) r3.Vec {
	return r3.Vec{
		X: m[0][0]*x + m[0][1]*y + m[0][2]*z + m[0][3],
		Y: m[1][0]*x + m[1][1]*y + m[1][2]*z + m[1][3],
		Z: m[2][0]*x + m[2][1]*y + m[2][2]*z + m[2][3],
	}
}

// roundIndex rounds half away from zero.
func roundIndex(v float64) int {
	return int(math.Round(v))
}
