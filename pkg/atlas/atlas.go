// Package atlas holds labeled volumes (parcellations) aligned to a grid.
package atlas

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/grid"
	"tractseg/pkg/segerr"
)

// Background is the label value of voxels that belong to no region.
const Background = 0

// Atlas is an immutable integer label volume stored x-fastest on its grid.
type Atlas struct {
	grid   *grid.Grid
	labels []int32
	counts map[int]int
}

// New wraps labels (one per voxel, x-fastest order) as an atlas on g.
// The slice is copied. Labels must lie in [0, math.MaxInt32].
func New(g *grid.Grid, labels []int) (*Atlas, error) {
	if len(labels) != g.Len() {
		return nil, segerr.New("atlas.New", segerr.ErrShapeMismatch,
			"got %d labels for a grid of %d voxels", len(labels), g.Len())
	}

	a := &Atlas{
		grid:   g,
		labels: make([]int32, len(labels)),
		counts: make(map[int]int),
	}
	for i, l := range labels {
		if l < Background || l > math.MaxInt32 {
			return nil, segerr.New("atlas.New", segerr.ErrInvalidArgument,
				"label %d at voxel %v outside [0,%d]", l, g.Unflat(i), math.MaxInt32)
		}
		a.labels[i] = int32(l)
		if l != Background {
			a.counts[l]++
		}
	}
	return a, nil
}

// Grid returns the grid the atlas is aligned to.
func (a *Atlas) Grid() *grid.Grid { return a.grid }

// At returns the label stored at idx. idx must be in bounds.
func (a *Atlas) At(idx grid.Index) int {
	return int(a.labels[a.grid.Flat(idx)])
}

// AtFlat returns the label stored at linear offset n.
func (a *Atlas) AtFlat(n int) int {
	return int(a.labels[n])
}

// LabelAtWorld returns the label of the voxel nearest p. The boolean is false
// when p falls outside the grid.
func (a *Atlas) LabelAtWorld(p r3.Vec) (int, bool) {
	idx, ok := a.grid.Lookup(p)
	if !ok {
		return Background, false
	}
	return a.At(idx), true
}

// Labels returns the sorted set of non-background labels present.
func (a *Atlas) Labels() []int {
	out := make([]int, 0, len(a.counts))
	for l := range a.counts {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Has reports whether at least one voxel carries label.
func (a *Atlas) Has(label int) bool {
	return a.counts[label] > 0
}

// VoxelCount returns the number of voxels carrying label.
func (a *Atlas) VoxelCount(label int) int {
	return a.counts[label]
}

// Relabel returns a new atlas with every label found in mapping replaced by
// its mapped value. Labels absent from mapping are kept unchanged. Mapping
// onto a label New rejects is an error.
func (a *Atlas) Relabel(mapping map[int]int) (*Atlas, error) {
	out := make([]int, len(a.labels))
	for i, l := range a.labels {
		if m, ok := mapping[int(l)]; ok {
			out[i] = m
		} else {
			out[i] = int(l)
		}
	}
	return New(a.grid, out)
}

// Renumber maps the present labels onto 1..n in ascending order, the compact
// numbering connectivity matrices are usually indexed by. The returned table
// maps each new label back to the original value's name in lut.
func (a *Atlas) Renumber(lut LookupTable) (*Atlas, LookupTable) {
	mapping := make(map[int]int)
	table := make(LookupTable)
	for i, l := range a.Labels() {
		mapping[l] = i + 1
		table[i+1] = lut.Name(l)
	}
	// 1..n always fits
	renumbered, _ := a.Relabel(mapping)
	return renumbered, table
}

// GroupBy merges labels into named groups (for example hemisphere x lobe
// "gross anatomy" categories). Groups are numbered 1..n in name order;
// labels not listed in any group become Background. A label listed in two
// groups is an error.
func (a *Atlas) GroupBy(groups map[string][]int) (*Atlas, LookupTable, error) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	mapping := make(map[int]int)
	table := make(LookupTable, len(names))
	for i, name := range names {
		id := i + 1
		table[id] = name
		for _, l := range groups[name] {
			if prev, dup := mapping[l]; dup && prev != id {
				return nil, nil, segerr.New("atlas.GroupBy", segerr.ErrInvalidArgument,
					"label %d assigned to both %q and %q", l, table[prev], name)
			}
			mapping[l] = id
		}
	}

	out := make([]int, len(a.labels))
	for i, l := range a.labels {
		out[i] = mapping[int(l)]
	}
	grouped, err := New(a.grid, out)
	if err != nil {
		return nil, nil, err
	}
	return grouped, table, nil
}

// LookupTable translates label values into human-readable names.
type LookupTable map[int]string

// Name returns the region name for label, or a generic placeholder.
func (t LookupTable) Name(label int) string {
	if name, ok := t[label]; ok {
		return name
	}
	if label == Background {
		return "unlabeled"
	}
	return fmt.Sprintf("label_%d", label)
}

// Find returns the label whose name is name.
func (t LookupTable) Find(name string) (int, bool) {
	for l, n := range t {
		if n == name {
			return l, true
		}
	}
	return 0, false
}
