// Package tractogram holds streamlines: ordered sequences of world-space
// points produced by an external tractography algorithm.
package tractogram

import (
	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/segerr"
)

// Streamline is an ordered sequence of world coordinates. The node order
// encodes the traversal path but the choice of first and last node is not
// meaningful.
type Streamline struct {
	nodes []r3.Vec
}

// NewStreamline wraps nodes without copying; the caller must not modify them
// afterwards.
func NewStreamline(nodes []r3.Vec) Streamline {
	return Streamline{nodes: nodes}
}

// Len returns the number of nodes.
func (s Streamline) Len() int { return len(s.nodes) }

// Node returns node i.
func (s Streamline) Node(i int) r3.Vec { return s.nodes[i] }

// First returns the first node.
func (s Streamline) First() r3.Vec { return s.nodes[0] }

// Last returns the last node.
func (s Streamline) Last() r3.Vec { return s.nodes[len(s.nodes)-1] }

// Nodes returns a copy of the nodes.
func (s Streamline) Nodes() []r3.Vec {
	out := make([]r3.Vec, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Bounds returns the axis-aligned box enclosing every node.
func (s Streamline) Bounds() r3.Box {
	if len(s.nodes) == 0 {
		return r3.Box{}
	}
	box := r3.Box{Min: s.nodes[0], Max: s.nodes[0]}
	for _, p := range s.nodes[1:] {
		box.Min = r3.Vec{X: min(box.Min.X, p.X), Y: min(box.Min.Y, p.Y), Z: min(box.Min.Z, p.Z)}
		box.Max = r3.Vec{X: max(box.Max.X, p.X), Y: max(box.Max.Y, p.Y), Z: max(box.Max.Z, p.Z)}
	}
	return box
}

// Reversed returns the streamline traversed from its last node to its first.
func (s Streamline) Reversed() Streamline {
	out := make([]r3.Vec, len(s.nodes))
	for i, p := range s.nodes {
		out[len(s.nodes)-1-i] = p
	}
	return Streamline{nodes: out}
}

// Tractogram is an indexed, ordered streamline collection. Index i refers to
// the same streamline for the lifetime of the value.
type Tractogram struct {
	streamlines []Streamline
}

// New builds a tractogram from streamlines. The slice is copied.
func New(streamlines []Streamline) *Tractogram {
	out := make([]Streamline, len(streamlines))
	copy(out, streamlines)
	return &Tractogram{streamlines: out}
}

// FromPoints builds a tractogram from raw node lists.
func FromPoints(points [][]r3.Vec) *Tractogram {
	out := make([]Streamline, len(points))
	for i, nodes := range points {
		out[i] = NewStreamline(nodes)
	}
	return &Tractogram{streamlines: out}
}

// Len returns the number of streamlines.
func (t *Tractogram) Len() int { return len(t.streamlines) }

// At returns streamline i.
func (t *Tractogram) At(i int) Streamline { return t.streamlines[i] }

// NodeCount returns the total number of nodes across all streamlines.
func (t *Tractogram) NodeCount() int {
	total := 0
	for _, s := range t.streamlines {
		total += s.Len()
	}
	return total
}

// Subset returns a new tractogram holding the streamlines at indices, in
// the order given.
func (t *Tractogram) Subset(indices []int) (*Tractogram, error) {
	out := make([]Streamline, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(t.streamlines) {
			return nil, segerr.New("Subset", segerr.ErrOutOfBounds,
				"index %d outside [0,%d)", idx, len(t.streamlines))
		}
		out[i] = t.streamlines[idx]
	}
	return &Tractogram{streamlines: out}, nil
}

// Validate checks that every streamline has at least two nodes and reports
// the first one that does not.
func (t *Tractogram) Validate(op string) error {
	for i, s := range t.streamlines {
		if s.Len() < 2 {
			return &segerr.ShapeMismatchError{Op: op, Index: i, NodeCount: s.Len()}
		}
	}
	return nil
}
