package models

import (
	"gonum.org/v1/gonum/spatial/r3"

	"tractseg/pkg/tractogram"
)

// TractogramDocument holds streamlines as nested coordinate arrays
type TractogramDocument struct {
	// Streamlines lists each streamline's nodes as [x, y, z] world millimeters
	Streamlines [][][3]float64 `json:"streamlines"`
}

// Tractogram converts the document. Node counts are not checked here; the
// evaluators report short streamlines with their index.
func (d TractogramDocument) Tractogram() *tractogram.Tractogram {
	points := make([][]r3.Vec, len(d.Streamlines))
	for i, s := range d.Streamlines {
		nodes := make([]r3.Vec, len(s))
		for j, p := range s {
			nodes[j] = r3.Vec{X: p[0], Y: p[1], Z: p[2]}
		}
		points[i] = nodes
	}
	return tractogram.FromPoints(points)
}
