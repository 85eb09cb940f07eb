// Package models holds the JSON documents exchanged with external loaders:
// grid headers, atlas volumes, tractograms and run reports.
package models

import (
	"encoding/json"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"

	"tractseg/pkg/atlas"
	"tractseg/pkg/grid"
)

// GridHeader describes a reference volume
type GridHeader struct {
	// Dims is the voxel count along i, j, k
	Dims [3]int `json:"dims"`

	// Affine maps voxel indices to world millimeters, row-major 4x4
	Affine [4][4]float64 `json:"affine"`
}

// Grid builds the voxel grid the header describes.
func (h GridHeader) Grid() (*grid.Grid, error) {
	data := make([]float64, 0, 16)
	for _, row := range h.Affine {
		data = append(data, row[:]...)
	}
	return grid.New(h.Dims, mat.NewDense(4, 4, data))
}

// HeaderFromGrid returns the header describing g.
func HeaderFromGrid(g *grid.Grid) GridHeader {
	h := GridHeader{Dims: g.Dims()}
	a := g.Affine()
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			h.Affine[r][c] = a.At(r, c)
		}
	}
	return h
}

// AtlasDocument is a labeled volume
type AtlasDocument struct {
	// Grid is the header of the labeled volume
	Grid GridHeader `json:"grid"`

	// Labels holds one value per voxel, i fastest then j then k
	Labels []int `json:"labels"`

	// Names optionally maps label values to region names
	Names map[int]string `json:"names,omitempty"`
}

// Atlas builds the atlas and its lookup table.
func (d AtlasDocument) Atlas() (*atlas.Atlas, atlas.LookupTable, error) {
	g, err := d.Grid.Grid()
	if err != nil {
		return nil, nil, err
	}
	a, err := atlas.New(g, d.Labels)
	if err != nil {
		return nil, nil, err
	}
	lut := make(atlas.LookupTable, len(d.Names))
	for l, n := range d.Names {
		lut[l] = n
	}
	return a, lut, nil
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("error decoding %s: %w", path, err)
	}
	return nil
}
