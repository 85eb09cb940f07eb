package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Segment status values
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Report is the result document of one run
type Report struct {
	// RunID identifies the run in logs and output
	RunID string `json:"run_id"`

	// Started is the wall-clock start time
	Started time.Time `json:"started"`

	// Streamlines is the size of the input tractogram
	Streamlines int `json:"streamlines"`

	// Segments holds one entry per recipe segment, in recipe order
	Segments []SegmentReport `json:"segments"`

	// Connectivity is present when an atlas was mapped
	Connectivity *ConnectivityReport `json:"connectivity,omitempty"`
}

// SegmentReport is the outcome of one named segmentation
type SegmentReport struct {
	Name   string `json:"name"`
	Status string `json:"status"`

	// Expression is the combined criteria in readable form
	Expression string `json:"expression,omitempty"`

	Count   int   `json:"count"`
	Indices []int `json:"indices,omitempty"`

	// Error names the failing operation and parameters when Status is failed
	Error string `json:"error,omitempty"`

	// LengthMM and Efficiency summarize the selected streamlines
	LengthMM   *Stats `json:"length_mm,omitempty"`
	Efficiency *Stats `json:"efficiency,omitempty"`
}

// Stats is a distribution summary
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// ConnectivityReport is the label-pair count summary
type ConnectivityReport struct {
	Symmetric bool     `json:"symmetric"`
	Labels    []int    `json:"labels"`
	Names     []string `json:"names"`
	Matrix    [][]int  `json:"matrix"`
	Buckets   []Bucket `json:"buckets"`
}

// Bucket is one non-empty label pair
type Bucket struct {
	A     int    `json:"a"`
	B     int    `json:"b"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Failed returns the number of failed segments.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Segments {
		if s.Status == StatusFailed {
			n++
		}
	}
	return n
}

// WriteJSON writes v to path, creating parent directories.
func WriteJSON(path string, v any, indent bool) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating output directory: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}
