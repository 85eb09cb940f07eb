package criteria

import (
	"strings"

	"tractseg/pkg/segerr"
)

// NodeMode selects which nodes of a streamline must lie near an ROI.
type NodeMode int

const (
	AnyNode   NodeMode = iota // at least one node
	AllNodes                  // every node
	EitherEnd                 // the first or the last node
	BothEnds                  // the first and the last node
)

var nodeModeNames = [...]string{"any", "all", "either_end", "both_ends"}

func (m NodeMode) String() string {
	if m < 0 || int(m) >= len(nodeModeNames) {
		return "unknown"
	}
	return nodeModeNames[m]
}

// ParseNodeMode accepts "any", "all", "either_end" and "both_ends". An empty
// string means AnyNode.
func ParseNodeMode(s string) (NodeMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AnyNode, nil
	}
	for i, name := range nodeModeNames {
		if s == name {
			return NodeMode(i), nil
		}
	}
	return 0, segerr.New("ParseNodeMode", segerr.ErrInvalidArgument, "unknown node mode %q", s)
}

// Require aggregates the side test of a streamline's two endpoints.
type Require int

const (
	Both    Require = iota // both endpoints on the side
	Either                 // at least one endpoint on the side
	One                    // exactly one endpoint on the side
	Neither                // no endpoint on the side
)

var requireNames = [...]string{"both", "either", "one", "neither"}

func (r Require) String() string {
	if r < 0 || int(r) >= len(requireNames) {
		return "unknown"
	}
	return requireNames[r]
}

// ParseRequire accepts "both", "either", "one" and "neither".
func ParseRequire(s string) (Require, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range requireNames {
		if s == name {
			return Require(i), nil
		}
	}
	return 0, segerr.New("ParseRequire", segerr.ErrInvalidArgument, "unknown endpoint requirement %q", s)
}

func (r Require) accept(first, last bool) bool {
	switch r {
	case Both:
		return first && last
	case Either:
		return first || last
	case One:
		return first != last
	case Neither:
		return !first && !last
	}
	return false
}
