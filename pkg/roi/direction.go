package roi

import (
	"strings"

	"tractseg/pkg/grid"
	"tractseg/pkg/segerr"
)

// Direction is an anatomical side. Each value resolves to a world axis and a
// sign; medial and lateral additionally need a reference x coordinate because
// their sign depends on the hemisphere.
type Direction int

const (
	Anterior Direction = iota
	Posterior
	Superior
	Inferior
	Left
	Right
	Medial
	Lateral
	Rostral
	Caudal
)

var directionNames = [...]string{
	Anterior:  "anterior",
	Posterior: "posterior",
	Superior:  "superior",
	Inferior:  "inferior",
	Left:      "left",
	Right:     "right",
	Medial:    "medial",
	Lateral:   "lateral",
	Rostral:   "rostral",
	Caudal:    "caudal",
}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return "invalid"
	}
	return directionNames[d]
}

// ParseDirection converts an anatomical side name into a Direction.
func ParseDirection(s string) (Direction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d, n := range directionNames {
		if n == name {
			return Direction(d), nil
		}
	}
	return 0, segerr.New("ParseDirection", segerr.ErrAxis, "%q is not an anatomical direction", s)
}

// Resolve returns the world axis and sign of d. reference is the x coordinate
// medial and lateral are judged from: medial points toward the midline
// (x = 0), lateral away from it. A reference on the midline is ambiguous.
func (d Direction) Resolve(reference float64) (grid.Axis, float64, error) {
	switch d {
	case Anterior, Rostral:
		return grid.Y, 1, nil
	case Posterior, Caudal:
		return grid.Y, -1, nil
	case Superior:
		return grid.Z, 1, nil
	case Inferior:
		return grid.Z, -1, nil
	case Right:
		return grid.X, 1, nil
	case Left:
		return grid.X, -1, nil
	case Medial, Lateral:
		if reference == 0 {
			return grid.X, 0, segerr.New("Direction.Resolve", segerr.ErrAxis,
				"%s is undefined on the midline", d)
		}
		sign := 1.0
		if reference > 0 {
			sign = -1
		}
		if d == Lateral {
			sign = -sign
		}
		return grid.X, sign, nil
	default:
		return 0, 0, segerr.New("Direction.Resolve", segerr.ErrAxis, "unknown direction %d", int(d))
	}
}
