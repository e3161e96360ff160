// Package scoring implements X01 dart scoring: dart values, visit evaluation
// and checkout suggestions. It performs no I/O.
package scoring

import (
	"errors"
	"fmt"
	"strconv"
)

// Faces outside the 1..20 ring.
const (
	Miss = 0
	Bull = 25
)

// Multiplier is the ring a dart landed in.
type Multiplier int

const (
	Single Multiplier = 1
	Double Multiplier = 2
	Treble Multiplier = 3
)

var ErrInvalidDart = errors.New("invalid dart value")

// Dart is a single throw.
type Dart struct {
	Face       int        `json:"face"`
	Multiplier Multiplier `json:"multiplier"`
}

// Validate checks the face/multiplier combination.
func (d Dart) Validate() error {
	switch {
	case d.Face == Miss:
		if d.Multiplier < Single || d.Multiplier > Treble {
			return fmt.Errorf("%w: multiplier %d", ErrInvalidDart, d.Multiplier)
		}
	case d.Face >= 1 && d.Face <= 20:
		if d.Multiplier < Single || d.Multiplier > Treble {
			return fmt.Errorf("%w: multiplier %d", ErrInvalidDart, d.Multiplier)
		}
	case d.Face == Bull:
		if d.Multiplier != Single && d.Multiplier != Double {
			return fmt.Errorf("%w: bull cannot be multiplied by %d", ErrInvalidDart, d.Multiplier)
		}
	default:
		return fmt.Errorf("%w: face %d", ErrInvalidDart, d.Face)
	}
	return nil
}

// Normalize gives a miss sent without a multiplier the single ring, so
// {"face":0} is accepted as a miss.
func (d Dart) Normalize() Dart {
	if d.Face == Miss && d.Multiplier == 0 {
		d.Multiplier = Single
	}
	return d
}

// Value is the points scored by the dart. Callers validate first.
func (d Dart) Value() int {
	if d.Face == Miss {
		return 0
	}
	return d.Face * int(d.Multiplier)
}

// IsDouble reports whether the dart satisfies a double-out finish.
func (d Dart) IsDouble() bool {
	return d.Face != Miss && d.Multiplier == Double
}

// String renders the dart the way scorers call it: "T20", "D16", "7",
// "25" for the outer bull and "Bull" for the double bull.
func (d Dart) String() string {
	switch {
	case d.Face == Miss:
		return "Miss"
	case d.Face == Bull && d.Multiplier == Double:
		return "Bull"
	case d.Multiplier == Double:
		return "D" + strconv.Itoa(d.Face)
	case d.Multiplier == Treble:
		return "T" + strconv.Itoa(d.Face)
	default:
		return strconv.Itoa(d.Face)
	}
}

// Route joins the scoring darts of a visit, dropping misses.
func Route(darts []Dart) string {
	out := ""
	for _, d := range darts {
		if d.Face == Miss {
			continue
		}
		if out != "" {
			out += " "
		}
		out += d.String()
	}
	return out
}
