package scoring

import (
	"errors"
	"fmt"
)

// MaxDartsPerVisit is the number of darts a player throws in one visit.
const MaxDartsPerVisit = 3

var ErrInvalidVisit = errors.New("invalid visit")

// Outcome classifies a completed visit.
type Outcome string

const (
	OutcomeNormal   Outcome = "normal"
	OutcomeBust     Outcome = "bust"
	OutcomeCheckout Outcome = "checkout"
)

// Result is the evaluation of one visit against a remaining score.
type Result struct {
	Outcome         Outcome
	Darts           []Dart // darts that counted; trailing misses after the visit ended are dropped
	Total           int    // raw sum of the counted darts
	Scored          int    // points credited to the leg, 0 on bust
	RemainingBefore int
	RemainingAfter  int
}

func (r Result) IsBust() bool     { return r.Outcome == OutcomeBust }
func (r Result) IsCheckout() bool { return r.Outcome == OutcomeCheckout }

// Evaluate scores a visit of one to three darts.
//
// A visit ends on the dart that takes the remaining score to 1 or below.
// Misses after that dart are ignored; any scoring dart after it is rejected
// with ErrInvalidVisit, so evaluating the whole visit and evaluating dart by
// dart always agree.
func Evaluate(remainingBefore int, darts []Dart, doubleOut bool) (Result, error) {
	if remainingBefore < 0 {
		return Result{}, fmt.Errorf("%w: remaining score %d", ErrInvalidVisit, remainingBefore)
	}
	if len(darts) == 0 || len(darts) > MaxDartsPerVisit {
		return Result{}, fmt.Errorf("%w: %d darts", ErrInvalidVisit, len(darts))
	}

	counted := make([]Dart, 0, len(darts))
	total := 0
	ended := false
	for i, d := range darts {
		d = d.Normalize()
		if err := d.Validate(); err != nil {
			return Result{}, err
		}
		if ended {
			if d.Face != Miss {
				return Result{}, fmt.Errorf("%w: dart %d thrown after the visit ended", ErrInvalidVisit, i+1)
			}
			continue
		}
		counted = append(counted, d)
		total += d.Value()
		if remainingBefore-total <= 1 {
			ended = true
		}
	}

	res := Result{
		Darts:           counted,
		Total:           total,
		RemainingBefore: remainingBefore,
	}

	candidate := remainingBefore - total
	last := counted[len(counted)-1]
	switch {
	case candidate < 0, candidate == 1:
		res.Outcome = OutcomeBust
	case candidate == 0 && doubleOut && !last.IsDouble():
		res.Outcome = OutcomeBust
	case candidate == 0:
		res.Outcome = OutcomeCheckout
	default:
		res.Outcome = OutcomeNormal
	}

	if res.Outcome == OutcomeBust {
		res.RemainingAfter = remainingBefore
		return res, nil
	}
	res.Scored = total
	res.RemainingAfter = candidate
	return res, nil
}
