package scoring

import "slices"

// MaxCheckout is the highest score that can be finished in one visit.
const MaxCheckout = 170

var (
	setupDarts  = buildSetupDarts()
	suggestions = buildSuggestions()
)

// Suggest returns a double-out route for remaining, or false when there is
// none (0, 1, above MaxCheckout, or one of the bogey numbers).
func Suggest(remaining int) (string, bool) {
	route, ok := suggestions[remaining]
	return route, ok
}

// SuggestDarts is Suggest in dart form.
func SuggestDarts(remaining int) ([]Dart, bool) {
	if remaining < 2 || remaining > MaxCheckout {
		return nil, false
	}
	return findCheckout(remaining)
}

func buildSuggestions() map[int]string {
	table := make(map[int]string, MaxCheckout)
	for remaining := 2; remaining <= MaxCheckout; remaining++ {
		if darts, ok := findCheckout(remaining); ok {
			table[remaining] = Route(darts)
		}
	}
	return table
}

// findCheckout prefers the fewest darts, then the highest-scoring first dart.
func findCheckout(remaining int) ([]Dart, bool) {
	if d, ok := finishing(remaining); ok {
		return []Dart{d}, true
	}
	for _, first := range setupDarts {
		if d, ok := finishing(remaining - first.Value()); ok {
			return []Dart{first, d}, true
		}
	}
	for _, first := range setupDarts {
		for _, second := range setupDarts {
			if d, ok := finishing(remaining - first.Value() - second.Value()); ok {
				return []Dart{first, second, d}, true
			}
		}
	}
	return nil, false
}

func finishing(remaining int) (Dart, bool) {
	switch {
	case remaining == 2*Bull:
		return Dart{Face: Bull, Multiplier: Double}, true
	case remaining >= 2 && remaining <= 40 && remaining%2 == 0:
		return Dart{Face: remaining / 2, Multiplier: Double}, true
	}
	return Dart{}, false
}

// buildSetupDarts lists every scoring dart, highest value first. Equal
// values prefer trebles, then singles, then doubles.
func buildSetupDarts() []Dart {
	darts := make([]Dart, 0, 62)
	for face := 1; face <= 20; face++ {
		darts = append(darts,
			Dart{Face: face, Multiplier: Single},
			Dart{Face: face, Multiplier: Double},
			Dart{Face: face, Multiplier: Treble},
		)
	}
	darts = append(darts, Dart{Face: Bull, Multiplier: Single}, Dart{Face: Bull, Multiplier: Double})

	rank := map[Multiplier]int{Treble: 0, Single: 1, Double: 2}
	slices.SortStableFunc(darts, func(a, b Dart) int {
		if a.Value() != b.Value() {
			return b.Value() - a.Value()
		}
		return rank[a.Multiplier] - rank[b.Multiplier]
	})
	return darts
}
