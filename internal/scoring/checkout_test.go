package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bogeyNumbers = []int{159, 162, 163, 165, 166, 168, 169}

func TestSuggestKnownRoutes(t *testing.T) {
	cases := map[int]string{
		170: "T20 T20 Bull",
		167: "T20 T19 Bull",
		160: "T20 T20 D20",
		100: "T20 D20",
		50:  "Bull",
		40:  "D20",
		3:   "1 D1",
		2:   "D1",
	}
	for remaining, want := range cases {
		got, ok := Suggest(remaining)
		require.True(t, ok, "remaining %d", remaining)
		assert.Equal(t, want, got, "remaining %d", remaining)
	}
}

func TestSuggestOutsideDomain(t *testing.T) {
	for _, remaining := range append([]int{-5, 0, 1, 171, 501}, bogeyNumbers...) {
		_, ok := Suggest(remaining)
		assert.False(t, ok, "remaining %d", remaining)
	}
}

func TestSuggestionsCoverEveryFinish(t *testing.T) {
	assert.Len(t, suggestions, MaxCheckout-1-len(bogeyNumbers))
}

func TestSuggestionsAreLegalCheckouts(t *testing.T) {
	for remaining := 2; remaining <= MaxCheckout; remaining++ {
		darts, ok := SuggestDarts(remaining)
		if !ok {
			assert.Contains(t, bogeyNumbers, remaining)
			continue
		}
		res, err := Evaluate(remaining, darts, true)
		require.NoError(t, err, "remaining %d", remaining)
		assert.True(t, res.IsCheckout(), "remaining %d route %s", remaining, Route(darts))
	}
}
