package scoring

import (
	"math"
	"strconv"
)

// Average is the three-dart average rounded to one decimal, 0 before any
// dart is thrown.
func Average(totalScored, dartsThrown int) float64 {
	if dartsThrown <= 0 {
		return 0
	}
	avg := float64(totalScored) / (float64(dartsThrown) / MaxDartsPerVisit)
	return math.Round(avg*10) / 10
}

// FormatAverage renders an average with one decimal place.
func FormatAverage(totalScored, dartsThrown int) string {
	return strconv.FormatFloat(Average(totalScored, dartsThrown), 'f', 1, 64)
}
