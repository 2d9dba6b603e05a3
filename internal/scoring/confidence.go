package scoring

import (
	"math"

	"tsundoku/internal/catalog"
)

// confidenceBand maps a score interval onto a confidence interval. Within a
// band the mapping is linear; across bands it is monotonically non-decreasing.
type confidenceBand struct {
	scoreLow, scoreHigh float64
	confLow, confHigh   float64
}

// confidenceBands is the staircase that converts a 0-1 match score into a
// 0-100 confidence percentage. The top band deliberately caps at 99 so the
// system never claims certainty it does not have.
var confidenceBands = []confidenceBand{
	{0.97, 1.00, 99, 99},
	{0.94, 0.97, 90, 96},
	{0.87, 0.94, 80, 90},
	{0.75, 0.87, 65, 80},
	{0.60, 0.75, 50, 65},
	{0.40, 0.60, 30, 50},
	{0.20, 0.40, 15, 30},
	{0.00, 0.20, 0, 15},
}

// ConfidenceFromScore maps a 0-1 match score to a 0-100 confidence percentage
// through the documented staircase. A zero score always yields zero.
func ConfidenceFromScore(score float64) int {
	if score <= 0 {
		return 0
	}
	if score >= 1 {
		return 99
	}
	for _, band := range confidenceBands {
		if score >= band.scoreLow && score < band.scoreHigh {
			span := band.scoreHigh - band.scoreLow
			frac := (score - band.scoreLow) / span
			return int(math.Round(band.confLow + frac*(band.confHigh-band.confLow)))
		}
	}
	return 0
}

// Confidence computes the confidence percentage for an entry against the
// source title.
func Confidence(sourceTitle string, entry catalog.CatalogEntry) int {
	return ConfidenceFromScore(MatchScore(entry, sourceTitle))
}
