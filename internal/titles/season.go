package titles

import (
	"strings"
)

// SeasonMatch is the fixed similarity reported when two titles differ only by
// season/part numbering, signalling "same series, different entry."
const SeasonMatch = 0.95

// NoSeasonPattern is the sentinel returned when no numbering pattern relates
// the two titles.
const NoSeasonPattern = -1.0

// seasonMarkers are words that introduce season/part/volume/arc/cour
// numbering across the language variants the catalogs use.
var seasonMarkers = map[string]bool{
	"season": true, "seasons": true,
	"part": true, "parte": true,
	"vol": true, "volume": true,
	"arc": true,
	"cour": true, "cours": true,
	"saison": true, "temporada": true, "stagione": true, "staffel": true,
}

// romanNumerals covers the numbering range that actually shows up in series
// titles. "i" is excluded because it is a common English word.
var romanNumerals = map[string]bool{
	"ii": true, "iii": true, "iv": true, "v": true, "vi": true,
	"vii": true, "viii": true, "ix": true, "x": true, "xi": true, "xii": true,
}

var ordinalSuffixes = []string{"st", "nd", "rd", "th"}

// SeasonPattern detects season/part/volume/arc/cour numbering differences
// between two titles. When removing such tokens makes the titles identical it
// returns SeasonMatch; otherwise it returns NoSeasonPattern.
func SeasonPattern(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)
	if na == "" || nb == "" || na == nb {
		return NoSeasonPattern
	}

	sa := stripSeasonTokens(na)
	sb := stripSeasonTokens(nb)
	if sa == "" || sb == "" {
		return NoSeasonPattern
	}
	// Stripping numbering from one title must reproduce the other, or both
	// must strip down to the same base while at least one actually changed.
	if sa == nb || sb == na {
		return SeasonMatch
	}
	if sa == sb && (sa != na || sb != nb) {
		return SeasonMatch
	}
	return NoSeasonPattern
}

// stripSeasonTokens removes numbering tokens from a normalized title: marker
// words, ordinals, roman numerals, numbers adjacent to a marker, and a bare
// trailing number.
func stripSeasonTokens(normalized string) string {
	tokens := strings.Fields(normalized)
	kept := make([]string, 0, len(tokens))

	for i, tok := range tokens {
		switch {
		case seasonMarkers[tok]:
			continue
		case romanNumerals[tok]:
			continue
		case isOrdinal(tok):
			continue
		case isNumber(tok):
			// A number counts as season numbering when it sits next to a
			// marker token or closes the title ("Title 2").
			if i == len(tokens)-1 {
				continue
			}
			if i > 0 && seasonMarkers[tokens[i-1]] {
				continue
			}
			if i < len(tokens)-1 && seasonMarkers[tokens[i+1]] {
				continue
			}
			kept = append(kept, tok)
		default:
			kept = append(kept, tok)
		}
	}

	return strings.Join(kept, " ")
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// isOrdinal reports whether the token is an English ordinal like "2nd".
func isOrdinal(tok string) bool {
	for _, suffix := range ordinalSuffixes {
		if strings.HasSuffix(tok, suffix) && isNumber(strings.TrimSuffix(tok, suffix)) {
			return true
		}
	}
	return false
}
