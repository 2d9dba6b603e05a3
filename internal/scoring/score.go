// Package scoring computes match scores and confidence percentages between a
// source title and catalog entries.
package scoring

import (
	"strings"

	"tsundoku/internal/catalog"
	"tsundoku/internal/titles"
)

const (
	// outOfOrderPenalty discounts word overlap when the shared words do not
	// preserve their relative order.
	outOfOrderPenalty = 0.7
	// prefixCreditLength is the minimum length for a word to earn partial
	// credit on a prefix-only match.
	prefixCreditLength = 4
	// prefixCredit is the partial credit granted for prefix matches.
	prefixCredit = 0.5
	// minWordAlignment is the fraction of search words that must align before
	// the word-match layer contributes at all.
	minWordAlignment = 0.75
	// containmentBase anchors the containment layer; coverage of the candidate
	// title scales the remainder.
	containmentBase = 0.75
)

// MatchScore returns the best similarity in [0,1] between the source title and
// any of the entry's titles or synonyms.
func MatchScore(entry catalog.CatalogEntry, sourceTitle string) float64 {
	best := 0.0
	for _, candidate := range entry.AllTitles() {
		if s := TitleSimilarity(sourceTitle, candidate); s > best {
			best = s
		}
		if best >= 1 {
			break
		}
	}
	return best
}

// TitleSimilarity compares two raw titles through the layered similarity
// function: exact/article-only equality, season numbering, containment of the
// whole search term, and ordered word overlap. The best layer wins.
func TitleSimilarity(sourceTitle, candidateTitle string) float64 {
	a := titles.Normalize(sourceTitle)
	b := titles.Normalize(candidateTitle)
	if a == "" || b == "" {
		return 0
	}
	if a == b || titles.DiffersOnlyByArticles(a, b) {
		return 1
	}
	if s := titles.SeasonPattern(a, b); s > 0 {
		return s
	}

	best := 0.0
	if strings.Contains(b, a) {
		// Weight by how much of the candidate the search term represents, so
		// "berserk" inside "berserk deluxe edition" outranks it inside a much
		// longer compilation title.
		coverage := float64(len(a)) / float64(len(b))
		best = containmentBase + (1-containmentBase)*coverage
	}
	if s := wordOverlap(a, b); s > best {
		best = s
	}
	if best > 1 {
		best = 1
	}
	return best
}

// wordOverlap scores token-level agreement between two normalized titles.
// Full-word matches earn full credit, prefix matches of sufficient length earn
// partial credit, and the layer only counts when enough of the search words
// align. Preserved relative word order keeps full credit; shuffled order is
// penalized.
func wordOverlap(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	used := make([]bool, len(wordsB))
	positions := make([]int, 0, len(wordsA))
	credit := 0.0
	aligned := 0

	for _, wa := range wordsA {
		matchedAt := -1
		matchCredit := 0.0
		for j, wb := range wordsB {
			if used[j] {
				continue
			}
			if wa == wb {
				matchedAt = j
				matchCredit = 1.0
				break
			}
			if matchedAt == -1 && len(wa) >= prefixCreditLength &&
				(strings.HasPrefix(wb, wa) || strings.HasPrefix(wa, wb)) {
				matchedAt = j
				matchCredit = prefixCredit
			}
		}
		if matchedAt >= 0 {
			used[matchedAt] = true
			positions = append(positions, matchedAt)
			credit += matchCredit
			aligned++
		}
	}

	if float64(aligned)/float64(len(wordsA)) < minWordAlignment {
		return 0
	}

	denom := len(wordsA)
	if len(wordsB) > denom {
		denom = len(wordsB)
	}
	score := credit / float64(denom)

	if !orderPreserved(positions) {
		score *= outOfOrderPenalty
	}
	if score > 1 {
		score = 1
	}
	return score
}

func orderPreserved(positions []int) bool {
	for i := 1; i < len(positions); i++ {
		if positions[i] < positions[i-1] {
			return false
		}
	}
	return true
}

// TitleTypePriority returns a coarse tie-break rank for ordering candidates of
// equal confidence: primary English (3) > primary romaji (2) > native (1) >
// synonym (0). The rank reflects which title field produced the best score.
func TitleTypePriority(entry catalog.CatalogEntry, sourceTitle string) int {
	best := -1.0
	rank := 0
	consider := func(title string, r int) {
		if strings.TrimSpace(title) == "" {
			return
		}
		if s := TitleSimilarity(sourceTitle, title); s > best {
			best = s
			rank = r
		}
	}
	consider(entry.Title.English, 3)
	consider(entry.Title.Romaji, 2)
	consider(entry.Title.Native, 1)
	for _, syn := range entry.Synonyms {
		consider(syn, 0)
	}
	return rank
}
