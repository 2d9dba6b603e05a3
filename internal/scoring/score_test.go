package scoring

import (
	"testing"

	"tsundoku/internal/catalog"
)

func entryWithTitles(english, romaji, native string, synonyms ...string) catalog.CatalogEntry {
	return catalog.CatalogEntry{
		ID:       1,
		Title:    catalog.Title{English: english, Romaji: romaji, Native: native},
		Synonyms: synonyms,
	}
}

func TestMatchScoreRange(t *testing.T) {
	entries := []catalog.CatalogEntry{
		entryWithTitles("One Piece", "One Piece", "ワンピース"),
		entryWithTitles("Berserk", "Berserk", "", "Berserk Deluxe"),
		entryWithTitles("", "", ""),
	}
	queries := []string{"One Piece", "berserk", "Completely Unrelated Title", ""}
	for _, e := range entries {
		for _, q := range queries {
			s := MatchScore(e, q)
			if s < 0 || s > 1 {
				t.Errorf("MatchScore(%v, %q) = %v out of [0,1]", e.ID, q, s)
			}
		}
	}
}

func TestMatchScoreExact(t *testing.T) {
	e := entryWithTitles("Vinland Saga", "Vinland Saga", "ヴィンランド・サガ")
	if s := MatchScore(e, "Vinland Saga"); s != 1 {
		t.Errorf("exact title score = %v, want 1", s)
	}
}

func TestMatchScoreBestOfSynonyms(t *testing.T) {
	e := entryWithTitles("Demon Slayer", "Kimetsu no Yaiba", "", "KnY")
	direct := MatchScore(e, "Kimetsu no Yaiba")
	if direct != 1 {
		t.Errorf("romaji match score = %v, want 1", direct)
	}
	if s := MatchScore(e, "Demon Slayer"); s != 1 {
		t.Errorf("english match score = %v, want 1", s)
	}
}

func TestMatchScoreArticleDifference(t *testing.T) {
	e := entryWithTitles("The Promised Neverland", "", "")
	if s := MatchScore(e, "Promised Neverland"); s != 1 {
		t.Errorf("article-only difference score = %v, want 1", s)
	}
}

func TestMatchScoreSeasonPattern(t *testing.T) {
	e := entryWithTitles("One Piece Season 2", "", "")
	if s := MatchScore(e, "One Piece"); s != 0.95 {
		t.Errorf("season pattern score = %v, want 0.95", s)
	}
}

func TestMatchScoreContainmentBeatsUnrelated(t *testing.T) {
	contained := entryWithTitles("Berserk Deluxe Edition", "", "")
	unrelated := entryWithTitles("Fruits Basket", "", "")
	sc := MatchScore(contained, "Berserk")
	su := MatchScore(unrelated, "Berserk")
	if sc <= su {
		t.Errorf("containment score %v should beat unrelated score %v", sc, su)
	}
	if sc <= containmentBase {
		t.Errorf("containment score %v should exceed base %v", sc, containmentBase)
	}
}

func TestWordOverlapOrderPenalty(t *testing.T) {
	ordered := wordOverlap("silent voice film", "silent voice film extra")
	shuffled := wordOverlap("silent voice film", "film voice silent extra")
	if shuffled >= ordered {
		t.Errorf("shuffled order %v should score below preserved order %v", shuffled, ordered)
	}
}

func TestWordOverlapAlignmentFloor(t *testing.T) {
	// Only one of three search words aligns; below the 75% floor the layer
	// must contribute nothing.
	if s := wordOverlap("alpha beta gamma", "alpha delta epsilon"); s != 0 {
		t.Errorf("sub-threshold alignment score = %v, want 0", s)
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	prev := -1
	for s := 0.0; s <= 1.0; s += 0.005 {
		c := ConfidenceFromScore(s)
		if c < prev {
			t.Fatalf("confidence decreased at score %v: %d < %d", s, c, prev)
		}
		if c < 0 || c > 100 {
			t.Fatalf("confidence out of range at score %v: %d", s, c)
		}
		prev = c
	}
}

func TestConfidenceBands(t *testing.T) {
	if c := ConfidenceFromScore(0); c != 0 {
		t.Errorf("confidence(0) = %d, want 0", c)
	}
	if c := ConfidenceFromScore(0.97); c != 99 {
		t.Errorf("confidence(0.97) = %d, want 99", c)
	}
	if c := ConfidenceFromScore(1); c != 99 {
		t.Errorf("confidence(1) = %d, want 99", c)
	}
	if c := ConfidenceFromScore(0.95); c < 90 || c > 96 {
		t.Errorf("confidence(0.95) = %d, want within [90,96]", c)
	}
	if c := ConfidenceFromScore(0.1); c > 15 {
		t.Errorf("confidence(0.1) = %d, want <= 15", c)
	}
}

func TestTitleTypePriority(t *testing.T) {
	e := catalog.CatalogEntry{
		Title:    catalog.Title{English: "Frieren", Romaji: "Sousou no Frieren", Native: "葬送のフリーレン"},
		Synonyms: []string{"Frieren at the Funeral"},
	}
	if p := TitleTypePriority(e, "Frieren"); p != 3 {
		t.Errorf("english priority = %d, want 3", p)
	}
	if p := TitleTypePriority(e, "Sousou no Frieren"); p != 2 {
		t.Errorf("romaji priority = %d, want 2", p)
	}
	synOnly := catalog.CatalogEntry{
		Title:    catalog.Title{English: "Something Else Entirely"},
		Synonyms: []string{"Funeral Frieren"},
	}
	if p := TitleTypePriority(synOnly, "Funeral Frieren"); p != 0 {
		t.Errorf("synonym priority = %d, want 0", p)
	}
}
