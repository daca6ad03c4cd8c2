package provider

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Confidence levels of the title/artist heuristic.
const (
	ExactConfidence = 0.9
	ISRCConfidence  = 0.95
	FuzzyConfidence = 0.5
	// MinOverlap is the token overlap below which a candidate is no match.
	MinOverlap = 0.5
)

// Candidate is an upstream search hit.
type Candidate struct {
	Artist string
	Title  string
	ISRC   string
}

var (
	parenthetical = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	featuring     = regexp.MustCompile(`\s+(feat\.?|ft\.?|featuring)\s+.*$`)
	nonWord       = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	creditSep     = regexp.MustCompile(`\s*[;,&/]\s*`)
)

// Normalize folds case, strips diacritics, parentheticals and featured
// artist credits, and collapses punctuation to single spaces.
//
//	Normalize("Señorita (Remastered) feat. X") == "senorita"
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)
	out = parenthetical.ReplaceAllString(out, "")
	out = featuring.ReplaceAllString(out, "")
	out = nonWord.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// Overlap is the share of tokens two normalized strings have in common,
// relative to the longer one.
func Overlap(a, b string) float64 {
	ta, tb := strings.Fields(a), strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]int, len(ta))
	for _, t := range ta {
		set[t]++
	}
	common := 0
	for _, t := range tb {
		if set[t] > 0 {
			set[t]--
			common++
		}
	}
	longest := len(ta)
	if len(tb) > longest {
		longest = len(tb)
	}
	return float64(common) / float64(longest)
}

// Match scores how well c answers q. Zero means no match.
func Match(q Query, c Candidate) float64 {
	if q.ISRC != "" && c.ISRC != "" && strings.EqualFold(q.ISRC, c.ISRC) {
		return ISRCConfidence
	}

	qt, ct := Normalize(q.Title), Normalize(c.Title)
	qa, ca := Normalize(q.Artist), Normalize(c.Artist)

	if qt == "" && qa == "" {
		return 0
	}

	titleExact := qt == "" || qt == ct
	artistExact := qa == "" || credited(qa, c.Artist)
	if titleExact && artistExact {
		return ExactConfidence
	}

	var overlap float64
	switch {
	case qt != "" && qa != "":
		// the right artist alone is not a match
		title := Overlap(qt, ct)
		if title < MinOverlap {
			return 0
		}
		overlap = (title + Overlap(qa, ca)) / 2
	case qt != "":
		overlap = Overlap(qt, ct)
	default:
		overlap = Overlap(qa, ca)
	}
	if overlap < MinOverlap {
		return 0
	}
	return FuzzyConfidence * overlap
}

// credited reports whether the normalized artist qa is the whole credit
// string or one of its individual credits.
func credited(qa, credit string) bool {
	if Normalize(credit) == qa {
		return true
	}
	for _, part := range creditSep.Split(credit, -1) {
		if Normalize(part) == qa {
			return true
		}
	}
	return false
}

// Best returns the index and score of the best candidate, or -1.
func Best(q Query, cs []Candidate) (int, float64) {
	best, score := -1, 0.0
	for i, c := range cs {
		if s := Match(q, c); s > score {
			best, score = i, s
		}
	}
	return best, score
}
