package tasks

import (
	"regexp"
	"strings"

	"github.com/desertthunder/labeltree/internal/shared"
)

// MinWordOverlap is the share of the wanted name's significant words a candidate must contain.
const MinWordOverlap = 0.75

var collaborationSuffix = regexp.MustCompile(`(?i)(\s*[,&]|\s+(feat\.?|ft\.?|featuring|and|with|x|vs\.?)\s).*$`)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "of": true,
	"feat": true, "ft": true, "featuring": true, "with": true, "vs": true,
	"de": true, "la": true, "le": true, "el": true, "los": true, "les": true,
}

// MatchArtist reports whether a catalog artist name refers to the wanted artist.
// Strategies are tried in order and the first success wins:
//
//  1. Equal after normalization
//  2. One contains the other
//  3. Equal after dropping collaboration suffixes ("feat. X", "& Y", ", Z")
//  4. At least [MinWordOverlap] of the wanted name's significant words appear in the candidate
func MatchArtist(candidate, wanted string) bool {
	c, w := shared.NormalizeName(candidate), shared.NormalizeName(wanted)
	if c == "" || w == "" {
		return false
	}

	if c == w {
		return true
	}

	if strings.Contains(c, w) || strings.Contains(w, c) {
		return true
	}

	cs := shared.NormalizeName(StripCollaboration(candidate))
	ws := shared.NormalizeName(StripCollaboration(wanted))
	if cs != "" && cs == ws {
		return true
	}

	return wordOverlap(c, w) >= MinWordOverlap
}

// StripCollaboration drops everything from the first collaboration marker onward.
func StripCollaboration(name string) string {
	return strings.TrimSpace(collaborationSuffix.ReplaceAllString(name, ""))
}

func significantWords(normalized string) []string {
	var out []string
	for _, f := range strings.Fields(normalized) {
		if len(f) < 2 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// wordOverlap is the fraction of wanted's significant words found in candidate.
func wordOverlap(candidate, wanted string) float64 {
	want := significantWords(wanted)
	if len(want) == 0 {
		return 0
	}

	have := make(map[string]bool)
	for _, f := range significantWords(candidate) {
		have[f] = true
	}

	hits := 0
	for _, f := range want {
		if have[f] {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}
