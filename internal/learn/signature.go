// Package learn implements the adaptive trackers behind the urgency engine:
// structural headline patterns, keyword weights, and per-source reliability,
// plus the feedback ingester that trains all three atomically.
package learn

import (
	"fmt"
	"strings"
	"unicode"
)

// urgencyIndicators are terms whose presence in a headline counts toward the
// structural fingerprint's urgency feature. Presence is what matters here;
// their learned weights live in the keyword tracker.
var urgencyIndicators = map[string]bool{
	"breaking":  true,
	"urgent":    true,
	"alert":     true,
	"emergency": true,
	"crisis":    true,
	"collapse":  true,
	"crash":     true,
	"war":       true,
	"invasion":  true,
	"coup":      true,
	"martial":   true,
	"nuclear":   true,
	"pandemic":  true,
	"attack":    true,
	"unrest":    true,
}

// multiwordTerms are phrases tracked as single keywords. Checked before
// single-word tokenization so "martial law" never degrades into "martial"
// plus a stopword-adjacent "law".
var multiwordTerms = []string{
	"supreme court",
	"federal reserve",
	"martial law",
	"trade war",
	"market crash",
	"interest rate",
	"civil unrest",
	"executive order",
	"national guard",
	"state of emergency",
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"his": true, "has": true, "have": true, "this": true, "that": true,
	"with": true, "from": true, "they": true, "will": true, "been": true,
	"were": true, "said": true, "says": true, "after": true, "over": true,
	"into": true, "more": true, "than": true, "amid": true, "about": true,
	"could": true, "would": true, "their": true, "there": true, "what": true,
	"when": true, "where": true, "which": true, "while": true, "during": true,
}

// Signature reduces a headline to a structural fingerprint: coarse shape
// features rather than its words, so distinct headlines with the same
// construction share learned urgency. The same title always yields the same
// signature.
func Signature(title string) string {
	words := strings.Fields(title)

	letters, caps, digits := 0, 0, 0
	for _, r := range title {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				caps++
			}
		}
		if unicode.IsDigit(r) {
			digits++
		}
	}

	capsBand := "low"
	if letters > 0 {
		ratio := float64(caps) / float64(letters)
		switch {
		case ratio > 0.5:
			capsBand = "high"
		case ratio > 0.2:
			capsBand = "mid"
		}
	}

	lenBand := "short"
	switch {
	case len(title) > 90:
		lenBand = "long"
	case len(title) > 45:
		lenBand = "mid"
	}

	urgent := 0
	lower := strings.ToLower(title)
	for _, tok := range tokenize(lower) {
		if urgencyIndicators[tok] {
			urgent++
		}
	}

	return fmt.Sprintf("len:%s|caps:%s|digits:%d|quote:%d|colon:%d|words:%d|urgent:%d",
		lenBand,
		capsBand,
		boolBit(digits > 0),
		boolBit(strings.ContainsAny(title, `"'`)),
		boolBit(strings.Contains(title, ":")),
		wordBand(len(words)),
		urgent,
	)
}

// ExtractKeywords returns the trackable terms of a headline: known multiword
// phrases first, then lowercase single words at least minLen long that are
// not stopwords. Terms are deduplicated, order of first appearance.
func ExtractKeywords(title string, minLen int) []string {
	lower := strings.ToLower(title)

	var terms []string
	seen := map[string]bool{}

	remainder := lower
	for _, phrase := range multiwordTerms {
		if strings.Contains(remainder, phrase) {
			terms = append(terms, phrase)
			seen[phrase] = true
			remainder = strings.ReplaceAll(remainder, phrase, " ")
		}
	}

	for _, tok := range tokenize(remainder) {
		if len(tok) < minLen || stopwords[tok] || seen[tok] {
			continue
		}
		terms = append(terms, tok)
		seen[tok] = true
	}
	return terms
}

// tokenize splits on anything that is not a letter or digit.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// wordBand buckets word counts so near-identical lengths collapse into one
// signature feature.
func wordBand(n int) int {
	switch {
	case n <= 5:
		return 0
	case n <= 9:
		return 1
	case n <= 14:
		return 2
	default:
		return 3
	}
}
