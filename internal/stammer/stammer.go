// Package stammer flags pathological repetition ("stammering") in machine
// translation output: elongated characters, words or phrases looping, or
// words recurring far more often than the source sentence justifies.
package stammer

import (
	"strings"
	"unicode/utf8"
)

// Characters stripped from token edges before word-level comparisons.
const tokenPunct = ".,!?;:"

// Tokens this short double naturally ("bye bye", "no no"); word-level
// rules ignore them.
const minTokenLen = 3

// Options tunes detection behavior.
type Options struct {
	// AllowSourceRepetition suppresses the consecutive-word and repeated
	// bigram rules when the source sentence exhibits the same repetition
	// pattern, so legitimately repetitive sources are not flagged.
	AllowSourceRepetition bool
}

// Detect reports whether translated shows non-natural repetition relative
// to source. It is pure, deterministic, and total over any two strings.
func Detect(source, translated string) bool {
	return DetectWithOptions(source, translated, Options{})
}

// DetectWithOptions is Detect with explicit options.
func DetectWithOptions(source, translated string, opts Options) bool {
	lowered := strings.ToLower(translated)
	words := strings.Fields(lowered)
	if len(words) == 0 {
		return false
	}

	if hasElongation(lowered) {
		return true
	}

	sourceWords := strings.Fields(strings.ToLower(source))

	if hasTripleRepeat(words) {
		if !opts.AllowSourceRepetition || !hasTripleRepeat(sourceWords) {
			return true
		}
	}

	if hasRepeatedBigram(words) {
		if !opts.AllowSourceRepetition || !hasRepeatedBigram(sourceWords) {
			return true
		}
	}

	return hasDisproportionateFrequency(sourceWords, words)
}

// hasElongation reports a single character repeated 6 or more times in a
// row anywhere in the raw lower-cased text (e.g. "soooooo").
func hasElongation(text string) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
			if run >= 6 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// hasTripleRepeat reports a stripped token longer than two characters
// appearing three times in a row.
func hasTripleRepeat(words []string) bool {
	for i := 0; i+2 < len(words); i++ {
		w := stripToken(words[i])
		if utf8.RuneCountInString(w) < minTokenLen {
			continue
		}
		if stripToken(words[i+1]) == w && stripToken(words[i+2]) == w {
			return true
		}
	}
	return false
}

// hasRepeatedBigram reports phrase-level looping: a phrase of two or more
// tokens immediately repeated ("is nice is nice", "the cat is nice the cat
// is nice"), or two identical adjacent bigrams, which degenerate to a
// tripled token. Needs at least four tokens.
func hasRepeatedBigram(words []string) bool {
	if len(words) < 4 {
		return false
	}
	for n := 2; 2*n <= len(words); n++ {
		for i := 0; i+2*n <= len(words); i++ {
			if equalSpans(words, i, i+n, n) {
				return true
			}
		}
	}
	for i := 0; i+2 < len(words); i++ {
		if words[i] == words[i+1] && words[i+1] == words[i+2] {
			return true
		}
	}
	return false
}

func equalSpans(words []string, a, b, n int) bool {
	for k := 0; k < n; k++ {
		if words[a+k] != words[b+k] {
			return false
		}
	}
	return true
}

// hasDisproportionateFrequency reports any translation token occurring
// more than 3 times and at least 3 times as often as in the source. A
// token absent from the source satisfies the ratio outright.
func hasDisproportionateFrequency(sourceWords, words []string) bool {
	srcCounts := tokenCounts(sourceWords)
	for token, count := range tokenCounts(words) {
		if count > 3 && count >= 3*srcCounts[token] {
			return true
		}
	}
	return false
}

func tokenCounts(words []string) map[string]int {
	counts := make(map[string]int, len(words))
	for _, w := range words {
		t := stripToken(w)
		if utf8.RuneCountInString(t) < minTokenLen {
			continue
		}
		counts[t]++
	}
	return counts
}

func stripToken(w string) string {
	return strings.Trim(w, tokenPunct)
}
