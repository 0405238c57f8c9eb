// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const tokenOpen = "[[CITE:"

// abbreviations end with a period without ending a sentence. Compared
// lowercase against the word preceding the period.
var abbreviations = map[string]bool{
	"e.g": true, "i.e": true, "al": true, "cf": true, "etc": true,
	"vs": true, "fig": true, "eq": true, "no": true, "dr": true,
	"mr": true, "mrs": true, "ms": true, "prof": true, "st": true,
}

// sentenceEnds returns byte offsets at which complete sentences end: each
// offset points at the first byte after the whitespace run following a
// terminator. Terminators inside placeholder tokens are skipped, and a
// terminator at the end of the buffer is not a boundary because the
// whitespace and next sentence may still be in flight.
func sentenceEnds(s string) []int {
	var ends []int
	for i := 0; i < len(s); i++ {
		if strings.HasPrefix(s[i:], tokenOpen) {
			close := strings.Index(s[i:], "]]")
			if close < 0 {
				break
			}
			i += close + 1
			continue
		}
		c := s[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if c == '.' && isAbbreviation(s, i) {
			continue
		}
		j := i + 1
		for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\n' || s[j] == '\r') {
			j++
		}
		if j == i+1 || j >= len(s) {
			continue
		}
		r, _ := utf8.DecodeRuneInString(s[j:])
		if unicode.IsUpper(r) || unicode.IsDigit(r) || r == '[' || r == '"' {
			ends = append(ends, j)
		}
	}
	return ends
}

// isAbbreviation reports whether the period at s[i] terminates a known
// abbreviation or a single-letter initial.
func isAbbreviation(s string, i int) bool {
	j := i
	for j > 0 {
		c := s[j-1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '.' {
			j--
			continue
		}
		break
	}
	word := strings.ToLower(strings.TrimSuffix(s[j:i], "."))
	if abbreviations[word] {
		return true
	}
	return len(word) == 1
}

// tokenSafeLen returns the length of the longest prefix of s that cannot cut
// a placeholder token in half. An unclosed token, or a trailing fragment of
// the opening delimiter, is held back for the next chunk.
func tokenSafeLen(s string) int {
	if i := strings.LastIndex(s, tokenOpen); i >= 0 && !strings.Contains(s[i:], "]]") {
		return i
	}
	for n := min(len(tokenOpen)-1, len(s)); n > 0; n-- {
		if strings.HasPrefix(tokenOpen, s[len(s)-n:]) {
			return len(s) - n
		}
	}
	return len(s)
}
