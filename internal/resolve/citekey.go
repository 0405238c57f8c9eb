// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

// keySuffixes disambiguate colliding cite keys within a project:
// smith2023, smith2023a, smith2023b, ...
const keySuffixes = "abcdefgh"

// stopWords are skipped when deriving a key from a title.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "on": true, "of": true,
	"in": true, "for": true, "and": true, "to": true, "towards": true,
}

// DeriveCiteKey builds the base cite key for a record: the first author's
// family name lowercased and stripped to letters/digits, followed by the
// publication year. Records without authors fall back to the first
// significant title word; records without a year use "nd" (no date).
func DeriveCiteKey(csl types.CSLItem) string {
	stem := keyStem(csl.FirstAuthorFamily())
	if stem == "" {
		stem = titleStem(csl.Title)
	}
	if stem == "" {
		stem = "anon"
	}

	if year := csl.Year(); year > 0 {
		return stem + strconv.Itoa(year)
	}
	return stem + "nd"
}

func keyStem(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func titleStem(title string) string {
	for _, word := range strings.Fields(strings.ToLower(title)) {
		w := keyStem(word)
		if w != "" && !stopWords[w] {
			return w
		}
	}
	return ""
}

// withSuffix returns the nth disambiguation of a base key. n=0 is the base
// itself.
func withSuffix(base string, n int) string {
	if n == 0 {
		return base
	}
	if n-1 < len(keySuffixes) {
		return base + string(keySuffixes[n-1])
	}
	return base + strconv.Itoa(n)
}
