// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package placeholder extracts inline citation tokens from generated text
// and derives canonical dedup keys for them.
package placeholder

import (
	"regexp"
	"strings"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

// tokenRe matches the delimited token grammar [[CITE:kind:value]].
// Values may contain colons; the grammar splits on the first two separators
// only. Values cannot contain "]]".
var tokenRe = regexp.MustCompile(`\[\[CITE:([A-Za-z_]+):(.*?)\]\]`)

// Occurrence is one placeholder token located in the scanned text.
type Occurrence struct {
	types.Placeholder

	// Start and End are the byte offsets of the full token, End exclusive.
	Start int
	End   int

	// Raw is the full token text including delimiters, used for splicing.
	Raw string
}

// Diagnostic reports a malformed token that was skipped.
type Diagnostic struct {
	Raw    string
	Offset int
	Reason string
}

// Parse scans text and returns placeholder occurrences in order of
// appearance, plus diagnostics for malformed tokens. Malformed tokens
// (unknown kind, empty value) never abort parsing of the remainder.
func Parse(text string) ([]Occurrence, []Diagnostic) {
	var occs []Occurrence
	var diags []Diagnostic

	for _, m := range tokenRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[0]:m[1]]
		kindStr := text[m[2]:m[3]]
		value := strings.TrimSpace(text[m[4]:m[5]])

		kind := types.ParseKind(kindStr)
		if kind == types.KindUnknown {
			diags = append(diags, Diagnostic{Raw: raw, Offset: m[0], Reason: "unknown kind " + kindStr})
			continue
		}
		if value == "" {
			diags = append(diags, Diagnostic{Raw: raw, Offset: m[0], Reason: "empty value"})
			continue
		}

		occs = append(occs, Occurrence{
			Placeholder: types.Placeholder{
				Kind:    kind,
				Value:   value,
				Context: extractContext(text, m[0], m[1]),
			},
			Start: m[0],
			End:   m[1],
			Raw:   raw,
		})
	}

	return occs, diags
}

// extractContext returns a snippet of surrounding text around a token.
// It takes up to 40 characters before and after the match boundaries.
func extractContext(text string, start, end int) string {
	const window = 40
	ctxStart := start - window
	if ctxStart < 0 {
		ctxStart = 0
	}
	ctxEnd := end + window
	if ctxEnd > len(text) {
		ctxEnd = len(text)
	}
	snippet := text[ctxStart:ctxEnd]
	// Trim to word boundaries.
	if ctxStart > 0 {
		if i := strings.IndexByte(snippet, ' '); i >= 0 && i < window {
			snippet = snippet[i+1:]
		}
	}
	if ctxEnd < len(text) {
		if i := strings.LastIndexByte(snippet, ' '); i >= 0 && i > len(snippet)-window {
			snippet = snippet[:i]
		}
	}
	return strings.TrimSpace(snippet)
}
