// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package placeholder

import (
	"strings"
	"unicode"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

// doiPrefixes are the surface forms stripped from DOI values. Order matters:
// longer prefixes first.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// Key returns the canonical identity used to deduplicate placeholders within
// one resolution batch: kind + ":" + normalized value. Two placeholders of
// the same kind and equivalent value always collide; placeholders of
// different kinds never do, even when they name the same paper.
func Key(p types.Placeholder) string {
	return p.Kind.String() + ":" + Normalize(p.Kind, p.Value)
}

// Normalize applies per-kind normalization rules to an identifying value.
func Normalize(kind types.ReferenceKind, value string) string {
	switch kind {
	case types.KindDOI:
		return NormalizeDOI(value)
	case types.KindTitle:
		return normalizeTitle(value)
	case types.KindURL:
		return strings.TrimSpace(value)
	case types.KindPaperID:
		return value
	default:
		return value
	}
}

// NormalizeDOI lowercases a DOI and strips resolver URL prefixes, so that
// "https://doi.org/10.1/ABC" and "10.1/abc" collide.
func NormalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(doi, p) {
			return doi[len(p):]
		}
	}
	return doi
}

// normalizeTitle returns a lowercased, punctuation-stripped,
// whitespace-collapsed version of the title.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SourceRef maps a placeholder to the source-reference field its kind names.
func SourceRef(p types.Placeholder) types.SourceReference {
	switch p.Kind {
	case types.KindDOI:
		return types.SourceReference{DOI: NormalizeDOI(p.Value)}
	case types.KindPaperID:
		return types.SourceReference{PaperID: p.Value}
	case types.KindTitle:
		return types.SourceReference{Title: strings.TrimSpace(p.Value)}
	case types.KindURL:
		return types.SourceReference{URL: strings.TrimSpace(p.Value)}
	default:
		return types.SourceReference{}
	}
}
