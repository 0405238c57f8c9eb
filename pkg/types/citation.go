// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citation engine.
package types

import "time"

// ReferenceKind classifies how a placeholder identifies its source.
type ReferenceKind int

const (
	KindUnknown ReferenceKind = iota
	KindDOI
	KindPaperID
	KindTitle
	KindURL
)

func (k ReferenceKind) String() string {
	switch k {
	case KindDOI:
		return "doi"
	case KindPaperID:
		return "paperId"
	case KindTitle:
		return "title"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// ParseKind maps a placeholder token kind string to a ReferenceKind.
// Matching is case-insensitive on the ASCII letters used by the grammar.
func ParseKind(s string) ReferenceKind {
	switch s {
	case "doi", "DOI":
		return KindDOI
	case "paperId", "paperid", "paper_id":
		return KindPaperID
	case "title":
		return KindTitle
	case "url", "URL":
		return KindURL
	default:
		return KindUnknown
	}
}

// Placeholder is an inline citation token extracted from generated text.
// It exists only during stream processing and is never persisted verbatim.
type Placeholder struct {
	// Kind identifies which field of the source the value names.
	Kind ReferenceKind `json:"kind"`

	// Value is the raw identifying value from the token (DOI, title, etc).
	Value string `json:"value"`

	// Context is a snippet of surrounding prose, used for diagnostics.
	Context string `json:"context,omitempty"`

	// FallbackText, when set by the caller, overrides the kind-derived
	// fallback if resolution fails.
	FallbackText string `json:"fallback_text,omitempty"`
}

// SourceReference is a normalized bag of identifying fields passed to the
// source resolver. At least one field must be present.
type SourceReference struct {
	DOI     string `json:"doi,omitempty" yaml:"doi,omitempty"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	PaperID string `json:"paper_id,omitempty" yaml:"paper_id,omitempty"`
}

// IsEmpty reports whether the reference carries no identifying field.
func (r SourceReference) IsEmpty() bool {
	return r.DOI == "" && r.Title == "" && r.URL == "" && r.PaperID == ""
}

// Citation is a durable, project-scoped resolved reference.
// Rows are unique on (ProjectID, CiteKey) and are never deleted by the engine.
type Citation struct {
	// ID is the internal row identifier.
	ID string `json:"id" yaml:"id"`

	// ProjectID scopes the citation to one document project.
	ProjectID string `json:"project_id" yaml:"project_id"`

	// CiteKey is the stable citation identifier (e.g. "smith2023").
	CiteKey string `json:"cite_key" yaml:"cite_key"`

	// CSL is the bibliographic record consumed by the style renderer.
	CSL CSLItem `json:"csl" yaml:"csl"`

	// FirstSeenOrder is the permanent position assigned at first successful
	// resolution. Monotonically increasing per project, never reused.
	FirstSeenOrder int `json:"first_seen_order" yaml:"first_seen_order"`

	// CreatedAt is the time of first resolution.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// ResolutionResult is the successful outcome of resolving one source reference.
type ResolutionResult struct {
	CanonicalKey   string  `json:"canonical_key"`
	CiteKey        string  `json:"cite_key"`
	CSL            CSLItem `json:"csl"`
	FirstSeenOrder int     `json:"first_seen_order"`
	IsNewlyCreated bool    `json:"is_newly_created"`
}
