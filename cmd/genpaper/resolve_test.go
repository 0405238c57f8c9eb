package main

import (
	"testing"

	"github.com/sadiq-codes/genpaper/internal/batch"
	"github.com/sadiq-codes/genpaper/pkg/types"
)

func TestRefsToOccurrences(t *testing.T) {
	refs := []refEntry{
		{Kind: "doi", Value: "10.1/abc"},
		{Kind: "title", Value: "Attention Is All You Need", FallbackText: "(Vaswani et al.)"},
		{Kind: "url", Value: "https://doi.org/10.1/xyz"},
	}

	occs, err := refsToOccurrences(refs)
	if err != nil {
		t.Fatalf("refsToOccurrences: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(occs))
	}
	if occs[0].Kind != types.KindDOI || occs[0].Value != "10.1/abc" {
		t.Errorf("occ 0 = %v %q", occs[0].Kind, occs[0].Value)
	}
	if occs[1].FallbackText != "(Vaswani et al.)" {
		t.Errorf("fallback text not carried: %q", occs[1].FallbackText)
	}
}

func TestRefsToOccurrencesRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		refs []refEntry
	}{
		{"unknown kind", []refEntry{{Kind: "isbn", Value: "978-0"}}},
		{"empty value", []refEntry{{Kind: "doi", Value: ""}}},
		{"bad entry after good", []refEntry{{Kind: "doi", Value: "10.1/abc"}, {Kind: ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := refsToOccurrences(tt.refs); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestRefsResult(t *testing.T) {
	out := batch.Outcome{
		Results: map[string]types.ResolutionResult{
			"doi:10.1/abc": {CiteKey: "smith2023"},
			"title:deep learning": {CiteKey: "lecun2015"},
		},
		ResolvedCount: 2,
		FailedCount:   1,
	}

	resp := refsResult(out)
	if resp.ResolvedCount != 2 || resp.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", resp.ResolvedCount, resp.FailedCount)
	}
	if got := resp.CiteKeyMap["doi:10.1/abc"]; got != "smith2023" {
		t.Errorf(`CiteKeyMap["doi:10.1/abc"] = %q, want "smith2023"`, got)
	}
	if len(resp.CiteKeyMap) != 2 {
		t.Errorf("map size = %d, want 2; failed sources must not appear", len(resp.CiteKeyMap))
	}
}
