// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package style

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

func sampleCSL() types.CSLItem {
	return types.CSLItem{
		Title:          "A Sample Paper",
		Author:         []types.CSLName{{Family: "Smith", Given: "Jane"}, {Family: "Doe", Given: "John"}},
		ContainerTitle: "Journal of Samples",
		Issued:         &types.CSLDate{DateParts: [][]int{{2023, 4, 1}}},
		DOI:            "10.1/abc",
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		style    string
		csl      types.CSLItem
		position int
		want     string
	}{
		{"numeric", Numeric, sampleCSL(), 3, "[3]"},
		{"unknown style falls back to numeric", "chicago", sampleCSL(), 1, "[1]"},
		{"author-year", AuthorYear, sampleCSL(), 3, "(Smith, 2023)"},
		{"author-year no author", AuthorYear, types.CSLItem{
			Issued: &types.CSLDate{DateParts: [][]int{{2020}}},
		}, 1, "(Anon, 2020)"},
		{"author-year no year", AuthorYear, types.CSLItem{
			Author: []types.CSLName{{Family: "Smith"}},
		}, 1, "(Smith, n.d.)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Render(tc.csl, tc.style, tc.position))
		})
	}
}

func TestRenderBibliographyOrdersByFirstSeen(t *testing.T) {
	second := types.Citation{
		CiteKey:        "doe2021",
		FirstSeenOrder: 2,
		CSL: types.CSLItem{
			Title:  "Second Paper",
			Author: []types.CSLName{{Family: "Doe"}},
			Issued: &types.CSLDate{DateParts: [][]int{{2021}}},
		},
	}
	first := types.Citation{
		CiteKey:        "smith2023",
		FirstSeenOrder: 1,
		CSL:            sampleCSL(),
	}

	out := RenderBibliography([]types.Citation{second, first}, Numeric)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[1] Smith, Jane and Doe, John (2023) A Sample Paper."))
	assert.True(t, strings.HasPrefix(lines[1], "[2] Doe (2021) Second Paper."))
	assert.Contains(t, lines[0], "https://doi.org/10.1/abc")
}

func TestRenderBibliographyAuthorYearOmitsNumbers(t *testing.T) {
	out := RenderBibliography([]types.Citation{{FirstSeenOrder: 1, CSL: sampleCSL()}}, AuthorYear)
	assert.False(t, strings.Contains(out, "[1]"))
}

func TestFormatCSL(t *testing.T) {
	out, err := FormatCSL(sampleCSL())
	require.NoError(t, err)
	assert.Contains(t, out, "title: A Sample Paper")
	assert.Contains(t, out, "DOI: 10.1/abc")
}
