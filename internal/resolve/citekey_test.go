// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"testing"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

func TestDeriveCiteKey(t *testing.T) {
	tests := []struct {
		name string
		csl  types.CSLItem
		want string
	}{
		{
			"author and year",
			types.CSLItem{
				Author: []types.CSLName{{Family: "Smith", Given: "Jane"}},
				Issued: &types.CSLDate{DateParts: [][]int{{2023}}},
			},
			"smith2023",
		},
		{
			"family name punctuation stripped",
			types.CSLItem{
				Author: []types.CSLName{{Family: "O'Brien"}},
				Issued: &types.CSLDate{DateParts: [][]int{{2021, 6}}},
			},
			"obrien2021",
		},
		{
			"literal single-token author",
			types.CSLItem{
				Author: []types.CSLName{{Literal: "DeepMind"}},
				Issued: &types.CSLDate{DateParts: [][]int{{2020}}},
			},
			"deepmind2020",
		},
		{
			"no author falls back to title word",
			types.CSLItem{
				Title:  "The Transformer Architecture",
				Issued: &types.CSLDate{DateParts: [][]int{{2017}}},
			},
			"transformer2017",
		},
		{
			"no year",
			types.CSLItem{
				Author: []types.CSLName{{Family: "Smith"}},
			},
			"smithnd",
		},
		{
			"nothing usable",
			types.CSLItem{},
			"anonnd",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveCiteKey(tt.csl); got != tt.want {
				t.Errorf("DeriveCiteKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithSuffix(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "smith2023"},
		{1, "smith2023a"},
		{2, "smith2023b"},
		{9, "smith20239"},
	}
	for _, tt := range tests {
		if got := withSuffix("smith2023", tt.n); got != tt.want {
			t.Errorf("withSuffix(smith2023, %d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
