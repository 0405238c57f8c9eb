// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package style renders resolved citations as inline markers and
// bibliography entries.
package style

import (
	"fmt"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

const (
	Numeric    = "numeric"
	AuthorYear = "author-year"
)

// Render produces the inline marker for a resolved citation. The position is
// the citation's first-seen order within the project, used by the numeric
// style.
func Render(csl types.CSLItem, styleName string, position int) string {
	switch styleName {
	case AuthorYear:
		return renderAuthorYear(csl)
	default:
		return fmt.Sprintf("[%d]", position)
	}
}

func renderAuthorYear(csl types.CSLItem) string {
	family := csl.FirstAuthorFamily()
	if family == "" {
		family = "Anon"
	}
	year := csl.Year()
	if year == 0 {
		return fmt.Sprintf("(%s, n.d.)", family)
	}
	return fmt.Sprintf("(%s, %d)", family, year)
}

// RenderBibliography formats one line per citation, ordered by first-seen
// order regardless of the order the slice arrives in.
func RenderBibliography(citations []types.Citation, styleName string) string {
	sorted := make([]types.Citation, len(citations))
	copy(sorted, citations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].FirstSeenOrder < sorted[j].FirstSeenOrder
	})

	var b strings.Builder
	for _, c := range sorted {
		b.WriteString(bibliographyLine(c, styleName))
		b.WriteByte('\n')
	}
	return b.String()
}

func bibliographyLine(c types.Citation, styleName string) string {
	entry := bibliographyEntry(c.CSL)
	if styleName == AuthorYear {
		return entry
	}
	return fmt.Sprintf("[%d] %s", c.FirstSeenOrder, entry)
}

func bibliographyEntry(csl types.CSLItem) string {
	var parts []string
	if names := authorList(csl); names != "" {
		parts = append(parts, names)
	}
	if year := csl.Year(); year != 0 {
		parts = append(parts, fmt.Sprintf("(%d)", year))
	}
	if csl.Title != "" {
		parts = append(parts, csl.Title+".")
	}
	if csl.ContainerTitle != "" {
		parts = append(parts, csl.ContainerTitle+".")
	}
	if csl.DOI != "" {
		parts = append(parts, "https://doi.org/"+csl.DOI)
	} else if csl.URL != "" {
		parts = append(parts, csl.URL)
	}
	return strings.Join(parts, " ")
}

func authorList(csl types.CSLItem) string {
	var names []string
	for _, a := range csl.Author {
		switch {
		case a.Family != "" && a.Given != "":
			names = append(names, a.Family+", "+a.Given)
		case a.Family != "":
			names = append(names, a.Family)
		case a.Given != "":
			names = append(names, a.Given)
		}
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

// FormatCSL renders a CSL item as YAML for inspection from the CLI.
func FormatCSL(csl types.CSLItem) (string, error) {
	out, err := yaml.Marshal(csl)
	if err != nil {
		return "", fmt.Errorf("marshaling CSL item: %w", err)
	}
	return string(out), nil
}
