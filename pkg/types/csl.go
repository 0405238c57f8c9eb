// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `json:"id" yaml:"id"`
	Type           string    `json:"type" yaml:"type"`
	Title          string    `json:"title" yaml:"title"`
	Author         []CSLName `json:"author,omitempty" yaml:"author,omitempty"`
	ContainerTitle string    `json:"container-title,omitempty" yaml:"container-title,omitempty"`
	Issued         *CSLDate  `json:"issued,omitempty" yaml:"issued,omitempty"`
	DOI            string    `json:"DOI,omitempty" yaml:"DOI,omitempty"`
	URL            string    `json:"URL,omitempty" yaml:"URL,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `json:"family,omitempty" yaml:"family,omitempty"`
	Given   string `json:"given,omitempty" yaml:"given,omitempty"`
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `json:"date-parts" yaml:"date-parts"`
}

// Year returns the year component of the item's issued date, or 0 if unknown.
func (c CSLItem) Year() int {
	if c.Issued == nil || len(c.Issued.DateParts) == 0 || len(c.Issued.DateParts[0]) == 0 {
		return 0
	}
	return c.Issued.DateParts[0][0]
}

// FirstAuthorFamily returns the family name of the first author. A literal
// name is returned as-is; an empty string means the item has no usable author.
func (c CSLItem) FirstAuthorFamily() string {
	if len(c.Author) == 0 {
		return ""
	}
	a := c.Author[0]
	if a.Family != "" {
		return a.Family
	}
	return a.Literal
}
