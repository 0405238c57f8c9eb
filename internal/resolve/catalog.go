// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sadiq-codes/genpaper/internal/httputil"
	"github.com/sadiq-codes/genpaper/pkg/types"
)

// Catalog looks up bibliographic records in external services.
type Catalog interface {
	// PaperByID fetches a record by its catalog paper id.
	PaperByID(ctx context.Context, paperID string) (types.CSLItem, error)

	// WorkByDOI fetches a record by normalized DOI.
	WorkByDOI(ctx context.Context, doi string) (types.CSLItem, error)

	// SearchTitle finds the best-matching record for a title.
	SearchTitle(ctx context.Context, title string) (types.CSLItem, error)
}

// Base URLs for catalog lookups. Declared as vars so tests can substitute
// httptest servers.
var (
	paperAPIBase    = "https://api.semanticscholar.org/graph/v1/paper"
	crossrefAPIBase = "https://api.crossref.org/works"
)

const paperFields = "paperId,title,authors,year,publicationDate,venue,externalIds,url"

// HTTPCatalog queries the paper graph API and Crossref.
type HTTPCatalog struct {
	Client *http.Client
	Cfg    types.ResolverConfig
}

// NewHTTPCatalog builds a catalog with the configured timeout.
func NewHTTPCatalog(cfg types.ResolverConfig) *HTTPCatalog {
	return &HTTPCatalog{
		Client: &http.Client{Timeout: cfg.Timeout},
		Cfg:    cfg,
	}
}

// paperRecord is the graph API's paper shape.
type paperRecord struct {
	PaperID string `json:"paperId"`
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Year            int    `json:"year"`
	PublicationDate string `json:"publicationDate"`
	Venue           string `json:"venue"`
	URL             string `json:"url"`
	ExternalIDs     struct {
		DOI string `json:"DOI"`
	} `json:"externalIds"`
}

// PaperByID fetches a paper by catalog id (also accepts DOI: and URL: prefixed
// ids the graph API understands).
func (c *HTTPCatalog) PaperByID(ctx context.Context, paperID string) (types.CSLItem, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=%s", paperAPIBase, url.PathEscape(paperID), paperFields)
	req, err := c.newRequest(ctx, reqURL)
	if err != nil {
		return types.CSLItem{}, err
	}

	var rec paperRecord
	if err := httputil.DoJSON(ctx, c.Client, req, &rec); err != nil {
		return types.CSLItem{}, fmt.Errorf("paper lookup %s: %w", paperID, err)
	}
	if rec.PaperID == "" && rec.Title == "" {
		return types.CSLItem{}, fmt.Errorf("paper lookup %s: %w", paperID, httputil.ErrNotFound)
	}
	return paperToCSL(rec), nil
}

// SearchTitle asks the graph API for the closest title match.
func (c *HTTPCatalog) SearchTitle(ctx context.Context, title string) (types.CSLItem, error) {
	params := url.Values{
		"query":  {title},
		"fields": {paperFields},
	}
	req, err := c.newRequest(ctx, paperAPIBase+"/search/match?"+params.Encode())
	if err != nil {
		return types.CSLItem{}, err
	}

	var wrapper struct {
		Data []paperRecord `json:"data"`
	}
	if err := httputil.DoJSON(ctx, c.Client, req, &wrapper); err != nil {
		return types.CSLItem{}, fmt.Errorf("title search %q: %w", title, err)
	}
	if len(wrapper.Data) == 0 {
		return types.CSLItem{}, fmt.Errorf("title search %q: %w", title, httputil.ErrNotFound)
	}
	return paperToCSL(wrapper.Data[0]), nil
}

// crossrefWork is the subset of Crossref's work message we consume.
type crossrefWork struct {
	Message struct {
		DOI    string   `json:"DOI"`
		Title  []string `json:"title"`
		Author []struct {
			Family string `json:"family"`
			Given  string `json:"given"`
			Name   string `json:"name"`
		} `json:"author"`
		ContainerTitle []string `json:"container-title"`
		Issued         struct {
			DateParts [][]int `json:"date-parts"`
		} `json:"issued"`
		URL string `json:"URL"`
	} `json:"message"`
}

// WorkByDOI fetches a Crossref work by its normalized DOI.
func (c *HTTPCatalog) WorkByDOI(ctx context.Context, doi string) (types.CSLItem, error) {
	reqURL := crossrefAPIBase + "/" + url.PathEscape(doi)
	if c.Cfg.CrossrefMailto != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.Cfg.CrossrefMailto)
	}
	req, err := c.newRequest(ctx, reqURL)
	if err != nil {
		return types.CSLItem{}, err
	}

	var work crossrefWork
	if err := httputil.DoJSON(ctx, c.Client, req, &work); err != nil {
		return types.CSLItem{}, fmt.Errorf("doi lookup %s: %w", doi, err)
	}
	return crossrefToCSL(work, doi), nil
}

func (c *HTTPCatalog) newRequest(ctx context.Context, reqURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.Cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.Cfg.UserAgent)
	}
	if c.Cfg.CatalogAPIKey != "" {
		req.Header.Set("x-api-key", c.Cfg.CatalogAPIKey)
	}
	return req, nil
}

func paperToCSL(rec paperRecord) types.CSLItem {
	item := types.CSLItem{
		ID:             rec.PaperID,
		Type:           "article",
		Title:          rec.Title,
		ContainerTitle: rec.Venue,
		DOI:            strings.ToLower(rec.ExternalIDs.DOI),
		URL:            rec.URL,
	}
	for _, a := range rec.Authors {
		item.Author = append(item.Author, parseAuthorName(a.Name))
	}
	if rec.Year > 0 {
		item.Issued = &types.CSLDate{DateParts: [][]int{{rec.Year}}}
	}
	return item
}

func crossrefToCSL(work crossrefWork, doi string) types.CSLItem {
	m := work.Message
	item := types.CSLItem{
		ID:   doi,
		Type: "article",
		DOI:  strings.ToLower(firstNonEmpty(m.DOI, doi)),
		URL:  m.URL,
	}
	if len(m.Title) > 0 {
		item.Title = m.Title[0]
	}
	if len(m.ContainerTitle) > 0 {
		item.ContainerTitle = m.ContainerTitle[0]
	}
	for _, a := range m.Author {
		if a.Family != "" || a.Given != "" {
			item.Author = append(item.Author, types.CSLName{Family: a.Family, Given: a.Given})
		} else if a.Name != "" {
			item.Author = append(item.Author, types.CSLName{Literal: a.Name})
		}
	}
	if len(m.Issued.DateParts) > 0 && len(m.Issued.DateParts[0]) > 0 {
		item.Issued = &types.CSLDate{DateParts: m.Issued.DateParts}
	}
	return item
}

// parseAuthorName splits a full name string into CSL family/given parts.
// It splits on the last space: everything before is given, the last token
// is family. Single-token names use the literal field.
func parseAuthorName(name string) types.CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return types.CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return types.CSLName{Literal: name}
	}
	return types.CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
