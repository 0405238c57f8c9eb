// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve turns source references into durable, project-scoped
// citations. Resolution is idempotent: the same source resolved twice in one
// project yields the same cite key and first-seen order.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/sadiq-codes/genpaper/internal/httputil"
	"github.com/sadiq-codes/genpaper/internal/placeholder"
	"github.com/sadiq-codes/genpaper/internal/store"
	"github.com/sadiq-codes/genpaper/pkg/types"
)

// DefaultResolveTimeout bounds one resolution call end to end.
const DefaultResolveTimeout = 10 * time.Second

// maxKeyAttempts bounds cite-key disambiguation for distinct sources that
// derive the same base key.
const maxKeyAttempts = 10

// urlDOIPattern extracts a DOI from doi.org resolver URLs.
var urlDOIPattern = regexp.MustCompile(`doi\.org/(10\.\d{4,9}/[^\s?#]+)`)

// Store is the persistence dependency of the resolver.
type Store interface {
	FindCitation(ctx context.Context, projectID, citeKey string) (types.Citation, error)
	InsertCitationIfAbsent(ctx context.Context, projectID, citeKey string, csl types.CSLItem) (types.Citation, bool, error)
}

// Resolver resolves source references against a catalog and persists them.
type Resolver struct {
	store   Store
	catalog Catalog
	timeout time.Duration
}

// New creates a Resolver. A zero ResolveTimeout uses DefaultResolveTimeout.
func New(st Store, catalog Catalog, cfg types.ResolverConfig) *Resolver {
	timeout := cfg.ResolveTimeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	return &Resolver{store: st, catalog: catalog, timeout: timeout}
}

// Resolve locates the bibliographic record for ref and returns the durable
// citation, creating it on first sight. The reason string describes why the
// resolution was requested and appears only in error text.
func (r *Resolver) Resolve(ctx context.Context, projectID string, ref types.SourceReference, reason string) (types.ResolutionResult, error) {
	if ref.IsEmpty() {
		return types.ResolutionResult{}, fmt.Errorf("%w: reference has no identifying field (%s)", ErrUnresolvable, reason)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	csl, err := r.locate(ctx, ref)
	if err != nil {
		return types.ResolutionResult{}, err
	}
	return r.persist(ctx, projectID, csl)
}

// locate picks the strongest identifying field and queries the catalog.
// The order is fixed: paper id, DOI, title, then DOI extraction from a URL.
func (r *Resolver) locate(ctx context.Context, ref types.SourceReference) (types.CSLItem, error) {
	switch {
	case ref.PaperID != "":
		return r.lookup(ctx, func() (types.CSLItem, error) {
			return r.catalog.PaperByID(ctx, ref.PaperID)
		})
	case ref.DOI != "":
		return r.lookup(ctx, func() (types.CSLItem, error) {
			return r.catalog.WorkByDOI(ctx, placeholder.NormalizeDOI(ref.DOI))
		})
	case ref.Title != "":
		return r.lookup(ctx, func() (types.CSLItem, error) {
			return r.catalog.SearchTitle(ctx, ref.Title)
		})
	case ref.URL != "":
		m := urlDOIPattern.FindStringSubmatch(ref.URL)
		if m == nil {
			return types.CSLItem{}, fmt.Errorf("%w: no DOI in url %s", ErrUnresolvable, ref.URL)
		}
		return r.lookup(ctx, func() (types.CSLItem, error) {
			return r.catalog.WorkByDOI(ctx, placeholder.NormalizeDOI(m[1]))
		})
	default:
		return types.CSLItem{}, ErrUnresolvable
	}
}

// lookup runs one catalog call and maps a definitive miss to ErrUnresolvable
// while leaving transient failures retryable for the orchestrator.
func (r *Resolver) lookup(ctx context.Context, fn func() (types.CSLItem, error)) (types.CSLItem, error) {
	csl, err := fn()
	if err != nil {
		if errors.Is(err, httputil.ErrNotFound) {
			return types.CSLItem{}, fmt.Errorf("%w: %v", ErrUnresolvable, err)
		}
		return types.CSLItem{}, err
	}
	return csl, nil
}

// persist creates or fetches the citation row under a stable cite key. Base
// keys that already belong to a different source are disambiguated with a
// suffix; the same source always converges on its existing row, which is how
// placeholders of different kinds naming one paper end up as one citation.
func (r *Resolver) persist(ctx context.Context, projectID string, csl types.CSLItem) (types.ResolutionResult, error) {
	base := DeriveCiteKey(csl)

	for i := 0; i < maxKeyAttempts; i++ {
		key := withSuffix(base, i)

		existing, err := r.store.FindCitation(ctx, projectID, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c, inserted, err := r.store.InsertCitationIfAbsent(ctx, projectID, key, csl)
			if err != nil {
				return types.ResolutionResult{}, storageErr(err)
			}
			if !inserted && !sameSource(c.CSL, csl) {
				// Lost a race to a different source; try the next suffix.
				continue
			}
			return result(c, inserted), nil
		case err != nil:
			return types.ResolutionResult{}, storageErr(err)
		case sameSource(existing.CSL, csl):
			return result(existing, false), nil
		}
		// Key taken by a different source; try the next suffix.
	}
	return types.ResolutionResult{}, storageErr(fmt.Errorf("could not allocate cite key for %q", base))
}

func result(c types.Citation, inserted bool) types.ResolutionResult {
	return types.ResolutionResult{
		CiteKey:        c.CiteKey,
		CSL:            c.CSL,
		FirstSeenOrder: c.FirstSeenOrder,
		IsNewlyCreated: inserted,
	}
}

// sameSource reports whether two records describe the same underlying work:
// matching non-empty DOIs, or matching normalized titles when either DOI is
// missing.
func sameSource(a, b types.CSLItem) bool {
	if a.DOI != "" && b.DOI != "" {
		return placeholder.NormalizeDOI(a.DOI) == placeholder.NormalizeDOI(b.DOI)
	}
	return placeholder.Normalize(types.KindTitle, a.Title) == placeholder.Normalize(types.KindTitle, b.Title)
}
