// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"errors"
	"fmt"

	"github.com/sadiq-codes/genpaper/internal/httputil"
)

var (
	// ErrUnresolvable indicates no identifying field could locate a
	// bibliographic record. Callers substitute fallback text.
	ErrUnresolvable = errors.New("source could not be resolved")

	// ErrStorage indicates the citation store failed. Unlike resolution
	// failures this is fatal to the owning stream.
	ErrStorage = errors.New("citation storage failure")
)

// IsTransient reports whether the resolution failure is worth retrying.
// Unresolvable sources and storage failures are not; backend hiccups are.
func IsTransient(err error) bool {
	if errors.Is(err, ErrUnresolvable) || errors.Is(err, ErrStorage) {
		return false
	}
	return httputil.IsTransient(err)
}

// storageErr wraps a store failure so it carries the fatal sentinel.
func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}
