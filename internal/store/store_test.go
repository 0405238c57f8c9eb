// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "citations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCSL(doi string) types.CSLItem {
	return types.CSLItem{
		ID:    doi,
		Type:  "article",
		Title: "A Sample Paper",
		Author: []types.CSLName{
			{Family: "Smith", Given: "Jane"},
		},
		Issued: &types.CSLDate{DateParts: [][]int{{2023, 4, 1}}},
		DOI:    doi,
	}
}

func TestInsertCitationIfAbsent_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, inserted, err := s.InsertCitationIfAbsent(ctx, "p1", "smith2023", sampleCSL("10.1/abc"))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 1, first.FirstSeenOrder)

	second, inserted, err := s.InsertCitationIfAbsent(ctx, "p1", "smith2023", sampleCSL("10.1/abc"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FirstSeenOrder, second.FirstSeenOrder)
}

func TestFirstSeenOrder_MonotonicAndGapless(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	keys := []string{"a2020", "b2021", "c2022", "d2023"}
	for i, key := range keys {
		c, inserted, err := s.InsertCitationIfAbsent(ctx, "p1", key, sampleCSL("10.1/"+key))
		require.NoError(t, err)
		require.True(t, inserted)
		assert.Equal(t, i+1, c.FirstSeenOrder)
	}

	// Re-inserting an existing key must not consume a sequence value.
	_, inserted, err := s.InsertCitationIfAbsent(ctx, "p1", "a2020", sampleCSL("10.1/a2020"))
	require.NoError(t, err)
	require.False(t, inserted)

	c, inserted, err := s.InsertCitationIfAbsent(ctx, "p1", "e2024", sampleCSL("10.1/e2024"))
	require.NoError(t, err)
	require.True(t, inserted)
	assert.Equal(t, 5, c.FirstSeenOrder)
}

func TestSequencesArePerProject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c1, _, err := s.InsertCitationIfAbsent(ctx, "p1", "smith2023", sampleCSL("10.1/abc"))
	require.NoError(t, err)
	c2, _, err := s.InsertCitationIfAbsent(ctx, "p2", "smith2023", sampleCSL("10.1/abc"))
	require.NoError(t, err)

	assert.Equal(t, 1, c1.FirstSeenOrder)
	assert.Equal(t, 1, c2.FirstSeenOrder)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestConcurrentInsertsProduceOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	insertedCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, inserted, err := s.InsertCitationIfAbsent(ctx, "p1", "smith2023", sampleCSL("10.1/abc"))
			assert.NoError(t, err)
			insertedCount <- inserted
		}()
	}
	wg.Wait()
	close(insertedCount)

	inserts := 0
	for ok := range insertedCount {
		if ok {
			inserts++
		}
	}
	assert.Equal(t, 1, inserts, "exactly one goroutine should create the row")

	citations, err := s.ListCitations(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, citations, 1)
	assert.Equal(t, 1, citations[0].FirstSeenOrder)
}

func TestFindCitation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.FindCitation(ctx, "p1", "missing2020")
	assert.ErrorIs(t, err, ErrNotFound)

	want, _, err := s.InsertCitationIfAbsent(ctx, "p1", "smith2023", sampleCSL("10.1/abc"))
	require.NoError(t, err)

	got, err := s.FindCitation(ctx, "p1", "smith2023")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, "A Sample Paper", got.CSL.Title)
	assert.Equal(t, "Smith", got.CSL.FirstAuthorFamily())
	assert.Equal(t, 2023, got.CSL.Year())
}

func TestListCitationsOrdered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"c2022", "a2020", "b2021"} {
		_, _, err := s.InsertCitationIfAbsent(ctx, "p1", key, sampleCSL("10.1/"+key))
		require.NoError(t, err)
	}

	citations, err := s.ListCitations(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, citations, 3)
	for i, c := range citations {
		assert.Equal(t, i+1, c.FirstSeenOrder)
	}
	assert.Equal(t, "c2022", citations[0].CiteKey)
}
