package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dateAt(day int) *time.Time {
	t := time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSearchKeyword(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	rec := saveRecord(t, s, NewRecordData{
		Title:    "Switched the editor to dark mode",
		Type:     TypePreference,
		Facts:    []string{"prefers high contrast themes"},
		Concepts: []string{"editor", "appearance"},
	})
	saveRecord(t, s, NewRecordData{Title: "Coffee brewing ratio notes", Type: TypeContext})

	results, err := s.Search(ctx, "dark mode", SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].ID)
	assert.Equal(t, rec.Title, results[0].Title)
	assert.Equal(t, TypePreference, results[0].Type)

	// Facts and concepts are searchable too.
	results, err = s.Search(ctx, "contrast", SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].ID)
}

func TestSearchEmptyQueryListsByDate(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	first := saveRecord(t, s, NewRecordData{Title: "Oldest entry in the log", Type: TypeContext, OccurredAt: dateAt(1)})
	second := saveRecord(t, s, NewRecordData{Title: "Middle entry in the log", Type: TypeContext, OccurredAt: dateAt(2)})
	third := saveRecord(t, s, NewRecordData{Title: "Newest entry in the log", Type: TypeContext, OccurredAt: dateAt(3)})

	results, err := s.Search(ctx, "", SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, third.ID, results[0].ID)
	assert.Equal(t, first.ID, results[2].ID)

	results, err = s.Search(ctx, "", SearchFilters{Order: DateAsc})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, first.ID, results[0].ID)

	results, err = s.Search(ctx, "", SearchFilters{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, second.ID, results[0].ID)
}

func TestSearchFilters(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	decision := saveRecord(t, s, NewRecordData{
		Title:      "Launch decision for the beta",
		Type:       TypeDecision,
		Project:    "beta",
		OccurredAt: dateAt(10),
	})
	saveRecord(t, s, NewRecordData{
		Title:      "Launch task for the beta",
		Type:       TypeTask,
		Project:    "beta",
		OccurredAt: dateAt(20),
	})
	saveRecord(t, s, NewRecordData{
		Title:   "Launch notes for another project",
		Type:    TypeDecision,
		Project: "gamma",
	})

	results, err := s.Search(ctx, "launch", SearchFilters{Type: TypeDecision, Project: "beta"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, decision.ID, results[0].ID)

	results, err = s.Search(ctx, "launch", SearchFilters{
		Project:   "beta",
		DateStart: dateAt(15),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, TypeTask, results[0].Type)

	results, err = s.Search(ctx, "launch", SearchFilters{
		Project: "beta",
		DateEnd: dateAt(15),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, decision.ID, results[0].ID)
}

func TestSearchMalformedQueryFallsBackToLiteral(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	rec := saveRecord(t, s, NewRecordData{Title: "Dark mode everywhere", Type: TypePreference})

	// Unbalanced quote is invalid FTS5 syntax; the retry treats it as a
	// literal phrase instead of failing the search.
	results, err := s.Search(ctx, `"dark`, SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].ID)
}

func TestSearchMergesKeywordFirst(t *testing.T) {
	s := newTestStore(t, NewMockEmbeddingProvider(8))
	ctx := context.Background()

	keywordHit := saveRecord(t, s, NewRecordData{Title: "Enabled dark mode in the editor", Type: TypePreference})
	other := saveRecord(t, s, NewRecordData{Title: "Morning espresso ritual", Type: TypeContext})

	results, err := s.Search(ctx, "dark mode", SearchFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The exact text match leads even when the semantic branch also
	// surfaces it; each id appears once.
	assert.Equal(t, keywordHit.ID, results[0].ID)
	seen := map[string]int{}
	for _, r := range results {
		seen[r.ID]++
	}
	assert.Equal(t, 1, seen[keywordHit.ID])
	assert.LessOrEqual(t, seen[other.ID], 1)
}

func TestSearchPagesDoNotOverlap(t *testing.T) {
	s := newTestStore(t, NewMockEmbeddingProvider(8))
	ctx := context.Background()

	saveRecord(t, s, NewRecordData{Title: "Alpha deployment checklist", Type: TypeTask})
	saveRecord(t, s, NewRecordData{Title: "Beta deployment checklist", Type: TypeTask})
	saveRecord(t, s, NewRecordData{Title: "Gamma launch retrospective", Type: TypeContext})

	page1, err := s.Search(ctx, "deployment", SearchFilters{Limit: 2})
	require.NoError(t, err)
	page2, err := s.Search(ctx, "deployment", SearchFilters{Limit: 2, Offset: 2})
	require.NoError(t, err)

	// A result shown on the first page, keyword or semantic, never
	// reappears on the next one.
	seen := map[string]bool{}
	for _, r := range page1 {
		seen[r.ID] = true
	}
	for _, r := range page2 {
		assert.False(t, seen[r.ID], "record %s appeared on both pages", r.ID)
	}
}

func TestSearchDegradesWhenEmbedderFails(t *testing.T) {
	s := newTestStore(t, &failingEmbeddingProvider{})
	ctx := context.Background()

	rec := saveRecord(t, s, NewRecordData{Title: "Keyword retrieval still works", Type: TypeContext})

	results, err := s.Search(ctx, "keyword retrieval", SearchFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.ID, results[0].ID)
}

func TestSearchLimitClamp(t *testing.T) {
	s := newTestStore(t, nil)

	f := SearchFilters{Limit: MaxSearchLimit + 50}
	_, err := s.Search(context.Background(), "", f)
	require.NoError(t, err)
}
