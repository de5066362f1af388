package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/open-assistants-lab/executive-assistant-sub000/internal/observability"
	"github.com/open-assistants-lab/executive-assistant-sub000/internal/tracing"
)

const (
	defaultSearchLimit = 20
	// MaxSearchLimit caps how many index entries one search returns.
	MaxSearchLimit = 100
)

// SortOrder selects date ordering for unranked (query-less) searches.
type SortOrder string

const (
	DateDesc SortOrder = "date_desc"
	DateAsc  SortOrder = "date_asc"
)

// SearchFilters narrows a search. Zero values mean "no filter".
type SearchFilters struct {
	Type      MemoryType
	Project   string
	DateStart *time.Time
	DateEnd   *time.Time
	Order     SortOrder
	Limit     int
	Offset    int
}

// SearchResult is one compact index entry: enough to decide whether a
// record is worth a timeline or full-detail call, and nothing more.
type SearchResult struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Type       MemoryType `json:"type"`
	Project    string     `json:"project,omitempty"`
	Date       time.Time  `json:"date"`
	Confidence float64    `json:"confidence"`
}

// Search runs keyword and semantic retrieval in parallel and merges the
// two result sets with keyword matches first. A record surfaced by both
// branches appears once, at its keyword-branch position: exact text hits
// outrank embedding similarity at this layer.
//
// Either branch failing degrades that branch to empty results; Search as
// a whole only fails on storage faults in the merge path. Confidence
// filtering is deliberately left to the caller.
func (s *Store) Search(ctx context.Context, query string, f SearchFilters) ([]SearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "assistant.memory", "memory.search",
		attribute.String("query", query))
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, s.logger)
	start := time.Now()
	defer func() { observability.RecordMemorySearch(time.Since(start)) }()

	if f.Limit <= 0 {
		f.Limit = defaultSearchLimit
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	// Both branches fetch the whole window up to offset+limit and the
	// offset is applied to the merged list, so a page never re-surfaces a
	// semantic hit already shown on an earlier page.
	branch := f
	branch.Limit = f.Limit + f.Offset
	branch.Offset = 0

	var (
		keywordResults  []SearchResult
		semanticResults []SearchResult
		keywordErr      error
		semanticErr     error
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = s.keywordSearch(ctx, query, branch)
	}()

	if query != "" && s.vectors != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			semanticResults, semanticErr = s.semanticSearch(ctx, query, branch)
		}()
	}
	wg.Wait()

	if keywordErr != nil {
		logger.Warn().Err(keywordErr).Msg("Keyword search failed, using semantic only")
		keywordResults = nil
	}
	if semanticErr != nil {
		logger.Warn().Err(semanticErr).Msg("Semantic search failed, using keyword only")
		semanticResults = nil
	}

	// Keyword first, then semantic; first occurrence wins the dedup.
	merged := make([]SearchResult, 0, len(keywordResults)+len(semanticResults))
	seen := make(map[string]bool, len(keywordResults))
	for _, r := range keywordResults {
		if !seen[r.ID] {
			seen[r.ID] = true
			merged = append(merged, r)
		}
	}
	for _, r := range semanticResults {
		if !seen[r.ID] {
			seen[r.ID] = true
			merged = append(merged, r)
		}
	}
	if f.Offset >= len(merged) {
		merged = nil
	} else {
		merged = merged[f.Offset:]
	}
	if len(merged) > f.Limit {
		merged = merged[:f.Limit]
	}

	logger.Debug().Str("query", query).Int("results", len(merged)).Msg("Search completed")
	return merged, nil
}

// keywordSearch runs a ranked FTS5 match when a query is present, and a
// plain date-ordered listing otherwise. A query that is not valid FTS5
// syntax is retried once as a literal quoted phrase.
func (s *Store) keywordSearch(ctx context.Context, query string, f SearchFilters) ([]SearchResult, error) {
	where, args := searchConditions(f, "m")

	if query == "" {
		order := "DESC"
		if f.Order == DateAsc {
			order = "ASC"
		}
		sqlStr := fmt.Sprintf(`
			SELECT m.id, m.title, m.type, m.project, COALESCE(m.occurred_at, m.created_at), m.confidence
			FROM memories m
			WHERE %s
			ORDER BY COALESCE(m.occurred_at, m.created_at) %s
			LIMIT ? OFFSET ?`, strings.Join(where, " AND "), order)
		args = append(args, f.Limit, f.Offset)
		return s.queryCompact(ctx, sqlStr, args...)
	}

	sqlStr := fmt.Sprintf(`
		SELECT m.id, m.title, m.type, m.project, COALESCE(m.occurred_at, m.created_at), m.confidence
		FROM memories_fts
		JOIN memories m ON m.id = memories_fts.id
		WHERE memories_fts MATCH ? AND %s
		ORDER BY bm25(memories_fts)
		LIMIT ? OFFSET ?`, strings.Join(where, " AND "))
	args = append([]any{query}, args...)
	args = append(args, f.Limit, f.Offset)

	results, err := s.queryCompact(ctx, sqlStr, args...)
	if err != nil {
		// Most likely malformed MATCH syntax; retry as a literal phrase.
		args[0] = literalPhrase(query)
		results, err = s.queryCompact(ctx, sqlStr, args...)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// semanticSearch maps vector hits back through the relational table so
// archived rows and date filters apply, preserving similarity order.
func (s *Store) semanticSearch(ctx context.Context, query string, f SearchFilters) ([]SearchResult, error) {
	where := make(map[string]string)
	if f.Type != "" {
		where["type"] = string(f.Type)
	}
	if f.Project != "" {
		where["project"] = f.Project
	}
	if len(where) == 0 {
		where = nil
	}

	hits, err := s.vectors.Query(ctx, query, f.Limit, where)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]any, len(hits))
	placeholders := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		placeholders[i] = "?"
	}

	cond, condArgs := searchConditions(f, "m")
	sqlStr := fmt.Sprintf(`
		SELECT m.id, m.title, m.type, m.project, COALESCE(m.occurred_at, m.created_at), m.confidence
		FROM memories m
		WHERE m.id IN (%s) AND %s`, strings.Join(placeholders, ","), strings.Join(cond, " AND "))

	rows, err := s.queryCompact(ctx, sqlStr, append(ids, condArgs...)...)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]SearchResult, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	ordered := make([]SearchResult, 0, len(rows))
	for _, h := range hits {
		if r, ok := byID[h.ID]; ok {
			ordered = append(ordered, r)
		}
	}
	return ordered, nil
}

func (s *Store) queryCompact(ctx context.Context, sqlStr string, args ...any) ([]SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var typ string
		var date int64
		if err := rows.Scan(&r.ID, &r.Title, &typ, &r.Project, &date, &r.Confidence); err != nil {
			return nil, err
		}
		r.Type = MemoryType(typ)
		r.Date = time.Unix(date, 0).UTC()
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchConditions builds the shared WHERE fragment for both branches.
func searchConditions(f SearchFilters, alias string) ([]string, []any) {
	where := []string{alias + ".archived = 0"}
	var args []any

	if f.Type != "" {
		where = append(where, alias+".type = ?")
		args = append(args, string(f.Type))
	}
	if f.Project != "" {
		where = append(where, alias+".project = ?")
		args = append(args, f.Project)
	}
	if f.DateStart != nil {
		where = append(where, fmt.Sprintf("COALESCE(%s.occurred_at, %s.created_at) >= ?", alias, alias))
		args = append(args, f.DateStart.Unix())
	}
	if f.DateEnd != nil {
		where = append(where, fmt.Sprintf("COALESCE(%s.occurred_at, %s.created_at) <= ?", alias, alias))
		args = append(args, f.DateEnd.Unix())
	}
	return where, args
}

// literalPhrase quotes a query so FTS5 treats it as a plain phrase.
func literalPhrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}
