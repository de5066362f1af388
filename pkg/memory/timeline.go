package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/open-assistants-lab/executive-assistant-sub000/internal/observability"
	"github.com/open-assistants-lab/executive-assistant-sub000/internal/tracing"
)

const (
	defaultTimelineDepth = 5
	// MaxTimelineDepth caps how far a timeline reaches on each side.
	MaxTimelineDepth = 20

	timelineMaxFacts = 3
)

// TimelineOptions selects the anchor and the window around it. Exactly
// one of AnchorID or Query must be set; Query resolves the anchor via a
// one-result search.
type TimelineOptions struct {
	AnchorID    string
	Query       string
	DepthBefore int
	DepthAfter  int
	Project     string
}

// TimelineEntry is the compact timeline view of one record: no
// narrative, at most the first three facts.
type TimelineEntry struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Subtitle   string     `json:"subtitle,omitempty"`
	Type       MemoryType `json:"type"`
	Project    string     `json:"project,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
	Facts      []string   `json:"facts,omitempty"`
}

// TimelineResult is the chronological window around the anchor. Before,
// anchor, and after read oldest to newest as one sequence.
type TimelineResult struct {
	Before []TimelineEntry `json:"before"`
	Anchor TimelineEntry   `json:"anchor"`
	After  []TimelineEntry `json:"after"`
}

// Timeline reconstructs chronological context around one record. The
// anchor's time is occurred_at when set, created_at otherwise; the
// window holds records strictly before/after that time, optionally
// restricted to the same project. Access tracking is never touched.
func (s *Store) Timeline(ctx context.Context, opts TimelineOptions) (*TimelineResult, error) {
	ctx, span := tracing.StartSpan(ctx, "assistant.memory", "memory.timeline",
		attribute.String("anchor_id", opts.AnchorID))
	defer span.End()

	start := time.Now()
	defer func() { observability.RecordMemoryTimeline(time.Since(start)) }()

	if opts.DepthBefore <= 0 {
		opts.DepthBefore = defaultTimelineDepth
	}
	if opts.DepthAfter <= 0 {
		opts.DepthAfter = defaultTimelineDepth
	}
	if opts.DepthBefore > MaxTimelineDepth {
		opts.DepthBefore = MaxTimelineDepth
	}
	if opts.DepthAfter > MaxTimelineDepth {
		opts.DepthAfter = MaxTimelineDepth
	}

	anchor, err := s.resolveAnchor(ctx, opts)
	if err != nil {
		return nil, err
	}
	anchorTime := anchor.EventTime()

	before, err := s.timelineSide(ctx, anchor.ID, anchorTime, opts.Project, opts.DepthBefore, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline before anchor: %w", err)
	}
	// Fetched nearest-to-anchor first; flip so the whole sequence reads
	// oldest to newest.
	for i, j := 0, len(before)-1; i < j; i, j = i+1, j-1 {
		before[i], before[j] = before[j], before[i]
	}

	after, err := s.timelineSide(ctx, anchor.ID, anchorTime, opts.Project, opts.DepthAfter, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline after anchor: %w", err)
	}

	return &TimelineResult{
		Before: before,
		Anchor: timelineEntry(anchor),
		After:  after,
	}, nil
}

// resolveAnchor loads the anchor record from an explicit id or a
// one-result search.
func (s *Store) resolveAnchor(ctx context.Context, opts TimelineOptions) (*Record, error) {
	if opts.AnchorID != "" {
		return s.getRecord(ctx, opts.AnchorID)
	}
	if opts.Query == "" {
		return nil, errors.New("timeline requires an anchor id or a query")
	}

	results, err := s.Search(ctx, opts.Query, SearchFilters{Project: opts.Project, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no memory matched query %q", ErrNotFound, opts.Query)
	}
	return s.getRecord(ctx, results[0].ID)
}

// timelineSide loads one side of the window, nearest to the anchor first.
func (s *Store) timelineSide(ctx context.Context, anchorID string, anchorTime time.Time, project string, depth int, before bool) ([]TimelineEntry, error) {
	cmp, order := ">", "ASC"
	if before {
		cmp, order = "<", "DESC"
	}

	where := []string{
		"archived = 0",
		"id != ?",
		fmt.Sprintf("COALESCE(occurred_at, created_at) %s ?", cmp),
	}
	args := []any{anchorID, anchorTime.Unix()}
	if project != "" {
		where = append(where, "project = ?")
		args = append(args, project)
	}
	args = append(args, depth)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, title, subtitle, type, project, occurred_at, created_at, facts
		FROM memories
		WHERE %s
		ORDER BY COALESCE(occurred_at, created_at) %s
		LIMIT ?`, strings.Join(where, " AND "), order), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		var typ, facts string
		var occurredAt, createdAt int64
		var occurred *int64
		if err := rows.Scan(&e.ID, &e.Title, &e.Subtitle, &typ, &e.Project, &occurred, &createdAt, &facts); err != nil {
			return nil, err
		}
		if occurred != nil {
			occurredAt = *occurred
		} else {
			occurredAt = createdAt
		}
		e.Type = MemoryType(typ)
		e.OccurredAt = time.Unix(occurredAt, 0).UTC()
		e.Facts = truncateFacts(unmarshalList(facts))
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func timelineEntry(rec *Record) TimelineEntry {
	return TimelineEntry{
		ID:         rec.ID,
		Title:      rec.Title,
		Subtitle:   rec.Subtitle,
		Type:       rec.Type,
		Project:    rec.Project,
		OccurredAt: rec.EventTime(),
		Facts:      truncateFacts(rec.Facts),
	}
}

func truncateFacts(facts []string) []string {
	if len(facts) > timelineMaxFacts {
		return facts[:timelineMaxFacts]
	}
	return facts
}
