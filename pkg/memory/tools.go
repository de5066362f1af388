package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StoreResolver returns the store bound to the current call. The default
// resolver reads the WithStore binding; hosts with their own session
// plumbing can supply a different one.
type StoreResolver func(ctx context.Context) (*Store, error)

// ResolveFromContext is the default StoreResolver.
func ResolveFromContext(ctx context.Context) (*Store, error) {
	s, ok := StoreFromContext(ctx)
	if !ok {
		return nil, errors.New("no memory store bound to this call")
	}
	return s, nil
}

// The five tool operations below form the progressive disclosure
// contract. Layer 1 (search) returns one index line per record; Layer 2
// (timeline) adds subtitle and up to three facts; Layer 3 (get) returns
// full detail for an explicitly chosen, capped id list.
//
// All five return human-readable text for anything the caller got
// wrong (invalid enum values, missing ids, unmatched queries) and only
// return an error for storage faults.

// MemorySearchParams defines parameters for the memory_search tool
type MemorySearchParams struct {
	Query     string `json:"query,omitempty"`
	Type      string `json:"type,omitempty"`
	Project   string `json:"project,omitempty"`
	DateStart string `json:"date_start,omitempty"`
	DateEnd   string `json:"date_end,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// MemorySearch returns the Layer 1 index: id, type, title, date, and
// confidence per result, nothing more.
func MemorySearch(ctx context.Context, store *Store, params MemorySearchParams) (string, error) {
	filters := SearchFilters{
		Project: params.Project,
		Limit:   params.Limit,
		Offset:  params.Offset,
	}

	if params.Type != "" {
		typ, err := ParseMemoryType(params.Type)
		if err != nil {
			return err.Error(), nil
		}
		filters.Type = typ
	}
	if params.DateStart != "" {
		t, err := parseDate(params.DateStart)
		if err != nil {
			return fmt.Sprintf("invalid date_start %q: use YYYY-MM-DD or RFC3339", params.DateStart), nil
		}
		filters.DateStart = &t
	}
	if params.DateEnd != "" {
		t, err := parseDate(params.DateEnd)
		if err != nil {
			return fmt.Sprintf("invalid date_end %q: use YYYY-MM-DD or RFC3339", params.DateEnd), nil
		}
		filters.DateEnd = &t
	}

	results, err := store.Search(ctx, params.Query, filters)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	return formatSearchResults(params.Query, results), nil
}

// MemoryTimelineParams defines parameters for the memory_timeline tool
type MemoryTimelineParams struct {
	AnchorID    string `json:"anchor_id,omitempty"`
	Query       string `json:"query,omitempty"`
	DepthBefore int    `json:"depth_before,omitempty"`
	DepthAfter  int    `json:"depth_after,omitempty"`
	Project     string `json:"project,omitempty"`
}

// MemoryTimeline returns the Layer 2 chronological window around an
// anchor record.
func MemoryTimeline(ctx context.Context, store *Store, params MemoryTimelineParams) (string, error) {
	if params.AnchorID == "" && params.Query == "" {
		return "either anchor_id or query is required to locate the timeline anchor", nil
	}

	timeline, err := store.Timeline(ctx, TimelineOptions{
		AnchorID:    params.AnchorID,
		Query:       params.Query,
		DepthBefore: params.DepthBefore,
		DepthAfter:  params.DepthAfter,
		Project:     params.Project,
	})
	if errors.Is(err, ErrNotFound) {
		if params.AnchorID != "" {
			return fmt.Sprintf("no memory found with id %q", params.AnchorID), nil
		}
		return fmt.Sprintf("no memory matched query %q", params.Query), nil
	}
	if err != nil {
		return "", fmt.Errorf("timeline failed: %w", err)
	}

	return formatTimeline(timeline), nil
}

// MemoryGetParams defines parameters for the memory_get tool
type MemoryGetParams struct {
	IDs []string `json:"ids"`
}

// MemoryGet returns Layer 3 full detail for up to MaxBatchGet ids.
func MemoryGet(ctx context.Context, store *Store, params MemoryGetParams) (string, error) {
	if len(params.IDs) == 0 {
		return "ids is required: pass the memory ids to retrieve", nil
	}

	truncated := len(params.IDs) > MaxBatchGet

	records, err := store.BatchFetch(ctx, params.IDs)
	if err != nil {
		return "", fmt.Errorf("batch fetch failed: %w", err)
	}
	if len(records) == 0 {
		return "none of the requested ids matched a memory (they may be archived or unknown)", nil
	}

	var b strings.Builder
	if truncated {
		fmt.Fprintf(&b, "Requested %d ids; showing the first %d.\n\n", len(params.IDs), MaxBatchGet)
	}
	b.WriteString(formatRecords(records))
	return b.String(), nil
}

// MemorySaveParams defines parameters for the memory_save tool
type MemorySaveParams struct {
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Subtitle   string   `json:"subtitle,omitempty"`
	Narrative  string   `json:"narrative,omitempty"`
	Project    string   `json:"project,omitempty"`
	Facts      []string `json:"facts,omitempty"`
	Concepts   []string `json:"concepts,omitempty"`
	Entities   []string `json:"entities,omitempty"`
	OccurredAt string   `json:"occurred_at,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// MemorySave validates the input, stores the record in both indexes, and
// reports the assigned id.
func MemorySave(ctx context.Context, store *Store, params MemorySaveParams) (string, error) {
	typ, err := ParseMemoryType(params.Type)
	if err != nil {
		return err.Error(), nil
	}

	var source MemorySource
	if params.Source != "" {
		source, err = ParseMemorySource(params.Source)
		if err != nil {
			return err.Error(), nil
		}
	}

	data := NewRecordData{
		Title:      params.Title,
		Subtitle:   params.Subtitle,
		Narrative:  params.Narrative,
		Type:       typ,
		Confidence: params.Confidence,
		Source:     source,
		Facts:      params.Facts,
		Concepts:   params.Concepts,
		Entities:   params.Entities,
		Project:    params.Project,
	}
	if params.OccurredAt != "" {
		t, err := parseDate(params.OccurredAt)
		if err != nil {
			return fmt.Sprintf("invalid occurred_at %q: use YYYY-MM-DD or RFC3339", params.OccurredAt), nil
		}
		data.OccurredAt = &t
	}
	if err := data.Validate(); err != nil {
		return err.Error(), nil
	}

	rec, err := store.Save(ctx, data)
	if err != nil {
		return "", fmt.Errorf("save failed: %w", err)
	}

	return fmt.Sprintf("Saved memory %s: %q (%s, confidence %.2f)", rec.ID, rec.Title, rec.Type, rec.Confidence), nil
}

// MemoryDeleteParams defines parameters for the memory_delete tool
type MemoryDeleteParams struct {
	ID string `json:"id"`
}

// MemoryDelete archives a record in both indexes.
func MemoryDelete(ctx context.Context, store *Store, params MemoryDeleteParams) (string, error) {
	if params.ID == "" {
		return "id is required: pass the memory id to delete", nil
	}

	existed, err := store.Archive(ctx, params.ID)
	if err != nil {
		return "", fmt.Errorf("delete failed: %w", err)
	}
	if !existed {
		return fmt.Sprintf("no memory found with id %q", params.ID), nil
	}
	return fmt.Sprintf("Archived memory %s", params.ID), nil
}

// ── Formatting ──

func formatSearchResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		if query == "" {
			return "No memories found."
		}
		return fmt.Sprintf("No memories found for %q.", query)
	}

	var b strings.Builder
	if query == "" {
		fmt.Fprintf(&b, "Found %d memories:\n", len(results))
	} else {
		fmt.Fprintf(&b, "Found %d memories for %q:\n", len(results), query)
	}
	for _, r := range results {
		fmt.Fprintf(&b, "- %s [%s] %s (%s, confidence %.2f)\n",
			r.ID, r.Type, r.Title, r.Date.Format("2006-01-02"), r.Confidence)
	}
	b.WriteString("Use memory_timeline for context around a result, or memory_get for full detail.")
	return b.String()
}

func formatTimeline(t *TimelineResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timeline around %s %q:\n", t.Anchor.ID, t.Anchor.Title)
	for _, e := range t.Before {
		writeTimelineEntry(&b, e, "  ")
	}
	writeTimelineEntry(&b, t.Anchor, "> ")
	for _, e := range t.After {
		writeTimelineEntry(&b, e, "  ")
	}
	if len(t.Before) == 0 && len(t.After) == 0 {
		b.WriteString("No other memories in this window.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTimelineEntry(b *strings.Builder, e TimelineEntry, prefix string) {
	fmt.Fprintf(b, "%s%s %s [%s] %s", prefix, e.OccurredAt.Format("2006-01-02"), e.ID, e.Type, e.Title)
	if e.Subtitle != "" {
		fmt.Fprintf(b, " - %s", e.Subtitle)
	}
	if e.Project != "" {
		fmt.Fprintf(b, " (project: %s)", e.Project)
	}
	if len(e.Facts) > 0 {
		fmt.Fprintf(b, "\n%s  facts: %s", prefix, strings.Join(e.Facts, "; "))
	}
	b.WriteString("\n")
}

func formatRecords(records []Record) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s [%s] %s\n", r.ID, r.Type, r.Title)
		if r.Subtitle != "" {
			fmt.Fprintf(&b, "  subtitle: %s\n", r.Subtitle)
		}
		if r.Narrative != "" {
			fmt.Fprintf(&b, "  narrative: %s\n", r.Narrative)
		}
		fmt.Fprintf(&b, "  source: %s, confidence %.2f\n", r.Source, r.Confidence)
		if r.Project != "" {
			fmt.Fprintf(&b, "  project: %s\n", r.Project)
		}
		if r.OccurredAt != nil {
			fmt.Fprintf(&b, "  occurred: %s\n", r.OccurredAt.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "  created: %s\n", r.CreatedAt.Format("2006-01-02"))
		if len(r.Facts) > 0 {
			fmt.Fprintf(&b, "  facts: %s\n", strings.Join(r.Facts, "; "))
		}
		if len(r.Concepts) > 0 {
			fmt.Fprintf(&b, "  concepts: %s\n", strings.Join(r.Concepts, ", "))
		}
		if len(r.Entities) > 0 {
			fmt.Fprintf(&b, "  entities: %s\n", strings.Join(r.Entities, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseDate accepts a bare date or a full RFC3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// decodeParams maps a raw tool parameter map onto a params struct.
func decodeParams(raw map[string]any, out any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}
	return nil
}
