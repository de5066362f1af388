package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTimeline(t *testing.T, s *Store) []*Record {
	t.Helper()
	titles := []string{
		"Kickoff meeting for the rollout",
		"Vendor contract signed",
		"Staging environment ready",
		"First production deploy",
		"Postmortem for launch week",
	}
	records := make([]*Record, len(titles))
	for i, title := range titles {
		records[i] = saveRecord(t, s, NewRecordData{
			Title:      title,
			Type:       TypeContext,
			Project:    "rollout",
			OccurredAt: dateAt(i + 1),
			Facts:      []string{"fact one", "fact two", "fact three", "fact four"},
		})
	}
	return records
}

func TestTimelineAroundAnchor(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	records := seedTimeline(t, s)

	tl, err := s.Timeline(ctx, TimelineOptions{AnchorID: records[2].ID, DepthBefore: 2, DepthAfter: 2})
	require.NoError(t, err)

	assert.Equal(t, records[2].ID, tl.Anchor.ID)

	require.Len(t, tl.Before, 2)
	assert.Equal(t, records[0].ID, tl.Before[0].ID)
	assert.Equal(t, records[1].ID, tl.Before[1].ID)

	require.Len(t, tl.After, 2)
	assert.Equal(t, records[3].ID, tl.After[0].ID)
	assert.Equal(t, records[4].ID, tl.After[1].ID)

	// Whole window reads oldest to newest.
	var seq []TimelineEntry
	seq = append(seq, tl.Before...)
	seq = append(seq, tl.Anchor)
	seq = append(seq, tl.After...)
	for i := 1; i < len(seq); i++ {
		assert.False(t, seq[i].OccurredAt.Before(seq[i-1].OccurredAt))
	}
}

func TestTimelineEntriesAreCompact(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	records := seedTimeline(t, s)

	tl, err := s.Timeline(ctx, TimelineOptions{AnchorID: records[2].ID})
	require.NoError(t, err)

	// At most three facts per entry, never the narrative.
	assert.LessOrEqual(t, len(tl.Anchor.Facts), timelineMaxFacts)
	for _, e := range append(tl.Before, tl.After...) {
		assert.LessOrEqual(t, len(e.Facts), timelineMaxFacts)
	}
}

func TestTimelineDepthBounds(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	records := seedTimeline(t, s)

	// Window edges: first record has nothing before it.
	tl, err := s.Timeline(ctx, TimelineOptions{AnchorID: records[0].ID})
	require.NoError(t, err)
	assert.Empty(t, tl.Before)
	assert.Len(t, tl.After, 4)

	// Depth of 1 each side.
	tl, err = s.Timeline(ctx, TimelineOptions{AnchorID: records[2].ID, DepthBefore: 1, DepthAfter: 1})
	require.NoError(t, err)
	assert.Len(t, tl.Before, 1)
	assert.Len(t, tl.After, 1)
	assert.Equal(t, records[1].ID, tl.Before[0].ID)
	assert.Equal(t, records[3].ID, tl.After[0].ID)
}

func TestTimelineProjectFilter(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	records := seedTimeline(t, s)

	// A record from another project sits inside the window but is invisible
	// when the timeline is scoped.
	saveRecord(t, s, NewRecordData{
		Title:      "Unrelated note from another effort",
		Type:       TypeContext,
		Project:    "other",
		OccurredAt: dateAt(4),
	})

	tl, err := s.Timeline(ctx, TimelineOptions{AnchorID: records[2].ID, Project: "rollout"})
	require.NoError(t, err)
	for _, e := range append(tl.Before, tl.After...) {
		assert.Equal(t, "rollout", e.Project)
	}
	assert.Len(t, tl.After, 2)
}

func TestTimelineAnchorByQuery(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	records := seedTimeline(t, s)

	tl, err := s.Timeline(ctx, TimelineOptions{Query: "staging environment"})
	require.NoError(t, err)
	assert.Equal(t, records[2].ID, tl.Anchor.ID)
	assert.NotEmpty(t, tl.Before)
	assert.NotEmpty(t, tl.After)
}

func TestTimelineAnchorErrors(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	seedTimeline(t, s)

	_, err := s.Timeline(ctx, TimelineOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anchor")

	_, err = s.Timeline(ctx, TimelineOptions{AnchorID: "mem_unknown"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Timeline(ctx, TimelineOptions{Query: "zzzqqq nothing matches"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTimelineArchivedExcluded(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()
	records := seedTimeline(t, s)

	_, err := s.Archive(ctx, records[3].ID)
	require.NoError(t, err)

	tl, err := s.Timeline(ctx, TimelineOptions{AnchorID: records[2].ID})
	require.NoError(t, err)
	require.Len(t, tl.After, 1)
	assert.Equal(t, records[4].ID, tl.After[0].ID)
}
