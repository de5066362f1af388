package memory

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T, capacity int) *Sessions {
	t.Helper()

	sessions, err := NewSessions(SessionsConfig{
		DataDir:  t.TempDir(),
		Capacity: capacity,
		Logger:   zerolog.New(nil).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	t.Cleanup(sessions.Close)
	return sessions
}

func TestNewSessionsRequiresDataDir(t *testing.T) {
	_, err := NewSessions(SessionsConfig{})
	assert.Error(t, err)
}

func TestSessionsAcquireReturnsSameStore(t *testing.T) {
	sessions := newTestSessions(t, 4)

	a, err := sessions.Acquire("alice")
	skipWithoutFTS5(t, err)
	require.NoError(t, err)
	b, err := sessions.Acquire("alice")
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, "alice", a.UserID())
	assert.Equal(t, 1, sessions.Len())
}

func TestSessionsIsolatePerUser(t *testing.T) {
	sessions := newTestSessions(t, 4)
	ctx := context.Background()

	alice, err := sessions.Acquire("alice")
	skipWithoutFTS5(t, err)
	require.NoError(t, err)
	bob, err := sessions.Acquire("bob")
	require.NoError(t, err)

	rec, err := alice.Save(ctx, NewRecordData{Title: "Alice private note", Type: TypeContext})
	require.NoError(t, err)

	_, err = bob.Fetch(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsRejectsUnsafeUserIDs(t *testing.T) {
	sessions := newTestSessions(t, 4)

	for _, id := range []string{"", "a/b", `a\b`, ".", ".."} {
		_, err := sessions.Acquire(id)
		assert.Error(t, err, "user id %q should be rejected", id)
	}
	assert.Equal(t, 0, sessions.Len())
}

func TestSessionsEvictOnCapacity(t *testing.T) {
	sessions := newTestSessions(t, 2)

	_, err := sessions.Acquire("alice")
	skipWithoutFTS5(t, err)
	require.NoError(t, err)
	_, err = sessions.Acquire("bob")
	require.NoError(t, err)
	_, err = sessions.Acquire("carol")
	require.NoError(t, err)

	// The LRU closed alice's store; reacquiring reopens it cleanly.
	assert.Equal(t, 2, sessions.Len())
	reopened, err := sessions.Acquire("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", reopened.UserID())
}

func TestSessionsEvict(t *testing.T) {
	sessions := newTestSessions(t, 4)

	first, err := sessions.Acquire("alice")
	skipWithoutFTS5(t, err)
	require.NoError(t, err)

	sessions.Evict("alice")
	assert.Equal(t, 0, sessions.Len())

	second, err := sessions.Acquire("alice")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestSessionsClose(t *testing.T) {
	sessions := newTestSessions(t, 4)

	_, err := sessions.Acquire("alice")
	skipWithoutFTS5(t, err)
	require.NoError(t, err)
	_, err = sessions.Acquire("bob")
	require.NoError(t, err)

	sessions.Close()
	assert.Equal(t, 0, sessions.Len())
}
