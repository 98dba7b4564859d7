package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-go-golems/timmy/pkg/conversation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStartsWithEmptyHistory(t *testing.T) {
	r := NewRegistry()
	id := r.Create("teach me flask", "pdf text")

	s, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, "teach me flask", s.UserPrompt)
	assert.Equal(t, "pdf text", s.PDFContext)
	assert.Equal(t, 0, s.Len())
	assert.True(t, strings.HasPrefix(id, IDPrefix))
}

func TestCreateGeneratesUniqueIDs(t *testing.T) {
	r := NewRegistry()
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id := r.Create("p", "")
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 1000, r.Len())
}

func TestInsertRedrawsCollidingIDs(t *testing.T) {
	ids := []string{"session_a", "session_a", "session_b"}
	i := 0
	r := NewRegistry(WithIDGenerator(func() string {
		id := ids[i]
		i++
		return id
	}))

	assert.Equal(t, "session_a", r.Create("first", ""))
	assert.Equal(t, "session_b", r.Create("second", ""))

	first, err := r.Get("session_a")
	require.NoError(t, err)
	assert.Equal(t, "first", first.UserPrompt)
}

func TestGetUnknownSession(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("session_stale")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestResetRemovesSession(t *testing.T) {
	r := NewRegistry()
	id := r.Create("p", "")

	assert.True(t, r.Reset(id))
	_, err := r.Get(id)
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, r.Reset(id))
}

func TestUpdateReplacesSession(t *testing.T) {
	r := NewRegistry()
	id := r.Create("p", "")

	replacement := New("p", "")
	require.NoError(t, replacement.Append(conversation.NewAssistantMessage("step 1")))
	require.NoError(t, r.Update(id, replacement))

	s, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, id, s.ID)

	require.ErrorIs(t, r.Update("session_missing", New("p", "")), ErrSessionNotFound)
	require.ErrorIs(t, r.Update(id, nil), ErrSessionNil)
}

func TestSessionsDoNotShareHistory(t *testing.T) {
	r := NewRegistry()
	a, err := r.Get(r.Create("a", ""))
	require.NoError(t, err)
	b, err := r.Get(r.Create("b", ""))
	require.NoError(t, err)

	require.NoError(t, a.Append(conversation.NewAssistantMessage("for a")))
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

func TestBeginRejectsSecondInFlightRequest(t *testing.T) {
	s := New("p", "")
	require.NoError(t, s.Begin())
	require.ErrorIs(t, s.Begin(), ErrSessionBusy)
	assert.True(t, s.InFlight())

	s.End()
	require.NoError(t, s.Begin())
	s.End()
}

func TestBeginConcurrent(t *testing.T) {
	s := New("p", "")
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Begin() == nil {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, started)
}

func TestMaxSessionsEvictsLeastRecentlyUsed(t *testing.T) {
	n := 0
	r := NewRegistry(WithMaxSessions(2), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("session_%d", n)
	}))

	first := r.Create("1", "")
	second := r.Create("2", "")

	// touch the first one so that the second becomes the oldest
	s, err := r.Get(first)
	require.NoError(t, err)
	require.NoError(t, s.Begin())
	s.End()

	third := r.Create("3", "")
	assert.Equal(t, 2, r.Len())
	assert.ElementsMatch(t, []string{first, third}, r.IDs())

	_, err = r.Get(second)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMaxSessionsKeepsInFlightSessions(t *testing.T) {
	r := NewRegistry(WithMaxSessions(1))
	busyID := r.Create("busy", "")
	busy, err := r.Get(busyID)
	require.NoError(t, err)
	require.NoError(t, busy.Begin())

	newID := r.Create("new", "")
	_, err = r.Get(busyID)
	require.NoError(t, err)
	_, err = r.Get(newID)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	// idle again, so the least recently used session makes room
	busy.End()
	r.Create("third", "")
	_, err = r.Get(newID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Get(busyID)
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Len())
}

func TestSnapshotRoundTripThroughFileStore(t *testing.T) {
	r := NewRegistry()
	id := r.Create("teach me go", "some pdf")
	s, err := r.Get(id)
	require.NoError(t, err)
	require.NoError(t, s.Append(conversation.NewAssistantMessage("```go\npackage main\n```\nStep 1")))
	require.NoError(t, s.Append(conversation.NewUserMessage("next")))

	store := NewFileStore(filepath.Join(t.TempDir(), "state", "sessions.yaml"))
	require.NoError(t, store.Save(r.Snapshot()))

	loaded, err := store.Load()
	require.NoError(t, err)

	restored := NewRegistry()
	require.NoError(t, restored.Restore(loaded))

	rs, err := restored.Get(id)
	require.NoError(t, err)
	assert.Equal(t, s.View(), rs.View())
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.yaml"))
	snapshot, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, snapshot.Sessions)

	require.NoError(t, NewRegistry().Restore(snapshot))
}

func TestRestoreRejectsInvalidSnapshots(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Restore(Snapshot{Version: 42}))
	require.Error(t, r.Restore(Snapshot{Version: SnapshotVersion, Sessions: []Record{{UserPrompt: "no id"}}}))
	require.Error(t, r.Restore(Snapshot{Version: SnapshotVersion, Sessions: []Record{{
		ID:      "session_x",
		History: conversation.Conversation{conversation.NewSystemMessage("nope")},
	}}}))
	assert.Equal(t, 0, r.Len())
}
