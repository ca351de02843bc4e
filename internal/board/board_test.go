package board

import (
	"path/filepath"
	"testing"

	"github.com/codefionn/crewschnell/internal/analyzer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBoardAB(t *testing.T) *Board {
	t.Helper()
	b := New("proj", nil)
	require.NoError(t, b.AddFeature(&Feature{ID: "A", Title: "design", Type: analyzer.TaskDesign, Priority: analyzer.PriorityMedium}))
	require.NoError(t, b.AddFeature(&Feature{ID: "B", Title: "implement", Type: analyzer.TaskImplement, Priority: analyzer.PriorityMedium, Dependencies: []string{"A"}}))
	return b
}

func TestSelectNextRespectsDependencies(t *testing.T) {
	b := newBoardAB(t)

	next, ok := b.SelectNext()
	require.True(t, ok)
	assert.Equal(t, "A", next.ID)

	require.NoError(t, b.Start("A", "architect"))
	require.NoError(t, b.MarkCompleted("A", ""))

	next, ok = b.SelectNext()
	require.True(t, ok)
	assert.Equal(t, "B", next.ID)
}

func TestSelectNextPrefersHigherPriority(t *testing.T) {
	b := New("proj", nil)
	require.NoError(t, b.AddFeature(&Feature{ID: "low", Priority: analyzer.PriorityLow}))
	require.NoError(t, b.AddFeature(&Feature{ID: "crit", Priority: analyzer.PriorityCritical}))
	require.NoError(t, b.AddFeature(&Feature{ID: "med", Priority: analyzer.PriorityMedium}))

	next, ok := b.SelectNext()
	require.True(t, ok)
	assert.Equal(t, "crit", next.ID)
}

func TestSelectNextTieBrokenByInsertionOrder(t *testing.T) {
	b := New("proj", nil)
	require.NoError(t, b.AddFeature(&Feature{ID: "one", Priority: analyzer.PriorityHigh}))
	require.NoError(t, b.AddFeature(&Feature{ID: "two", Priority: analyzer.PriorityHigh}))

	next, ok := b.SelectNext()
	require.True(t, ok)
	assert.Equal(t, "one", next.ID)
}

func TestSelectNextFallbackWhenAllBlocked(t *testing.T) {
	b := New("proj", nil)
	require.NoError(t, b.AddFeature(&Feature{ID: "X", Dependencies: []string{"missing"}}))

	// The blocked feature is returned as a best-effort fallback...
	next, ok := b.SelectNext()
	require.True(t, ok)
	assert.Equal(t, "X", next.ID)

	// ...but Start re-checks readiness and refuses it.
	err := b.Start("X", "developer")
	assert.ErrorIs(t, err, ErrDependenciesUnmet)
	assert.False(t, b.Ready("X"))
}

func TestStartRequiresPendingStatus(t *testing.T) {
	b := newBoardAB(t)
	require.NoError(t, b.Start("A", "architect"))

	err := b.Start("A", "developer")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRetryIncrementsCounterAndKeepsID(t *testing.T) {
	b := newBoardAB(t)
	require.NoError(t, b.Start("A", "architect"))
	require.NoError(t, b.MarkFailed("A", "model error"))

	f, _ := b.Get("A")
	require.Equal(t, StatusFailed, f.Status)
	assert.Contains(t, f.Notes[0], "model error")

	require.NoError(t, b.Retry("A"))
	f, _ = b.Get("A")
	assert.Equal(t, StatusPending, f.Status)
	assert.Equal(t, 1, f.Retries)
	assert.True(t, f.StartedAt.IsZero())
}

func TestStats(t *testing.T) {
	b := New("proj", nil)
	assert.Equal(t, 0.0, b.Stats().CompletionRate)

	require.NoError(t, b.AddFeature(&Feature{ID: "a"}))
	require.NoError(t, b.AddFeature(&Feature{ID: "b"}))
	require.NoError(t, b.AddFeature(&Feature{ID: "c"}))
	require.NoError(t, b.AddFeature(&Feature{ID: "d"}))

	require.NoError(t, b.Start("a", ""))
	require.NoError(t, b.MarkCompleted("a", "abc123"))
	require.NoError(t, b.Start("b", ""))
	require.NoError(t, b.MarkFailed("b", "boom"))
	require.NoError(t, b.MarkBlocked("c", "waiting on d"))

	s := b.Stats()
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Blocked)
	assert.Equal(t, 1, s.Pending)
	assert.InDelta(t, 0.25, s.CompletionRate, 1e-9)
}

func TestSubtasksAndNotes(t *testing.T) {
	b := newBoardAB(t)

	subID, err := b.AddSubtask("A", "sketch interfaces")
	require.NoError(t, err)
	require.NoError(t, b.CompleteSubtask("A", subID))
	require.NoError(t, b.AddNote("A", "interfaces agreed"))

	f, _ := b.Get("A")
	require.Len(t, f.Subtasks, 1)
	assert.True(t, f.Subtasks[0].Done)
	assert.Equal(t, []string{"interfaces agreed"}, f.Notes)
}

func TestResetInProgress(t *testing.T) {
	b := newBoardAB(t)
	require.NoError(t, b.Start("A", "architect"))

	assert.Equal(t, 1, b.ResetInProgress())

	f, _ := b.Get("A")
	assert.Equal(t, StatusPending, f.Status)
	assert.True(t, f.StartedAt.IsZero())
}

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	b := newBoardAB(t)
	require.NoError(t, b.Start("A", "architect"))
	require.NoError(t, b.MarkCompleted("A", "deadbeef"))
	require.NoError(t, b.AddNote("B", "next up"))
	require.NoError(t, b.Save(store))

	restored := New("proj", nil)
	require.NoError(t, restored.Load(store))

	features := restored.Features()
	require.Len(t, features, 2)
	assert.Equal(t, StatusCompleted, features[0].Status)
	assert.Equal(t, "deadbeef", features[0].CommitRef)
	assert.Equal(t, []string{"A"}, features[1].Dependencies)
	assert.Equal(t, []string{"next up"}, features[1].Notes)
}

func TestLoadMissingSnapshotIsNotAnError(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	b := New("fresh", nil)
	require.NoError(t, b.Load(store))
	assert.Empty(t, b.Features())
}

func TestRestoreRejectsOtherProject(t *testing.T) {
	b := newBoardAB(t)
	snap := b.Snapshot()

	other := New("other-proj", nil)
	err := other.Restore(snap)
	assert.ErrorIs(t, err, ErrProjectMismatch)
	assert.Empty(t, other.Features())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	defer store.Close()

	b := newBoardAB(t)
	require.NoError(t, b.Start("A", "architect"))
	require.NoError(t, b.MarkCompleted("A", "c0ffee"))
	subID, err := b.AddSubtask("B", "write tests")
	require.NoError(t, err)
	require.NoError(t, b.CompleteSubtask("B", subID))
	require.NoError(t, b.Save(store))

	restored := New("proj", nil)
	require.NoError(t, restored.Load(store))

	features := restored.Features()
	require.Len(t, features, 2)
	assert.Equal(t, StatusCompleted, features[0].Status)
	assert.Equal(t, "c0ffee", features[0].CommitRef)
	assert.Equal(t, analyzer.TaskImplement, features[1].Type)
	require.Len(t, features[1].Subtasks, 1)
	assert.True(t, features[1].Subtasks[0].Done)

	// Unknown project loads nothing.
	_, err = store.Load("nope")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}
