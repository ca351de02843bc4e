// Package board is the progress ledger: work items with statuses and
// dependency edges, next-item selection, aggregate statistics, and snapshot
// persistence through a swappable Store.
package board

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codefionn/crewschnell/internal/analyzer"
	"github.com/codefionn/crewschnell/internal/logger"

	"github.com/google/uuid"
)

// Status is a feature's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

var (
	ErrNotFound          = errors.New("board: feature not found")
	ErrDuplicateID       = errors.New("board: duplicate feature id")
	ErrInvalidTransition = errors.New("board: invalid status transition")
	// ErrDependenciesUnmet guards the in_progress transition: a feature may
	// only start once every dependency is completed, even when SelectNext
	// returned it as the blocked-queue fallback.
	ErrDependenciesUnmet = errors.New("board: dependencies not completed")
)

// Subtask is a named step inside a feature.
type Subtask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Feature is a unit of orchestrated work.
type Feature struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Type         analyzer.TaskType `json:"type"`
	Priority     analyzer.Priority `json:"priority"`
	Status       Status            `json:"status"`
	AssignedRole string            `json:"assigned_role,omitempty"`
	Dependencies []string          `json:"dependencies,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	StartedAt    time.Time         `json:"started_at,omitzero"`
	CompletedAt  time.Time         `json:"completed_at,omitzero"`
	Notes        []string          `json:"notes,omitempty"`
	Subtasks     []Subtask         `json:"subtasks,omitempty"`
	Retries      int               `json:"retries,omitempty"`
	CommitRef    string            `json:"commit_ref,omitempty"`
}

func (f *Feature) clone() Feature {
	out := *f
	out.Dependencies = append([]string(nil), f.Dependencies...)
	out.Notes = append([]string(nil), f.Notes...)
	out.Subtasks = append([]Subtask(nil), f.Subtasks...)
	return out
}

// Stats aggregates feature counts per status.
type Stats struct {
	Total          int     `json:"total"`
	Pending        int     `json:"pending"`
	InProgress     int     `json:"in_progress"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	Blocked        int     `json:"blocked"`
	CompletionRate float64 `json:"completion_rate"`
}

// Board owns the feature set for one project. All methods are safe for
// concurrent use.
type Board struct {
	mu        sync.RWMutex
	projectID string
	features  []*Feature // insertion order
	byID      map[string]*Feature
	log       *logger.Logger
}

// New creates an empty board for the given project identity.
func New(projectID string, log *logger.Logger) *Board {
	if log == nil {
		log = logger.Global()
	}
	return &Board{
		projectID: projectID,
		byID:      make(map[string]*Feature),
		log:       log.WithPrefix("board"),
	}
}

// ProjectID returns the project identity the board belongs to.
func (b *Board) ProjectID() string {
	return b.projectID
}

// InitFeatures replaces the board's contents with the given features.
func (b *Board) InitFeatures(features []*Feature) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.features = nil
	b.byID = make(map[string]*Feature, len(features))
	for _, f := range features {
		if err := b.addLocked(f); err != nil {
			return err
		}
	}
	return nil
}

// AddFeature appends a feature. Missing IDs, statuses, and creation times are
// filled in.
func (b *Board) AddFeature(f *Feature) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(f)
}

func (b *Board) addLocked(f *Feature) error {
	if f == nil {
		return fmt.Errorf("board: nil feature")
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if _, exists := b.byID[f.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, f.ID)
	}
	if f.Status == "" {
		f.Status = StatusPending
	}
	if f.Priority == "" {
		f.Priority = analyzer.PriorityMedium
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	b.features = append(b.features, f)
	b.byID[f.ID] = f
	return nil
}

// Get returns a copy of the feature.
func (b *Board) Get(id string) (Feature, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f, ok := b.byID[id]
	if !ok {
		return Feature{}, false
	}
	return f.clone(), true
}

// Features returns copies of every feature in insertion order.
func (b *Board) Features() []Feature {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Feature, 0, len(b.features))
	for _, f := range b.features {
		out = append(out, f.clone())
	}
	return out
}

// Start transitions a pending feature to in_progress, re-checking dependency
// completion first.
func (b *Board) Start(id, assignee string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, f.Status)
	}
	if !b.dependenciesCompletedLocked(f) {
		return fmt.Errorf("%w: %s", ErrDependenciesUnmet, id)
	}

	f.Status = StatusInProgress
	f.StartedAt = time.Now()
	if assignee != "" {
		f.AssignedRole = assignee
	}
	b.log.Info("started %s (%s) assigned to %s", f.ID, f.Title, f.AssignedRole)
	return nil
}

// MarkCompleted finishes an in_progress feature.
func (b *Board) MarkCompleted(id, commitRef string) error {
	return b.finish(id, StatusCompleted, commitRef, "")
}

// MarkFailed fails an in_progress feature with a human-readable reason.
func (b *Board) MarkFailed(id, reason string) error {
	return b.finish(id, StatusFailed, "", reason)
}

// MarkBlocked blocks a feature with a reason.
func (b *Board) MarkBlocked(id, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Status == StatusCompleted {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, f.Status)
	}
	f.Status = StatusBlocked
	if reason != "" {
		f.Notes = append(f.Notes, "blocked: "+reason)
	}
	return nil
}

func (b *Board) finish(id string, status Status, commitRef, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Status != StatusInProgress {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, f.Status)
	}

	f.Status = status
	f.CompletedAt = time.Now()
	if commitRef != "" {
		f.CommitRef = commitRef
	}
	if reason != "" {
		f.Notes = append(f.Notes, "failed: "+reason)
	}
	b.log.Info("feature %s -> %s", id, status)
	return nil
}

// Retry moves a failed feature back to pending under the same id with an
// incremented retry counter.
func (b *Board) Retry(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if f.Status != StatusFailed {
		return fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, f.Status)
	}

	f.Status = StatusPending
	f.Retries++
	f.StartedAt = time.Time{}
	f.CompletedAt = time.Time{}
	return nil
}

// AddNote appends a free-form note.
func (b *Board) AddNote(id, note string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f.Notes = append(f.Notes, note)
	return nil
}

// AddSubtask appends a subtask and returns its id.
func (b *Board) AddSubtask(id, title string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sub := Subtask{ID: uuid.NewString(), Title: title}
	f.Subtasks = append(f.Subtasks, sub)
	return sub.ID, nil
}

// CompleteSubtask marks a subtask done.
func (b *Board) CompleteSubtask(id, subtaskID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for i := range f.Subtasks {
		if f.Subtasks[i].ID == subtaskID {
			f.Subtasks[i].Done = true
			return nil
		}
	}
	return fmt.Errorf("%w: subtask %s", ErrNotFound, subtaskID)
}

// SelectNext returns the next feature to work on: the highest-priority
// pending feature whose dependencies are all completed, ties broken by
// insertion order. When every pending feature is blocked by unmet
// dependencies the first pending feature is returned as a best-effort
// fallback; callers must still pass Start's readiness check.
func (b *Board) SelectNext() (Feature, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var best *Feature
	var firstPending *Feature

	for _, f := range b.features {
		if f.Status != StatusPending {
			continue
		}
		if firstPending == nil {
			firstPending = f
		}
		if !b.dependenciesCompletedLocked(f) {
			continue
		}
		if best == nil || f.Priority.Rank() < best.Priority.Rank() {
			best = f
		}
	}

	if best != nil {
		return best.clone(), true
	}
	if firstPending != nil {
		return firstPending.clone(), true
	}
	return Feature{}, false
}

// Ready reports whether the feature is pending with all dependencies
// completed.
func (b *Board) Ready(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	f, ok := b.byID[id]
	if !ok {
		return false
	}
	return f.Status == StatusPending && b.dependenciesCompletedLocked(f)
}

func (b *Board) dependenciesCompletedLocked(f *Feature) bool {
	for _, dep := range f.Dependencies {
		d, ok := b.byID[dep]
		if !ok || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Stats returns per-status counts and the completion rate.
func (b *Board) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{Total: len(b.features)}
	for _, f := range b.features {
		switch f.Status {
		case StatusPending:
			s.Pending++
		case StatusInProgress:
			s.InProgress++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusBlocked:
			s.Blocked++
		}
	}
	if s.Total > 0 {
		s.CompletionRate = float64(s.Completed) / float64(s.Total)
	}
	return s
}

// ResetInProgress reverts every in_progress feature to pending so an
// interrupted run can resume cleanly. Returns the number of reverted
// features.
func (b *Board) ResetInProgress() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, f := range b.features {
		if f.Status == StatusInProgress {
			f.Status = StatusPending
			f.StartedAt = time.Time{}
			n++
		}
	}
	if n > 0 {
		b.log.Info("reverted %d in-progress features to pending", n)
	}
	return n
}

// Snapshot captures the board for persistence.
func (b *Board) Snapshot() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := &Snapshot{
		Version:   SnapshotVersion,
		ProjectID: b.projectID,
		SavedAt:   time.Now(),
	}
	for _, f := range b.features {
		c := f.clone()
		snap.Features = append(snap.Features, &c)
	}
	return snap
}

// Restore replaces the board contents from a snapshot. Snapshots from a
// different project are rejected, never merged.
func (b *Board) Restore(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("board: nil snapshot")
	}
	if snap.ProjectID != b.projectID {
		return fmt.Errorf("%w: snapshot belongs to %q, board is %q", ErrProjectMismatch, snap.ProjectID, b.projectID)
	}
	return b.InitFeatures(snap.Features)
}

// Save writes the current snapshot through the store.
func (b *Board) Save(store Store) error {
	if store == nil {
		return nil
	}
	return store.Save(b.projectID, b.Snapshot())
}

// Load restores the board from the store. A missing snapshot is not an
// error; corrupt or mismatched data is.
func (b *Board) Load(store Store) error {
	if store == nil {
		return nil
	}
	snap, err := store.Load(b.projectID)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return b.Restore(snap)
}
