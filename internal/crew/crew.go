// Package crew is the composition root: it wires the analyzer, role registry,
// progress board, permission gate, context windows, and the external model and
// execution collaborators into one orchestration loop.
package crew

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/codefionn/crewschnell/internal/analyzer"
	"github.com/codefionn/crewschnell/internal/board"
	"github.com/codefionn/crewschnell/internal/history"
	"github.com/codefionn/crewschnell/internal/logger"
	"github.com/codefionn/crewschnell/internal/permission"
	"github.com/codefionn/crewschnell/internal/risk"
	"github.com/codefionn/crewschnell/internal/team"
)

// Action is a side-effecting request produced by a model turn. It is executed
// only after the permission gate approves it.
type Action struct {
	Type    risk.Action  `json:"type"`
	Details risk.Details `json:"details"`
}

// Result is what a model turn produced for one task.
type Result struct {
	Text      string   `json:"text"`
	Actions   []Action `json:"actions,omitempty"`
	CommitRef string   `json:"commit_ref,omitempty"`
}

// Invoker is the model-call collaborator.
type Invoker interface {
	Invoke(ctx context.Context, role, systemPrompt string, entries []history.Entry, userMessage string) (*Result, error)
}

// Executor performs approved file/shell/network actions.
type Executor interface {
	Execute(ctx context.Context, action risk.Action, details risk.Details) (string, error)
}

// Options bound the orchestration run.
type Options struct {
	SessionID   string
	MaxParallel int
	MaxRetries  int
	TokenBudget int // per-invocation context budget; 0 sends the full window
	KeepRounds  int // rounds retained after a completed task; 0 keeps all
	Store       board.Store
}

// Orchestrator drives the crew over the board until no work remains.
type Orchestrator struct {
	opts     Options
	board    *board.Board
	gate     *permission.Gate
	analyzer *analyzer.Analyzer
	team     *team.Registry
	history  *history.Manager
	invoker  Invoker
	executor Executor
	log      *logger.Logger

	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	active atomic.Int64
	events chan Event

	mu      sync.Mutex
	byType  map[analyzer.TaskType][]string // submitted feature ids per type
	running atomic.Bool
}

// New wires an orchestrator from its collaborators.
func New(opts Options, b *board.Board, gate *permission.Gate, an *analyzer.Analyzer, reg *team.Registry, hist *history.Manager, invoker Invoker, executor Executor, log *logger.Logger) *Orchestrator {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.SessionID == "" {
		opts.SessionID = b.ProjectID()
	}
	if log == nil {
		log = logger.Global()
	}

	return &Orchestrator{
		opts:     opts,
		board:    b,
		gate:     gate,
		analyzer: an,
		team:     reg,
		history:  hist,
		invoker:  invoker,
		executor: executor,
		log:      log.WithPrefix("crew"),
		sem:      semaphore.NewWeighted(int64(opts.MaxParallel)),
		events:   make(chan Event, eventBuffer),
		byType:   make(map[analyzer.TaskType][]string),
	}
}

// SubmitRequirement analyzes a free-text requirement, creates a feature for
// it, and links dependencies to previously submitted features of the
// prerequisite task types.
func (o *Orchestrator) SubmitRequirement(text string) (board.Feature, error) {
	a := o.analyzer.Analyze(text)

	o.mu.Lock()
	var deps []string
	for _, prereq := range a.Dependencies {
		if ids := o.byType[prereq]; len(ids) > 0 {
			deps = append(deps, ids[len(ids)-1])
		}
	}
	o.mu.Unlock()

	f := &board.Feature{
		Title:        titleFor(text),
		Description:  text,
		Type:         a.TaskType,
		Priority:     a.Priority,
		Dependencies: deps,
	}
	if err := o.board.AddFeature(f); err != nil {
		return board.Feature{}, err
	}

	o.mu.Lock()
	o.byType[a.TaskType] = append(o.byType[a.TaskType], f.ID)
	o.mu.Unlock()

	o.log.Info("submitted %s feature %s (priority %s, deps %d)", a.TaskType, f.ID, a.Priority, len(deps))
	got, _ := o.board.Get(f.ID)
	return got, nil
}

func titleFor(text string) string {
	title := strings.TrimSpace(text)
	if idx := strings.IndexAny(title, "\n"); idx >= 0 {
		title = title[:idx]
	}
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}
	return title
}

// schedulePause is how long the loop waits when nothing can start right now.
const schedulePause = 100 * time.Millisecond

// Run drives the board until every feature reaches a terminal state or the
// context is cancelled. On cancellation pending approvals are denied,
// in-progress features revert to pending, and the board is saved.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return errors.New("crew: already running")
	}
	defer o.running.Store(false)

	o.emit(Event{Type: EventPhaseChanged, Detail: "running"})

	for {
		if err := ctx.Err(); err != nil {
			return o.shutdown(err)
		}

		next, ok := o.board.SelectNext()
		if !ok {
			if o.active.Load() == 0 {
				break
			}
			if !o.pause(ctx) {
				return o.shutdown(ctx.Err())
			}
			continue
		}

		if !o.board.Ready(next.ID) {
			// Blocked-queue fallback: the feature cannot legally start yet.
			if o.active.Load() == 0 {
				o.log.Warn("feature %s is blocked by unmet dependencies and no work is in flight", next.ID)
				if err := o.board.MarkBlocked(next.ID, "unresolvable dependencies"); err != nil {
					o.log.Error("failed to block %s: %v", next.ID, err)
				}
				o.emit(Event{Type: EventTaskFailed, TaskID: next.ID, Detail: "blocked: unresolvable dependencies"})
				continue
			}
			if !o.pause(ctx) {
				return o.shutdown(ctx.Err())
			}
			continue
		}

		a := o.analyzer.Analyze(next.Description)
		roleName, idle := o.team.SelectBestRole(a, o.analyzer)
		if !idle {
			// No assignee available; the feature stays pending for the next
			// scheduling pass.
			if !o.pause(ctx) {
				return o.shutdown(ctx.Err())
			}
			continue
		}

		if err := o.sem.Acquire(ctx, 1); err != nil {
			return o.shutdown(err)
		}

		if err := o.board.Start(next.ID, roleName); err != nil {
			o.sem.Release(1)
			o.log.Warn("could not start %s: %v", next.ID, err)
			if !o.pause(ctx) {
				return o.shutdown(ctx.Err())
			}
			continue
		}

		o.team.SetStatus(roleName, team.StatusWorking)
		// On reassignment RecordHandoff moves the workload unit itself;
		// applying the usual increment on top would leak one unit per
		// hand-off.
		if prev := next.AssignedRole; prev != "" && prev != roleName {
			o.team.RecordHandoff(next.ID, prev, roleName, fmt.Sprintf("reassigned %s from %s to %s", next.ID, prev, roleName))
			o.emit(Event{Type: EventHandoff, TaskID: next.ID, Role: roleName, Detail: "from " + prev})
		} else {
			o.team.AdjustWorkload(roleName, 1)
		}
		o.active.Add(1)
		o.wg.Add(1)
		o.emit(Event{Type: EventTaskStarted, TaskID: next.ID, Role: roleName})

		feature, _ := o.board.Get(next.ID)
		go o.runTask(ctx, feature, roleName, a)
	}

	o.wg.Wait()
	o.emit(Event{Type: EventPhaseChanged, Detail: "idle"})
	return o.board.Save(o.opts.Store)
}

// pause waits one scheduling interval; it returns false when the context
// finishes first.
func (o *Orchestrator) pause(ctx context.Context) bool {
	select {
	case <-time.After(schedulePause):
		return true
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) shutdown(cause error) error {
	o.emit(Event{Type: EventPhaseChanged, Detail: "cancelling"})
	o.gate.CancelAll("crew run cancelled")
	o.wg.Wait()
	o.board.ResetInProgress()
	if err := o.board.Save(o.opts.Store); err != nil {
		o.log.Error("failed to save board during shutdown: %v", err)
	}
	o.emit(Event{Type: EventPhaseChanged, Detail: "cancelled"})
	return cause
}

func (o *Orchestrator) runTask(ctx context.Context, f board.Feature, roleName string, a *analyzer.Analysis) {
	defer func() {
		o.team.AdjustWorkload(roleName, -1)
		o.team.SetStatus(roleName, team.StatusIdle)
		o.active.Add(-1)
		o.sem.Release(1)
		o.wg.Done()
	}()

	key := history.Key(o.opts.SessionID, roleName)
	role, _ := o.team.Get(roleName)

	userMessage := f.Title
	if f.Description != "" {
		userMessage = f.Description
	}
	for _, h := range o.team.HandoffsTo(roleName) {
		if h.TaskID == f.ID {
			userMessage += "\n\nhand-off: " + h.Summary
		}
	}

	o.history.AddMessage(key, history.Entry{Role: history.RoleUser, Content: userMessage})
	bounded := o.history.History(key)
	if o.opts.TokenBudget > 0 {
		bounded = o.history.HistoryWithLimit(key, o.opts.TokenBudget)
	}

	result, err := o.invoker.Invoke(ctx, roleName, role.SystemPrompt, bounded, userMessage)
	if err != nil {
		o.failTask(f, roleName, fmt.Sprintf("model invocation failed: %v", err))
		return
	}

	if result.Text != "" {
		o.history.AddMessage(key, history.Entry{Role: history.RoleAssistant, Content: result.Text})
	}

	for _, action := range result.Actions {
		approved, reason := o.requestPermission(ctx, f.ID, action)
		if !approved {
			o.failTask(f, roleName, fmt.Sprintf("permission denied for %s: %s", action.Type, reason))
			return
		}
		output, err := o.executor.Execute(ctx, action.Type, action.Details)
		if err != nil {
			o.failTask(f, roleName, fmt.Sprintf("%s failed: %v", action.Type, err))
			return
		}
		if output != "" {
			o.history.AddMessage(key, history.Entry{Role: history.RoleTool, Content: output})
		}
	}

	if err := o.board.MarkCompleted(f.ID, result.CommitRef); err != nil {
		o.log.Error("failed to complete %s: %v", f.ID, err)
		return
	}
	o.emit(Event{Type: EventTaskCompleted, TaskID: f.ID, Role: roleName})

	if o.opts.KeepRounds > 0 {
		o.history.PruneHistory(key, o.opts.KeepRounds)
	}

	if err := o.board.Save(o.opts.Store); err != nil {
		o.log.Warn("failed to save board after %s: %v", f.ID, err)
	}
}

// requestPermission routes an action through the gate and reports the
// decision on the event stream.
func (o *Orchestrator) requestPermission(ctx context.Context, taskID string, action Action) (bool, string) {
	req := o.gate.Request(action.Type, action.Details, "crew:"+taskID)
	o.emit(Event{Type: EventPermissionRequested, TaskID: taskID, RequestID: req.ID, Detail: req.Target()})

	d := o.gate.Check(ctx, req)
	verdict := "denied"
	if d.Approved {
		verdict = "approved"
	}
	o.emit(Event{Type: EventPermissionResolved, TaskID: taskID, RequestID: req.ID, Detail: verdict + ": " + d.Reason})
	return d.Approved, d.Reason
}

// failTask records a failure and retries the feature while attempts remain.
func (o *Orchestrator) failTask(f board.Feature, roleName, reason string) {
	if err := o.board.MarkFailed(f.ID, reason); err != nil {
		o.log.Error("failed to mark %s failed: %v", f.ID, err)
		return
	}
	o.emit(Event{Type: EventTaskFailed, TaskID: f.ID, Role: roleName, Detail: reason})

	if f.Retries < o.opts.MaxRetries {
		if err := o.board.Retry(f.ID); err != nil {
			o.log.Error("failed to requeue %s: %v", f.ID, err)
			return
		}
		o.log.Info("requeued %s (attempt %d of %d)", f.ID, f.Retries+1, o.opts.MaxRetries)
	} else {
		o.log.Warn("feature %s failed permanently: %s", f.ID, reason)
	}
}
