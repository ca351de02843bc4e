// Package history maintains bounded per-member conversation windows so that
// long-running crews never exceed the model context limit.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/codefionn/crewschnell/internal/logger"
)

// Message roles as sent to the model.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Entry is one message in a member's conversation window.
type Entry struct {
	Role       string            `json:"role"`
	Content    string            `json:"content"`
	Timestamp  time.Time         `json:"timestamp"`
	ToolCallID string            `json:"tool_call_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Key builds the window identifier for a crew member within a session.
func Key(sessionID, member string) string {
	return sessionID + ":" + member
}

// window is the per-member state. Each window carries its own lock so that
// pruning one member never blocks the others.
type window struct {
	mu         sync.Mutex
	entries    []Entry
	lastAccess time.Time
}

// leadingSystem returns how many consecutive system messages start the window.
// Callers must hold w.mu.
func (w *window) leadingSystem() int {
	n := 0
	for _, e := range w.entries {
		if e.Role != RoleSystem {
			break
		}
		n++
	}
	return n
}

// Manager owns all conversation windows of a crew session.
type Manager struct {
	mu      sync.RWMutex
	windows map[string]*window

	est       Estimator
	budget    int
	maxSystem int
	ttl       time.Duration
	log       *logger.Logger

	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithEstimator replaces the default heuristic estimator.
func WithEstimator(est Estimator) Option {
	return func(m *Manager) { m.est = est }
}

// WithIdleTTL sets how long an untouched window survives a sweep.
func WithIdleTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithSystemRetention caps how many leading system messages survive pruning
// and eviction. Zero or less keeps all of them.
func WithSystemRetention(n int) Option {
	return func(m *Manager) { m.maxSystem = n }
}

// NewManager creates a manager that keeps each window under budget tokens.
// A budget of zero or less disables automatic pruning.
func NewManager(budget int, log *logger.Logger, opts ...Option) *Manager {
	if log == nil {
		log = logger.Global()
	}
	m := &Manager{
		windows: make(map[string]*window),
		est:     HeuristicEstimator{},
		budget:  budget,
		ttl:     30 * time.Minute,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// floor returns how many leading system messages of the window are protected
// from eviction and pruning. Callers must hold w.mu.
func (m *Manager) floor(w *window) int {
	n := w.leadingSystem()
	if m.maxSystem > 0 && n > m.maxSystem {
		return m.maxSystem
	}
	return n
}

// get returns the window for key, creating it if needed, and touches its
// access time.
func (m *Manager) get(key string) *window {
	m.mu.RLock()
	w := m.windows[key]
	m.mu.RUnlock()
	if w == nil {
		m.mu.Lock()
		w = m.windows[key]
		if w == nil {
			w = &window{}
			m.windows[key] = w
		}
		m.mu.Unlock()
	}
	w.mu.Lock()
	w.lastAccess = m.now()
	w.mu.Unlock()
	return w
}

// AddMessage appends an entry to the member's window and prunes the oldest
// non-system entries if the window now exceeds the token budget.
func (m *Manager) AddMessage(key string, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = m.now()
	}

	w := m.get(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries = append(w.entries, e)
	if m.budget <= 0 {
		return
	}

	total := 0
	for _, entry := range w.entries {
		total += m.est.Estimate(entry)
	}

	// Protected leading system messages and the newest entry are never
	// evicted.
	floor := m.floor(w)
	for total > m.budget && len(w.entries)-1 > floor {
		evicted := w.entries[floor]
		total -= m.est.Estimate(evicted)
		w.entries = append(w.entries[:floor], w.entries[floor+1:]...)
		m.log.Debug("history: evicted %s message from %s to stay under %d tokens", evicted.Role, key, m.budget)
	}
}

// History returns a copy of the member's full window in chronological order.
func (m *Manager) History(key string) []Entry {
	w := m.get(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// TokenCount reports the estimated token usage of the member's window.
func (m *Manager) TokenCount(key string) int {
	w := m.get(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	for _, e := range w.entries {
		total += m.est.Estimate(e)
	}
	return total
}

// PruneHistory trims the window to its protected system messages plus the last
// keepRounds conversation rounds, where a round starts at a user message.
// It returns how many entries were dropped.
func (m *Manager) PruneHistory(key string, keepRounds int) int {
	w := m.get(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	floor := m.floor(w)
	if keepRounds <= 0 {
		dropped := len(w.entries) - floor
		w.entries = w.entries[:floor]
		return dropped
	}

	// Walk backwards counting user messages; the keepRounds-th one from the
	// end marks the cut point.
	cut := floor
	seen := 0
	for i := len(w.entries) - 1; i >= floor; i-- {
		if w.entries[i].Role == RoleUser {
			seen++
			if seen == keepRounds {
				cut = i
				break
			}
		}
	}
	if seen < keepRounds {
		return 0
	}

	dropped := cut - floor
	if dropped <= 0 {
		return 0
	}
	w.entries = append(w.entries[:floor], w.entries[cut:]...)
	m.log.Debug("history: pruned %d entries from %s, keeping %d rounds", dropped, key, keepRounds)
	return dropped
}

// HistoryWithLimit returns the most recent entries that fit within maxTokens,
// in chronological order, without modifying the stored window. Protected
// system messages are charged first so they are always part of the result.
func (m *Manager) HistoryWithLimit(key string, maxTokens int) []Entry {
	w := m.get(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	if maxTokens <= 0 {
		return nil
	}

	floor := m.floor(w)
	remaining := maxTokens
	out := make([]Entry, 0, len(w.entries))
	for i := 0; i < floor; i++ {
		remaining -= m.est.Estimate(w.entries[i])
		out = append(out, w.entries[i])
	}

	start := len(w.entries)
	for i := len(w.entries) - 1; i >= floor; i-- {
		cost := m.est.Estimate(w.entries[i])
		if cost > remaining {
			break
		}
		remaining -= cost
		start = i
	}

	out = append(out, w.entries[start:]...)
	return out
}

// Remove discards the member's window entirely.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	delete(m.windows, key)
	m.mu.Unlock()
}

// Sessions returns the keys of all live windows.
func (m *Manager) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.windows))
	for k := range m.windows {
		keys = append(keys, k)
	}
	return keys
}

// sweep removes windows idle longer than the TTL and returns how many died.
func (m *Manager) sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		w.mu.Lock()
		idle := w.lastAccess.Before(cutoff)
		w.mu.Unlock()
		if idle {
			delete(m.windows, key)
			removed++
		}
	}
	if removed > 0 {
		m.log.Info("history: swept %d idle windows", removed)
	}
	return removed
}

// StartSweeper runs the idle sweep every interval until ctx is done.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.sweep()
			case <-ctx.Done():
				return
			}
		}
	}()
}
