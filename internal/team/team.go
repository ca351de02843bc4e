// Package team holds the role registry: named capability profiles with
// per-task-type weight tables, live status, and workload counters. It selects
// the best idle role for an analyzed task and records hand-offs between
// roles.
package team

import (
	"sync"
	"time"

	"github.com/codefionn/crewschnell/internal/analyzer"
)

// Status is a role's live availability.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusWorking   Status = "working"
	StatusWaiting   Status = "waiting"
	StatusReviewing Status = "reviewing"
	StatusBlocked   Status = "blocked"
	StatusError     Status = "error"
)

// Role is a named capability profile. Roles are configuration data shared
// across tasks; the registry serializes access to their mutable fields.
type Role struct {
	Name         string                        `json:"name"`
	Capabilities []string                      `json:"capabilities"`
	Weights      map[analyzer.TaskType]float64 `json:"weights"` // affinity 0-10 per task type
	SystemPrompt string                        `json:"system_prompt,omitempty"`
	Status       Status                        `json:"status"`
	Workload     int                           `json:"workload"`
}

// Handoff is an immutable record of work passing from one role to another.
type Handoff struct {
	TaskID    string    `json:"task_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry owns the roles in first-seen order plus the hand-off message log.
type Registry struct {
	mu       sync.RWMutex
	roles    []*Role
	byName   map[string]*Role
	handoffs []Handoff
}

// NewRegistry creates a registry over the given roles. Roles keep their slice
// order for tie-breaking; missing statuses default to idle.
func NewRegistry(roles []*Role) *Registry {
	r := &Registry{byName: make(map[string]*Role, len(roles))}
	for _, role := range roles {
		if role == nil || role.Name == "" {
			continue
		}
		if _, exists := r.byName[role.Name]; exists {
			continue
		}
		if role.Status == "" {
			role.Status = StatusIdle
		}
		r.roles = append(r.roles, role)
		r.byName[role.Name] = role
	}
	return r
}

// Roles returns snapshot copies of every role in first-seen order.
func (r *Registry) Roles() []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, *role)
	}
	return out
}

// Get returns a snapshot copy of the named role.
func (r *Registry) Get(name string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.byName[name]
	if !ok {
		return Role{}, false
	}
	return *role, true
}

// WeightTable exports the roles' weight tables in registry order for the
// analyzer's recommendations.
func (r *Registry) WeightTable() []analyzer.RoleWeights {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]analyzer.RoleWeights, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, analyzer.RoleWeights{Name: role.Name, Weights: role.Weights})
	}
	return out
}

// SetStatus updates a role's live status.
func (r *Registry) SetStatus(name string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.byName[name]; ok {
		role.Status = status
	}
}

// AdjustWorkload adds delta to a role's workload counter, floored at zero.
func (r *Registry) AdjustWorkload(name string, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.byName[name]; ok {
		role.Workload += delta
		if role.Workload < 0 {
			role.Workload = 0
		}
	}
}

// recommendationBonus is (3-rank)*15 for roles in the top-3 recommendation.
func recommendationBonus(name string, recommended []string) float64 {
	for rank, rec := range recommended {
		if rank >= 3 {
			break
		}
		if rec == name {
			return float64(3-rank) * 15
		}
	}
	return 0
}

func matchingCapabilities(role *Role, required []string) int {
	matches := 0
	for _, req := range required {
		for _, cap := range role.Capabilities {
			if cap == req {
				matches++
				break
			}
		}
	}
	return matches
}

// SelectBestRole picks the highest-scoring idle role for the analysis, or ""
// if no role is idle. Score is 10*baseWeight + recommendationBonus +
// 10*matchingCapabilities - 5*workload, multiplied by the custom override.
// Ties go to the first-seen role.
func (r *Registry) SelectBestRole(a *analyzer.Analysis, an *analyzer.Analyzer) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bestName := ""
	bestScore := 0.0
	found := false

	for _, role := range r.roles {
		if role.Status != StatusIdle {
			continue
		}

		score := 10*role.Weights[a.TaskType] +
			recommendationBonus(role.Name, a.RecommendedRoles) +
			10*float64(matchingCapabilities(role, a.RequiredCapabilities)) -
			5*float64(role.Workload)
		if an != nil {
			score *= an.CustomWeight(role.Name, a.TaskType)
		}

		if !found || score > bestScore {
			bestName = role.Name
			bestScore = score
			found = true
		}
	}

	return bestName, found
}

// RecordHandoff moves a task's ownership from one role to another: the source
// sheds a workload unit, the destination gains one, and an immutable hand-off
// message is appended to the log.
func (r *Registry) RecordHandoff(taskID, from, to, summary string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src, ok := r.byName[from]; ok && src.Workload > 0 {
		src.Workload--
	}
	if dst, ok := r.byName[to]; ok {
		dst.Workload++
	}

	r.handoffs = append(r.handoffs, Handoff{
		TaskID:    taskID,
		From:      from,
		To:        to,
		Summary:   summary,
		Timestamp: time.Now(),
	})
}

// Handoffs returns the hand-off log in order. The slice is a copy.
func (r *Registry) Handoffs() []Handoff {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Handoff(nil), r.handoffs...)
}

// HandoffsTo returns the hand-off messages destined for the given role, used
// to seed that role's context.
func (r *Registry) HandoffsTo(role string) []Handoff {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Handoff
	for _, h := range r.handoffs {
		if h.To == role {
			out = append(out, h)
		}
	}
	return out
}
