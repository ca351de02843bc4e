// Package analyzer turns free-text requirements into typed task analyses:
// task type, priority, complexity, prerequisite task types, and a ranked
// role recommendation. Classification is keyword-driven and bilingual
// tolerant; malformed input falls back to implement/medium rather than
// failing.
package analyzer

import (
	"sort"
	"strings"
)

// RoleWeights pairs a role name with its per-task-type affinity (0-10).
// Order is significant: earlier roles win recommendation ties.
type RoleWeights struct {
	Name    string
	Weights map[TaskType]float64
}

// Analyzer classifies requirements and recommends roles.
type Analyzer struct {
	roles  []RoleWeights
	custom map[string]map[TaskType]float64
}

// New creates an analyzer over the given role weight table.
func New(roles []RoleWeights) *Analyzer {
	return &Analyzer{
		roles:  roles,
		custom: make(map[string]map[TaskType]float64),
	}
}

// SetCustomWeight installs a per-role-per-type multiplier applied on top of
// the base weight table.
func (a *Analyzer) SetCustomWeight(role string, t TaskType, weight float64) {
	if a.custom[role] == nil {
		a.custom[role] = make(map[TaskType]float64)
	}
	a.custom[role][t] = weight
}

// CustomWeight returns the multiplier for a role and task type, 1.0 when none
// is set.
func (a *Analyzer) CustomWeight(role string, t TaskType) float64 {
	if weights, ok := a.custom[role]; ok {
		if w, ok := weights[t]; ok {
			return w
		}
	}
	return 1.0
}

// Analyze classifies a requirement. It never fails: unclassifiable text
// yields implement/medium.
func (a *Analyzer) Analyze(requirement string) *Analysis {
	text := strings.ToLower(requirement)

	taskType := classifyType(text)
	complexity := scoreComplexity(requirement, text)

	analysis := &Analysis{
		TaskType:             taskType,
		Priority:             derivePriority(text, complexity),
		RequiredCapabilities: append([]string(nil), typeCapabilities[taskType]...),
		Complexity:           complexity,
		CanParallelize:       !serialTypes[taskType],
		Dependencies:         append([]TaskType(nil), typeDependencies[taskType]...),
	}
	analysis.RecommendedRoles = a.recommendRoles(taskType)

	return analysis
}

// classifyType picks the task type whose keyword bucket has the most hits.
// No hits or a tie defaults to implement.
func classifyType(text string) TaskType {
	best := TaskImplement
	bestHits := 0
	tied := false

	for _, t := range TaskTypes {
		hits := 0
		for _, kw := range typeKeywords[t] {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = t
			bestHits = hits
			tied = false
		} else if hits == bestHits && hits > 0 {
			tied = true
		}
	}

	if bestHits == 0 || tied {
		return TaskImplement
	}
	return best
}

// scoreComplexity starts at 5, adds for length and complexity keywords,
// subtracts for simplicity keywords, and clamps to [1,10].
func scoreComplexity(requirement, text string) int {
	score := 5

	if len(requirement) > 500 {
		score += 2
	}
	if len(requirement) > 1000 {
		score++
	}

	for _, kw := range complexKeywords {
		score += strings.Count(text, kw)
	}
	for _, kw := range simpleKeywords {
		score -= strings.Count(text, kw)
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

func derivePriority(text string, complexity int) Priority {
	for _, kw := range urgentKeywords {
		if strings.Contains(text, kw) {
			return PriorityCritical
		}
	}
	// Low-priority phrases embed the important-family substrings
	// ("低优先" contains "优先"), so they are checked first.
	for _, kw := range lowPriorityKeywords {
		if strings.Contains(text, kw) {
			return PriorityLow
		}
	}
	for _, kw := range importantKeywords {
		if strings.Contains(text, kw) {
			return PriorityHigh
		}
	}

	switch {
	case complexity >= 8:
		return PriorityHigh
	case complexity <= 3:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// recommendRoles scores every role as baseWeight x customWeight for the task
// type and returns the top three, ties broken by table order.
func (a *Analyzer) recommendRoles(t TaskType) []string {
	type scored struct {
		name  string
		score float64
		index int
	}

	ranked := make([]scored, 0, len(a.roles))
	for i, role := range a.roles {
		score := role.Weights[t] * a.CustomWeight(role.Name, t)
		ranked = append(ranked, scored{name: role.Name, score: score, index: i})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].index < ranked[j].index
	})

	n := 3
	if len(ranked) < n {
		n = len(ranked)
	}

	out := make([]string, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, r.name)
	}
	return out
}
