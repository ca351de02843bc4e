package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRoles() []RoleWeights {
	return []RoleWeights{
		{Name: "architect", Weights: map[TaskType]float64{TaskDesign: 10, TaskPlanning: 9, TaskImplement: 4, TaskFix: 3, TaskReview: 6}},
		{Name: "developer", Weights: map[TaskType]float64{TaskDesign: 4, TaskImplement: 10, TaskFix: 8, TaskRefactor: 9, TaskTest: 5}},
		{Name: "security", Weights: map[TaskType]float64{TaskFix: 9, TaskAudit: 10, TaskReview: 7, TaskImplement: 3}},
		{Name: "tester", Weights: map[TaskType]float64{TaskTest: 10, TaskVerify: 9, TaskFix: 5, TaskImplement: 2}},
	}
}

func TestAnalyzeUrgentChineseFix(t *testing.T) {
	a := New(testRoles())

	analysis := a.Analyze("紧急修复登录页面的XSS漏洞")

	assert.Equal(t, TaskFix, analysis.TaskType)
	assert.Equal(t, PriorityCritical, analysis.Priority)
	require.Len(t, analysis.RecommendedRoles, 3)
	assert.Equal(t, "security", analysis.RecommendedRoles[0])
	assert.Equal(t, "developer", analysis.RecommendedRoles[1])
	assert.Contains(t, analysis.RequiredCapabilities, "debugging")
	assert.True(t, analysis.CanParallelize)
}

func TestAnalyzeDefaultsToImplementMedium(t *testing.T) {
	a := New(testRoles())

	analysis := a.Analyze("do the thing")

	assert.Equal(t, TaskImplement, analysis.TaskType)
	assert.Equal(t, PriorityMedium, analysis.Priority)
	assert.Equal(t, 5, analysis.Complexity)
	assert.Equal(t, []TaskType{TaskDesign}, analysis.Dependencies)
}

func TestAnalyzeTaskTypes(t *testing.T) {
	a := New(testRoles())

	tests := []struct {
		requirement string
		want        TaskType
	}{
		{"design the service architecture", TaskDesign},
		{"deploy the release to production", TaskDeploy},
		{"write unit tests for the parser", TaskTest},
		{"部署新版本上线", TaskDeploy},
		{"重构支付模块", TaskRefactor},
		{"optimize query performance and latency", TaskOptimize},
	}

	for _, tt := range tests {
		analysis := a.Analyze(tt.requirement)
		assert.Equalf(t, tt.want, analysis.TaskType, "requirement %q", tt.requirement)
	}
}

func TestComplexityScoring(t *testing.T) {
	a := New(testRoles())

	// Base 5.
	assert.Equal(t, 5, a.Analyze("fix the bug").Complexity)

	// Complexity keywords add, simplicity keywords subtract.
	assert.Equal(t, 6, a.Analyze("fix the complex bug").Complexity)
	assert.Equal(t, 4, a.Analyze("fix the simple bug").Complexity)

	// Length over 500 chars adds 2, over 1000 adds 1 more.
	long := "fix the bug " + strings.Repeat("x", 600)
	assert.Equal(t, 7, a.Analyze(long).Complexity)
	veryLong := "fix the bug " + strings.Repeat("x", 1200)
	assert.Equal(t, 8, a.Analyze(veryLong).Complexity)

	// Clamped to [1,10].
	minimal := "fix the simple trivial easy minor bug"
	assert.GreaterOrEqual(t, a.Analyze(minimal).Complexity, 1)
	loaded := "complex comprehensive complete 复杂 全面 完整 design " + strings.Repeat("y", 1100)
	assert.LessOrEqual(t, a.Analyze(loaded).Complexity, 10)
}

func TestPriorityFromComplexity(t *testing.T) {
	a := New(testRoles())

	high := a.Analyze("implement the complex comprehensive complete billing feature")
	assert.Equal(t, PriorityHigh, high.Priority)

	low := a.Analyze("implement the simple trivial feature")
	assert.Equal(t, PriorityLow, low.Priority)
}

func TestSerialTypesCannotParallelize(t *testing.T) {
	a := New(testRoles())

	assert.False(t, a.Analyze("design the database schema").CanParallelize)
	assert.False(t, a.Analyze("deploy to production").CanParallelize)
	assert.True(t, a.Analyze("fix the login bug").CanParallelize)
}

func TestDeployDependencies(t *testing.T) {
	a := New(testRoles())

	analysis := a.Analyze("deploy the release")
	assert.Equal(t, []TaskType{TaskImplement, TaskTest, TaskReview}, analysis.Dependencies)
}

func TestCustomWeightChangesRecommendation(t *testing.T) {
	a := New(testRoles())

	base := a.Analyze("fix the login bug")
	require.Equal(t, "security", base.RecommendedRoles[0])

	// Boosting the tester for fixes reorders the recommendation.
	a.SetCustomWeight("tester", TaskFix, 3.0)
	boosted := a.Analyze("fix the login bug")
	assert.Equal(t, "tester", boosted.RecommendedRoles[0])
}

func TestPriorityRank(t *testing.T) {
	assert.Equal(t, 0, PriorityCritical.Rank())
	assert.Equal(t, 1, PriorityHigh.Rank())
	assert.Equal(t, 2, PriorityMedium.Rank())
	assert.Equal(t, 3, PriorityLow.Rank())
	assert.Equal(t, 4, Priority("bogus").Rank())
}
