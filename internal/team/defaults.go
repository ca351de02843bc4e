package team

import "github.com/codefionn/crewschnell/internal/analyzer"

// DefaultRoles returns the built-in crew: capability profiles and task-type
// affinities for a typical software team.
func DefaultRoles() []*Role {
	return []*Role{
		{
			Name:         "architect",
			Capabilities: []string{"architecture", "design", "planning", "code-review"},
			SystemPrompt: "You are the software architect. Produce designs, interfaces, and plans before any code is written.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 10, analyzer.TaskPlanning: 9, analyzer.TaskImplement: 4,
				analyzer.TaskFix: 3, analyzer.TaskRefactor: 6, analyzer.TaskOptimize: 5,
				analyzer.TaskReview: 7, analyzer.TaskTest: 2, analyzer.TaskVerify: 3,
				analyzer.TaskResearch: 6, analyzer.TaskInvestigate: 5, analyzer.TaskDeploy: 3,
				analyzer.TaskConfigure: 4, analyzer.TaskAutomate: 3, analyzer.TaskAudit: 5,
				analyzer.TaskAnalyze: 6, analyzer.TaskStyle: 2,
			},
		},
		{
			Name:         "developer",
			Capabilities: []string{"coding", "debugging", "refactoring", "testing"},
			SystemPrompt: "You are the developer. Implement features and fixes exactly as designed, with tests.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 4, analyzer.TaskPlanning: 3, analyzer.TaskImplement: 10,
				analyzer.TaskFix: 9, analyzer.TaskRefactor: 9, analyzer.TaskOptimize: 7,
				analyzer.TaskReview: 5, analyzer.TaskTest: 6, analyzer.TaskVerify: 4,
				analyzer.TaskResearch: 4, analyzer.TaskInvestigate: 7, analyzer.TaskDeploy: 4,
				analyzer.TaskConfigure: 5, analyzer.TaskAutomate: 6, analyzer.TaskAudit: 3,
				analyzer.TaskAnalyze: 4, analyzer.TaskStyle: 7,
			},
		},
		{
			Name:         "reviewer",
			Capabilities: []string{"code-review", "analysis", "validation"},
			SystemPrompt: "You are the code reviewer. Judge correctness, clarity, and consistency; request changes when needed.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 5, analyzer.TaskPlanning: 4, analyzer.TaskImplement: 3,
				analyzer.TaskFix: 5, analyzer.TaskRefactor: 6, analyzer.TaskOptimize: 5,
				analyzer.TaskReview: 10, analyzer.TaskTest: 4, analyzer.TaskVerify: 7,
				analyzer.TaskResearch: 3, analyzer.TaskInvestigate: 4, analyzer.TaskDeploy: 2,
				analyzer.TaskConfigure: 2, analyzer.TaskAutomate: 2, analyzer.TaskAudit: 7,
				analyzer.TaskAnalyze: 6, analyzer.TaskStyle: 6,
			},
		},
		{
			Name:         "tester",
			Capabilities: []string{"testing", "validation", "automation"},
			SystemPrompt: "You are the tester. Write and run tests, reproduce defects, and verify acceptance criteria.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 2, analyzer.TaskPlanning: 2, analyzer.TaskImplement: 3,
				analyzer.TaskFix: 5, analyzer.TaskRefactor: 3, analyzer.TaskOptimize: 4,
				analyzer.TaskReview: 4, analyzer.TaskTest: 10, analyzer.TaskVerify: 9,
				analyzer.TaskResearch: 2, analyzer.TaskInvestigate: 6, analyzer.TaskDeploy: 3,
				analyzer.TaskConfigure: 3, analyzer.TaskAutomate: 7, analyzer.TaskAudit: 4,
				analyzer.TaskAnalyze: 4, analyzer.TaskStyle: 2,
			},
		},
		{
			Name:         "security",
			Capabilities: []string{"security", "code-review", "debugging", "analysis"},
			SystemPrompt: "You are the security engineer. Find and fix vulnerabilities and audit changes for unsafe patterns.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 4, analyzer.TaskPlanning: 3, analyzer.TaskImplement: 3,
				analyzer.TaskFix: 8, analyzer.TaskRefactor: 3, analyzer.TaskOptimize: 2,
				analyzer.TaskReview: 7, analyzer.TaskTest: 4, analyzer.TaskVerify: 6,
				analyzer.TaskResearch: 5, analyzer.TaskInvestigate: 8, analyzer.TaskDeploy: 3,
				analyzer.TaskConfigure: 4, analyzer.TaskAutomate: 3, analyzer.TaskAudit: 10,
				analyzer.TaskAnalyze: 6, analyzer.TaskStyle: 1,
			},
		},
		{
			Name:         "devops",
			Capabilities: []string{"deployment", "operations", "configuration", "automation", "scripting"},
			SystemPrompt: "You are the devops engineer. Handle deployment, configuration, and automation work.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 3, analyzer.TaskPlanning: 3, analyzer.TaskImplement: 4,
				analyzer.TaskFix: 4, analyzer.TaskRefactor: 2, analyzer.TaskOptimize: 5,
				analyzer.TaskReview: 3, analyzer.TaskTest: 3, analyzer.TaskVerify: 4,
				analyzer.TaskResearch: 3, analyzer.TaskInvestigate: 5, analyzer.TaskDeploy: 10,
				analyzer.TaskConfigure: 9, analyzer.TaskAutomate: 9, analyzer.TaskAudit: 4,
				analyzer.TaskAnalyze: 3, analyzer.TaskStyle: 1,
			},
		},
		{
			Name:         "researcher",
			Capabilities: []string{"research", "analysis"},
			SystemPrompt: "You are the researcher. Investigate options, compare approaches, and summarize findings.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 5, analyzer.TaskPlanning: 5, analyzer.TaskImplement: 2,
				analyzer.TaskFix: 2, analyzer.TaskRefactor: 2, analyzer.TaskOptimize: 4,
				analyzer.TaskReview: 3, analyzer.TaskTest: 1, analyzer.TaskVerify: 2,
				analyzer.TaskResearch: 10, analyzer.TaskInvestigate: 8, analyzer.TaskDeploy: 1,
				analyzer.TaskConfigure: 2, analyzer.TaskAutomate: 2, analyzer.TaskAudit: 4,
				analyzer.TaskAnalyze: 9, analyzer.TaskStyle: 1,
			},
		},
		{
			Name:         "designer",
			Capabilities: []string{"design", "formatting"},
			SystemPrompt: "You are the UI designer. Own layout, styling, and visual consistency.",
			Weights: map[analyzer.TaskType]float64{
				analyzer.TaskDesign: 8, analyzer.TaskPlanning: 3, analyzer.TaskImplement: 3,
				analyzer.TaskFix: 2, analyzer.TaskRefactor: 2, analyzer.TaskOptimize: 1,
				analyzer.TaskReview: 3, analyzer.TaskTest: 1, analyzer.TaskVerify: 2,
				analyzer.TaskResearch: 2, analyzer.TaskInvestigate: 1, analyzer.TaskDeploy: 1,
				analyzer.TaskConfigure: 1, analyzer.TaskAutomate: 1, analyzer.TaskAudit: 1,
				analyzer.TaskAnalyze: 2, analyzer.TaskStyle: 10,
			},
		},
	}
}
