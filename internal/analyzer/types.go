package analyzer

// TaskType classifies a unit of work.
type TaskType string

const (
	TaskDesign      TaskType = "design"
	TaskPlanning    TaskType = "planning"
	TaskImplement   TaskType = "implement"
	TaskFix         TaskType = "fix"
	TaskRefactor    TaskType = "refactor"
	TaskOptimize    TaskType = "optimize"
	TaskReview      TaskType = "review"
	TaskTest        TaskType = "test"
	TaskVerify      TaskType = "verify"
	TaskResearch    TaskType = "research"
	TaskInvestigate TaskType = "investigate"
	TaskDeploy      TaskType = "deploy"
	TaskConfigure   TaskType = "configure"
	TaskAutomate    TaskType = "automate"
	TaskAudit       TaskType = "audit"
	TaskAnalyze     TaskType = "analyze"
	TaskStyle       TaskType = "style"
)

// TaskTypes lists every task type in a fixed order. Keyword matching and
// weight tables iterate this slice so results are deterministic.
var TaskTypes = []TaskType{
	TaskDesign, TaskPlanning, TaskImplement, TaskFix, TaskRefactor,
	TaskOptimize, TaskReview, TaskTest, TaskVerify, TaskResearch,
	TaskInvestigate, TaskDeploy, TaskConfigure, TaskAutomate, TaskAudit,
	TaskAnalyze, TaskStyle,
}

// Priority orders work items. Rank 0 is the most urgent.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank maps a priority to its scheduling order: critical=0 through low=3.
// Unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Analysis is the result of classifying a free-text requirement.
type Analysis struct {
	TaskType             TaskType   `json:"task_type"`
	RecommendedRoles     []string   `json:"recommended_roles"`
	Priority             Priority   `json:"priority"`
	RequiredCapabilities []string   `json:"required_capabilities"`
	Complexity           int        `json:"complexity"` // 1..10
	CanParallelize       bool       `json:"can_parallelize"`
	Dependencies         []TaskType `json:"dependencies"`
}

// typeKeywords drive classification. Buckets tolerate both English and
// Chinese requirement text.
var typeKeywords = map[TaskType][]string{
	TaskDesign:      {"design", "architecture", "架构", "设计", "schema", "blueprint", "原型"},
	TaskPlanning:    {"plan", "planning", "roadmap", "规划", "计划", "milestone", "排期"},
	TaskImplement:   {"implement", "build", "create", "add", "开发", "实现", "新增", "feature", "功能"},
	TaskFix:         {"fix", "bug", "repair", "defect", "vulnerability", "修复", "漏洞", "错误", "故障", "crash"},
	TaskRefactor:    {"refactor", "restructure", "rewrite", "重构", "重写", "cleanup", "整理"},
	TaskOptimize:    {"optimize", "performance", "speed up", "优化", "性能", "latency", "提速"},
	TaskReview:      {"review", "审查", "评审", "code review", "检视"},
	TaskTest:        {"test", "测试", "unit test", "coverage", "用例"},
	TaskVerify:      {"verify", "validate", "验证", "校验", "confirm"},
	TaskResearch:    {"research", "调研", "explore", "研究", "survey", "比较"},
	TaskInvestigate: {"investigate", "排查", "diagnose", "调查", "root cause", "定位"},
	TaskDeploy:      {"deploy", "release", "发布", "部署", "上线", "rollout"},
	TaskConfigure:   {"configure", "config", "配置", "setup", "设置", "环境"},
	TaskAutomate:    {"automate", "automation", "自动化", "pipeline", "脚本化"},
	TaskAudit:       {"audit", "审计", "compliance", "合规", "安全审查"},
	TaskAnalyze:     {"analyze", "analysis", "分析", "统计", "metrics", "报表"},
	TaskStyle:       {"style", "format", "lint", "格式", "样式", "排版"},
}

var urgentKeywords = []string{"urgent", "asap", "immediately", "emergency", "紧急", "立刻", "马上", "严重"}
var importantKeywords = []string{"important", "priority", "重要", "优先"}
var lowPriorityKeywords = []string{"low priority", "someday", "later", "eventually", "whenever", "minor", "低优先", "不急", "有空"}

var complexKeywords = []string{"complex", "comprehensive", "complete", "复杂", "全面", "完整"}
var simpleKeywords = []string{"simple", "minor", "trivial", "easy", "简单", "轻微"}

// typeDependencies is the static prerequisite map from task type to the task
// types that should complete first.
var typeDependencies = map[TaskType][]TaskType{
	TaskImplement: {TaskDesign},
	TaskRefactor:  {TaskImplement},
	TaskOptimize:  {TaskImplement},
	TaskReview:    {TaskImplement},
	TaskTest:      {TaskImplement},
	TaskVerify:    {TaskTest},
	TaskStyle:     {TaskImplement},
	TaskDeploy:    {TaskImplement, TaskTest, TaskReview},
}

// serialTypes inherently serialize the whole task.
var serialTypes = map[TaskType]bool{
	TaskDesign:   true,
	TaskPlanning: true,
	TaskDeploy:   true,
}

// typeCapabilities maps each task type to the capabilities a role needs.
var typeCapabilities = map[TaskType][]string{
	TaskDesign:      {"architecture", "design"},
	TaskPlanning:    {"planning", "coordination"},
	TaskImplement:   {"coding"},
	TaskFix:         {"debugging", "coding"},
	TaskRefactor:    {"refactoring", "coding"},
	TaskOptimize:    {"performance", "profiling"},
	TaskReview:      {"code-review"},
	TaskTest:        {"testing"},
	TaskVerify:      {"testing", "validation"},
	TaskResearch:    {"research"},
	TaskInvestigate: {"debugging", "analysis"},
	TaskDeploy:      {"deployment", "operations"},
	TaskConfigure:   {"configuration", "operations"},
	TaskAutomate:    {"automation", "scripting"},
	TaskAudit:       {"security", "code-review"},
	TaskAnalyze:     {"analysis"},
	TaskStyle:       {"formatting", "coding"},
}
