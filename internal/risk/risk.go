// Package risk classifies requested side-effecting actions into risk levels.
// Classification is a pure function over the action, its details, and a set of
// static lists; it never fails and never consults mutable state.
package risk

import (
	"regexp"
	"strings"
)

// Action identifies the kind of side-effecting action being requested.
type Action string

const (
	ActionFileRead     Action = "file_read"
	ActionFileWrite    Action = "file_write"
	ActionFileDelete   Action = "file_delete"
	ActionShellExecute Action = "shell_execute"
	ActionNetwork      Action = "network"
)

// Level is the risk classification of an action.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Details carries the action parameters relevant to classification.
type Details struct {
	Path        string `json:"path,omitempty"`
	Command     string `json:"command,omitempty"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Lists holds the static match lists classification runs against.
type Lists struct {
	// SensitivePaths escalate file writes and deletes. Matched as
	// case-insensitive substrings of the target path.
	SensitivePaths []string
	// DangerousPatterns mark a shell command critical when any matches.
	DangerousPatterns []*regexp.Regexp
	// DeniedCommands mark a shell command critical on prefix match.
	DeniedCommands []string
	// AllowedCommands mark a shell command low risk on prefix match.
	AllowedCommands []string
}

var defaultSensitivePaths = []string{
	".ssh",
	".aws",
	".gnupg",
	".kube/config",
	".env",
	".netrc",
	".npmrc",
	"id_rsa",
	"id_ed25519",
	"credentials",
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	"/system/",
	"c:\\windows",
}

var defaultDangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)[a-z]*\s+(/|~)`),
	regexp.MustCompile(`(?i)dd\s+.*of=/dev/`),
	regexp.MustCompile(`(?i)mkfs(\.\w+)?\s`),
	regexp.MustCompile(`(?i)>\s*/dev/(sd|nvme|hd)`),
	regexp.MustCompile(`(?i)drop\s+(database|table)\s`),
	regexp.MustCompile(`(?i)truncate\s+table\s`),
	regexp.MustCompile(`(?i)(curl|wget)\s[^|]*\|\s*(ba|z|da)?sh`),
	regexp.MustCompile(`:\(\)\s*\{.*:\|:`),
	regexp.MustCompile(`(?i)chmod\s+(-[a-z]+\s+)?777\s+/`),
}

// DefaultLists returns the built-in sensitive paths and dangerous command
// patterns with empty allow/deny command lists.
func DefaultLists() *Lists {
	return &Lists{
		SensitivePaths:    append([]string(nil), defaultSensitivePaths...),
		DangerousPatterns: defaultDangerousPatterns,
	}
}

// WithCommands returns a copy of the lists with the given allowed and denied
// command prefixes attached.
func (l *Lists) WithCommands(allowed, denied []string) *Lists {
	out := &Lists{
		SensitivePaths:    l.SensitivePaths,
		DangerousPatterns: l.DangerousPatterns,
		AllowedCommands:   append([]string(nil), allowed...),
		DeniedCommands:    append([]string(nil), denied...),
	}
	return out
}

// Classify maps an action and its details to a risk level. It is total: nil
// lists fall back to the defaults and unknown actions classify as medium.
func Classify(action Action, details Details, lists *Lists) Level {
	if lists == nil {
		lists = DefaultLists()
	}

	switch action {
	case ActionFileRead:
		return LevelLow
	case ActionFileWrite:
		if isSensitivePath(details.Path, lists.SensitivePaths) {
			return LevelHigh
		}
		return LevelMedium
	case ActionFileDelete:
		if isSensitivePath(details.Path, lists.SensitivePaths) {
			return LevelCritical
		}
		return LevelHigh
	case ActionShellExecute:
		return classifyCommand(details.Command, lists)
	case ActionNetwork:
		return LevelMedium
	default:
		return LevelMedium
	}
}

func classifyCommand(command string, lists *Lists) Level {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return LevelMedium
	}

	for _, pattern := range lists.DangerousPatterns {
		if pattern != nil && pattern.MatchString(cmd) {
			return LevelCritical
		}
	}

	for _, prefix := range lists.DeniedCommands {
		if prefix != "" && strings.HasPrefix(cmd, prefix) {
			return LevelCritical
		}
	}

	for _, prefix := range lists.AllowedCommands {
		if prefix != "" && strings.HasPrefix(cmd, prefix) {
			return LevelLow
		}
	}

	return LevelMedium
}

func isSensitivePath(path string, sensitive []string) bool {
	if path == "" {
		return false
	}
	lower := strings.ToLower(path)
	for _, s := range sensitive {
		if s != "" && strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
