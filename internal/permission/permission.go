// Package permission gates side-effecting actions behind a risk-classified,
// possibly-asynchronous approval step. Requests resolve synchronously when a
// policy, pattern, or list match decides them; everything else queues until a
// caller approves or denies it or the timeout fires. Every request resolves
// exactly once.
package permission

import (
	"strings"
	"time"

	"github.com/codefionn/crewschnell/internal/risk"

	"github.com/google/uuid"
)

// Mode is the gate's policy mode.
type Mode string

const (
	// ModeAskAlways queues every request that is not pattern- or list-decided.
	ModeAskAlways Mode = "ask_always"
	// ModeAutoApprove approves low-risk requests and queues the rest.
	ModeAutoApprove Mode = "auto_approve"
	// ModeYolo approves everything, bypassing all other checks.
	ModeYolo Mode = "yolo"
)

// ParseMode parses a mode string, defaulting to ask_always.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAutoApprove:
		return ModeAutoApprove
	case ModeYolo:
		return ModeYolo
	default:
		return ModeAskAlways
	}
}

// Setting is the per-permission-type configured resolution.
type Setting string

const (
	SettingAsk   Setting = "ask"
	SettingAllow Setting = "allow"
	SettingDeny  Setting = "deny"
)

// Policy configures a Gate.
type Policy struct {
	Mode    Mode
	Timeout time.Duration // queue timeout before auto-deny

	AllowedPaths    []string
	DeniedPaths     []string
	AllowedCommands []string
	DeniedCommands  []string

	// TypeSettings overrides resolution per permission type. Missing types
	// behave as SettingAsk.
	TypeSettings map[risk.Action]Setting

	// Lists feed the risk classifier. Nil uses risk.DefaultLists.
	Lists *risk.Lists
}

// DefaultTimeout is applied when a policy leaves Timeout unset.
const DefaultTimeout = 5 * time.Minute

// DefaultPolicy returns an ask-always policy with the built-in risk lists.
func DefaultPolicy() Policy {
	return Policy{
		Mode:    ModeAskAlways,
		Timeout: DefaultTimeout,
		Lists:   risk.DefaultLists(),
	}
}

// Request is a single permission request. A request is resolved exactly once
// and never reused.
type Request struct {
	ID        string       `json:"id"`
	Type      risk.Action  `json:"type"`
	Details   risk.Details `json:"details"`
	Risk      risk.Level   `json:"risk"`
	Timestamp time.Time    `json:"timestamp"`
	Source    string       `json:"source,omitempty"`
}

// Decision is the outcome of a permission request.
type Decision struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	Reason    string `json:"reason,omitempty"`
}

// NewRequest builds a request with a fresh ID and a risk level derived from
// the given lists.
func NewRequest(t risk.Action, details risk.Details, source string, lists *risk.Lists) *Request {
	return &Request{
		ID:        uuid.NewString(),
		Type:      t,
		Details:   details,
		Risk:      risk.Classify(t, details, lists),
		Timestamp: time.Now(),
		Source:    source,
	}
}

// Pattern returns the normalized (type, target) key used to remember
// approve/deny decisions: the permission type plus the first token of the
// path, command, or URL.
func (r *Request) Pattern() string {
	return NormalizePattern(r.Type, r.Details)
}

// Target returns the primary subject of the request for list matching.
func (r *Request) Target() string {
	switch r.Type {
	case risk.ActionShellExecute:
		return strings.TrimSpace(r.Details.Command)
	case risk.ActionNetwork:
		return strings.TrimSpace(r.Details.URL)
	default:
		return strings.TrimSpace(r.Details.Path)
	}
}

// NormalizePattern builds the memoization key for a permission type and its
// details.
func NormalizePattern(t risk.Action, details risk.Details) string {
	var target string
	switch t {
	case risk.ActionShellExecute:
		target = firstToken(details.Command)
	case risk.ActionNetwork:
		target = firstToken(details.URL)
	default:
		target = firstToken(details.Path)
	}
	return string(t) + ":" + target
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
