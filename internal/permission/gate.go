package permission

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/codefionn/crewschnell/internal/logger"
	"github.com/codefionn/crewschnell/internal/risk"
)

// ErrUnknownRequest is returned when resolving a request that is not pending.
var ErrUnknownRequest = errors.New("permission: unknown or already resolved request")

// pendingRequest pairs a queued request with its resolution machinery. The
// once guard makes the resolver, the timeout, and caller cancellation
// mutually exclusive.
type pendingRequest struct {
	req    *Request
	result chan Decision
	timer  *time.Timer
	once   sync.Once
}

// Gate enforces the permission policy. It remembers per-pattern decisions for
// the life of the process and supports concurrent pending requests that
// resolve independently.
type Gate struct {
	mu       sync.Mutex
	policy   Policy
	approved map[string]struct{}
	denied   map[string]struct{}
	pending  map[string]*pendingRequest
	order    []string
	subs     map[int]chan []*Request
	nextSub  int
	log      *logger.Logger
}

// NewGate creates a gate with the given policy. A nil logger disables gate
// logging.
func NewGate(policy Policy, log *logger.Logger) *Gate {
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultTimeout
	}
	if policy.Lists == nil {
		policy.Lists = risk.DefaultLists()
	}
	if log == nil {
		log = logger.Global()
	}
	return &Gate{
		policy:   policy,
		approved: make(map[string]struct{}),
		denied:   make(map[string]struct{}),
		pending:  make(map[string]*pendingRequest),
		subs:     make(map[int]chan []*Request),
		log:      log.WithPrefix("permission"),
	}
}

// Request builds a new request classified under the gate's current lists.
func (g *Gate) Request(t risk.Action, details risk.Details, source string) *Request {
	g.mu.Lock()
	lists := g.policy.Lists
	g.mu.Unlock()
	return NewRequest(t, details, source, lists)
}

// Mode returns the gate's current policy mode.
func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy.Mode
}

// SetMode switches the policy mode at runtime (live config reload).
func (g *Gate) SetMode(mode Mode) {
	g.mu.Lock()
	g.policy.Mode = mode
	g.mu.Unlock()
	g.log.Info("policy mode set to %s", mode)
}

// Check resolves the request, queuing it for explicit approval when no rule
// decides it. The call blocks until a decision exists: synchronous rule,
// explicit Resolve, timeout, or context cancellation (treated as deny).
func (g *Gate) Check(ctx context.Context, req *Request) Decision {
	d, p := g.admit(req)
	if p == nil {
		return d
	}

	select {
	case d := <-p.result:
		return d
	case <-ctx.Done():
		g.finish(p, false, "cancelled", false)
		return <-p.result
	}
}

// admit applies the synchronous resolution order. It returns either the
// decision or the queued pending record.
func (g *Gate) admit(req *Request) (Decision, *pendingRequest) {
	g.mu.Lock()

	// 1. Yolo mode approves everything.
	if g.policy.Mode == ModeYolo {
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: true, Reason: "yolo mode"}, nil
	}

	// 2. Remembered pattern decisions.
	pattern := req.Pattern()
	if _, ok := g.approved[pattern]; ok {
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: true, Reason: "pattern previously approved"}, nil
	}
	if _, ok := g.denied[pattern]; ok {
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: false, Reason: "pattern previously denied"}, nil
	}

	// 3/4. Deny list wins over allow list.
	target := req.Target()
	if matchesList(target, g.deniedListFor(req.Type)) {
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: false, Reason: "target is deny-listed"}, nil
	}
	if matchesList(target, g.allowedListFor(req.Type)) {
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: true, Reason: "target is allow-listed"}, nil
	}

	// 5. Per-type configured resolution.
	switch g.policy.TypeSettings[req.Type] {
	case SettingAllow:
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: true, Reason: "allowed by type setting"}, nil
	case SettingDeny:
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: false, Reason: "denied by type setting"}, nil
	}

	// 6. Auto-approve mode only short-circuits low risk.
	if g.policy.Mode == ModeAutoApprove && req.Risk == risk.LevelLow {
		g.mu.Unlock()
		return Decision{RequestID: req.ID, Approved: true, Reason: "low risk auto-approved"}, nil
	}

	// 7. Queue for explicit approval.
	p := &pendingRequest{
		req:    req,
		result: make(chan Decision, 1),
	}
	p.timer = time.AfterFunc(g.policy.Timeout, func() {
		g.finish(p, false, "timed out waiting for approval", false)
	})
	g.pending[req.ID] = p
	g.order = append(g.order, req.ID)
	g.mu.Unlock()

	g.log.Info("queued %s request %s (risk %s)", req.Type, req.ID, req.Risk)
	g.notify()
	return Decision{}, p
}

// Resolve approves or denies a pending request. With applyToSimilar the
// request's normalized pattern is remembered so identical future requests
// resolve without queuing.
func (g *Gate) Resolve(id string, approve bool, applyToSimilar bool) error {
	g.mu.Lock()
	p, ok := g.pending[id]
	g.mu.Unlock()
	if !ok {
		return ErrUnknownRequest
	}

	reason := "denied by user"
	if approve {
		reason = "approved by user"
	}
	g.finish(p, approve, reason, applyToSimilar)
	return nil
}

// CancelAll denies every pending request, used when an orchestration run is
// cancelled.
func (g *Gate) CancelAll(reason string) {
	g.mu.Lock()
	all := make([]*pendingRequest, 0, len(g.pending))
	for _, p := range g.pending {
		all = append(all, p)
	}
	g.mu.Unlock()

	if reason == "" {
		reason = "cancelled"
	}
	for _, p := range all {
		g.finish(p, false, reason, false)
	}
}

// finish resolves a pending request exactly once: stops the timer, removes it
// from the queue, records the pattern if requested, and delivers the decision.
func (g *Gate) finish(p *pendingRequest, approve bool, reason string, applyToSimilar bool) {
	p.once.Do(func() {
		g.mu.Lock()
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(g.pending, p.req.ID)
		for i, id := range g.order {
			if id == p.req.ID {
				g.order = append(g.order[:i], g.order[i+1:]...)
				break
			}
		}
		if applyToSimilar {
			pattern := p.req.Pattern()
			if approve {
				g.approved[pattern] = struct{}{}
			} else {
				g.denied[pattern] = struct{}{}
			}
		}
		g.mu.Unlock()

		p.result <- Decision{RequestID: p.req.ID, Approved: approve, Reason: reason}
		g.log.Info("resolved request %s: approved=%v (%s)", p.req.ID, approve, reason)
		g.notify()
	})
}

// Pending returns the queued requests in arrival order.
func (g *Gate) Pending() []*Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingLocked()
}

func (g *Gate) pendingLocked() []*Request {
	out := make([]*Request, 0, len(g.order))
	for _, id := range g.order {
		if p, ok := g.pending[id]; ok {
			out = append(out, p.req)
		}
	}
	return out
}

// Subscribe registers a listener for the live pending list. The listener
// receives a snapshot after every enqueue and resolve; slow listeners miss
// intermediate snapshots rather than blocking the gate. The returned func
// unsubscribes.
func (g *Gate) Subscribe() (<-chan []*Request, func()) {
	ch := make(chan []*Request, 16)

	g.mu.Lock()
	g.nextSub++
	id := g.nextSub
	g.subs[id] = ch
	g.mu.Unlock()

	return ch, func() {
		g.mu.Lock()
		if sub, ok := g.subs[id]; ok {
			delete(g.subs, id)
			close(sub)
		}
		g.mu.Unlock()
	}
}

// notify delivers the pending snapshot to every subscriber. The non-blocking
// sends happen under g.mu so that an unsubscribe, which closes the channel
// under the same lock, can never race a send onto a closed channel.
func (g *Gate) notify() {
	g.mu.Lock()
	defer g.mu.Unlock()

	snapshot := g.pendingLocked()
	for _, ch := range g.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (g *Gate) allowedListFor(t risk.Action) []string {
	if t == risk.ActionShellExecute {
		return g.policy.AllowedCommands
	}
	return g.policy.AllowedPaths
}

func (g *Gate) deniedListFor(t risk.Action) []string {
	if t == risk.ActionShellExecute {
		return g.policy.DeniedCommands
	}
	return g.policy.DeniedPaths
}

func matchesList(target string, prefixes []string) bool {
	if target == "" {
		return false
	}
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(target, prefix) {
			return true
		}
	}
	return false
}
