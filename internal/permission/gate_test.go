package permission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codefionn/crewschnell/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(policy Policy) *Gate {
	return NewGate(policy, nil)
}

func TestYoloModeApprovesEverything(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeYolo})

	req := gate.Request(risk.ActionShellExecute, risk.Details{Command: "rm -rf /"}, "test")
	require.Equal(t, risk.LevelCritical, req.Risk)

	d := gate.Check(context.Background(), req)
	assert.True(t, d.Approved)
	assert.Empty(t, gate.Pending())
}

func TestAutoApproveOnlyShortCircuitsLowRisk(t *testing.T) {
	lists := risk.DefaultLists().WithCommands(nil, []string{"rm -rf"})
	gate := newTestGate(Policy{
		Mode:    ModeAutoApprove,
		Timeout: time.Hour,
		Lists:   lists,
	})

	// Low risk resolves synchronously.
	read := gate.Request(risk.ActionFileRead, risk.Details{Path: "main.go"}, "test")
	d := gate.Check(context.Background(), read)
	assert.True(t, d.Approved)

	// Critical risk must queue even in auto_approve mode.
	req := gate.Request(risk.ActionShellExecute, risk.Details{Command: "rm -rf /data"}, "test")
	require.Equal(t, risk.LevelCritical, req.Risk)

	done := make(chan Decision, 1)
	go func() {
		done <- gate.Check(context.Background(), req)
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond, "critical request should be queued")

	require.NoError(t, gate.Resolve(req.ID, false, false))
	d = <-done
	assert.False(t, d.Approved)
}

func TestDenyListWinsOverAllowList(t *testing.T) {
	gate := newTestGate(Policy{
		Mode:            ModeAskAlways,
		AllowedCommands: []string{"git"},
		DeniedCommands:  []string{"git push"},
	})

	denied := gate.Request(risk.ActionShellExecute, risk.Details{Command: "git push origin main"}, "test")
	assert.False(t, gate.Check(context.Background(), denied).Approved)

	allowed := gate.Request(risk.ActionShellExecute, risk.Details{Command: "git status"}, "test")
	assert.True(t, gate.Check(context.Background(), allowed).Approved)
}

func TestTypeSettingResolvesWithoutQueue(t *testing.T) {
	gate := newTestGate(Policy{
		Mode: ModeAskAlways,
		TypeSettings: map[risk.Action]Setting{
			risk.ActionFileRead: SettingAllow,
			risk.ActionNetwork:  SettingDeny,
		},
	})

	read := gate.Request(risk.ActionFileRead, risk.Details{Path: "go.mod"}, "test")
	assert.True(t, gate.Check(context.Background(), read).Approved)

	net := gate.Request(risk.ActionNetwork, risk.Details{URL: "https://example.com"}, "test")
	assert.False(t, gate.Check(context.Background(), net).Approved)
}

func TestPatternMemoization(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: time.Hour})

	first := gate.Request(risk.ActionShellExecute, risk.Details{Command: "make build"}, "test")
	done := make(chan Decision, 1)
	go func() {
		done <- gate.Check(context.Background(), first)
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, gate.Resolve(first.ID, true, true))
	d := <-done
	require.True(t, d.Approved)

	// Same pattern now resolves synchronously without queuing.
	second := gate.Request(risk.ActionShellExecute, risk.Details{Command: "make test"}, "test")
	d = gate.Check(context.Background(), second)
	assert.True(t, d.Approved)
	assert.Equal(t, "pattern previously approved", d.Reason)
	assert.Empty(t, gate.Pending())

	// A different first token still queues.
	third := gate.Request(risk.ActionShellExecute, risk.Details{Command: "cargo build"}, "test")
	go gate.Check(context.Background(), third)
	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, gate.Resolve(third.ID, false, true))

	fourth := gate.Request(risk.ActionShellExecute, risk.Details{Command: "cargo test"}, "test")
	d = gate.Check(context.Background(), fourth)
	assert.False(t, d.Approved)
	assert.Equal(t, "pattern previously denied", d.Reason)
}

func TestTimeoutDenies(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: 20 * time.Millisecond})

	req := gate.Request(risk.ActionFileWrite, risk.Details{Path: "out.txt"}, "test")
	d := gate.Check(context.Background(), req)
	assert.False(t, d.Approved)
	assert.Equal(t, "timed out waiting for approval", d.Reason)
	assert.Empty(t, gate.Pending())

	// After the timeout the request is gone; resolving it reports an error.
	assert.ErrorIs(t, gate.Resolve(req.ID, true, false), ErrUnknownRequest)
}

func TestContextCancellationDenies(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	req := gate.Request(risk.ActionFileWrite, risk.Details{Path: "out.txt"}, "test")

	done := make(chan Decision, 1)
	go func() {
		done <- gate.Check(ctx, req)
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	d := <-done
	assert.False(t, d.Approved)
	assert.Equal(t, "cancelled", d.Reason)
}

func TestExactlyOnceUnderRacingResolvers(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: 50 * time.Millisecond})

	req := gate.Request(risk.ActionShellExecute, risk.Details{Command: "make"}, "test")
	done := make(chan Decision, 1)
	go func() {
		done <- gate.Check(context.Background(), req)
	}()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 1
	}, time.Second, time.Millisecond)

	// Race many approvals against the timeout. Exactly one decision may win
	// and Check must return exactly once.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Resolve(req.ID, true, false)
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Check never returned")
	}

	// No second decision may arrive.
	select {
	case d := <-done:
		t.Fatalf("second decision delivered: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConcurrentPendingResolveIndependently(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: time.Hour})

	reqA := gate.Request(risk.ActionFileWrite, risk.Details{Path: "a.txt"}, "test")
	reqB := gate.Request(risk.ActionFileWrite, risk.Details{Path: "b.txt"}, "test")

	doneA := make(chan Decision, 1)
	doneB := make(chan Decision, 1)
	go func() { doneA <- gate.Check(context.Background(), reqA) }()
	go func() { doneB <- gate.Check(context.Background(), reqB) }()

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, gate.Resolve(reqB.ID, true, false))
	d := <-doneB
	assert.True(t, d.Approved)

	// A is still pending and unaffected.
	require.Len(t, gate.Pending(), 1)
	assert.Equal(t, reqA.ID, gate.Pending()[0].ID)

	require.NoError(t, gate.Resolve(reqA.ID, false, false))
	d = <-doneA
	assert.False(t, d.Approved)
}

func TestSubscribeSeesEnqueueAndResolve(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: time.Hour})

	updates, unsubscribe := gate.Subscribe()
	defer unsubscribe()

	req := gate.Request(risk.ActionFileWrite, risk.Details{Path: "a.txt"}, "test")
	go gate.Check(context.Background(), req)

	select {
	case snap := <-updates:
		require.Len(t, snap, 1)
		assert.Equal(t, req.ID, snap[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no enqueue notification")
	}

	require.NoError(t, gate.Resolve(req.ID, true, false))

	select {
	case snap := <-updates:
		assert.Empty(t, snap)
	case <-time.After(time.Second):
		t.Fatal("no resolve notification")
	}
}

func TestCancelAllDeniesEveryPending(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: time.Hour})

	const n = 4
	done := make(chan Decision, n)
	for i := 0; i < n; i++ {
		req := gate.Request(risk.ActionFileWrite, risk.Details{Path: "f.txt"}, "test")
		go func() { done <- gate.Check(context.Background(), req) }()
	}

	require.Eventually(t, func() bool {
		return len(gate.Pending()) == n
	}, time.Second, 5*time.Millisecond)

	gate.CancelAll("run cancelled")

	for i := 0; i < n; i++ {
		select {
		case d := <-done:
			assert.False(t, d.Approved)
			assert.Equal(t, "run cancelled", d.Reason)
		case <-time.After(time.Second):
			t.Fatal("pending request never resolved")
		}
	}
	assert.Empty(t, gate.Pending())
}

func TestSubscribeUnsubscribeRacesNotify(t *testing.T) {
	gate := newTestGate(Policy{Mode: ModeAskAlways, Timeout: time.Hour})

	stop := make(chan struct{})
	var wg sync.WaitGroup

	// Churn subscribers while requests enqueue and resolve concurrently. The
	// gate must never deliver to a channel a racing unsubscribe has closed.
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				updates, unsubscribe := gate.Subscribe()
				select {
				case <-updates:
				default:
				}
				unsubscribe()
			}
		}()
	}

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := gate.Request(risk.ActionFileWrite, risk.Details{Path: "f.txt"}, "test")
			done := make(chan Decision, 1)
			go func() { done <- gate.Check(context.Background(), req) }()

			for gate.Resolve(req.ID, true, false) == ErrUnknownRequest {
				time.Sleep(time.Millisecond)
			}
			<-done
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	time.Sleep(50 * time.Millisecond)
	close(stop)

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("gate deadlocked under subscriber churn")
	}
	assert.Empty(t, gate.Pending())
}

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		action  risk.Action
		details risk.Details
		want    string
	}{
		{risk.ActionShellExecute, risk.Details{Command: "git push origin"}, "shell_execute:git"},
		{risk.ActionFileWrite, risk.Details{Path: "/tmp/a.txt"}, "file_write:/tmp/a.txt"},
		{risk.ActionNetwork, risk.Details{URL: "https://example.com/x"}, "network:https://example.com/x"},
		{risk.ActionShellExecute, risk.Details{}, "shell_execute:"},
	}
	for _, tt := range tests {
		if got := NormalizePattern(tt.action, tt.details); got != tt.want {
			t.Errorf("NormalizePattern(%s, %+v) = %q, want %q", tt.action, tt.details, got, tt.want)
		}
	}
}
