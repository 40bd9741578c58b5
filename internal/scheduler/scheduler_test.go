package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"fplpilot/internal/autopilot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	reports []autopilot.UserReport
	block   chan struct{}
}

func (f *fakeRunner) AdvanceAll(ctx context.Context) ([]autopilot.UserReport, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.reports, nil
}

func (f *fakeRunner) Season() string { return "2025-26" }

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureNotifier) SendText(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func TestRunOnceNotifiesOnCommit(t *testing.T) {
	runner := &fakeRunner{reports: []autopilot.UserReport{
		{User: "alice", Report: autopilot.Report{Committed: []int{3, 4}}},
		{User: "bob", Report: autopilot.Report{Stop: autopilot.StopMalformed, StoppedAt: 3, Detail: "no JSON object found"}},
	}}
	n := &captureNotifier{}
	s := NewAdvanceScheduler(runner, n, "@every 1h")

	out := s.RunOnce(context.Background())
	assert.Len(t, out, 2)
	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "committed gw 3, 4")
	assert.Contains(t, n.sent[0], "stopped: malformed at gw 3 (no JSON object found)")
	assert.Contains(t, n.sent[0], "2 users, 2 gameweeks committed")
}

func TestRunOnceQuietWhenNothingHappened(t *testing.T) {
	runner := &fakeRunner{reports: []autopilot.UserReport{
		{User: "alice", Report: autopilot.Report{}},
		{User: "bob", Report: autopilot.Report{Stop: autopilot.StopNoSquad}},
	}}
	n := &captureNotifier{}
	NewAdvanceScheduler(runner, n, "").RunOnce(context.Background())
	assert.Empty(t, n.sent)
}

func TestRunOnceSkipsOverlap(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	s := NewAdvanceScheduler(runner, nil, "")

	done := make(chan struct{})
	go func() {
		s.RunOnce(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, time.Millisecond)
	assert.Nil(t, s.RunOnce(context.Background()))
	close(runner.block)
	<-done
	assert.Equal(t, 1, runner.count())
}

func TestStartStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	runner := &fakeRunner{}
	s := NewAdvanceScheduler(runner, nil, "0 0 0 1 1 *")
	s.RunImmediately = true

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Start(ctx) }()
	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-errc)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewAdvanceScheduler(&fakeRunner{}, nil, "every tuesday")
	assert.Error(t, s.Start(context.Background()))
}
