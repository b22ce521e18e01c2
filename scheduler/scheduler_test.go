package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"depflow/locker"
)

// mockRunner is a test double for installer.Runner.
type mockRunner struct {
	installErr error
	delay      time.Duration
	active     atomic.Int32
	maxActive  atomic.Int32
	mu         sync.Mutex
	calls      []installCall
}

type installCall struct {
	names []string
	dev   bool
}

func (m *mockRunner) Name() string { return "mock" }

func (m *mockRunner) Install(ctx context.Context, names []string, dev bool) error {
	cur := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		max := m.maxActive.Load()
		if cur <= max || m.maxActive.CompareAndSwap(max, cur) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.calls = append(m.calls, installCall{names: append([]string(nil), names...), dev: dev})
	m.mu.Unlock()

	return m.installErr
}

func (m *mockRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *mockRunner) call(i int) installCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

func newTestScheduler(t *testing.T, runner *mockRunner) *Scheduler {
	t.Helper()
	return New(runner, locker.NewRegistry(t.TempDir()), &Config{
		Debounce: 10 * time.Millisecond,
	})
}

func waitAll(t *testing.T, tickets ...*Ticket) []error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errs := make([]error, len(tickets))
	for i, ticket := range tickets {
		errs[i] = ticket.Wait(ctx)
		if errors.Is(errs[i], context.DeadlineExceeded) {
			t.Fatalf("ticket %d never settled", i)
		}
	}
	return errs
}

func TestEnqueue_CoalescesBurstIntoOneInvocation(t *testing.T) {
	mock := &mockRunner{}
	s := newTestScheduler(t, mock)

	a := s.Enqueue("pkg-a", Production)
	b := s.Enqueue("pkg-b", Production)

	for _, err := range waitAll(t, a, b) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if mock.callCount() != 1 {
		t.Fatalf("expected 1 install call, got %d", mock.callCount())
	}

	call := mock.call(0)
	if len(call.names) != 2 || call.names[0] != "pkg-a" || call.names[1] != "pkg-b" {
		t.Errorf("expected [pkg-a pkg-b], got %v", call.names)
	}
	if call.dev {
		t.Error("production batch should not carry the dev flag")
	}
}

func TestEnqueue_DevClassificationSetsDevFlag(t *testing.T) {
	mock := &mockRunner{}
	s := newTestScheduler(t, mock)

	ticket := s.Enqueue("pkg-c", Development)
	if err := waitAll(t, ticket)[0]; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount() != 1 {
		t.Fatalf("expected 1 install call, got %d", mock.callCount())
	}
	if !mock.call(0).dev {
		t.Error("development batch should carry the dev flag")
	}
}

func TestInstallFailure_RejectsWholeGroup(t *testing.T) {
	mock := &mockRunner{installErr: fmt.Errorf("registry unreachable")}
	s := newTestScheduler(t, mock)

	a := s.Enqueue("pkg-a", Production)
	b := s.Enqueue("pkg-b", Production)

	errs := waitAll(t, a, b)
	for i, err := range errs {
		if err == nil {
			t.Fatalf("ticket %d: expected error, got nil", i)
		}

		var ierr *InstallError
		if !errors.As(err, &ierr) {
			t.Fatalf("ticket %d: expected *InstallError, got %T", i, err)
		}
		if !strings.Contains(err.Error(), "Could not install package") {
			t.Errorf("ticket %d: error %q missing failure marker", i, err.Error())
		}
	}

	// Outcomes never split within a group
	if errs[0].Error() != errs[1].Error() {
		t.Errorf("group members settled with different errors: %q vs %q", errs[0], errs[1])
	}
}

func TestMixedClassifications_OneInvocationPerGroup(t *testing.T) {
	mock := &mockRunner{}
	s := newTestScheduler(t, mock)

	prod := s.Enqueue("pkg-a", Production)
	dev := s.Enqueue("pkg-b", Development)

	for _, err := range waitAll(t, prod, dev) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if mock.callCount() != 2 {
		t.Fatalf("expected 2 install calls, got %d", mock.callCount())
	}

	// FIFO by arrival: the first-queued request's group goes first
	if mock.call(0).dev {
		t.Error("first batch should be the production group")
	}
	if !mock.call(1).dev {
		t.Error("second batch should be the development group")
	}

	if s.Pending() != 0 {
		t.Errorf("expected empty queue after drain, got %d pending", s.Pending())
	}
}

func TestDuplicateNames_CollapsedInCommand(t *testing.T) {
	mock := &mockRunner{}
	s := newTestScheduler(t, mock)

	a := s.Enqueue("pkg-a", Production)
	b := s.Enqueue("pkg-a", Production)

	for _, err := range waitAll(t, a, b) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if mock.callCount() != 1 {
		t.Fatalf("expected 1 install call, got %d", mock.callCount())
	}
	if names := mock.call(0).names; len(names) != 1 || names[0] != "pkg-a" {
		t.Errorf("expected duplicate name collapsed to [pkg-a], got %v", names)
	}
}

func TestDrainThenReenqueue_TriggersExactlyOneFlush(t *testing.T) {
	mock := &mockRunner{}
	s := newTestScheduler(t, mock)

	first := s.Enqueue("pkg-a", Production)
	if err := waitAll(t, first)[0]; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Queue is drained and the timer unarmed; a fresh enqueue must service
	// only the new request.
	second := s.Enqueue("pkg-b", Development)
	if err := waitAll(t, second)[0]; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount() != 2 {
		t.Fatalf("expected 2 install calls, got %d", mock.callCount())
	}
	if names := mock.call(1).names; len(names) != 1 || names[0] != "pkg-b" {
		t.Errorf("expected second batch to contain only pkg-b, got %v", names)
	}
}

func TestDebounce_TrailingEdgeOnly(t *testing.T) {
	mock := &mockRunner{}
	s := New(mock, locker.NewRegistry(t.TempDir()), &Config{
		Debounce: 60 * time.Millisecond,
	})

	s.Enqueue("pkg-a", Production)
	time.Sleep(30 * time.Millisecond)

	// Still inside the window of the re-armed timer
	ticket := s.Enqueue("pkg-b", Production)
	time.Sleep(30 * time.Millisecond)

	// 60ms after the first enqueue but only 30ms after the last: the burst
	// must not have flushed yet.
	if got := mock.callCount(); got != 0 {
		t.Fatalf("flush fired before the trailing edge (%d calls)", got)
	}

	if err := waitAll(t, ticket)[0]; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount() != 1 {
		t.Fatalf("expected 1 install call, got %d", mock.callCount())
	}
	if names := mock.call(0).names; len(names) != 2 {
		t.Errorf("expected both packages in one batch, got %v", names)
	}
}

func TestTicket_SettlesExactlyOnce(t *testing.T) {
	mock := &mockRunner{}
	s := newTestScheduler(t, mock)

	ticket := s.Enqueue("pkg-a", Production)

	if err := waitAll(t, ticket)[0]; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Repeated waits observe the same settled outcome
	for i := 0; i < 3; i++ {
		if err := ticket.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: outcome changed after settling: %v", i, err)
		}
	}

	select {
	case <-ticket.Done():
	default:
		t.Error("Done channel should be closed after settling")
	}
}

func TestTicketWait_RespectsContext(t *testing.T) {
	// A scheduler whose runner never finishes within the test window
	mock := &mockRunner{delay: 200 * time.Millisecond}
	s := newTestScheduler(t, mock)

	ticket := s.Enqueue("pkg-a", Production)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := ticket.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	// The request is not withdrawn; it still settles
	if err := waitAll(t, ticket)[0]; err != nil {
		t.Fatalf("unexpected error after deadline wait: %v", err)
	}
}

func TestConcurrentSchedulers_SerializeOnManifestLock(t *testing.T) {
	mock := &mockRunner{delay: 50 * time.Millisecond}
	locks := locker.NewRegistry(t.TempDir())

	s1 := New(mock, locks, &Config{Debounce: 5 * time.Millisecond})
	s2 := New(mock, locks, &Config{Debounce: 5 * time.Millisecond})

	a := s1.Enqueue("pkg-a", Production)
	b := s2.Enqueue("pkg-b", Production)

	for _, err := range waitAll(t, a, b) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if mock.callCount() != 2 {
		t.Fatalf("expected 2 install calls, got %d", mock.callCount())
	}
	if max := mock.maxActive.Load(); max != 1 {
		t.Errorf("installer invocations overlapped while holding the manifest lock (max concurrent: %d)", max)
	}
}

func TestEnqueue_NeverBlocksDuringDrain(t *testing.T) {
	mock := &mockRunner{delay: 30 * time.Millisecond}
	s := newTestScheduler(t, mock)

	first := s.Enqueue("pkg-a", Production)

	// Wait until the drain is underway, then enqueue more
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	late := s.Enqueue("pkg-b", Production)
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("Enqueue blocked for %v during an active drain", elapsed)
	}

	for _, err := range waitAll(t, first, late) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if s.Pending() != 0 {
		t.Errorf("expected empty queue, got %d pending", s.Pending())
	}
}

func TestHeavyBurst_AllTicketsSettle(t *testing.T) {
	mock := &mockRunner{}
	s := newTestScheduler(t, mock)

	var tickets []*Ticket
	for i := 0; i < 100; i++ {
		class := Production
		if i%2 == 1 {
			class = Development
		}
		tickets = append(tickets, s.Enqueue(fmt.Sprintf("pkg-%d", i), class))
	}

	for i, err := range waitAll(t, tickets...) {
		if err != nil {
			t.Fatalf("ticket %d: unexpected error: %v", i, err)
		}
	}

	if s.Pending() != 0 {
		t.Errorf("expected empty queue, got %d pending", s.Pending())
	}
}
