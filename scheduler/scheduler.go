package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"depflow/installer"
	"depflow/locker"
)

// Classification groups install requests that can be materialized by a
// single package-manager invocation.
type Classification string

const (
	Production  Classification = "production"
	Development Classification = "development"
)

const (
	// DefaultDebounce is the trailing delay between the last Enqueue of a
	// burst and the flush that services it.
	DefaultDebounce = 25 * time.Millisecond

	// DefaultResource is the manifest resource the install lock covers.
	DefaultResource = "package.json"
)

// Batch describes one serviced classification group. It is handed to the
// OnBatch observer after every request in the group has settled.
type Batch struct {
	ID             string
	Tool           string
	Classification Classification
	Names          []string
	Started        time.Time
	Finished       time.Time
	Err            error
}

// Config holds scheduler construction options. Zero values fall back to
// the defaults above.
type Config struct {
	Resource string        // manifest resource name the lock is keyed on
	Debounce time.Duration // trailing debounce delay
	Verbose  bool
	OnBatch  func(Batch) // invoked after each serviced group settles
}

type request struct {
	id     ulid.ULID
	name   string
	class  Classification
	ticket *Ticket
}

// Scheduler coalesces individual install requests into minimal external
// package-manager invocations. Requests are grouped by classification,
// bursts collapse into one invocation per group, and every request gets an
// individually settled Ticket.
type Scheduler struct {
	runner   installer.Runner
	locks    *locker.Registry
	resource string
	debounce time.Duration
	verbose  bool
	onBatch  func(Batch)

	mu       sync.Mutex
	pending  []*request
	timer    *time.Timer
	draining bool
}

// New creates a Scheduler that materializes batches through runner while
// holding the manifest lock from locks.
func New(runner installer.Runner, locks *locker.Registry, cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = &Config{}
	}

	s := &Scheduler{
		runner:   runner,
		locks:    locks,
		resource: cfg.Resource,
		debounce: cfg.Debounce,
		verbose:  cfg.Verbose,
		onBatch:  cfg.OnBatch,
	}
	if s.resource == "" {
		s.resource = DefaultResource
	}
	if s.debounce <= 0 {
		s.debounce = DefaultDebounce
	}

	return s
}

// Enqueue appends an install request to the pending queue and (re)arms the
// debounce timer. It never blocks; the returned Ticket settles once the
// batch owning the request completes. Duplicate names may coexist in the
// queue and are collapsed at flush time.
func (s *Scheduler) Enqueue(name string, class Classification) *Ticket {
	ticket := &Ticket{id: ulid.Make(), done: make(chan struct{})}
	req := &request{id: ticket.id, name: name, class: class, ticket: ticket}

	s.mu.Lock()
	s.pending = append(s.pending, req)
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.onTimer)
	} else {
		// Trailing edge only: a burst of enqueues keeps pushing the single
		// timer back instead of scheduling one fire per call.
		s.timer.Reset(s.debounce)
	}
	s.mu.Unlock()

	if s.verbose {
		log.Printf("[scheduler] Queued %s (%s) as request %s", name, class, ticket.id)
	}

	return ticket
}

// Pending returns the number of requests currently waiting for a flush.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) onTimer() {
	s.mu.Lock()
	s.timer = nil
	if s.draining || len(s.pending) == 0 {
		// An active drain loop will pick up anything still pending.
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
}

// drain services pending groups until the queue is empty. One group is
// selected per pass: the classification of the first-queued request, so
// groups are serviced FIFO by arrival. Remaining groups are serviced
// immediately rather than through the debounce timer. Only one drain loop
// runs at a time per scheduler.
func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}

		class := s.pending[0].class
		group := make([]*request, 0, len(s.pending))
		rest := s.pending[:0]
		for _, req := range s.pending {
			if req.class == class {
				group = append(group, req)
			} else {
				rest = append(rest, req)
			}
		}
		s.pending = rest
		s.mu.Unlock()

		s.service(class, group)
	}
}

// service runs the external install command for one group and settles every
// member ticket with the shared outcome.
func (s *Scheduler) service(class Classification, group []*request) {
	batch := Batch{
		ID:             ulid.Make().String(),
		Tool:           s.runner.Name(),
		Classification: class,
		Names:          uniqueNames(group),
		Started:        time.Now(),
	}

	err := s.install(class, batch.Names)
	batch.Finished = time.Now()

	if err != nil {
		ierr := &InstallError{Names: batch.Names, Err: err}
		batch.Err = ierr
		log.Printf("[scheduler] Batch %s failed (%d packages, %s): %v",
			batch.ID, len(batch.Names), class, err)
		for _, req := range group {
			req.ticket.settle(ierr)
		}
	} else {
		log.Printf("[scheduler] Batch %s installed %d package(s) via %s (%s)",
			batch.ID, len(batch.Names), s.runner.Name(), class)
		for _, req := range group {
			req.ticket.settle(nil)
		}
	}

	if s.onBatch != nil {
		s.onBatch(batch)
	}
}

// install invokes the external tool while holding the manifest lock. The
// lock is released on every exit path before the outcome is fanned out.
func (s *Scheduler) install(class Classification, names []string) error {
	release, err := s.locks.Acquire(context.Background(), s.resource)
	if err != nil {
		return fmt.Errorf("failed to acquire %s lock: %w", s.resource, err)
	}
	defer release()

	return s.runner.Install(context.Background(), names, class == Development)
}

// uniqueNames collapses duplicate names in a group while preserving the
// order of first arrival.
func uniqueNames(group []*request) []string {
	seen := make(map[string]bool, len(group))
	names := make([]string, 0, len(group))
	for _, req := range group {
		if !seen[req.name] {
			seen[req.name] = true
			names = append(names, req.name)
		}
	}
	return names
}
