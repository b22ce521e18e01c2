package locker

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// retryDelay is the polling interval while waiting on the file lock.
const retryDelay = 50 * time.Millisecond

// Registry hands out exclusive scoped locks keyed by resource name.
// Each lock combines an in-process gate with a file lock next to the
// resource, so concurrent flushes inside this process and installs from
// other processes both serialize on the same manifest.
type Registry struct {
	dir   string
	mu    sync.Mutex
	gates map[string]chan struct{}
}

// NewRegistry creates a lock registry for resources inside dir.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:   dir,
		gates: make(map[string]chan struct{}),
	}
}

// Acquire blocks until the named resource lock is held, or ctx is done.
// The returned release func must be called on every exit path; calling it
// more than once is a no-op.
func (r *Registry) Acquire(ctx context.Context, resource string) (func(), error) {
	gate := r.gate(resource)

	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	fl := flock.New(filepath.Join(r.dir, "."+resource+".lock"))
	locked, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		<-gate
		return nil, fmt.Errorf("failed to lock %s: %w", resource, err)
	}
	if !locked {
		<-gate
		return nil, fmt.Errorf("failed to lock %s", resource)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := fl.Unlock(); err != nil {
				log.Printf("[locker] Failed to unlock %s: %v", resource, err)
			}
			<-gate
		})
	}

	return release, nil
}

func (r *Registry) gate(resource string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	gate, ok := r.gates[resource]
	if !ok {
		gate = make(chan struct{}, 1)
		r.gates[resource] = gate
	}

	return gate
}
