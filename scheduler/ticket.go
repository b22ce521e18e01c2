package scheduler

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Ticket is the completion handle returned by Enqueue. It settles exactly
// once when the batch owning the request finishes: a nil error means the
// install succeeded, a non-nil error is the batch's *InstallError.
type Ticket struct {
	id   ulid.ULID
	done chan struct{}
	err  error
}

// ID returns the request identifier.
func (t *Ticket) ID() string {
	return t.id.String()
}

// Wait blocks until the ticket settles or ctx is done. Cancelling ctx does
// not withdraw the request; the batch still runs and the ticket still
// settles.
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed once the ticket has settled.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Err returns the settled outcome. It must only be called after Done is
// closed.
func (t *Ticket) Err() error {
	return t.err
}

// settle records the outcome and releases all waiters. The drain loop is
// the only caller and settles each ticket exactly once.
func (t *Ticket) settle(err error) {
	t.err = err
	close(t.done)
}
