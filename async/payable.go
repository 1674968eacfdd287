package async

import (
	"context"
	"sync"
	"time"

	"github.com/verichains/ethproxy/values"
)

// SubmitFunc submits a prepared payable call with the given value.
type SubmitFunc[T any] func(ctx context.Context, value values.EthValue) (*Pending[T], error)

// PendingPayable is a payable call that has been prepared but not sent. It
// is submitted by the first WithValue and never implicitly.
type PendingPayable[T any] struct {
	submit SubmitFunc[T]

	lock      sync.Mutex
	submitted bool
	pending   *Pending[T]
	err       error
}

func NewPendingPayable[T any](submit SubmitFunc[T]) *PendingPayable[T] {
	return &PendingPayable[T]{submit: submit}
}

// WithValue submits the call carrying value. Only the first call submits;
// later calls fail with ErrAlreadySubmitted, even if the first submission
// failed.
func (p *PendingPayable[T]) WithValue(ctx context.Context, value values.EthValue) (*Pending[T], error) {
	p.lock.Lock()
	if p.submitted {
		p.lock.Unlock()
		return nil, ErrAlreadySubmitted
	}
	p.submitted = true
	p.lock.Unlock()

	pending, err := p.submit(ctx, value)

	p.lock.Lock()
	p.pending, p.err = pending, err
	p.lock.Unlock()
	return pending, err
}

// Submitted reports whether WithValue has been called.
func (p *PendingPayable[T]) Submitted() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.submitted
}

// Pending returns the handle of the submitted transaction. It fails with
// ErrIllegalState before WithValue and with the submission error if the
// submission failed.
func (p *PendingPayable[T]) Pending() (*Pending[T], error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch {
	case p.err != nil:
		return nil, p.err
	case p.pending == nil:
		return nil, ErrIllegalState
	}
	return p.pending, nil
}

// Await waits for the submitted transaction.
func (p *PendingPayable[T]) Await(timeout time.Duration) (T, error) {
	pending, err := p.Pending()
	if err != nil {
		var zero T
		return zero, err
	}
	return pending.Await(timeout)
}

// MapPayable derives a payable whose eventual value is fn applied to the
// value of p. Submitting either one submits p.
func MapPayable[T, U any](p *PendingPayable[T], fn func(T) (U, error)) *PendingPayable[U] {
	return NewPendingPayable(func(ctx context.Context, value values.EthValue) (*Pending[U], error) {
		pending, err := p.WithValue(ctx, value)
		if err != nil {
			return nil, err
		}
		return Map(pending, fn), nil
	})
}
