package async

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/verichains/ethproxy/blockchain"
)

// Pending is the eventual outcome of a submitted transaction. It is resolved
// exactly once by its producer and may be read by any number of consumers.
// Dropping a Pending has no effect on the transaction.
type Pending[T any] struct {
	tx   *blockchain.TransactionHandle
	done chan struct{}

	lock  sync.Mutex
	value T
	err   error
	thens []func(T, error)
}

// NewPending returns an unresolved handle for tx together with the function
// that resolves it. Only the first call to resolve has an effect.
func NewPending[T any](tx *blockchain.TransactionHandle) (*Pending[T], func(T, error)) {
	p := &Pending[T]{tx: tx, done: make(chan struct{})}
	var once sync.Once
	resolve := func(value T, err error) {
		once.Do(func() { p.resolve(value, err) })
	}
	return p, resolve
}

// Resolved returns a handle that already holds value.
func Resolved[T any](tx *blockchain.TransactionHandle, value T) *Pending[T] {
	p, resolve := NewPending[T](tx)
	resolve(value, nil)
	return p
}

// Failed returns a handle that already holds err.
func Failed[T any](tx *blockchain.TransactionHandle, err error) *Pending[T] {
	p, resolve := NewPending[T](tx)
	var zero T
	resolve(zero, err)
	return p
}

func (p *Pending[T]) resolve(value T, err error) {
	p.lock.Lock()
	p.value, p.err = value, err
	thens := p.thens
	p.thens = nil
	close(p.done)
	p.lock.Unlock()

	for _, fn := range thens {
		fn(value, err)
	}
}

// Transaction returns the handle of the underlying transaction.
func (p *Pending[T]) Transaction() *blockchain.TransactionHandle {
	return p.tx
}

// Done is closed once the outcome is known.
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// IsDone reports whether the outcome is known, without blocking.
func (p *Pending[T]) IsDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking, or ErrNotDone.
func (p *Pending[T]) Result() (T, error) {
	if !p.IsDone() {
		var zero T
		return zero, ErrNotDone
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.value, p.err
}

// Await blocks for at most timeout. A non-positive timeout only polls. On
// expiry a TransactionTimeoutError is returned and the handle stays usable.
func (p *Pending[T]) Await(timeout time.Duration) (T, error) {
	if timeout <= 0 {
		if p.IsDone() {
			return p.Result()
		}
		var zero T
		return zero, p.timeoutError(timeout)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.Result()
	case <-timer.C:
		var zero T
		return zero, p.timeoutError(timeout)
	}
}

// AwaitContext blocks until the outcome is known or ctx is done.
func (p *Pending[T]) AwaitContext(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Pending[T]) timeoutError(timeout time.Duration) error {
	var hash common.Hash
	if p.tx != nil {
		hash = p.tx.Hash
	}
	return &blockchain.TransactionTimeoutError{Hash: hash, Timeout: timeout}
}

// Then registers fn to run with the outcome. If the outcome is already known
// fn runs immediately on the calling goroutine, otherwise on the goroutine
// that resolves the handle, which for backend handles is a receipt watcher.
func (p *Pending[T]) Then(fn func(T, error)) {
	p.lock.Lock()
	if !p.IsDone() {
		p.thens = append(p.thens, fn)
		p.lock.Unlock()
		return
	}
	value, err := p.value, p.err
	p.lock.Unlock()
	fn(value, err)
}

// Map derives a handle whose value is fn applied to the value of p. Errors
// pass through untouched.
func Map[T, U any](p *Pending[T], fn func(T) (U, error)) *Pending[U] {
	out, resolve := NewPending[U](p.tx)
	p.Then(func(value T, err error) {
		if err != nil {
			var zero U
			resolve(zero, err)
			return
		}
		resolve(fn(value))
	})
	return out
}
