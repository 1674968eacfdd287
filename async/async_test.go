package async

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verichains/ethproxy/blockchain"
	"github.com/verichains/ethproxy/values"
)

var testTx = &blockchain.TransactionHandle{Hash: common.HexToHash("0xabc")}

func TestPendingResolve(t *testing.T) {
	p, resolve := NewPending[int](testTx)
	assert.False(t, p.IsDone())
	_, err := p.Result()
	assert.ErrorIs(t, err, ErrNotDone)
	assert.Same(t, testTx, p.Transaction())

	go func() {
		time.Sleep(10 * time.Millisecond)
		resolve(12, nil)
		resolve(13, nil)
	}()
	v, err := p.Await(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = p.Result()
	require.NoError(t, err)
	assert.Equal(t, 12, v)
}

func TestPendingAwaitTimeout(t *testing.T) {
	p, resolve := NewPending[string](testTx)

	_, err := p.Await(0)
	var timeout *blockchain.TransactionTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, testTx.Hash, timeout.Hash)

	_, err = p.Await(5 * time.Millisecond)
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, 5*time.Millisecond, timeout.Timeout)

	// a timed out handle still resolves later
	resolve("late", nil)
	v, err := p.Await(0)
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}

func TestPendingAwaitContext(t *testing.T) {
	p, _ := NewPending[int](nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.AwaitContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPendingThenAndMap(t *testing.T) {
	p, resolve := NewPending[int](testTx)

	var calls atomic.Int32
	p.Then(func(v int, err error) {
		calls.Add(1)
		assert.Equal(t, 7, v)
	})
	mapped := Map(p, func(v int) (string, error) { return strconv.Itoa(v * 2), nil })
	failing := Map(p, func(int) (bool, error) { return false, errors.New("decode") })

	resolve(7, nil)
	assert.Equal(t, int32(1), calls.Load())

	s, err := mapped.Await(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "14", s)
	assert.Same(t, testTx, mapped.Transaction())

	_, err = failing.Await(time.Second)
	assert.EqualError(t, err, "decode")

	// already resolved: runs immediately
	p.Then(func(int, error) { calls.Add(1) })
	assert.Equal(t, int32(2), calls.Load())
}

func TestFailedPropagatesThroughMap(t *testing.T) {
	callErr := &blockchain.ContractCallError{Reason: "throwMe"}
	p := Failed[int](testTx, callErr)
	mapped := Map(p, func(v int) (int, error) { return v + 1, nil })
	_, err := mapped.Await(time.Second)
	assert.True(t, blockchain.IsContractCallError(err))

	ok := Resolved(testTx, "fine")
	v, err := ok.Await(0)
	require.NoError(t, err)
	assert.Equal(t, "fine", v)
}

func TestPendingPayable(t *testing.T) {
	var submits atomic.Int32
	var sent values.EthValue
	payable := NewPendingPayable(func(ctx context.Context, value values.EthValue) (*Pending[int], error) {
		submits.Add(1)
		sent = value
		return Resolved(testTx, 1), nil
	})

	assert.False(t, payable.Submitted())
	_, err := payable.Pending()
	assert.ErrorIs(t, err, ErrIllegalState)
	_, err = payable.Await(time.Second)
	assert.ErrorIs(t, err, ErrIllegalState)
	assert.Equal(t, int32(0), submits.Load())

	p, err := payable.WithValue(context.Background(), values.Ether(150))
	require.NoError(t, err)
	assert.True(t, payable.Submitted())
	assert.Equal(t, values.Ether(150), sent)

	_, err = payable.WithValue(context.Background(), values.Ether(1))
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, int32(1), submits.Load())

	same, err := payable.Pending()
	require.NoError(t, err)
	assert.Same(t, p, same)
	v, err := payable.Await(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPendingPayableConcurrentSubmit(t *testing.T) {
	var submits atomic.Int32
	payable := NewPendingPayable(func(ctx context.Context, value values.EthValue) (*Pending[struct{}], error) {
		submits.Add(1)
		return Resolved(testTx, struct{}{}), nil
	})

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := payable.WithValue(context.Background(), values.Wei(1)); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), submits.Load())
	assert.Equal(t, int32(1), wins.Load())
}

func TestPendingPayableSubmitFailure(t *testing.T) {
	subErr := &blockchain.SubmissionError{Err: blockchain.ErrInsufficientFunds}
	payable := NewPendingPayable(func(ctx context.Context, value values.EthValue) (*Pending[int], error) {
		return nil, subErr
	})
	_, err := payable.WithValue(context.Background(), values.Ether(1))
	assert.ErrorIs(t, err, blockchain.ErrInsufficientFunds)
	_, err = payable.Pending()
	assert.ErrorIs(t, err, blockchain.ErrInsufficientFunds)
	_, err = payable.WithValue(context.Background(), values.Ether(1))
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestMapPayable(t *testing.T) {
	var submits atomic.Int32
	inner := NewPendingPayable(func(ctx context.Context, value values.EthValue) (*Pending[any], error) {
		submits.Add(1)
		return Resolved[any](testTx, int64(5)), nil
	})
	typed := MapPayable(inner, func(v any) (int64, error) { return v.(int64), nil })
	assert.Equal(t, int32(0), submits.Load())

	p, err := typed.WithValue(context.Background(), values.Ether(2))
	require.NoError(t, err)
	v, err := p.Await(time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
	assert.True(t, inner.Submitted())

	_, err = inner.WithValue(context.Background(), values.Ether(2))
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
}
