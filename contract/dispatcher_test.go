package contract

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verichains/ethproxy/abiutils"
	"github.com/verichains/ethproxy/async"
	"github.com/verichains/ethproxy/backends/simulated"
	"github.com/verichains/ethproxy/blockchain"
	"github.com/verichains/ethproxy/convert"
	"github.com/verichains/ethproxy/values"
)

const myContract2ABI = `[
	{"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"myMethod","inputs":[{"name":"value","type":"string"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"myMethod2","inputs":[{"name":"value","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"myMethod3","inputs":[{"name":"value","type":"string"}],"outputs":[],"stateMutability":"payable"},
	{"type":"function","name":"getEnumValue","inputs":[],"outputs":[{"name":"","type":"uint8"}],"stateMutability":"view"},
	{"type":"function","name":"getI1","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"getI2","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"getT","inputs":[],"outputs":[{"name":"","type":"bool"}],"stateMutability":"view"},
	{"type":"function","name":"getM","inputs":[],"outputs":[{"name":"val1","type":"bool"},{"name":"val2","type":"string"},{"name":"val3","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"getArray","inputs":[],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
	{"type":"function","name":"getSet","inputs":[],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
	{"type":"function","name":"throwMe","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"failView","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"getOwner","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getInitTime","inputs":[{"name":"date","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"pure"},
	{"type":"function","name":"getAccountAddress","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"pure"}
]`

const myContract2Bin = "0x608060405234801561001057600080fd5b50"

type enumTest int

const (
	val1 enumTest = iota
	val2
	val3
)

type myReturnType struct {
	Val1 bool
	Val2 string
	Val3 int
}

var mainAccount = values.MustAccountFromSeed("cow")

func myContract2Impl(meta abi.ABI) simulated.Factory {
	return func(ctx *simulated.CallContext, _ []any) (*simulated.Contract, error) {
		ctx.Store("owner", ctx.Sender.Common())
		c := simulated.NewContract(meta)
		c.Handle("myMethod", func(ctx *simulated.CallContext, args []any) ([]any, error) {
			ctx.Store("i1", args[0].(string))
			ctx.Store("t", true)
			return []any{big.NewInt(12)}, nil
		})
		c.Handle("myMethod2", func(ctx *simulated.CallContext, args []any) ([]any, error) {
			ctx.Store("i2", args[0].(string))
			return nil, nil
		})
		c.Handle("myMethod3", func(ctx *simulated.CallContext, args []any) ([]any, error) {
			ctx.Store("i2", args[0].(string))
			return nil, nil
		})
		c.Handle("getEnumValue", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return []any{uint8(val2)}, nil
		})
		c.Handle("getI1", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return []any{simulated.LoadOr(ctx, "i1", "")}, nil
		})
		c.Handle("getI2", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return []any{simulated.LoadOr(ctx, "i2", "")}, nil
		})
		c.Handle("getT", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return []any{simulated.LoadOr(ctx, "t", false)}, nil
		})
		c.Handle("getM", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return []any{true, "hello", big.NewInt(34)}, nil
		})
		sequence := func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			out := make([]*big.Int, 10)
			for i := range out {
				out[i] = big.NewInt(int64(i))
			}
			return []any{out}, nil
		}
		c.Handle("getArray", sequence)
		c.Handle("getSet", sequence)
		c.Handle("throwMe", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return nil, simulated.Revert("thrown")
		})
		c.Handle("failView", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return nil, simulated.Revert("view failed")
		})
		c.Handle("getOwner", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return []any{simulated.LoadOr(ctx, "owner", common.Address{})}, nil
		})
		c.Handle("getInitTime", func(ctx *simulated.CallContext, args []any) ([]any, error) {
			return []any{args[0]}, nil
		})
		c.Handle("getAccountAddress", func(ctx *simulated.CallContext, args []any) ([]any, error) {
			return []any{args[0]}, nil
		})
		return c, nil
	}
}

func myContract2Descriptor() *Descriptor {
	return MustDescriptor("myContract2",
		PendingMethod[int]("myMethod", Param[string]()),
		PendingMethod[convert.Void]("myMethod2", Param[string]()),
		PayableMethod[convert.Void]("myMethod3", Param[string]()),
		ImmediateMethod[enumTest]("getEnumValue"),
		ImmediateMethod[string]("getI1"),
		ImmediateMethod[string]("getI2"),
		ImmediateMethod[bool]("getT"),
		ImmediateMethod[myReturnType]("getM"),
		ImmediateMethod[[]int]("getArray"),
		ImmediateMethod[mapset.Set[int]]("getSet"),
		PendingMethod[convert.Void]("throwMe"),
		ImmediateMethod[*big.Int]("failView"),
		AutoMethod[values.EthAddress]("getOwner"),
		ImmediateMethod[time.Time]("getInitTime", Param[time.Time]()),
		ImmediateMethod[values.EthAddress]("getAccountAddress", Param[*values.EthAccount]()),
	)
}

func newRegistry() *convert.Registry {
	r := convert.NewDefaultRegistry()
	convert.RegisterEnum(r, val1, val2, val3)
	convert.RegisterRecord(r, convert.RecordSpec[myReturnType]{
		Fields: []convert.Field{
			convert.FieldOf[bool]("val1"),
			convert.FieldOf[string]("val2"),
			convert.FieldOf[int]("val3"),
		},
		New: func(vals []any) (myReturnType, error) {
			return myReturnType{Val1: vals[0].(bool), Val2: vals[1].(string), Val3: vals[2].(int)}, nil
		},
		Values: func(rec myReturnType) []any {
			return []any{rec.Val1, rec.Val2, rec.Val3}
		},
	})
	return r
}

// countingBackend records how often the chain was contacted.
type countingBackend struct {
	blockchain.Proxy
	calls atomic.Int32
	sends atomic.Int32
}

func (c *countingBackend) Call(ctx context.Context, msg *blockchain.CallMsg) ([]byte, error) {
	c.calls.Add(1)
	return c.Proxy.Call(ctx, msg)
}

func (c *countingBackend) SendTransaction(ctx context.Context, msg *blockchain.CallMsg, from *values.EthAccount) (*blockchain.TransactionHandle, error) {
	c.sends.Add(1)
	return c.Proxy.SendTransaction(ctx, msg, from)
}

type fixture struct {
	sim        *simulated.Backend
	backend    *countingBackend
	dispatcher *Dispatcher
	compiled   *abiutils.CompiledContract
	address    values.EthAddress
}

func newFixture(t *testing.T) *fixture {
	sim, err := simulated.NewBackend(simulated.DefaultConfig, map[values.EthAddress]values.EthValue{
		mainAccount.Address(): values.Ether(10_000_000),
	})
	require.NoError(t, err)
	t.Cleanup(func() { sim.Close() })

	compiled, err := abiutils.NewCompiledContract("myContract2", []byte(myContract2ABI), myContract2Bin)
	require.NoError(t, err)
	bin := common.FromHex(myContract2Bin)
	sim.RegisterCode(bin, compiled.ABI, myContract2Impl(compiled.ABI))

	backend := &countingBackend{Proxy: sim}
	d := NewDispatcher(backend, newRegistry())
	pending, err := d.Deploy(context.Background(), compiled, mainAccount)
	require.NoError(t, err)
	address, err := pending.Await(5 * time.Second)
	require.NoError(t, err)
	require.False(t, address.IsEmpty())

	return &fixture{sim: sim, backend: backend, dispatcher: d, compiled: compiled, address: address}
}

func (f *fixture) proxy(t *testing.T) *Proxy {
	p, err := f.dispatcher.CreateProxy(myContract2Descriptor(), f.compiled.ABI, f.address, mainAccount)
	require.NoError(t, err)
	return p
}

func TestMyContract2Scenario(t *testing.T) {
	f := newFixture(t)
	p := f.proxy(t)
	ctx := context.Background()

	i1, err := Call[string](ctx, p, "getI1")
	require.NoError(t, err)
	assert.Equal(t, "", i1)

	future, err := Send[int](ctx, p, "myMethod", "this is a test")
	require.NoError(t, err)
	result, err := future.Await(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 12, result)

	i1, err = Call[string](ctx, p, "getI1")
	require.NoError(t, err)
	assert.Equal(t, "this is a test", i1)
	flag, err := Call[bool](ctx, p, "getT")
	require.NoError(t, err)
	assert.True(t, flag)

	expected := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	array, err := Call[[]int](ctx, p, "getArray")
	require.NoError(t, err)
	assert.Equal(t, expected, array)

	set, err := Call[mapset.Set[int]](ctx, p, "getSet")
	require.NoError(t, err)
	assert.Equal(t, 10, set.Cardinality())
	assert.True(t, set.Contains(expected...))

	m, err := Call[myReturnType](ctx, p, "getM")
	require.NoError(t, err)
	assert.Equal(t, myReturnType{Val1: true, Val2: "hello", Val3: 34}, m)

	async2, err := Send[convert.Void](ctx, p, "myMethod2", "async call")
	require.NoError(t, err)
	_, err = async2.Await(5 * time.Second)
	require.NoError(t, err)

	payable, err := SendPayable[convert.Void](ctx, p, "myMethod3", "async call")
	require.NoError(t, err)
	pending, err := payable.WithValue(ctx, values.Ether(150))
	require.NoError(t, err)
	_, err = pending.Await(5 * time.Second)
	require.NoError(t, err)

	balance, err := f.sim.GetBalance(ctx, f.address)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(values.Ether(150)), "contract balance %s", balance.EtherString())

	owner, err := Call[values.EthAddress](ctx, p, "getOwner")
	require.NoError(t, err)
	assert.Equal(t, mainAccount.Address(), owner)

	i2, err := Call[string](ctx, p, "getI2")
	require.NoError(t, err)
	assert.Equal(t, "async call", i2)

	enum, err := Call[enumTest](ctx, p, "getEnumValue")
	require.NoError(t, err)
	assert.Equal(t, val2, enum)

	date := time.Unix(150, 0).UTC()
	initTime, err := Call[time.Time](ctx, p, "getInitTime", date)
	require.NoError(t, err)
	assert.True(t, date.Equal(initTime))

	accountAddr, err := Call[values.EthAddress](ctx, p, "getAccountAddress", mainAccount)
	require.NoError(t, err)
	assert.Equal(t, mainAccount.Address(), accountAddr)

	thrown, err := Send[convert.Void](ctx, p, "throwMe")
	require.NoError(t, err)
	_, err = thrown.Await(5 * time.Second)
	require.Error(t, err)
	assert.True(t, blockchain.IsContractCallError(err))
}

func TestImmediateRevertIsDirectError(t *testing.T) {
	f := newFixture(t)
	p := f.proxy(t)

	_, err := p.Invoke(context.Background(), "failView")
	require.Error(t, err)
	var callErr *blockchain.ContractCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "view failed", callErr.Reason)
}

func TestPayableRevertSurfacesThroughHandle(t *testing.T) {
	f := newFixture(t)
	meta := f.compiled.ABI
	desc := MustDescriptor("thrower", PayableMethod[convert.Void]("throwMe"))
	p, err := f.dispatcher.CreateProxy(desc, meta, f.address, mainAccount)
	require.NoError(t, err)

	payable, err := SendPayable[convert.Void](context.Background(), p, "throwMe")
	require.NoError(t, err)
	// throwMe is not payable, so a zero value is the only one accepted
	pending, err := payable.WithValue(context.Background(), values.Zero)
	require.NoError(t, err)
	_, err = pending.Await(5 * time.Second)
	assert.True(t, blockchain.IsContractCallError(err))
}

func TestUnsupportedArgumentHasNoSideEffect(t *testing.T) {
	f := newFixture(t)
	desc := MustDescriptor("myContract2", PendingMethod[int]("myMethod", Param[any]()))
	p, err := f.dispatcher.CreateProxy(desc, f.compiled.ABI, f.address, mainAccount)
	require.NoError(t, err)

	calls, sends := f.backend.calls.Load(), f.backend.sends.Load()
	_, err = p.Invoke(context.Background(), "myMethod", make(chan int))
	var unsupported *convert.UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, convert.Input, unsupported.Direction)
	assert.Equal(t, calls, f.backend.calls.Load())
	assert.Equal(t, sends, f.backend.sends.Load())

	nonce, err := f.sim.GetNonce(context.Background(), mainAccount.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestCreateProxyRejectsUnconvertibleTypes(t *testing.T) {
	f := newFixture(t)
	type opaque struct{ N int }
	sends := f.backend.sends.Load()

	_, err := f.dispatcher.CreateProxy(MustDescriptor("x", PendingMethod[opaque]("myMethod", Param[string]())), f.compiled.ABI, f.address, mainAccount)
	var unsupported *convert.UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, convert.Output, unsupported.Direction)
	assert.Equal(t, convert.TypeOf[opaque](), unsupported.Type)

	_, err = f.dispatcher.CreateProxy(MustDescriptor("x", PendingMethod[int]("myMethod", Param[chan int]())), f.compiled.ABI, f.address, mainAccount)
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, convert.Input, unsupported.Direction)

	assert.Equal(t, sends, f.backend.sends.Load())
	nonce, err := f.sim.GetNonce(context.Background(), mainAccount.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), nonce)
}

func TestPendingPayableSubmitsOnlyOnce(t *testing.T) {
	f := newFixture(t)
	p := f.proxy(t)
	ctx := context.Background()
	sends := f.backend.sends.Load()

	payable, err := SendPayable[convert.Void](ctx, p, "myMethod3", "value")
	require.NoError(t, err)
	assert.Equal(t, sends, f.backend.sends.Load())
	assert.False(t, payable.Submitted())
	_, err = payable.Pending()
	assert.ErrorIs(t, err, async.ErrIllegalState)

	pending, err := payable.WithValue(ctx, values.Ether(1))
	require.NoError(t, err)
	_, err = payable.WithValue(ctx, values.Ether(2))
	assert.ErrorIs(t, err, async.ErrAlreadySubmitted)
	assert.Equal(t, sends+1, f.backend.sends.Load())

	_, err = pending.Await(5 * time.Second)
	require.NoError(t, err)
	balance, err := f.sim.GetBalance(ctx, f.address)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(values.Ether(1)))
}

func TestCreateProxyValidation(t *testing.T) {
	f := newFixture(t)
	meta := f.compiled.ABI

	_, err := f.dispatcher.CreateProxy(MustDescriptor("x", ImmediateMethod[string]("nope")), meta, f.address, mainAccount)
	assert.ErrorIs(t, err, ErrMethodNotInABI)

	_, err = f.dispatcher.CreateProxy(MustDescriptor("x", ImmediateMethod[string]("getI1", Param[int]())), meta, f.address, mainAccount)
	assert.ErrorIs(t, err, ErrArgumentCount)

	_, err = f.dispatcher.CreateProxy(MustDescriptor("x", PendingMethod[int]("myMethod2", Param[string]())), meta, f.address, mainAccount)
	assert.ErrorIs(t, err, ErrReturnTypeMismatch)

	_, err = NewDescriptor("x", ImmediateMethod[string]("getI1"), ImmediateMethod[string]("getI1"))
	assert.ErrorIs(t, err, ErrDuplicateMethod)
}

func TestRegistrySealedByCreateProxy(t *testing.T) {
	f := newFixture(t)
	registry := f.dispatcher.Registry()
	assert.False(t, registry.Sealed())
	f.proxy(t)
	assert.True(t, registry.Sealed())
	assert.PanicsWithValue(t, convert.ErrRegistrySealed, func() {
		convert.RegisterInputOf(registry, func(v struct{}) (any, error) { return nil, nil })
	})
}

func TestInvokeChecks(t *testing.T) {
	f := newFixture(t)
	p := f.proxy(t)
	ctx := context.Background()

	_, err := p.Invoke(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownMethod)
	_, err = p.Invoke(ctx, "myMethod")
	assert.ErrorIs(t, err, ErrArgumentCount)
	_, err = p.Invoke(ctx, "myMethod", 42)
	assert.ErrorIs(t, err, ErrArgumentType)

	_, err = Call[string](ctx, p, "myMethod", "x")
	assert.ErrorIs(t, err, ErrKindMismatch)
	_, err = Call[int](ctx, p, "getI1")
	assert.ErrorIs(t, err, ErrReturnTypeMismatch)

	v, err := Call[any](ctx, p, "getI1")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestResolveKinds(t *testing.T) {
	f := newFixture(t)
	desc := DescriptorFromABI("myContract2", f.compiled.ABI)
	p, err := f.dispatcher.CreateProxy(desc, f.compiled.ABI, f.address, mainAccount)
	require.NoError(t, err)

	kinds := map[string]ReturnKind{
		"getI1":     Immediate,
		"getOwner":  Immediate,
		"myMethod":  Pending,
		"myMethod3": PendingPayable,
		"throwMe":   Pending,
	}
	for method, want := range kinds {
		got, ok := p.Kind(method)
		require.True(t, ok, method)
		assert.Equal(t, want, got, method)
	}

	owner, err := p.Invoke(context.Background(), "getOwner")
	require.NoError(t, err)
	assert.Equal(t, mainAccount.Address(), owner)

	array, err := p.Invoke(context.Background(), "getArray")
	require.NoError(t, err)
	assert.Len(t, array, 10)
}

func TestExplicitKindWins(t *testing.T) {
	f := newFixture(t)
	desc := MustDescriptor("x", PendingMethod[string]("getI1"))
	p, err := f.dispatcher.CreateProxy(desc, f.compiled.ABI, f.address, mainAccount)
	require.NoError(t, err)
	kind, _ := p.Kind("getI1")
	assert.Equal(t, Pending, kind)
}

func TestConcurrentInvocations(t *testing.T) {
	f := newFixture(t)
	p := f.proxy(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := Call[myReturnType](ctx, p, "getM")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			pending, err := Send[convert.Void](ctx, p, "myMethod2", "concurrent")
			if err == nil {
				_, err = pending.Await(5 * time.Second)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestDeployRequiresBytecode(t *testing.T) {
	f := newFixture(t)
	noBin, err := abiutils.NewCompiledContract("iface", []byte(myContract2ABI), "")
	require.NoError(t, err)
	_, err = f.dispatcher.Deploy(context.Background(), noBin, mainAccount)
	assert.True(t, errors.Is(err, ErrNotDeployable))
}
