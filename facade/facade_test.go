package facade

import (
	"context"
	"math/big"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verichains/ethproxy/abiutils"
	"github.com/verichains/ethproxy/backends/simulated"
	"github.com/verichains/ethproxy/contract"
	"github.com/verichains/ethproxy/convert"
	"github.com/verichains/ethproxy/values"
)

const storageABI = `[
	{"type":"constructor","inputs":[{"name":"initial","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"get","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"set","inputs":[{"name":"v","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"fund","inputs":[],"outputs":[],"stateMutability":"payable"}
]`

const storageBin = "0x6080604052348015600f57600080fd"

var owner = values.MustAccountFromSeed("cow")

// celsius is an application type with its own converters.
type celsius float64

func storageImpl(t *testing.T, chain *simulated.Backend, compiled *abiutils.CompiledContract) {
	chain.RegisterCode(common.FromHex(storageBin), compiled.ABI, func(ctx *simulated.CallContext, args []any) (*simulated.Contract, error) {
		ctx.Store("v", args[0].(*big.Int))
		c := simulated.NewContract(compiled.ABI)
		c.Handle("get", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return []any{simulated.LoadOr(ctx, "v", new(big.Int))}, nil
		})
		c.Handle("set", func(ctx *simulated.CallContext, args []any) ([]any, error) {
			ctx.Store("v", args[0].(*big.Int))
			return nil, nil
		})
		c.Handle("fund", func(ctx *simulated.CallContext, _ []any) ([]any, error) {
			return nil, nil
		})
		return c, nil
	})
}

func newTestFacade(t *testing.T) (*Facade, *simulated.Backend, *abiutils.CompiledContract) {
	f, chain, err := ForTest(NewTestConfig().Balance(owner, values.Ether(1000)))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	compiled, err := abiutils.NewCompiledContract("Storage", []byte(storageABI), storageBin)
	require.NoError(t, err)
	storageImpl(t, chain, compiled)
	return f, chain, compiled
}

func TestPublishAndInvoke(t *testing.T) {
	f, _, compiled := newTestFacade(t)
	ctx := context.Background()
	require.NoError(t, f.SaveContract(compiled))

	addr, err := f.PublishAndWait(ctx, compiled, owner, big.NewInt(7))
	require.NoError(t, err)

	bound, err := f.ContractAt(addr)
	require.NoError(t, err)
	assert.Equal(t, "Storage", bound.Name)

	proxy, err := f.CreateContractProxy(nil, compiled, addr, owner)
	require.NoError(t, err)
	v, err := contract.Call[*big.Int](ctx, proxy, "get")
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int64())

	pending, err := contract.Send[convert.Void](ctx, proxy, "set", big.NewInt(99))
	require.NoError(t, err)
	_, err = pending.Await(5 * time.Second)
	require.NoError(t, err)
	v, err = contract.Call[*big.Int](ctx, proxy, "get")
	require.NoError(t, err)
	assert.Equal(t, int64(99), v.Int64())

	payable, err := contract.SendPayable[convert.Void](ctx, proxy, "fund")
	require.NoError(t, err)
	funded, err := payable.WithValue(ctx, values.Ether(150))
	require.NoError(t, err)
	_, err = funded.Await(5 * time.Second)
	require.NoError(t, err)

	balance, err := f.GetBalance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(values.Ether(150)))

	nonce, err := f.GetNonce(ctx, owner.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), nonce)
}

func TestCustomConverters(t *testing.T) {
	f, _, compiled := newTestFacade(t)
	ctx := context.Background()

	require.NoError(t, f.AddInputConverter(convert.TypeOf[celsius](), func(_ *convert.Registry, v reflect.Value) (any, error) {
		return big.NewInt(int64(v.Float() * 100)), nil
	}))
	require.NoError(t, f.AddOutputConverter(convert.TypeOf[celsius](), func(_ *convert.Registry, wire any, _ reflect.Type) (reflect.Value, error) {
		return reflect.ValueOf(celsius(float64(wire.(*big.Int).Int64()) / 100)), nil
	}))

	addr, err := f.PublishAndWait(ctx, compiled, owner, celsius(21.5))
	require.NoError(t, err)

	desc := contract.MustDescriptor("Thermometer",
		contract.ImmediateMethod[celsius]("get"),
		contract.PendingMethod[convert.Void]("set", contract.Param[celsius]()),
	)
	proxy, err := f.CreateContractProxy(desc, compiled, addr, owner)
	require.NoError(t, err)

	temp, err := contract.Call[celsius](ctx, proxy, "get")
	require.NoError(t, err)
	assert.Equal(t, celsius(21.5), temp)

	err = f.AddInputConverter(convert.TypeOf[float32](), nil)
	assert.ErrorIs(t, err, convert.ErrRegistrySealed)
}

func TestContractStorePersists(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig
	cfg.DataDir = filepath.Join(dir, "contracts")

	chain, err := simulated.NewBackend(simulated.DefaultConfig, nil)
	require.NoError(t, err)
	defer chain.Close()

	compiled, err := abiutils.NewCompiledContract("Storage", []byte(storageABI), storageBin)
	require.NoError(t, err)

	f, err := New(chain, cfg)
	require.NoError(t, err)
	require.NoError(t, f.SaveContract(compiled))
	require.NoError(t, f.Close())
	assert.NoError(t, f.Close())
	_, err = f.LoadContract("Storage")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = f.GetBalance(context.Background(), values.EmptyAddress)
	assert.ErrorIs(t, err, ErrClosed)

	f, err = New(chain, cfg)
	require.NoError(t, err)
	defer f.Close()
	loaded, err := f.LoadContract("Storage")
	require.NoError(t, err)
	assert.Equal(t, compiled.MethodNames(), loaded.MethodNames())
	assert.Equal(t, compiled.Bin, loaded.Bin)

	_, err = f.LoadContract("Missing")
	assert.ErrorIs(t, err, abiutils.ErrUnknownContract)
}

func TestLoadConfig(t *testing.T) {
	cfg := DefaultConfig
	require.NoError(t, LoadConfig("testdata/config.toml", &cfg))
	require.NoError(t, cfg.Sanitize())

	assert.Equal(t, 32, cfg.DatabaseCache)
	assert.Equal(t, 30*time.Second, cfg.AwaitTimeout)
	assert.Equal(t, uint64(16123), cfg.RPC.ChainID)
	assert.Equal(t, uint64(3000000), cfg.RPC.GasLimit)
	assert.Equal(t, time.Minute, cfg.RPC.ReceiptTimeout)
	assert.Equal(t, 4, cfg.RPC.WatcherPoolSize)
	assert.Equal(t, 64, cfg.Simulated.MaxPending)

	err := LoadConfig("testdata/unknown.toml", &cfg)
	assert.ErrorContains(t, err, "Verbosity")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig
	cfg.RPCUrl = "http://localhost:8545"
	require.NoError(t, SaveConfig(file, &cfg))

	loaded := DefaultConfig
	require.NoError(t, LoadConfig(file, &loaded))
	assert.Equal(t, cfg, loaded)
}

func TestSanitize(t *testing.T) {
	cfg := Config{AwaitTimeout: -1, DatabaseCache: -5}
	require.NoError(t, cfg.Sanitize())
	assert.Equal(t, DefaultConfig.AwaitTimeout, cfg.AwaitTimeout)
	assert.Equal(t, DefaultConfig.DatabaseCache, cfg.DatabaseCache)
	assert.Equal(t, DefaultConfig.RPC.ReceiptTimeout, cfg.RPC.ReceiptTimeout)
	assert.Equal(t, DefaultConfig.Simulated.ChainID, cfg.Simulated.ChainID)
}
