//
// Created on 2023/2/21 by khanghh
// Project: github.com/verichains/ethproxy
// Copyright (c) 2023 Verichains Lab
//

package facade

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/verichains/ethproxy/abiutils"
	"github.com/verichains/ethproxy/async"
	"github.com/verichains/ethproxy/backends/ethrpc"
	"github.com/verichains/ethproxy/backends/simulated"
	"github.com/verichains/ethproxy/blockchain"
	"github.com/verichains/ethproxy/contract"
	"github.com/verichains/ethproxy/convert"
	"github.com/verichains/ethproxy/extdb"
	"github.com/verichains/ethproxy/values"
)

var ErrClosed = errors.New("facade closed")

// Facade is the single entry point of the library: it owns a backend, the
// converter registry shared by all proxies and the contract store.
type Facade struct {
	config     Config
	backend    blockchain.Proxy
	registry   *convert.Registry
	dispatcher *contract.Dispatcher
	db         ethdb.KeyValueStore

	closers  []func() error
	quitCh   chan struct{}
	quitLock sync.Mutex
}

// New builds a facade over an existing backend. The contract store is opened
// from cfg.DataDir.
func New(backend blockchain.Proxy, cfg Config) (*Facade, error) {
	if err := cfg.Sanitize(); err != nil {
		return nil, err
	}
	db, err := extdb.OpenDatabase(cfg.DataDir, cfg.DatabaseCache, cfg.DatabaseHandles, false)
	if err != nil {
		log.Error("Could not open contract store", "dir", cfg.DataDir, "error", err)
		return nil, err
	}
	registry := convert.NewDefaultRegistry()
	return &Facade{
		config:     cfg,
		backend:    backend,
		registry:   registry,
		dispatcher: contract.NewDispatcher(backend, registry),
		db:         db,
		closers:    []func() error{db.Close},
		quitCh:     make(chan struct{}),
	}, nil
}

// TestConfig describes the initial state of a simulated chain.
type TestConfig struct {
	Chain    simulated.Config
	Balances map[values.EthAddress]values.EthValue
}

func NewTestConfig() *TestConfig {
	return &TestConfig{
		Chain:    simulated.DefaultConfig,
		Balances: make(map[values.EthAddress]values.EthValue),
	}
}

// Balance funds account at genesis.
func (c *TestConfig) Balance(account *values.EthAccount, amount values.EthValue) *TestConfig {
	c.Balances[account.Address()] = amount
	return c
}

// ForTest returns a facade over a fresh simulated chain and the chain itself,
// so tests can install contract implementations.
func ForTest(cfg *TestConfig) (*Facade, *simulated.Backend, error) {
	if cfg == nil {
		cfg = NewTestConfig()
	}
	chain, err := simulated.NewBackend(cfg.Chain, cfg.Balances)
	if err != nil {
		return nil, nil, err
	}
	config := DefaultConfig
	config.Simulated = cfg.Chain
	f, err := New(chain, config)
	if err != nil {
		chain.Close()
		return nil, nil, err
	}
	f.closers = append(f.closers, chain.Close)
	log.Info("Created test facade", "chainid", cfg.Chain.ChainID, "accounts", len(cfg.Balances))
	return f, chain, nil
}

// ForRemoteNode returns a facade connected to the node at url.
func ForRemoteNode(ctx context.Context, url string, cfg Config) (*Facade, error) {
	if err := cfg.Sanitize(); err != nil {
		return nil, err
	}
	backend, err := ethrpc.Dial(ctx, url, cfg.RPC)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	f, err := New(backend, cfg)
	if err != nil {
		backend.Close()
		return nil, err
	}
	f.closers = append(f.closers, backend.Close)
	return f, nil
}

func (f *Facade) Backend() blockchain.Proxy {
	return f.backend
}

func (f *Facade) Registry() *convert.Registry {
	return f.registry
}

func (f *Facade) Database() ethdb.KeyValueStore {
	return f.db
}

// AddInputConverter registers an input converter for t. Converters can only
// be added before the first proxy is created.
func (f *Facade) AddInputConverter(t reflect.Type, fn convert.InputFunc) error {
	if f.registry.Sealed() {
		return convert.ErrRegistrySealed
	}
	f.registry.RegisterInput(t, fn)
	return nil
}

// AddOutputConverter registers an output converter for t. Converters can only
// be added before the first proxy is created.
func (f *Facade) AddOutputConverter(t reflect.Type, fn convert.OutputFunc) error {
	if f.registry.Sealed() {
		return convert.ErrRegistrySealed
	}
	f.registry.RegisterOutput(t, fn)
	return nil
}

// CreateContractProxy binds desc to the contract at address, invoked on
// behalf of account. A nil desc exposes every method of the compiled
// contract with default types.
func (f *Facade) CreateContractProxy(desc *contract.Descriptor, compiled *abiutils.CompiledContract, address values.EthAddress, account *values.EthAccount) (*contract.Proxy, error) {
	if f.closed() {
		return nil, ErrClosed
	}
	if desc == nil {
		desc = contract.DescriptorFromABI(compiled.Name, compiled.ABI)
	}
	return f.dispatcher.CreateProxy(desc, compiled.ABI, address, account)
}

// PublishContract deploys compiled from account. On success the new address
// is bound to the contract name in the store.
func (f *Facade) PublishContract(ctx context.Context, compiled *abiutils.CompiledContract, account *values.EthAccount, args ...any) (*async.Pending[values.EthAddress], error) {
	if f.closed() {
		return nil, ErrClosed
	}
	pending, err := f.dispatcher.Deploy(ctx, compiled, account, args...)
	if err != nil {
		return nil, err
	}
	return async.Map(pending, func(addr values.EthAddress) (values.EthAddress, error) {
		if extdb.HasContract(f.db, compiled.Name) {
			abiutils.BindAddress(f.db, addr.Common(), compiled.Name)
		}
		return addr, nil
	}), nil
}

// PublishAndWait deploys compiled and waits up to the configured await
// timeout for its address.
func (f *Facade) PublishAndWait(ctx context.Context, compiled *abiutils.CompiledContract, account *values.EthAccount, args ...any) (values.EthAddress, error) {
	pending, err := f.PublishContract(ctx, compiled, account, args...)
	if err != nil {
		return values.EmptyAddress, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.config.AwaitTimeout)
	defer cancel()
	return pending.AwaitContext(ctx)
}

func (f *Facade) GetBalance(ctx context.Context, addr values.EthAddress) (values.EthValue, error) {
	if f.closed() {
		return values.Zero, ErrClosed
	}
	return f.backend.GetBalance(ctx, addr)
}

func (f *Facade) GetNonce(ctx context.Context, addr values.EthAddress) (uint64, error) {
	if f.closed() {
		return 0, ErrClosed
	}
	return f.backend.GetNonce(ctx, addr)
}

// SaveContract stores the metadata of compiled under its name.
func (f *Facade) SaveContract(compiled *abiutils.CompiledContract) error {
	if f.closed() {
		return ErrClosed
	}
	return abiutils.SaveContract(f.db, compiled)
}

func (f *Facade) LoadContract(name string) (*abiutils.CompiledContract, error) {
	if f.closed() {
		return nil, ErrClosed
	}
	return abiutils.LoadContract(f.db, name)
}

// ContractAt returns the stored metadata of the contract published at addr.
func (f *Facade) ContractAt(addr values.EthAddress) (*abiutils.CompiledContract, error) {
	if f.closed() {
		return nil, ErrClosed
	}
	return abiutils.ResolveAddress(f.db, addr.Common())
}

func (f *Facade) closed() bool {
	select {
	case <-f.quitCh:
		return true
	default:
		return false
	}
}

// Close releases the store and the backend. Later calls are no-ops, while
// every other method returns ErrClosed.
func (f *Facade) Close() error {
	f.quitLock.Lock()
	defer f.quitLock.Unlock()
	if f.closed() {
		return nil
	}
	close(f.quitCh)
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		if err := f.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
