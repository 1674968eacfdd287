package simulated

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/verichains/ethproxy/abiutils"
	"github.com/verichains/ethproxy/blockchain"
	"github.com/verichains/ethproxy/values"
)

var errUnknownSelector = errors.New("function selector was not recognized")

type registeredCode struct {
	bin     []byte
	meta    abi.ABI
	factory Factory
}

type pendingTx struct {
	handle *blockchain.TransactionHandle
	msg    *blockchain.CallMsg
}

type outcome struct {
	receipt *blockchain.Receipt
	err     error
}

// Backend is an in-memory chain that executes Go implemented contracts. It
// charges no gas fees. Transactions are mined by a background miner, either
// one block per transaction or one block per configured period.
type Backend struct {
	config Config
	signer types.Signer

	lock        sync.Mutex
	balances    map[values.EthAddress]values.EthValue
	nonces      map[values.EthAddress]uint64
	contracts   map[values.EthAddress]*Contract
	codes       []registeredCode
	pending     []*pendingTx
	outcomes    map[common.Hash]*outcome
	waiters     map[common.Hash]chan struct{}
	watchers    map[common.Hash][]func(*blockchain.Receipt, error)
	blockNumber uint64
	blockTime   time.Time
	closed      bool

	mineCh chan chan struct{}
	quitCh chan struct{}
	wg     sync.WaitGroup
	log    log.Logger
}

// NewBackend starts a simulated chain with the given initial balances.
func NewBackend(cfg Config, alloc map[values.EthAddress]values.EthValue) (*Backend, error) {
	if err := cfg.Sanitize(); err != nil {
		return nil, err
	}
	b := &Backend{
		config:    cfg,
		signer:    types.NewEIP155Signer(new(big.Int).SetUint64(cfg.ChainID)),
		balances:  make(map[values.EthAddress]values.EthValue),
		nonces:    make(map[values.EthAddress]uint64),
		contracts: make(map[values.EthAddress]*Contract),
		outcomes:  make(map[common.Hash]*outcome),
		waiters:   make(map[common.Hash]chan struct{}),
		watchers:  make(map[common.Hash][]func(*blockchain.Receipt, error)),
		blockTime: time.Now().UTC().Truncate(time.Second),
		mineCh:    make(chan chan struct{}, 1),
		quitCh:    make(chan struct{}),
		log:       log.New("backend", "simulated"),
	}
	for addr, balance := range alloc {
		b.balances[addr] = balance
	}
	b.wg.Add(1)
	go b.minerLoop()
	return b, nil
}

// SetBalance overrides the balance of addr.
func (b *Backend) SetBalance(addr values.EthAddress, balance values.EthValue) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.balances[addr] = balance
}

// RegisterCode makes bin deployable. A creation transaction whose data starts
// with bin is executed by calling factory with the decoded constructor
// arguments.
func (b *Backend) RegisterCode(bin []byte, meta abi.ABI, factory Factory) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.codes = append(b.codes, registeredCode{bin: bytes.Clone(bin), meta: meta, factory: factory})
}

// Install places c at addr without a deployment transaction.
func (b *Backend) Install(addr values.EthAddress, c *Contract) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.contracts[addr] = c
}

// ContractAt returns the contract installed at addr.
func (b *Backend) ContractAt(addr values.EthAddress) (*Contract, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	c, ok := b.contracts[addr]
	return c, ok
}

func (b *Backend) BlockNumber() uint64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.blockNumber
}

// Commit mines every pending transaction right away and returns once the
// block is sealed.
func (b *Backend) Commit() {
	done := make(chan struct{})
	select {
	case b.mineCh <- done:
		select {
		case <-done:
		case <-b.quitCh:
		}
	case <-b.quitCh:
	}
}

// Close stops the miner. Transactions that were never mined resolve with
// ErrBackendClosed.
func (b *Backend) Close() error {
	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		return nil
	}
	b.closed = true
	b.lock.Unlock()

	close(b.quitCh)
	b.wg.Wait()

	b.lock.Lock()
	var callbacks []func()
	for _, tx := range b.pending {
		hash := tx.handle.Hash
		res := &outcome{err: blockchain.ErrBackendClosed}
		b.outcomes[hash] = res
		callbacks = append(callbacks, b.settle(hash, res)...)
	}
	b.pending = nil
	b.lock.Unlock()
	for _, fn := range callbacks {
		fn()
	}
	b.log.Debug("Simulated backend stopped")
	return nil
}

func (b *Backend) minerLoop() {
	defer b.wg.Done()

	var tick <-chan time.Time
	if b.config.BlockPeriod > 0 {
		ticker := time.NewTicker(b.config.BlockPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case done := <-b.mineCh:
			b.mineBlock()
			if done != nil {
				close(done)
			}
		case <-tick:
			b.mineBlock()
		case <-b.quitCh:
			return
		}
	}
}

// mineBlock executes the pending transactions in submission order. Watchers
// of the block are notified in order on a separate goroutine once it is
// sealed.
func (b *Backend) mineBlock() {
	b.lock.Lock()
	txs := b.pending
	b.pending = nil
	if len(txs) == 0 {
		b.lock.Unlock()
		return
	}
	b.blockNumber++
	now := time.Now().UTC().Truncate(time.Second)
	if !now.After(b.blockTime) {
		now = b.blockTime.Add(time.Second)
	}
	b.blockTime = now

	var callbacks []func()
	for _, tx := range txs {
		res := b.execute(tx)
		b.outcomes[tx.handle.Hash] = res
		callbacks = append(callbacks, b.settle(tx.handle.Hash, res)...)
	}
	b.log.Debug("Mined simulated block", "number", b.blockNumber, "txs", len(txs))
	b.lock.Unlock()

	// watchers may submit and await further transactions, so they must not
	// hold up the miner
	if len(callbacks) > 0 {
		go func() {
			for _, fn := range callbacks {
				fn()
			}
		}()
	}
}

// settle releases waiters and returns the watcher callbacks to run once the
// lock is dropped. Must be called with the lock held.
func (b *Backend) settle(hash common.Hash, res *outcome) []func() {
	if ch, ok := b.waiters[hash]; ok {
		close(ch)
		delete(b.waiters, hash)
	}
	watchers := b.watchers[hash]
	delete(b.watchers, hash)
	callbacks := make([]func(), len(watchers))
	for i, fn := range watchers {
		fn := fn
		callbacks[i] = func() { fn(res.receipt, res.err) }
	}
	return callbacks
}

func intrinsicGas(data []byte) uint64 {
	gas := params.TxGas
	for _, b := range data {
		if b == 0 {
			gas += params.TxDataZeroGas
		} else {
			gas += params.TxDataNonZeroGasEIP2028
		}
	}
	return gas
}

func (b *Backend) newContext(from, self values.EthAddress, value values.EthValue, c *Contract, readOnly bool) *CallContext {
	return &CallContext{
		Sender:      from,
		Self:        self,
		Value:       value,
		BlockNumber: b.blockNumber,
		Time:        b.blockTime,
		ReadOnly:    readOnly,
		storage:     c.storage,
		writes:      make(map[string]any),
		backend:     b,
	}
}

// invoke runs the handler selected by data against c. The caller decides
// whether the buffered writes are committed.
func (b *Backend) invoke(ctx *CallContext, c *Contract, data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, errUnknownSelector
	}
	method, err := c.meta.MethodById(data[:4])
	if err != nil {
		return "", nil, errUnknownSelector
	}
	handler, ok := c.handlers[method.Name]
	if !ok {
		return method.Name, nil, errUnknownSelector
	}
	if !ctx.ReadOnly && !method.IsPayable() && !ctx.Value.IsZero() {
		return method.Name, nil, Revert("non-payable method called with value")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return method.Name, nil, Revert(fmt.Sprintf("invalid arguments: %v", err))
	}
	out, err := handler(ctx, args)
	if err != nil {
		return method.Name, nil, err
	}
	ret, err := method.Outputs.Pack(out...)
	if err != nil {
		return method.Name, nil, fmt.Errorf("invalid return values of %s: %w", method.Name, err)
	}
	return method.Name, ret, nil
}

func (b *Backend) callError(contract values.EthAddress, method string, err error) *blockchain.ContractCallError {
	var revert *RevertError
	if errors.As(err, &revert) || errors.Is(err, errUnknownSelector) {
		reason := revertReason(err)
		return &blockchain.ContractCallError{
			Contract: contract,
			Method:   method,
			Reason:   reason,
			Data:     abiutils.PackRevert(reason),
		}
	}
	return &blockchain.ContractCallError{Contract: contract, Method: method, Err: err}
}

// Call executes msg against the current state without changing it.
func (b *Backend) Call(ctx context.Context, msg *blockchain.CallMsg) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return nil, blockchain.ErrBackendClosed
	}
	target := msg.Target()
	c, ok := b.contracts[target]
	if !ok {
		return nil, &blockchain.ContractCallError{Contract: target, Method: msg.Method, Err: blockchain.ErrNoCode}
	}
	callCtx := b.newContext(msg.From, target, msg.Amount(), c, true)
	name, ret, err := b.invoke(callCtx, c, msg.Data())
	if err != nil {
		if name == "" {
			name = msg.Method
		}
		return nil, b.callError(target, name, err)
	}
	return ret, nil
}

// SendTransaction validates, signs and queues msg. Value is escrowed from
// the sender right away and refunded if the transaction reverts.
func (b *Backend) SendTransaction(ctx context.Context, msg *blockchain.CallMsg, from *values.EthAccount) (*blockchain.TransactionHandle, error) {
	if from == nil {
		return nil, &blockchain.SubmissionError{From: msg.From, Err: blockchain.ErrNoAccount}
	}
	sender := from.Address()
	if err := msg.CheckValue(); err != nil {
		return nil, &blockchain.SubmissionError{From: sender, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.lock.Lock()
	if b.closed {
		b.lock.Unlock()
		return nil, &blockchain.SubmissionError{From: sender, Err: blockchain.ErrBackendClosed}
	}
	if len(b.pending) >= b.config.MaxPending {
		b.lock.Unlock()
		return nil, &blockchain.SubmissionError{From: sender, Err: fmt.Errorf("%w: pending queue full", blockchain.ErrRejected)}
	}
	value := msg.Amount()
	remaining, err := b.balances[sender].Sub(value)
	if err != nil {
		b.lock.Unlock()
		return nil, &blockchain.SubmissionError{From: sender, Err: fmt.Errorf("%w: have %s want %s", blockchain.ErrInsufficientFunds, b.balances[sender], value)}
	}
	nonce := b.nonces[sender]
	data := msg.Data()
	signed, err := b.sign(from.PrivateKey(), nonce, msg, data)
	if err != nil {
		b.lock.Unlock()
		return nil, &blockchain.SubmissionError{From: sender, Err: err}
	}
	b.balances[sender] = remaining
	b.nonces[sender] = nonce + 1

	handle := &blockchain.TransactionHandle{
		Hash:   signed.Hash(),
		From:   sender,
		To:     msg.To,
		Method: msg.Method,
		Nonce:  nonce,
		Value:  value,
		Data:   data,
	}
	b.pending = append(b.pending, &pendingTx{handle: handle, msg: msg})
	b.lock.Unlock()

	b.log.Debug("Submitted simulated transaction", "hash", handle.Hash, "from", sender, "nonce", nonce, "method", msg.Method, "value", value)
	if b.config.BlockPeriod == 0 {
		select {
		case b.mineCh <- nil:
		default: // a block is already scheduled and will pick this one up
		}
	}
	return handle, nil
}

func (b *Backend) sign(key *ecdsa.PrivateKey, nonce uint64, msg *blockchain.CallMsg, data []byte) (*types.Transaction, error) {
	var to *common.Address
	if msg.To != nil {
		addr := msg.To.Common()
		to = &addr
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    msg.Amount().Big(),
		Gas:      intrinsicGas(data),
		GasPrice: new(big.Int),
		Data:     data,
	})
	return types.SignTx(tx, b.signer, key)
}

// execute applies a mined transaction. Must be called with the lock held.
func (b *Backend) execute(tx *pendingTx) *outcome {
	handle := tx.handle
	receipt := &blockchain.Receipt{
		TxHash:      handle.Hash,
		BlockNumber: b.blockNumber,
		Status:      types.ReceiptStatusSuccessful,
		GasUsed:     intrinsicGas(handle.Data),
	}
	fail := func(err *blockchain.ContractCallError) *outcome {
		// refund the escrowed value
		if refunded, addErr := b.balances[handle.From].Add(handle.Value); addErr == nil {
			b.balances[handle.From] = refunded
		}
		receipt.Status = types.ReceiptStatusFailed
		receipt.ReturnData = err.Data
		b.log.Debug("Simulated transaction reverted", "hash", handle.Hash, "reason", err.Reason, "err", err.Err)
		return &outcome{receipt: receipt, err: err}
	}

	if handle.To == nil {
		addr := values.AddressOf(crypto.CreateAddress(handle.From.Common(), handle.Nonce))
		c, err := b.create(handle, addr)
		if err != nil {
			return fail(b.callError(addr, "constructor", err))
		}
		b.contracts[addr] = c
		b.credit(addr, handle.Value)
		receipt.ContractAddress = addr
		return &outcome{receipt: receipt}
	}

	target := *handle.To
	c, ok := b.contracts[target]
	if !ok {
		b.credit(target, handle.Value)
		return &outcome{receipt: receipt}
	}
	callCtx := b.newContext(handle.From, target, handle.Value, c, false)
	// credit first so handlers observe their own balance including the value
	b.credit(target, handle.Value)
	name, ret, err := b.invoke(callCtx, c, handle.Data)
	if err != nil {
		b.debit(target, handle.Value)
		if name == "" {
			name = handle.Method
		}
		return fail(b.callError(target, name, err))
	}
	callCtx.commit()
	receipt.ReturnData = ret
	return &outcome{receipt: receipt}
}

func (b *Backend) create(handle *blockchain.TransactionHandle, addr values.EthAddress) (*Contract, error) {
	var code *registeredCode
	for i := range b.codes {
		if bytes.HasPrefix(handle.Data, b.codes[i].bin) && (code == nil || len(b.codes[i].bin) > len(code.bin)) {
			code = &b.codes[i]
		}
	}
	if code == nil {
		return nil, errors.New("unknown contract bytecode")
	}
	args, err := code.meta.Constructor.Inputs.Unpack(handle.Data[len(code.bin):])
	if err != nil {
		return nil, Revert(fmt.Sprintf("invalid constructor arguments: %v", err))
	}
	ctx := &CallContext{
		Sender:      handle.From,
		Self:        addr,
		Value:       handle.Value,
		BlockNumber: b.blockNumber,
		Time:        b.blockTime,
		storage:     make(map[string]any),
		writes:      make(map[string]any),
		backend:     b,
	}
	c, err := code.factory(ctx, args)
	if err != nil {
		return nil, err
	}
	for k, v := range ctx.writes {
		c.storage[k] = v
	}
	return c, nil
}

func (b *Backend) credit(addr values.EthAddress, v values.EthValue) {
	if sum, err := b.balances[addr].Add(v); err == nil {
		b.balances[addr] = sum
	}
}

func (b *Backend) debit(addr values.EthAddress, v values.EthValue) {
	if rest, err := b.balances[addr].Sub(v); err == nil {
		b.balances[addr] = rest
	}
}

// AwaitReceipt blocks until tx is mined. A context deadline is reported as a
// TransactionTimeoutError.
func (b *Backend) AwaitReceipt(ctx context.Context, tx *blockchain.TransactionHandle) (*blockchain.Receipt, error) {
	start := time.Now()
	b.lock.Lock()
	if res, ok := b.outcomes[tx.Hash]; ok {
		b.lock.Unlock()
		return res.receipt, res.err
	}
	if !b.isPending(tx.Hash) {
		b.lock.Unlock()
		return nil, blockchain.ErrUnknownTx
	}
	ch, ok := b.waiters[tx.Hash]
	if !ok {
		ch = make(chan struct{})
		b.waiters[tx.Hash] = ch
	}
	b.lock.Unlock()

	select {
	case <-ch:
		b.lock.Lock()
		res := b.outcomes[tx.Hash]
		b.lock.Unlock()
		return res.receipt, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &blockchain.TransactionTimeoutError{Hash: tx.Hash, Timeout: time.Since(start)}
		}
		return nil, ctx.Err()
	}
}

// WatchReceipt calls fn from the miner goroutine once tx is mined. If tx is
// already mined fn runs on a fresh goroutine.
func (b *Backend) WatchReceipt(tx *blockchain.TransactionHandle, fn func(*blockchain.Receipt, error)) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if res, ok := b.outcomes[tx.Hash]; ok {
		go fn(res.receipt, res.err)
		return
	}
	if !b.isPending(tx.Hash) {
		go fn(nil, blockchain.ErrUnknownTx)
		return
	}
	b.watchers[tx.Hash] = append(b.watchers[tx.Hash], fn)
}

func (b *Backend) isPending(hash common.Hash) bool {
	for _, tx := range b.pending {
		if tx.handle.Hash == hash {
			return true
		}
	}
	return false
}

func (b *Backend) GetBalance(ctx context.Context, addr values.EthAddress) (values.EthValue, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.balances[addr], nil
}

func (b *Backend) GetNonce(ctx context.Context, addr values.EthAddress) (uint64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.nonces[addr], nil
}

var _ blockchain.Proxy = (*Backend)(nil)
