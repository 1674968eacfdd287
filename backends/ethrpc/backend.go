package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/panjf2000/ants/v2"
	"github.com/verichains/ethproxy/blockchain"
	"github.com/verichains/ethproxy/values"
)

// Client is the subset of the node API the backend needs. It is satisfied by
// *ethclient.Client and by the client of go-ethereum's simulated chain.
type Client interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

type outcome struct {
	receipt *blockchain.Receipt
	err     error
}

// Backend talks to an Ethereum node over JSON-RPC. Nonces are assigned
// locally and serialized per account; receipt waits run on a worker pool.
type Backend struct {
	config  Config
	client  Client
	chainID *big.Int
	closeFn func()

	nonceLock sync.Mutex
	accounts  map[values.EthAddress]*accountState

	receipts *lru.Cache // tx hash -> *outcome
	pool     *ants.Pool
	log      log.Logger

	quitCtx context.Context // cancelled by Close, stops receipt watchers
	quit    context.CancelFunc
}

type accountState struct {
	lock  sync.Mutex
	nonce uint64
	known bool
}

// New wraps an already connected client.
func New(ctx context.Context, client Client, cfg Config) (*Backend, error) {
	if err := cfg.Sanitize(); err != nil {
		return nil, err
	}
	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		id, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("query chain id: %w", err)
		}
		chainID = id
	}
	receipts, err := lru.New(cfg.ReceiptCacheSize)
	if err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(cfg.WatcherPoolSize, ants.WithNonblocking(true), ants.WithPanicHandler(func(p interface{}) {
		log.Error("Receipt watcher panicked", "err", p)
	}))
	if err != nil {
		return nil, err
	}
	quitCtx, quit := context.WithCancel(context.Background())
	return &Backend{
		quitCtx:  quitCtx,
		quit:     quit,
		config:   cfg,
		client:   client,
		chainID:  chainID,
		accounts: make(map[values.EthAddress]*accountState),
		receipts: receipts,
		pool:     pool,
		log:      log.New("backend", "ethrpc", "chainid", chainID),
	}, nil
}

// Dial connects to the node at rawurl.
func Dial(ctx context.Context, rawurl string, cfg Config) (*Backend, error) {
	client, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, err
	}
	b, err := New(ctx, client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	b.closeFn = client.Close
	b.log.Info("Connected to Ethereum node", "url", rawurl)
	return b, nil
}

func (b *Backend) ChainID() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// Close stops the receipt watchers and, for dialed backends, the connection.
// Pending watchers report ErrBackendClosed.
func (b *Backend) Close() error {
	b.quit()
	b.pool.Release()
	if b.closeFn != nil {
		b.closeFn()
	}
	return nil
}

func (b *Backend) account(addr values.EthAddress) *accountState {
	b.nonceLock.Lock()
	defer b.nonceLock.Unlock()
	acc, ok := b.accounts[addr]
	if !ok {
		acc = &accountState{}
		b.accounts[addr] = acc
	}
	return acc
}

func toCallMsg(msg *blockchain.CallMsg) ethereum.CallMsg {
	call := ethereum.CallMsg{
		From: msg.From.Common(),
		Data: msg.Data(),
	}
	if msg.To != nil {
		to := msg.To.Common()
		call.To = &to
	}
	if msg.Value != nil {
		call.Value = msg.Value.Big()
	}
	return call
}

// Call runs msg with eth_call against the latest block.
func (b *Backend) Call(ctx context.Context, msg *blockchain.CallMsg) ([]byte, error) {
	if msg.To == nil {
		return nil, errors.New("call requires a target address")
	}
	ret, err := b.client.CallContract(ctx, toCallMsg(msg), nil)
	if err != nil {
		if callErr, ok := toCallError(*msg.To, msg.Method, err); ok {
			return nil, callErr
		}
		return nil, err
	}
	if len(ret) == 0 {
		// calls to accounts without code succeed with empty output
		code, err := b.client.CodeAt(ctx, msg.To.Common(), nil)
		if err != nil {
			return nil, err
		}
		if len(code) == 0 {
			return nil, &blockchain.ContractCallError{Contract: *msg.To, Method: msg.Method, Err: blockchain.ErrNoCode}
		}
	}
	return ret, nil
}

// SendTransaction signs msg with from and submits it. Gas estimation
// failures caused by a revert surface as ContractCallError.
func (b *Backend) SendTransaction(ctx context.Context, msg *blockchain.CallMsg, from *values.EthAccount) (*blockchain.TransactionHandle, error) {
	if from == nil {
		return nil, &blockchain.SubmissionError{From: msg.From, Err: blockchain.ErrNoAccount}
	}
	sender := from.Address()
	if err := msg.CheckValue(); err != nil {
		return nil, &blockchain.SubmissionError{From: sender, Err: err}
	}
	opts, err := bind.NewKeyedTransactorWithChainID(from.PrivateKey(), b.chainID)
	if err != nil {
		return nil, &blockchain.SubmissionError{From: sender, Err: err}
	}
	opts.Context = ctx
	opts.Value = msg.Amount().Big()
	opts.GasLimit = b.config.GasLimit
	if opts.GasLimit == 0 && !msg.IsCreate() && len(msg.Data()) == 0 {
		// the binding refuses to estimate calls to addresses without code
		call := toCallMsg(msg)
		call.From = sender.Common()
		gas, err := b.client.EstimateGas(ctx, call)
		if err != nil {
			return nil, &blockchain.SubmissionError{From: sender, Err: submissionCause(err)}
		}
		opts.GasLimit = gas
	}

	acc := b.account(sender)
	acc.lock.Lock()
	defer acc.lock.Unlock()

	if !acc.known {
		nonce, err := b.client.PendingNonceAt(ctx, sender.Common())
		if err != nil {
			return nil, &blockchain.SubmissionError{From: sender, Err: err}
		}
		acc.nonce, acc.known = nonce, true
	}
	opts.Nonce = new(big.Int).SetUint64(acc.nonce)

	var tx *types.Transaction
	if msg.IsCreate() {
		_, tx, _, err = bind.DeployContract(opts, abi.ABI{}, msg.Args, b.client)
	} else {
		contract := bind.NewBoundContract(msg.To.Common(), abi.ABI{}, b.client, b.client, b.client)
		tx, err = contract.RawTransact(opts, msg.Data())
	}
	if err != nil {
		if callErr, ok := toCallError(msg.Target(), msg.Method, err); ok {
			return nil, callErr
		}
		if isNonceError(err) {
			acc.known = false
		}
		return nil, &blockchain.SubmissionError{From: sender, Err: submissionCause(err)}
	}
	acc.nonce++

	handle := &blockchain.TransactionHandle{
		Hash:   tx.Hash(),
		From:   sender,
		To:     msg.To,
		Method: msg.Method,
		Nonce:  tx.Nonce(),
		Value:  msg.Amount(),
		Data:   tx.Data(),
	}
	b.log.Debug("Submitted transaction", "hash", handle.Hash, "from", sender, "nonce", handle.Nonce, "method", msg.Method, "gas", tx.Gas())
	return handle, nil
}

// AwaitReceipt waits until tx is mined, for at most the configured receipt
// timeout. Resolved outcomes are cached.
func (b *Backend) AwaitReceipt(ctx context.Context, tx *blockchain.TransactionHandle) (*blockchain.Receipt, error) {
	if cached, ok := b.receipts.Get(tx.Hash); ok {
		res := cached.(*outcome)
		return res.receipt, res.err
	}
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, b.config.ReceiptTimeout)
	defer cancel()

	raw, err := bind.WaitMinedHash(waitCtx, b.client, tx.Hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &blockchain.TransactionTimeoutError{Hash: tx.Hash, Timeout: time.Since(start)}
		}
		return nil, err
	}
	receipt := &blockchain.Receipt{
		TxHash:          raw.TxHash,
		BlockNumber:     raw.BlockNumber.Uint64(),
		Status:          raw.Status,
		GasUsed:         raw.GasUsed,
		ContractAddress: values.AddressOf(raw.ContractAddress),
	}
	res := &outcome{receipt: receipt}
	if raw.Status == types.ReceiptStatusSuccessful {
		if tx.To != nil {
			receipt.ReturnData = b.replay(ctx, tx, raw.BlockNumber)
		}
	} else {
		res.err = b.failure(ctx, tx, raw.BlockNumber)
		if callErr, ok := res.err.(*blockchain.ContractCallError); ok {
			receipt.ReturnData = callErr.Data
		}
	}
	b.receipts.Add(tx.Hash, res)
	b.log.Debug("Transaction mined", "hash", tx.Hash, "block", receipt.BlockNumber, "status", receipt.Status, "gas", receipt.GasUsed)
	return res.receipt, res.err
}

// replay re-executes a mined call on the state of the parent block to get
// its return data, which receipts do not carry.
func (b *Backend) replay(ctx context.Context, tx *blockchain.TransactionHandle, block *big.Int) []byte {
	msg := ethereum.CallMsg{From: tx.From.Common(), Value: tx.Value.Big(), Data: tx.Data}
	if tx.To != nil {
		to := tx.To.Common()
		msg.To = &to
	}
	parent := new(big.Int).Sub(block, common.Big1)
	ret, err := b.client.CallContract(ctx, msg, parent)
	if err != nil {
		b.log.Warn("Could not replay transaction for return data", "hash", tx.Hash, "err", err)
		return nil
	}
	return ret
}

// failure builds the error of a failed transaction, recovering the revert
// reason by replaying the call.
func (b *Backend) failure(ctx context.Context, tx *blockchain.TransactionHandle, block *big.Int) error {
	callErr := &blockchain.ContractCallError{Contract: tx.Target(), Method: tx.Method, Err: errTxFailed}
	msg := ethereum.CallMsg{From: tx.From.Common(), Value: tx.Value.Big(), Data: tx.Data}
	if tx.To != nil {
		to := tx.To.Common()
		msg.To = &to
	}
	parent := new(big.Int).Sub(block, common.Big1)
	if _, err := b.client.CallContract(ctx, msg, parent); err != nil {
		if replayed, ok := toCallError(tx.Target(), tx.Method, err); ok {
			return replayed
		}
	}
	return callErr
}

// WatchReceipt waits for tx on the watcher pool and hands the outcome to fn.
// It never blocks: when every pooled worker is busy the wait runs on its own
// goroutine. Receipt timeouts do not end the watch, only mining or Close do.
func (b *Backend) WatchReceipt(tx *blockchain.TransactionHandle, fn func(*blockchain.Receipt, error)) {
	task := func() { b.watch(tx, fn) }
	err := b.pool.Submit(task)
	switch {
	case err == nil:
	case errors.Is(err, ants.ErrPoolOverload):
		b.log.Debug("Receipt watcher pool full", "hash", tx.Hash, "running", b.pool.Running())
		go task()
	default:
		b.log.Warn("Receipt watcher unavailable", "hash", tx.Hash, "err", err)
		go fn(nil, fmt.Errorf("%w: %v", blockchain.ErrBackendClosed, err))
	}
}

func (b *Backend) watch(tx *blockchain.TransactionHandle, fn func(*blockchain.Receipt, error)) {
	for {
		receipt, err := b.AwaitReceipt(b.quitCtx, tx)
		var timeout *blockchain.TransactionTimeoutError
		switch {
		case err == nil:
		case errors.As(err, &timeout) && b.quitCtx.Err() == nil:
			b.log.Debug("Transaction still pending", "hash", tx.Hash, "waited", timeout.Timeout)
			continue
		case b.quitCtx.Err() != nil && !blockchain.IsContractCallError(err):
			err = fmt.Errorf("%w: watching %v", blockchain.ErrBackendClosed, tx.Hash)
		}
		fn(receipt, err)
		return
	}
}

func (b *Backend) GetBalance(ctx context.Context, addr values.EthAddress) (values.EthValue, error) {
	balance, err := b.client.BalanceAt(ctx, addr.Common(), nil)
	if err != nil {
		return values.Zero, err
	}
	return values.ValueFromBig(balance)
}

func (b *Backend) GetNonce(ctx context.Context, addr values.EthAddress) (uint64, error) {
	return b.client.NonceAt(ctx, addr.Common(), nil)
}

var _ blockchain.Proxy = (*Backend)(nil)
