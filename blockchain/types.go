package blockchain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/verichains/ethproxy/values"
)

// Proxy is the boundary to an Ethereum node, remote or simulated. It moves
// raw call data; encoding happens above it.
type Proxy interface {
	// Call executes a read-only call against the latest state.
	Call(ctx context.Context, msg *CallMsg) ([]byte, error)

	// SendTransaction signs and submits msg on behalf of from and returns as
	// soon as the node accepted it.
	SendTransaction(ctx context.Context, msg *CallMsg, from *values.EthAccount) (*TransactionHandle, error)

	// AwaitReceipt blocks until tx is mined or ctx is done.
	AwaitReceipt(ctx context.Context, tx *TransactionHandle) (*Receipt, error)

	// WatchReceipt calls fn exactly once with the outcome of tx. fn is called
	// from a goroutine owned by the backend.
	WatchReceipt(tx *TransactionHandle, fn func(*Receipt, error))

	GetBalance(ctx context.Context, addr values.EthAddress) (values.EthValue, error)
	GetNonce(ctx context.Context, addr values.EthAddress) (uint64, error)
}

// CallMsg describes a contract invocation or deployment.
type CallMsg struct {
	From     values.EthAddress
	To       *values.EthAddress // nil for contract creation
	Method   string             // informational, used in errors and logs
	Selector []byte
	Args     []byte // packed arguments, or bytecode plus constructor args on creation
	Value    *values.EthValue
	Payable  bool
}

// Data returns the full call data: selector followed by arguments.
func (m *CallMsg) Data() []byte {
	data := make([]byte, 0, len(m.Selector)+len(m.Args))
	data = append(data, m.Selector...)
	return append(data, m.Args...)
}

// IsCreate reports whether the message deploys a contract.
func (m *CallMsg) IsCreate() bool {
	return m.To == nil
}

// Amount returns the attached value, zero when none.
func (m *CallMsg) Amount() values.EthValue {
	if m.Value == nil {
		return values.Zero
	}
	return *m.Value
}

// Target returns the callee, or the empty address on creation.
func (m *CallMsg) Target() values.EthAddress {
	if m.To == nil {
		return values.EmptyAddress
	}
	return *m.To
}

// CheckValue enforces the payable rules: payable messages must carry a
// value and non-payable messages must not carry a positive one.
func (m *CallMsg) CheckValue() error {
	switch {
	case m.Payable && m.Value == nil:
		return ErrMissingValue
	case !m.Payable && !m.IsCreate() && !m.Amount().IsZero():
		return ErrNonPayable
	}
	return nil
}

// TransactionHandle identifies a submitted transaction.
type TransactionHandle struct {
	Hash   common.Hash
	From   values.EthAddress
	To     *values.EthAddress
	Method string
	Nonce  uint64
	Value  values.EthValue
	Data   []byte
}

// Target returns the callee, or the empty address for a deployment.
func (tx *TransactionHandle) Target() values.EthAddress {
	if tx.To == nil {
		return values.EmptyAddress
	}
	return *tx.To
}

func (tx *TransactionHandle) String() string {
	return fmt.Sprintf("tx(%s nonce=%d)", tx.Hash.Hex(), tx.Nonce)
}

// Receipt is the outcome of a mined transaction.
type Receipt struct {
	TxHash          common.Hash
	BlockNumber     uint64
	Status          uint64
	GasUsed         uint64
	ReturnData      []byte
	ContractAddress values.EthAddress // set on contract creation
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}
