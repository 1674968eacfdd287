package simulated

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/verichains/ethproxy/values"
)

// Handler implements one contract method. Arguments and results use the Go
// types of the ABI decoder: *big.Int or sized ints, string, bool,
// common.Address, []byte, fixed arrays, slices and structs for tuples.
type Handler func(ctx *CallContext, args []any) ([]any, error)

// Factory builds a contract instance from its decoded constructor arguments.
type Factory func(ctx *CallContext, args []any) (*Contract, error)

// RevertError aborts the current call. Every state change of the call is
// discarded and the reason is reported to the caller.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

// Revert returns an error that reverts the running call with reason.
func Revert(reason string) error {
	return &RevertError{Reason: reason}
}

func revertReason(err error) string {
	var revert *RevertError
	if errors.As(err, &revert) {
		return revert.Reason
	}
	return err.Error()
}

// Contract is a contract implemented in Go and executed by the simulated
// backend. Its storage is only modified by transactions that succeed.
type Contract struct {
	meta     abi.ABI
	handlers map[string]Handler
	storage  map[string]any
}

func NewContract(meta abi.ABI) *Contract {
	return &Contract{
		meta:     meta,
		handlers: make(map[string]Handler),
		storage:  make(map[string]any),
	}
}

// Handle installs the implementation of method. It panics when the ABI has
// no such method, as that is a programming error in the fixture.
func (c *Contract) Handle(method string, fn Handler) *Contract {
	if _, ok := c.meta.Methods[method]; !ok {
		panic(fmt.Sprintf("simulated: method %q not in contract abi", method))
	}
	c.handlers[method] = fn
	return c
}

// ABI returns the interface of the contract.
func (c *Contract) ABI() abi.ABI {
	return c.meta
}

// CallContext is handed to handlers. Writes through Store are buffered and
// only applied when the enclosing transaction succeeds.
type CallContext struct {
	Sender      values.EthAddress
	Self        values.EthAddress
	Value       values.EthValue
	BlockNumber uint64
	Time        time.Time
	ReadOnly    bool

	storage map[string]any
	writes  map[string]any
	backend *Backend
}

// Load reads a storage slot.
func (c *CallContext) Load(key string) (any, bool) {
	if v, ok := c.writes[key]; ok {
		return v, true
	}
	v, ok := c.storage[key]
	return v, ok
}

// Store writes a storage slot. Writes made during read-only calls are
// dropped at the end of the call.
func (c *CallContext) Store(key string, v any) {
	c.writes[key] = v
}

// Balance returns the balance of addr as seen by the running call.
func (c *CallContext) Balance(addr values.EthAddress) values.EthValue {
	return c.backend.balances[addr]
}

func (c *CallContext) commit() {
	for k, v := range c.writes {
		c.storage[k] = v
	}
}

// LoadOr reads a typed storage slot, returning def when the slot is empty.
func LoadOr[T any](ctx *CallContext, key string, def T) T {
	v, ok := ctx.Load(key)
	if !ok {
		return def
	}
	typed, ok := v.(T)
	if !ok {
		return def
	}
	return typed
}
