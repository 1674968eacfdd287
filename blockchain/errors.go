package blockchain

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/verichains/ethproxy/values"
)

var (
	ErrNoAccount         = errors.New("no signing account")
	ErrMissingValue      = errors.New("payable call submitted without a value")
	ErrNonPayable        = errors.New("value sent to a non-payable method")
	ErrInsufficientFunds = errors.New("insufficient funds for value transfer")
	ErrRejected          = errors.New("transaction rejected by node")
	ErrUnknownTx         = errors.New("unknown transaction")
	ErrBackendClosed     = errors.New("backend closed")
	ErrNoCode            = errors.New("no contract code at given address")
)

// ContractCallError reports that a call or transaction reverted, or that a
// contract could not be executed at all.
type ContractCallError struct {
	Contract values.EthAddress
	Method   string // empty when the selector is not known to the backend
	Reason   string
	Data     []byte // raw revert data
	Err      error  // underlying cause, if any
}

func (e *ContractCallError) Error() string {
	target := e.Contract.Hex()
	if e.Method != "" {
		target += "." + e.Method
	}
	switch {
	case e.Reason != "":
		return fmt.Sprintf("contract call %s reverted: %s", target, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("contract call %s failed: %v", target, e.Err)
	}
	return fmt.Sprintf("contract call %s reverted", target)
}

func (e *ContractCallError) Unwrap() error {
	return e.Err
}

// SubmissionError reports that a transaction could not be submitted. The
// transaction never reached the chain.
type SubmissionError struct {
	From values.EthAddress
	Err  error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to submit transaction from %s: %v", e.From.Hex(), e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransactionTimeoutError reports that waiting for a transaction gave up. The
// transaction itself may still be mined later.
type TransactionTimeoutError struct {
	Hash    common.Hash
	Timeout time.Duration
}

func (e *TransactionTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not resolved within %v", e.Hash.Hex(), e.Timeout)
}

// IsContractCallError reports whether err is, or wraps, a ContractCallError.
func IsContractCallError(err error) bool {
	var callErr *ContractCallError
	return errors.As(err, &callErr)
}
