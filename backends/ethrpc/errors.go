package ethrpc

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/verichains/ethproxy/abiutils"
	"github.com/verichains/ethproxy/blockchain"
	"github.com/verichains/ethproxy/values"
)

var errTxFailed = errors.New("transaction failed without revert data")

// revertData extracts the revert payload carried by a node error. The second
// result reports whether err is an execution revert at all.
func revertData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(s); decodeErr == nil {
				return data, true
			}
		}
	}
	return nil, strings.Contains(err.Error(), "execution reverted")
}

func toCallError(contract values.EthAddress, method string, err error) (*blockchain.ContractCallError, bool) {
	data, reverted := revertData(err)
	if !reverted {
		return nil, false
	}
	callErr := &blockchain.ContractCallError{Contract: contract, Method: method, Data: data, Err: err}
	if reason, ok := abiutils.RevertReason(data); ok {
		callErr.Reason = reason
	}
	return callErr, true
}

// submissionCause maps node rejections onto the submission sentinels. Errors
// crossing JSON-RPC lose their identity, so matching is done on the message.
func submissionCause(err error) error {
	if strings.Contains(err.Error(), "insufficient funds") {
		return errors.Join(blockchain.ErrInsufficientFunds, err)
	}
	return errors.Join(blockchain.ErrRejected, err)
}

func isNonceError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nonce too low") || strings.Contains(msg, "nonce too high")
}
