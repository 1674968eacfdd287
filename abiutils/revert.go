package abiutils

import (
	"bytes"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	stringArgs     = abi.Arguments{{Type: mustType("string")}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// RevertReason extracts the message of a revert payload encoded as
// Error(string) or Panic(uint256).
func RevertReason(data []byte) (string, bool) {
	if len(data) < 4 {
		return "", false
	}
	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return "", false
	}
	return reason, true
}

// PackRevert encodes reason as an Error(string) revert payload.
func PackRevert(reason string) []byte {
	packed, err := stringArgs.Pack(reason)
	if err != nil {
		panic(err) // packing a string cannot fail
	}
	return append(append([]byte{}, revertSelector...), packed...)
}

// IsRevertData reports whether data starts with the Error(string) selector.
func IsRevertData(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], revertSelector)
}
