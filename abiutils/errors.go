package abiutils

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid method signature")
	ErrUnknownContract  = errors.New("unknown contract")
	ErrNoBytecode       = errors.New("contract has no bytecode")
	ErrArgumentCount    = errors.New("argument count mismatch")
	ErrWireType         = errors.New("wire value does not match abi type")
	ErrValueOutOfRange  = errors.New("value out of range for abi type")
)
