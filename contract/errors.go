package contract

import "errors"

var (
	ErrUnknownMethod      = errors.New("method not declared in contract descriptor")
	ErrDuplicateMethod    = errors.New("method declared twice")
	ErrMethodNotInABI     = errors.New("method not found in contract metadata")
	ErrArgumentCount      = errors.New("wrong number of arguments")
	ErrArgumentType       = errors.New("argument type does not match declaration")
	ErrKindMismatch       = errors.New("method has a different return kind")
	ErrReturnTypeMismatch = errors.New("method has a different return type")
	ErrNotDeployable      = errors.New("contract has no bytecode")
)
