package values

import "errors"

var (
	ErrInvalidAddress = errors.New("invalid hex address")
	ErrInvalidKey     = errors.New("invalid private key")
	ErrInvalidValue   = errors.New("invalid ether value")
	ErrNegativeValue  = errors.New("negative ether value")
	ErrValueOverflow  = errors.New("ether value exceeds 256 bits")
)
