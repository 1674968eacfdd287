//
// Created on 2023/3/2 by khanghh
// Project: github.com/verichains/ethproxy
// Copyright (c) 2023 Verichains Lab
//

package values

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EmptyAddress is the zero address.
var EmptyAddress = EthAddress{}

// EthAddress is a 160-bit account or contract identifier. It is a plain array
// so two addresses with the same content compare equal with == and hash the
// same as map keys.
type EthAddress common.Address

func AddressOf(addr common.Address) EthAddress {
	return EthAddress(addr)
}

func BytesToAddress(b []byte) EthAddress {
	return EthAddress(common.BytesToAddress(b))
}

// ParseAddress parses a 0x-prefixed or bare 40 character hex string. Unlike
// common.HexToAddress it rejects malformed input instead of truncating it.
func ParseAddress(s string) (EthAddress, error) {
	if !common.IsHexAddress(s) {
		return EmptyAddress, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return EthAddress(common.HexToAddress(s)), nil
}

func MustParseAddress(s string) EthAddress {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a EthAddress) Common() common.Address {
	return common.Address(a)
}

func (a EthAddress) Bytes() []byte {
	return a[:]
}

// Hex returns the EIP-55 checksummed representation.
func (a EthAddress) Hex() string {
	return common.Address(a).Hex()
}

func (a EthAddress) String() string {
	return a.Hex()
}

func (a EthAddress) IsEmpty() bool {
	return a == EmptyAddress
}

func (a EthAddress) MarshalText() ([]byte, error) {
	return common.Address(a).MarshalText()
}

func (a *EthAddress) UnmarshalText(input []byte) error {
	return (*common.Address)(a).UnmarshalText(input)
}
