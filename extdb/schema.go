//
// Created on 2023/2/21 by khanghh
// Project: github.com/verichains/ethproxy
// Copyright (c) 2023 Verichains Lab
//

package extdb

import (
	"github.com/ethereum/go-ethereum/common"
)

// SchemaVersion is bumped whenever the key layout changes.
const SchemaVersion uint64 = 1

var (
	SchemaVersionKey = []byte("SchemaVersion")

	ContractABIPrefix     = []byte("m") // ContractABIPrefix + name -> abi json
	ContractCodePrefix    = []byte("b") // ContractCodePrefix + name -> creation bytecode
	BoundAddressPrefix    = []byte("d") // BoundAddressPrefix + address -> contract name
	FourBytesMethodPrefix = []byte("f") // FourBytesMethodPrefix + selector -> list of method signatures
)

func prefixedKey(prefix []byte, suffix []byte) []byte {
	key := make([]byte, 0, len(prefix)+len(suffix))
	key = append(key, prefix...)
	return append(key, suffix...)
}

func contractABIKey(name string) []byte {
	return prefixedKey(ContractABIPrefix, []byte(name))
}

func contractCodeKey(name string) []byte {
	return prefixedKey(ContractCodePrefix, []byte(name))
}

func boundAddressKey(addr common.Address) []byte {
	return prefixedKey(BoundAddressPrefix, addr.Bytes())
}

func fourBytesKey(selector []byte) []byte {
	return prefixedKey(FourBytesMethodPrefix, selector)
}
