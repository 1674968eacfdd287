//
// Created on 2023/2/22 by khanghh
// Project: github.com/verichains/ethproxy
// Copyright (c) 2023 Verichains Lab
//

package extdb

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
)

// ContractIterator walks the stored contracts in key order.
type ContractIterator struct {
	it ethdb.Iterator
}

func NewContractIterator(db ethdb.Iteratee) *ContractIterator {
	return &ContractIterator{it: db.NewIterator(ContractABIPrefix, nil)}
}

func (it *ContractIterator) Next() bool {
	return it.it.Next()
}

func (it *ContractIterator) Name() string {
	return string(it.it.Key()[len(ContractABIPrefix):])
}

func (it *ContractIterator) ABI() []byte {
	return it.it.Value()
}

func (it *ContractIterator) Error() error {
	return it.it.Error()
}

func (it *ContractIterator) Release() {
	it.it.Release()
}

// BoundAddressIterator walks the address -> contract name bindings.
type BoundAddressIterator struct {
	it ethdb.Iterator
}

func NewBoundAddressIterator(db ethdb.Iteratee) *BoundAddressIterator {
	return &BoundAddressIterator{it: db.NewIterator(BoundAddressPrefix, nil)}
}

func (it *BoundAddressIterator) Next() bool {
	for it.it.Next() {
		if len(it.it.Key()) == len(BoundAddressPrefix)+common.AddressLength {
			return true
		}
	}
	return false
}

func (it *BoundAddressIterator) Address() common.Address {
	return common.BytesToAddress(it.it.Key()[len(BoundAddressPrefix):])
}

func (it *BoundAddressIterator) Name() string {
	return string(it.it.Value())
}

func (it *BoundAddressIterator) Error() error {
	return it.it.Error()
}

func (it *BoundAddressIterator) Release() {
	it.it.Release()
}
