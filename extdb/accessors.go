//
// Created on 2023/2/21 by khanghh
// Project: github.com/verichains/ethproxy
// Copyright (c) 2023 Verichains Lab
//

package extdb

import (
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
)

func ReadSchemaVersion(db ethdb.KeyValueReader) (uint64, bool) {
	data, _ := db.Get(SchemaVersionKey)
	if len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}

func WriteSchemaVersion(db ethdb.KeyValueWriter, version uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], version)
	if err := db.Put(SchemaVersionKey, buf[:]); err != nil {
		log.Crit("Failed to store schema version", "err", err)
	}
}

func HasContract(db ethdb.KeyValueReader, name string) bool {
	ok, _ := db.Has(contractABIKey(name))
	return ok
}

func ReadContractABI(db ethdb.KeyValueReader, name string) []byte {
	data, _ := db.Get(contractABIKey(name))
	return data
}

func WriteContractABI(db ethdb.KeyValueWriter, name string, abiJSON []byte) {
	if err := db.Put(contractABIKey(name), abiJSON); err != nil {
		log.Crit("Failed to store contract abi", "name", name, "err", err)
	}
}

func ReadContractCode(db ethdb.KeyValueReader, name string) []byte {
	data, _ := db.Get(contractCodeKey(name))
	return data
}

func WriteContractCode(db ethdb.KeyValueWriter, name string, code []byte) {
	if len(code) == 0 {
		return
	}
	if err := db.Put(contractCodeKey(name), code); err != nil {
		log.Crit("Failed to store contract code", "name", name, "err", err)
	}
}

func DeleteContract(db ethdb.KeyValueWriter, name string) {
	if err := db.Delete(contractABIKey(name)); err != nil {
		log.Crit("Failed to delete contract abi", "name", name, "err", err)
	}
	if err := db.Delete(contractCodeKey(name)); err != nil {
		log.Crit("Failed to delete contract code", "name", name, "err", err)
	}
}

// ReadBoundContract returns the name of the contract deployed at addr, or an
// empty string when the address is unknown.
func ReadBoundContract(db ethdb.KeyValueReader, addr common.Address) string {
	data, _ := db.Get(boundAddressKey(addr))
	return string(data)
}

func WriteBoundContract(db ethdb.KeyValueWriter, addr common.Address, name string) {
	if err := db.Put(boundAddressKey(addr), []byte(name)); err != nil {
		log.Crit("Failed to store bound contract", "address", addr, "err", err)
	}
}

// ReadMethodSignatures returns every known signature with the given 4-byte
// selector. Collisions are rare but legal, hence the list.
func ReadMethodSignatures(db ethdb.KeyValueReader, selector []byte) []string {
	data, _ := db.Get(fourBytesKey(selector))
	if len(data) == 0 {
		return nil
	}
	var sigs []string
	if err := json.Unmarshal(data, &sigs); err != nil {
		log.Error("Invalid method signature entry", "selector", common.Bytes2Hex(selector), "err", err)
		return nil
	}
	return sigs
}

func WriteMethodSignatures(db ethdb.KeyValueWriter, selector []byte, sigs []string) {
	data, err := json.Marshal(sigs)
	if err != nil {
		log.Crit("Failed to encode method signatures", "err", err)
	}
	if err := db.Put(fourBytesKey(selector), data); err != nil {
		log.Crit("Failed to store method signatures", "selector", common.Bytes2Hex(selector), "err", err)
	}
}
