package abiutils

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/verichains/ethproxy/extdb"
)

type signatureList []string

func (list *signatureList) addUnique(sig string) bool {
	for _, entry := range *list {
		if entry == sig {
			return false
		}
	}
	*list = append(*list, sig)
	return true
}

// indexSelectors records the signature of every method of c under its 4-byte
// selector, keeping signatures already known for the same selector.
func indexSelectors(db ethdb.KeyValueStore, batch ethdb.KeyValueWriter, c *CompiledContract) int {
	added := 0
	for _, method := range c.ABI.Methods {
		id := SelectorOf(&method)
		sigs := signatureList(extdb.ReadMethodSignatures(db, id[:]))
		if sigs.addUnique(method.Sig) {
			extdb.WriteMethodSignatures(batch, id[:], sigs)
			added++
		}
	}
	return added
}

// SaveContract stores the ABI and bytecode of c under its name, replacing
// any previous entry.
func SaveContract(db ethdb.KeyValueStore, c *CompiledContract) error {
	raw := c.RawABI
	if len(raw) == 0 {
		entries := EntriesOf(c.ABI)
		ptrs := make([]*ABIEntry, len(entries))
		for i := range entries {
			ptrs[i] = &entries[i]
		}
		var err error
		if raw, err = json.Marshal(ptrs); err != nil {
			return err
		}
	}
	batch := db.NewBatch()
	extdb.WriteContractABI(batch, c.Name, raw)
	extdb.WriteContractCode(batch, c.Name, c.Bin)
	log.Debug("Indexed method selectors", "contract", c.Name, "added", indexSelectors(db, batch, c))
	return batch.Write()
}

// LoadContract reads a contract stored with SaveContract.
func LoadContract(db ethdb.KeyValueReader, name string) (*CompiledContract, error) {
	raw := extdb.ReadContractABI(db, name)
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownContract, name)
	}
	c, err := NewCompiledContract(name, raw, "")
	if err != nil {
		return nil, err
	}
	c.Bin = extdb.ReadContractCode(db, name)
	return c, nil
}

// ListContracts returns the names of all stored contracts in key order.
func ListContracts(db ethdb.Iteratee) ([]string, error) {
	it := extdb.NewContractIterator(db)
	defer it.Release()
	names := make([]string, 0)
	for it.Next() {
		names = append(names, it.Name())
	}
	return names, it.Error()
}

// BindAddress remembers that the contract called name lives at addr.
func BindAddress(db ethdb.KeyValueWriter, addr common.Address, name string) {
	extdb.WriteBoundContract(db, addr, name)
}

// ResolveAddress loads the contract bound to addr.
func ResolveAddress(db ethdb.KeyValueReader, addr common.Address) (*CompiledContract, error) {
	name := extdb.ReadBoundContract(db, addr)
	if name == "" {
		return nil, fmt.Errorf("%w: no contract bound to %s", ErrUnknownContract, addr.Hex())
	}
	return LoadContract(db, name)
}

// LookupSelector returns the known signatures for a selector.
func LookupSelector(db ethdb.KeyValueReader, id MethodId) []string {
	return extdb.ReadMethodSignatures(db, id[:])
}

// ImportCombinedJSON imports every contract of a solc combined json output.
// Existing contracts are only replaced when override is set.
func ImportCombinedJSON(db ethdb.KeyValueStore, reader io.Reader, override bool) (int, error) {
	contracts, err := ParseCombinedJSON(reader)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(contracts))
	for name := range contracts {
		names = append(names, name)
	}
	sort.Strings(names)

	imported := 0
	for _, name := range names {
		if !override && extdb.HasContract(db, name) {
			log.Debug("Skipping known contract", "name", name)
			continue
		}
		if err := SaveContract(db, contracts[name]); err != nil {
			log.Error("Could not import contract", "name", name, "error", err)
			return imported, err
		}
		imported++
	}
	log.Info(fmt.Sprintf("Imported %d contracts", imported), "total", len(contracts))
	return imported, nil
}
