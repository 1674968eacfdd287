package extdb

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
)

const namespace = "ethproxy/db/"

// OpenDatabase opens the metadata store kept in dir. An empty dir gives an
// ephemeral in-memory store.
func OpenDatabase(dir string, cache int, handles int, readonly bool) (ethdb.KeyValueStore, error) {
	var db ethdb.KeyValueStore
	if dir == "" {
		db = memorydb.New()
	} else {
		ldb, err := leveldb.New(dir, cache, handles, namespace, readonly)
		if err != nil {
			return nil, err
		}
		db = ldb
	}
	version, ok := ReadSchemaVersion(db)
	switch {
	case !ok && !readonly:
		WriteSchemaVersion(db, SchemaVersion)
	case ok && version != SchemaVersion:
		db.Close()
		return nil, fmt.Errorf("unsupported database schema version %d, want %d", version, SchemaVersion)
	}
	return db, nil
}

// category accumulates the keys of one kind of record.
type category struct {
	name  string
	match func(key []byte) bool
	size  common.StorageSize
	items uint64
}

func hasPrefixLen(prefix []byte, n int) func([]byte) bool {
	return func(key []byte) bool {
		return bytes.HasPrefix(key, prefix) && (n < 0 || len(key) == len(prefix)+n)
	}
}

// InspectDatabase walks the whole store and writes a size table per record
// kind to w.
func InspectDatabase(db ethdb.Iteratee, w io.Writer) error {
	categories := []*category{
		{name: "Contract ABIs", match: hasPrefixLen(ContractABIPrefix, -1)},
		{name: "Contract Bytecodes", match: hasPrefixLen(ContractCodePrefix, -1)},
		{name: "Bound Addresses", match: hasPrefixLen(BoundAddressPrefix, common.AddressLength)},
		{name: "Method Signatures", match: hasPrefixLen(FourBytesMethodPrefix, 4)},
		{name: "Metadata", match: func(key []byte) bool { return bytes.Equal(key, SchemaVersionKey) }},
	}
	var (
		unknown = &category{name: "Unaccounted"}
		total   common.StorageSize
		seen    uint64
		start   = time.Now()
		logged  = start
	)
	it := db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		key := it.Key()
		size := common.StorageSize(len(key) + len(it.Value()))
		total += size

		target := unknown
		for _, c := range categories {
			if c.match(key) {
				target = c
				break
			}
		}
		target.size += size
		target.items++

		if seen++; seen%1000 == 0 && time.Since(logged) > 8*time.Second {
			log.Info("Inspecting contract store", "items", seen, "elapsed", common.PrettyDuration(time.Since(start)))
			logged = time.Now()
		}
	}
	if err := it.Error(); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Store", "Category", "Size", "Items"})
	for _, c := range categories {
		table.Append([]string{"Contracts", c.name, c.size.String(), strconv.FormatUint(c.items, 10)})
	}
	table.SetFooter([]string{"", "Total", total.String(), strconv.FormatUint(seen, 10)})
	table.Render()

	if unknown.items > 0 {
		log.Warn("Contract store holds unknown keys", "size", unknown.size, "items", unknown.items)
	}
	return nil
}
