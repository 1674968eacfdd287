package extdb

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractAccessors(t *testing.T) {
	db, err := OpenDatabase("", 0, 0, false)
	require.NoError(t, err)
	defer db.Close()

	version, ok := ReadSchemaVersion(db)
	require.True(t, ok)
	assert.Equal(t, SchemaVersion, version)

	assert.False(t, HasContract(db, "Token"))
	WriteContractABI(db, "Token", []byte(`[]`))
	WriteContractCode(db, "Token", []byte{0x60, 0x80})
	WriteContractABI(db, "Vault", []byte(`[{"type":"fallback"}]`))
	assert.True(t, HasContract(db, "Token"))
	assert.Equal(t, []byte{0x60, 0x80}, ReadContractCode(db, "Token"))
	assert.Nil(t, ReadContractCode(db, "Vault"))

	var names []string
	it := NewContractIterator(db)
	for it.Next() {
		names = append(names, it.Name())
	}
	require.NoError(t, it.Error())
	it.Release()
	assert.Equal(t, []string{"Token", "Vault"}, names)

	DeleteContract(db, "Token")
	assert.False(t, HasContract(db, "Token"))
	assert.Nil(t, ReadContractCode(db, "Token"))
}

func TestBoundAddresses(t *testing.T) {
	db, err := OpenDatabase("", 0, 0, false)
	require.NoError(t, err)
	defer db.Close()

	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	WriteBoundContract(db, b, "Vault")
	WriteBoundContract(db, a, "Token")
	assert.Equal(t, "Token", ReadBoundContract(db, a))
	assert.Equal(t, "", ReadBoundContract(db, common.HexToAddress("0x03")))

	bound := map[common.Address]string{}
	it := NewBoundAddressIterator(db)
	defer it.Release()
	for it.Next() {
		bound[it.Address()] = it.Name()
	}
	assert.Equal(t, map[common.Address]string{a: "Token", b: "Vault"}, bound)
}

func TestMethodSignaturesAndInspect(t *testing.T) {
	db, err := OpenDatabase("", 0, 0, false)
	require.NoError(t, err)
	defer db.Close()

	selector := []byte{0xa9, 0x05, 0x9c, 0xbb}
	assert.Nil(t, ReadMethodSignatures(db, selector))
	WriteMethodSignatures(db, selector, []string{"transfer(address,uint256)"})
	assert.Equal(t, []string{"transfer(address,uint256)"}, ReadMethodSignatures(db, selector))

	WriteContractABI(db, "Token", []byte(`[]`))
	var out bytes.Buffer
	require.NoError(t, InspectDatabase(db, &out))
	assert.Contains(t, out.String(), "Method Signatures")
	assert.Contains(t, out.String(), "Contract ABIs")
}

func TestOpenDatabaseOnDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := OpenDatabase(dir, 16, 16, false)
	require.NoError(t, err)
	WriteContractABI(db, "Token", []byte(`[]`))
	require.NoError(t, db.Close())

	db, err = OpenDatabase(dir, 16, 16, true)
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, HasContract(db, "Token"))
}
