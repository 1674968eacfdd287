package values

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// EthAccount is a signing identity. The private key never leaves the account
// except through PrivateKey, which is only called by backends that sign.
type EthAccount struct {
	key     *ecdsa.PrivateKey
	address EthAddress
}

func NewAccount(key *ecdsa.PrivateKey) *EthAccount {
	return &EthAccount{
		key:     key,
		address: EthAddress(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

// AccountFromSeed derives a deterministic account whose private key is the
// keccak256 hash of the seed. Only meant for tests and private networks.
func AccountFromSeed(seed string) (*EthAccount, error) {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte(seed)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewAccount(key), nil
}

func MustAccountFromSeed(seed string) *EthAccount {
	account, err := AccountFromSeed(seed)
	if err != nil {
		panic(err)
	}
	return account
}

func AccountFromHex(hexkey string) (*EthAccount, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexkey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewAccount(key), nil
}

func GenerateAccount() (*EthAccount, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return NewAccount(key), nil
}

func (a *EthAccount) Address() EthAddress {
	return a.address
}

func (a *EthAccount) PrivateKey() *ecdsa.PrivateKey {
	return a.key
}

func (a *EthAccount) String() string {
	return a.address.Hex()
}
