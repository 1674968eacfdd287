package convert

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Wire values are the primitive representation exchanged with the ABI
// encoder. A wire value is always one of:
//
//	*big.Int        every integer type, enum ordinals, timestamps, amounts
//	bool
//	string
//	[]byte          dynamic and fixed size byte strings
//	common.Address
//	[]any           ordered sequences, sets and tuples (records)
//	nil             no value (void results)

// sortWire orders the elements of an encoded set so equal sets always
// produce the same wire value. Mixed or unordered element kinds are kept in
// iteration order.
func sortWire(elems []any) {
	if len(elems) < 2 {
		return
	}
	switch elems[0].(type) {
	case *big.Int:
		for _, e := range elems {
			if _, ok := e.(*big.Int); !ok {
				return
			}
		}
		sort.Slice(elems, func(i, j int) bool { return elems[i].(*big.Int).Cmp(elems[j].(*big.Int)) < 0 })
	case string:
		for _, e := range elems {
			if _, ok := e.(string); !ok {
				return
			}
		}
		sort.Slice(elems, func(i, j int) bool { return elems[i].(string) < elems[j].(string) })
	case common.Address:
		for _, e := range elems {
			if _, ok := e.(common.Address); !ok {
				return
			}
		}
		sort.Slice(elems, func(i, j int) bool {
			a, b := elems[i].(common.Address), elems[j].(common.Address)
			return bytes.Compare(a[:], b[:]) < 0
		})
	case []byte:
		for _, e := range elems {
			if _, ok := e.([]byte); !ok {
				return
			}
		}
		sort.Slice(elems, func(i, j int) bool { return bytes.Compare(elems[i].([]byte), elems[j].([]byte)) < 0 })
	}
}
