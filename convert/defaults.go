package convert

import (
	"math/big"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/verichains/ethproxy/values"
)

// Void is the result type of methods that return nothing.
type Void struct{}

var VoidType = TypeOf[Void]()

// NewDefaultRegistry returns a registry preloaded with converters for the
// value objects and the common standard library types.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	// Times travel as whole unix seconds. Sub-second precision and the
	// location are dropped; decoded times are in UTC.
	RegisterInputOf(r, func(t time.Time) (any, error) {
		return big.NewInt(t.Unix()), nil
	})
	RegisterOutputOf(r, func(wire any) (time.Time, error) {
		n, ok := wire.(*big.Int)
		if !ok || !n.IsInt64() {
			return time.Time{}, mismatch(TypeOf[time.Time](), wire)
		}
		return time.Unix(n.Int64(), 0).UTC(), nil
	})

	RegisterInputOf(r, func(n *big.Int) (any, error) {
		if n == nil {
			return nil, &ConversionError{Type: bigIntType, Err: ErrNilValue}
		}
		return new(big.Int).Set(n), nil
	})
	RegisterOutputOf(r, func(wire any) (*big.Int, error) {
		n, ok := wire.(*big.Int)
		if !ok {
			return nil, mismatch(bigIntType, wire)
		}
		return new(big.Int).Set(n), nil
	})

	RegisterInputOf(r, func(a common.Address) (any, error) {
		return a, nil
	})
	RegisterOutputOf(r, func(wire any) (common.Address, error) {
		return wireAddress(wire)
	})
	RegisterInputOf(r, func(a values.EthAddress) (any, error) {
		return a.Common(), nil
	})
	RegisterOutputOf(r, func(wire any) (values.EthAddress, error) {
		a, err := wireAddress(wire)
		return values.AddressOf(a), err
	})
	RegisterInputOf(r, func(acc *values.EthAccount) (any, error) {
		if acc == nil {
			return nil, &ConversionError{Type: TypeOf[*values.EthAccount](), Err: ErrNilValue}
		}
		return acc.Address().Common(), nil
	})

	RegisterInputOf(r, func(h common.Hash) (any, error) {
		return h.Bytes(), nil
	})
	RegisterOutputOf(r, func(wire any) (common.Hash, error) {
		b, ok := wire.([]byte)
		if !ok || len(b) != common.HashLength {
			return common.Hash{}, mismatch(TypeOf[common.Hash](), wire)
		}
		return common.BytesToHash(b), nil
	})

	RegisterInputOf(r, func(v values.EthValue) (any, error) {
		return v.Big(), nil
	})
	RegisterOutputOf(r, func(wire any) (values.EthValue, error) {
		n, ok := wire.(*big.Int)
		if !ok {
			return values.Zero, mismatch(TypeOf[values.EthValue](), wire)
		}
		v, err := values.ValueFromBig(n)
		if err != nil {
			return values.Zero, &ConversionError{Type: TypeOf[values.EthValue](), Wire: wire, Err: err}
		}
		return v, nil
	})

	r.RegisterOutput(VoidType, func(_ *Registry, _ any, _ reflect.Type) (reflect.Value, error) {
		return reflect.ValueOf(Void{}), nil
	})

	RegisterSet[int](r)
	RegisterSet[int64](r)
	RegisterSet[uint64](r)
	RegisterSet[string](r)
	RegisterSet[values.EthAddress](r)
	return r
}

func wireAddress(wire any) (common.Address, error) {
	switch w := wire.(type) {
	case common.Address:
		return w, nil
	case []byte:
		if len(w) == common.AddressLength {
			return common.BytesToAddress(w), nil
		}
	}
	return common.Address{}, mismatch(TypeOf[common.Address](), wire)
}
