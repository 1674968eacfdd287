package values

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

var (
	bigWei   = big.NewInt(params.Wei)
	bigGWei  = big.NewInt(params.GWei)
	bigEther = big.NewInt(params.Ether)

	// unit suffixes accepted by ParseValue, longest first so "gwei" is not
	// taken for "wei"
	valueUnits = []struct {
		suffix     string
		multiplier *big.Int
		decimals   int
	}{
		{"ether", bigEther, 18},
		{"gwei", bigGWei, 9},
		{"eth", bigEther, 18},
		{"wei", bigWei, 0},
	}
)

// Zero is the zero amount.
var Zero = EthValue{}

// EthValue is an unsigned 256-bit amount of wei. The zero value is zero wei.
// EthValue is comparable, two amounts are equal with == iff they hold the same
// number of wei.
type EthValue struct {
	wei uint256.Int
}

func Wei(amount uint64) EthValue {
	return EthValue{wei: *uint256.NewInt(amount)}
}

func Gwei(amount uint64) EthValue {
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(params.GWei))
	return EthValue{wei: *v}
}

func Ether(amount uint64) EthValue {
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(params.Ether))
	return EthValue{wei: *v}
}

// ValueFromBig converts a wei amount. Negative amounts and amounts that do
// not fit in 256 bits are rejected.
func ValueFromBig(wei *big.Int) (EthValue, error) {
	if wei == nil {
		return Zero, nil
	}
	if wei.Sign() < 0 {
		return Zero, ErrNegativeValue
	}
	v, overflow := uint256.FromBig(wei)
	if overflow {
		return Zero, ErrValueOverflow
	}
	return EthValue{wei: *v}, nil
}

func MustValueFromBig(wei *big.Int) EthValue {
	v, err := ValueFromBig(wei)
	if err != nil {
		panic(err)
	}
	return v
}

// ParseValue parses a decimal amount with an optional unit suffix, e.g.
// "150ether", "1.5 ether", "20gwei" or "42" (wei).
func ParseValue(s string) (EthValue, error) {
	str := strings.ToLower(strings.TrimSpace(s))
	multiplier, decimals := bigWei, 0
	for _, unit := range valueUnits {
		if strings.HasSuffix(str, unit.suffix) {
			str = strings.TrimSpace(strings.TrimSuffix(str, unit.suffix))
			multiplier, decimals = unit.multiplier, unit.decimals
			break
		}
	}
	intPart, fracPart, hasFrac := strings.Cut(str, ".")
	if intPart == "" && !hasFrac {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	if len(fracPart) > decimals {
		return Zero, fmt.Errorf("%w: %q has too many decimals", ErrInvalidValue, s)
	}
	digits := intPart + fracPart + strings.Repeat("0", decimals-len(fracPart))
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	wei, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	wei.Mul(wei, multiplier)
	wei.Div(wei, scale)
	return ValueFromBig(wei)
}

// Big returns the amount in wei as a new big.Int.
func (v EthValue) Big() *big.Int {
	return v.wei.ToBig()
}

func (v EthValue) Uint256() *uint256.Int {
	return new(uint256.Int).Set(&v.wei)
}

func (v EthValue) IsZero() bool {
	return v.wei.IsZero()
}

func (v EthValue) Cmp(other EthValue) int {
	return v.wei.Cmp(&other.wei)
}

func (v EthValue) Add(other EthValue) (EthValue, error) {
	sum, overflow := new(uint256.Int).AddOverflow(&v.wei, &other.wei)
	if overflow {
		return Zero, ErrValueOverflow
	}
	return EthValue{wei: *sum}, nil
}

func (v EthValue) Sub(other EthValue) (EthValue, error) {
	diff, underflow := new(uint256.Int).SubOverflow(&v.wei, &other.wei)
	if underflow {
		return Zero, ErrNegativeValue
	}
	return EthValue{wei: *diff}, nil
}

// String returns the amount in wei.
func (v EthValue) String() string {
	return v.wei.Dec()
}

// EtherString formats the amount in ether without trailing zeros.
func (v EthValue) EtherString() string {
	quo, rem := new(big.Int).QuoRem(v.Big(), bigEther, new(big.Int))
	if rem.Sign() == 0 {
		return quo.String() + " ether"
	}
	frac := rem.String()
	frac = strings.TrimRight(strings.Repeat("0", 18-len(frac))+frac, "0")
	return quo.String() + "." + frac + " ether"
}
