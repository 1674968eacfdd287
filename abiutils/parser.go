package abiutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	lru "github.com/hashicorp/golang-lru"
)

const sigCacheSize = 256

var (
	methodSigRegex = regexp.MustCompile(`^\s*(?:function\s+)?(\w+)\s*\(([^\(\)]*)\)\s*((?:\s*(?:external|public|view|pure|payable|nonpayable))*)(?:\s*returns\s*\(([^\(\)]*)\))?\s*;?\s*$`)
	sigCache, _    = lru.New(sigCacheSize)
)

func parseArguments(str string) (abi.Arguments, error) {
	args := make(abi.Arguments, 0)
	if len(strings.TrimSpace(str)) == 0 {
		return args, nil
	}
	argArr := strings.Split(str, ",")
	for _, arg := range argArr {
		tokens := strings.Fields(arg)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("%w: empty argument", ErrInvalidSignature)
		}
		var name string
		typeStr := tokens[0]
		if len(tokens) > 1 {
			name = tokens[len(tokens)-1] // skip data location keywords such as memory
		}
		argType, err := abi.NewType(typeStr, "", nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		args = append(args, abi.Argument{
			Name: name,
			Type: argType,
		})
	}
	return args, nil
}

// ParseMethodSig parses a human-readable method signature such as
// "balanceOf(address owner) view returns (uint256)" into an ABI entry.
// Tuple parameters are not supported in this form.
func ParseMethodSig(str string) (ABIEntry, error) {
	if cached, ok := sigCache.Get(str); ok {
		return cached.(ABIEntry), nil
	}
	matches := methodSigRegex.FindStringSubmatch(str)
	if matches == nil {
		return ABIEntry{}, fmt.Errorf("%w: %q", ErrInvalidSignature, str)
	}
	inputs, err := parseArguments(matches[2])
	if err != nil {
		return ABIEntry{}, err
	}
	outputs, err := parseArguments(matches[4])
	if err != nil {
		return ABIEntry{}, err
	}
	mutability := "nonpayable"
	for _, modifier := range strings.Fields(matches[3]) {
		switch modifier {
		case "view", "pure", "payable":
			mutability = modifier
		}
	}
	entry := ABIEntry{
		Type:            "function",
		Name:            matches[1],
		Inputs:          inputs,
		Outputs:         outputs,
		StateMutability: mutability,
	}
	sigCache.Add(str, entry)
	return entry, nil
}

// ParseInterface builds a named ABI from human-readable method signatures.
func ParseInterface(name string, sigs ...string) (Interface, error) {
	entries := make([]ABIEntry, 0, len(sigs))
	for _, sig := range sigs {
		entry, err := ParseMethodSig(sig)
		if err != nil {
			return Interface{}, err
		}
		entries = append(entries, entry)
	}
	return NewInterface(name, entries)
}
