package abiutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CompiledContract is the compiler output needed to talk to a contract: its
// ABI and, for deployable contracts, the creation bytecode.
type CompiledContract struct {
	Name   string
	ABI    abi.ABI
	RawABI []byte
	Bin    []byte
}

// NewCompiledContract parses a JSON ABI and an optional hex bytecode.
func NewCompiledContract(name string, abiJSON []byte, bin string) (*CompiledContract, error) {
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", name, err)
	}
	code, err := decodeBin(bin)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", name, err)
	}
	return &CompiledContract{
		Name:   name,
		ABI:    parsed,
		RawABI: append([]byte(nil), abiJSON...),
		Bin:    code,
	}, nil
}

// ContractFromSignatures builds a contract from human-readable method
// signatures, e.g. "myMethod(uint256) returns (uint256)".
func ContractFromSignatures(name string, sigs ...string) (*CompiledContract, error) {
	entries := make([]*ABIEntry, 0, len(sigs))
	for _, sig := range sigs {
		entry, err := ParseMethodSig(sig)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, err
	}
	return NewCompiledContract(name, raw, "")
}

// LoadABI reads a JSON ABI.
func LoadABI(reader io.Reader) (abi.ABI, error) {
	return abi.JSON(reader)
}

func decodeBin(bin string) ([]byte, error) {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		return nil, nil
	}
	if !strings.HasPrefix(bin, "0x") {
		bin = "0x" + bin
	}
	return hexutil.Decode(bin)
}

// Deployable reports whether the contract carries creation bytecode.
func (c *CompiledContract) Deployable() bool {
	return len(c.Bin) > 0
}

// DeployData returns the creation bytecode followed by the packed
// constructor arguments.
func (c *CompiledContract) DeployData(wires ...any) ([]byte, error) {
	if !c.Deployable() {
		return nil, fmt.Errorf("%w: %s", ErrNoBytecode, c.Name)
	}
	args, err := PackArguments(c.ABI.Constructor.Inputs, wires)
	if err != nil {
		return nil, fmt.Errorf("constructor: %w", err)
	}
	data := make([]byte, 0, len(c.Bin)+len(args))
	data = append(data, c.Bin...)
	return append(data, args...), nil
}

// Method looks up a method by its (possibly overloaded) name.
func (c *CompiledContract) Method(name string) (*abi.Method, bool) {
	method, ok := c.ABI.Methods[name]
	if !ok {
		return nil, false
	}
	return &method, true
}

// MethodNames returns the method names sorted alphabetically.
func (c *CompiledContract) MethodNames() []string {
	names := make([]string, 0, len(c.ABI.Methods))
	for name := range c.ABI.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// combinedJSON is the output of solc --combined-json abi,bin. Older compilers
// emit the abi as a JSON encoded string, newer ones as an array.
type combinedJSON struct {
	Contracts map[string]struct {
		Abi json.RawMessage `json:"abi"`
		Bin string          `json:"bin"`
	} `json:"contracts"`
	Version string `json:"version"`
}

// ParseCombinedJSON parses solc combined json output. Contracts are keyed by
// their name without the source path.
func ParseCombinedJSON(reader io.Reader) (map[string]*CompiledContract, error) {
	var output combinedJSON
	if err := json.NewDecoder(reader).Decode(&output); err != nil {
		return nil, err
	}
	contracts := make(map[string]*CompiledContract, len(output.Contracts))
	for fullName, info := range output.Contracts {
		name := fullName
		if idx := strings.LastIndex(fullName, ":"); idx >= 0 {
			name = fullName[idx+1:]
		}
		abiJSON := []byte(info.Abi)
		var encoded string
		if err := json.Unmarshal(info.Abi, &encoded); err == nil {
			abiJSON = []byte(encoded)
		}
		contract, err := NewCompiledContract(name, abiJSON, info.Bin)
		if err != nil {
			return nil, err
		}
		contracts[name] = contract
	}
	return contracts, nil
}
