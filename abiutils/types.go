package abiutils

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/status-im/keycard-go/hexutils"
)

// MethodId is the 4-byte selector of a contract method.
type MethodId [4]byte

func (id MethodId) String() string {
	return strings.ToLower(hexutils.BytesToHex(id[:]))
}

func (id MethodId) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *MethodId) UnmarshalText(data []byte) error {
	val, err := hex.DecodeString(strings.TrimPrefix(string(data), "0x"))
	if err != nil || len(val) != len(id) {
		return fmt.Errorf("invalid method id %q", data)
	}
	copy(id[:], val)
	return nil
}

// HexToMethodId converts a hex selector, with or without 0x prefix. Invalid
// input yields the zero id.
func HexToMethodId(s string) MethodId {
	id := MethodId{}
	copy(id[:], common.FromHex(s))
	return id
}

// SelectorOf returns the selector of a compiled method.
func SelectorOf(method *abi.Method) MethodId {
	id := MethodId{}
	copy(id[:], method.ID)
	return id
}

func sigToID(sig string) MethodId {
	id := MethodId{}
	hash := crypto.Keccak256([]byte(sig))
	copy(id[:], hash[:4])
	return id
}

// Interface is a named ABI.
type Interface struct {
	abi.ABI
	Name string
}

// NewInterface assembles an ABI out of individual entries. Function entries
// keep their state mutability so callers can tell reads from writes.
func NewInterface(name string, entries []ABIEntry) (Interface, error) {
	methods := make(map[string]abi.Method)
	events := make(map[string]abi.Event)
	errors := make(map[string]abi.Error)
	for _, entry := range entries {
		switch entry.Type {
		case "function", "":
			methodName := overloadedName(entry.Name, func(s string) bool { _, ok := methods[s]; return ok })
			methods[methodName] = entry.Method(methodName)
		case "event":
			events[entry.Name] = abi.NewEvent(entry.Name, entry.Name, entry.Anonymous, entry.Inputs)
		case "error":
			errors[entry.Name] = abi.NewError(entry.Name, entry.Inputs)
		default:
			return Interface{}, fmt.Errorf("invalid abi entry type: %v", entry.Type)
		}
	}
	return Interface{
		ABI: abi.ABI{
			Methods: methods,
			Events:  events,
			Errors:  errors,
		},
		Name: name,
	}, nil
}

// overloadedName picks foo, foo0, foo1, ... the same way abi.JSON names
// overloaded methods.
func overloadedName(rawName string, isAvail func(string) bool) string {
	name := rawName
	for idx := 0; isAvail(name); idx++ {
		name = fmt.Sprintf("%s%d", rawName, idx)
	}
	return name
}

type abiEntryMarshaling struct {
	Type            string               `json:"type"`
	Name            string               `json:"name"`
	Inputs          []argumentMarshaling `json:"inputs"`
	Outputs         []argumentMarshaling `json:"outputs,omitempty"`
	StateMutability string               `json:"stateMutability,omitempty"`
	Anonymous       bool                 `json:"anonymous,omitempty"`
}

type argumentMarshaling struct {
	Name         string               `json:"name"`
	Type         string               `json:"type"`
	InternalType string               `json:"internalType,omitempty"`
	Components   []argumentMarshaling `json:"components,omitempty"`
	Indexed      bool                 `json:"indexed,omitempty"`
}

// ABIEntry is one element of a JSON ABI.
type ABIEntry struct {
	Type    string
	Name    string
	Inputs  []abi.Argument
	Outputs []abi.Argument

	StateMutability string // pure, view, nonpayable or payable; empty means nonpayable
	Anonymous       bool   // events only
}

// EntriesOf lists the entries of a parsed ABI, methods first.
func EntriesOf(contractAbi abi.ABI) []ABIEntry {
	entries := make([]ABIEntry, 0, len(contractAbi.Methods)+len(contractAbi.Events)+len(contractAbi.Errors))
	if contractAbi.Constructor.Type == abi.Constructor {
		entries = append(entries, ABIEntry{
			Type:            "constructor",
			Inputs:          contractAbi.Constructor.Inputs,
			StateMutability: contractAbi.Constructor.StateMutability,
		})
	}
	for _, method := range contractAbi.Methods {
		entries = append(entries, ABIEntry{
			Type:            "function",
			Name:            method.RawName,
			Inputs:          method.Inputs,
			Outputs:         method.Outputs,
			StateMutability: method.StateMutability,
		})
	}
	for _, event := range contractAbi.Events {
		entries = append(entries, ABIEntry{Type: "event", Name: event.RawName, Inputs: event.Inputs, Anonymous: event.Anonymous})
	}
	for _, abiErr := range contractAbi.Errors {
		entries = append(entries, ABIEntry{Type: "error", Name: abiErr.Name, Inputs: abiErr.Inputs})
	}
	return entries
}

// Method compiles a function entry under the given (possibly overloaded) name.
func (e *ABIEntry) Method(name string) abi.Method {
	mutability := e.StateMutability
	if mutability == "" {
		mutability = "nonpayable"
	}
	isConst := mutability == "view" || mutability == "pure"
	isPayable := mutability == "payable"
	return abi.NewMethod(name, e.Name, abi.Function, mutability, isConst, isPayable, e.Inputs, e.Outputs)
}

func (e *ABIEntry) MarshalJSON() ([]byte, error) {
	marshaling := abiEntryMarshaling{
		Type:            e.Type,
		Name:            e.Name,
		Inputs:          []argumentMarshaling{},
		StateMutability: e.StateMutability,
		Anonymous:       e.Anonymous,
	}
	for _, arg := range e.Inputs {
		marshaling.Inputs = append(marshaling.Inputs, marshalArgument(arg))
	}
	for _, arg := range e.Outputs {
		marshaling.Outputs = append(marshaling.Outputs, marshalArgument(arg))
	}
	return json.Marshal(marshaling)
}

func marshalArgument(arg abi.Argument) argumentMarshaling {
	typ, components := marshalType(arg.Type)
	return argumentMarshaling{
		Name:       arg.Name,
		Type:       typ,
		Components: components,
		Indexed:    arg.Indexed,
	}
}

// marshalType renders t the way solc does: tuples become "tuple" plus
// components, keeping any array suffixes.
func marshalType(t abi.Type) (string, []argumentMarshaling) {
	switch t.T {
	case abi.TupleTy:
		components := make([]argumentMarshaling, len(t.TupleElems))
		for i, elem := range t.TupleElems {
			typ, sub := marshalType(*elem)
			components[i] = argumentMarshaling{Name: t.TupleRawNames[i], Type: typ, Components: sub}
		}
		return "tuple", components
	case abi.SliceTy:
		typ, sub := marshalType(*t.Elem)
		return typ + "[]", sub
	case abi.ArrayTy:
		typ, sub := marshalType(*t.Elem)
		return fmt.Sprintf("%s[%d]", typ, t.Size), sub
	}
	return t.String(), nil
}

// Sig returns the canonical signature, e.g. transfer(address,uint256).
func (e *ABIEntry) Sig() string {
	types := make([]string, len(e.Inputs))
	for i, arg := range e.Inputs {
		types[i] = arg.Type.String()
	}
	return fmt.Sprintf("%v(%v)", e.Name, strings.Join(types, ","))
}

func (e *ABIEntry) ID() MethodId {
	return sigToID(e.Sig())
}
