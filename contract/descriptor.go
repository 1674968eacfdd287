package contract

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/verichains/ethproxy/convert"
	"github.com/verichains/ethproxy/values"
)

// ReturnKind tells how the result of a contract method is delivered.
type ReturnKind uint8

const (
	// Auto derives the kind from the contract metadata.
	Auto ReturnKind = iota
	// Immediate methods are executed with eth_call and return their value
	// directly.
	Immediate
	// Pending methods are sent as transactions without value and return an
	// *async.Pending.
	Pending
	// PendingPayable methods return an *async.PendingPayable that is only
	// sent once a value is attached.
	PendingPayable
)

func (k ReturnKind) String() string {
	switch k {
	case Auto:
		return "auto"
	case Immediate:
		return "immediate"
	case Pending:
		return "pending"
	case PendingPayable:
		return "payable"
	}
	return fmt.Sprintf("ReturnKind(%d)", uint8(k))
}

// MethodSpec declares one callable method. Name is the method name of the
// contract metadata; overloads carry the suffixed names of the ABI (foo0,
// foo1, ...). A nil Returns means the method returns nothing.
type MethodSpec struct {
	Name    string
	Params  []reflect.Type
	Returns reflect.Type
	Kind    ReturnKind
}

func (m MethodSpec) returnType() reflect.Type {
	if m.Returns == nil {
		return convert.VoidType
	}
	return m.Returns
}

// Param returns the type token of a parameter of type T.
func Param[T any]() reflect.Type {
	return convert.TypeOf[T]()
}

func declare[T any](name string, kind ReturnKind, params []reflect.Type) MethodSpec {
	return MethodSpec{
		Name:    name,
		Params:  append([]reflect.Type(nil), params...),
		Returns: convert.TypeOf[T](),
		Kind:    kind,
	}
}

// ImmediateMethod declares a read returning T.
func ImmediateMethod[T any](name string, params ...reflect.Type) MethodSpec {
	return declare[T](name, Immediate, params)
}

// PendingMethod declares a transaction whose eventual result is T. Use
// convert.Void for methods without result.
func PendingMethod[T any](name string, params ...reflect.Type) MethodSpec {
	return declare[T](name, Pending, params)
}

// PayableMethod declares a payable transaction whose eventual result is T.
func PayableMethod[T any](name string, params ...reflect.Type) MethodSpec {
	return declare[T](name, PendingPayable, params)
}

// AutoMethod declares a method whose kind is derived from the metadata.
func AutoMethod[T any](name string, params ...reflect.Type) MethodSpec {
	return declare[T](name, Auto, params)
}

// Descriptor is the immutable description of a contract interface.
type Descriptor struct {
	name    string
	methods map[string]MethodSpec
	names   []string
}

// NewDescriptor builds a descriptor. Method names must be unique.
func NewDescriptor(name string, methods ...MethodSpec) (*Descriptor, error) {
	d := &Descriptor{name: name, methods: make(map[string]MethodSpec, len(methods))}
	for _, m := range methods {
		if _, exists := d.methods[m.Name]; exists {
			return nil, fmt.Errorf("%w: %s.%s", ErrDuplicateMethod, name, m.Name)
		}
		m.Params = append([]reflect.Type(nil), m.Params...)
		d.methods[m.Name] = m
		d.names = append(d.names, m.Name)
	}
	sort.Strings(d.names)
	return d, nil
}

// MustDescriptor is like NewDescriptor but panics on error.
func MustDescriptor(name string, methods ...MethodSpec) *Descriptor {
	d, err := NewDescriptor(name, methods...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) Name() string {
	return d.name
}

// Method returns a copy of the declaration of name.
func (d *Descriptor) Method(name string) (MethodSpec, bool) {
	m, ok := d.methods[name]
	if ok {
		m.Params = append([]reflect.Type(nil), m.Params...)
	}
	return m, ok
}

// Methods returns the declared method names in sorted order.
func (d *Descriptor) Methods() []string {
	return append([]string(nil), d.names...)
}

// DescriptorFromABI declares every method of meta with the default Go type
// of its ABI types and the kind implied by its state mutability.
func DescriptorFromABI(name string, meta abi.ABI) *Descriptor {
	methods := make([]MethodSpec, 0, len(meta.Methods))
	for _, m := range meta.Methods {
		spec := MethodSpec{Name: m.Name, Kind: Auto}
		for _, in := range m.Inputs {
			spec.Params = append(spec.Params, DefaultType(in.Type))
		}
		switch len(m.Outputs) {
		case 0:
		case 1:
			spec.Returns = DefaultType(m.Outputs[0].Type)
		default:
			spec.Returns = reflect.TypeFor[[]any]()
		}
		methods = append(methods, spec)
	}
	// names in an abi.ABI are unique
	return MustDescriptor(name, methods...)
}

// DefaultType returns the application type used for an ABI type when no
// descriptor says otherwise.
func DefaultType(t abi.Type) reflect.Type {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		return reflect.TypeFor[*big.Int]()
	case abi.BoolTy:
		return reflect.TypeFor[bool]()
	case abi.StringTy:
		return reflect.TypeFor[string]()
	case abi.AddressTy:
		return reflect.TypeFor[values.EthAddress]()
	case abi.SliceTy, abi.ArrayTy:
		return reflect.SliceOf(DefaultType(*t.Elem))
	case abi.TupleTy:
		return reflect.TypeFor[[]any]()
	}
	return reflect.TypeFor[[]byte]()
}
