package convert

import (
	"math/big"
	"reflect"
	"sync"
	"sync/atomic"
)

// InputFunc converts an application value into a wire value.
type InputFunc func(r *Registry, v reflect.Value) (any, error)

// OutputFunc converts a wire value into an application value of type target.
type OutputFunc func(r *Registry, wire any, target reflect.Type) (reflect.Value, error)

// WireMarshaler is implemented by application types that know their own wire
// representation.
type WireMarshaler interface {
	MarshalWire() (any, error)
}

// WireUnmarshaler is implemented by pointers to application types that can
// rebuild themselves from a wire value.
type WireUnmarshaler interface {
	UnmarshalWire(wire any) error
}

var (
	wireMarshalerType   = reflect.TypeFor[WireMarshaler]()
	wireUnmarshalerType = reflect.TypeFor[WireUnmarshaler]()
	bigIntType          = reflect.TypeFor[*big.Int]()
)

// TypeOf returns the type-identity token used as a registry key.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Registry maps application types to converters in both directions. Lookups
// try the exact type first and fall back to the capabilities of the type.
//
// Registration is meant for the configuration phase. Once sealed the registry
// is read-only and may be used from any number of goroutines without locking.
type Registry struct {
	inputs  map[reflect.Type]InputFunc
	outputs map[reflect.Type]OutputFunc
	lock    sync.RWMutex // guards the maps until sealed
	sealed  atomic.Bool
}

// NewRegistry returns an empty registry that only knows the capability
// based conversions.
func NewRegistry() *Registry {
	return &Registry{
		inputs:  make(map[reflect.Type]InputFunc),
		outputs: make(map[reflect.Type]OutputFunc),
	}
}

// RegisterInput installs the input converter for t, replacing any previous one.
func (r *Registry) RegisterInput(t reflect.Type, fn InputFunc) {
	if r.sealed.Load() {
		panic(ErrRegistrySealed)
	}
	r.lock.Lock()
	r.inputs[t] = fn
	r.lock.Unlock()
}

// RegisterOutput installs the output converter for t, replacing any previous one.
func (r *Registry) RegisterOutput(t reflect.Type, fn OutputFunc) {
	if r.sealed.Load() {
		panic(ErrRegistrySealed)
	}
	r.lock.Lock()
	r.outputs[t] = fn
	r.lock.Unlock()
}

// Seal freezes the registry. Further registrations panic.
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

func (r *Registry) inputFor(t reflect.Type) (InputFunc, bool) {
	if r.sealed.Load() {
		fn, ok := r.inputs[t]
		return fn, ok
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	fn, ok := r.inputs[t]
	return fn, ok
}

func (r *Registry) outputFor(t reflect.Type) (OutputFunc, bool) {
	if r.sealed.Load() {
		fn, ok := r.outputs[t]
		return fn, ok
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	fn, ok := r.outputs[t]
	return fn, ok
}

// HasInput reports whether values of type t can be encoded.
func (r *Registry) HasInput(t reflect.Type) bool {
	return r.supports(t, Input, 0)
}

// HasOutput reports whether wire values can be decoded into type t.
func (r *Registry) HasOutput(t reflect.Type) bool {
	return r.supports(t, Output, 0)
}

func (r *Registry) supports(t reflect.Type, dir Direction, depth int) bool {
	if depth > 16 {
		return false
	}
	if dir == Input {
		if _, ok := r.inputFor(t); ok {
			return true
		}
		if t.Implements(wireMarshalerType) || isSetLike(t) {
			return true
		}
	} else {
		if _, ok := r.outputFor(t); ok {
			return true
		}
		if reflect.PointerTo(t).Implements(wireUnmarshalerType) {
			return true
		}
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Bool, reflect.String:
		return true
	case reflect.Interface:
		return t.NumMethod() == 0 || dir == Input
	case reflect.Pointer:
		return r.supports(t.Elem(), dir, depth+1)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return true
		}
		return r.supports(t.Elem(), dir, depth+1)
	case reflect.Map:
		return isSetType(t) && r.supports(t.Key(), dir, depth+1)
	}
	return false
}

// Encode converts an application value into its wire value. Nothing is
// modified when the type is unsupported.
func (r *Registry) Encode(v any) (any, error) {
	if v == nil {
		return nil, &UnsupportedTypeError{Direction: Input}
	}
	return r.EncodeValue(reflect.ValueOf(v))
}

// EncodeValue is the reflect.Value form of Encode.
func (r *Registry) EncodeValue(v reflect.Value) (any, error) {
	t := v.Type()
	if fn, ok := r.inputFor(t); ok {
		return fn(r, v)
	}
	if t.Implements(wireMarshalerType) {
		if t.Kind() == reflect.Pointer && v.IsNil() {
			return nil, &ConversionError{Type: t, Err: ErrNilValue}
		}
		return v.Interface().(WireMarshaler).MarshalWire()
	}
	if isSetLike(t) {
		return r.encodeSetLike(v)
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, &ConversionError{Type: t, Err: ErrNilValue}
		}
		return r.EncodeValue(v.Elem())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(v.Uint()), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			out := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(out), v)
			return out, nil
		}
		return r.encodeSequence(v)
	case reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			out := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(out), v)
			return out, nil
		}
		return r.encodeSequence(v)
	case reflect.Map:
		if isSetType(t) {
			return r.encodeSet(v)
		}
	}
	return nil, &UnsupportedTypeError{Type: t, Direction: Input}
}

// Decode converts a wire value into an application value of type target.
func (r *Registry) Decode(wire any, target reflect.Type) (any, error) {
	v, err := r.DecodeValue(wire, target)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// DecodeAs is the typed form of Decode.
func DecodeAs[T any](r *Registry, wire any) (T, error) {
	var zero T
	v, err := r.DecodeValue(wire, TypeOf[T]())
	if err != nil {
		return zero, err
	}
	out, _ := v.Interface().(T)
	return out, nil
}

// DecodeValue is the reflect.Value form of Decode. The returned value always
// has exactly the type target.
func (r *Registry) DecodeValue(wire any, target reflect.Type) (reflect.Value, error) {
	if fn, ok := r.outputFor(target); ok {
		return fn(r, wire, target)
	}
	if reflect.PointerTo(target).Implements(wireUnmarshalerType) {
		ptr := reflect.New(target)
		if err := ptr.Interface().(WireUnmarshaler).UnmarshalWire(wire); err != nil {
			return reflect.Value{}, &ConversionError{Type: target, Wire: wire, Err: err}
		}
		return ptr.Elem(), nil
	}
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Pointer:
		elem, err := r.DecodeValue(wire, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	case reflect.Interface:
		if target.NumMethod() != 0 {
			break
		}
		if wire != nil {
			out.Set(reflect.ValueOf(wire))
		}
		return out, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := wire.(*big.Int)
		if !ok {
			return reflect.Value{}, mismatch(target, wire)
		}
		if !n.IsInt64() || out.OverflowInt(n.Int64()) {
			return reflect.Value{}, &ConversionError{Type: target, Wire: wire, Err: ErrOverflow}
		}
		out.SetInt(n.Int64())
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := wire.(*big.Int)
		if !ok {
			return reflect.Value{}, mismatch(target, wire)
		}
		if !n.IsUint64() || out.OverflowUint(n.Uint64()) {
			return reflect.Value{}, &ConversionError{Type: target, Wire: wire, Err: ErrOverflow}
		}
		out.SetUint(n.Uint64())
		return out, nil
	case reflect.Bool:
		b, ok := wire.(bool)
		if !ok {
			return reflect.Value{}, mismatch(target, wire)
		}
		out.SetBool(b)
		return out, nil
	case reflect.String:
		s, ok := wire.(string)
		if !ok {
			return reflect.Value{}, mismatch(target, wire)
		}
		out.SetString(s)
		return out, nil
	case reflect.Slice:
		if target.Elem().Kind() == reflect.Uint8 {
			b, ok := wireBytes(wire)
			if !ok {
				return reflect.Value{}, mismatch(target, wire)
			}
			out.Set(reflect.MakeSlice(target, len(b), len(b)))
			reflect.Copy(out, reflect.ValueOf(b))
			return out, nil
		}
		return r.decodeSequence(wire, target)
	case reflect.Array:
		if target.Elem().Kind() == reflect.Uint8 {
			b, ok := wireBytes(wire)
			if !ok {
				return reflect.Value{}, mismatch(target, wire)
			}
			if len(b) != target.Len() {
				return reflect.Value{}, &ConversionError{Type: target, Wire: wire, Err: ErrOverflow}
			}
			reflect.Copy(out, reflect.ValueOf(b))
			return out, nil
		}
		return r.decodeSequence(wire, target)
	case reflect.Map:
		if isSetType(target) {
			return r.decodeSet(wire, target)
		}
	}
	return reflect.Value{}, &UnsupportedTypeError{Type: target, Direction: Output}
}

func mismatch(target reflect.Type, wire any) error {
	return &ConversionError{Type: target, Wire: wire, Err: ErrWireMismatch}
}

// wireBytes accepts the byte-string wire forms: []byte and common.Address.
func wireBytes(wire any) ([]byte, bool) {
	switch w := wire.(type) {
	case []byte:
		return w, true
	case interface{ Bytes() []byte }:
		return w.Bytes(), true
	}
	return nil, false
}
