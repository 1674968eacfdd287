package abiutils

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// PackCall encodes a method call: selector followed by the packed wire
// arguments.
func PackCall(method *abi.Method, wires []any) ([]byte, error) {
	args, err := PackArguments(method.Inputs, wires)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", method.Name, err)
	}
	data := make([]byte, 0, len(method.ID)+len(args))
	data = append(data, method.ID...)
	return append(data, args...), nil
}

// PackArguments adapts wire values to the Go types the ABI encoder expects and
// packs them.
func PackArguments(args abi.Arguments, wires []any) ([]byte, error) {
	if len(args) != len(wires) {
		return nil, fmt.Errorf("%w: want %d, got %d", ErrArgumentCount, len(args), len(wires))
	}
	vals := make([]any, len(wires))
	for i, w := range wires {
		v, err := ToABIValue(args[i].Type, w)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		vals[i] = v
	}
	return args.Pack(vals...)
}

// UnpackResult decodes the return data of a method into a wire value: nil
// for no outputs, the single value for one output and a []any tuple for
// several.
func UnpackResult(method *abi.Method, data []byte) (any, error) {
	if len(method.Outputs) == 0 {
		return nil, nil
	}
	vals, err := method.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("method %s: %w", method.Name, err)
	}
	if len(vals) != len(method.Outputs) {
		return nil, fmt.Errorf("method %s: %w", method.Name, ErrArgumentCount)
	}
	wires := make([]any, len(vals))
	for i, v := range vals {
		w, err := FromABIValue(method.Outputs[i].Type, v)
		if err != nil {
			return nil, fmt.Errorf("method %s output %d: %w", method.Name, i, err)
		}
		wires[i] = w
	}
	if len(wires) == 1 {
		return wires[0], nil
	}
	return wires, nil
}

// UnpackArguments decodes packed call arguments (without selector) into wire
// values.
func UnpackArguments(args abi.Arguments, data []byte) ([]any, error) {
	vals, err := args.Unpack(data)
	if err != nil {
		return nil, err
	}
	wires := make([]any, len(vals))
	for i, v := range vals {
		if wires[i], err = FromABIValue(args[i].Type, v); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return wires, nil
}

func wireError(t abi.Type, w any) error {
	return fmt.Errorf("%w: %T for %s", ErrWireType, w, t.String())
}

// ToABIValue converts a wire value to the Go value the ABI encoder packs for
// t, e.g. uint8 for uint8, *big.Int for uint256 and generated structs for
// tuples.
func ToABIValue(t abi.Type, w any) (any, error) {
	v, err := toABIValue(t, w)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

func toABIValue(t abi.Type, w any) (reflect.Value, error) {
	goType := t.GetType()
	out := reflect.New(goType).Elem()
	switch t.T {
	case abi.IntTy, abi.UintTy:
		n, ok := w.(*big.Int)
		if !ok {
			return reflect.Value{}, wireError(t, w)
		}
		if !fitsInt(n, t.Size, t.T == abi.IntTy) {
			return reflect.Value{}, fmt.Errorf("%w: %v for %s", ErrValueOutOfRange, n, t.String())
		}
		switch goType.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out.SetInt(n.Int64())
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out.SetUint(n.Uint64())
		default:
			out.Set(reflect.ValueOf(new(big.Int).Set(n)))
		}
	case abi.BoolTy:
		b, ok := w.(bool)
		if !ok {
			return reflect.Value{}, wireError(t, w)
		}
		out.SetBool(b)
	case abi.StringTy:
		s, ok := w.(string)
		if !ok {
			return reflect.Value{}, wireError(t, w)
		}
		out.SetString(s)
	case abi.AddressTy:
		switch a := w.(type) {
		case common.Address:
			out.Set(reflect.ValueOf(a))
		case []byte:
			if len(a) != common.AddressLength {
				return reflect.Value{}, wireError(t, w)
			}
			out.Set(reflect.ValueOf(common.BytesToAddress(a)))
		default:
			return reflect.Value{}, wireError(t, w)
		}
	case abi.BytesTy:
		b, ok := w.([]byte)
		if !ok {
			return reflect.Value{}, wireError(t, w)
		}
		out.SetBytes(append([]byte{}, b...))
	case abi.FixedBytesTy, abi.HashTy:
		b, ok := w.([]byte)
		if !ok {
			if a, isAddr := w.(common.Address); isAddr {
				b, ok = a.Bytes(), true
			}
		}
		if !ok || len(b) > out.Len() {
			return reflect.Value{}, wireError(t, w)
		}
		reflect.Copy(out, reflect.ValueOf(b))
	case abi.SliceTy, abi.ArrayTy:
		elems, ok := w.([]any)
		if !ok {
			return reflect.Value{}, wireError(t, w)
		}
		if t.T == abi.ArrayTy {
			if len(elems) != t.Size {
				return reflect.Value{}, fmt.Errorf("%w: want %d elements for %s, got %d", ErrArgumentCount, t.Size, t.String(), len(elems))
			}
		} else {
			out.Set(reflect.MakeSlice(goType, len(elems), len(elems)))
		}
		for i, e := range elems {
			ev, err := toABIValue(*t.Elem, e)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(ev)
		}
	case abi.TupleTy:
		elems, ok := w.([]any)
		if !ok {
			return reflect.Value{}, wireError(t, w)
		}
		if len(elems) != len(t.TupleElems) {
			return reflect.Value{}, fmt.Errorf("%w: want %d fields for %s, got %d", ErrArgumentCount, len(t.TupleElems), t.String(), len(elems))
		}
		for i, e := range elems {
			ev, err := toABIValue(*t.TupleElems[i], e)
			if err != nil {
				return reflect.Value{}, err
			}
			out.Field(i).Set(ev)
		}
	default:
		return reflect.Value{}, fmt.Errorf("%w: unsupported abi type %s", ErrWireType, t.String())
	}
	return out, nil
}

func fitsInt(n *big.Int, bits int, signed bool) bool {
	if !signed {
		return n.Sign() >= 0 && n.BitLen() <= bits
	}
	if n.Sign() >= 0 {
		return n.BitLen() < bits
	}
	// -2^(bits-1) is the smallest value
	abs := new(big.Int).Neg(n)
	abs.Sub(abs, big.NewInt(1))
	return abs.BitLen() < bits
}

// FromABIValue converts a value produced by the ABI decoder back into a wire
// value.
func FromABIValue(t abi.Type, v any) (any, error) {
	return fromABIValue(t, reflect.ValueOf(v))
}

func fromABIValue(t abi.Type, v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: nil for %s", ErrWireType, t.String())
	}
	switch t.T {
	case abi.IntTy, abi.UintTy:
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return big.NewInt(v.Int()), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return new(big.Int).SetUint64(v.Uint()), nil
		}
		if n, ok := v.Interface().(*big.Int); ok && n != nil {
			return new(big.Int).Set(n), nil
		}
	case abi.BoolTy:
		if v.Kind() == reflect.Bool {
			return v.Bool(), nil
		}
	case abi.StringTy:
		if v.Kind() == reflect.String {
			return v.String(), nil
		}
	case abi.AddressTy:
		if a, ok := v.Interface().(common.Address); ok {
			return a, nil
		}
	case abi.BytesTy, abi.FixedBytesTy, abi.HashTy:
		if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			out := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(out), v)
			return out, nil
		}
	case abi.SliceTy, abi.ArrayTy:
		if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
			out := make([]any, v.Len())
			for i := range out {
				e, err := fromABIValue(*t.Elem, v.Index(i))
				if err != nil {
					return nil, err
				}
				out[i] = e
			}
			return out, nil
		}
	case abi.TupleTy:
		if v.Kind() == reflect.Pointer {
			v = v.Elem()
		}
		if v.Kind() == reflect.Struct && v.NumField() == len(t.TupleElems) {
			out := make([]any, len(t.TupleElems))
			for i, elem := range t.TupleElems {
				e, err := fromABIValue(*elem, v.Field(i))
				if err != nil {
					return nil, err
				}
				out[i] = e
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %v for %s", ErrWireType, v.Type(), t.String())
}
