package convert

import (
	"fmt"
	"math/big"
	"reflect"
)

// RegisterInputOf installs a typed input converter for T.
func RegisterInputOf[T any](r *Registry, fn func(T) (any, error)) {
	r.RegisterInput(TypeOf[T](), func(_ *Registry, v reflect.Value) (any, error) {
		return fn(v.Interface().(T))
	})
}

// RegisterOutputOf installs a typed output converter for T.
func RegisterOutputOf[T any](r *Registry, fn func(wire any) (T, error)) {
	t := TypeOf[T]()
	r.RegisterOutput(t, func(_ *Registry, wire any, _ reflect.Type) (reflect.Value, error) {
		v, err := fn(wire)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(&v).Elem(), nil
	})
}

// RegisterEnum installs ordinal converters for an enumeration. The wire value
// of a constant is its position in values.
func RegisterEnum[T comparable](r *Registry, values ...T) {
	t := TypeOf[T]()
	consts := append([]T(nil), values...)
	r.RegisterInput(t, func(_ *Registry, v reflect.Value) (any, error) {
		val := v.Interface().(T)
		for i, c := range consts {
			if c == val {
				return big.NewInt(int64(i)), nil
			}
		}
		return nil, &ConversionError{Type: t, Wire: val, Err: ErrUnknownEnumValue}
	})
	r.RegisterOutput(t, func(_ *Registry, wire any, _ reflect.Type) (reflect.Value, error) {
		n, ok := wire.(*big.Int)
		if !ok {
			return reflect.Value{}, mismatch(t, wire)
		}
		if n.Sign() < 0 || !n.IsInt64() || n.Int64() >= int64(len(consts)) {
			return reflect.Value{}, &ConversionError{Type: t, Wire: wire, Err: ErrEnumOrdinal}
		}
		return reflect.ValueOf(&consts[n.Int64()]).Elem(), nil
	})
}

// Field is one named component of a record.
type Field struct {
	Name string
	Type reflect.Type
}

func FieldOf[T any](name string) Field {
	return Field{Name: name, Type: TypeOf[T]()}
}

// RecordSpec describes how a record type is taken apart and rebuilt. Values
// must return the field values in the order of Fields, and New receives the
// decoded field values in that same order.
type RecordSpec[T any] struct {
	Fields []Field
	New    func(values []any) (T, error)
	Values func(rec T) []any
}

// RegisterRecord installs tuple converters for the record type T. A record is
// encoded as a []any with one wire value per field, so nested records and
// collections of records compose.
func RegisterRecord[T any](r *Registry, spec RecordSpec[T]) {
	t := TypeOf[T]()
	fields := append([]Field(nil), spec.Fields...)
	r.RegisterInput(t, func(r *Registry, v reflect.Value) (any, error) {
		vals := spec.Values(v.Interface().(T))
		if len(vals) != len(fields) {
			return nil, &ConversionError{Type: t, Wire: vals, Err: ErrFieldCount}
		}
		out := make([]any, len(vals))
		for i, val := range vals {
			fv := reflect.ValueOf(val)
			if !fv.IsValid() {
				fv = reflect.Zero(fields[i].Type)
			}
			w, err := r.EncodeValue(fv)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fields[i].Name, err)
			}
			out[i] = w
		}
		return out, nil
	})
	r.RegisterOutput(t, func(r *Registry, wire any, _ reflect.Type) (reflect.Value, error) {
		elems, ok := wire.([]any)
		if !ok {
			return reflect.Value{}, mismatch(t, wire)
		}
		if len(elems) != len(fields) {
			return reflect.Value{}, &ConversionError{Type: t, Wire: wire, Err: ErrFieldCount}
		}
		vals := make([]any, len(elems))
		for i, e := range elems {
			fv, err := r.DecodeValue(e, fields[i].Type)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %s: %w", fields[i].Name, err)
			}
			vals[i] = fv.Interface()
		}
		rec, err := spec.New(vals)
		if err != nil {
			return reflect.Value{}, &ConversionError{Type: t, Wire: wire, Err: err}
		}
		return reflect.ValueOf(&rec).Elem(), nil
	})
}
