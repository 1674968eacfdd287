package convert

import (
	"reflect"

	mapset "github.com/deckarep/golang-set/v2"
)

var emptyStructType = reflect.TypeFor[struct{}]()

// isSetType reports whether t is one of the map shapes used as a set:
// map[T]struct{} or map[T]bool.
func isSetType(t reflect.Type) bool {
	if t.Kind() != reflect.Map {
		return false
	}
	return t.Elem() == emptyStructType || t.Elem().Kind() == reflect.Bool
}

// isSetLike reports whether t behaves like a golang-set: it has a ToSlice
// method returning a slice. The concrete set types of that package are
// unexported, so they are matched by method set rather than by identity.
func isSetLike(t reflect.Type) bool {
	m, ok := t.MethodByName("ToSlice")
	if !ok {
		return false
	}
	mt := m.Type
	in := mt.NumIn()
	if t.Kind() != reflect.Interface {
		in-- // receiver
	}
	if in != 0 || mt.NumOut() != 1 || mt.Out(0).Kind() != reflect.Slice {
		return false
	}
	_, ok = t.MethodByName("Cardinality")
	return ok
}

func (r *Registry) encodeSequence(v reflect.Value) (any, error) {
	out := make([]any, v.Len())
	for i := range out {
		w, err := r.EncodeValue(v.Index(i))
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

func (r *Registry) decodeSequence(wire any, target reflect.Type) (reflect.Value, error) {
	elems, ok := wire.([]any)
	if !ok {
		return reflect.Value{}, mismatch(target, wire)
	}
	var out reflect.Value
	if target.Kind() == reflect.Array {
		if len(elems) != target.Len() {
			return reflect.Value{}, &ConversionError{Type: target, Wire: wire, Err: ErrFieldCount}
		}
		out = reflect.New(target).Elem()
	} else {
		out = reflect.MakeSlice(target, len(elems), len(elems))
	}
	for i, e := range elems {
		ev, err := r.DecodeValue(e, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

func (r *Registry) encodeSet(v reflect.Value) (any, error) {
	out := make([]any, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		if iter.Value().Kind() == reflect.Bool && !iter.Value().Bool() {
			continue
		}
		w, err := r.EncodeValue(iter.Key())
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	sortWire(out)
	return out, nil
}

func (r *Registry) decodeSet(wire any, target reflect.Type) (reflect.Value, error) {
	elems, ok := wire.([]any)
	if !ok {
		return reflect.Value{}, mismatch(target, wire)
	}
	member := reflect.New(target.Elem()).Elem()
	if member.Kind() == reflect.Bool {
		member.SetBool(true)
	}
	out := reflect.MakeMapWithSize(target, len(elems))
	for _, e := range elems {
		key, err := r.DecodeValue(e, target.Key())
		if err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(key, member)
	}
	return out, nil
}

func (r *Registry) encodeSetLike(v reflect.Value) (any, error) {
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return nil, &ConversionError{Type: v.Type(), Err: ErrNilValue}
	}
	elems := v.MethodByName("ToSlice").Call(nil)[0]
	w, err := r.encodeSequence(elems)
	if err != nil {
		return nil, err
	}
	sortWire(w.([]any))
	return w, nil
}

// RegisterSet installs converters for mapset.Set[T]. Encoding works for any
// golang-set value without registration; decoding needs the target interface
// type to be known, which is what this adds.
func RegisterSet[T comparable](r *Registry) {
	target := TypeOf[mapset.Set[T]]()
	elem := TypeOf[T]()
	r.RegisterInput(target, func(r *Registry, v reflect.Value) (any, error) {
		return r.encodeSetLike(v)
	})
	r.RegisterOutput(target, func(r *Registry, wire any, _ reflect.Type) (reflect.Value, error) {
		elems, ok := wire.([]any)
		if !ok {
			return reflect.Value{}, mismatch(target, wire)
		}
		set := mapset.NewSet[T]()
		for _, e := range elems {
			ev, err := r.DecodeValue(e, elem)
			if err != nil {
				return reflect.Value{}, err
			}
			set.Add(ev.Interface().(T))
		}
		out := reflect.New(target).Elem()
		out.Set(reflect.ValueOf(set))
		return out, nil
	})
}
