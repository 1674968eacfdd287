package convert

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrRegistrySealed   = errors.New("converter registry is sealed")
	ErrWireMismatch     = errors.New("unexpected wire value")
	ErrOverflow         = errors.New("value out of range")
	ErrNilValue         = errors.New("nil value")
	ErrUnknownEnumValue = errors.New("value is not a registered enum constant")
	ErrEnumOrdinal      = errors.New("enum ordinal out of range")
	ErrFieldCount       = errors.New("record field count mismatch")
)

// Direction tells which side of the registry a lookup was made on.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// UnsupportedTypeError is returned when no converter is registered for a type,
// neither by exact type nor by capability. It is not retryable.
type UnsupportedTypeError struct {
	Type      reflect.Type
	Direction Direction
}

func (e *UnsupportedTypeError) Error() string {
	if e.Type == nil {
		return fmt.Sprintf("no %s converter for untyped nil", e.Direction)
	}
	return fmt.Sprintf("no %s converter registered for type %v", e.Direction, e.Type)
}

// ConversionError is returned when a converter exists for the type but the
// value itself cannot be converted, e.g. an integer that overflows its target.
type ConversionError struct {
	Type reflect.Type
	Wire any
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %T to %v: %v", e.Wire, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
