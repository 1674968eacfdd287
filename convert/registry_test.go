package convert

import (
	"errors"
	"math"
	"math/big"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type celsius int16

type opaque struct {
	a int
}

type label string

func (l label) MarshalWire() (any, error) {
	return "label:" + string(l), nil
}

func (l *label) UnmarshalWire(wire any) error {
	s, ok := wire.(string)
	if !ok {
		return ErrWireMismatch
	}
	*l = label(s[len("label:"):])
	return nil
}

func TestEncodeScalars(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		in   any
		want any
	}{
		{int(12), big.NewInt(12)},
		{int8(-3), big.NewInt(-3)},
		{uint64(math.MaxUint64), new(big.Int).SetUint64(math.MaxUint64)},
		{celsius(-40), big.NewInt(-40)},
		{true, true},
		{"hello", "hello"},
		{[]byte{1, 2}, []byte{1, 2}},
		{[3]byte{7, 8, 9}, []byte{7, 8, 9}},
	}
	for _, tt := range tests {
		got, err := r.Encode(tt.in)
		require.NoError(t, err, "%T", tt.in)
		assert.Equal(t, tt.want, got, "%T", tt.in)
	}
}

func TestDecodeIntegerRange(t *testing.T) {
	r := NewRegistry()

	v, err := DecodeAs[uint8](r, big.NewInt(255))
	require.NoError(t, err)
	assert.Equal(t, uint8(255), v)

	_, err = DecodeAs[uint8](r, big.NewInt(256))
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = DecodeAs[uint32](r, big.NewInt(-1))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = DecodeAs[int64](r, new(big.Int).Lsh(big.NewInt(1), 70))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = DecodeAs[int](r, "12")
	assert.ErrorIs(t, err, ErrWireMismatch)

	c, err := DecodeAs[celsius](r, big.NewInt(-40))
	require.NoError(t, err)
	assert.Equal(t, celsius(-40), c)
}

func TestSequenceRoundTrip(t *testing.T) {
	r := NewRegistry()

	for _, in := range []any{
		[]int{},
		[]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
		[][]string{{"a"}, {}, {"b", "c"}},
		[2]bool{true, false},
	} {
		wire, err := r.Encode(in)
		require.NoError(t, err)
		out, err := r.Decode(wire, reflect.TypeOf(in))
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}

	_, err := DecodeAs[[2]bool](r, []any{true})
	assert.ErrorIs(t, err, ErrFieldCount)
}

func TestSetRoundTrip(t *testing.T) {
	r := NewRegistry()

	empty := map[string]struct{}{}
	wire, err := r.Encode(empty)
	require.NoError(t, err)
	assert.Equal(t, []any{}, wire)
	out, err := DecodeAs[map[string]struct{}](r, wire)
	require.NoError(t, err)
	assert.Equal(t, empty, out)

	set := map[int]bool{3: true, 1: true, 2: true, 9: false}
	wire, err = r.Encode(set)
	require.NoError(t, err)
	assert.Equal(t, []any{big.NewInt(1), big.NewInt(2), big.NewInt(3)}, wire)
	got, err := DecodeAs[map[int]bool](r, wire)
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, got)
}

func TestUnsupportedTypeHasNoSideEffect(t *testing.T) {
	r := NewRegistry()
	in := &opaque{a: 3}

	_, err := r.Encode(in)
	var unsupported *UnsupportedTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, Input, unsupported.Direction)
	assert.Equal(t, reflect.TypeOf(opaque{}), unsupported.Type)
	assert.Equal(t, 3, in.a)

	_, err = r.Decode(big.NewInt(1), reflect.TypeOf(opaque{}))
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, Output, unsupported.Direction)

	_, err = r.Encode(nil)
	assert.True(t, errors.As(err, &unsupported))

	_, err = r.Encode([]opaque{{}})
	assert.ErrorAs(t, err, &unsupported)
	assert.False(t, r.HasInput(reflect.TypeOf([]opaque{})))
	assert.True(t, r.HasInput(reflect.TypeOf([]int{})))
}

func TestExactTypeWinsOverCapability(t *testing.T) {
	r := NewRegistry()
	RegisterInputOf(r, func(c celsius) (any, error) {
		return big.NewInt(int64(c) + 273), nil
	})
	RegisterOutputOf(r, func(wire any) (celsius, error) {
		return celsius(wire.(*big.Int).Int64() - 273), nil
	})

	wire, err := r.Encode(celsius(0))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(273), wire)

	c, err := DecodeAs[celsius](r, big.NewInt(300))
	require.NoError(t, err)
	assert.Equal(t, celsius(27), c)

	// re-registration replaces the previous converter
	RegisterInputOf(r, func(c celsius) (any, error) {
		return big.NewInt(int64(c)), nil
	})
	wire, err = r.Encode(celsius(5))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5), wire)
}

func TestWireMarshaler(t *testing.T) {
	r := NewRegistry()

	wire, err := r.Encode(label("x"))
	require.NoError(t, err)
	assert.Equal(t, "label:x", wire)

	l, err := DecodeAs[label](r, wire)
	require.NoError(t, err)
	assert.Equal(t, label("x"), l)
}

func TestPointersAndInterfaces(t *testing.T) {
	r := NewRegistry()
	n := 42

	wire, err := r.Encode(&n)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), wire)

	p, err := DecodeAs[*int](r, wire)
	require.NoError(t, err)
	assert.Equal(t, 42, *p)

	var nilPtr *int
	_, err = r.Encode(nilPtr)
	assert.ErrorIs(t, err, ErrNilValue)

	v, err := DecodeAs[any](r, "raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", v)
}

func TestSealedRegistryPanics(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Sealed())
	r.Seal()
	assert.True(t, r.Sealed())
	assert.PanicsWithValue(t, ErrRegistrySealed, func() {
		RegisterInputOf(r, func(c celsius) (any, error) { return nil, nil })
	})

	wire, err := r.Encode(7)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), wire)
}
