package main

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/verichains/ethproxy/values"
)

var (
	bigIntType  = reflect.TypeFor[*big.Int]()
	addressType = reflect.TypeFor[values.EthAddress]()
)

// parseArg converts a command line argument to the default Go type of a
// method parameter. Sequences are given comma separated in brackets.
func parseArg(t reflect.Type, arg string) (any, error) {
	switch t {
	case bigIntType:
		n, ok := new(big.Int).SetString(arg, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", arg)
		}
		return n, nil
	case addressType:
		return values.ParseAddress(arg)
	}
	switch t.Kind() {
	case reflect.Bool:
		return strconv.ParseBool(arg)
	case reflect.String:
		return arg, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return hexutil.Decode(arg)
		}
		if !strings.HasPrefix(arg, "[") || !strings.HasSuffix(arg, "]") {
			return nil, fmt.Errorf("sequence %q must be enclosed in brackets", arg)
		}
		inner := strings.TrimSpace(arg[1 : len(arg)-1])
		out := reflect.MakeSlice(t, 0, 0)
		if inner == "" {
			return out.Interface(), nil
		}
		for _, part := range strings.Split(inner, ",") {
			elem, err := parseArg(t.Elem(), strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, reflect.ValueOf(elem))
		}
		return out.Interface(), nil
	}
	return nil, fmt.Errorf("arguments of type %v cannot be given on the command line", t)
}

// formatResult renders a decoded value for terminal output.
func formatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return "<nil>"
	case []byte:
		return hexutil.Encode(r)
	case values.EthAddress:
		return r.Hex()
	case fmt.Stringer:
		return r.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatResult(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}
