package contract

import (
	"context"
	"fmt"
	"reflect"

	"github.com/verichains/ethproxy/async"
	"github.com/verichains/ethproxy/convert"
)

func (p *Proxy) lookup(method string, kind ReturnKind, want reflect.Type) (*binding, error) {
	b, ok := p.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, p.desc.name, method)
	}
	if b.kind != kind {
		return nil, fmt.Errorf("%w: %s.%s is %v, not %v", ErrKindMismatch, p.desc.name, method, b.kind, kind)
	}
	if want.Kind() == reflect.Interface && want.NumMethod() == 0 {
		return b, nil
	}
	if b.returns != want {
		return nil, fmt.Errorf("%w: %s.%s returns %v, not %v", ErrReturnTypeMismatch, p.desc.name, method, b.returns, want)
	}
	return b, nil
}

func cast[T any](v any) (T, error) {
	out, ok := v.(T)
	if !ok && v != nil {
		return out, fmt.Errorf("%w: got %T", ErrReturnTypeMismatch, v)
	}
	return out, nil
}

// Call invokes an Immediate method and returns its result as T.
func Call[T any](ctx context.Context, p *Proxy, method string, args ...any) (T, error) {
	var zero T
	if _, err := p.lookup(method, Immediate, convert.TypeOf[T]()); err != nil {
		return zero, err
	}
	out, err := p.Invoke(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	return cast[T](out)
}

// Send invokes a Pending method.
func Send[T any](ctx context.Context, p *Proxy, method string, args ...any) (*async.Pending[T], error) {
	if _, err := p.lookup(method, Pending, convert.TypeOf[T]()); err != nil {
		return nil, err
	}
	out, err := p.Invoke(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return async.Map(out.(*async.Pending[any]), cast[T]), nil
}

// SendPayable invokes a PendingPayable method. Nothing is sent until a value
// is attached with WithValue.
func SendPayable[T any](ctx context.Context, p *Proxy, method string, args ...any) (*async.PendingPayable[T], error) {
	if _, err := p.lookup(method, PendingPayable, convert.TypeOf[T]()); err != nil {
		return nil, err
	}
	out, err := p.Invoke(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return async.MapPayable(out.(*async.PendingPayable[any]), cast[T]), nil
}
