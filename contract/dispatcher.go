package contract

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/log"
	"github.com/verichains/ethproxy/abiutils"
	"github.com/verichains/ethproxy/async"
	"github.com/verichains/ethproxy/blockchain"
	"github.com/verichains/ethproxy/convert"
	"github.com/verichains/ethproxy/values"
)

// Dispatcher creates contract proxies that share one backend and one
// converter registry.
type Dispatcher struct {
	backend  blockchain.Proxy
	registry *convert.Registry
}

func NewDispatcher(backend blockchain.Proxy, registry *convert.Registry) *Dispatcher {
	return &Dispatcher{backend: backend, registry: registry}
}

func (d *Dispatcher) Backend() blockchain.Proxy {
	return d.backend
}

func (d *Dispatcher) Registry() *convert.Registry {
	return d.registry
}

// binding is one row of the dispatch table of a proxy.
type binding struct {
	name    string
	params  []reflect.Type
	returns reflect.Type
	kind    ReturnKind
	method  abi.Method
}

// CreateProxy binds desc to the contract at address. Every declared method
// must exist in meta with the same number of parameters, and every declared
// parameter and result type needs a converter. Creating the first proxy
// seals the registry.
func (d *Dispatcher) CreateProxy(desc *Descriptor, meta abi.ABI, address values.EthAddress, account *values.EthAccount) (*Proxy, error) {
	table := make(map[string]*binding, len(desc.methods))
	for _, name := range desc.names {
		spec := desc.methods[name]
		method, ok := meta.Methods[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotInABI, desc.name, name)
		}
		if len(method.Inputs) != len(spec.Params) {
			return nil, fmt.Errorf("%w: %s.%s declares %d parameters, metadata has %d", ErrArgumentCount, desc.name, name, len(spec.Params), len(method.Inputs))
		}
		returns := spec.returnType()
		if len(method.Outputs) == 0 && returns != convert.VoidType {
			return nil, fmt.Errorf("%w: %s.%s returns nothing, declared %v", ErrReturnTypeMismatch, desc.name, name, returns)
		}
		for i, param := range spec.Params {
			if !d.registry.HasInput(param) {
				return nil, fmt.Errorf("%s.%s parameter %d: %w", desc.name, name, i, &convert.UnsupportedTypeError{Type: param, Direction: convert.Input})
			}
		}
		if !d.registry.HasOutput(returns) {
			return nil, fmt.Errorf("%s.%s result: %w", desc.name, name, &convert.UnsupportedTypeError{Type: returns, Direction: convert.Output})
		}
		table[name] = &binding{
			name:    name,
			params:  spec.Params,
			returns: returns,
			kind:    resolveKind(spec, &method),
			method:  method,
		}
	}
	d.registry.Seal()

	p := &Proxy{
		dispatcher: d,
		desc:       desc,
		address:    address,
		account:    account,
		methods:    table,
		log:        log.New("contract", desc.name, "address", address),
	}
	p.log.Debug("Created contract proxy", "methods", len(table))
	return p, nil
}

// resolveKind picks the kind of an Auto method. View and pure methods are
// immediate, payable ones need a value and anything else is a transaction.
// Without mutability in the metadata a zero-argument method returning a
// value is treated as a state accessor.
func resolveKind(spec MethodSpec, method *abi.Method) ReturnKind {
	if spec.Kind != Auto {
		return spec.Kind
	}
	switch method.StateMutability {
	case "view", "pure":
		return Immediate
	case "payable":
		return PendingPayable
	case "nonpayable":
		return Pending
	}
	switch {
	case method.Constant:
		return Immediate
	case method.Payable:
		return PendingPayable
	case len(spec.Params) == 0 && spec.returnType() != convert.VoidType:
		return Immediate
	}
	return Pending
}

// Deploy publishes contract with the given constructor arguments. The
// returned handle resolves to the address of the new contract.
func (d *Dispatcher) Deploy(ctx context.Context, contract *abiutils.CompiledContract, account *values.EthAccount, args ...any) (*async.Pending[values.EthAddress], error) {
	if !contract.Deployable() {
		return nil, fmt.Errorf("%w: %s", ErrNotDeployable, contract.Name)
	}
	wires := make([]any, len(args))
	for i, arg := range args {
		w, err := d.registry.Encode(arg)
		if err != nil {
			return nil, fmt.Errorf("constructor argument %d: %w", i, err)
		}
		wires[i] = w
	}
	data, err := contract.DeployData(wires...)
	if err != nil {
		return nil, err
	}
	var from values.EthAddress
	if account != nil {
		from = account.Address()
	}
	msg := &blockchain.CallMsg{From: from, Method: contract.Name, Args: data}
	tx, err := d.backend.SendTransaction(ctx, msg, account)
	if err != nil {
		if blockchain.IsContractCallError(err) {
			return async.Failed[values.EthAddress](nil, err), nil
		}
		return nil, err
	}
	pending, resolve := async.NewPending[values.EthAddress](tx)
	d.backend.WatchReceipt(tx, func(receipt *blockchain.Receipt, err error) {
		switch {
		case err != nil:
			resolve(values.EmptyAddress, err)
		case !receipt.Succeeded():
			resolve(values.EmptyAddress, &blockchain.ContractCallError{Method: contract.Name, Data: receipt.ReturnData})
		default:
			log.Info("Published contract", "name", contract.Name, "address", receipt.ContractAddress, "tx", tx.Hash)
			resolve(receipt.ContractAddress, nil)
		}
	})
	return pending, nil
}

// Proxy is a contract bound to an address and an invoking account. It is
// immutable and safe for concurrent use.
type Proxy struct {
	dispatcher *Dispatcher
	desc       *Descriptor
	address    values.EthAddress
	account    *values.EthAccount
	methods    map[string]*binding
	log        log.Logger
}

func (p *Proxy) Address() values.EthAddress {
	return p.address
}

func (p *Proxy) Account() *values.EthAccount {
	return p.account
}

func (p *Proxy) Descriptor() *Descriptor {
	return p.desc
}

// Kind returns the resolved return kind of method.
func (p *Proxy) Kind(method string) (ReturnKind, bool) {
	b, ok := p.methods[method]
	if !ok {
		return Auto, false
	}
	return b.kind, true
}

func (p *Proxy) sender() values.EthAddress {
	if p.account == nil {
		return values.EmptyAddress
	}
	return p.account.Address()
}

// Invoke calls method with args. Depending on the kind of the method the
// result is the decoded value, an *async.Pending[any] or an
// *async.PendingPayable[any]. Arguments are converted before the backend is
// contacted, so a conversion failure has no side effect.
func (p *Proxy) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	b, ok := p.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, p.desc.name, method)
	}
	packed, err := p.pack(b, args)
	if err != nil {
		return nil, err
	}
	switch b.kind {
	case Immediate:
		return p.call(ctx, b, packed)
	case Pending:
		return p.send(ctx, b, packed, nil)
	default:
		return async.NewPendingPayable(func(ctx context.Context, value values.EthValue) (*async.Pending[any], error) {
			return p.send(ctx, b, packed, &value)
		}), nil
	}
}

func (p *Proxy) pack(b *binding, args []any) ([]byte, error) {
	if len(args) != len(b.params) {
		return nil, fmt.Errorf("%w: %s.%s wants %d, got %d", ErrArgumentCount, p.desc.name, b.name, len(b.params), len(args))
	}
	wires := make([]any, len(args))
	for i, arg := range args {
		v, err := argumentValue(b.params[i], arg)
		if err != nil {
			return nil, fmt.Errorf("%s.%s argument %d: %w", p.desc.name, b.name, i, err)
		}
		if wires[i], err = p.dispatcher.registry.EncodeValue(v); err != nil {
			return nil, fmt.Errorf("%s.%s argument %d: %w", p.desc.name, b.name, i, err)
		}
	}
	return abiutils.PackArguments(b.method.Inputs, wires)
}

// argumentValue checks arg against the declared parameter type.
func argumentValue(param reflect.Type, arg any) (reflect.Value, error) {
	if arg == nil {
		switch param.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil for %v", ErrArgumentType, param)
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(param) {
		return reflect.Value{}, fmt.Errorf("%w: %v for %v", ErrArgumentType, v.Type(), param)
	}
	if param.Kind() == reflect.Interface {
		return v, nil
	}
	return v.Convert(param), nil
}

func (p *Proxy) message(b *binding, packed []byte, value *values.EthValue) *blockchain.CallMsg {
	to := p.address
	return &blockchain.CallMsg{
		From:     p.sender(),
		To:       &to,
		Method:   b.name,
		Selector: b.method.ID,
		Args:     packed,
		Value:    value,
		Payable:  b.kind == PendingPayable,
	}
}

func (p *Proxy) call(ctx context.Context, b *binding, packed []byte) (any, error) {
	ret, err := p.dispatcher.backend.Call(ctx, p.message(b, packed, nil))
	if err != nil {
		return nil, err
	}
	return p.decode(b, ret)
}

// send submits a transaction. A revert found while preparing it is reported
// through the returned handle, like a revert during execution.
func (p *Proxy) send(ctx context.Context, b *binding, packed []byte, value *values.EthValue) (*async.Pending[any], error) {
	tx, err := p.dispatcher.backend.SendTransaction(ctx, p.message(b, packed, value), p.account)
	if err != nil {
		var callErr *blockchain.ContractCallError
		if errors.As(err, &callErr) {
			p.log.Debug("Transaction reverted before submission", "method", b.name, "err", err)
			return async.Failed[any](nil, err), nil
		}
		return nil, err
	}
	pending, resolve := async.NewPending[any](tx)
	p.dispatcher.backend.WatchReceipt(tx, func(receipt *blockchain.Receipt, err error) {
		switch {
		case err != nil:
			resolve(nil, err)
		case !receipt.Succeeded():
			resolve(nil, &blockchain.ContractCallError{Contract: p.address, Method: b.name, Data: receipt.ReturnData})
		default:
			resolve(p.decode(b, receipt.ReturnData))
		}
	})
	return pending, nil
}

func (p *Proxy) decode(b *binding, data []byte) (any, error) {
	if b.returns == convert.VoidType {
		return convert.Void{}, nil
	}
	wire, err := abiutils.UnpackResult(&b.method, data)
	if err != nil {
		return nil, err
	}
	out, err := p.dispatcher.registry.Decode(wire, b.returns)
	if err != nil {
		return nil, fmt.Errorf("%s.%s result: %w", p.desc.name, b.name, err)
	}
	return out, nil
}
