package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/verichains/ethproxy/async"
	"github.com/verichains/ethproxy/contract"
	"github.com/verichains/ethproxy/facade"
	"github.com/verichains/ethproxy/values"
	"gopkg.in/urfave/cli.v1"
)

var (
	callCommand = cli.Command{
		Action:    callContract,
		Name:      "call",
		ArgsUsage: "<contract> <address> <method> [args...]",
		Category:  "CHAIN COMMANDS",
		Usage:     "Call a read-only contract method and print the result",
	}
	sendCommand = cli.Command{
		Action:    sendTransaction,
		Name:      "send",
		ArgsUsage: "<contract> <address> <method> [args...]",
		Flags:     []cli.Flag{keyFlag, seedFlag, valueFlag},
		Category:  "CHAIN COMMANDS",
		Usage:     "Send a transaction to a contract method and wait for its result",
	}
	balanceCommand = cli.Command{
		Action:    printBalance,
		Name:      "balance",
		ArgsUsage: "<address>",
		Category:  "CHAIN COMMANDS",
		Usage:     "Print the balance and nonce of an address",
	}
)

func connect(ctx *cli.Context) *facade.Facade {
	config := makeConfig(ctx)
	if config.RPCUrl == "" {
		fatalf("A node url is required, use --%s or RPCUrl in the config file", rpcUrlFlag.Name)
	}
	f, err := facade.ForRemoteNode(context.Background(), config.RPCUrl, config)
	if err != nil {
		fatalf("Could not connect to node: %v", err)
	}
	return f
}

func makeAccount(ctx *cli.Context) *values.EthAccount {
	var (
		account *values.EthAccount
		err     error
	)
	switch {
	case ctx.String(keyFlag.Name) != "":
		account, err = values.AccountFromHex(ctx.String(keyFlag.Name))
	case ctx.String(seedFlag.Name) != "":
		account, err = values.AccountFromSeed(ctx.String(seedFlag.Name))
	default:
		fatalf("A sending account is required, use --%s or --%s", keyFlag.Name, seedFlag.Name)
	}
	if err != nil {
		fatalf("Invalid account: %v", err)
	}
	return account
}

// bindMethod loads the contract from the store, binds the method to the
// address and parses its arguments. With readOnly set the method is always
// executed with eth_call.
func bindMethod(ctx *cli.Context, f *facade.Facade, account *values.EthAccount, readOnly bool) (*contract.Proxy, string, []any) {
	if ctx.NArg() < 3 {
		fatalf("invalid number of arguments: %v", ctx.Command.ArgsUsage)
	}
	args := ctx.Args()
	compiled, err := f.LoadContract(args.Get(0))
	if err != nil {
		fatalf("Could not load contract: %v", err)
	}
	address, err := values.ParseAddress(args.Get(1))
	if err != nil {
		fatalf("Invalid contract address: %v", err)
	}
	method := args.Get(2)
	all := contract.DescriptorFromABI(compiled.Name, compiled.ABI)
	spec, ok := all.Method(method)
	if !ok {
		fatalf("Contract %s has no method %s, known methods: %v", compiled.Name, method, all.Methods())
	}
	if readOnly {
		spec.Kind = contract.Immediate
	}
	proxy, err := f.CreateContractProxy(contract.MustDescriptor(compiled.Name, spec), compiled, address, account)
	if err != nil {
		fatalf("Could not bind contract: %v", err)
	}
	raw := args.Tail()[2:]
	if len(raw) != len(spec.Params) {
		fatalf("Method %s takes %d arguments, got %d", method, len(spec.Params), len(raw))
	}
	parsed := make([]any, len(raw))
	for i, arg := range raw {
		if parsed[i], err = parseArg(spec.Params[i], arg); err != nil {
			fatalf("Argument %d: %v", i, err)
		}
	}
	return proxy, method, parsed
}

func callContract(ctx *cli.Context) error {
	f := connect(ctx)
	defer f.Close()

	proxy, method, args := bindMethod(ctx, f, nil, true)
	result, err := contract.Call[any](context.Background(), proxy, method, args...)
	if err != nil {
		return err
	}
	fmt.Println(formatResult(result))
	return nil
}

func sendTransaction(ctx *cli.Context) error {
	f := connect(ctx)
	defer f.Close()

	account := makeAccount(ctx)
	proxy, method, args := bindMethod(ctx, f, account, false)
	out, err := proxy.Invoke(context.Background(), method, args...)
	if err != nil {
		return err
	}
	var pending *async.Pending[any]
	switch res := out.(type) {
	case *async.Pending[any]:
		pending = res
	case *async.PendingPayable[any]:
		if ctx.String(valueFlag.Name) == "" {
			return fmt.Errorf("method %s is payable, use --%s", method, valueFlag.Name)
		}
		value, err := values.ParseValue(ctx.String(valueFlag.Name))
		if err != nil {
			return err
		}
		if pending, err = res.WithValue(context.Background(), value); err != nil {
			return err
		}
	default:
		return fmt.Errorf("method %s is read-only, use the call command", method)
	}
	if tx := pending.Transaction(); tx != nil {
		log.Info("Transaction submitted", "hash", tx.Hash, "nonce", tx.Nonce)
	}
	result, err := pending.AwaitContext(context.Background())
	if err != nil {
		return err
	}
	fmt.Println(formatResult(result))
	return nil
}

func printBalance(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("invalid number of arguments: %v", ctx.Command.ArgsUsage)
	}
	addr, err := values.ParseAddress(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	f := connect(ctx)
	defer f.Close()

	balance, err := f.GetBalance(context.Background(), addr)
	if err != nil {
		return err
	}
	nonce, err := f.GetNonce(context.Background(), addr)
	if err != nil {
		return err
	}
	fmt.Printf("Balance: %s ether (%s wei)\nNonce:   %d\n", balance.EtherString(), balance, nonce)
	return nil
}
