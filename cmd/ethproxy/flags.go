package main

import (
	"gopkg.in/urfave/cli.v1"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	rpcUrlFlag = cli.StringFlag{
		Name:  "rpcurl",
		Usage: "Ethereum node RPC url, overrides RPCUrl of the config file",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Directory of the contract store. If not specified the store is kept in memory",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	keyFlag = cli.StringFlag{
		Name:  "key",
		Usage: "Hex encoded private key of the sending account",
	}
	seedFlag = cli.StringFlag{
		Name:  "seed",
		Usage: "Derive the sending account from a seed phrase instead of --key",
	}
	valueFlag = cli.StringFlag{
		Name:  "value",
		Usage: "Value attached to a payable call, e.g. 1.5ether, 20gwei or 1000wei",
	}
	overrideFlag = cli.BoolFlag{
		Name:  "override",
		Usage: "Replace contracts that already exist in the store",
	}
)
