//
// Created on 2023/2/21 by khanghh
// Project: github.com/verichains/ethproxy
// Copyright (c) 2023 Verichains Lab
//

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/verichains/ethproxy/facade"
	"gopkg.in/urfave/cli.v1"
)

var (
	// Git SHA1 commit hash of the release (set via linker flags)
	gitCommit = ""
	gitDate   = ""
	// The app that holds all commands and flags.
	app *cli.App
)

func init() {
	app = cli.NewApp()
	app.Name = filepath.Base(os.Args[0])
	app.Usage = "Call Ethereum contracts through their compiled metadata"
	app.Version = fmt.Sprintf("%s - %s ", gitCommit, gitDate)
	app.Flags = []cli.Flag{
		configFileFlag,
		rpcUrlFlag,
		dataDirFlag,
		verbosityFlag,
	}
	app.Commands = []cli.Command{
		importCommand,
		contractsCommand,
		selectorCommand,
		inspectCommand,
		callCommand,
		sendCommand,
		balanceCommand,
	}
	app.Before = func(ctx *cli.Context) error {
		level := log.FromLegacyLevel(ctx.GlobalInt(verbosityFlag.Name))
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, true)))
		return nil
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// makeConfig reads the TOML configuration file if one is given and applies
// the command line overrides.
func makeConfig(ctx *cli.Context) facade.Config {
	config := facade.DefaultConfig
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := facade.LoadConfig(file, &config); err != nil {
			fatalf("Could not load config file %s: %v", file, err)
		}
	}
	if dataDir := ctx.GlobalString(dataDirFlag.Name); dataDir != "" {
		config.DataDir = dataDir
	}
	if url := ctx.GlobalString(rpcUrlFlag.Name); url != "" {
		config.RPCUrl = url
	}
	return config
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
