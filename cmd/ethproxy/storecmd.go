package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/olekukonko/tablewriter"
	"github.com/verichains/ethproxy/abiutils"
	"github.com/verichains/ethproxy/extdb"
	"gopkg.in/urfave/cli.v1"
)

var (
	importCommand = cli.Command{
		Action:      importContracts,
		Name:        "import",
		ArgsUsage:   "<combined.json>",
		Flags:       []cli.Flag{overrideFlag},
		Category:    "STORE COMMANDS",
		Usage:       "Import compiled contracts into the contract store",
		Description: `Imports every contract of a solc --combined-json abi,bin output. Method selectors are indexed so they can be resolved with the selector command.`,
	}
	contractsCommand = cli.Command{
		Action:   listContracts,
		Name:     "contracts",
		Category: "STORE COMMANDS",
		Usage:    "List the contracts of the contract store",
	}
	selectorCommand = cli.Command{
		Action:    lookupSelector,
		Name:      "selector",
		ArgsUsage: "<0x12345678>",
		Category:  "STORE COMMANDS",
		Usage:     "Print the known signatures of a 4-byte method selector",
	}
	inspectCommand = cli.Command{
		Action:      inspectStore,
		Name:        "inspect",
		Category:    "STORE COMMANDS",
		Usage:       "Inspect the storage size for each type of data in the contract store",
		Description: `This commands iterates the entire contract store.`,
	}
)

func openStore(ctx *cli.Context, readonly bool) ethdb.KeyValueStore {
	config := makeConfig(ctx)
	if config.DataDir == "" {
		fatalf("A contract store directory is required, use --%s", dataDirFlag.Name)
	}
	db, err := extdb.OpenDatabase(config.DataDir, config.DatabaseCache, config.DatabaseHandles, readonly)
	if err != nil {
		fatalf("Could not open contract store: %v", err)
	}
	return db
}

func importContracts(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("invalid number of arguments: %v", ctx.Command.ArgsUsage)
	}
	db := openStore(ctx, false)
	defer db.Close()

	file, err := os.Open(ctx.Args().Get(0))
	if err != nil {
		fatalf("Could not read input file: %v", err)
	}
	defer file.Close()
	count, err := abiutils.ImportCombinedJSON(db, file, ctx.Bool(overrideFlag.Name))
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d contracts\n", count)
	return nil
}

func listContracts(ctx *cli.Context) error {
	db := openStore(ctx, true)
	defer db.Close()

	names, err := abiutils.ListContracts(db)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Contract", "Methods", "Deployable"})
	for _, name := range names {
		c, err := abiutils.LoadContract(db, name)
		if err != nil {
			return err
		}
		table.Append([]string{name, strconv.Itoa(len(c.ABI.Methods)), strconv.FormatBool(c.Deployable())})
	}
	table.Render()
	return nil
}

func lookupSelector(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("invalid number of arguments: %v", ctx.Command.ArgsUsage)
	}
	var id abiutils.MethodId
	if err := id.UnmarshalText([]byte(ctx.Args().Get(0))); err != nil {
		return fmt.Errorf("invalid selector: %v", err)
	}
	db := openStore(ctx, true)
	defer db.Close()

	sigs := abiutils.LookupSelector(db, id)
	if len(sigs) == 0 {
		return fmt.Errorf("unknown selector %s", id)
	}
	for _, sig := range sigs {
		fmt.Println(sig)
	}
	return nil
}

func inspectStore(ctx *cli.Context) error {
	db := openStore(ctx, true)
	defer db.Close()
	return extdb.InspectDatabase(db, os.Stdout)
}
