package main

import (
	"context"
	"flag"
	"os"
	"path"
	_ "time/tzdata"

	"github.com/google/subcommands"

	"pos_ledger/cmd"
	"pos_ledger/internal/config"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	cmd.Register(commander, config.Load())

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
