package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local runs; real deployments set FIFO_* directly.
	_ = godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&computeCmd{}, "")
	commander.Register(&validateCmd{}, "")
	commander.Register(&serveCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
