// Command patternd is a thin composition root that wires config, entity
// store, model adapters, tool registry, and agents into a running HTTP
// server: a kong CLI with one subcommand per operation, config loaded
// before anything else starts.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

type cli struct {
	Serve    ServeCmd    `cmd:"" help:"Load a config file and start the HTTP server."`
	Validate ValidateCmd `cmd:"" help:"Validate a config file without starting anything."`
	Version  VersionCmd  `cmd:"" help:"Print version information."`

	Config string `short:"c" help:"Path to the YAML config file." type:"path" default:"pattern.yaml"`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("patternd"),
		kong.Description("patterncore composition root"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&c)
	ctx.FatalIfErrorf(err)
}

// VersionCmd prints the build version.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Println("patterncore patternd (dev)")
	return nil
}
