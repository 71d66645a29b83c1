package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/nissy/kipple-sub002/cmd/kipple/commands"
	"github.com/nissy/kipple-sub002/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("kipple"),
		kong.Description("Personal clipboard history manager."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)

	err := ctx.Run(&commands.Global{Logger: slog.Default()}, &cli)
	ctx.FatalIfErrorf(err)
}
