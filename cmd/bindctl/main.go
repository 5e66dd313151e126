package main

import (
	"context"

	"github.com/alecthomas/kong"
)

type cli struct {
	Validate validateCmd `cmd:"" help:"Validate a binding manifest and print a summary."`
	Simulate simulateCmd `cmd:"" help:"Bind a manifest's widgets against simulated providers and report what happened."`
	Scaffold scaffoldCmd `cmd:"" help:"Add a renderer and a simulated provider entry to a manifest."`
}

func main() {
	ctx := kong.Parse(&cli{},
		kong.Description("Binding manifest utility for go-widgetbind."),
		kong.UsageOnError(),
	)
	err := ctx.Run(context.Background())
	ctx.FatalIfErrorf(err)
}
