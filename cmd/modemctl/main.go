// cmd/modemctl/main.go
package main

import (
	"github.com/alecthomas/kong"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("modemctl"),
		kong.Description("Query, monitor and poll MBIM modems"),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(cli.setupLogging())
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
