// Command crawler is the node-crawler binary: a thin urfave/cli wrapper
// around the cli/crawl command tree.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/node-crawler/cli/crawl"
	"github.com/nspcc-dev/node-crawler/pkg/config"
	"github.com/urfave/cli/v2"
)

func versionPrinter(ctx *cli.Context) {
	fmt.Fprintf(ctx.App.Writer, "node-crawler\nVersion: %s\nGoVersion: %s\n", config.Version, runtime.Version())
}

func main() {
	cli.VersionPrinter = versionPrinter

	app := cli.NewApp()
	app.Name = "node-crawler"
	app.Version = config.Version
	app.Usage = "Peer-to-peer network crawler for a blockchain-style overlay"
	app.ErrWriter = os.Stdout
	app.Commands = crawl.NewCommands()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
