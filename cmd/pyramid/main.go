// Command pyramid builds, inspects, rescales and exports tiled raster
// pyramids.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&buildCmd{}, "")
	subcommands.Register(&infoCmd{}, "")
	subcommands.Register(&scaleCmd{}, "")
	subcommands.Register(&exportCmd{}, "")

	cfgFile := flag.String("config", "", "config file (default is $HOME/.pyramid.yaml)")
	flag.Parse()
	initConfig(*cfgFile)
	os.Exit(int(subcommands.Execute(context.Background())))
}
