package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"

	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/raster"
	"github.com/eak1mov/go-rasterpyramid/tilestore"
)

type infoCmd struct {
	inputPath string
}

func (c *infoCmd) Name() string     { return "info" }
func (c *infoCmd) Synopsis() string { return "print the levels of a pyramid" }
func (c *infoCmd) Usage() string {
	return "pyramid info -i <dir>\n"
}
func (c *infoCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Pyramid root or level directory")
}

func printLevel(name string, reader *tilestore.Reader) {
	header := reader.Header()
	tiles := raster.TileBounds(reader)
	fmt.Printf("%s: %dx%d at (%d,%d), %v, tiles %dx%d (%dx%d), format %v\n",
		name, header.Width, header.Height, header.MinX, header.MinY, reader.Layout(),
		header.TileWidth, header.TileHeight, tiles.Dx(), tiles.Dy(), reader.Format())
}

func (c *infoCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	levelCount, err := pyramid.LevelDirs(c.inputPath)
	if err != nil {
		reader, err := tilestore.Open(c.inputPath)
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		printLevel(c.inputPath, reader)
		return subcommands.ExitSuccess
	}

	for index := range levelCount {
		reader, err := tilestore.Open(pyramid.LevelDir(c.inputPath, index))
		if err != nil {
			log.Println(err)
			return subcommands.ExitFailure
		}
		printLevel(fmt.Sprintf("level %d", index), reader)
	}
	return subcommands.ExitSuccess
}
