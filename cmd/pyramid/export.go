package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/eak1mov/go-rasterpyramid/mb"
	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
	"github.com/eak1mov/go-rasterpyramid/webtile"
	"github.com/eak1mov/go-rasterpyramid/xyz"
)

type exportCmd struct {
	inputDir     string
	outputFormat string
	outputPath   string
	codec        string
	tileSize     int
	name         string
}

func (c *exportCmd) Name() string     { return "export" }
func (c *exportCmd) Synopsis() string { return "export a pyramid as a z/x/y tileset" }
func (c *exportCmd) Usage() string {
	return "pyramid export -i <dir> -o <path> [-of <format> -codec <format> -tilesize <n>]\n"
}
func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputDir, "i", "", "Input pyramid root directory")
	f.StringVar(&c.outputPath, "o", "", "Output path (file.mbtiles or a {z}/{x}/{y} pattern)")
	f.StringVar(&c.outputFormat, "of", "", "Output format (mbtiles, xyz)")
	f.StringVar(&c.codec, "codec", viper.GetString("export.codec"), "Tile format of the tileset")
	f.IntVar(&c.tileSize, "tilesize", viper.GetInt("export.tilesize"), "Tile size of the tileset")
	f.StringVar(&c.name, "name", "", "Tileset name")
}

func (c *exportCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	format, err := spec.ParseFormat(c.codec)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	logger := newLogger()
	p, err := pyramid.Open(c.inputDir, pyramid.WithLogger(logger))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer p.Dispose()

	opts := []webtile.ExportOption{
		webtile.WithName(c.name),
		webtile.WithFormat(format),
		webtile.WithTileSize(c.tileSize),
		webtile.WithProgress(newProgressBar("tiles")),
		webtile.WithLogger(logger),
	}

	var metadata *webtile.Metadata
	switch deduceFormat(c.outputFormat, c.outputPath) {
	case "mbtiles":
		metadata, err = mb.ExportPyramid(p, c.outputPath, opts...)
	case "xyz":
		metadata, err = exportXYZ(p, c.outputPath, opts)
	default:
		log.Printf("invalid output format: %q", c.outputFormat)
		return subcommands.ExitFailure
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	log.Infof("exported zoom %d-%d to %s", metadata.MinZoom, metadata.MaxZoom, c.outputPath)
	return subcommands.ExitSuccess
}

func exportXYZ(p *pyramid.Pyramid, pattern string, opts []webtile.ExportOption) (*webtile.Metadata, error) {
	writer, err := xyz.NewWriter(pattern)
	if err != nil {
		return nil, err
	}
	metadata, err := webtile.Export(p, writer, opts...)
	if err != nil {
		return nil, err
	}
	return metadata, writer.Finalize()
}
