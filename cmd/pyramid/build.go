package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/eak1mov/go-rasterpyramid/builder"
	"github.com/eak1mov/go-rasterpyramid/resample"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

type buildCmd struct {
	inputPath  string
	outputDir  string
	format     string
	levelCount int
	tileWidth  int
	tileHeight int
	kernel     string
	useCache   bool
}

func (c *buildCmd) Name() string     { return "build" }
func (c *buildCmd) Synopsis() string { return "build a tiled pyramid from a level or an image" }
func (c *buildCmd) Usage() string {
	return "pyramid build -i <path> -o <dir> [-format <format> -levels <n> -tw <n> -th <n> -kernel <kernel>]\n"
}
func (c *buildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Input level directory, pyramid root or PNG/TIFF image")
	f.StringVar(&c.outputDir, "o", "", "Output pyramid root directory")
	f.StringVar(&c.format, "format", viper.GetString("build.format"), "Tile format (raw, raw.zip, png, tiff, zstd, lz4)")
	f.IntVar(&c.levelCount, "levels", viper.GetInt("build.levels"), "Number of levels")
	f.IntVar(&c.tileWidth, "tw", viper.GetInt("build.tilewidth"), "Requested tile width")
	f.IntVar(&c.tileHeight, "th", viper.GetInt("build.tileheight"), "Requested tile height")
	f.StringVar(&c.kernel, "kernel", viper.GetString("build.kernel"), "Downsampling kernel (nearest, bilinear, bicubic)")
	f.BoolVar(&c.useCache, "cache", viper.GetBool("cache.enabled"), "Cache computed tiles on disk")
}

func (c *buildCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputPath == "" || c.outputDir == "" {
		log.Println("both -i and -o are required")
		return subcommands.ExitUsageError
	}

	format, err := spec.ParseFormat(c.format)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	kernel, err := resample.ParseKernel(c.kernel)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	src, err := openInput(c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	cache, err := openCache(c.useCache)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	levels, err := builder.Build(src, c.outputDir, builder.Options{
		TileWidth:  c.tileWidth,
		TileHeight: c.tileHeight,
		LevelCount: c.levelCount,
		Format:     format,
		Kernel:     kernel,
		Cache:      cache,
		Progress:   newProgressBar("tiles"),
		Logger:     newLogger(),
	})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	if cache != nil {
		stats := cache.Stats()
		log.WithFields(log.Fields{
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"evictions": stats.Evictions,
		}).Info("tile cache")
	}

	log.Infof("built %d levels in %s", len(levels), c.outputDir)
	return subcommands.ExitSuccess
}
