package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/eak1mov/go-rasterpyramid/builder"
	"github.com/eak1mov/go-rasterpyramid/pyramid"
	"github.com/eak1mov/go-rasterpyramid/resample"
	"github.com/eak1mov/go-rasterpyramid/scaler"
	"github.com/eak1mov/go-rasterpyramid/tilestore/spec"
)

type scaleCmd struct {
	inputDir   string
	outputDir  string
	format     string
	scaleX     float64
	scaleY     float64
	offsetX    float64
	offsetY    float64
	width      int
	height     int
	fill       float64
	kernel     string
	tileWidth  int
	tileHeight int
}

func (c *scaleCmd) Name() string     { return "scale" }
func (c *scaleCmd) Synopsis() string { return "write a rescaled and shifted copy of a pyramid" }
func (c *scaleCmd) Usage() string {
	return "pyramid scale -i <dir> -o <dir> [-sx <f> -sy <f> -ox <f> -oy <f> -w <n> -h <n> -fill <v>]\n"
}
func (c *scaleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputDir, "i", "", "Input pyramid root directory")
	f.StringVar(&c.outputDir, "o", "", "Output pyramid root directory")
	f.StringVar(&c.format, "format", viper.GetString("build.format"), "Tile format of the output")
	f.Float64Var(&c.scaleX, "sx", 1, "Horizontal scale, target pixels per source pixel")
	f.Float64Var(&c.scaleY, "sy", 1, "Vertical scale, target pixels per source pixel")
	f.Float64Var(&c.offsetX, "ox", 0, "Horizontal offset in target pixels")
	f.Float64Var(&c.offsetY, "oy", 0, "Vertical offset in target pixels")
	f.IntVar(&c.width, "w", 0, "Target width (default: scaled source width)")
	f.IntVar(&c.height, "h", 0, "Target height (default: scaled source height)")
	f.Float64Var(&c.fill, "fill", 0, "Value of samples outside the source")
	f.StringVar(&c.kernel, "kernel", viper.GetString("build.kernel"), "Resampling kernel (nearest, bilinear, bicubic)")
	f.IntVar(&c.tileWidth, "tw", viper.GetInt("build.tilewidth"), "Requested tile width")
	f.IntVar(&c.tileHeight, "th", viper.GetInt("build.tileheight"), "Requested tile height")
}

func (c *scaleCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.inputDir == "" || c.outputDir == "" {
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

	logger := newLogger()
	src, err := pyramid.Open(c.inputDir, pyramid.WithLogger(logger))
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer src.Dispose()

	target, err := scaler.New(src, scaler.Options{
		ScaleX:  c.scaleX,
		ScaleY:  c.scaleY,
		OffsetX: c.offsetX,
		OffsetY: c.offsetY,
		Width:   c.width,
		Height:  c.height,
		Kernel:  kernel,
		Fill:    c.fill,
		Logger:  logger,
	})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	defer target.Dispose()

	levels, err := builder.WritePyramid(target, c.outputDir, builder.Options{
		TileWidth:  c.tileWidth,
		TileHeight: c.tileHeight,
		Format:     format,
		Progress:   newProgressBar("tiles"),
		Logger:     logger,
	})
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	log.Infof("wrote %d scaled levels to %s", len(levels), c.outputDir)
	return subcommands.ExitSuccess
}
