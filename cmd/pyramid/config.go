package main

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/eak1mov/go-rasterpyramid/builder"
	"github.com/eak1mov/go-rasterpyramid/tilecache"
	"github.com/eak1mov/go-rasterpyramid/webtile"
)

// initConfig reads the config file and PYRAMID_* environment variables.
// Flags of every subcommand take their defaults from the result.
func initConfig(cfgFile string) {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("build.format", "raw")
	viper.SetDefault("build.levels", 3)
	viper.SetDefault("build.tilewidth", builder.DefaultTileSize)
	viper.SetDefault("build.tileheight", builder.DefaultTileSize)
	viper.SetDefault("build.kernel", "nearest")
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.dir", filepath.Join(os.TempDir(), "pyramid-cache"))
	viper.SetDefault("cache.capacity", 256<<20)
	viper.SetDefault("cache.threshold", tilecache.DefaultThreshold)
	viper.SetDefault("export.codec", "png")
	viper.SetDefault("export.tilesize", webtile.DefaultTileSize)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pyramid")
	}

	viper.SetEnvPrefix("pyramid")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	initLog(viper.GetString("log.level"))
	if err == nil {
		log.Debugf("using config file %s", viper.ConfigFileUsed())
	} else if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
		log.Warnf("read config file(%s) error: %v", viper.ConfigFileUsed(), err)
	}
}

// openCache returns the configured tile cache, or nil if it is disabled.
func openCache(enabled bool) (*tilecache.Cache, error) {
	if !enabled {
		return nil, nil
	}
	return tilecache.New(
		viper.GetString("cache.dir"),
		viper.GetInt64("cache.capacity"),
		tilecache.WithThreshold(viper.GetFloat64("cache.threshold")),
		tilecache.WithLogger(newLogger()),
	)
}
