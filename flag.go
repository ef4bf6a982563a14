package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	v          = viper.New()
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tiler",
	Short: "Publish and serve vector tiles from an MBTiles archive",
	Long: `tiler re-publishes every tile of an MBTiles archive as an individual
{prefix}/{z}/{x}/{y}.pbf object with a TileJSON metadata.json beside it,
or serves tiles straight from the archive over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := InitConf(v, configPath)
		if err != nil && c == nil {
			return err
		}
		conf = c
		if lerr := InitLog(conf, logLevel); lerr != nil {
			return lerr
		}
		if err != nil {
			log.Warnf("read config file(%s) error, details: %s", configPath, err)
		}
		return nil
	},
}

// bind ties each named flag to its viper key so that flag > env > file > default.
func bind(fs *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

func init() {
	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVarP(&configPath, "config", "c", "./conf/conf.toml", "set config `file`")
	pFlags.StringVarP(&logLevel, "log-level", "l", "info", "set log level")
	pFlags.String("archive", "", "MBTiles archive path")
	bind(pFlags, map[string]string{"archive": "archive.path"})
}
