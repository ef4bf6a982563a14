package main

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `mapstructure:"version"`
		Title   string `mapstructure:"title"`
	} `mapstructure:"app"`
	Output struct {
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
	} `mapstructure:"output"`
	Archive struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"archive"`
	Publish struct {
		Prefix      string `mapstructure:"prefix"`
		BaseURL     string `mapstructure:"baseURL"`
		MetadataKey string `mapstructure:"metadataKey"`
		Workers     int    `mapstructure:"workers"`
		Journal     string `mapstructure:"journal"`
		Progress    bool   `mapstructure:"progress"`
	} `mapstructure:"publish"`
	Sink struct {
		Kind       string        `mapstructure:"kind"`
		Bucket     string        `mapstructure:"bucket"`
		Region     string        `mapstructure:"region"`
		Endpoint   string        `mapstructure:"endpoint"`
		MaxRetries int           `mapstructure:"maxRetries"`
		Timeout    time.Duration `mapstructure:"timeout"`
		Directory  string        `mapstructure:"directory"`
	} `mapstructure:"sink"`
	Server struct {
		Address   string `mapstructure:"address"`
		Scheme    string `mapstructure:"scheme"`
		CORS      bool   `mapstructure:"cors"`
		CacheSize int    `mapstructure:"cacheSize"`
	} `mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.version", "v0.2.0")
	v.SetDefault("app.title", "PLSS Tiler")
	v.SetDefault("output.logDir", "")
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("archive.path", "tiles.mbtiles")
	v.SetDefault("publish.prefix", "tiles")
	v.SetDefault("publish.metadataKey", "metadata.json")
	v.SetDefault("publish.baseURL", "")
	v.SetDefault("publish.workers", 20)
	v.SetDefault("publish.journal", "")
	v.SetDefault("publish.progress", false)
	v.SetDefault("sink.kind", "s3")
	v.SetDefault("sink.bucket", "")
	v.SetDefault("sink.region", "")
	v.SetDefault("sink.endpoint", "")
	v.SetDefault("sink.maxRetries", 3)
	v.SetDefault("sink.timeout", 30*time.Second)
	v.SetDefault("sink.directory", "output")
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.scheme", "https")
	v.SetDefault("server.cors", false)
	v.SetDefault("server.cacheSize", 0)
}

// InitConf 初始化配置. A missing config file is not an error; defaults,
// environment (TILER_SINK_BUCKET etc.) and flags still apply.
func InitConf(v *viper.Viper, cfgFile string) (*Conf, error) {
	setDefaults(v)
	v.SetEnvPrefix("tiler")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match

	fileErr := error(nil)
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			v.SetConfigType("toml")
			v.SetConfigFile(cfgFile)
			fileErr = v.ReadInConfig()
		}
	}

	c := new(Conf)
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	return c, fileErr
}
