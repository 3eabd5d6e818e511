package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ravi-parthasarathy/drafter/pkg/export"
	"github.com/ravi-parthasarathy/drafter/pkg/protoparse"
)

// config is the resolved configuration. Precedence, highest first: flags,
// DRAFTER_* environment (a .env file is loaded first), the config file,
// built-in defaults.
type config struct {
	Store     string
	Solution  string
	LogLevel  string
	LogFormat string
	CacheSize int
	Export    export.Options
}

// flagKeys maps persistent flags onto config keys.
var flagKeys = map[string]string{
	"store":      "store",
	"solution":   "solution",
	"log-level":  "log.level",
	"log-format": "log.format",
}

func loadConfig(flags *pflag.FlagSet, cfgFile string) (config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("store", ".drafter")
	v.SetDefault("solution", "default")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("parser.cache_size", protoparse.DefaultCacheSize)
	d := export.DefaultOptions()
	v.SetDefault("export.base_port", d.BasePort)
	v.SetDefault("export.container_port", d.ContainerPort)
	v.SetDefault("export.orchestrator_image", d.OrchestratorImage)
	v.SetDefault("export.config_path", d.ConfigPath)

	v.SetEnvPrefix("DRAFTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := config{
		Store:     v.GetString("store"),
		Solution:  v.GetString("solution"),
		LogLevel:  v.GetString("log.level"),
		LogFormat: v.GetString("log.format"),
		CacheSize: v.GetInt("parser.cache_size"),
		Export: export.Options{
			BasePort:          v.GetInt("export.base_port"),
			ContainerPort:     v.GetInt("export.container_port"),
			OrchestratorImage: v.GetString("export.orchestrator_image"),
			ConfigPath:        v.GetString("export.config_path"),
		},
	}
	if cfg.Export.BasePort < 1 || cfg.Export.BasePort > 65535 {
		return config{}, fmt.Errorf("export.base_port %d out of range", cfg.Export.BasePort)
	}
	if cfg.Export.ContainerPort < 1 || cfg.Export.ContainerPort > 65535 {
		return config{}, fmt.Errorf("export.container_port %d out of range", cfg.Export.ContainerPort)
	}
	return cfg, nil
}
