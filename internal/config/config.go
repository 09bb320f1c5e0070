// Package config loads the command line configuration from a YAML file and RIPPLE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/ripple/internal/features"
	"github.com/aretw0/ripple/internal/features/catalog"
	"github.com/aretw0/ripple/internal/features/gis"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Log      LogConfig       `mapstructure:"log"`
	HTTP     HTTPConfig      `mapstructure:"http"`
	Cache    CacheConfig     `mapstructure:"cache"`
	Features features.Config `mapstructure:"features"`
	Demo     DemoConfig      `mapstructure:"demo"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// HTTPConfig holds the devtools server settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// CacheConfig selects where provider responses are cached. An empty RedisAddr keeps them in memory.
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
}

// DemoConfig seeds the in-process providers and the initial map.
type DemoConfig struct {
	Latency      time.Duration                   `mapstructure:"latency"`
	Layers       []gis.Layer                     `mapstructure:"layers"`
	Capabilities map[string]catalog.Capabilities `mapstructure:"capabilities"`
	Records      []catalog.Record                `mapstructure:"records"`
}

// SlogLevel parses Log.Level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Load reads configuration from file and env. Env var overrides use prefix RIPPLE_.
// An explicit path must exist; otherwise ripple.yaml is looked up in the working
// directory and in ~/.config/ripple, and a missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv("RIPPLE_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ripple"))
		}
		v.SetConfigName("ripple")
	}

	v.SetEnvPrefix("RIPPLE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	d := features.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.addr", "127.0.0.1:8680")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "ripple:cache:")

	v.SetDefault("features.geoprocessing.describe_deadline", d.Geoprocessing.DescribeDeadline)
	v.SetDefault("features.geoprocessing.describe_attempts", d.Geoprocessing.DescribeAttempts)
	v.SetDefault("features.geoprocessing.describe_delay", d.Geoprocessing.DescribeDelay)
	v.SetDefault("features.catalog.refresh_attempts", d.Catalog.RefreshAttempts)
	v.SetDefault("features.catalog.refresh_delay", d.Catalog.RefreshDelay)
	v.SetDefault("features.catalog.refresh_parallelism", d.Catalog.RefreshParallelism)
	v.SetDefault("features.catalog.search_debounce", d.Catalog.SearchDebounce)
	v.SetDefault("features.styleeditor.preview_debounce", d.StyleEditor.PreviewDebounce)

	v.SetDefault("demo.latency", 200*time.Millisecond)
	v.SetDefault("demo.layers", []map[string]any{
		{
			"id":   "rivers",
			"name": "Rivers",
			"type": gis.LayerWMS,
			"url":  "https://demo.example.org/geoserver/wms",
		},
	})
	v.SetDefault("demo.capabilities", map[string]any{
		"rivers": map[string]any{"title": "Rivers", "bbox": []float64{-10, 35, 30, 60}, "formats": []string{"image/png"}},
	})
	v.SetDefault("demo.records", []map[string]any{
		{"id": "rivers", "title": "Rivers of Europe", "url": "https://demo.example.org/geoserver/wms", "type": "wms"},
		{"id": "roads", "title": "Main roads", "url": "https://demo.example.org/geoserver/wms", "type": "wms"},
	})
}
