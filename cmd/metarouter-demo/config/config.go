// Package config loads the demo binary's runtime configuration with
// spf13/viper, mirroring the teacher's config.LoadConfig() entry point.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the demo binary's configuration surface; it feeds
// metarouter.Options.
type Config struct {
	WriteKey             string `mapstructure:"write_key"`
	IngestionHost        string `mapstructure:"ingestion_host"`
	Debug                bool   `mapstructure:"debug"`
	FlushIntervalSeconds int    `mapstructure:"flush_interval_seconds"`
	MaxQueueEvents       int    `mapstructure:"max_queue_events"`
}

// LoadConfig reads configFile (if non-empty) plus METAROUTER_*
// environment variables, applying defaults for anything unset.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("METAROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without a default are invisible to Unmarshal unless bound.
	_ = v.BindEnv("write_key")
	_ = v.BindEnv("ingestion_host")

	v.SetDefault("debug", false)
	v.SetDefault("flush_interval_seconds", 10)
	v.SetDefault("max_queue_events", 2000)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
