package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "NEARBY"

// Settings holds runtime settings that are not tied to a profile.
type Settings struct {
	PlacesAPIKey      string        `mapstructure:"places_api_key"`
	PlacesEndpoint    string        `mapstructure:"places_endpoint"`
	GeoIPEndpoint     string        `mapstructure:"geoip_endpoint"`
	NominatimEndpoint string        `mapstructure:"nominatim_endpoint"`
	HTTPMinIntervalMS int           `mapstructure:"http_min_interval_ms"`
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisDB           int           `mapstructure:"redis_db"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	SettingsCommand   []string      `mapstructure:"settings_command"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
}

// HTTPMinInterval returns the minimum gap between upstream requests.
func (s Settings) HTTPMinInterval() time.Duration {
	return time.Duration(s.HTTPMinIntervalMS) * time.Millisecond
}

// LoadSettings reads settings from an optional nearby.yaml and NEARBY_*
// environment variables. An explicit file must exist; the default search
// paths may be empty.
func LoadSettings(file string, searchPaths ...string) (Settings, error) {
	v := viper.New()

	v.SetDefault("places_api_key", "")
	v.SetDefault("places_endpoint", "")
	v.SetDefault("geoip_endpoint", "")
	v.SetDefault("nominatim_endpoint", "")
	v.SetDefault("http_min_interval_ms", 0)
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl", "10m")
	v.SetDefault("settings_command", []string{})
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "text")

	if strings.TrimSpace(file) != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read settings %s: %w", file, err)
		}
	} else {
		v.SetConfigName("nearby")
		v.SetConfigType("yaml")
		for _, path := range searchPaths {
			v.AddConfigPath(path)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Settings{}, fmt.Errorf("read settings: %w", err)
			}
		}
	}

	// NEARBY_REDIS_ADDR -> redis_addr
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks that settings are sane.
func (s Settings) Validate() error {
	var errs []string

	if s.HTTPMinIntervalMS < 0 {
		errs = append(errs, fmt.Sprintf("http_min_interval_ms must not be negative, got %d", s.HTTPMinIntervalMS))
	}
	if s.RedisDB < 0 {
		errs = append(errs, fmt.Sprintf("redis_db must not be negative, got %d", s.RedisDB))
	}
	if s.CacheTTL < 0 {
		errs = append(errs, "cache_ttl must not be negative")
	}
	switch strings.ToLower(s.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log_format must be text or json, got %q", s.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("settings validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
