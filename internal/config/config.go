package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/appwatch/internal/logger"
)

const (
	EnvPrefix = "APPWATCH"

	DefaultIOSURL     = "https://apps.apple.com/au/app/tesla/id582007913"
	DefaultAndroidURL = "https://play.google.com/store/apps/details?id=com.teslamotors.tesla&hl=en_AU"
	DefaultLookupURL  = "https://itunes.apple.com/lookup"
)

// PlatformConfig configures one storefront.
type PlatformConfig struct {
	Enabled   bool   `toml:"enabled" mapstructure:"enabled"`
	URL       string `toml:"url" mapstructure:"url"`
	LookupURL string `toml:"lookup_url" mapstructure:"lookup_url"` // iOS only
}

type PlatformsConfig struct {
	IOS     PlatformConfig `toml:"ios" mapstructure:"ios"`
	Android PlatformConfig `toml:"android" mapstructure:"android"`
}

// HistoryConfig selects the history backend. DSN is a directory path, file://,
// sqlite:// or postgres:// URL.
type HistoryConfig struct {
	DSN           string `toml:"dsn" mapstructure:"dsn"`
	Prefix        string `toml:"prefix" mapstructure:"prefix"`
	Retention     int    `toml:"retention" mapstructure:"retention"`
	SkipUnchanged bool   `toml:"skip_unchanged" mapstructure:"skip_unchanged"`
}

type NotifyConfig struct {
	Sinks     []string      `toml:"sinks" mapstructure:"sinks"`
	Username  string        `toml:"username" mapstructure:"username"`
	AvatarURL string        `toml:"avatar_url" mapstructure:"avatar_url"`
	Timeout   time.Duration `toml:"timeout" mapstructure:"timeout"`
}

// MetricsConfig selects where metrics go after a run. Both targets are optional.
type MetricsConfig struct {
	Textfile    string `toml:"textfile" mapstructure:"textfile"`
	Pushgateway string `toml:"pushgateway" mapstructure:"pushgateway"`
	Job         string `toml:"job" mapstructure:"job"`
}

// Config is the whole runtime configuration.
type Config struct {
	AppName      string          `toml:"app_name" mapstructure:"app_name"`
	FetchTimeout time.Duration   `toml:"fetch_timeout" mapstructure:"fetch_timeout"`
	History      HistoryConfig   `toml:"history" mapstructure:"history"`
	Platforms    PlatformsConfig `toml:"platforms" mapstructure:"platforms"`
	Notify       NotifyConfig    `toml:"notify" mapstructure:"notify"`
	Log          logger.Config   `toml:"log" mapstructure:"log"`
	Metrics      MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
}

var defaults = map[string]any{
	"app_name":                  "Tesla",
	"fetch_timeout":             "30s",
	"history.dsn":               "./data",
	"history.prefix":            "tesla",
	"history.retention":         10,
	"history.skip_unchanged":    false,
	"platforms.ios.enabled":     true,
	"platforms.ios.url":         DefaultIOSURL,
	"platforms.ios.lookup_url":  DefaultLookupURL,
	"platforms.android.enabled": true,
	"platforms.android.url":     DefaultAndroidURL,
	"notify.sinks":              []string{},
	"notify.username":           "Tesla App Watcher",
	"notify.avatar_url":         "",
	"notify.timeout":            "10s",
	"log.level":                 "info",
	"log.format":                "text",
	"log.color":                 false,
	"log.file.path":             "",
	"log.file.max_size_mb":      0,
	"log.file.max_backups":      0,
	"log.file.max_age_days":     0,
	"log.file.compress":         false,
	"metrics.textfile":          "",
	"metrics.pushgateway":       "",
	"metrics.job":               "appwatch",
}

// legacyEnv maps keys to the older DISCORD_* variable names.
// APPWATCH_* names win when both are set.
var legacyEnv = map[string]string{
	"notify.sinks":      "DISCORD_WEBHOOK_URL",
	"notify.avatar_url": "DISCORD_AVATAR_URL",
	"notify.username":   "DISCORD_BOT_NAME",
}

// Load reads an optional TOML file and applies environment overrides.
// An empty path means defaults plus environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), name); err != nil {
			return Config{}, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.Notify.Sinks = splitSinks(c.Notify.Sinks)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// splitSinks flattens comma separated entries and drops blanks.
func splitSinks(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	var errs []error
	if c.History.Retention < 1 {
		errs = append(errs, fmt.Errorf("history.retention must be >= 1, got %d", c.History.Retention))
	}
	if strings.TrimSpace(c.History.DSN) == "" {
		errs = append(errs, errors.New("history.dsn is required"))
	}
	if !c.Platforms.IOS.Enabled && !c.Platforms.Android.Enabled {
		errs = append(errs, errors.New("no platform enabled"))
	}
	if c.Platforms.IOS.Enabled && c.Platforms.IOS.URL == "" {
		errs = append(errs, errors.New("platforms.ios.url is required"))
	}
	if c.Platforms.Android.Enabled && c.Platforms.Android.URL == "" {
		errs = append(errs, errors.New("platforms.android.url is required"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch_timeout must be positive"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
