package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// maxSyncRetries bounds sync.max_retries; each retry doubles the delay.
const maxSyncRetries = 10

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`   // sqlite file
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	UserHeader string `mapstructure:"user_header"`
}

type CalendarConfig struct {
	// Driver picks the adapter backing every provider: "google" or "memory".
	Driver string       `mapstructure:"driver"`
	Google GoogleConfig `mapstructure:"google"`
}

type GoogleConfig struct {
	ServiceAccount map[string]any `mapstructure:"service_account"`
}

type SyncConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"` // cron spec, empty disables
	RefreshBatch    int           `mapstructure:"refresh_batch"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "boardsync.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.user_header", "X-User-ID")
	v.SetDefault("calendar.driver", "memory")
	v.SetDefault("sync.max_retries", 3)
	v.SetDefault("sync.base_delay", 250*time.Millisecond)
	v.SetDefault("sync.refresh_schedule", "")
	v.SetDefault("sync.refresh_batch", 100)
}

// Load reads config.toml from the working directory (or the given file) and
// applies BOARDSYNC_* environment overrides. A missing file is not an error.
func Load(file string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("boardsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}

	switch c.Calendar.Driver {
	case "memory":
	case "google":
		if len(c.Calendar.Google.ServiceAccount) == 0 {
			return errors.New("calendar.google.service_account is required for the google driver")
		}
	default:
		return fmt.Errorf("unsupported calendar.driver %q", c.Calendar.Driver)
	}

	if c.Sync.MaxRetries < 0 || c.Sync.MaxRetries > maxSyncRetries {
		return fmt.Errorf("sync.max_retries must be between 0 and %d", maxSyncRetries)
	}
	if c.Sync.BaseDelay <= 0 {
		return errors.New("sync.base_delay must be positive")
	}
	return nil
}
