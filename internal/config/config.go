package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int
	}
	Database struct {
		Path string
	}
	Log struct {
		Development bool
	}
	Scheduler struct {
		PollInterval      time.Duration `mapstructure:"poll_interval"`
		Timezone          string
		MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
		RunTimeout        time.Duration `mapstructure:"run_timeout"`
	}
	Email struct {
		SMTPHost string `mapstructure:"smtp_host"`
		SMTPPort int    `mapstructure:"smtp_port"`
		Username string
		Password string
		From     string
	}
	Slack struct {
		Token   string
		Channel string
	}
	Auth struct {
		JWTSecret     string        `mapstructure:"jwt_secret"`
		TokenTTL      time.Duration `mapstructure:"token_ttl"`
		AdminUsername string        `mapstructure:"admin_username"`
		AdminPassword string        `mapstructure:"admin_password"`
	}
	API struct {
		RunNowRate  float64 `mapstructure:"run_now_rate"`
		RunNowBurst int     `mapstructure:"run_now_burst"`
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "data/assetdesk.db")
	v.SetDefault("log.development", false)

	v.SetDefault("scheduler.poll_interval", 30*time.Second)
	v.SetDefault("scheduler.timezone", "UTC")
	v.SetDefault("scheduler.max_concurrent_runs", 8)
	v.SetDefault("scheduler.run_timeout", 5*time.Minute)

	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "AssetDesk <reports@assetdesk.local>")

	// empty secrets are registered so ASSETDESK_* variables can supply them
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "#it-assets")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.admin_username", "admin")
	v.SetDefault("auth.admin_password", "")

	v.SetDefault("api.run_now_rate", 1.0)
	v.SetDefault("api.run_now_burst", 5)
}

// Load reads the configuration from path, or from ./config.yaml when path is empty.
// Environment variables prefixed with ASSETDESK_ override file values
// (ASSETDESK_SCHEDULER_TIMEZONE overrides scheduler.timezone). A missing config file
// is not an error: defaults are used and a config.yaml with them is written.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ASSETDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
			writeDefaults(v)
		case path != "" && os.IsNotExist(err):
			// explicit path that does not exist yet: run on defaults
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeDefaults(v *viper.Viper) {
	dir := filepath.Dir(v.GetString("database.path"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Warning: Failed to create data directory: %v\n", err)
	}
	if err := v.SafeWriteConfig(); err != nil {
		fmt.Printf("Warning: Failed to write default config: %v\n", err)
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive")
	}
	if c.Scheduler.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("scheduler.max_concurrent_runs must be positive")
	}
	if c.Scheduler.RunTimeout <= 0 {
		return fmt.Errorf("scheduler.run_timeout must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the reference timezone schedules are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}
