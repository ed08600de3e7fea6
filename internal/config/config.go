package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pocketbook/internal/log"
)

// EnvPrefix prefixes every environment override, e.g. POCKETBOOK_STORAGE_BACKEND.
const EnvPrefix = "POCKETBOOK"

type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	App     AppConfig     `mapstructure:"app"`
	AMQP    AMQPConfig    `mapstructure:"amqp"`
	Sheets  SheetsConfig  `mapstructure:"sheets"`
	Backup  BackupConfig  `mapstructure:"backup"`
}

type StorageConfig struct {
	// Backend is memory or sqlite
	Backend    string        `mapstructure:"backend"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	CacheSize  int           `mapstructure:"cache_size"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AppConfig struct {
	// Timezone is an IANA name; empty means the local zone
	Timezone string `mapstructure:"timezone"`
}

// AMQPConfig enables the change feed when URL is set.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

// SheetsConfig enables spreadsheet export when SpreadsheetID is set.
type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	SheetName       string `mapstructure:"sheet_name"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`

	// OAuth user credentials replace the service account when a token file
	// is set; pocketbook-oauth-init writes it
	OAuthClientFile   string `mapstructure:"oauth_client_file"`
	OAuthClientJSON   string `mapstructure:"oauth_client_json"`
	OAuthTokenFile    string `mapstructure:"oauth_token_file"`
	OAuthRedirectPort int    `mapstructure:"oauth_redirect_port"`
}

type BackupConfig struct {
	SQLitePath       string        `mapstructure:"sqlite_path"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

func setDefaults(v *viper.Viper) {
	dataDir := filepath.Join(os.Getenv("HOME"), ".local", "share", "pocketbook")

	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.sqlite_path", filepath.Join(dataDir, "pocketbook.db"))
	v.SetDefault("storage.cache_size", 16)
	v.SetDefault("storage.cache_ttl", 5*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("app.timezone", "")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "pocketbook")
	v.SetDefault("amqp.queue", "pocketbook_changes")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.sheet_name", "Transactions")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.credentials_json", "")
	v.SetDefault("sheets.oauth_client_file", "")
	v.SetDefault("sheets.oauth_client_json", "")
	v.SetDefault("sheets.oauth_token_file", "")
	v.SetDefault("sheets.oauth_redirect_port", 8085)
	v.SetDefault("backup.sqlite_path", filepath.Join(dataDir, "backup.db"))
	v.SetDefault("backup.snapshot_interval", time.Hour)
}

// Load reads defaults, then the TOML file named by POCKETBOOK_CONFIG (or
// $HOME/.config/pocketbook/config.toml when present), then POCKETBOOK_*
// environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if cfgPath := os.Getenv(EnvPrefix + "_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "pocketbook"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// A missing default file is fine; an explicit or broken one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// Location resolves App.Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errors []string

	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errors = append(errors, "storage.sqlite_path cannot be empty when using sqlite backend")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid storage backend '%s': must be one of [memory sqlite]", c.Storage.Backend))
	}
	if c.Storage.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must not be negative", c.Storage.CacheSize))
	}
	if c.Storage.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache ttl %v: must not be negative", c.Storage.CacheTTL))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.Log.Format))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s'", c.App.Timezone))
	}

	if c.AMQP.URL != "" {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.Sheets.SpreadsheetID != "" {
		if c.Sheets.SheetName == "" {
			errors = append(errors, "sheet name is required when a spreadsheet ID is set")
		}
		hasFile := c.Sheets.CredentialsFile != ""
		switch {
		case c.Sheets.OAuthTokenFile != "":
			if c.Sheets.OAuthClientFile == "" && c.Sheets.OAuthClientJSON == "" {
				errors = append(errors, "sheets.oauth_client_file or sheets.oauth_client_json is required with sheets.oauth_token_file")
			}
		case !hasFile && c.Sheets.CredentialsJSON == "":
			errors = append(errors, "either sheets.credentials_file or sheets.credentials_json must be provided for sheets export (or sheets.oauth_token_file)")
		}
		if hasFile {
			if _, err := os.Stat(c.Sheets.CredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.Sheets.CredentialsFile))
			}
		}
	}

	if c.Backup.SnapshotInterval < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot interval %v: must not be negative", c.Backup.SnapshotInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateBackup checks the settings the backup worker needs on top of
// Validate.
func (c *Config) ValidateBackup() error {
	var errors []string
	if c.AMQP.URL == "" {
		errors = append(errors, "amqp.url is required for the backup worker")
	}
	if c.Backup.SQLitePath == "" {
		errors = append(errors, "backup.sqlite_path is required for the backup worker")
	}
	if c.Storage.Backend != "sqlite" {
		errors = append(errors, "storage.backend must be sqlite for the backup worker")
	} else if c.Backup.SQLitePath == c.Storage.SQLitePath {
		errors = append(errors, "backup.sqlite_path must differ from storage.sqlite_path")
	}
	if len(errors) > 0 {
		return fmt.Errorf("backup configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
