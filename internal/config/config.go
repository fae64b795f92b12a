package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shepherd-chms/pagecat/internal/logger"
)

// Sources that content can be read from.
const (
	SourcePostgres = "postgres"
	SourceConsul   = "consul"
	SourceFile     = "file"
)

// Config is the pagecat configuration.
type Config struct {
	// AppName is the fallback application name, used when the content source
	// has none configured.
	AppName string `mapstructure:"app_name"`
	Source  string `mapstructure:"source"`
	// Timeout bounds the whole run; an explicit 0 disables it.
	Timeout time.Duration `mapstructure:"timeout"`

	Output   OutputConfig   `mapstructure:"output"`
	Page     PageConfig     `mapstructure:"page"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Consul   ConsulConfig   `mapstructure:"consul"`
	Vault    VaultConfig    `mapstructure:"vault"`
	File     FileConfig     `mapstructure:"file"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// OutputConfig controls how the page file is written.
type OutputConfig struct {
	Path       string `mapstructure:"path"`
	Perms      string `mapstructure:"perms"` // octal, e.g. "0644"
	CreateDirs bool   `mapstructure:"create_dirs"`
	Force      bool   `mapstructure:"force"`
	Backup     bool   `mapstructure:"backup"`
	DryRun     bool   `mapstructure:"dry_run"`
}

// FileMode parses Perms. An empty value returns 0, which keeps the mode of
// an existing file.
func (o OutputConfig) FileMode() (os.FileMode, error) {
	if o.Perms == "" {
		return 0, nil
	}
	m, err := strconv.ParseUint(o.Perms, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("output.perms: invalid octal mode %q", o.Perms)
	}
	return os.FileMode(m), nil
}

// PageConfig holds the page presentation settings.
type PageConfig struct {
	Currency string `mapstructure:"currency"`
	Locale   string `mapstructure:"locale"`
}

type PostgresConfig struct {
	// URL is a full connection URL and takes precedence over the fields
	// below.
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	// Pool limits; an explicit 0 keeps the database/sql meaning.
	MaxConnections int           `mapstructure:"max_connections"`
	MaxIdle        int           `mapstructure:"max_idle"`
	ConnLifetime   time.Duration `mapstructure:"conn_lifetime"`
	// PasswordSecret is a Vault secret "<path>#<field>" read for the
	// password when Password is empty.
	PasswordSecret string `mapstructure:"password_secret"`
}

type TLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SkipVerify bool   `mapstructure:"skip_verify"`
	Cert       string `mapstructure:"cert"`
	Key        string `mapstructure:"key"`
	CACert     string `mapstructure:"ca_cert"`
	CAPath     string `mapstructure:"ca_path"`
	ServerName string `mapstructure:"server_name"`
}

type ConsulConfig struct {
	Address    string    `mapstructure:"address"`
	Token      string    `mapstructure:"token"`
	Namespace  string    `mapstructure:"namespace"`
	Datacenter string    `mapstructure:"datacenter"`
	Prefix     string    `mapstructure:"prefix"`
	Filter     string    `mapstructure:"filter"`
	AllowStale bool      `mapstructure:"allow_stale"`
	TLS        TLSConfig `mapstructure:"tls"`
}

type VaultConfig struct {
	Address     string    `mapstructure:"address"`
	Token       string    `mapstructure:"token"`
	Namespace   string    `mapstructure:"namespace"`
	UnwrapToken bool      `mapstructure:"unwrap_token"`
	TLS         TLSConfig `mapstructure:"tls"`
}

type FileConfig struct {
	Catalog string `mapstructure:"catalog"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used for every unset value.
func Default() Config {
	return Config{
		Source:  SourcePostgres,
		Timeout: 30 * time.Second,
		Output: OutputConfig{
			Path: "app/page.tsx",
		},
		Page: PageConfig{
			Currency: "KES",
			Locale:   "en",
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			SSLMode:        "disable",
			MaxConnections: 2,
			MaxIdle:        1,
			ConnLifetime:   5 * time.Minute,
		},
		Consul: ConsulConfig{
			Prefix: "pagecat",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the settings needed by the selected source.
func (c *Config) Validate() error {
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if _, err := c.Output.FileMode(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	switch c.Source {
	case SourcePostgres:
		if c.Postgres.URL == "" {
			if c.Postgres.Host == "" {
				return fmt.Errorf("postgres.host or postgres.url is required")
			}
			if c.Postgres.Database == "" {
				return fmt.Errorf("postgres.database is required")
			}
			if c.Postgres.User == "" {
				return fmt.Errorf("postgres.user is required")
			}
		}
		if c.Postgres.PasswordSecret != "" && c.Vault.Address == "" {
			return fmt.Errorf("vault.address is required to read postgres.password_secret")
		}
	case SourceConsul:
	case SourceFile:
		if c.File.Catalog == "" {
			return fmt.Errorf("file.catalog is required for the file source")
		}
	default:
		return fmt.Errorf("unknown source %q (want %s, %s or %s)",
			c.Source, SourcePostgres, SourceConsul, SourceFile)
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %s", err)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}

	return nil
}
