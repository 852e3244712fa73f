// Package config loads settings from a TOML file, a .env file and STATEMENTS_
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/insightdelivered/statement-ingest/internal/bank"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

// EnvPrefix prefixes every environment override, e.g. STATEMENTS_SERVER_ADDR.
const EnvPrefix = "STATEMENTS"

// Config holds application configuration.
type Config struct {
	Log      LogConfig
	Server   ServerConfig
	Pipeline PipelineConfig
	Banks    BanksConfig
	Inbox    InboxConfig
	Output   OutputConfig
	Archive  ArchiveConfig
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string // debug, info, warn or error
	Format string // text or json
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr      string
	BodyLimit int `mapstructure:"body_limit"`
}

// PipelineConfig bounds document processing.
type PipelineConfig struct {
	Workers int
	Timeout time.Duration
}

// BanksConfig extends the built-in institution profiles.
type BanksConfig struct {
	// File is a TOML file of extra profiles, merged over the built-ins by name.
	File string
	// Credentials are appended to the named profiles.
	Credentials map[string][]models.Credential
}

// InboxConfig holds the watched directory settings.
type InboxConfig struct {
	Dir      string
	Sweep    string
	Debounce time.Duration
}

// OutputConfig controls converted statement files.
type OutputConfig struct {
	Dir    string
	Format string
	Header bool
}

// ArchiveConfig locates archived sources and results. Empty disables archiving.
type ArchiveConfig struct {
	Dir string
}

// Load reads configuration. path overrides STATEMENTS_CONFIG and the default
// ~/.config/statement-ingest/config.toml; a missing default file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "statement-ingest"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// Parse reads TOML configuration from r, without consulting files or the
// environment.
func Parse(r io.Reader) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("toml")
	if err := v.ReadConfig(r); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.body_limit", 32<<20)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.timeout", 2*time.Minute)
	v.SetDefault("banks.file", "")
	v.SetDefault("inbox.dir", "")
	v.SetDefault("inbox.sweep", "@every 5m")
	v.SetDefault("inbox.debounce", 500*time.Millisecond)
	v.SetDefault("output.dir", "")
	v.SetDefault("output.format", string(writer.FormatCSV))
	v.SetDefault("output.header", true)
	v.SetDefault("archive.dir", "")
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		// The decoder echoes offending values, so credential errors are replaced.
		if strings.Contains(strings.ToLower(err.Error()), "credentials") {
			return Config{}, fmt.Errorf("banks.credentials: %w", models.ErrMalformedCredential)
		}
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values the decoder cannot.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	if _, err := writer.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers: must be at least 1, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.Timeout < 0 {
		return fmt.Errorf("pipeline.timeout: must not be negative")
	}
	for name, creds := range c.Banks.Credentials {
		for _, cred := range creds {
			if !cred.Valid() {
				return fmt.Errorf("banks.credentials.%s: %w", name, models.ErrMalformedCredential)
			}
		}
	}
	return nil
}

// OutputFormat returns the validated output format.
func (c Config) OutputFormat() writer.Format {
	f, _ := writer.ParseFormat(c.Output.Format)
	return f
}

// Registry builds the institution registry: the built-in profiles, overlaid
// with Banks.File, plus configured credentials.
func (c Config) Registry() (*bank.Registry, error) {
	profiles := bank.Builtin()
	if c.Banks.File != "" {
		extra, err := bank.LoadFile(c.Banks.File)
		if err != nil {
			return nil, err
		}
		profiles = bank.Merge(profiles, extra)
	}
	profiles, unknown := bank.WithCredentials(profiles, c.Banks.Credentials)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("banks.credentials: no institution named %s", strings.Join(unknown, ", "))
	}
	return bank.NewRegistry(profiles...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: unknown level %q", s)
	}
	return l, nil
}

// Logger returns the configured logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
