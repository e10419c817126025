// Package config provides functionality for managing configuration options
// for the server and the client using defaults, an optional YAML file,
// environment variables and command-line flags.
//
// Precedence, lowest first: built-in defaults, config file, GLYCO_* environment
// variables, explicitly passed flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by the loader.
// GLYCO_DATABASE_DSN maps to the database_dsn key.
const EnvPrefix = "GLYCO_"

// ServerOptions holds the configuration values for the reference backend.
type ServerOptions struct {
	// Addr defines the server's listening address (ip:port).
	Addr string `koanf:"addr"`

	// DatabaseDSN holds the PostgreSQL connection string.
	DatabaseDSN string `koanf:"database_dsn"`

	// JWTSecret signs access and refresh tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// AccessTTL and RefreshTTL are the lifetimes of issued tokens.
	AccessTTL  time.Duration `koanf:"access_ttl"`
	RefreshTTL time.Duration `koanf:"refresh_ttl"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `koanf:"tls_cert"`
	TLSKey  string `koanf:"tls_key"`

	LogLevel string `koanf:"log_level"`

	// AuthRateLimit is the number of /auth requests allowed per IP per minute.
	AuthRateLimit int `koanf:"auth_rate_limit"`

	// SnapshotRetention is how long dashboard snapshots are kept without updates.
	SnapshotRetention time.Duration `koanf:"snapshot_retention"`
	// CleanInterval is how often stale snapshots are purged.
	CleanInterval time.Duration `koanf:"clean_interval"`
}

// ClientOptions holds the configuration values for the CLI client.
type ClientOptions struct {
	// BaseURL is the backend root, e.g. https://localhost:8080.
	BaseURL string `koanf:"base_url"`
	// CAFile is an optional extra CA to trust (dev certificates).
	CAFile string `koanf:"ca_file"`
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `koanf:"timeout"`

	// StoragePath is the device-local key/value file.
	StoragePath string `koanf:"storage_path"`
	// StorageSecret, when set, encrypts stored credentials at rest.
	StorageSecret string `koanf:"storage_secret"`

	GeocodeURL       string `koanf:"geocode_url"`
	GeocodeUserAgent string `koanf:"geocode_user_agent"`

	LogLevel string `koanf:"log_level"`
}

// DefaultServerOptions returns the built-in server defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Addr:              "localhost:8080",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        30 * 24 * time.Hour,
		LogLevel:          "info",
		AuthRateLimit:     20,
		SnapshotRetention: 90 * 24 * time.Hour,
		CleanInterval:     time.Hour,
	}
}

// DefaultClientOptions returns the built-in client defaults.
func DefaultClientOptions() ClientOptions {
	storage := "storage.json"
	if dir, err := os.UserConfigDir(); err == nil {
		storage = filepath.Join(dir, "glycokeeper", "storage.json")
	}
	return ClientOptions{
		BaseURL:          "https://localhost:8080",
		Timeout:          10 * time.Second,
		StoragePath:      storage,
		GeocodeURL:       "https://nominatim.openstreetmap.org",
		GeocodeUserAgent: "GlycoKeeper/1.0",
		LogLevel:         "warn",
	}
}

// Validate reports configuration the server cannot start with.
func (o *ServerOptions) Validate() error {
	var errs []error
	if o.DatabaseDSN == "" {
		errs = append(errs, errors.New("database_dsn is required"))
	}
	if len(o.JWTSecret) < 32 {
		errs = append(errs, errors.New("jwt_secret must be at least 32 characters"))
	}
	if o.AccessTTL <= 0 || o.RefreshTTL <= o.AccessTTL {
		errs = append(errs, errors.New("refresh_ttl must be longer than a positive access_ttl"))
	}
	if (o.TLSCert == "") != (o.TLSKey == "") {
		errs = append(errs, errors.New("tls_cert and tls_key must be set together"))
	}
	return errors.Join(errs...)
}

// ParseServer parses args and the environment into ServerOptions.
func ParseServer(args []string) (*ServerOptions, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.String("a", "", "run on ip:port server")
	fs.String("d", "", "db address")
	fs.String("jwt-secret", "", "secret used to sign tokens")
	fs.String("tls-cert", "", "path to TLS certificate")
	fs.String("tls-key", "", "path to TLS key")
	fs.String("log-level", "", "log level")
	keys := map[string]string{
		"a":          "addr",
		"d":          "database_dsn",
		"jwt-secret": "jwt_secret",
		"tls-cert":   "tls_cert",
		"tls-key":    "tls_key",
		"log-level":  "log_level",
	}

	opts := DefaultServerOptions()
	if err := load(fs, args, opts, keys, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// ParseClient parses args into ClientOptions. fs may already carry
// command-specific flags; they are parsed in the same pass.
func ParseClient(fs *flag.FlagSet, args []string) (*ClientOptions, error) {
	fs.String("url", "", "server base URL")
	fs.String("ca", "", "path to extra CA cert")
	fs.Duration("timeout", 0, "HTTP request timeout")
	fs.String("storage", "", "path to local storage file")
	fs.String("log-level", "", "log level")
	keys := map[string]string{
		"url":       "base_url",
		"ca":        "ca_file",
		"timeout":   "timeout",
		"storage":   "storage_path",
		"log-level": "log_level",
	}

	opts := DefaultClientOptions()
	if err := load(fs, args, opts, keys, &opts); err != nil {
		return nil, err
	}
	return &opts, nil
}

// load layers defaults, the config file, the environment and visited flags, then unmarshals into out.
func load(fs *flag.FlagSet, args []string, defaults any, keys map[string]string, out any) error {
	var configPath string
	fs.StringVar(&configPath, "config", "", "path to YAML config file")
	fs.StringVar(&configPath, "c", "", "path to YAML config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Override flags with environment variables if set
	if p := os.Getenv("CONFIG"); p != "" {
		configPath = p
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" && k.Exists("addr") {
		_ = k.Set("addr", addr)
	}

	var setErr error
	fs.Visit(func(f *flag.Flag) {
		key, ok := keys[f.Name]
		if !ok || setErr != nil {
			return
		}
		setErr = k.Set(key, f.Value.String())
	})
	if setErr != nil {
		return fmt.Errorf("apply flags: %w", setErr)
	}

	if err := k.Unmarshal("", out); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}
