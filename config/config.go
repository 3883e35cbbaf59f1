// Package config loads the zkmail YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Domain is the signing domain messages must come from.
	Domain string `yaml:"domain"`
	// Email is the default message file for prove.
	Email string `yaml:"email"`

	DNS    DNSConfig    `yaml:"dns"`
	Guest  GuestConfig  `yaml:"guest"`
	Prover ProverConfig `yaml:"prover"`
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type DNSConfig struct {
	// Std uses the system resolver instead of querying nameservers directly.
	Std         bool          `yaml:"std"`
	Nameservers []string      `yaml:"nameservers"`
	DNSSEC      bool          `yaml:"dnssec"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
}

// Guest executors.
const (
	ExecutorNative = "native"
	ExecutorWasm   = "wasm"
)

type GuestConfig struct {
	Executor string `yaml:"executor"`
	// Image is the wasip1 program for the wasm executor.
	Image            string `yaml:"image"`
	MemoryLimitPages uint32 `yaml:"memoryLimitPages"`
}

type ProverConfig struct {
	KeyDir string `yaml:"keyDir"`
}

// Store kinds.
const (
	StoreFile = "file"
	StoreS3   = "s3"
)

type StoreConfig struct {
	Kind     string `yaml:"kind"`
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	Key      string `yaml:"key"`
	Secret   string `yaml:"secret"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// MaxUpload bounds the size of an uploaded message in bytes.
	MaxUpload int64 `yaml:"maxUpload"`
	Metrics   bool  `yaml:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	return &Config{
		DNS: DNSConfig{
			Std:     true,
			Timeout: 5 * time.Second,
			Retries: 2,
		},
		Guest: GuestConfig{
			Executor: ExecutorNative,
		},
		Prover: ProverConfig{
			KeyDir: "keys",
		},
		Store: StoreConfig{
			Kind: StoreFile,
			Dir:  "artifacts",
		},
		Server: ServerConfig{
			Addr:      ":8080",
			MaxUpload: 10 << 20,
			Metrics:   true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the file at path over the defaults. A missing path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	if err := cfg.decode(f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse reads YAML data over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Domain) == "" {
		errs = append(errs, errors.New("domain is required"))
	}
	if c.DNS.Timeout < 0 {
		errs = append(errs, errors.New("dns.timeout must not be negative"))
	}
	if c.DNS.Retries < 0 {
		errs = append(errs, errors.New("dns.retries must not be negative"))
	}
	switch c.Guest.Executor {
	case ExecutorNative:
	case ExecutorWasm:
		if c.Guest.Image == "" {
			errs = append(errs, errors.New("guest.image is required for the wasm executor"))
		}
	default:
		errs = append(errs, fmt.Errorf("guest.executor %q is not %s or %s", c.Guest.Executor, ExecutorNative, ExecutorWasm))
	}
	switch c.Store.Kind {
	case StoreFile:
		if c.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required for the file store"))
		}
	case StoreS3:
		if c.Store.Bucket == "" {
			errs = append(errs, errors.New("store.bucket is required for the s3 store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind %q is not %s or %s", c.Store.Kind, StoreFile, StoreS3))
	}
	if c.Server.MaxUpload <= 0 {
		errs = append(errs, errors.New("server.maxUpload must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Errorf("log.format %q is not json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}

// NewLogger builds the logger described by c.Log.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
