package config

// config.go loads the TOML connection profile and applies env overrides.
import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/HaPhanBaoMinh/vmanager/internal/domain"
)

const DefaultFileName = ".vmanager.toml"

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Inventory InventoryConfig `toml:"inventory"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Log       LogConfig       `toml:"log"`

	// File is where the profile was read from; empty when none was found.
	File string `toml:"-"`
}

type ServerConfig struct {
	Host      string   `toml:"host"`
	Port      int      `toml:"port"`
	Node      string   `toml:"node"`
	VerifyTLS bool     `toml:"verify_tls"`
	Timeout   Duration `toml:"timeout"`
}

type AuthConfig struct {
	Scheme      string `toml:"scheme"`
	TokenID     string `toml:"token_id"`
	TokenSecret string `toml:"token_secret"`
}

type InventoryConfig struct {
	StatePolicy       string `toml:"state_policy"`
	DetailConcurrency int    `toml:"detail_concurrency"`
}

type MonitorConfig struct {
	RefreshInterval Duration `toml:"refresh_interval"`
}

type MetricsConfig struct {
	Listen   string   `toml:"listen"`
	Interval Duration `toml:"interval"`
}

type LogConfig struct {
	Level  LogLevel `toml:"level"`
	Format string   `toml:"format"` // text|json
	File   string   `toml:"file"`
}

type LogLevel string

func (l LogLevel) ToSlogLevel() slog.Level {
	switch strings.ToLower(string(l)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Duration reads "30s" style strings from TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		*d = 0
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(dd)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Default returns a profile with every optional field filled in.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:    8006,
			Node:    "pve",
			Timeout: Duration(30 * time.Second),
		},
		Auth:      AuthConfig{Scheme: "PVEAPIToken"},
		Inventory: InventoryConfig{StatePolicy: string(domain.PolicyReference), DetailConcurrency: 1},
		Monitor:   MonitorConfig{RefreshInterval: Duration(30 * time.Second)},
		Metrics:   MetricsConfig{Listen: ":9109", Interval: Duration(30 * time.Second)},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath is ~/.vmanager.toml.
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultFileName), nil
}

// LoadEnvFile loads a dotenv file into the process environment without
// overriding variables that are already set.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads path (a missing file is fine unless required), then the
// environment. Priority: defaults < file < environment.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return Config{}, err
	}

	if _, err := os.Stat(expanded); err == nil {
		if _, err := toml.DecodeFile(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", expanded, err)
		}
		cfg.File = expanded
	} else if required || !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("VMANAGER_HOST", &cfg.Server.Host)
	str("VMANAGER_NODE", &cfg.Server.Node)
	str("VMANAGER_TOKEN_ID", &cfg.Auth.TokenID)
	str("VMANAGER_TOKEN_SECRET", &cfg.Auth.TokenSecret)

	if v, ok := lookup("VMANAGER_PORT"); ok && strings.TrimSpace(v) != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("VMANAGER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v, ok := lookup("VMANAGER_VERIFY_TLS"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("VMANAGER_VERIFY_TLS: %w", err)
		}
		cfg.Server.VerifyTLS = b
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.Node == "" {
		c.Server.Node = def.Server.Node
	}
	if c.Server.Timeout <= 0 {
		c.Server.Timeout = def.Server.Timeout
	}
	if c.Auth.Scheme == "" {
		c.Auth.Scheme = def.Auth.Scheme
	}
	if c.Inventory.StatePolicy == "" {
		c.Inventory.StatePolicy = def.Inventory.StatePolicy
	}
	if c.Inventory.DetailConcurrency < 1 {
		c.Inventory.DetailConcurrency = 1
	}
	if c.Monitor.RefreshInterval <= 0 {
		c.Monitor.RefreshInterval = def.Monitor.RefreshInterval
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = def.Metrics.Listen
	}
	if c.Metrics.Interval <= 0 {
		c.Metrics.Interval = def.Metrics.Interval
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

// Validate checks what a connection needs; all missing fields are reported
// together.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Server.Host) == "" {
		missing = append(missing, "server.host")
	}
	if strings.TrimSpace(c.Server.Node) == "" {
		missing = append(missing, "server.node")
	}
	if strings.TrimSpace(c.Auth.TokenID) == "" {
		missing = append(missing, "auth.token_id")
	}
	if strings.TrimSpace(c.Auth.TokenSecret) == "" {
		missing = append(missing, "auth.token_secret")
	}
	if len(missing) > 0 {
		return &domain.ValidationError{Field: "config", Reason: "missing " + strings.Join(missing, ", ")}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &domain.ValidationError{Field: "server.port", Value: strconv.Itoa(c.Server.Port), Reason: "must be 1-65535"}
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return &domain.ValidationError{Field: "log.format", Value: c.Log.Format, Reason: "must be text or json"}
	}
	return nil
}

func (c Config) Policy() (domain.StatePolicy, error) {
	return domain.ParseStatePolicy(c.Inventory.StatePolicy)
}

// Save writes the profile with owner-only permissions since it holds the
// token secret. Existing files are not overwritten unless force is set.
func Save(path string, cfg Config, force bool) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(expanded, flags, 0o600)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// NewLogger builds the process logger. Monitor mode passes a file (or
// io.Discard) so log lines do not land on the alt screen.
func NewLogger(cfg LogConfig, w io.Writer, debug bool) *slog.Logger {
	level := cfg.Level.ToSlogLevel()
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
