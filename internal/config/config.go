// Package config loads the editor and service configuration file.
//
// The default file is config.json under ConfigDir. JSON files may carry
// comments and trailing commas; files ending in .toml are read as TOML.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"bibedit-cli/internal/marc"
	"bibedit-cli/internal/perm"
	"bibedit-cli/internal/tagfmt"
)

const (
	EnvConfigDir = "BIBEDIT_CONFIG_DIR"
	EnvURL       = "BIBEDIT_URL"
	EnvDir       = "BIBEDIT_DIR"

	FileName = "config.json"
)

// ErrUnknownFormat is returned for config files that are neither JSON nor TOML.
var ErrUnknownFormat = errors.New("unknown config format")

//go:embed tagnames.hujson
var defaultTagNames []byte

type ServerConfig struct {
	Addr       string `json:"addr,omitempty" toml:"addr"`
	Dir        string `json:"dir,omitempty" toml:"dir"`
	Auth       string `json:"auth,omitempty" toml:"auth"`
	SessionTTL string `json:"sessionTTL,omitempty" toml:"sessionTTL"`
	LockGrace  string `json:"lockGrace,omitempty" toml:"lockGrace"`
}

type ClientConfig struct {
	URL            string `json:"url,omitempty" toml:"url"`
	User           string `json:"user,omitempty" toml:"user"`
	PollInterval   string `json:"pollInterval,omitempty" toml:"pollInterval"`
	RequestTimeout string `json:"requestTimeout,omitempty" toml:"requestTimeout"`
}

type Config struct {
	Server ServerConfig `json:"server" toml:"server"`
	Client ClientConfig `json:"client" toml:"client"`

	TagFormat          string            `json:"tagFormat,omitempty" toml:"tagFormat"`
	ProtectedFields    []string          `json:"protectedFields,omitempty" toml:"protectedFields"`
	TagNames           map[string]string `json:"tagNames,omitempty" toml:"tagNames,omitempty"`
	TagNamesFile       string            `json:"tagNamesFile,omitempty" toml:"tagNamesFile,omitempty"`
	AllowLowercaseTags bool              `json:"allowLowercaseTags,omitempty" toml:"allowLowercaseTags"`
	CapitalIndicators  bool              `json:"capitalIndicators,omitempty" toml:"capitalIndicators"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:8770",
			Auth:       "none",
			SessionTTL: "12h",
		},
		Client: ClientConfig{
			URL:            "http://127.0.0.1:8770",
			PollInterval:   "100ms",
			RequestTimeout: "30s",
		},
		TagFormat:       string(tagfmt.FormatMARC),
		ProtectedFields: []string{"001", "002", "005"},
	}
}

func ConfigDir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".bibedit"), nil
}

// DefaultPath is the config file used when none is given.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	cfg := Default()
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, err
	default:
		if cfg, err = decode(path, b, cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if cfg.Server.Dir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return Config{}, err
		}
		cfg.Server.Dir = filepath.Join(dir, "data")
	}
	return cfg, cfg.Validate()
}

func decode(path string, b []byte, cfg Config) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return Config{}, err
		}
	case ".json", ".jsonc", ".hujson":
		std, err := hujson.Standardize(b)
		if err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Ext(path))
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvURL)); v != "" {
		cfg.Client.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDir)); v != "" {
		cfg.Server.Dir = v
	}
}

// Validate checks enumerations and durations.
func (c Config) Validate() error {
	if _, err := tagfmt.ParseFormat(c.TagFormat); err != nil {
		return err
	}
	switch c.Server.Auth {
	case "", "none", "token":
	default:
		return fmt.Errorf("invalid server auth %q (expected none|token)", c.Server.Auth)
	}
	for name, v := range map[string]string{
		"server.sessionTTL":     c.Server.SessionTTL,
		"server.lockGrace":      c.Server.LockGrace,
		"client.pollInterval":   c.Client.PollInterval,
		"client.requestTimeout": c.Client.RequestTimeout,
	} {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s %q", name, v)
		}
	}
	return nil
}

func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c Config) SessionTTL() time.Duration { return duration(c.Server.SessionTTL, 12*time.Hour) }

// LockGrace falls back to perm.LockGrace, which honors BIBEDIT_LOCK_GRACE_SECONDS.
func (c Config) LockGrace() time.Duration { return duration(c.Server.LockGrace, perm.LockGrace()) }

func (c Config) PollInterval() time.Duration { return duration(c.Client.PollInterval, 100*time.Millisecond) }
func (c Config) RequestTimeout() time.Duration { return duration(c.Client.RequestTimeout, 30*time.Second) }

func (c Config) Rules() marc.Rules {
	return marc.Rules{AllowLowercaseTags: c.AllowLowercaseTags, CapitalIndicators: c.CapitalIndicators}
}

// Names returns the tag-name dictionary: the built-in names, then
// TagNamesFile, then TagNames, later entries winning.
func (c Config) Names() (map[string]string, error) {
	names, err := parseNames(defaultTagNames)
	if err != nil {
		return nil, fmt.Errorf("built-in tag names: %w", err)
	}
	if c.TagNamesFile != "" {
		b, err := os.ReadFile(c.TagNamesFile)
		if err != nil {
			return nil, err
		}
		extra, err := parseNames(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.TagNamesFile, err)
		}
		for k, v := range extra {
			names[k] = v
		}
	}
	for k, v := range c.TagNames {
		names[k] = v
	}
	return names, nil
}

func parseNames(b []byte) (map[string]string, error) {
	std, err := hujson.Standardize(b)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	if err := json.Unmarshal(std, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Formatter builds the tag formatter the config describes.
func (c Config) Formatter() (*tagfmt.Formatter, error) {
	f, err := tagfmt.ParseFormat(c.TagFormat)
	if err != nil {
		return nil, err
	}
	names, err := c.Names()
	if err != nil {
		return nil, err
	}
	return &tagfmt.Formatter{Names: names, Format: f}, nil
}

// Save writes cfg to path atomically, as TOML for .toml paths and indented
// JSON otherwise.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
	} else {
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return atomic.WriteFile(path, &buf)
}
