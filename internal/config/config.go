package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/tracegen"
)

const (
	DefaultDataDir       = "traces"
	DefaultTheme         = "cyberpunk"
	DefaultFPS           = 20
	DefaultFetchTimeout  = 30 * time.Second
	DefaultNoticeLimit   = 32
	DefaultAddr          = "127.0.0.1:8321"
	DefaultServerTimeout = 300 * time.Second
	DefaultPreset        = "side"

	EnvPrefix = "RAYVIEW_"
)

// FileNames are looked up in the working directory when no file is given.
var FileNames = []string{"rayview.yaml", "rayview.yml"}

var ErrInvalid = errors.New("config: invalid value")

// Config is the merged configuration. Struct tags double as koanf keys.
type Config struct {
	DataDir       string              `yaml:"data_dir"`
	Theme         string              `yaml:"theme"`
	FPS           int                 `yaml:"fps"`
	FetchTimeout  time.Duration       `yaml:"fetch_timeout"`
	NoticeLimit   int                 `yaml:"notice_limit"`
	LogLevel      string              `yaml:"log_level"`
	LogFormat     string              `yaml:"log_format"`
	Addr          string              `yaml:"addr"`
	SessionSecret string              `yaml:"session_secret,omitempty"`
	ServerTimeout time.Duration       `yaml:"server_timeout"`
	Preset        string              `yaml:"preset"`
	InvertCanvas  bool                `yaml:"invert_canvas"`
	Inspect       string              `yaml:"inspect,omitempty"`
	Generator     tracegen.Config     `yaml:"generator"`
	Instrument    tracegen.Instrument `yaml:"instrument"`

	// File is the config file that was read, if any.
	File string `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:       DefaultDataDir,
		Theme:         DefaultTheme,
		FPS:           DefaultFPS,
		FetchTimeout:  DefaultFetchTimeout,
		NoticeLimit:   DefaultNoticeLimit,
		LogLevel:      "info",
		LogFormat:     "text",
		Addr:          DefaultAddr,
		ServerTimeout: DefaultServerTimeout,
		Preset:        DefaultPreset,
		Generator:     tracegen.DefaultConfig(),
		Instrument:    tracegen.DefaultInstrument(),
	}
}

func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"data_dir":       d.DataDir,
		"theme":          d.Theme,
		"fps":            d.FPS,
		"fetch_timeout":  d.FetchTimeout.String(),
		"notice_limit":   d.NoticeLimit,
		"log_level":      d.LogLevel,
		"log_format":     d.LogFormat,
		"addr":           d.Addr,
		"server_timeout": d.ServerTimeout.String(),
		"preset":         d.Preset,
		"invert_canvas":  d.InvertCanvas,
		"inspect":        d.Inspect,
	}
}

// flagKeys maps flag names whose config key is not the snake_case form.
var flagKeys = map[string]string{
	"timeout": "server_timeout",
	"rays":    "generator.rays",
	"seed":    "generator.seed",
}

// Load merges defaults, the config file, RAYVIEW_* variables and the flags
// that were set, in increasing order of precedence. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	path = findConfigFile(path)
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	// RAYVIEW_GENERATOR__RAYS -> generator.rays
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("config: flags: %w", err)
		}
	}

	cfg := DefaultConfig()
	cfg.Instrument = tracegen.Instrument{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if len(cfg.Instrument.Components) == 0 {
		cfg.Instrument = tracegen.DefaultInstrument()
	}
	cfg.File = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Validate checks values that the loaders cannot.
func (c *Config) Validate() error {
	var errs []error
	if c.FPS < 1 || c.FPS > 120 {
		errs = append(errs, fmt.Errorf("%w: fps %d not in [1, 120]", ErrInvalid, c.FPS))
	}
	if c.NoticeLimit < 1 {
		errs = append(errs, fmt.Errorf("%w: notice_limit must be positive", ErrInvalid))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: fetch_timeout must be positive", ErrInvalid))
	}
	if c.ServerTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: server_timeout is negative", ErrInvalid))
	}
	if !slices.Contains(render.ThemeNames(), c.Theme) {
		errs = append(errs, fmt.Errorf("%w: unknown theme %q", ErrInvalid, c.Theme))
	}
	if GetViewPreset(c.Preset) == nil {
		errs = append(errs, fmt.Errorf("%w: unknown preset %q", ErrInvalid, c.Preset))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%w: log_format %q (want text or json)", ErrInvalid, c.LogFormat))
	}
	return errors.Join(errs...)
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
