package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/marcelocantos/lsh/internal/pipeline"
)

// FileName is the name of the configuration file inside a config directory.
const FileName = "config.yaml"

// Redirect modes for > and 2>.
const (
	RedirectTruncate = "truncate"
	RedirectAppend   = "append"
)

// Config holds the global lsh configuration.
type Config struct {
	Shell ShellConfig `yaml:"shell"`
	Audit AuditConfig `yaml:"audit"`
	Log   LogConfig   `yaml:"log"`
}

// ShellConfig controls the interpreter.
type ShellConfig struct {
	Prompt        string      `yaml:"prompt"`
	Color         bool        `yaml:"color"`
	MaxLineLength int         `yaml:"max_line_length" validate:"gte=2"`
	MaxSegments   int         `yaml:"max_segments" validate:"gte=1"`
	MaxArgs       int         `yaml:"max_args" validate:"gte=1"`
	RedirectMode  string      `yaml:"redirect_mode" validate:"oneof=truncate append"`
	FileMode      os.FileMode `yaml:"file_mode" validate:"lte=0777"`
}

// Limits returns the parser limits configured for the shell.
func (s *ShellConfig) Limits() pipeline.Limits {
	return pipeline.Limits{MaxSegments: s.MaxSegments, MaxArgs: s.MaxArgs}
}

// AppendRedirects reports whether > appends rather than truncates.
func (s *ShellConfig) AppendRedirects() bool {
	return s.RedirectMode == RedirectAppend
}

// AuditConfig controls the journal of executed lines.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Verbose bool   `yaml:"verbose"`
	Path    string `yaml:"path"` // empty means stderr
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Shell: ShellConfig{
			Prompt:        "lsh$ ",
			Color:         true,
			MaxLineLength: 1024,
			MaxSegments:   pipeline.DefaultMaxSegments,
			MaxArgs:       pipeline.DefaultMaxArgs,
			RedirectMode:  RedirectTruncate,
			FileMode:      0644,
		},
		Audit: AuditConfig{
			Path: filepath.Join(home, ".local", "share", "lsh", "audit.jsonl"),
		},
	}
}

// Load reads the config from the standard location (~/.config/lsh/config.yaml).
// If the file doesn't exist, returns the default config.
func Load(fsys afero.Fs) (*Config, error) {
	return LoadFrom(fsys, Path())
}

// LoadFrom reads the config from path, which may name the file or the
// directory holding it.
func LoadFrom(fsys afero.Fs, path string) (*Config, error) {
	if info, err := fsys.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Audit.Path = expandHome(cfg.Audit.Path)
	cfg.Log.Path = expandHome(cfg.Log.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for basic semantic errors. Field names in
// errors are the yaml keys.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
	})
	return validate.Struct(c)
}

// Path returns the standard config file path.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "lsh", FileName)
}

func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, path[1:])
}
