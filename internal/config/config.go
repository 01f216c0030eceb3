// Package config provides the layered configuration for Detonator.
//
// Settings come from, in increasing priority: built-in defaults, a TOML
// file, DETONATOR_* environment variables and finally command-line flags
// applied with Set. An example file:
//
//	[logging]
//	level = "debug"
//	format = "json"
//
//	[engine]
//	chunkSize = 4096
//	shutdownTimeout = "5s"
//
//	[elevation]
//	helper = "sudo"
//
//	[catalogue]
//	path = "~/.config/detonator/tools.toml"
//	watch = true
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dshills/detonator/internal/config/loader"
	"github.com/dshills/detonator/internal/integration/engine"
	"github.com/dshills/detonator/internal/integration/output"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "DETONATOR_"

// Config is the complete configuration.
type Config struct {
	Logging   LoggingConfig   `toml:"logging"`
	Engine    EngineConfig    `toml:"engine"`
	Elevation ElevationConfig `toml:"elevation"`
	Catalogue CatalogueConfig `toml:"catalogue"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Format is console or json.
	Format string `toml:"format"`
}

// EngineConfig configures process execution.
type EngineConfig struct {
	// ChunkSize is the output read buffer in bytes.
	ChunkSize int `toml:"chunkSize"`
	// DrainTimeout bounds output reading after a process exits.
	DrainTimeout Duration `toml:"drainTimeout"`
	// ShutdownTimeout is how long running processes get after SIGTERM on exit.
	ShutdownTimeout Duration `toml:"shutdownTimeout"`
}

// ElevationConfig selects the authorization helper for elevated tools.
type ElevationConfig struct {
	// Helper is pkexec, sudo or none.
	Helper string `toml:"helper"`
	// Path overrides the helper executable.
	Path string `toml:"path"`
	// Args overrides the arguments placed before the wrapped program.
	Args []string `toml:"args"`
}

// CatalogueConfig locates the tool catalogue file.
type CatalogueConfig struct {
	// Path is a .toml or .yaml file merged over the built-in tools.
	Path string `toml:"path"`
	// Watch reloads the file on change in the interactive shell.
	Watch bool `toml:"watch"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		Engine: EngineConfig{
			ChunkSize:       output.DefaultChunkSize,
			DrainTimeout:    Duration{engine.DefaultDrainTimeout},
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Elevation: ElevationConfig{
			Helper: "pkexec",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "detonator", "config.toml")
}

// Load builds the configuration from defaults, the file at path and the
// environment. An empty path uses DefaultPath, and a missing default file
// is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		found, err := loader.NewTOMLLoader(path).LoadInto(cfg)
		if err != nil {
			return nil, err
		}
		if !found && explicit {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
	}

	if err := cfg.ApplyEnv(loader.NewEnvLoader(EnvPrefix)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies the overrides found by l.
func (c *Config) ApplyEnv(l *loader.EnvLoader) error {
	var result *multierror.Error
	for _, s := range l.Load() {
		if err := c.Set(s.Path, s.Value); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", s.Env, err))
		}
	}
	return result.ErrorOrNil()
}

// Set assigns a setting from its string form.
func (c *Config) Set(path, value string) error {
	switch path {
	case "logging.level":
		c.Logging.Level = strings.ToLower(value)
	case "logging.format":
		c.Logging.Format = strings.ToLower(value)
	case "engine.chunkSize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return &ValueError{Path: path, Value: value, Message: "expected an integer"}
		}
		c.Engine.ChunkSize = n
	case "engine.drainTimeout":
		return c.Engine.DrainTimeout.set(path, value)
	case "engine.shutdownTimeout":
		return c.Engine.ShutdownTimeout.set(path, value)
	case "elevation.helper":
		c.Elevation.Helper = strings.ToLower(value)
	case "elevation.path":
		c.Elevation.Path = value
	case "catalogue.path":
		c.Catalogue.Path = value
	case "catalogue.watch":
		b, err := parseBool(value)
		if err != nil {
			return &ValueError{Path: path, Value: value, Message: "expected a boolean"}
		}
		c.Catalogue.Watch = b
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, path)
	}
	return nil
}

func (d *Duration) set(path, value string) error {
	if err := d.UnmarshalText([]byte(value)); err != nil {
		return &ValueError{Path: path, Value: value, Message: "expected a duration such as 5s"}
	}
	return nil
}

// parseBool accepts the spellings the environment commonly uses.
// An empty value means true, so DETONATOR_CATALOGUE_WATCH= enables watching.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(path string, value any, msg string) {
		result = multierror.Append(result, &ValueError{Path: path, Value: value, Message: msg})
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", c.Logging.Level, "must be debug, info, warn or error")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		add("logging.format", c.Logging.Format, "must be console or json")
	}
	if c.Engine.ChunkSize <= 0 {
		add("engine.chunkSize", c.Engine.ChunkSize, "must be positive")
	}
	if c.Engine.DrainTimeout.Duration <= 0 {
		add("engine.drainTimeout", c.Engine.DrainTimeout, "must be positive")
	}
	if c.Engine.ShutdownTimeout.Duration <= 0 {
		add("engine.shutdownTimeout", c.Engine.ShutdownTimeout, "must be positive")
	}
	switch c.Elevation.Helper {
	case "pkexec", "sudo", "none":
	default:
		add("elevation.helper", c.Elevation.Helper, "must be pkexec, sudo or none")
	}
	if c.Catalogue.Watch && c.Catalogue.Path == "" {
		add("catalogue.watch", true, "requires catalogue.path")
	}
	if c.Catalogue.Path != "" {
		switch strings.ToLower(filepath.Ext(c.Catalogue.Path)) {
		case ".toml", ".yaml", ".yml":
		default:
			add("catalogue.path", c.Catalogue.Path, "must end in .toml, .yaml or .yml")
		}
	}

	return result.ErrorOrNil()
}

// Elevator builds the configured authorization helper. Returns nil when
// elevation is disabled.
func (c *Config) Elevator() engine.Elevator {
	var el *engine.CommandElevator
	switch c.Elevation.Helper {
	case "sudo":
		el = engine.Sudo()
	case "none":
		return nil
	default:
		el = engine.Pkexec()
	}
	if c.Elevation.Path != "" {
		el.Path = c.Elevation.Path
	}
	if c.Elevation.Args != nil {
		el.Args = append([]string(nil), c.Elevation.Args...)
	}
	return el
}

// CataloguePath returns the catalogue path with a leading ~ expanded.
func (c *Config) CataloguePath() string {
	p := c.Catalogue.Path
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
