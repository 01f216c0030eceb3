package loader

import (
	"os"
	"sort"
)

// EnvLoader loads configuration overrides from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "DETONATOR_")
	mapping map[string]string // Env var suffix -> config path
	lookup  func(string) (string, bool)
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "DETONATOR_").
func NewEnvLoader(prefix string) *EnvLoader {
	return NewEnvLoaderWithMapping(prefix, DefaultEnvMapping())
}

// NewEnvLoaderWithMapping creates a loader with custom environment variable mappings.
// Mapping keys are variable names without the prefix.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
		lookup:  os.LookupEnv,
	}
}

// DefaultEnvMapping returns the default environment variable mappings.
func DefaultEnvMapping() map[string]string {
	return map[string]string{
		"LOG_LEVEL":        "logging.level",
		"LOG_FORMAT":       "logging.format",
		"CHUNK_SIZE":       "engine.chunkSize",
		"DRAIN_TIMEOUT":    "engine.drainTimeout",
		"SHUTDOWN_TIMEOUT": "engine.shutdownTimeout",
		"ELEVATION_HELPER": "elevation.helper",
		"ELEVATION_PATH":   "elevation.path",
		"CATALOGUE":        "catalogue.path",
		"CATALOGUE_WATCH":  "catalogue.watch",
	}
}

// Setting is one override found in the environment.
type Setting struct {
	Env   string // full variable name
	Path  string // dotted config path
	Value string
}

// Load returns the overrides that are set, ordered by path.
// Empty values count as set.
func (l *EnvLoader) Load() []Setting {
	var out []Setting
	for suffix, path := range l.mapping {
		name := l.prefix + suffix
		if val, ok := l.lookup(name); ok {
			out = append(out, Setting{Env: name, Path: path, Value: val})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(suffix, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[suffix] = configPath
}
