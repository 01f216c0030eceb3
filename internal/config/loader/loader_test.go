package loader

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

type sample struct {
	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"logging"`
	Engine struct {
		ChunkSize int `toml:"chunkSize"`
	} `toml:"engine"`
}

func TestTOMLLoader_LoadInto(t *testing.T) {
	fsys := fstest.MapFS{
		"config.toml": {Data: []byte("[logging]\nlevel = \"debug\"\n")},
	}

	var s sample
	s.Logging.Format = "console"
	s.Engine.ChunkSize = 4096

	ok, err := NewTOMLLoaderWithFS(fsys, "config.toml").LoadInto(&s)
	if err != nil {
		t.Fatalf("LoadInto failed: %v", err)
	}
	if !ok {
		t.Fatal("expected file to be found")
	}
	if s.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", s.Logging.Level)
	}
	// Keys absent from the file keep their defaults.
	if s.Logging.Format != "console" || s.Engine.ChunkSize != 4096 {
		t.Errorf("defaults overwritten: %+v", s)
	}
}

func TestTOMLLoader_Missing(t *testing.T) {
	var s sample
	ok, err := NewTOMLLoaderWithFS(fstest.MapFS{}, "missing.toml").LoadInto(&s)
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestTOMLLoader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantLine bool
	}{
		{"syntax", "[logging\nlevel = 1\n", true},
		{"unknown key", "[logging]\ncolour = \"red\"\n", false},
		{"wrong type", "[engine]\nchunkSize = \"big\"\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{"config.toml": {Data: []byte(tt.data)}}
			var s sample
			_, err := NewTOMLLoaderWithFS(fsys, "config.toml").LoadInto(&s)

			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if pe.Path != "config.toml" {
				t.Errorf("Path = %q", pe.Path)
			}
			if tt.wantLine && pe.Line == 0 {
				t.Errorf("expected a line number: %v", pe)
			}
			if !strings.Contains(pe.Error(), "config.toml") {
				t.Errorf("Error() = %q", pe.Error())
			}
		})
	}
}

func TestTOMLLoader_LoadFromReader(t *testing.T) {
	var s sample
	if err := NewTOMLLoader("").LoadFromReader(strings.NewReader("[engine]\nchunkSize = 512\n"), &s); err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if s.Engine.ChunkSize != 512 {
		t.Errorf("chunkSize = %d", s.Engine.ChunkSize)
	}
}

func TestEnvLoader_Load(t *testing.T) {
	t.Setenv("DETONATOR_LOG_LEVEL", "debug")
	t.Setenv("DETONATOR_CATALOGUE", "/etc/detonator/tools.toml")
	t.Setenv("DETONATOR_CATALOGUE_WATCH", "")

	settings := NewEnvLoader("DETONATOR_").Load()

	got := make(map[string]string)
	for _, s := range settings {
		got[s.Path] = s.Value
	}
	if got["logging.level"] != "debug" {
		t.Errorf("logging.level = %q", got["logging.level"])
	}
	if got["catalogue.path"] != "/etc/detonator/tools.toml" {
		t.Errorf("catalogue.path = %q", got["catalogue.path"])
	}
	// Empty values count as set.
	if _, ok := got["catalogue.watch"]; !ok {
		t.Error("catalogue.watch should be present")
	}

	for i := 1; i < len(settings); i++ {
		if settings[i-1].Path > settings[i].Path {
			t.Errorf("settings not ordered by path: %v", settings)
		}
	}
}

func TestEnvLoader_AddMapping(t *testing.T) {
	t.Setenv("TEST_CUSTOM", "value")

	l := NewEnvLoaderWithMapping("TEST_", nil)
	l.AddMapping("CUSTOM", "custom.setting")

	settings := l.Load()
	if len(settings) != 1 {
		t.Fatalf("expected 1 setting, got %d", len(settings))
	}
	if s := settings[0]; s.Env != "TEST_CUSTOM" || s.Path != "custom.setting" || s.Value != "value" {
		t.Errorf("setting = %+v", s)
	}
}
