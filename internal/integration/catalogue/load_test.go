package catalogue

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/dshills/detonator/internal/integration/engine"
)

const tomlCatalogue = `
[[tools]]
name = "nmap"
program = "nmap"
description = "Network scanner"
args = ["-sV"]

[[tools]]
name = "airodump"
program = "airodump-ng"
dependencies = ["aircrack-ng"]
elevated = true
`

const yamlCatalogue = `
tools:
  - name: nmap
    program: nmap
    description: Network scanner
    args: ["-sV"]
  - name: airodump
    program: airodump-ng
    dependencies: [aircrack-ng]
    mode: elevated
`

func TestParse(t *testing.T) {
	tests := []struct {
		path string
		data string
	}{
		{"tools.toml", tomlCatalogue},
		{"tools.yaml", yamlCatalogue},
		{"tools.yml", yamlCatalogue},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			tools, err := Parse(tt.path, []byte(tt.data))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if len(tools) != 2 {
				t.Fatalf("expected 2 tools, got %d", len(tools))
			}
			if tools[0].Name != "nmap" || tools[0].Args[0] != "-sV" {
				t.Errorf("tools[0] = %+v", tools[0])
			}
			if tools[1].Privilege() != engine.Elevated || tools[1].Deps()[0] != "aircrack-ng" {
				t.Errorf("tools[1] = %+v", tools[1])
			}
		})
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse("tools.json", []byte("{}"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParse_SyntaxError(t *testing.T) {
	tests := []struct {
		path string
		data string
	}{
		{"bad.toml", "[[tools]]\nname = \n"},
		{"bad.yaml", "tools:\n  - name: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := Parse(tt.path, []byte(tt.data))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T: %v", err, err)
			}
			if pe.Path != tt.path {
				t.Errorf("Path = %q", pe.Path)
			}
			if pe.Line == 0 {
				t.Errorf("expected line number in %v", pe)
			}
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse("tools.toml", []byte("[[tools]]\nname = \"a\"\nprogram = \"a\"\nprivileged = true\n"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("expected *ParseError for unknown field, got %v", err)
	}
}

func TestParse_ValidationAggregates(t *testing.T) {
	data := `
[[tools]]
name = "a"

[[tools]]
program = "b"

[[tools]]
name = "c"
program = "c"

[[tools]]
name = "c"
program = "c2"
`
	_, err := Parse("tools.toml", []byte(data))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrInvalidTool) {
		t.Errorf("expected ErrInvalidTool in %v", err)
	}
	if !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("expected ErrDuplicateTool in %v", err)
	}
	for _, want := range []string{"tools[0]", "tools[1]", "tools[3]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestParse_EmptyYAML(t *testing.T) {
	tools, err := Parse("empty.yaml", nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("expected no tools, got %d", len(tools))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tools.toml")
	if err := os.WriteFile(path, []byte(tomlCatalogue), 0o644); err != nil {
		t.Fatal(err)
	}

	initial, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	cat := New(Merge(Builtin(), initial)...)

	var (
		mu      sync.Mutex
		reloads int
		lastErr error
	)
	w, err := Watch(path, cat,
		WithBase(Builtin()),
		WithDebounce(20*time.Millisecond),
		WithWatchLogger(zaptest.NewLogger(t)),
		OnReload(func(_ []Tool, err error) {
			mu.Lock()
			reloads++
			lastErr = err
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer w.Close()

	updated := tomlCatalogue + "\n[[tools]]\nname = \"hydra\"\nprogram = \"hydra\"\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := cat.Get("hydra"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("catalogue was not reloaded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Built-ins survive the reload.
	if _, err := cat.Get("bully"); err != nil {
		t.Errorf("built-in lost on reload: %v", err)
	}

	// A broken file leaves the catalogue as it was.
	mu.Lock()
	before := reloads
	mu.Unlock()
	if err := os.WriteFile(path, []byte("[[tools]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline = time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n, e := reloads, lastErr
		mu.Unlock()
		if n > before && e != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("broken file did not trigger a failed reload")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, err := cat.Get("hydra"); err != nil {
		t.Errorf("failed reload changed the catalogue: %v", err)
	}
}

func TestWatch_Close(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tools.yaml")
	w, err := Watch(path, New())
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if w.Path() != path {
		t.Errorf("Path = %q, want %q", w.Path(), path)
	}
	if err := w.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
	// Second close is a no-op.
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
