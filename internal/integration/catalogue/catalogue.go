package catalogue

import (
	"fmt"
	"sort"
	"sync"
)

// Catalogue is a thread-safe set of tools keyed by name.
type Catalogue struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates a catalogue. Later tools replace earlier ones with the same name.
func New(tools ...Tool) *Catalogue {
	c := &Catalogue{}
	c.Replace(tools)
	return c
}

// Default returns a catalogue holding the built-in tools.
func Default() *Catalogue {
	return New(Builtin()...)
}

// Get returns the named tool.
func (c *Catalogue) Get(name string) (Tool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// List returns all tools sorted by name.
func (c *Catalogue) List() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Tool, 0, len(c.tools))
	for _, t := range c.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of tools.
func (c *Catalogue) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// Replace swaps the whole content of the catalogue.
func (c *Catalogue) Replace(tools []Tool) {
	m := make(map[string]Tool, len(tools))
	for _, t := range tools {
		m[t.Name] = t
	}
	c.mu.Lock()
	c.tools = m
	c.mu.Unlock()
}

// Merge returns base with every tool in overrides added or replaced by name.
func Merge(base, overrides []Tool) []Tool {
	out := make([]Tool, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base)+len(overrides))
	for _, list := range [][]Tool{base, overrides} {
		for _, t := range list {
			if i, ok := index[t.Name]; ok {
				out[i] = t
				continue
			}
			index[t.Name] = len(out)
			out = append(out, t)
		}
	}
	return out
}

// Builtin returns the tools shipped with the launcher.
func Builtin() []Tool {
	return []Tool{
		{
			Name:         "airbase-ng",
			Program:      "airbase-ng",
			Description:  "Create fake access points",
			Dependencies: []string{"aircrack-ng"},
			Elevated:     true,
		},
		{
			Name:         "bettercap",
			Program:      "bettercap",
			Description:  "Network reconnaissance and MITM framework",
			Dependencies: []string{"bettercap"},
			Blocking:     true,
		},
		{
			Name:         "bully",
			Program:      "bully",
			Description:  "WPS brute force attack",
			Dependencies: []string{"bully"},
		},
		{
			Name:         "foremost",
			Program:      "foremost",
			Description:  "Recover files by carving headers, footers and data structures",
			Dependencies: []string{"foremost"},
		},
		{
			Name:         "rainbowcrack",
			Program:      "rcrack",
			Description:  "Crack hashes with rainbow tables",
			Dependencies: []string{"rcrack"},
		},
	}
}
