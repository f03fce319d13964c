// Package config loads the variable catalogue: which collections to reduce
// over the area of interest and which analyses to run on each series.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/lox/basinseries/internal/raster"
	"github.com/lox/basinseries/internal/resample"
)

var ErrInvalid = errors.New("invalid catalogue")

type Catalogue struct {
	// AOI is a GeoJSON file holding the area of interest.
	AOI       string     `yaml:"aoi"`
	Defaults  Defaults   `yaml:"defaults"`
	Variables []Variable `yaml:"variables"`
}

type Defaults struct {
	// Workers bounds concurrent reductions per variable; 0 means one per CPU.
	Workers int `yaml:"workers"`
	// Budget bounds each variable's build; 0 means no limit.
	Budget   time.Duration `yaml:"budget"`
	CacheDir string        `yaml:"cache_dir,omitempty"`
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
}

type Variable struct {
	Name     string   `yaml:"name"`
	Manifest string   `yaml:"manifest"`
	Band     string   `yaml:"band"`
	Scale    float64  `yaml:"scale"`
	Resample []string `yaml:"resample,omitempty"`
	Smooth   []int    `yaml:"smooth,omitempty"`
	Anomaly  bool     `yaml:"anomaly,omitempty"`
	Dedupe   bool     `yaml:"dedupe,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       string   `yaml:"to,omitempty"`
}

// Cadences parses the variable's resample list.
func (v Variable) Cadences() ([]resample.Cadence, error) {
	out := make([]resample.Cadence, 0, len(v.Resample))
	for _, s := range v.Resample {
		c, err := resample.ParseCadence(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DateRange returns the acquisition filter [from, to). Unset bounds are zero.
func (v Variable) DateRange() (from, to time.Time, err error) {
	if v.From != "" {
		if from, err = raster.ParseTimestamp(v.From); err != nil {
			return from, to, fmt.Errorf("from: %w", err)
		}
	}
	if v.To != "" {
		if to, err = raster.ParseTimestamp(v.To); err != nil {
			return from, to, fmt.Errorf("to: %w", err)
		}
	}
	return from, to, nil
}

// Load reads a catalogue file. Relative AOI and manifest paths are resolved
// against the file's directory.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.resolve(filepath.Dir(path))
	return c, nil
}

func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogue) resolve(dir string) {
	if c.AOI != "" && !isRemote(c.AOI) && !filepath.IsAbs(c.AOI) {
		c.AOI = filepath.Join(dir, c.AOI)
	}
	if c.Defaults.CacheDir != "" && !filepath.IsAbs(c.Defaults.CacheDir) {
		c.Defaults.CacheDir = filepath.Join(dir, c.Defaults.CacheDir)
	}
	for i := range c.Variables {
		m := c.Variables[i].Manifest
		if !isRemote(m) && !filepath.IsAbs(m) {
			c.Variables[i].Manifest = filepath.Join(dir, m)
		}
	}
}

func isRemote(s string) bool {
	return strings.Contains(s, "://")
}

// Marshal renders the catalogue as YAML.
func (c *Catalogue) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Lookup returns the named variable.
func (c *Catalogue) Lookup(name string) (Variable, bool) {
	for _, v := range c.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return Variable{}, false
}

// Select narrows the catalogue to the named variables, in catalogue order.
// No names selects everything.
func (c *Catalogue) Select(names ...string) ([]Variable, error) {
	if len(names) == 0 {
		return c.Variables, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := c.Lookup(n); !ok {
			return nil, fmt.Errorf("unknown variable %q", n)
		}
		want[n] = true
	}
	var out []Variable
	for _, v := range c.Variables {
		if want[v.Name] {
			out = append(out, v)
		}
	}
	return out, nil
}
