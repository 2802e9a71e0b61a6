// Package presets holds the catalog of named session programs.
package presets

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/stawikopa-del/fitfly-sub001/internal/models"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrNotFound is returned by Get for an unknown preset name.
var ErrNotFound = errors.New("preset not found")

// Preset is a named, reusable list of steps.
type Preset struct {
	Name  string            `json:"name" yaml:"name" toml:"name"`
	Kind  string            `json:"kind" yaml:"kind" toml:"kind"`
	Title string            `json:"title" yaml:"title" toml:"title"`
	Steps []models.StepSpec `json:"steps" yaml:"steps" toml:"steps"`
}

// TotalSeconds is the planned length of the preset including breaks.
func (p Preset) TotalSeconds() int {
	total := 0
	for i, step := range p.Steps {
		total += step.DurationSeconds
		if i < len(p.Steps)-1 {
			total += step.BreakAfterSeconds
		}
	}
	return total
}

type catalogFile struct {
	Presets []Preset `yaml:"presets" toml:"presets"`
}

// Catalog is an immutable set of presets keyed by name.
type Catalog struct {
	byName map[string]Preset
}

// Defaults returns the built-in catalog.
func Defaults() (*Catalog, error) {
	return build(bytes.NewReader(defaultsYAML), decodeYAML)
}

// Load returns the built-in catalog with presets from path layered on top.
// A preset in the file replaces a built-in one of the same name. Files ending
// in .toml are read as TOML, anything else as YAML. An empty path yields the
// defaults.
func Load(path string) (*Catalog, error) {
	catalog, err := Defaults()
	if err != nil {
		return nil, fmt.Errorf("parse built-in presets: %w", err)
	}
	if path == "" {
		return catalog, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open presets file: %w", err)
	}
	defer f.Close()

	decode := decodeYAML
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		decode = decodeTOML
	}
	overrides, err := build(f, decode)
	if err != nil {
		return nil, fmt.Errorf("parse presets file %s: %w", path, err)
	}
	for name, p := range overrides.byName {
		catalog.byName[name] = p
	}
	return catalog, nil
}

func decodeYAML(r io.Reader, file *catalogFile) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(file); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(r io.Reader, file *catalogFile) error {
	return toml.NewDecoder(r).DisallowUnknownFields().Decode(file)
}

func build(r io.Reader, decode func(io.Reader, *catalogFile) error) (*Catalog, error) {
	var file catalogFile
	if err := decode(r, &file); err != nil {
		return nil, err
	}

	catalog := &Catalog{byName: make(map[string]Preset, len(file.Presets))}
	for i, p := range file.Presets {
		if err := Validate(p); err != nil {
			return nil, fmt.Errorf("preset %d: %w", i, err)
		}
		if _, dup := catalog.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset name %q", p.Name)
		}
		catalog.byName[p.Name] = p
	}
	return catalog, nil
}

// Validate checks a preset's name, kind and steps.
func Validate(p Preset) error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if !ValidKind(p.Kind) {
		return fmt.Errorf("%s: unknown kind %q", p.Name, p.Kind)
	}
	if err := ValidateSteps(p.Steps); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	return nil
}

// ValidateSteps rejects empty lists, unnamed steps and negative durations.
func ValidateSteps(steps []models.StepSpec) error {
	if len(steps) == 0 {
		return errors.New("at least one step is required")
	}
	for i, step := range steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if step.DurationSeconds < 0 || step.BreakAfterSeconds < 0 {
			return fmt.Errorf("step %d: durations must not be negative", i)
		}
	}
	return nil
}

// ValidKind reports whether kind is a known session kind.
func ValidKind(kind string) bool {
	switch kind {
	case models.KindWorkout, models.KindMorningWorkout, models.KindCooking:
		return true
	}
	return false
}

// Get returns the preset with the given name.
func (c *Catalog) Get(name string) (Preset, error) {
	p, ok := c.byName[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// List returns all presets sorted by kind, then name.
func (c *Catalog) List() []Preset {
	out := make([]Preset, 0, len(c.byName))
	for _, p := range c.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}
