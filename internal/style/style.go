// Package style is the closed catalog of writing-style archetypes that
// parameterize commentary generation.
package style

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Archetype identifies one catalog entry.
type Archetype string

const (
	WarmBookish    Archetype = "warmBookish"
	LifeReflection Archetype = "lifeReflection"
	Contrarian     Archetype = "contrarian"
	Education      Archetype = "education"
	Science        Archetype = "science"
)

// ErrUnknownStyle is returned for identifiers outside the catalog.
var ErrUnknownStyle = errors.New("unknown style")

// Structure describes how a commentary opens, develops and ends.
type Structure struct {
	Opening string `yaml:"opening"`
	Body    string `yaml:"body"`
	Ending  string `yaml:"ending"`
}

// Config parameterizes the commentary prompt and the generation call.
type Config struct {
	ID                Archetype `yaml:"id"`
	DisplayName       string    `yaml:"displayName"`
	DisplayNameEn     string    `yaml:"displayNameEn"`
	Description       string    `yaml:"description"`
	Tone              string    `yaml:"tone"`
	Structure         Structure `yaml:"structure"`
	RhetoricalDevices []string  `yaml:"rhetoricalDevices"`
	SentenceStyle     string    `yaml:"sentenceStyle"`
	Avoid             []string  `yaml:"avoid"`
	Temperature       float32   `yaml:"temperature"`
	MaxOutputTokens   int       `yaml:"maxOutputTokens"`
}

//go:embed styles.yaml
var catalogYAML []byte

var (
	order   []Archetype
	catalog map[Archetype]Config
)

func init() {
	cfgs, err := load(catalogYAML)
	if err != nil {
		panic(fmt.Sprintf("style catalog: %v", err))
	}
	catalog = make(map[Archetype]Config, len(cfgs))
	for _, c := range cfgs {
		order = append(order, c.ID)
		catalog[c.ID] = c
	}
}

// load decodes and validates a catalog document.
func load(data []byte) ([]Config, error) {
	var cfgs []Config
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	want := []Archetype{WarmBookish, LifeReflection, Contrarian, Education, Science}
	if len(cfgs) != len(want) {
		return nil, fmt.Errorf("expected %d archetypes, got %d", len(want), len(cfgs))
	}
	for i, c := range cfgs {
		if c.ID != want[i] {
			return nil, fmt.Errorf("entry %d: expected %s, got %q", i, want[i], c.ID)
		}
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", c.ID, err)
		}
	}
	return cfgs, nil
}

func (c Config) validate() error {
	switch {
	case c.DisplayName == "", c.DisplayNameEn == "", c.Description == "", c.Tone == "", c.SentenceStyle == "":
		return errors.New("missing text field")
	case c.Structure.Opening == "" || c.Structure.Body == "" || c.Structure.Ending == "":
		return errors.New("incomplete structure")
	case len(c.RhetoricalDevices) == 0 || len(c.Avoid) == 0:
		return errors.New("empty device or avoid list")
	case c.Temperature <= 0 || c.Temperature > 2:
		return fmt.Errorf("temperature %v out of range", c.Temperature)
	case c.MaxOutputTokens <= 0:
		return errors.New("maxOutputTokens must be positive")
	}
	return nil
}

// Get returns a copy of the archetype's configuration.
func Get(a Archetype) (Config, error) {
	c, ok := catalog[a]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownStyle, string(a))
	}
	c.RhetoricalDevices = append([]string(nil), c.RhetoricalDevices...)
	c.Avoid = append([]string(nil), c.Avoid...)
	return c, nil
}

// Default is the archetype used when the caller picks none.
func Default() Archetype { return WarmBookish }

// Archetypes lists the catalog in its fixed order.
func Archetypes() []Archetype {
	return append([]Archetype(nil), order...)
}

// Parse maps user input to an archetype. Case, surrounding space and '-'/'_'
// separators are ignored, so "warm-bookish" and "WARM_BOOKISH" both resolve.
// Empty input yields the default.
func Parse(s string) (Archetype, error) {
	key := normalize(s)
	if key == "" {
		return Default(), nil
	}
	for _, a := range order {
		if normalize(string(a)) == key {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}
