package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// City is one crawl partition. Slug is the site's path token, e.g. "Lahore-1".
type City struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
}

// Targets lists what the discovery stage walks: every city crossed with
// every property type and purpose.
type Targets struct {
	Cities        []City   `yaml:"cities"`
	PropertyTypes []string `yaml:"property_types"`
	Purposes      []string `yaml:"purposes"`
}

// DefaultTargets returns the cities and categories crawled when no targets
// file is configured.
func DefaultTargets() *Targets {
	return &Targets{
		Cities: []City{
			{Name: "Islamabad", Slug: "Islamabad-3"},
			{Name: "Karachi", Slug: "Karachi-2"},
			{Name: "Lahore", Slug: "Lahore-1"},
			{Name: "Rawalpindi", Slug: "Rawalpindi-41"},
		},
		PropertyTypes: []string{"Homes", "Plots", "Commercial"},
		Purposes:      []string{"Buy", "Rent"},
	}
}

// LoadTargets reads a YAML targets file.
func LoadTargets(path string) (*Targets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets %s: %w", path, err)
	}
	var t Targets
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse targets %s: %w", path, err)
	}
	return &t, nil
}

// Validate checks that every city has a name and slug and that types and
// purposes are non-empty.
func (t *Targets) Validate() error {
	if len(t.Cities) == 0 {
		return errors.New("targets: at least one city is required")
	}
	for i, c := range t.Cities {
		if c.Name == "" || c.Slug == "" {
			return fmt.Errorf("targets: city %d needs both name and slug", i)
		}
	}
	if len(t.PropertyTypes) == 0 {
		return errors.New("targets: at least one property type is required")
	}
	if len(t.Purposes) == 0 {
		return errors.New("targets: at least one purpose is required")
	}
	return nil
}
