// Package catalog holds the fixed option vocabularies the report dialogue
// validates against: victim condition, gravity, accident type and location.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Option struct {
	Label string `yaml:"label"`
	ID    int    `yaml:"id"`
}

// Vocabulary is an ordered option list. Order is the keyboard order.
type Vocabulary []Option

// Lookup matches a label exactly, after trimming surrounding whitespace.
func (v Vocabulary) Lookup(label string) (int, bool) {
	label = strings.TrimSpace(label)
	for _, o := range v {
		if o.Label == label {
			return o.ID, true
		}
	}
	return 0, false
}

// LookupFold is the lenient variant used for free-text entities.
func (v Vocabulary) LookupFold(label string) (int, bool) {
	label = normalizeTextToken(label)
	if label == "" {
		return 0, false
	}
	for _, o := range v {
		if normalizeTextToken(o.Label) == label {
			return o.ID, true
		}
	}
	return 0, false
}

func (v Vocabulary) Label(id int) (string, bool) {
	for _, o := range v {
		if o.ID == id {
			return o.Label, true
		}
	}
	return "", false
}

func (v Vocabulary) Labels() []string {
	out := make([]string, 0, len(v))
	for _, o := range v {
		out = append(out, o.Label)
	}
	return out
}

type Catalog struct {
	VictimConditions Vocabulary `yaml:"victim_conditions"`
	Gravities        Vocabulary `yaml:"gravities"`
	AccidentTypes    Vocabulary `yaml:"accident_types"`
	Locations        Vocabulary `yaml:"locations"`
}

// Load reads a YAML catalog. Lists missing from the file keep their defaults.
func Load(path string) (Catalog, error) {
	cat := Default()
	if strings.TrimSpace(path) == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var file Catalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog yaml: %w", err)
	}
	lists := []struct {
		name string
		dst  *Vocabulary
		src  Vocabulary
	}{
		{"victim_conditions", &cat.VictimConditions, file.VictimConditions},
		{"gravities", &cat.Gravities, file.Gravities},
		{"accident_types", &cat.AccidentTypes, file.AccidentTypes},
		{"locations", &cat.Locations, file.Locations},
	}
	for _, l := range lists {
		if len(l.src) == 0 {
			continue
		}
		if err := validateVocabulary(l.src); err != nil {
			return Catalog{}, fmt.Errorf("catalog %s: %w", l.name, err)
		}
		*l.dst = l.src
	}
	return cat, nil
}

func validateVocabulary(v Vocabulary) error {
	labels := make(map[string]bool, len(v))
	ids := make(map[int]bool, len(v))
	for _, o := range v {
		label := strings.TrimSpace(o.Label)
		if label == "" {
			return fmt.Errorf("empty label for id %d", o.ID)
		}
		if o.ID <= 0 {
			return fmt.Errorf("option %q: id must be > 0", label)
		}
		if labels[label] {
			return fmt.Errorf("duplicate label %q", label)
		}
		if ids[o.ID] {
			return fmt.Errorf("duplicate id %d", o.ID)
		}
		labels[label] = true
		ids[o.ID] = true
	}
	return nil
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
