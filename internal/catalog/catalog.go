// Package catalog holds the ordered section contracts a drafting session walks.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed replica.yaml
var replicaYAML []byte

// ErrInvalidCatalog is returned when a catalog definition breaks a contract rule.
var ErrInvalidCatalog = errors.New("catalog: invalid definition")

// Catalog is an immutable, ordered list of section contracts.
type Catalog struct {
	sections []models.SectionContract
}

type definition struct {
	Sections []models.SectionContract `yaml:"sections"`
}

// Replica returns the built-in catalog for the rebuttal-brief flow.
func Replica() *Catalog {
	c, err := Parse(replicaYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded replica catalog: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalog definition.
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: definition payload is empty", ErrInvalidCatalog)
	}
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("catalog: decode definition: %w", err)
	}
	return New(def.Sections)
}

// LoadFile loads a catalog override from disk.
func LoadFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	c, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", path, err)
	}
	return c, nil
}

// New validates sections and builds a catalog from a private copy of them.
func New(sections []models.SectionContract) (*Catalog, error) {
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrInvalidCatalog)
	}
	seen := make(map[string]bool, len(sections))
	out := make([]models.SectionContract, 0, len(sections))
	for i, s := range sections {
		s.ID = strings.TrimSpace(s.ID)
		s.Title = strings.TrimSpace(s.Title)
		switch {
		case s.ID == "":
			return nil, fmt.Errorf("%w: section %d has no id", ErrInvalidCatalog, i)
		case seen[s.ID]:
			return nil, fmt.Errorf("%w: duplicate section id %q", ErrInvalidCatalog, s.ID)
		case s.Title == "":
			return nil, fmt.Errorf("%w: section %q has no title", ErrInvalidCatalog, s.ID)
		case s.MinTokens <= 0 || s.MaxTokens < s.MinTokens:
			return nil, fmt.Errorf("%w: section %q has token bounds %d..%d", ErrInvalidCatalog, s.ID, s.MinTokens, s.MaxTokens)
		}
		seen[s.ID] = true
		s.RequiredElements = append([]string(nil), s.RequiredElements...)
		out = append(out, s)
	}
	return &Catalog{sections: out}, nil
}

// Len returns the number of sections.
func (c *Catalog) Len() int {
	return len(c.sections)
}

// At returns the section at position i.
func (c *Catalog) At(i int) (models.SectionContract, bool) {
	if i < 0 || i >= len(c.sections) {
		return models.SectionContract{}, false
	}
	s := c.sections[i]
	s.RequiredElements = append([]string(nil), s.RequiredElements...)
	return s, true
}

// IndexOf returns the position of the section with the given id, or -1.
func (c *Catalog) IndexOf(id string) int {
	for i, s := range c.sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Sections returns a copy of all sections in order.
func (c *Catalog) Sections() []models.SectionContract {
	out := make([]models.SectionContract, 0, len(c.sections))
	for i := range c.sections {
		s, _ := c.At(i)
		out = append(out, s)
	}
	return out
}
