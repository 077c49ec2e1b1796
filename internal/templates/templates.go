// Package templates holds the site templates a new site can start from. Each
// template lists the elements it needs and their initial records.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/debemdeboas/site-builder/internal/draft"
	"github.com/debemdeboas/site-builder/internal/model"
	"github.com/debemdeboas/site-builder/internal/repository"
)

//go:embed definitions/*.toml
var definitions embed.FS

var ErrTemplateNotFound = errors.New("template not found")

type ElementSeed struct {
	Kind   model.ElementKind `toml:"kind" json:"kind"`
	Name   string            `toml:"name" json:"name"`
	Record map[string]any    `toml:"record" json:"record"`
}

type Template struct {
	Id          string        `toml:"-" json:"id"`
	Name        string        `toml:"name" json:"name"`
	Description string        `toml:"description" json:"description"`
	Elements    []ElementSeed `toml:"elements" json:"elements"`
}

// Names returns the ids of every embedded template, sorted.
func Names() ([]string, error) {
	entries, err := definitions.ReadDir("definitions")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".toml") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".toml"))
		}
	}
	slices.Sort(names)
	return names, nil
}

func Load(id string) (*Template, error) {
	data, err := definitions.ReadFile(path.Join("definitions", id+".toml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}

	var tmpl Template
	if _, err := toml.Decode(string(data), &tmpl); err != nil {
		return nil, fmt.Errorf("error decoding template %s: %w", id, err)
	}
	tmpl.Id = id

	for i := range tmpl.Elements {
		if _, err := tmpl.Elements[i].record(); err != nil {
			return nil, fmt.Errorf("template %s: %w", id, err)
		}
	}
	return &tmpl, nil
}

// record converts the decoded TOML table into a record typed by the element
// kind's schema.
func (s ElementSeed) record() (draft.Record, error) {
	schema := model.SchemaFor(s.Kind)
	record := make(draft.Record, len(s.Record))
	for name, value := range s.Record {
		v, err := schema.Coerce(draft.FieldName(name), value)
		if err != nil {
			return nil, fmt.Errorf("element %s: %w", s.Name, err)
		}
		record[draft.FieldName(name)] = v
	}
	return record, nil
}

// Seed creates a site named siteName with the template's elements.
func (t *Template) Seed(repo repository.ElementRepository, siteName string) (*model.Site, error) {
	site := repository.NewSite(siteName, t.Id)
	if err := repo.CreateSite(site); err != nil {
		return nil, err
	}

	for _, seed := range t.Elements {
		record, err := seed.record()
		if err != nil {
			return nil, err
		}
		if err := repo.CreateElement(repository.NewElement(site.Id, seed.Kind, seed.Name, record)); err != nil {
			return nil, fmt.Errorf("error seeding element %s: %w", seed.Name, err)
		}
	}

	return site, nil
}
