// Package templates serves the canned feedback comments evaluators can start
// from when writing stage feedback.
package templates

import (
	_ "embed"
	"fmt"

	"github.com/jonathan/hiring-workflow/internal/schemas"
	"github.com/jonathan/hiring-workflow/internal/types"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtin []byte

// Category is a named group of templates.
type Category struct {
	Key       string                   `json:"key"`
	Name      string                   `json:"name"`
	Templates []types.FeedbackTemplate `json:"templates"`
}

// Catalog is an immutable, validated set of templates.
type Catalog struct {
	templates  []types.FeedbackTemplate
	categories []Category
	byID       map[string]int
}

type catalogFile struct {
	Categories []struct {
		Key  string `yaml:"key"`
		Name string `yaml:"name"`
	} `yaml:"categories"`
	Templates []types.FeedbackTemplate `yaml:"templates"`
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtin)
}

// Parse decodes a YAML catalog and validates it against the feedback
// templates schema. Every template must belong to a declared category and
// ids must be unique.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse templates YAML: %w", err)
	}
	schema, err := schemas.FeedbackTemplates()
	if err != nil {
		return nil, err
	}
	if err := schema.ValidateValue(raw); err != nil {
		return nil, fmt.Errorf("invalid templates: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode templates: %w", err)
	}

	c := &Catalog{byID: make(map[string]int, len(file.Templates))}
	index := make(map[string]int, len(file.Categories))
	for _, cat := range file.Categories {
		if _, dup := index[cat.Key]; dup {
			return nil, fmt.Errorf("duplicate template category %q", cat.Key)
		}
		index[cat.Key] = len(c.categories)
		c.categories = append(c.categories, Category{Key: cat.Key, Name: cat.Name})
	}

	for _, t := range file.Templates {
		ci, ok := index[t.Category]
		if !ok {
			return nil, fmt.Errorf("template %q uses undeclared category %q", t.ID, t.Category)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", t.ID)
		}
		t.CategoryName = c.categories[ci].Name
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t)
		c.categories[ci].Templates = append(c.categories[ci].Templates, t)
	}
	return c, nil
}

// All returns every template in catalog order.
func (c *Catalog) All() []types.FeedbackTemplate {
	return append([]types.FeedbackTemplate(nil), c.templates...)
}

// Grouped returns the templates grouped by category.
func (c *Catalog) Grouped() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{Key: cat.Key, Name: cat.Name, Templates: append([]types.FeedbackTemplate(nil), cat.Templates...)}
	}
	return out
}

// ByID looks up one template.
func (c *Catalog) ByID(id string) (types.FeedbackTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return types.FeedbackTemplate{}, false
	}
	return c.templates[i], true
}

// ByCategory returns the templates of one category, or nil for an unknown key.
func (c *Catalog) ByCategory(key string) []types.FeedbackTemplate {
	for _, cat := range c.categories {
		if cat.Key == key {
			return append([]types.FeedbackTemplate(nil), cat.Templates...)
		}
	}
	return nil
}
