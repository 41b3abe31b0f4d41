package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"

	errx "github.com/saleswire/server/internal/core/error"
)

//go:embed queries.json
var rawCatalog []byte

var sqlToken = regexp.MustCompile(`\{([a-z_]+)\}`)

// Registry holds the fixed set of query templates. Order follows the
// catalog file and is stable across calls.
type Registry struct {
	templates []Template
	byID      map[TemplateID]int
}

// Load parses the embedded catalog and validates every entry.
func Load() (*Registry, error) {
	return Parse(rawCatalog)
}

// Parse builds a registry from raw catalog JSON.
func Parse(data []byte) (*Registry, error) {
	var templates []Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	r := &Registry{
		templates: templates,
		byID:      make(map[TemplateID]int, len(templates)),
	}
	for i, tpl := range templates {
		if err := validate(tpl); err != nil {
			return nil, fmt.Errorf("template %q: %w", tpl.ID, err)
		}
		if _, dup := r.byID[tpl.ID]; dup {
			return nil, fmt.Errorf("template %q: duplicate id", tpl.ID)
		}
		r.byID[tpl.ID] = i
	}
	return r, nil
}

func validate(tpl Template) error {
	if tpl.ID == "" {
		return fmt.Errorf("missing id")
	}
	if tpl.SQL == "" {
		return fmt.Errorf("missing sql")
	}
	if tpl.Question == "" {
		return fmt.Errorf("missing question")
	}

	declared := make(map[string]bool, len(tpl.Params)+len(tpl.OptionalParams)+2)
	for _, p := range tpl.Params {
		declared[p] = true
	}
	for _, p := range tpl.OptionalParams {
		if declared[p] {
			return fmt.Errorf("parameter %q is both required and optional", p)
		}
		declared[p] = true
	}
	// sort and n always resolve at execution time, declared or not.
	declared[ParamSort] = true
	declared[ParamN] = true

	for _, m := range sqlToken.FindAllStringSubmatch(tpl.SQL, -1) {
		if !declared[m[1]] {
			return fmt.Errorf("sql references undeclared parameter %q", m[1])
		}
	}
	for p := range tpl.Defaults {
		if !declared[p] {
			return fmt.Errorf("default for undeclared parameter %q", p)
		}
	}
	return nil
}

// ByID returns the template with the given id.
func (r *Registry) ByID(id TemplateID) (Template, error) {
	i, ok := r.byID[id]
	if !ok {
		return Template{}, errx.TemplateNotFound(string(id))
	}
	return r.templates[i], nil
}

// Has reports whether the catalog contains the given id.
func (r *Registry) Has(id TemplateID) bool {
	_, ok := r.byID[id]
	return ok
}

// All returns every template in catalog order.
func (r *Registry) All() []Template {
	out := make([]Template, len(r.templates))
	copy(out, r.templates)
	return out
}

// Len returns the number of templates in the catalog.
func (r *Registry) Len() int {
	return len(r.templates)
}
