package catalog

import (
	"fmt"
	"strings"
)

// TemplateID identifies a query template in the fixed catalog.
type TemplateID string

func (id TemplateID) String() string {
	return string(id)
}

// IsExport reports whether the template targets the export sales channel.
func (id TemplateID) IsExport() bool {
	return strings.Contains(string(id), "export")
}

// SubjectProduct reports whether the template answers product-segment
// questions rather than people questions.
func (id TemplateID) SubjectProduct() bool {
	s := string(id)
	return strings.Contains(s, "product") || strings.Contains(s, "segment")
}

// SubjectPerson reports whether the template ranks salespeople.
func (id TemplateID) SubjectPerson() bool {
	s := string(id)
	return strings.Contains(s, "salesperson") ||
		strings.Contains(s, "category_performance") ||
		strings.Contains(s, "category_specific")
}

// Template is one entry of the query catalog: a parameterized SQL body plus
// the parameter schema the dialogue engine collects against. Immutable after
// load.
type Template struct {
	ID             TemplateID     `json:"id"`
	Question       string         `json:"question"`
	SQL            string         `json:"sql"`
	Params         []string       `json:"parameters"`
	OptionalParams []string       `json:"optional_parameters"`
	Defaults       map[string]any `json:"defaults"`
}

// Zero reports whether the template is the empty value.
func (t Template) Zero() bool {
	return t.ID == ""
}

// Fill interpolates parameter values into the SQL body. Every token must
// resolve; a leftover token means a parameter slipped through collection.
func (t Template) Fill(params ParameterSet) (string, error) {
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	sql := strings.NewReplacer(pairs...).Replace(t.SQL)
	if tok := sqlToken.FindString(sql); tok != "" {
		return "", fmt.Errorf("unresolved parameter token %s in template %s", tok, t.ID)
	}
	return sql, nil
}
