package querygraph

import "github.com/saleswire/server/internal/agent/catalog"

// Resolver picks the catalog template best suited to a set of collected
// parameters. It never fails: when nothing better exists the current
// template is returned unchanged.
type Resolver struct {
	reg *catalog.Registry
}

func NewResolver(reg *catalog.Registry) *Resolver {
	return &Resolver{reg: reg}
}

// ResolveBest returns the template that supports every filter parameter the
// user has supplied. Explicit upgrades win first so a product query stays a
// product query. Then the current template keeps the job if it already
// covers the filters. Otherwise the catalog is scanned for the most specific
// match, preferring export templates when the conversation is export-scoped.
func (r *Resolver) ResolveBest(current catalog.TemplateID, params catalog.ParameterSet) catalog.TemplateID {
	filters := params.FilterNames()
	if len(filters) == 0 {
		return current
	}

	if current != "" {
		for _, f := range filters {
			if next, ok := Upgrade(current, f); ok {
				return next
			}
		}
		if tpl, err := r.reg.ByID(current); err == nil && supportsAll(tpl, filters) {
			return current
		}
	}

	type candidate struct {
		id    catalog.TemplateID
		extra int
	}
	var candidates []candidate
	for _, tpl := range r.reg.All() {
		if !supportsAll(tpl, filters) {
			continue
		}
		candidates = append(candidates, candidate{
			id:    tpl.ID,
			extra: countFilters(tpl) - len(filters),
		})
	}
	if len(candidates) == 0 {
		return current
	}

	pick := func(exportOnly bool) (catalog.TemplateID, bool) {
		bestScore := 0
		var best catalog.TemplateID
		found := false
		for _, c := range candidates {
			if exportOnly && !c.id.IsExport() {
				continue
			}
			if !found || c.extra < bestScore {
				best, bestScore, found = c.id, c.extra, true
			}
		}
		return best, found
	}

	if wantsExport(current, params) {
		if best, ok := pick(true); ok {
			return best
		}
	}
	best, _ := pick(false)
	return best
}

func wantsExport(current catalog.TemplateID, params catalog.ParameterSet) bool {
	if current.IsExport() {
		return true
	}
	s, ok := params[catalog.ParamSalesType].(string)
	return ok && s == "export"
}

func supportsAll(tpl catalog.Template, filters []string) bool {
	supported := supportedParams(tpl)
	for _, f := range filters {
		if !supported[f] {
			return false
		}
	}
	return true
}

func countFilters(tpl catalog.Template) int {
	n := 0
	for p := range supportedParams(tpl) {
		if catalog.FilterParams[p] {
			n++
		}
	}
	return n
}

func supportedParams(tpl catalog.Template) map[string]bool {
	out := make(map[string]bool, len(tpl.Params)+len(tpl.OptionalParams))
	for _, p := range tpl.Params {
		out[p] = true
	}
	for _, p := range tpl.OptionalParams {
		out[p] = true
	}
	return out
}
