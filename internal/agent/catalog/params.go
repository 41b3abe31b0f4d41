package catalog

import "sort"

// Canonical parameter names used across the catalog and the dialogue engine.
const (
	ParamN                = "n"
	ParamSort             = "sort"
	ParamStartDate        = "start_date"
	ParamEndDate          = "end_date"
	ParamStateID          = "state_id"
	ParamCSOID            = "cso_id"
	ParamClusterID        = "cluster_id"
	ParamBusinessCategory = "business_category"
	ParamSalesType        = "sales_type"
)

// FilterParams are the parameters that determine which template is valid, as
// opposed to parameters that merely shape a valid template's output.
var FilterParams = map[string]bool{
	ParamStateID:          true,
	ParamCSOID:            true,
	ParamClusterID:        true,
	ParamBusinessCategory: true,
}

// LocationParams are mutually exclusive: only one location dimension can
// apply to a query at a time.
var LocationParams = map[string]bool{
	ParamStateID:   true,
	ParamCSOID:     true,
	ParamClusterID: true,
}

// AllCategoriesLiteral is the pre-quoted SQL fragment covering every business
// category, used when the user answers "all" to a category question.
const AllCategoriesLiteral = "'FMEG', 'Wiring Devices & Switchgear', 'Wires & Cables'"

// ParameterSet maps parameter names to collected values. Values are strings,
// numbers, or pre-quoted SQL literal fragments (business categories).
type ParameterSet map[string]any

// Clone returns a shallow copy.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Filters returns the subset of keys that are filter parameters.
func (p ParameterSet) Filters() ParameterSet {
	out := ParameterSet{}
	for k, v := range p {
		if FilterParams[k] {
			out[k] = v
		}
	}
	return out
}

// FilterNames returns the filter parameter names present in the set, sorted
// so callers iterate deterministically.
func (p ParameterSet) FilterNames() []string {
	var names []string
	for k := range p {
		if FilterParams[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}
