// Package querygraph encodes the relationships between catalog templates:
// which template a conversation should move to when the user adds a filter,
// asks for "all" categories, or switches between domestic and export views.
package querygraph

import "github.com/saleswire/server/internal/agent/catalog"

// baseOf maps a category-filtered template back to its unfiltered base,
// applied when the user widens a filter to "all".
var baseOf = map[catalog.TemplateID]catalog.TemplateID{
	"product_segment_domestic_by_category": "product_segment_domestic",
	"product_segment_export_by_category":   "product_segment_export",
	"cso_category_performance":             "sales_performance_by_cso",
	"cso_category_performance_export":      "sales_performance_by_cso",
	"state_category_performance":           "sales_performance_by_state",
	"state_category_performance_export":    "sales_performance_by_state",
}

// exportOf maps a template to its export-channel counterpart.
var exportOf = map[catalog.TemplateID]catalog.TemplateID{
	"product_segment_domestic":             "product_segment_export",
	"product_segment_domestic_by_category": "product_segment_export_by_category",
	"cso_category_performance":             "cso_category_performance_export",
	"state_category_performance":           "state_category_performance_export",
	"sales_performance_by_cso":             "cso_category_performance_export",
	"sales_performance_by_state":           "state_category_performance_export",
}

// domesticOf maps an export template back to its domestic counterpart.
var domesticOf = map[catalog.TemplateID]catalog.TemplateID{
	"product_segment_export":             "product_segment_domestic",
	"product_segment_export_by_category": "product_segment_domestic_by_category",
	"cso_category_performance_export":    "cso_category_performance",
	"state_category_performance_export":  "state_category_performance",
}

type upgradeKey struct {
	from   catalog.TemplateID
	filter string
}

// upgrades are type-preserving moves for when a filter is added to a query
// that cannot express it. Product queries stay product queries, people
// queries stay people queries.
var upgrades = map[upgradeKey]catalog.TemplateID{
	{"product_segment_domestic", catalog.ParamBusinessCategory}: "product_segment_domestic_by_category",
	{"product_segment_export", catalog.ParamBusinessCategory}:   "product_segment_export_by_category",

	{"top_salesperson_flexible_period", catalog.ParamBusinessCategory}:    "general_category_performance",
	{"executive_sales_performance_period", catalog.ParamBusinessCategory}: "general_category_performance",

	{"top_salesperson_flexible_period", catalog.ParamStateID}:    "sales_performance_by_state",
	{"executive_sales_performance_period", catalog.ParamStateID}: "sales_performance_by_state",

	{"sales_performance_by_state", catalog.ParamBusinessCategory}: "state_category_performance",

	{"top_salesperson_flexible_period", catalog.ParamCSOID}:    "sales_performance_by_cso",
	{"executive_sales_performance_period", catalog.ParamCSOID}: "sales_performance_by_cso",

	{"sales_performance_by_cso", catalog.ParamBusinessCategory}: "cso_category_performance",

	{"general_category_performance", catalog.ParamStateID}: "state_category_performance",
	{"general_category_performance", catalog.ParamCSOID}:   "cso_category_performance",
}

// BaseVariant returns the unfiltered counterpart of a category-filtered
// template.
func BaseVariant(id catalog.TemplateID) (catalog.TemplateID, bool) {
	next, ok := baseOf[id]
	return next, ok
}

// ExportVariant returns the export counterpart of a domestic template.
func ExportVariant(id catalog.TemplateID) (catalog.TemplateID, bool) {
	next, ok := exportOf[id]
	return next, ok
}

// DomesticVariant returns the domestic counterpart of an export template.
func DomesticVariant(id catalog.TemplateID) (catalog.TemplateID, bool) {
	next, ok := domesticOf[id]
	return next, ok
}

// Upgrade returns the template that absorbs the given filter while keeping
// the query's subject.
func Upgrade(id catalog.TemplateID, filter string) (catalog.TemplateID, bool) {
	next, ok := upgrades[upgradeKey{id, filter}]
	return next, ok
}
