// Package extract pulls query parameters out of free text without an LLM.
// It backs the pre-extraction pass that captures explicit values like
// "top 5" or "Rajasthan" before the model-based extractor runs, so those
// never depend on model output.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/saleswire/server/internal/agent/catalog"
)

var (
	// "top 5", "bottom 3", "best 10"
	nLeading = regexp.MustCompile(`\b(?:TOP|BOTTOM|BEST|WORST|FIRST|LAST|MINIMUM|MAXIMUM)\s+(\d+)`)
	// "5 top performers", "10 salespersons"
	nTrailing = regexp.MustCompile(`\b(\d+)\s+(?:TOP|BOTTOM|BEST|WORST|SALESPERSON|SALES|EXECUTIVE|PERFORMER|PERFORMING)`)

	// ASC checked before DESC: "bottom" must win over a stray "top" synonym.
	sortAscending  = regexp.MustCompile(`\b(BOTTOM|WORST|LOWEST|LEAST|MINIMUM|POOREST|WEAKEST)\b`)
	sortDescending = regexp.MustCompile(`\b(TOP|BEST|HIGHEST|MOST|MAXIMUM|GREATEST|STRONGEST|LARGEST)\b`)

	codeWithDigits = regexp.MustCompile(`\b[A-Z]{2,4}\d+\b`)
	twoLetterCode  = regexp.MustCompile(`\b([A-Z]{2})\b`)
)

// Two-letter words that look like state codes but never are.
var codeStopWords = map[string]bool{
	"IN": true, "ON": true, "BY": true, "TO": true, "AT": true,
	"OR": true, "SO": true, "AS": true, "IS": true, "OF": true,
	"AN": true, "IF": true, "IT": true,
}

// stateNames maps spoken state names to warehouse state codes. Order
// matters: the first match wins, and the common "gujrat" misspelling sits
// at the end so the canonical spelling is tried first.
var stateNames = []struct {
	name string
	code string
}{
	{"rajasthan", "RJ"}, {"gujarat", "GJ"}, {"maharashtra", "MH"},
	{"delhi", "DL"}, {"karnataka", "KA"}, {"tamil nadu", "TN"},
	{"kerala", "KL"}, {"andhra pradesh", "AP"}, {"telangana", "TS"},
	{"uttar pradesh", "UP"}, {"madhya pradesh", "MP"}, {"punjab", "PB"},
	{"haryana", "HR"}, {"west bengal", "WB"}, {"bihar", "BR"},
	{"odisha", "OR"}, {"jharkhand", "JH"}, {"chhattisgarh", "CG"},
	{"assam", "AS"}, {"goa", "GA"}, {"himachal", "HP"},
	{"uttarakhand", "UK"}, {"jammu", "JK"}, {"gujrat", "GJ"},
}

// FromQuestion extracts one parameter value from the question. The second
// return reports whether anything was found.
func FromQuestion(question, param string, now time.Time) (any, bool) {
	upper := strings.ToUpper(question)

	switch param {
	case catalog.ParamN:
		for _, re := range []*regexp.Regexp{nLeading, nTrailing} {
			if m := re.FindStringSubmatch(upper); m != nil {
				n, err := strconv.Atoi(m[1])
				if err == nil {
					return n, true
				}
			}
		}

	case catalog.ParamSort:
		if sortAscending.MatchString(upper) {
			return "ASC", true
		}
		if sortDescending.MatchString(upper) {
			return "DESC", true
		}

	case catalog.ParamBusinessCategory:
		if cats := categoriesFrom(upper); cats != "" {
			return cats, true
		}

	case catalog.ParamStateID, catalog.ParamCSOID, catalog.ParamClusterID:
		if code, ok := codeFrom(question, upper, param); ok {
			return code, true
		}

	case catalog.ParamStartDate, catalog.ParamEndDate:
		if d, ok := relativeDate(strings.ToLower(question), param, now); ok {
			return d, true
		}
	}
	return nil, false
}

// categoriesFrom collects every business category the question names,
// quoted and comma-joined for a SQL IN clause. "Export" is deliberately not
// a category here; it routes to the export template variants instead.
func categoriesFrom(upper string) string {
	var cats []string
	if strings.Contains(upper, "FMEG") || strings.Contains(upper, "FAST MOVING") {
		cats = append(cats, "'FMEG'")
	}
	if containsAnyUpper(upper, "W&C", "WIRES", "CABLES", "WIRE AND CABLE") {
		cats = append(cats, "'Wires & Cables'")
	}
	if containsAnyUpper(upper, "WIRING DEVICES", "SWITCHGEAR", "SWITCHES", "SWITCH") {
		cats = append(cats, "'Wiring Devices & Switchgear'")
	}
	return strings.Join(cats, ", ")
}

func codeFrom(question, upper, param string) (string, bool) {
	if param == catalog.ParamStateID {
		lower := strings.ToLower(question)
		for _, s := range stateNames {
			if strings.Contains(lower, s.name) {
				return s.code, true
			}
		}
	}

	// Codes with digits are unambiguous: RJC01, DCBH01, CSO001.
	if code := codeWithDigits.FindString(upper); code != "" {
		return code, true
	}

	for _, m := range twoLetterCode.FindAllStringSubmatch(upper, -1) {
		if !codeStopWords[m[1]] {
			return m[1], true
		}
	}
	return "", false
}

func containsAnyUpper(upper string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(upper, w) {
			return true
		}
	}
	return false
}
