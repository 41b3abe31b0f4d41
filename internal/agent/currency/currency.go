// Package currency renders amounts in the Indian magnitude convention
// (thousands, lakhs, crores). Narration models cannot be trusted with this
// arithmetic, so rows are pre-formatted before they reach a prompt.
package currency

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	crore    = 10_000_000
	lakh     = 100_000
	thousand = 1_000
)

// Keywords marking a column as financial. Matched as substrings of the
// lowercased column name.
var currencyKeywords = []string{
	"sales", "value", "amount", "total", "revenue", "invoice",
	"price", "cost", "sum", "quantity_value", "lineamount",
}

// Format renders an amount per the magnitude bands: >= 1 Cr in crores,
// >= 1 L in lakhs, >= 1 K in thousands, smaller amounts as-is. Nil renders
// "N/A"; non-numeric input is returned stringified unchanged.
func Format(v any) string {
	if v == nil {
		return "N/A"
	}
	amount, ok := asFloat(v)
	if !ok {
		return fmt.Sprint(v)
	}

	prefix := ""
	if amount < 0 {
		prefix = "-"
	}
	abs := math.Abs(amount)

	switch {
	case abs >= crore:
		return prefix + "₹" + trim(abs/crore) + " Cr"
	case abs >= lakh:
		return prefix + "₹" + trim(abs/lakh) + " L"
	case abs >= thousand:
		return prefix + "₹" + trim(abs/thousand) + " K"
	default:
		return prefix + "₹" + trim(abs)
	}
}

// trim renders with at most two decimals, stripping trailing zeros and a
// dangling decimal point.
func trim(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// FormatRows returns a copy of rows with financial columns rendered via
// Format. Only numeric cells with an absolute value of at least 1000 are
// touched: smaller numbers in a matching column are usually counts or ids
// that happen to share a keyword.
func FormatRows(columns []string, rows [][]any) [][]any {
	indices := currencyColumns(columns)
	if len(indices) == 0 {
		return rows
	}

	out := make([][]any, len(rows))
	for i, row := range rows {
		formatted := make([]any, len(row))
		copy(formatted, row)
		for _, idx := range indices {
			if idx >= len(formatted) {
				continue
			}
			if n, ok := asFloat(formatted[idx]); ok && math.Abs(n) >= thousand {
				formatted[idx] = Format(formatted[idx])
			}
		}
		out[i] = formatted
	}
	return out
}

func currencyColumns(columns []string) []int {
	var indices []int
	for idx, name := range columns {
		lower := strings.ToLower(name)
		for _, kw := range currencyKeywords {
			if strings.Contains(lower, kw) {
				indices = append(indices, idx)
				break
			}
		}
	}
	return indices
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
