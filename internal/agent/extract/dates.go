package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/saleswire/server/internal/agent/catalog"
)

const dateLayout = "2006-01-02"

// Date placeholder tokens used in catalog defaults, resolved at execution
// time against the current date.
const (
	PlaceholderLastMonthStart   = "__LAST_MONTH_START__"
	PlaceholderLastMonthEnd     = "__LAST_MONTH_END__"
	PlaceholderThisMonthStart   = "__THIS_MONTH_START__"
	PlaceholderThisMonthEnd     = "__THIS_MONTH_END__"
	PlaceholderLastQuarterStart = "__LAST_QUARTER_START__"
	PlaceholderLastQuarterEnd   = "__LAST_QUARTER_END__"
)

// timePhrases mark a question as carrying an explicit time reference, which
// makes extracted dates override inherited ones.
var timePhrases = []string{
	"last month", "last year", "last quarter", "this month", "this year",
	"this quarter", "previous month", "previous year", "previous quarter",
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var (
	quarterLabel = regexp.MustCompile(`\bq[1-4]\b`)
	yearLiteral  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	// "january 2025", "march 2024"
	monthYear = regexp.MustCompile(`\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+((?:19|20)\d{2})\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// HasExplicitTime reports whether the question names a time period.
func HasExplicitTime(question string) bool {
	lower := strings.ToLower(question)
	for _, p := range timePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return quarterLabel.MatchString(lower) || yearLiteral.MatchString(lower)
}

// IsPlaceholder reports whether a default value is a date placeholder token.
func IsPlaceholder(v string) bool {
	return strings.HasPrefix(v, "__") && strings.HasSuffix(v, "__")
}

// ResolvePlaceholder turns a placeholder token into a concrete date. Unknown
// tokens come back unchanged.
func ResolvePlaceholder(placeholder string, now time.Time) string {
	switch placeholder {
	case PlaceholderLastMonthStart:
		start, _ := lastMonthRange(now)
		return start.Format(dateLayout)
	case PlaceholderLastMonthEnd:
		_, end := lastMonthRange(now)
		return end.Format(dateLayout)
	case PlaceholderThisMonthStart:
		start, _ := thisMonthRange(now)
		return start.Format(dateLayout)
	case PlaceholderThisMonthEnd:
		_, end := thisMonthRange(now)
		return end.Format(dateLayout)
	case PlaceholderLastQuarterStart:
		start, _ := lastQuarterRange(now)
		return start.Format(dateLayout)
	case PlaceholderLastQuarterEnd:
		_, end := lastQuarterRange(now)
		return end.Format(dateLayout)
	}
	return placeholder
}

// relativeDate resolves relative period phrases to a concrete date for the
// requested boundary parameter.
func relativeDate(lower, param string, now time.Time) (string, bool) {
	wantStart := param == catalog.ParamStartDate

	pick := func(start, end time.Time) (string, bool) {
		if wantStart {
			return start.Format(dateLayout), true
		}
		return end.Format(dateLayout), true
	}

	switch {
	case strings.Contains(lower, "last quarter") || strings.Contains(lower, "previous quarter"):
		return pick(lastQuarterRange(now))
	case strings.Contains(lower, "this quarter") || strings.Contains(lower, "current quarter"):
		return pick(thisQuarterRange(now))
	case strings.Contains(lower, "last month") || strings.Contains(lower, "previous month"):
		return pick(lastMonthRange(now))
	case strings.Contains(lower, "this month") || strings.Contains(lower, "current month"):
		return pick(thisMonthRange(now))
	case strings.Contains(lower, "this year") || strings.Contains(lower, "current year"):
		return pick(yearRange(now.Year(), now.Location()))
	case strings.Contains(lower, "last year") || strings.Contains(lower, "previous year"):
		return pick(yearRange(now.Year()-1, now.Location()))
	}

	if m := monthYear.FindStringSubmatch(lower); m != nil {
		year, err := strconv.Atoi(m[2])
		if err == nil {
			return pick(monthRange(monthsByName[m[1]], year, now.Location()))
		}
	}
	return "", false
}

func lastMonthRange(now time.Time) (time.Time, time.Time) {
	firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := firstOfThis.AddDate(0, 0, -1)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, end
}

func thisMonthRange(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, -1)
}

func lastQuarterRange(now time.Time) (time.Time, time.Time) {
	quarter := (int(now.Month()) - 1) / 3
	if quarter == 0 {
		// Jan-Mar rolls back to Oct-Dec of the previous year.
		return time.Date(now.Year()-1, time.October, 1, 0, 0, 0, 0, now.Location()),
			time.Date(now.Year()-1, time.December, 31, 0, 0, 0, 0, now.Location())
	}
	start := time.Date(now.Year(), time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 3, -1)
}

func thisQuarterRange(now time.Time) (time.Time, time.Time) {
	quarter := (int(now.Month()) - 1) / 3
	start := time.Date(now.Year(), time.Month(quarter*3+1), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 3, -1)
}

func monthRange(month time.Month, year int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, -1)
}

func yearRange(year int, loc *time.Location) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
		time.Date(year, time.December, 31, 0, 0, 0, 0, loc)
}
