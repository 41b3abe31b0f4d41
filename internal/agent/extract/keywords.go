package extract

import (
	"regexp"
	"strings"
)

// Exact phrasings that replay the previous result as a table.
var tableRequests = map[string]bool{
	"table":           true,
	"in table":        true,
	"show table":      true,
	"display table":   true,
	"show in table":   true,
	"as table":        true,
	"in table format": true,
	"table format":    true,
}

var goodbyePhrases = []string{
	"bye", "goodbye", "see you", "thanks bye", "thank you bye",
	"cya", "later", "take care",
}

// Subject-change detection. The context analyzer sometimes misses a switch
// between people questions and product questions, so these back it up in
// code.
var (
	salespersonAsks = []string{"salesperson", "who generated", "who made", "rank sales", "best performer", "top performer"}
	productAsks     = []string{"product type", "product segment", "which product"}
	personWords     = []string{"who", "salesperson", "performer", "executive", "sales rep"}
)

var (
	allCategoryAnswers = map[string]bool{"all": true, "all categories": true, "everything": true, "all of them": true}
	allCategoryValues  = map[string]bool{"all": true, "'all'": true, "all categories": true, "everything": true}
)

var ordinalPattern = regexp.MustCompile(`\b\d+(st|nd|rd|th)\b`)

// ContainsAny reports whether the lowercased text contains any keyword.
func ContainsAny(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// IsTableRequest matches the fixed table-replay phrasings exactly.
func IsTableRequest(q string) bool {
	return tableRequests[strings.ToLower(strings.TrimSpace(q))]
}

// IsGoodbye reports whether an acknowledgment is actually a farewell.
func IsGoodbye(q string) bool {
	return ContainsAny(q, goodbyePhrases)
}

// AsksSalesperson reports whether the question asks about people.
func AsksSalesperson(q string) bool {
	return ContainsAny(q, salespersonAsks)
}

// AsksProduct reports whether the question asks about product segments.
func AsksProduct(q string) bool {
	return ContainsAny(q, productAsks)
}

// AsksPerson is the looser person check used before reusing a product query
// for a follow-up.
func AsksPerson(q string) bool {
	return ContainsAny(q, personWords)
}

// IsAllCategoriesAnswer matches a whole-utterance "all" reply to a category
// question.
func IsAllCategoriesAnswer(q string) bool {
	return allCategoryAnswers[strings.ToLower(strings.TrimSpace(q))]
}

// IsAllCategoriesValue matches "all"-meaning values that reached the
// collected parameters.
func IsAllCategoriesValue(v string) bool {
	return allCategoryValues[strings.ToLower(strings.TrimSpace(v))]
}

// MentionsExport reports a literal "export" mention.
func MentionsExport(q string) bool {
	return strings.Contains(strings.ToLower(q), "export")
}

// MentionsDomestic reports a literal "domestic" mention.
func MentionsDomestic(q string) bool {
	return strings.Contains(strings.ToLower(q), "domestic")
}

// IsShortResponse reports whether the utterance is five words or fewer,
// the cue for clarification-style narration.
func IsShortResponse(q string) bool {
	return len(strings.Fields(q)) <= 5
}

// HasOrdinal reports whether the question contains a true ordinal like
// "2nd" or "5th".
func HasOrdinal(q string) bool {
	return ordinalPattern.MatchString(strings.ToLower(q))
}
