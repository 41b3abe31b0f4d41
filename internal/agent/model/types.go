package model

import "strings"

// Intent is the coarse routing decision for a fresh utterance.
type Intent string

const (
	IntentSales    Intent = "SALES"
	IntentGreeting Intent = "GREETING"
	IntentTable    Intent = "TABLE"
	IntentReset    Intent = "RESET"
	IntentReject   Intent = "REJECT"
)

// ParseIntent normalises raw model output. Anything unrecognised falls back
// to SALES so unexpected output never blocks a data question.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(raw))) {
	case IntentGreeting:
		return IntentGreeting
	case IntentTable:
		return IntentTable
	case IntentReset:
		return IntentReset
	case IntentReject:
		return IntentReject
	default:
		return IntentSales
	}
}

// ContextKind classifies how an utterance relates to the previous result.
type ContextKind string

const (
	ContextAcknowledgment        ContextKind = "ACKNOWLEDGMENT"
	ContextClarificationQuestion ContextKind = "CLARIFICATION_QUESTION"
	ContextFollowUp              ContextKind = "FOLLOW_UP"
	ContextNewQuery              ContextKind = "NEW_QUERY"
	ContextClarification         ContextKind = "CLARIFICATION"
)

// Confidence grades the context analyzer's verdict.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Actionable reports whether the verdict is trustworthy enough to act on.
// LOW confidence verdicts are ignored and the turn proceeds as a new query.
func (c Confidence) Actionable() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium
}

// ContextDecision is the context analyzer's structured verdict on one turn.
type ContextDecision struct {
	Kind           ContextKind    `json:"query_type"`
	Confidence     Confidence     `json:"confidence"`
	Reasoning      string         `json:"reasoning,omitempty"`
	InheritParams  []string       `json:"inherit_params"`
	OverrideParams map[string]any `json:"override_params"`
}

// QueryResult is the raw outcome of a warehouse query.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Reply is the engine's answer for one turn. Table replies carry raw data
// and let each transport render it natively.
type Reply struct {
	Text    string
	IsTable bool
	Columns []string
	Rows    [][]any
}

// TextReply wraps plain prose in a Reply.
func TextReply(text string) Reply {
	return Reply{Text: text}
}

// TableReply wraps a stored result for replay.
func TableReply(columns []string, rows [][]any) Reply {
	return Reply{IsTable: true, Columns: columns, Rows: rows}
}
