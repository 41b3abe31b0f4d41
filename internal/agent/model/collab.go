package model

import (
	"context"

	"github.com/saleswire/server/internal/agent/catalog"
)

// StateStore persists dialogue state per conversation. Load creates a fresh
// state when none exists.
type StateStore interface {
	Load(ctx context.Context, conversationID string) (*DialogueState, error)
	Save(ctx context.Context, conversationID string, state *DialogueState) error
	Clear(ctx context.Context, conversationID string) error
	List(ctx context.Context) ([]ConversationInfo, error)
}

// ConversationInfo summarises one stored conversation for admin surfaces.
type ConversationInfo struct {
	ConversationID string             `json:"conversation_id"`
	Messages       int                `json:"message_count"`
	PendingQueryID catalog.TemplateID `json:"pending_query,omitempty"`
	MissingParams  []string           `json:"missing_params,omitempty"`
}

// TemplateRetriever finds the catalog template that best answers free text.
type TemplateRetriever interface {
	LookupByText(ctx context.Context, question string) (catalog.Template, error)
	LookupByID(ctx context.Context, id catalog.TemplateID) (catalog.Template, error)
}

// QueryExecutor runs finalized SQL against the sales warehouse.
type QueryExecutor interface {
	Query(ctx context.Context, sql string) (*QueryResult, error)
}

// IntentRouter classifies a fresh utterance into one coarse intent.
type IntentRouter interface {
	Route(ctx context.Context, question string) (Intent, error)
}

// ContextInput carries everything the context analyzer sees for one turn.
type ContextInput struct {
	History      string
	LastQuestion string
	LastQueryID  catalog.TemplateID
	LastParams   catalog.ParameterSet
	Message      string
	CurrentDate  string
}

// ContextAnalyzer relates an utterance to the previous successful query.
type ContextAnalyzer interface {
	Analyze(ctx context.Context, in ContextInput) (*ContextDecision, error)
}

// ExtractionInput is the state snapshot the parameter extractor prompts with.
type ExtractionInput struct {
	MissingParams    []string
	CollectedParams  catalog.ParameterSet
	OptionalParams   []string
	OriginalQuestion string
	CurrentDate      string
	Question         string
	InheritedParams  catalog.ParameterSet
	OverrideHints    map[string]any
}

// ParamExtractor pulls missing parameter values out of an utterance.
// Absent parameters are omitted from the result, never returned as empty
// strings.
type ParamExtractor interface {
	Extract(ctx context.Context, in ExtractionInput) (map[string]any, error)
}

// NarrationInput is the request for turning result rows into prose. Rows
// arrive with currency values already formatted.
type NarrationInput struct {
	Question     string
	QueryContext string
	Columns      []string
	Rows         [][]any
}

// Narrator produces the user-facing answer from query results.
type Narrator interface {
	Narrate(ctx context.Context, in NarrationInput) (string, error)
}
