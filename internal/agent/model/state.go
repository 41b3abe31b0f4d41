package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/saleswire/server/internal/agent/catalog"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Bounds applied when a stored state carries none.
const (
	DefaultMaxHistoryTurns  = 5
	DefaultMaxParamAttempts = 3
)

// SortDescending and SortAscending are the two values the sort parameter
// takes in catalog SQL.
const (
	SortDescending = "DESC"
	SortAscending  = "ASC"
)

// Turn is one message in the dialogue transcript.
type Turn struct {
	Role      string               `json:"role"`
	Message   string               `json:"message"`
	Params    catalog.ParameterSet `json:"params,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// DialogueState is the persistent multi-turn state of one conversation. It
// tracks the query being resolved, the last result for table replay, and
// cross-query memory for follow-up inheritance. Serialized to JSON by the
// state stores.
type DialogueState struct {
	// In-progress query resolution.
	PendingQueryID   catalog.TemplateID   `json:"pending_query_id"`
	PendingSQL       string               `json:"pending_sql"`
	MissingParams    []string             `json:"missing_params"`
	CollectedParams  catalog.ParameterSet `json:"collected_params"`
	OriginalQuestion string               `json:"original_question"`
	ParamAttempts    int                  `json:"param_attempts"`
	OptionalParams   []string             `json:"optional_params"`
	ParamDefaults    map[string]any       `json:"param_defaults"`

	// Result recall for table replay.
	LastColumns []string `json:"last_columns"`
	LastRows    [][]any  `json:"last_rows"`

	// Cross-query memory.
	History              []Turn               `json:"history"`
	LastSuccessfulParams catalog.ParameterSet `json:"last_successful_params"`
	LastQueryContext     string               `json:"last_query_context"`
	LastQueryID          catalog.TemplateID   `json:"last_query_id"`
	LastExecutedSQL      string               `json:"last_executed_sql"`
	LastSortDirection    string               `json:"last_sort_direction"`
	LastFilterParams     catalog.ParameterSet `json:"last_filter_params"`

	MaxHistoryTurns  int `json:"max_history_turns"`
	MaxParamAttempts int `json:"max_param_attempts"`
}

// NewDialogueState returns a ready-to-use empty state.
func NewDialogueState() *DialogueState {
	s := &DialogueState{}
	s.Normalize()
	return s
}

// Normalize repairs zero values after JSON decoding so every method can rely
// on initialized maps and positive bounds.
func (s *DialogueState) Normalize() {
	if s.CollectedParams == nil {
		s.CollectedParams = catalog.ParameterSet{}
	}
	if s.ParamDefaults == nil {
		s.ParamDefaults = map[string]any{}
	}
	if s.LastSuccessfulParams == nil {
		s.LastSuccessfulParams = catalog.ParameterSet{}
	}
	if s.LastFilterParams == nil {
		s.LastFilterParams = catalog.ParameterSet{}
	}
	if s.LastSortDirection == "" {
		s.LastSortDirection = SortDescending
	}
	if s.MaxHistoryTurns <= 0 {
		s.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	if s.MaxParamAttempts <= 0 {
		s.MaxParamAttempts = DefaultMaxParamAttempts
	}
}

// HasPending reports whether a query is mid-resolution.
func (s *DialogueState) HasPending() bool {
	return s.PendingQueryID != ""
}

// HasContext reports whether a previous query succeeded in this conversation.
func (s *DialogueState) HasContext() bool {
	return len(s.LastSuccessfulParams) > 0 && s.LastQueryContext != ""
}

// IncrementAttempts bumps the collection counter and reports whether another
// round is allowed.
func (s *DialogueState) IncrementAttempts() bool {
	s.ParamAttempts++
	return s.ParamAttempts < s.MaxParamAttempts
}

// AttemptsExhausted reports whether the collection loop hit its cap.
func (s *DialogueState) AttemptsExhausted() bool {
	return s.ParamAttempts >= s.MaxParamAttempts
}

// AddTurn appends a message to the transcript, trimming to the history cap.
func (s *DialogueState) AddTurn(role, message string, params catalog.ParameterSet) {
	s.History = append(s.History, Turn{
		Role:      role,
		Message:   message,
		Params:    params,
		Timestamp: time.Now(),
	})
	max := s.MaxHistoryTurns * 2
	if max > 0 && len(s.History) > max {
		s.History = s.History[len(s.History)-max:]
	}
}

// SaveSuccessfulQuery records the just-executed query so later turns can
// inherit from it. Filter parameters are kept separately because they
// survive across queries.
func (s *DialogueState) SaveSuccessfulQuery(params catalog.ParameterSet, question string, id catalog.TemplateID) {
	s.LastSuccessfulParams = params.Clone()
	s.LastQueryContext = question
	s.LastQueryID = id

	s.LastSortDirection = SortDescending
	if v, ok := params[catalog.ParamSort].(string); ok && v != "" {
		s.LastSortDirection = v
	}

	s.LastFilterParams = params.Filters()
}

// HistoryForLLM renders the recent transcript for prompt consumption.
func (s *DialogueState) HistoryForLLM() string {
	if len(s.History) == 0 {
		return "No previous conversation."
	}

	turns := s.History
	if len(turns) > 10 {
		turns = turns[len(turns)-10:]
	}

	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToUpper(turn.Role), truncateRunes(turn.Message, 300))
		if len(turn.Params) > 0 {
			if raw, err := json.Marshal(turn.Params); err == nil {
				fmt.Fprintf(&b, "\n   [Params: %s]", raw)
			}
		}
	}
	return b.String()
}

// ClearQueryState resets the in-progress resolution, keeping memory intact.
func (s *DialogueState) ClearQueryState() {
	s.PendingQueryID = ""
	s.PendingSQL = ""
	s.MissingParams = nil
	s.CollectedParams = catalog.ParameterSet{}
	s.OriginalQuestion = ""
	s.ParamAttempts = 0
	s.OptionalParams = nil
	s.ParamDefaults = map[string]any{}
}

// ClearResultState drops the stored result used for table replay.
func (s *DialogueState) ClearResultState() {
	s.LastColumns = nil
	s.LastRows = nil
}

// ClearAll wipes everything including the transcript.
func (s *DialogueState) ClearAll() {
	s.ClearQueryState()
	s.ClearResultState()
	s.History = nil
	s.LastSuccessfulParams = catalog.ParameterSet{}
	s.LastQueryContext = ""
	s.LastQueryID = ""
	s.LastExecutedSQL = ""
	s.LastSortDirection = SortDescending
	s.LastFilterParams = catalog.ParameterSet{}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
