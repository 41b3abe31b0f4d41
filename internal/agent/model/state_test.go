package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saleswire/server/internal/agent/catalog"
)

func TestAddTurnCapsHistory(t *testing.T) {
	s := NewDialogueState()
	for i := 0; i < 15; i++ {
		s.AddTurn(RoleUser, fmt.Sprintf("message %d", i), nil)
	}

	require.Len(t, s.History, DefaultMaxHistoryTurns*2)
	assert.Equal(t, "message 5", s.History[0].Message)
	assert.Equal(t, "message 14", s.History[len(s.History)-1].Message)
}

func TestSaveSuccessfulQuery(t *testing.T) {
	s := NewDialogueState()
	params := catalog.ParameterSet{
		"state_id":          "RJ",
		"business_category": "'FMEG'",
		"start_date":        "2025-01-01",
		"end_date":          "2025-01-31",
		"sort":              "ASC",
		"n":                 2,
	}
	s.SaveSuccessfulQuery(params, "lowest performers in Rajasthan", "sales_performance_by_state")

	assert.Equal(t, "ASC", s.LastSortDirection)
	assert.Equal(t, catalog.TemplateID("sales_performance_by_state"), s.LastQueryID)
	assert.Equal(t, "lowest performers in Rajasthan", s.LastQueryContext)
	assert.Equal(t, catalog.ParameterSet{
		"state_id":          "RJ",
		"business_category": "'FMEG'",
	}, s.LastFilterParams)
	assert.True(t, s.HasContext())

	// Mutating the source must not leak into the saved copy.
	params["state_id"] = "MH"
	assert.Equal(t, "RJ", s.LastSuccessfulParams["state_id"])
}

func TestSaveSuccessfulQueryDefaultsSortDirection(t *testing.T) {
	s := NewDialogueState()
	s.SaveSuccessfulQuery(catalog.ParameterSet{"n": 5}, "top 5", "top_salesperson_flexible_period")
	assert.Equal(t, SortDescending, s.LastSortDirection)
}

func TestHistoryForLLM(t *testing.T) {
	s := NewDialogueState()
	assert.Equal(t, "No previous conversation.", s.HistoryForLLM())

	s.AddTurn(RoleUser, "top salesperson last month", nil)
	s.AddTurn(RoleAssistant, "Jatin Patel led with ₹26.44 Cr", catalog.ParameterSet{"n": 1})

	got := s.HistoryForLLM()
	assert.Contains(t, got, "USER: top salesperson last month")
	assert.Contains(t, got, "ASSISTANT: Jatin Patel led with ₹26.44 Cr")
	assert.Contains(t, got, "[Params:")
}

func TestHistoryForLLMTruncatesLongMessages(t *testing.T) {
	s := NewDialogueState()
	s.AddTurn(RoleAssistant, strings.Repeat("₹", 400), nil)

	got := s.HistoryForLLM()
	assert.Equal(t, 300, strings.Count(got, "₹"))
}

func TestClearQueryStateKeepsMemory(t *testing.T) {
	s := NewDialogueState()
	s.PendingQueryID = "sales_performance_by_state"
	s.MissingParams = []string{"state_id"}
	s.CollectedParams["n"] = 5
	s.ParamAttempts = 2
	s.AddTurn(RoleUser, "hello", nil)
	s.SaveSuccessfulQuery(catalog.ParameterSet{"n": 1}, "top salesperson", "top_salesperson_flexible_period")

	s.ClearQueryState()

	assert.False(t, s.HasPending())
	assert.Empty(t, s.MissingParams)
	assert.Empty(t, s.CollectedParams)
	assert.Zero(t, s.ParamAttempts)
	assert.True(t, s.HasContext())
	assert.NotEmpty(t, s.History)
}

func TestClearAll(t *testing.T) {
	s := NewDialogueState()
	s.AddTurn(RoleUser, "hi", nil)
	s.LastColumns = []string{"salespersonname"}
	s.LastRows = [][]any{{"Jatin Patel"}}
	s.SaveSuccessfulQuery(catalog.ParameterSet{"sort": "ASC"}, "bottom performer", "top_salesperson_flexible_period")

	s.ClearAll()

	assert.False(t, s.HasContext())
	assert.Empty(t, s.History)
	assert.Empty(t, s.LastRows)
	assert.Equal(t, SortDescending, s.LastSortDirection)
}

func TestNormalizeAfterDecode(t *testing.T) {
	var s DialogueState
	require.NoError(t, json.Unmarshal([]byte(`{"pending_query_id": "sales_performance_by_cso"}`), &s))
	s.Normalize()

	assert.NotNil(t, s.CollectedParams)
	assert.NotNil(t, s.LastFilterParams)
	assert.Equal(t, SortDescending, s.LastSortDirection)
	assert.Equal(t, DefaultMaxHistoryTurns, s.MaxHistoryTurns)
	assert.Equal(t, DefaultMaxParamAttempts, s.MaxParamAttempts)
	assert.True(t, s.HasPending())
}

func TestIncrementAttempts(t *testing.T) {
	s := NewDialogueState()

	assert.True(t, s.IncrementAttempts())
	assert.True(t, s.IncrementAttempts())
	assert.False(t, s.IncrementAttempts())
	assert.True(t, s.AttemptsExhausted())
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		raw  string
		want Intent
	}{
		{"SALES", IntentSales},
		{"greeting", IntentGreeting},
		{" TABLE \n", IntentTable},
		{"Reset", IntentReset},
		{"REJECT", IntentReject},
		{"banana", IntentSales},
		{"", IntentSales},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIntent(tt.raw), tt.raw)
	}
}

func TestConfidenceActionable(t *testing.T) {
	assert.True(t, ConfidenceHigh.Actionable())
	assert.True(t, ConfidenceMedium.Actionable())
	assert.False(t, ConfidenceLow.Actionable())
	assert.False(t, Confidence("").Actionable())
}
